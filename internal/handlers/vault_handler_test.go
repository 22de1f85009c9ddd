package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainvault-backend/internal/clients"
	"chainvault-backend/internal/services"
	"chainvault-backend/internal/vault"
)

func newVaultRouter(t *testing.T) (*gin.Engine, *vault.Vault, *clients.TokenBank) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	bank := clients.NewTokenBank(common.HexToAddress("0x00000000000000000000000000000000000Cc001"))
	v := vault.New(bank, 10000, big.NewInt(1))
	h := NewVaultHandler(v, services.NewValuationService(v, nil))

	r := gin.New()
	r.POST("/api/vault/assets", h.AddAssetHandler)
	r.POST("/api/vault/deposit", h.DepositHandler)
	r.POST("/api/vault/withdraw", h.WithdrawHandler)
	r.GET("/api/vault/ledgers/:tokenId", h.GetLedgerHandler)
	r.GET("/api/vault/ledgers/:tokenId/share-price", h.GetSharePriceHandler)
	r.GET("/api/vault/positions/:tokenId/:holder", h.GetPositionHandler)
	return r, v, bank
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func TestVaultHandler_DepositWithdrawFlow(t *testing.T) {
	r, _, bank := newVaultRouter(t)
	asset := "0x0000000000000000000000000000000000aA0001"
	holder := "0x0000000000000000000000000000000000001111"
	bank.Mint(common.HexToAddress(asset), common.HexToAddress(holder), big.NewInt(1000))

	w, body := doJSON(t, r, http.MethodPost, "/api/vault/assets", AddAssetRequest{Asset: asset, Name: "Test USD"})
	require.Equal(t, http.StatusCreated, w.Code, body)
	assert.Equal(t, float64(1), body["token_id"])

	w, body = doJSON(t, r, http.MethodPost, "/api/vault/deposit", DepositRequest{
		TokenID: 1, Amount: "600", Depositor: holder,
	})
	require.Equal(t, http.StatusOK, w.Code, body)
	assert.Equal(t, "600", body["shares"])

	w, body = doJSON(t, r, http.MethodGet, "/api/vault/positions/1/"+holder, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "600", body["shares"])
	assert.Equal(t, "600", body["value"])

	w, body = doJSON(t, r, http.MethodPost, "/api/vault/withdraw", WithdrawRequest{
		TokenID: 1, Shares: "600", Holder: holder,
	})
	require.Equal(t, http.StatusOK, w.Code, body)
	assert.Equal(t, "600", body["amount"])
	assert.Equal(t, big.NewInt(1000), bank.Balance(common.HexToAddress(asset), common.HexToAddress(holder)))
}

func TestVaultHandler_ErrorMapping(t *testing.T) {
	r, _, bank := newVaultRouter(t)
	asset := "0x0000000000000000000000000000000000aA0001"
	holder := "0x0000000000000000000000000000000000001111"
	bank.Mint(common.HexToAddress(asset), common.HexToAddress(holder), big.NewInt(100))

	w, _ := doJSON(t, r, http.MethodPost, "/api/vault/assets", AddAssetRequest{Asset: asset, Name: "Test USD"})
	require.Equal(t, http.StatusCreated, w.Code)

	// Duplicate asset registration conflicts.
	w, _ = doJSON(t, r, http.MethodPost, "/api/vault/assets", AddAssetRequest{Asset: asset, Name: "Again"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Malformed address and amount are rejected up front.
	w, _ = doJSON(t, r, http.MethodPost, "/api/vault/assets", AddAssetRequest{Asset: "not-an-address", Name: "X"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = doJSON(t, r, http.MethodPost, "/api/vault/deposit", DepositRequest{TokenID: 1, Amount: "-5", Depositor: holder})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown ledger is a 404.
	w, _ = doJSON(t, r, http.MethodGet, "/api/vault/ledgers/99", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = doJSON(t, r, http.MethodGet, "/api/vault/ledgers/zzz", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Overdrawing shares maps to 422.
	w, _ = doJSON(t, r, http.MethodPost, "/api/vault/deposit", DepositRequest{TokenID: 1, Amount: "100", Depositor: holder})
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = doJSON(t, r, http.MethodPost, "/api/vault/withdraw", WithdrawRequest{TokenID: 1, Shares: "101", Holder: holder})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestVaultHandler_SharePriceEndpoint(t *testing.T) {
	r, v, bank := newVaultRouter(t)
	asset := common.HexToAddress("0x0000000000000000000000000000000000aA0001")
	holder := common.HexToAddress("0x0000000000000000000000000000000000001111")
	orch := common.HexToAddress("0x00000000000000000000000000000000000Ee001")

	ctx := context.Background()
	_, err := v.AddAsset(ctx, asset, "Test USD")
	require.NoError(t, err)
	bank.Mint(asset, holder, big.NewInt(1000))
	_, err = v.Deposit(ctx, 1, big.NewInt(1000), holder, holder)
	require.NoError(t, err)
	require.NoError(t, v.AllocateToStrategy(ctx, 1, big.NewInt(400), orch))
	bank.Mint(asset, orch, big.NewInt(100))
	require.NoError(t, v.ReturnFromStrategy(ctx, 1, big.NewInt(400), big.NewInt(100), orch))

	w, body := doJSON(t, r, http.MethodGet, "/api/vault/ledgers/1/share-price", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1100000000000000000", body["share_price_scaled"])
	assert.Equal(t, "1100", body["available_liquidity"])
}

package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"chainvault-backend/internal/services"
	"chainvault-backend/internal/utils"
	"chainvault-backend/internal/vault"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// VaultHandler exposes the asset ledger operations
type VaultHandler struct {
	vault     *vault.Vault
	valuation *services.ValuationService
}

// NewVaultHandler creates a new VaultHandler
func NewVaultHandler(v *vault.Vault, valuation *services.ValuationService) *VaultHandler {
	return &VaultHandler{vault: v, valuation: valuation}
}

// AddAssetRequest register-asset request body
type AddAssetRequest struct {
	Asset string `json:"asset" binding:"required"`
	Name  string `json:"name" binding:"required"`
}

// DepositRequest deposit request body
type DepositRequest struct {
	TokenID   uint32 `json:"token_id" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
	Depositor string `json:"depositor" binding:"required"`
	Receiver  string `json:"receiver"`
}

// WithdrawRequest withdraw request body
type WithdrawRequest struct {
	TokenID  uint32 `json:"token_id" binding:"required"`
	Shares   string `json:"shares" binding:"required"`
	Holder   string `json:"holder" binding:"required"`
	Receiver string `json:"receiver"`
}

// AddAssetHandler registers a new asset ledger
// POST /api/vault/assets
func (h *VaultHandler) AddAssetHandler(c *gin.Context) {
	var req AddAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	if !common.IsHexAddress(req.Asset) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid asset address", "received": req.Asset})
		return
	}

	tokenID, err := h.vault.AddAsset(c.Request.Context(), common.HexToAddress(req.Asset), req.Name)
	if err != nil {
		c.JSON(vaultErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token_id": tokenID, "asset": req.Asset, "name": req.Name})
}

// DepositHandler deposits funds into a ledger
// POST /api/vault/deposit
func (h *VaultHandler) DepositHandler(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	amount, err := utils.ParseAmount(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount", "received": req.Amount})
		return
	}
	if !common.IsHexAddress(req.Depositor) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid depositor address"})
		return
	}
	depositor := common.HexToAddress(req.Depositor)
	receiver := depositor
	if req.Receiver != "" {
		if !common.IsHexAddress(req.Receiver) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid receiver address"})
			return
		}
		receiver = common.HexToAddress(req.Receiver)
	}

	shares, err := h.vault.Deposit(c.Request.Context(), req.TokenID, amount, depositor, receiver)
	if err != nil {
		c.JSON(vaultErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token_id": req.TokenID,
		"amount":   amount.String(),
		"shares":   shares.String(),
		"receiver": receiver.Hex(),
	})
}

// WithdrawHandler redeems shares from a ledger
// POST /api/vault/withdraw
func (h *VaultHandler) WithdrawHandler(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	shares, err := utils.ParseAmount(req.Shares)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid shares", "received": req.Shares})
		return
	}
	if !common.IsHexAddress(req.Holder) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid holder address"})
		return
	}
	holder := common.HexToAddress(req.Holder)
	receiver := holder
	if req.Receiver != "" {
		if !common.IsHexAddress(req.Receiver) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid receiver address"})
			return
		}
		receiver = common.HexToAddress(req.Receiver)
	}

	amount, err := h.vault.Withdraw(c.Request.Context(), req.TokenID, shares, holder, receiver)
	if err != nil {
		c.JSON(vaultErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token_id": req.TokenID,
		"shares":   shares.String(),
		"amount":   amount.String(),
		"receiver": receiver.Hex(),
	})
}

// ListLedgersHandler lists every ledger with its valuation
// GET /api/vault/ledgers
func (h *VaultHandler) ListLedgersHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ledgers": h.valuation.LedgerValuations(c.Request.Context())})
}

// GetLedgerHandler returns one ledger's valuation
// GET /api/vault/ledgers/:tokenId
func (h *VaultHandler) GetLedgerHandler(c *gin.Context) {
	tokenID, ok := parseTokenID(c)
	if !ok {
		return
	}
	valuation, err := h.valuation.LedgerValuation(c.Request.Context(), tokenID)
	if err != nil {
		c.JSON(vaultErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ledger": valuation})
}

// GetSharePriceHandler returns the current share price of a ledger
// GET /api/vault/ledgers/:tokenId/share-price
func (h *VaultHandler) GetSharePriceHandler(c *gin.Context) {
	tokenID, ok := parseTokenID(c)
	if !ok {
		return
	}
	price, err := h.vault.ShareValue(tokenID)
	if err != nil {
		c.JSON(vaultErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	liquidity, _ := h.vault.AvailableLiquidity(tokenID)
	c.JSON(http.StatusOK, gin.H{
		"token_id":            tokenID,
		"share_price_scaled":  price.String(),
		"available_liquidity": liquidity.String(),
	})
}

// GetPositionHandler returns a holder's shares and value on one ledger
// GET /api/vault/positions/:tokenId/:holder
func (h *VaultHandler) GetPositionHandler(c *gin.Context) {
	tokenID, ok := parseTokenID(c)
	if !ok {
		return
	}
	holderStr := c.Param("holder")
	if !common.IsHexAddress(holderStr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid holder address", "received": holderStr})
		return
	}
	holder := common.HexToAddress(holderStr)

	value, err := h.vault.UserAssetValue(tokenID, holder)
	if err != nil {
		c.JSON(vaultErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	valueUSD, _ := h.valuation.HolderValueUSD(c.Request.Context(), tokenID, holder)
	c.JSON(http.StatusOK, gin.H{
		"token_id":  tokenID,
		"holder":    holder.Hex(),
		"shares":    h.vault.SharesOf(tokenID, holder).String(),
		"value":     value.String(),
		"value_usd": valueUSD,
	})
}

func parseTokenID(c *gin.Context) (uint32, bool) {
	raw := c.Param("tokenId")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid token ID format", "received": raw})
		return 0, false
	}
	return uint32(id), true
}

func vaultErrorStatus(err error) int {
	switch {
	case errors.Is(err, vault.ErrUnknownToken):
		return http.StatusNotFound
	case errors.Is(err, vault.ErrAssetAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, vault.ErrInvalidAmount),
		errors.Is(err, vault.ErrMinimumShares),
		errors.Is(err, vault.ErrLedgerInactive):
		return http.StatusBadRequest
	case errors.Is(err, vault.ErrInsufficientBalance),
		errors.Is(err, vault.ErrInsufficientLiquidity),
		errors.Is(err, vault.ErrAllocationLimit):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

package handlers

import (
	"errors"
	"net/http"

	"chainvault-backend/internal/guard"
	"chainvault-backend/internal/models"
	"chainvault-backend/internal/orchestrator"
	"chainvault-backend/internal/registry"
	"chainvault-backend/internal/utils"
	"chainvault-backend/internal/vault"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// OrchestratorHandler exposes the cross-chain coordination operations
type OrchestratorHandler struct {
	orch *orchestrator.Orchestrator
}

// NewOrchestratorHandler creates a new OrchestratorHandler
func NewOrchestratorHandler(orch *orchestrator.Orchestrator) *OrchestratorHandler {
	return &OrchestratorHandler{orch: orch}
}

// InvestRequest invest request body
type InvestRequest struct {
	PoolID      string   `json:"pool_id"`
	StrategyID  string   `json:"strategy_id" binding:"required"`
	TokenIDs    []uint32 `json:"token_ids" binding:"required"`
	PctBps      []int64  `json:"pct_bps" binding:"required"`
	TargetAsset string   `json:"target_asset"`
}

// HarvestRequest harvest request body
type HarvestRequest struct {
	StrategyID string   `json:"strategy_id" binding:"required"`
	Assets     []string `json:"assets" binding:"required"`
}

// StrategyWithdrawRequest strategy-withdraw request body
type StrategyWithdrawRequest struct {
	StrategyID string `json:"strategy_id" binding:"required"`
	Asset      string `json:"asset" binding:"required"`
	Amount     string `json:"amount" binding:"required"`
	PoolID     string `json:"pool_id"`
}

// CreditFeesRequest fee top-up request body
type CreditFeesRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// InvestHandler pulls vault liquidity into a strategy
// POST /api/orchestrator/invest
func (h *OrchestratorHandler) InvestHandler(c *gin.Context) {
	var req InvestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	var targetAsset common.Address
	if req.TargetAsset != "" {
		if !common.IsHexAddress(req.TargetAsset) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid target asset address"})
			return
		}
		targetAsset = common.HexToAddress(req.TargetAsset)
	}

	depositID, err := h.orch.Invest(c.Request.Context(), req.PoolID, req.StrategyID, req.TokenIDs, req.PctBps, targetAsset)
	if err != nil {
		c.JSON(orchestratorErrorStatus(err), gin.H{"error": err.Error(), "deposit_id": depositID})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"deposit_id": depositID, "strategy_id": req.StrategyID})
}

// HarvestHandler realizes yield from a strategy
// POST /api/orchestrator/harvest
func (h *OrchestratorHandler) HarvestHandler(c *gin.Context) {
	var req HarvestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	assets := make([]common.Address, 0, len(req.Assets))
	for _, a := range req.Assets {
		if !common.IsHexAddress(a) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid asset address", "received": a})
			return
		}
		assets = append(assets, common.HexToAddress(a))
	}

	messageIDs, err := h.orch.Harvest(c.Request.Context(), req.StrategyID, assets)
	if err != nil {
		c.JSON(orchestratorErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"strategy_id": req.StrategyID, "message_ids": messageIDs})
}

// WithdrawHandler pulls funds back from a strategy into the vault
// POST /api/orchestrator/withdraw
func (h *OrchestratorHandler) WithdrawHandler(c *gin.Context) {
	var req StrategyWithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	if !common.IsHexAddress(req.Asset) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid asset address"})
		return
	}
	amount, err := utils.ParseAmount(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount", "received": req.Amount})
		return
	}

	messageID, err := h.orch.Withdraw(c.Request.Context(), req.StrategyID, common.HexToAddress(req.Asset), amount, req.PoolID)
	if err != nil {
		c.JSON(orchestratorErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"strategy_id": req.StrategyID, "message_id": messageID})
}

// CreditFeesHandler tops up the transport fee balance
// POST /api/orchestrator/fees
func (h *OrchestratorHandler) CreditFeesHandler(c *gin.Context) {
	var req CreditFeesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	amount, err := utils.ParseAmount(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount", "received": req.Amount})
		return
	}

	h.orch.CreditFees(amount)
	c.JSON(http.StatusOK, gin.H{"fee_balance": h.orch.FeeBalance().String()})
}

// GetFeeBalanceHandler returns the current transport fee balance
// GET /api/orchestrator/fees
func (h *OrchestratorHandler) GetFeeBalanceHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"fee_balance": h.orch.FeeBalance().String()})
}

// ListOperationsHandler lists cross-chain operations, optionally filtered
// by status
// GET /api/operations?status=pending
func (h *OrchestratorHandler) ListOperationsHandler(c *gin.Context) {
	status := models.OperationStatus(c.Query("status"))
	switch status {
	case "", models.OperationStatusPending, models.OperationStatusCompleted, models.OperationStatusFailed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status filter", "received": string(status)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"operations": h.orch.ListOperations(status)})
}

// GetOperationHandler returns one operation by message id
// GET /api/operations/:id
func (h *OrchestratorHandler) GetOperationHandler(c *gin.Context) {
	op, err := h.orch.PendingOperation(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "message_id": c.Param("id")})
		return
	}
	c.JSON(http.StatusOK, gin.H{"operation": op})
}

// ListAllocationsHandler lists every strategy allocation record
// GET /api/allocations
func (h *OrchestratorHandler) ListAllocationsHandler(c *gin.Context) {
	views := h.orch.Allocations()
	out := make([]gin.H, 0, len(views))
	for _, v := range views {
		out = append(out, gin.H{
			"id":            v.ID,
			"strategy_id":   v.StrategyID,
			"asset":         v.Asset.Hex(),
			"principal":     v.Principal.String(),
			"current_value": v.CurrentValue.String(),
			"last_harvest":  v.LastHarvest,
			"active":        v.Active,
		})
	}
	c.JSON(http.StatusOK, gin.H{"allocations": out})
}

func orchestratorErrorStatus(err error) int {
	switch {
	case errors.Is(err, registry.ErrUnknownStrategy):
		return http.StatusNotFound
	case errors.Is(err, orchestrator.ErrNoAssets),
		errors.Is(err, orchestrator.ErrLengthMismatch),
		errors.Is(err, orchestrator.ErrInvalidBps),
		errors.Is(err, registry.ErrStrategyInactive),
		errors.Is(err, vault.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, orchestrator.ErrInsufficientFeeBalance),
		errors.Is(err, vault.ErrInsufficientLiquidity),
		errors.Is(err, vault.ErrAllocationLimit):
		return http.StatusUnprocessableEntity
	case errors.Is(err, guard.ErrReentrantCall):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

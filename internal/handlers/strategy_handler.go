package handlers

import (
	"errors"
	"net/http"

	"chainvault-backend/internal/registry"

	"github.com/gin-gonic/gin"
)

// StrategyHandler exposes strategy registry CRUD
type StrategyHandler struct {
	registry *registry.Registry
}

// NewStrategyHandler creates a new StrategyHandler
func NewStrategyHandler(r *registry.Registry) *StrategyHandler {
	return &StrategyHandler{registry: r}
}

// RegisterStrategyRequest register-strategy request body
type RegisterStrategyRequest struct {
	Name           string `json:"name" binding:"required"`
	ChainID        uint32 `json:"chain_id" binding:"required"`
	AdapterKind    string `json:"adapter_kind" binding:"required"`
	AdapterAddress string `json:"adapter_address"`
}

// SetActiveRequest pause/resume request body
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// AddChainRequest supported-chain request body
type AddChainRequest struct {
	ChainID uint32 `json:"chain_id" binding:"required"`
	Name    string `json:"name" binding:"required"`
}

type strategyResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ChainID        uint32 `json:"chain_id"`
	AdapterKind    string `json:"adapter_kind"`
	AdapterAddress string `json:"adapter_address"`
	TotalAllocated string `json:"total_allocated"`
	Active         bool   `json:"active"`
	LastUpdate     string `json:"last_update"`
}

func toStrategyResponse(info *registry.StrategyInfo) strategyResponse {
	return strategyResponse{
		ID:             info.ID,
		Name:           info.Name,
		ChainID:        info.ChainID,
		AdapterKind:    info.AdapterKind,
		AdapterAddress: info.AdapterAddress,
		TotalAllocated: info.TotalAllocated.String(),
		Active:         info.Active,
		LastUpdate:     info.LastUpdate.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// RegisterStrategyHandler registers a new strategy
// POST /api/strategies
func (h *StrategyHandler) RegisterStrategyHandler(c *gin.Context) {
	var req RegisterStrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	info, err := h.registry.RegisterStrategy(c.Request.Context(), req.Name, req.ChainID, req.AdapterKind, req.AdapterAddress)
	if err != nil {
		c.JSON(registryErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"strategy": toStrategyResponse(info)})
}

// ListStrategiesHandler lists every registered strategy
// GET /api/strategies
func (h *StrategyHandler) ListStrategiesHandler(c *gin.Context) {
	infos := h.registry.Strategies()
	out := make([]strategyResponse, 0, len(infos))
	for _, info := range infos {
		out = append(out, toStrategyResponse(info))
	}
	c.JSON(http.StatusOK, gin.H{"strategies": out})
}

// GetStrategyHandler returns one strategy
// GET /api/strategies/:id
func (h *StrategyHandler) GetStrategyHandler(c *gin.Context) {
	info, err := h.registry.Strategy(c.Param("id"))
	if err != nil {
		c.JSON(registryErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"strategy": toStrategyResponse(info)})
}

// SetStrategyActiveHandler pauses or resumes a strategy
// PUT /api/strategies/:id/active
func (h *StrategyHandler) SetStrategyActiveHandler(c *gin.Context) {
	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	if err := h.registry.SetStrategyActive(c.Request.Context(), c.Param("id"), *req.Active); err != nil {
		c.JSON(registryErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"strategy_id": c.Param("id"), "active": *req.Active})
}

// AddChainHandler declares a supported destination chain
// POST /api/chains
func (h *StrategyHandler) AddChainHandler(c *gin.Context) {
	var req AddChainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	if err := h.registry.AddSupportedChain(c.Request.Context(), req.ChainID, req.Name); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"chain_id": req.ChainID, "name": req.Name})
}

// ListChainsHandler lists every supported destination chain
// GET /api/chains
func (h *StrategyHandler) ListChainsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"chains": h.registry.SupportedChains()})
}

func registryErrorStatus(err error) int {
	switch {
	case errors.Is(err, registry.ErrUnknownStrategy):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrStrategyExists):
		return http.StatusConflict
	case errors.Is(err, registry.ErrChainNotSupported),
		errors.Is(err, registry.ErrStrategyInactive):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

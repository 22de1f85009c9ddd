// Package registry holds strategy metadata and the set of destination
// chains strategies may target. Consumed by the orchestrator to resolve a
// strategy id into a target chain and a StrategyAdapter implementation.
package registry

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"sync"
	"time"

	"chainvault-backend/internal/adapters"
	"chainvault-backend/internal/models"
	"chainvault-backend/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrChainNotSupported = errors.New("destination chain not supported")
	ErrStrategyExists    = errors.New("strategy already registered")
	ErrUnknownStrategy   = errors.New("unknown strategy")
	ErrStrategyInactive  = errors.New("strategy is not active")
	ErrNoAdapter         = errors.New("no adapter bound for strategy")
)

// StrategyStore persists strategy and supported-chain rows
type StrategyStore interface {
	SaveStrategy(ctx context.Context, strategy *models.Strategy) error
	SaveSupportedChain(ctx context.Context, chain *models.SupportedChain) error
}

// StrategyInfo registered strategy, in-memory representation
type StrategyInfo struct {
	ID             string
	Name           string
	ChainID        uint32
	AdapterKind    string
	AdapterAddress string
	TotalAllocated *big.Int
	Active         bool
	LastUpdate     time.Time
}

// Registry strategy and supported-chain CRUD. Safe for concurrent reads;
// mutations take the write lock.
type Registry struct {
	mu sync.RWMutex

	localChainID    uint32
	supportedChains map[uint32]string
	strategies      map[string]*StrategyInfo
	adapterByKind   map[string]adapters.StrategyAdapter

	store StrategyStore // optional
	log   *logrus.Entry
}

// New creates a Registry for the given local chain. The local chain is
// always a supported destination.
func New(localChainID uint32, localName string) *Registry {
	return &Registry{
		localChainID:    localChainID,
		supportedChains: map[uint32]string{localChainID: localName},
		strategies:      make(map[string]*StrategyInfo),
		adapterByKind:   make(map[string]adapters.StrategyAdapter),
		log:             logrus.WithField("component", "registry"),
	}
}

// SetStore wires the optional persistence sink
func (r *Registry) SetStore(store StrategyStore) {
	r.store = store
}

// LocalChainID the chain this registry instance belongs to
func (r *Registry) LocalChainID() uint32 {
	return r.localChainID
}

// AddSupportedChain declares a destination chain strategies may target
func (r *Registry) AddSupportedChain(ctx context.Context, chainID uint32, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.supportedChains[chainID] = name
	if r.store != nil {
		if err := r.store.SaveSupportedChain(ctx, &models.SupportedChain{ChainID: chainID, Name: name}); err != nil {
			r.log.WithError(err).WithField("chain_id", chainID).Warn("Failed to persist supported chain")
		}
	}
	r.log.WithFields(logrus.Fields{"chain_id": chainID, "name": name}).Info("Destination chain supported")
	return nil
}

// SupportedChains lists the declared destination chains
func (r *Registry) SupportedChains() []models.SupportedChain {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.SupportedChain, 0, len(r.supportedChains))
	for id, name := range r.supportedChains {
		out = append(out, models.SupportedChain{ChainID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out
}

// IsChainSupported reports whether chainID is a declared destination
func (r *Registry) IsChainSupported(chainID uint32) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.supportedChains[chainID]
	return ok
}

// RegisterStrategy registers strategy metadata. The destination chain must
// have been declared supported first, bounding which remote targets the
// orchestrator may ever address.
func (r *Registry) RegisterStrategy(ctx context.Context, name string, chainID uint32, adapterKind, adapterAddress string) (*StrategyInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.supportedChains[chainID]; !ok {
		return nil, ErrChainNotSupported
	}
	for _, s := range r.strategies {
		if s.Name == name && s.ChainID == chainID {
			return nil, ErrStrategyExists
		}
	}

	info := &StrategyInfo{
		ID:             uuid.New().String(),
		Name:           name,
		ChainID:        chainID,
		AdapterKind:    adapterKind,
		AdapterAddress: adapterAddress,
		TotalAllocated: big.NewInt(0),
		Active:         true,
		LastUpdate:     time.Now(),
	}
	r.strategies[info.ID] = info
	r.persist(ctx, info)
	r.log.WithFields(logrus.Fields{
		"strategy_id": info.ID,
		"name":        name,
		"chain_id":    chainID,
		"adapter":     adapterKind,
	}).Info("Strategy registered")
	return cloneInfo(info), nil
}

// SetStrategyActive pauses or resumes a strategy
func (r *Registry) SetStrategyActive(ctx context.Context, strategyID string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.strategies[strategyID]
	if !ok {
		return ErrUnknownStrategy
	}
	info.Active = active
	info.LastUpdate = time.Now()
	r.persist(ctx, info)
	r.log.WithFields(logrus.Fields{"strategy_id": strategyID, "active": active}).Info("Strategy active flag updated")
	return nil
}

// Strategy resolves a strategy by id
func (r *Registry) Strategy(strategyID string) (*StrategyInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.strategies[strategyID]
	if !ok {
		return nil, ErrUnknownStrategy
	}
	return cloneInfo(info), nil
}

// ActiveStrategy resolves a strategy and requires it to be active
func (r *Registry) ActiveStrategy(strategyID string) (*StrategyInfo, error) {
	info, err := r.Strategy(strategyID)
	if err != nil {
		return nil, err
	}
	if !info.Active {
		return nil, ErrStrategyInactive
	}
	return info, nil
}

// Strategies lists all registered strategies
func (r *Registry) Strategies() []*StrategyInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*StrategyInfo, 0, len(r.strategies))
	for _, info := range r.strategies {
		out = append(out, cloneInfo(info))
	}
	return out
}

// BindAdapter binds a StrategyAdapter implementation to an adapter kind.
// Adapters execute on the chain the strategy lives on, so only local
// strategies resolve to an adapter on this instance.
func (r *Registry) BindAdapter(kind string, adapter adapters.StrategyAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapterByKind[kind] = adapter
}

// AdapterFor resolves the adapter for a strategy through its metadata
func (r *Registry) AdapterFor(strategyID string) (adapters.StrategyAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.strategies[strategyID]
	if !ok {
		return nil, ErrUnknownStrategy
	}
	adapter, ok := r.adapterByKind[info.AdapterKind]
	if !ok {
		return nil, ErrNoAdapter
	}
	return adapter, nil
}

// AddAllocated adjusts a strategy's aggregate allocated total by delta
// (negative to release)
func (r *Registry) AddAllocated(ctx context.Context, strategyID string, delta *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.strategies[strategyID]
	if !ok {
		return ErrUnknownStrategy
	}
	info.TotalAllocated.Add(info.TotalAllocated, delta)
	if info.TotalAllocated.Sign() < 0 {
		info.TotalAllocated.SetInt64(0)
	}
	info.LastUpdate = time.Now()
	r.persist(ctx, info)
	return nil
}

// Restore reloads registry state from persisted rows at boot
func (r *Registry) Restore(chains []models.SupportedChain, strategies []models.Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, chain := range chains {
		r.supportedChains[chain.ChainID] = chain.Name
	}
	for i := range strategies {
		row := &strategies[i]
		total, err := utils.ParseAmount(row.TotalAllocated)
		if err != nil {
			return err
		}
		r.strategies[row.ID] = &StrategyInfo{
			ID:             row.ID,
			Name:           row.Name,
			ChainID:        row.ChainID,
			AdapterKind:    row.AdapterKind,
			AdapterAddress: row.AdapterAddress,
			TotalAllocated: total,
			Active:         row.IsActive,
			LastUpdate:     row.LastUpdateTime,
		}
	}
	r.log.WithFields(logrus.Fields{
		"chains":     len(chains),
		"strategies": len(strategies),
	}).Info("Registry state restored")
	return nil
}

func (r *Registry) persist(ctx context.Context, info *StrategyInfo) {
	if r.store == nil {
		return
	}
	row := &models.Strategy{
		ID:             info.ID,
		Name:           info.Name,
		ChainID:        info.ChainID,
		AdapterKind:    info.AdapterKind,
		AdapterAddress: info.AdapterAddress,
		TotalAllocated: info.TotalAllocated.String(),
		IsActive:       info.Active,
		LastUpdateTime: info.LastUpdate,
	}
	if err := r.store.SaveStrategy(ctx, row); err != nil {
		r.log.WithError(err).WithField("strategy_id", info.ID).Warn("Failed to persist strategy row")
	}
}

func cloneInfo(info *StrategyInfo) *StrategyInfo {
	out := *info
	out.TotalAllocated = new(big.Int).Set(info.TotalAllocated)
	return &out
}

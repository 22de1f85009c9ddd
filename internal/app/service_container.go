package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"chainvault-backend/internal/adapters"
	"chainvault-backend/internal/clients"
	"chainvault-backend/internal/config"
	"chainvault-backend/internal/db"
	"chainvault-backend/internal/handlers"
	"chainvault-backend/internal/models"
	"chainvault-backend/internal/orchestrator"
	"chainvault-backend/internal/registry"
	"chainvault-backend/internal/repository"
	"chainvault-backend/internal/services"
	"chainvault-backend/internal/utils"
	"chainvault-backend/internal/vault"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
)

// OrchestratorAccount custody account used for vault <-> orchestrator
// transfers on this instance
var OrchestratorAccount = common.HexToAddress("0x000000000000000000000000000000000000CA11")

// ServiceContainer wires the engines, clients and services of one chain
// instance
type ServiceContainer struct {
	DB    *gorm.DB
	Store *repository.Store

	// Engines
	Bank     *clients.TokenBank
	Vault    *vault.Vault
	Registry *registry.Registry
	Orch     *orchestrator.Orchestrator

	// Clients
	Transport  *clients.NATSTransport
	SwapRouter *clients.StaticSwapRouter
	Oracle     *clients.PriceOracleClient

	// Services
	WebSocketPushService  *services.WebSocketPushService
	ReconciliationService *services.ReconciliationService
	ValuationService      *services.ValuationService
}

// Global service container instance
var Container *ServiceContainer
var containerOnce sync.Once

// InitializeContainer builds the container once. The database handle may
// be nil; the engines then run memory-only.
func InitializeContainer() (*ServiceContainer, error) {
	var initErr error

	containerOnce.Do(func() {
		log.Println("Initializing service container...")
		container := &ServiceContainer{DB: db.DB}

		if err := container.initEngines(); err != nil {
			initErr = fmt.Errorf("failed to initialize engines: %w", err)
			return
		}
		if err := container.initTransport(); err != nil {
			initErr = fmt.Errorf("failed to initialize transport: %w", err)
			return
		}
		container.initServices()

		if container.DB != nil {
			if err := container.restoreState(); err != nil {
				initErr = fmt.Errorf("failed to restore persisted state: %w", err)
				return
			}
		}

		Container = container
		log.Println("Service container initialized")
	})

	return Container, initErr
}

func (c *ServiceContainer) initEngines() error {
	cfg := config.AppConfig

	minShares, err := utils.ParseAmount(cfg.Vault.MinShares)
	if err != nil {
		return fmt.Errorf("invalid vault.minShares: %w", err)
	}

	c.Bank = clients.NewTokenBank(common.HexToAddress("0x000000000000000000000000000000000000Fa17"))
	c.Vault = vault.New(c.Bank, cfg.Vault.MaxAllocationBps, minShares)
	c.Registry = registry.New(cfg.Chain.ChainID, cfg.Chain.Name)

	// Every configured remote network is a declared destination.
	for name, network := range cfg.Networks {
		if err := c.Registry.AddSupportedChain(context.Background(), network.ChainID, name); err != nil {
			return err
		}
	}

	// The simulated adapter backs locally executed strategies.
	c.Registry.BindAdapter("simulated", adapters.NewSimulated(500))

	if c.DB != nil {
		c.Store = repository.NewStore(c.DB)
		c.Vault.SetStore(c.Store)
		c.Registry.SetStore(c.Store)
	}
	return nil
}

func (c *ServiceContainer) initTransport() error {
	cfg := config.AppConfig

	transport, err := clients.NewNATSTransport(cfg.NATS.URL, cfg.NATS.SubjectPrefix, cfg.Chain.ChainID)
	if err != nil {
		return err
	}
	c.Transport = transport
	c.SwapRouter = clients.NewStaticSwapRouter()
	c.Oracle = clients.NewPriceOracleClient(cfg.Oracle.URL, time.Duration(cfg.Oracle.TimeoutSeconds)*time.Second)

	pendingTTL := time.Duration(cfg.Reconciliation.PendingTTLSeconds) * time.Second
	c.Orch = orchestrator.New(cfg.Chain.ChainID, OrchestratorAccount, c.Vault, c.Registry, transport, c.SwapRouter, c.Bank, pendingTTL)
	if c.Store != nil {
		c.Orch.SetStore(c.Store)
	}

	if fee := cfg.Admin.InitialFeeBalance; fee != "" {
		amount, err := utils.ParseAmount(fee)
		if err != nil {
			return fmt.Errorf("invalid admin.initial_fee_balance: %w", err)
		}
		c.Orch.CreditFees(amount)
	}
	return nil
}

func (c *ServiceContainer) initServices() {
	cfg := config.AppConfig

	c.WebSocketPushService = services.NewWebSocketPushService()
	c.Orch.SetPushFunc(c.WebSocketPushService.BroadcastOperationUpdate)

	interval := time.Duration(cfg.Reconciliation.IntervalSeconds) * time.Second
	c.ReconciliationService = services.NewReconciliationService(c.Orch, interval)
	c.ValuationService = services.NewValuationService(c.Vault, c.Oracle)
}

// restoreState reloads the engines from the database after a restart.
// The persisted rows trail the in-memory engines only by writes that
// failed mid-flight; the engines treat them as authoritative at boot.
func (c *ServiceContainer) restoreState() error {
	ctx := context.Background()

	ledgers, err := c.Store.Ledgers.List(ctx)
	if err != nil {
		return err
	}
	positions, err := c.Store.Positions.List(ctx)
	if err != nil {
		return err
	}
	if err := c.Vault.Restore(ledgers, positions); err != nil {
		return err
	}

	chains, err := c.Store.SupportedChains.List(ctx)
	if err != nil {
		return err
	}
	strategies, err := c.Store.Strategies.List(ctx)
	if err != nil {
		return err
	}
	if err := c.Registry.Restore(chains, strategies); err != nil {
		return err
	}

	pending, err := c.Store.PendingOperations.List(ctx)
	if err != nil {
		return err
	}
	processed, err := c.Store.ProcessedMessages.List(ctx)
	if err != nil {
		return err
	}
	allocations, err := c.Store.Allocations.List(ctx)
	if err != nil {
		return err
	}

	pendingPtrs := make([]*models.PendingOperation, len(pending))
	for i := range pending {
		pendingPtrs[i] = &pending[i]
	}
	processedPtrs := make([]*models.ProcessedMessage, len(processed))
	for i := range processed {
		processedPtrs[i] = &processed[i]
	}
	allocationPtrs := make([]*models.Allocation, len(allocations))
	for i := range allocations {
		allocationPtrs[i] = &allocations[i]
	}
	return c.Orch.Restore(pendingPtrs, processedPtrs, allocationPtrs)
}

// VaultHandler builds the vault HTTP handler
func (c *ServiceContainer) VaultHandler() *handlers.VaultHandler {
	return handlers.NewVaultHandler(c.Vault, c.ValuationService)
}

// StrategyHandler builds the strategy registry HTTP handler
func (c *ServiceContainer) StrategyHandler() *handlers.StrategyHandler {
	return handlers.NewStrategyHandler(c.Registry)
}

// OrchestratorHandler builds the orchestrator HTTP handler
func (c *ServiceContainer) OrchestratorHandler() *handlers.OrchestratorHandler {
	return handlers.NewOrchestratorHandler(c.Orch)
}

// AdminAuthHandler builds the admin authentication handler
func (c *ServiceContainer) AdminAuthHandler() *handlers.AdminAuthHandler {
	return handlers.NewAdminAuthHandler()
}

// Start launches the background services and the inbound message listener
func (c *ServiceContainer) Start() error {
	c.WebSocketPushService.Start()
	c.ReconciliationService.Start()
	return c.Transport.Listen(c.Orch.OnMessage)
}

// Stop shuts the container down in reverse order
func (c *ServiceContainer) Stop() {
	if c.ReconciliationService != nil {
		c.ReconciliationService.Stop()
	}
	if c.WebSocketPushService != nil {
		c.WebSocketPushService.Stop()
	}
	if c.Transport != nil {
		c.Transport.Close()
	}
	if c.DB != nil {
		db.Close()
	}
}

package services

import (
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"chainvault-backend/internal/clients"
	"chainvault-backend/internal/models"
	"chainvault-backend/internal/orchestrator"
	"chainvault-backend/internal/registry"
	"chainvault-backend/internal/vault"
)

func newSweepFixture(t *testing.T) *orchestrator.Orchestrator {
	t.Helper()
	custody := common.HexToAddress("0x00000000000000000000000000000000000Cc001")
	account := common.HexToAddress("0x00000000000000000000000000000000000Ee001")
	bank := clients.NewTokenBank(custody)
	v := vault.New(bank, 10000, big.NewInt(0))
	r := registry.New(1, "alpha")
	return orchestrator.New(1, account, v, r, nil, nil, bank, time.Minute)
}

func TestReconciliationService_FailsExpiredOperations(t *testing.T) {
	orch := newSweepFixture(t)
	now := time.Now()
	require.NoError(t, orch.Restore([]*models.PendingOperation{{
		MessageID:     "m-1",
		Type:          models.OperationHarvestRequest,
		SourceChainID: 1,
		DestChainID:   2,
		Amount:        "0",
		Status:        models.OperationStatusPending,
		CreatedAt:     now.Add(-2 * time.Hour),
		ExpiresAt:     now.Add(-time.Hour),
	}}, nil, nil))

	svc := NewReconciliationService(orch, 10*time.Millisecond)
	svc.Start()
	defer svc.Stop()

	require.Eventually(t, func() bool {
		op, err := orch.PendingOperation("m-1")
		return err == nil && op.Status == models.OperationStatusFailed
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReconciliationService_ConcurrentStartStop(t *testing.T) {
	svc := NewReconciliationService(newSweepFixture(t), time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.Start()
		}()
	}
	wg.Wait()

	// Concurrent stops must close the loop exactly once.
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.Stop()
		}()
	}
	wg.Wait()
}

package credits

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storyreel/backend/internal/catalog"
)

// fakeLedger mirrors the store's atomic semantics in memory: the sufficiency
// check and the deduction happen under one lock, and the audit row is appended
// in the same critical section.
type fakeLedger struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*Account
	txns     []Transaction
	failWith error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{accounts: make(map[uuid.UUID]*Account)}
}

func (f *fakeLedger) getOrCreateLocked(userID uuid.UUID, starting int64) *Account {
	if acct, ok := f.accounts[userID]; ok {
		return acct
	}
	acct := &Account{
		ID:            uuid.New(),
		UserID:        userID,
		Balance:       starting,
		TotalEarned:   starting,
		TotalRealCost: decimal.Zero,
		LastUpdated:   time.Now(),
		CreatedAt:     time.Now(),
	}
	f.accounts[userID] = acct
	return acct
}

func (f *fakeLedger) GetOrCreate(_ context.Context, userID uuid.UUID, starting int64) (Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return Account{}, f.failWith
	}
	return *f.getOrCreateLocked(userID, starting), nil
}

func (f *fakeLedger) Get(_ context.Context, userID uuid.UUID) (Account, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return Account{}, false, f.failWith
	}
	acct, ok := f.accounts[userID]
	if !ok {
		return Account{}, false, nil
	}
	return *acct, true, nil
}

func (f *fakeLedger) Spend(_ context.Context, entry SpendEntry) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return 0, f.failWith
	}
	acct := f.getOrCreateLocked(entry.UserID, entry.StartingCredits)
	if acct.Balance < entry.Amount {
		return acct.Balance, ErrInsufficientBalance
	}
	acct.Balance -= entry.Amount
	acct.TotalSpent += entry.Amount
	acct.TotalRealCost = acct.TotalRealCost.Add(entry.RealCost)
	acct.LastUpdated = time.Now()
	f.txns = append(f.txns, Transaction{
		ID:          uuid.New(),
		AccountID:   acct.ID,
		Amount:      -entry.Amount,
		RealCost:    entry.RealCost,
		Type:        entry.Type,
		Provider:    entry.Provider,
		Description: entry.Description,
		ProjectID:   entry.ProjectID,
		Metadata:    entry.Metadata,
		CreatedAt:   time.Now(),
	})
	return acct.Balance, nil
}

func (f *fakeLedger) AddCredits(_ context.Context, userID uuid.UUID, amount int64, actionType catalog.ActionType, description string, starting int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return 0, f.failWith
	}
	acct, ok := f.accounts[userID]
	if !ok {
		acct = &Account{
			ID:            uuid.New(),
			UserID:        userID,
			Balance:       starting + amount,
			TotalEarned:   starting + amount,
			TotalRealCost: decimal.Zero,
		}
		f.accounts[userID] = acct
	} else {
		acct.Balance += amount
		acct.TotalEarned += amount
	}
	acct.LastUpdated = time.Now()
	f.txns = append(f.txns, Transaction{
		ID:          uuid.New(),
		AccountID:   acct.ID,
		Amount:      amount,
		RealCost:    decimal.Zero,
		Type:        actionType,
		Description: description,
		CreatedAt:   time.Now(),
	})
	return acct.Balance, nil
}

func (f *fakeLedger) TrackCost(_ context.Context, entry TrackEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	acct := f.getOrCreateLocked(entry.UserID, entry.StartingCredits)
	acct.TotalRealCost = acct.TotalRealCost.Add(entry.RealCost)
	acct.LastUpdated = time.Now()
	f.txns = append(f.txns, Transaction{
		ID:        uuid.New(),
		AccountID: acct.ID,
		Amount:    0,
		RealCost:  entry.RealCost,
		Type:      entry.Type,
		Provider:  entry.Provider,
		ProjectID: entry.ProjectID,
		Metadata:  entry.Metadata,
		CreatedAt: time.Now(),
	})
	return nil
}

func (f *fakeLedger) snapshot(userID uuid.UUID) (Account, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acct, ok := f.accounts[userID]
	if !ok {
		return Account{}, len(f.txns)
	}
	return *acct, len(f.txns)
}

type fixedStarting int64

func (s fixedStarting) StartingCredits(context.Context) int64 { return int64(s) }

type fixedPricing struct{ cost decimal.Decimal }

func (p fixedPricing) Cost(context.Context, catalog.ActionType, catalog.Provider) decimal.Decimal {
	return p.cost
}

type countingCache struct {
	mu    sync.Mutex
	count int
}

func (c *countingCache) Invalidate(context.Context, uuid.UUID) {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
}

func newTestService(ledger *fakeLedger, starting int64) *Service {
	return NewService(ledger, fixedPricing{cost: decimal.Zero}, nil, fixedStarting(starting), nil)
}

func seedAccount(t *testing.T, svc *Service) uuid.UUID {
	t.Helper()
	userID := uuid.New()
	if _, err := svc.GetOrCreateAccount(context.Background(), userID); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return userID
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestSpendCreditsDeductsAndRecords(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestService(ledger, 100)
	userID := seedAccount(t, svc)

	override := dec("0.24")
	res := svc.SpendCredits(context.Background(), SpendRequest{
		UserID:           userID,
		Amount:           27,
		Type:             catalog.ActionImage,
		Provider:         catalog.ProviderGemini,
		Description:      "scene 3 keyframe",
		RealCostOverride: &override,
	})

	if !res.Success {
		t.Fatalf("spend should succeed: %+v", res)
	}
	if res.Balance != 73 {
		t.Errorf("want balance 73, got %d", res.Balance)
	}
	if !res.RealCost.Equal(dec("0.24")) {
		t.Errorf("want real cost 0.24, got %s", res.RealCost)
	}

	acct, txnCount := ledger.snapshot(userID)
	if acct.TotalSpent != 27 {
		t.Errorf("want total spent 27, got %d", acct.TotalSpent)
	}
	if !acct.TotalRealCost.Equal(dec("0.24")) {
		t.Errorf("want total real cost 0.24, got %s", acct.TotalRealCost)
	}
	if txnCount != 1 {
		t.Fatalf("want exactly 1 transaction, got %d", txnCount)
	}
	txn := ledger.txns[0]
	if txn.Amount != -27 {
		t.Errorf("want transaction amount -27, got %d", txn.Amount)
	}
	if txn.Provider != catalog.ProviderGemini {
		t.Errorf("want provider gemini, got %s", txn.Provider)
	}
}

func TestSpendCreditsExactBalance(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestService(ledger, 27)
	userID := seedAccount(t, svc)

	res := svc.SpendCredits(context.Background(), SpendRequest{
		UserID: userID,
		Amount: 27,
		Type:   catalog.ActionImage,
	})

	if !res.Success {
		t.Fatalf("exact-balance spend should succeed: %+v", res)
	}
	if res.Balance != 0 {
		t.Errorf("want balance 0, got %d", res.Balance)
	}
}

func TestSpendCreditsInsufficientIsNoOp(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestService(ledger, 10)
	userID := seedAccount(t, svc)

	before, txnsBefore := ledger.snapshot(userID)
	res := svc.SpendCredits(context.Background(), SpendRequest{
		UserID: userID,
		Amount: 27,
		Type:   catalog.ActionImage,
	})

	if res.Success {
		t.Fatal("spend should fail on insufficient balance")
	}
	if !strings.Contains(res.Error, "Insufficient credits") {
		t.Errorf("error should mention insufficient credits, got %q", res.Error)
	}
	if res.Balance != 10 {
		t.Errorf("want reported balance 10, got %d", res.Balance)
	}

	after, txnsAfter := ledger.snapshot(userID)
	if after.Balance != before.Balance || after.TotalSpent != before.TotalSpent || !after.TotalRealCost.Equal(before.TotalRealCost) {
		t.Error("failed spend must not change account state")
	}
	if txnsAfter != txnsBefore {
		t.Error("failed spend must not write a transaction")
	}
}

func TestSpendCreditsRejectsNonPositiveAmount(t *testing.T) {
	svc := newTestService(newFakeLedger(), 100)

	for _, amount := range []int64{0, -5} {
		res := svc.SpendCredits(context.Background(), SpendRequest{
			UserID: uuid.New(),
			Amount: amount,
			Type:   catalog.ActionImage,
		})
		if res.Success {
			t.Errorf("amount %d should be rejected", amount)
		}
	}
}

func TestSpendCreditsBatchPartialSuccess(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestService(ledger, 60)
	userID := seedAccount(t, svc)

	succeeded := 0
	for i := 0; i < 5; i++ {
		res := svc.SpendCredits(context.Background(), SpendRequest{
			UserID: userID,
			Amount: 27,
			Type:   catalog.ActionImage,
		})
		if res.Success {
			succeeded++
		}
	}

	if succeeded != 2 {
		t.Errorf("want exactly 2 successful spends, got %d", succeeded)
	}
	acct, txnCount := ledger.snapshot(userID)
	if acct.Balance != 6 {
		t.Errorf("want final balance 6, got %d", acct.Balance)
	}
	if txnCount != 2 {
		t.Errorf("want 2 transactions, got %d", txnCount)
	}
}

func TestSpendCreditsResolvesCostFromPricingTable(t *testing.T) {
	ledger := newFakeLedger()
	svc := NewService(ledger, fixedPricing{cost: dec("0.05")}, nil, fixedStarting(100), nil)
	userID := seedAccount(t, svc)

	res := svc.SpendCredits(context.Background(), SpendRequest{
		UserID:   userID,
		Amount:   25,
		Type:     catalog.ActionImage,
		Provider: catalog.ProviderModal,
	})

	if !res.Success {
		t.Fatalf("spend should succeed: %+v", res)
	}
	if !res.RealCost.Equal(dec("0.05")) {
		t.Errorf("want pricing-table cost 0.05, got %s", res.RealCost)
	}
}

func TestSpendCreditsPersistenceFailure(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestService(ledger, 100)
	userID := seedAccount(t, svc)

	ledger.failWith = context.DeadlineExceeded
	res := svc.SpendCredits(context.Background(), SpendRequest{
		UserID: userID,
		Amount: 10,
		Type:   catalog.ActionImage,
	})

	if res.Success {
		t.Fatal("persistence failure must not report success")
	}
	if res.Error != genericSpendError {
		t.Errorf("persistence details must not leak, got %q", res.Error)
	}

	ledger.failWith = nil
	acct, txnCount := ledger.snapshot(userID)
	if acct.Balance != 100 || txnCount != 0 {
		t.Error("failed spend must leave no partial state")
	}
}

func TestSpendCreditsInvalidatesBalanceCache(t *testing.T) {
	ledger := newFakeLedger()
	cache := &countingCache{}
	svc := NewService(ledger, fixedPricing{cost: decimal.Zero}, cache, fixedStarting(100), nil)
	userID := seedAccount(t, svc)

	svc.SpendCredits(context.Background(), SpendRequest{UserID: userID, Amount: 10, Type: catalog.ActionImage})
	if cache.count != 1 {
		t.Errorf("successful spend should invalidate the balance cache once, got %d", cache.count)
	}

	svc.SpendCredits(context.Background(), SpendRequest{UserID: userID, Amount: 1000, Type: catalog.ActionImage})
	if cache.count != 1 {
		t.Errorf("failed spend should not invalidate the cache, got %d", cache.count)
	}
}

func TestTrackRealCostOnlyLeavesBalanceUntouched(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestService(ledger, 100)
	userID := seedAccount(t, svc)

	res := svc.TrackRealCostOnly(context.Background(), TrackRequest{
		UserID:   userID,
		RealCost: dec("0.24"),
		Type:     catalog.ActionImage,
		Provider: catalog.ProviderGemini,
		Metadata: Metadata{PrepaidRegeneration: true, SceneID: "scene-7"},
	})

	if !res.Success {
		t.Fatalf("track should succeed: %+v", res)
	}
	acct, txnCount := ledger.snapshot(userID)
	if acct.Balance != 100 {
		t.Errorf("balance must stay 100, got %d", acct.Balance)
	}
	if acct.TotalSpent != 0 {
		t.Errorf("total spent must stay 0, got %d", acct.TotalSpent)
	}
	if !acct.TotalRealCost.Equal(dec("0.24")) {
		t.Errorf("want total real cost 0.24, got %s", acct.TotalRealCost)
	}
	if txnCount != 1 {
		t.Fatalf("want 1 transaction, got %d", txnCount)
	}
	txn := ledger.txns[0]
	if txn.Amount != 0 {
		t.Errorf("cost-only transaction must have amount 0, got %d", txn.Amount)
	}
	if !txn.Metadata.PrepaidRegeneration {
		t.Error("prepaid regeneration flag must be preserved")
	}
}

func TestAddCreditsNewAccountBakesGrantIntoInitialBalance(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestService(ledger, 100)
	userID := uuid.New()

	res := svc.AddCredits(context.Background(), userID, 50, catalog.ActionBonus, "launch promo")

	if !res.Success {
		t.Fatalf("grant should succeed: %+v", res)
	}
	if res.Balance != 150 {
		t.Errorf("new account should hold starting+grant = 150, got %d", res.Balance)
	}
	acct, txnCount := ledger.snapshot(userID)
	if acct.TotalEarned != 150 {
		t.Errorf("want total earned 150, got %d", acct.TotalEarned)
	}
	if txnCount != 1 || ledger.txns[0].Amount != 50 {
		t.Error("grant must record one positive transaction for the granted amount")
	}
}

func TestAddCreditsExistingAccount(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestService(ledger, 100)
	userID := seedAccount(t, svc)

	res := svc.AddCredits(context.Background(), userID, 200, catalog.ActionSubscriptionRenewal, "monthly renewal")

	if !res.Success || res.Balance != 300 {
		t.Fatalf("want balance 300, got %+v", res)
	}
}

func TestCheckBalance(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestService(ledger, 100)
	userID := seedAccount(t, svc)

	check, err := svc.CheckBalance(context.Background(), userID, 60)
	if err != nil {
		t.Fatalf("check balance: %v", err)
	}
	if !check.HasEnough || check.Balance != 100 || check.Required != 60 {
		t.Errorf("unexpected check result: %+v", check)
	}

	check, err = svc.CheckBalance(context.Background(), userID, 600)
	if err != nil {
		t.Fatalf("check balance: %v", err)
	}
	if check.HasEnough {
		t.Error("600 required should exceed balance 100")
	}

	// Unknown user reports the grant it would receive, without creating a row.
	check, err = svc.CheckBalance(context.Background(), uuid.New(), 60)
	if err != nil {
		t.Fatalf("check balance: %v", err)
	}
	if !check.HasEnough || check.Balance != 100 {
		t.Errorf("missing account should report starting credits: %+v", check)
	}
	if len(ledger.accounts) != 1 {
		t.Error("check balance must not create accounts")
	}
}

func TestConcurrentSpendsExactlyOneWins(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestService(ledger, 50)
	userID := seedAccount(t, svc)

	var wg sync.WaitGroup
	results := make([]SpendResult, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.SpendCredits(context.Background(), SpendRequest{
				UserID: userID,
				Amount: 50,
				Type:   catalog.ActionVideo,
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, res := range results {
		if res.Success {
			wins++
		} else if !strings.Contains(res.Error, "Insufficient credits") {
			t.Errorf("loser must see an insufficient-credits outcome, got %q", res.Error)
		}
	}
	if wins != 1 {
		t.Fatalf("exactly one concurrent spend must win, got %d", wins)
	}
	acct, txnCount := ledger.snapshot(userID)
	if acct.Balance != 0 {
		t.Errorf("want final balance 0, got %d", acct.Balance)
	}
	if txnCount != 1 {
		t.Errorf("want exactly one transaction, got %d", txnCount)
	}
}

func TestBalanceNeverNegativeUnderRandomSequence(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestService(ledger, 40)
	userID := seedAccount(t, svc)
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 300; i++ {
		switch rng.Intn(3) {
		case 0:
			svc.SpendCredits(context.Background(), SpendRequest{
				UserID: userID,
				Amount: int64(rng.Intn(30) + 1),
				Type:   catalog.ActionImage,
			})
		case 1:
			svc.AddCredits(context.Background(), userID, int64(rng.Intn(20)+1), catalog.ActionBonus, "")
		default:
			svc.TrackRealCostOnly(context.Background(), TrackRequest{
				UserID:   userID,
				RealCost: dec("0.01"),
				Type:     catalog.ActionImage,
			})
		}
		acct, _ := ledger.snapshot(userID)
		if acct.Balance < 0 {
			t.Fatalf("balance went negative at step %d: %d", i, acct.Balance)
		}
	}
}

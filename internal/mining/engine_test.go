package mining

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tapmine/backend/internal/models"
)

// ---------------------------------------------------------------------------
// In-memory mocks for AccountRepo, BoostRepo and PointRepo.
// These let us test the real Engine logic without a database.
// ---------------------------------------------------------------------------

type mockAccounts struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*models.Account
}

func newMockAccounts(accs ...*models.Account) *mockAccounts {
	m := &mockAccounts{accounts: make(map[uuid.UUID]*models.Account)}
	for _, a := range accs {
		cp := *a
		m.accounts[a.ID] = &cp
	}
	return m
}

func (m *mockAccounts) GetByIDForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.accounts[id]
	return &cp, nil
}

func (m *mockAccounts) UpdateSettlement(_ context.Context, _ pgx.Tx, a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.accounts[a.ID]
	stored.Points = a.Points
	stored.Level = a.Level
	stored.LastSettledAt = a.LastSettledAt
	return nil
}

func (m *mockAccounts) get(id uuid.UUID) models.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.accounts[id]
}

type mockBoosts struct {
	instances []*models.BoostInstance
}

func (m *mockBoosts) ActiveForAccountTx(_ context.Context, _ pgx.Tx, _ uuid.UUID, at time.Time) ([]*models.BoostInstance, error) {
	var out []*models.BoostInstance
	for _, inst := range m.instances {
		if inst.ActiveAt(at) {
			out = append(out, inst)
		}
	}
	return out, nil
}

type mockPoints struct {
	mu      sync.Mutex
	entries []*models.PointEntry
}

func (m *mockPoints) CreateTx(_ context.Context, _ pgx.Tx, e *models.PointEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockPoints) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func boostAt(start time.Time, hours, multiplierPermille int) *models.BoostInstance {
	return &models.BoostInstance{
		ID:       uuid.New(),
		StartsAt: start,
		EndsAt:   start.Add(time.Duration(hours) * time.Hour),
		Active:   true,
		Definition: &models.BoostDefinition{
			ID:                 uuid.New(),
			MultiplierPermille: multiplierPermille,
			DurationHours:      hours,
		},
	}
}

// ---------------------------------------------------------------------------
// Pure accrual math
// ---------------------------------------------------------------------------

func TestUnitsElapsed(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		now  time.Time
		want int
	}{
		{"same instant", base, 0},
		{"now before checkpoint", base.Add(-time.Hour), 0},
		{"just under one unit", base.Add(59*time.Minute + 59*time.Second), 0},
		{"exactly one unit", base.Add(time.Hour), 1},
		{"under four units", base.Add(3*time.Hour + 59*time.Minute), 3},
		{"exactly four units", base.Add(4 * time.Hour), 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := UnitsElapsed(base, tc.now); got != tc.want {
				t.Errorf("UnitsElapsed(%v): got %d, want %d", tc.now.Sub(base), got, tc.want)
			}
		})
	}
}

func TestSettleUnitBoundaryAccrual(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	acc := &models.Account{ID: uuid.New(), BaseRate: 10, LastSettledAt: start}

	// 3h59m elapsed: three whole units credited, checkpoint lands on the
	// boundary, not on now.
	credited := Settle(acc, nil, start.Add(3*time.Hour+59*time.Minute))
	if credited != 30 {
		t.Errorf("credited: got %d, want 30", credited)
	}
	if acc.Points != 30 {
		t.Errorf("points: got %d, want 30", acc.Points)
	}
	if want := start.Add(3 * time.Hour); !acc.LastSettledAt.Equal(want) {
		t.Errorf("checkpoint: got %v, want %v", acc.LastSettledAt, want)
	}

	// The residual 59 minutes keep accruing: one more unit at T+4h.
	credited = Settle(acc, nil, start.Add(4*time.Hour))
	if credited != 10 {
		t.Errorf("second settle credited: got %d, want 10", credited)
	}
	if acc.Points != 40 {
		t.Errorf("points after second settle: got %d, want 40", acc.Points)
	}
}

func TestSettleIdempotentWithinUnit(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	acc := &models.Account{ID: uuid.New(), BaseRate: 10, LastSettledAt: start}

	now := start.Add(2 * time.Hour)
	if credited := Settle(acc, nil, now); credited != 20 {
		t.Fatalf("first settle: got %d, want 20", credited)
	}
	if credited := Settle(acc, nil, now); credited != 0 {
		t.Errorf("repeat settle at same instant: got %d, want 0", credited)
	}
	if acc.Points != 20 {
		t.Errorf("points: got %d, want 20", acc.Points)
	}
}

func TestSettleWithBoostMultipliers(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	acc := &models.Account{ID: uuid.New(), BaseRate: 10, LastSettledAt: start}
	now := start.Add(time.Hour)

	// 1500 then 1333 permille: running 1000 -> 1500 -> 1999, rate = 19.
	instances := []*models.BoostInstance{
		boostAt(start, 24, 1500),
		boostAt(start, 24, 1333),
	}
	if credited := Settle(acc, instances, now); credited != 19 {
		t.Errorf("boosted settle: got %d, want 19", credited)
	}
}

func TestSettleLevelsUp(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	acc := &models.Account{ID: uuid.New(), Level: 1, Points: 990, BaseRate: 10, LastSettledAt: start}

	Settle(acc, nil, start.Add(time.Hour))
	if acc.Points != 1000 {
		t.Fatalf("points: got %d, want 1000", acc.Points)
	}
	if acc.Level != 2 {
		t.Errorf("level: got %d, want 2", acc.Level)
	}
}

// ---------------------------------------------------------------------------
// Engine (transactional wrapper)
// ---------------------------------------------------------------------------

func TestEngineSettleTx(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	id := uuid.New()
	accs := newMockAccounts(&models.Account{ID: id, Level: 1, BaseRate: 10, LastSettledAt: start})
	points := &mockPoints{}
	engine := NewEngine(accs, &mockBoosts{}, points)

	ctx := context.Background()
	acc, credited, err := engine.SettleTx(ctx, nil, id, start.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("SettleTx: %v", err)
	}
	if credited != 20 || acc.Points != 20 {
		t.Errorf("credited/points: got %d/%d, want 20/20", credited, acc.Points)
	}
	if got := accs.get(id); got.Points != 20 {
		t.Errorf("persisted points: got %d, want 20", got.Points)
	}
	if points.count() != 1 {
		t.Errorf("ledger entries: got %d, want 1", points.count())
	}
	entry := points.entries[0]
	if entry.EntryType != models.PointEntryMiningReward || entry.Amount != 20 {
		t.Errorf("ledger entry: got %s/%d, want %s/20", entry.EntryType, entry.Amount, models.PointEntryMiningReward)
	}

	// No boundary crossed since: no-op, no extra ledger entry.
	_, credited, err = engine.SettleTx(ctx, nil, id, start.Add(2*time.Hour+30*time.Minute))
	if err != nil {
		t.Fatalf("second SettleTx: %v", err)
	}
	if credited != 0 {
		t.Errorf("second settle credited: got %d, want 0", credited)
	}
	if points.count() != 1 {
		t.Errorf("ledger entries after no-op: got %d, want 1", points.count())
	}
}

func TestEngineAdvancesCheckpointAtZeroRate(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	id := uuid.New()
	accs := newMockAccounts(&models.Account{ID: id, Level: 1, BaseRate: 0, LastSettledAt: start})
	engine := NewEngine(accs, &mockBoosts{}, &mockPoints{})

	_, credited, err := engine.SettleTx(context.Background(), nil, id, start.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("SettleTx: %v", err)
	}
	if credited != 0 {
		t.Errorf("credited: got %d, want 0", credited)
	}
	if got := accs.get(id); !got.LastSettledAt.Equal(start.Add(3 * time.Hour)) {
		t.Errorf("checkpoint must advance even at zero rate: got %v", got.LastSettledAt)
	}
}

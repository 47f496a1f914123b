package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tapmine/backend/internal/boosts"
	"github.com/tapmine/backend/internal/models"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockPurchaser struct {
	instance *models.BoostInstance
	account  *models.Account
	err      error
	swept    int64
	sweeps   int
}

func (m *mockPurchaser) Purchase(_ context.Context, _ pgx.Tx, _, _ uuid.UUID, _ time.Time) (*models.BoostInstance, *models.Account, error) {
	return m.instance, m.account, m.err
}

func (m *mockPurchaser) SweepExpired(_ context.Context, _ time.Time) (int64, error) {
	m.sweeps++
	return m.swept, m.err
}

type mockBoostReader struct {
	definitions []*models.BoostDefinition
	active      []*models.BoostInstance
	all         []*models.BoostInstance
}

func (m *mockBoostReader) ListDefinitions(_ context.Context) ([]*models.BoostDefinition, error) {
	return m.definitions, nil
}

func (m *mockBoostReader) ActiveForAccount(_ context.Context, _ uuid.UUID, _ time.Time) ([]*models.BoostInstance, error) {
	return m.active, nil
}

func (m *mockBoostReader) ListForAccount(_ context.Context, _ uuid.UUID) ([]*models.BoostInstance, error) {
	return m.all, nil
}

func newBoostHandler(purchaser *mockPurchaser, repo *mockBoostReader) *BoostHandler {
	return &BoostHandler{
		Pool:    mockPool{},
		Boosts:  purchaser,
		Repo:    repo,
		Catalog: nil,
		Logger:  slog.Default(),
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestBoostPurchase(t *testing.T) {
	acc := &models.Account{ID: uuid.New(), Points: 200}
	boostID := uuid.New()
	inst := &models.BoostInstance{ID: uuid.New(), AccountID: acc.ID, BoostID: boostID, Active: true}
	h := newBoostHandler(&mockPurchaser{instance: inst, account: acc}, &mockBoostReader{})

	body := `{"boost_id":"` + boostID.String() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/account/boosts", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Purchase(rec, injectAccount(req, acc))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp purchaseBoostResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Boost.ID != inst.ID || resp.Account.Points != 200 {
		t.Errorf("response: boost=%v points=%d", resp.Boost.ID, resp.Account.Points)
	}
}

func TestBoostPurchaseErrors(t *testing.T) {
	acc := &models.Account{ID: uuid.New()}
	goodBody := `{"boost_id":"` + uuid.New().String() + `"}`

	cases := []struct {
		name       string
		body       string
		svcErr     error
		authed     bool
		wantStatus int
	}{
		{"unauthenticated", goodBody, nil, false, http.StatusUnauthorized},
		{"bad body", `{"boost_id":`, nil, true, http.StatusBadRequest},
		{"bad boost id", `{"boost_id":"nope"}`, nil, true, http.StatusBadRequest},
		{"insufficient points", goodBody, boosts.ErrInsufficientPoints, true, http.StatusPaymentRequired},
		{"unknown boost", goodBody, boosts.ErrUnknownBoost, true, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newBoostHandler(&mockPurchaser{err: tc.svcErr}, &mockBoostReader{})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/account/boosts", strings.NewReader(tc.body))
			if tc.authed {
				req = injectAccount(req, acc)
			}
			rec := httptest.NewRecorder()
			h.Purchase(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("expected %d, got %d: %s", tc.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestBoostListCatalog(t *testing.T) {
	repo := &mockBoostReader{definitions: []*models.BoostDefinition{
		{ID: uuid.New(), Name: "2x booster", MultiplierPermille: 2000, DurationHours: 24, Price: 300, Active: true},
	}}
	h := newBoostHandler(&mockPurchaser{}, repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/boosts", nil)
	rec := httptest.NewRecorder()
	h.ListCatalog(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var defs []*models.BoostDefinition
	if err := json.Unmarshal(rec.Body.Bytes(), &defs); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(defs) != 1 || defs[0].MultiplierPermille != 2000 {
		t.Errorf("catalog: got %+v", defs)
	}
}

func TestBoostListMineActiveFilter(t *testing.T) {
	acc := &models.Account{ID: uuid.New()}
	active := &models.BoostInstance{ID: uuid.New(), Active: true}
	all := []*models.BoostInstance{active, {ID: uuid.New(), Active: false}}
	repo := &mockBoostReader{active: []*models.BoostInstance{active}, all: all}
	h := newBoostHandler(&mockPurchaser{}, repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/account/boosts?active=true", nil)
	rec := httptest.NewRecorder()
	h.ListMine(rec, injectAccount(req, acc))

	var got []*models.BoostInstance
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 1 || got[0].ID != active.ID {
		t.Errorf("active filter: got %+v", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/account/boosts", nil)
	rec = httptest.NewRecorder()
	h.ListMine(rec, injectAccount(req, acc))

	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("unfiltered listing: got %d instances, want 2", len(got))
	}
}

func TestBoostSweepExpired(t *testing.T) {
	purchaser := &mockPurchaser{swept: 3}
	h := newBoostHandler(purchaser, &mockBoostReader{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/maintenance/sweep-expired-boosts", nil)
	rec := httptest.NewRecorder()
	h.SweepExpired(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]int64
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["deactivated"] != 3 || purchaser.sweeps != 1 {
		t.Errorf("sweep: got %+v, calls %d", resp, purchaser.sweeps)
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tapmine/backend/internal/accounts"
	"github.com/tapmine/backend/internal/auth"
	"github.com/tapmine/backend/internal/models"
)

// AccountProvider resolves or creates the account for a verified identity.
type AccountProvider interface {
	GetOrCreate(ctx context.Context, ident accounts.Identity, referralCode string, now time.Time) (*models.Account, bool, error)
}

// TokenIssuer mints session tokens.
type TokenIssuer interface {
	IssueToken(accountID uuid.UUID) (string, error)
}

// AuthHandler serves POST /api/v1/auth/telegram.
type AuthHandler struct {
	BotToken string
	Accounts AccountProvider
	Tokens   TokenIssuer
	Logger   *slog.Logger
}

type telegramAuthRequest struct {
	InitData     string `json:"init_data"`
	ReferralCode string `json:"referral_code"`
}

type telegramAuthResponse struct {
	Token   string          `json:"token"`
	Account *models.Account `json:"account"`
	Created bool            `json:"created"`
}

// Authenticate verifies the chat platform's signed init data and returns a
// session token, creating the account on first contact.
func (h *AuthHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req telegramAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.InitData == "" {
		writeError(w, http.StatusBadRequest, "init_data is required")
		return
	}

	now := time.Now()
	user, err := auth.VerifyInitData(req.InitData, h.BotToken, now)
	if err != nil {
		if errors.Is(err, auth.ErrStaleInitData) {
			writeError(w, http.StatusUnauthorized, "init data expired")
			return
		}
		writeError(w, http.StatusUnauthorized, "init data verification failed")
		return
	}

	ident := accounts.Identity{
		TelegramID: strconv.FormatInt(user.ID, 10),
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		Username:   user.Username,
		PhotoURL:   user.PhotoURL,
	}
	acc, created, err := h.Accounts.GetOrCreate(r.Context(), ident, req.ReferralCode, now)
	if err != nil {
		h.Logger.Error("get or create account", "error", err)
		writeError(w, http.StatusInternalServerError, "account lookup failed")
		return
	}

	token, err := h.Tokens.IssueToken(acc.ID)
	if err != nil {
		h.Logger.Error("issue token", "error", err)
		writeError(w, http.StatusInternalServerError, "token issuance failed")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, telegramAuthResponse{Token: token, Account: acc, Created: created})
}

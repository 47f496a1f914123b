package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidInitData is returned when the init data signature does not verify
// or required fields are missing.
var ErrInvalidInitData = errors.New("invalid init data")

// ErrStaleInitData is returned when auth_date is older than the allowed window.
var ErrStaleInitData = errors.New("init data expired")

// TelegramUser is the user object embedded in verified init data.
type TelegramUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	PhotoURL  string `json:"photo_url"`
}

// initDataMaxAge bounds replay of captured init data.
const initDataMaxAge = 24 * time.Hour

// VerifyInitData checks a Telegram Web App init data string against the bot
// token per the platform's HMAC scheme: secret = HMAC-SHA256(key="WebAppData",
// msg=botToken); hash = HMAC-SHA256(key=secret, msg=data-check-string), where
// the data-check-string is every field except hash, sorted, joined with '\n'.
// Returns the embedded user on success.
func VerifyInitData(initData, botToken string, now time.Time) (*TelegramUser, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, ErrInvalidInitData
	}
	gotHash := values.Get("hash")
	if gotHash == "" {
		return nil, ErrInvalidInitData
	}

	pairs := make([]string, 0, len(values))
	for key := range values {
		if key == "hash" {
			continue
		}
		pairs = append(pairs, key+"="+values.Get(key))
	}
	sort.Strings(pairs)
	checkString := strings.Join(pairs, "\n")

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(checkString))
	wantHash := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(wantHash), []byte(gotHash)) {
		return nil, ErrInvalidInitData
	}

	if authDate := values.Get("auth_date"); authDate != "" {
		unix, err := strconv.ParseInt(authDate, 10, 64)
		if err != nil {
			return nil, ErrInvalidInitData
		}
		if now.Sub(time.Unix(unix, 0)) > initDataMaxAge {
			return nil, ErrStaleInitData
		}
	}

	rawUser := values.Get("user")
	if rawUser == "" {
		return nil, ErrInvalidInitData
	}
	var user TelegramUser
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		return nil, ErrInvalidInitData
	}
	if user.ID == 0 {
		return nil, ErrInvalidInitData
	}
	return &user, nil
}

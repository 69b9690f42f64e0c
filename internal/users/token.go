package users

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/velora-oms/velora-oms/internal/shared"
)

// TokenCodec signs and verifies stateless bearer tokens of the form
// <user-id>.<expiry-unix>.<hmac-sha256>.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenCodec constructs a codec from the shared signing secret.
func NewTokenCodec(secret string, ttl time.Duration) *TokenCodec {
	return &TokenCodec{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token for the user id valid for the configured TTL.
func (c *TokenCodec) Issue(userID uuid.UUID, now time.Time) string {
	expiry := now.Add(c.ttl).Unix()
	payload := fmt.Sprintf("%s.%d", userID, expiry)
	return payload + "." + c.sign(payload)
}

// Verify checks the signature and expiry and returns the embedded user id.
func (c *TokenCodec) Verify(token string, now time.Time) (uuid.UUID, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return uuid.Nil, shared.ErrInvalidCredentials
	}
	payload := parts[0] + "." + parts[1]
	if !hmac.Equal([]byte(c.sign(payload)), []byte(parts[2])) {
		return uuid.Nil, shared.ErrInvalidCredentials
	}
	expiry, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || now.Unix() > expiry {
		return uuid.Nil, shared.ErrInvalidCredentials
	}
	id, err := uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, shared.ErrInvalidCredentials
	}
	return id, nil
}

func (c *TokenCodec) sign(payload string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"
)

// AuthConfig enables HMAC request signing. A signed request carries
// four headers; the signature is hex(hmac-sha256(secret,
// "<userId>|<timestamp>|<nonce>")). Timestamps outside the tolerance
// window are rejected to limit replay.
type AuthConfig struct {
	Secret    string
	Tolerance time.Duration
}

// Signature headers.
const (
	HeaderUserID    = "X-Auth-UserId"
	HeaderTimestamp = "X-Auth-Timestamp"
	HeaderNonce     = "X-Auth-Nonce"
	HeaderSign      = "X-Auth-Sign"
)

// Sign computes the signature for a header triple. Clients and tests
// use it to build signed requests.
func (a *AuthConfig) Sign(userID, timestamp, nonce string) string {
	mac := hmac.New(sha256.New, []byte(a.Secret))
	mac.Write([]byte(userID + "|" + timestamp + "|" + nonce))
	return hex.EncodeToString(mac.Sum(nil))
}

// Middleware rejects requests without a valid signature.
func (a *AuthConfig) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(HeaderUserID)
		timestamp := r.Header.Get(HeaderTimestamp)
		nonce := r.Header.Get(HeaderNonce)
		sign := r.Header.Get(HeaderSign)

		if userID == "" || timestamp == "" || nonce == "" || sign == "" {
			writeError(w, http.StatusForbidden, "missing auth headers")
			return
		}

		ts, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			writeError(w, http.StatusForbidden, "invalid auth timestamp")
			return
		}
		skew := time.Since(time.Unix(ts, 0))
		if skew < 0 {
			skew = -skew
		}
		if skew > a.Tolerance {
			writeError(w, http.StatusForbidden, "auth timestamp outside tolerance")
			return
		}

		expected := a.Sign(userID, timestamp, nonce)
		if !hmac.Equal([]byte(expected), []byte(sign)) {
			writeError(w, http.StatusForbidden, "invalid signature")
			return
		}

		next.ServeHTTP(w, r)
	})
}

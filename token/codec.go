package token

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Prefix tags attribution tokens so foreign or truncated strings are rejected
// before any decoding work.
const Prefix = "rt1."

// ErrInvalidToken is returned for any token that does not decode to a
// device/code/timestamp triple.
var ErrInvalidToken = errors.New("invalid attribution token")

// Encode serializes the attribution triple into a single opaque token string.
// The encoding is reversible and carries no integrity stamp — the claim path
// cross-checks the token verbatim against the stored attribution instead.
func Encode(deviceID, referralCode string, issuedAt time.Time) string {
	raw := fmt.Sprintf("%s|%s|%d", deviceID, referralCode, issuedAt.UnixNano())
	return Prefix + base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Decode recovers the triple encoded by Encode. Any malformed input — missing
// prefix, bad base64, wrong field count, unparsable timestamp — yields
// ErrInvalidToken rather than a partial result.
func Decode(tok string) (deviceID, referralCode string, issuedAt time.Time, err error) {
	if !strings.HasPrefix(tok, Prefix) {
		return "", "", time.Time{}, ErrInvalidToken
	}
	raw, decErr := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(tok, Prefix))
	if decErr != nil {
		return "", "", time.Time{}, ErrInvalidToken
	}
	parts := strings.Split(string(raw), "|")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return "", "", time.Time{}, ErrInvalidToken
	}
	ns, parseErr := strconv.ParseInt(parts[2], 10, 64)
	if parseErr != nil {
		return "", "", time.Time{}, ErrInvalidToken
	}
	return parts[0], parts[1], time.Unix(0, ns).UTC(), nil
}

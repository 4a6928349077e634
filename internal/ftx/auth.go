package ftx

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Credentials sign private requests. Subaccount is optional.
type Credentials struct {
	Key        string
	Secret     string
	Subaccount string
}

// Headers returns the auth headers for a request. The signature is
// HMAC-SHA256(secret, ts+method+requestURI+body) hex encoded, where ts is
// unix milliseconds and requestURI includes the /api prefix and query.
func (c Credentials) Headers(method, requestURI, body string, now time.Time) map[string]string {
	ts := strconv.FormatInt(now.UnixMilli(), 10)
	headers := map[string]string{
		"FTX-KEY":  c.Key,
		"FTX-TS":   ts,
		"FTX-SIGN": sign(c.Secret, ts+method+requestURI+body),
	}
	if c.Subaccount != "" {
		headers["FTX-SUBACCOUNT"] = url.PathEscape(c.Subaccount)
	}
	return headers
}

func (c Credentials) String() string {
	redact := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return fmt.Sprintf("Credentials{key=%s, secret=%s, subaccount=%s}", redact(c.Key), redact(c.Secret), c.Subaccount)
}

func sign(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

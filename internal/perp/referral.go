package perp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var ErrNoReferralCode = errors.New("no referral code")

// ReferralCode looks up the trader's referral code. A 404 or a response
// without a code yields ErrNoReferralCode.
func ReferralCode(ctx context.Context, client *http.Client, baseURL string, trader common.Address) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	endpoint := strings.TrimRight(baseURL, "/") + "/referrers/" + url.PathEscape(trader.Hex())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("referral lookup: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNoReferralCode
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("referral lookup: http %d: %s", resp.StatusCode, string(body))
	}
	var payload struct {
		ReferralCode string `json:"referralCode"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode referral: %w", err)
	}
	if payload.ReferralCode == "" {
		return "", ErrNoReferralCode
	}
	return payload.ReferralCode, nil
}

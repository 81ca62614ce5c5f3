// Package burn requests permanent destruction of DCT amounts through the
// external burn webhook.
package burn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dctlabs/dct-backend/api/apperr"
	"github.com/dctlabs/dct-backend/api/metrics"
)

// Client calls the burn webhook.
type Client struct {
	webhookURL  string
	tokenMaster string
	httpClient  *http.Client
}

// NewClient creates a burn client. tokenMaster is the jetton master address
// of the token being burned.
func NewClient(webhookURL, tokenMaster string) *Client {
	return &Client{
		webhookURL:  webhookURL,
		tokenMaster: tokenMaster,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

type burnRequest struct {
	Amount      float64 `json:"amount"`
	TokenMaster string  `json:"token_master"`
	TxHash      string  `json:"tx_hash"`
}

// Execute requests destruction of the given DCT amount, referencing the
// originating payment transaction. A zero amount short-circuits without
// calling the webhook; any non-success response is a hard failure.
func (c *Client) Execute(ctx context.Context, amount float64, originTxHash string) error {
	if amount == 0 {
		return nil
	}
	if amount < 0 {
		return apperr.Errorf(apperr.KindInternal, "burn: negative amount %f", amount)
	}

	body, err := json.Marshal(burnRequest{Amount: amount, TokenMaster: c.tokenMaster, TxHash: originTxHash})
	if err != nil {
		return fmt.Errorf("marshal burn request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return apperr.Wrap(apperr.KindUpstream, "burn webhook request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.RecordUpstreamRequest("burn_webhook", time.Since(start), err)
	if err != nil {
		return apperr.Wrap(apperr.KindUpstream, "burn webhook request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperr.Errorf(apperr.KindUpstream, "burn webhook returned status %d", resp.StatusCode)
	}
	return nil
}

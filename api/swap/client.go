// Package swap issues currency swaps through the external router service.
package swap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dctlabs/dct-backend/api/apperr"
	"github.com/dctlabs/dct-backend/api/metrics"
)

// Leg tags identify the two independent swap legs of a settlement.
const (
	TagAutoInvest  = "auto-invest"
	TagBuybackBurn = "buyback-burn"
)

// Result is the outcome of one swap leg.
type Result struct {
	// OutAmount is the destination-token (DCT) amount received.
	OutAmount float64
	// SpentNano is the source amount actually spent, in nanotons.
	SpentNano int64
	// SwapTxHash identifies the swap transaction on-chain.
	SwapTxHash string
}

// LegResults holds both joined legs of a settlement.
type LegResults struct {
	Invest Result
	Burn   Result
}

// Client talks to the swap router.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a router client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type swapRequest struct {
	Tag        string `json:"tag"`
	AmountNano int64  `json:"amount_nano"`
	Ref        string `json:"ref"`
}

type swapResponse struct {
	OK        bool     `json:"ok"`
	OutAmount *float64 `json:"out_amount"`
	SpentNano *int64   `json:"spent_nano"`
	SwapTx    string   `json:"swap_tx"`
	Error     string   `json:"error,omitempty"`
}

// SwapBoth issues the invest and burn legs concurrently and joins them.
// Either leg failing fails the whole call; nothing downstream of the swaps
// may start until both legs have completed.
func (c *Client) SwapBoth(ctx context.Context, investNano, burnNano int64, ref string) (LegResults, error) {
	var results LegResults

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := c.swap(gctx, TagAutoInvest, investNano, ref)
		if err != nil {
			return err
		}
		results.Invest = res
		return nil
	})
	g.Go(func() error {
		res, err := c.swap(gctx, TagBuybackBurn, burnNano, ref)
		if err != nil {
			return err
		}
		results.Burn = res
		return nil
	})

	if err := g.Wait(); err != nil {
		return LegResults{}, err
	}
	return results, nil
}

// swap executes one leg. A zero-amount leg short-circuits to a zero result
// without calling the router.
func (c *Client) swap(ctx context.Context, tag string, amountNano int64, ref string) (Result, error) {
	if amountNano == 0 {
		return Result{}, nil
	}
	if amountNano < 0 {
		return Result{}, apperr.Errorf(apperr.KindInternal, "swap %s: negative amount %d", tag, amountNano)
	}

	body, err := json.Marshal(swapRequest{Tag: tag, AmountNano: amountNano, Ref: ref})
	if err != nil {
		return Result{}, fmt.Errorf("marshal swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/swap", bytes.NewReader(body))
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindUpstream, "swap router request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.RecordUpstreamRequest("swap_router", time.Since(start), err)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindUpstream, fmt.Sprintf("swap router request failed (%s)", tag), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, apperr.Errorf(apperr.KindUpstream, "swap router returned status %d (%s)", resp.StatusCode, tag)
	}

	var out swapResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, apperr.Wrap(apperr.KindUpstream, fmt.Sprintf("swap router returned malformed response (%s)", tag), err)
	}
	if !out.OK {
		msg := out.Error
		if msg == "" {
			msg = "swap rejected"
		}
		return Result{}, apperr.Errorf(apperr.KindUpstream, "swap router error (%s): %s", tag, msg)
	}

	// A well-formed leg must report what was received, what was spent, and
	// the swap transaction; anything missing aborts the settlement.
	if out.OutAmount == nil || *out.OutAmount < 0 {
		return Result{}, apperr.Errorf(apperr.KindUpstream, "swap router response missing destination amount (%s)", tag)
	}
	if out.SpentNano == nil || *out.SpentNano < 0 {
		return Result{}, apperr.Errorf(apperr.KindUpstream, "swap router response missing spent amount (%s)", tag)
	}
	if out.SwapTx == "" {
		return Result{}, apperr.Errorf(apperr.KindUpstream, "swap router response missing swap transaction id (%s)", tag)
	}

	return Result{OutAmount: *out.OutAmount, SpentNano: *out.SpentNano, SwapTxHash: out.SwapTx}, nil
}

package swap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dctlabs/dct-backend/api/apperr"
)

// fakeRouter records every swap request and answers per leg tag.
type fakeRouter struct {
	mu       sync.Mutex
	requests []swapRequest
	respond  func(req swapRequest) (int, string)
}

func (f *fakeRouter) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/swap", r.URL.Path)

		var req swapRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		f.mu.Lock()
		f.requests = append(f.requests, req)
		f.mu.Unlock()

		status, body := f.respond(req)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func (f *fakeRouter) seen() []swapRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]swapRequest(nil), f.requests...)
}

func okBody(out float64, spent int64, tx string) string {
	return fmt.Sprintf(`{"ok":true,"out_amount":%f,"spent_nano":%d,"swap_tx":%q}`, out, spent, tx)
}

func TestSwapBoth_BothLegs(t *testing.T) {
	t.Parallel()

	router := &fakeRouter{respond: func(req swapRequest) (int, string) {
		switch req.Tag {
		case TagAutoInvest:
			return http.StatusOK, okBody(1234.5, req.AmountNano, "invest-tx")
		case TagBuybackBurn:
			return http.StatusOK, okBody(350.25, req.AmountNano, "burn-tx")
		default:
			return http.StatusBadRequest, `{"ok":false,"error":"unknown tag"}`
		}
	}}
	srv := httptest.NewServer(router.handler(t))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL)
	legs, err := client.SwapBoth(context.Background(), 629_300_000_000, 179_800_000_000, "payment-tx")
	require.NoError(t, err)

	assert.Equal(t, Result{OutAmount: 1234.5, SpentNano: 629_300_000_000, SwapTxHash: "invest-tx"}, legs.Invest)
	assert.Equal(t, Result{OutAmount: 350.25, SpentNano: 179_800_000_000, SwapTxHash: "burn-tx"}, legs.Burn)

	seen := router.seen()
	require.Len(t, seen, 2)
	for _, req := range seen {
		assert.Equal(t, "payment-tx", req.Ref)
	}
}

func TestSwapBoth_ZeroLegShortCircuits(t *testing.T) {
	t.Parallel()

	router := &fakeRouter{respond: func(req swapRequest) (int, string) {
		return http.StatusOK, okBody(10, req.AmountNano, "tx")
	}}
	srv := httptest.NewServer(router.handler(t))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL)
	legs, err := client.SwapBoth(context.Background(), 100, 0, "ref")
	require.NoError(t, err)

	assert.Equal(t, Result{}, legs.Burn)
	assert.Equal(t, "tx", legs.Invest.SwapTxHash)

	seen := router.seen()
	require.Len(t, seen, 1)
	assert.Equal(t, TagAutoInvest, seen[0].Tag)
}

func TestSwapBoth_OneLegFailureFailsBoth(t *testing.T) {
	t.Parallel()

	router := &fakeRouter{respond: func(req swapRequest) (int, string) {
		if req.Tag == TagBuybackBurn {
			return http.StatusOK, `{"ok":false,"error":"insufficient liquidity"}`
		}
		return http.StatusOK, okBody(10, req.AmountNano, "tx")
	}}
	srv := httptest.NewServer(router.handler(t))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL)
	_, err := client.SwapBoth(context.Background(), 100, 200, "ref")
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "insufficient liquidity")
}

func TestSwap_ResponseValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "missing out amount", body: `{"ok":true,"spent_nano":5,"swap_tx":"tx"}`},
		{name: "negative out amount", body: `{"ok":true,"out_amount":-1,"spent_nano":5,"swap_tx":"tx"}`},
		{name: "missing spent", body: `{"ok":true,"out_amount":10,"swap_tx":"tx"}`},
		{name: "missing swap tx", body: `{"ok":true,"out_amount":10,"spent_nano":5}`},
		{name: "malformed json", body: `{nope`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			router := &fakeRouter{respond: func(swapRequest) (int, string) {
				return http.StatusOK, tt.body
			}}
			srv := httptest.NewServer(router.handler(t))
			t.Cleanup(srv.Close)

			client := NewClient(srv.URL)
			_, err := client.swap(context.Background(), TagAutoInvest, 100, "ref")
			require.Error(t, err)
			assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
		})
	}
}

func TestSwap_ServerError(t *testing.T) {
	t.Parallel()

	router := &fakeRouter{respond: func(swapRequest) (int, string) {
		return http.StatusBadGateway, "bad gateway"
	}}
	srv := httptest.NewServer(router.handler(t))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL)
	_, err := client.swap(context.Background(), TagBuybackBurn, 100, "ref")
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
}

func TestSwap_NegativeAmount(t *testing.T) {
	t.Parallel()

	client := NewClient("http://unused.invalid")
	_, err := client.swap(context.Background(), TagAutoInvest, -1, "ref")
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

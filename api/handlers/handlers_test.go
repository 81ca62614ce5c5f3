package handlers

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/dctlabs/dct-backend/api/burn"
	"github.com/dctlabs/dct-backend/api/config"
	"github.com/dctlabs/dct-backend/api/store"
	"github.com/dctlabs/dct-backend/api/swap"
	"github.com/dctlabs/dct-backend/api/ton"
)

const (
	testDomain    = "app.example.com"
	testPrincipal = "tg:12345"
)

var (
	testTreasuryAddr = ton.Address{Workchain: 0, Hash: seqHash(0xaa)}.Raw()
	testMasterAddr   = ton.Address{Workchain: 0, Hash: seqHash(0xcc)}.Raw()
)

func seqHash(seed byte) [32]byte {
	var h [32]byte
	for i := range h {
		h[i] = seed + byte(i)
	}
	return h
}

type env struct {
	h     *Handler
	mem   *store.Memory
	clock *clockwork.FakeClock
	app   *config.App

	router http.Handler
}

type envOption func(*env)

func withCollaborators(indexerURL, swapURL, burnURL string) envOption {
	return func(e *env) {
		e.app.IndexerURL = indexerURL
		e.app.SwapRouterURL = swapURL
		e.app.BurnWebhook = burnURL
	}
}

func withApp(mutate func(*config.App)) envOption {
	return func(e *env) { mutate(e.app) }
}

// newEnv wires a handler set against the in-memory store, a fake clock, and
// collaborator URLs that refuse connections unless overridden.
func newEnv(t *testing.T, opts ...envOption) *env {
	t.Helper()

	e := &env{
		mem:   store.NewMemory(),
		clock: clockwork.NewFakeClockAt(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)),
		app: &config.App{
			ListenAddr:     "127.0.0.1:0",
			IndexerURL:     "http://indexer.invalid",
			SwapRouterURL:  "http://router.invalid",
			BurnWebhook:    "http://burn.invalid",
			TreasuryWallet: testTreasuryAddr,
			DCTMaster:      testMasterAddr,
			EpochLength:    24 * time.Hour,
			EpochRewardCap: 240000,
			AllowedDomains: []string{testDomain},
			ChallengeTTL:   5 * time.Minute,
			JettonNetwork:  "mainnet",
		},
	}
	for _, opt := range opts {
		opt(e)
	}

	h, err := New(Config{
		Log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:   e.clock,
		Store:   e.mem,
		App:     e.app,
		Indexer: ton.NewIndexerClient(e.app.IndexerURL),
		Swapper: swap.NewClient(e.app.SwapRouterURL),
		Burner:  burn.NewClient(e.app.BurnWebhook, e.app.DCTMaster),
	})
	require.NoError(t, err)

	e.h = h
	e.router = h.Router()
	return e
}

// post sends a JSON POST through the full router and decodes the response
// body into out (may be nil).
func (e *env) post(t *testing.T, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	if out != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

// errorBody extracts the error message from a failed response.
func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

// testWallet is an ed25519 keypair posing as a TON wallet.
type testWallet struct {
	pubHex  string
	priv    ed25519.PrivateKey
	address string
}

func newWallet(t *testing.T, seed byte) *testWallet {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return &testWallet{
		pubHex:  hex.EncodeToString(pub),
		priv:    priv,
		address: ton.Address{Workchain: 0, Hash: seqHash(seed)}.Raw(),
	}
}

// signedProof builds a wallet-signed proof over the given payload.
func (w *testWallet) signedProof(t *testing.T, domain, payload string, ts time.Time) walletProof {
	t.Helper()
	proof := ton.Proof{
		Timestamp:    ts.Unix(),
		Domain:       domain,
		DomainLength: uint32(len(domain)),
		Payload:      payload,
	}
	sig, err := ton.SignProof(w.priv, w.address, proof)
	require.NoError(t, err)
	return walletProof{
		Timestamp: proof.Timestamp,
		Domain:    proofDomain{Value: domain, LengthBytes: uint32(len(domain))},
		Payload:   payload,
		Signature: sig,
	}
}

// issueChallenge requests a fresh challenge for the principal.
func (e *env) issueChallenge(t *testing.T, principalID string) string {
	t.Helper()
	var resp walletChallengeResponse
	rec := e.post(t, "/api/wallet/challenge", walletChallengeRequest{PrincipalID: principalID}, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, resp.Payload)
	return resp.Payload
}

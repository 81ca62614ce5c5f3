package ton

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dctlabs/dct-backend/api/apperr"
	"github.com/dctlabs/dct-backend/api/metrics"
)

// NanotonsPerTON is the number of minor units in one TON.
const NanotonsPerTON = 1_000_000_000

// Indexers report amounts in either nanotons or whole TON depending on the
// endpoint version. No real payment is below 0.01 TON, so any value of at
// least 1e7 is taken to already be in nanotons.
const minorUnitThreshold = 10_000_000

// underpaymentEpsilonNano absorbs float rounding in indexer responses, not
// real underpayment: 0.01 TON.
const underpaymentEpsilonNano = 10_000_000

// PaymentReceipt is the transient result of a successful payment lookup.
type PaymentReceipt struct {
	AmountNano int64
	Payer      string
	BlockTime  time.Time
}

// IndexerClient looks up on-chain transactions through the external indexer.
type IndexerClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewIndexerClient creates a client for the given indexer base URL.
func NewIndexerClient(baseURL string) *IndexerClient {
	return &IndexerClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// indexerTx is the transaction shape returned by the indexer. Amount may be
// a number or a string, in nanotons or TON.
type indexerTx struct {
	Hash        string      `json:"hash"`
	Destination string      `json:"destination"`
	Source      string      `json:"source"`
	Amount      json.Number `json:"amount"`
	BlockTime   int64       `json:"block_time"`
}

type indexerResponse struct {
	OK          bool       `json:"ok"`
	Transaction *indexerTx `json:"transaction"`
	Error       string     `json:"error,omitempty"`
}

// VerifyPayment confirms that the transaction paid at least expectedNano
// nanotons to expectedDest. Collaborator failures surface as upstream
// errors; mismatches in the looked-up transaction surface as validation
// errors with a caller-readable message.
func (c *IndexerClient) VerifyPayment(ctx context.Context, txHash, expectedDest string, expectedNano int64) (*PaymentReceipt, error) {
	tx, err := c.lookupTransaction(ctx, txHash)
	if err != nil {
		return nil, err
	}

	if tx.Destination == "" {
		return nil, apperr.New(apperr.KindValidation, "transaction has no destination")
	}
	same, err := SameAccount(tx.Destination, expectedDest)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "unparsable destination address", err)
	}
	if !same {
		return nil, apperr.New(apperr.KindValidation, "payment destination does not match treasury wallet")
	}

	amountNano, err := normalizeAmount(tx.Amount)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "transaction has no parsable amount", err)
	}
	if amountNano < expectedNano-underpaymentEpsilonNano {
		return nil, apperr.Errorf(apperr.KindValidation,
			"payment amount %.2f TON is below expected %.2f TON",
			float64(amountNano)/NanotonsPerTON, float64(expectedNano)/NanotonsPerTON)
	}

	receipt := &PaymentReceipt{
		AmountNano: amountNano,
		Payer:      tx.Source,
	}
	if tx.BlockTime > 0 {
		receipt.BlockTime = time.Unix(tx.BlockTime, 0).UTC()
	}
	return receipt, nil
}

func (c *IndexerClient) lookupTransaction(ctx context.Context, txHash string) (*indexerTx, error) {
	u := fmt.Sprintf("%s/api/v1/transactions?hash=%s", c.baseURL, url.QueryEscape(txHash))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "indexer request failed", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.RecordUpstreamRequest("indexer", time.Since(start), err)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "indexer request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Errorf(apperr.KindUpstream, "indexer returned status %d", resp.StatusCode)
	}

	var body indexerResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "indexer returned malformed response", err)
	}
	if !body.OK || body.Transaction == nil {
		msg := body.Error
		if msg == "" {
			msg = "transaction not found"
		}
		return nil, apperr.Errorf(apperr.KindValidation, "indexer lookup failed: %s", msg)
	}
	return body.Transaction, nil
}

// normalizeAmount converts an indexer-reported amount to nanotons, deciding
// the unit by magnitude.
func normalizeAmount(raw json.Number) (int64, error) {
	if raw.String() == "" {
		return 0, fmt.Errorf("missing amount")
	}
	if n, err := raw.Int64(); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative amount %q", raw.String())
		}
		if n >= minorUnitThreshold {
			return n, nil
		}
		return n * NanotonsPerTON, nil
	}
	f, err := strconv.ParseFloat(raw.String(), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", raw.String(), err)
	}
	if f < 0 {
		return 0, fmt.Errorf("negative amount %q", raw.String())
	}
	if f >= minorUnitThreshold {
		return int64(math.Round(f)), nil
	}
	return int64(math.Round(f * NanotonsPerTON)), nil
}

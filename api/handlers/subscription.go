package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dctlabs/dct-backend/api/apperr"
	"github.com/dctlabs/dct-backend/api/metrics"
	"github.com/dctlabs/dct-backend/api/store"
	"github.com/dctlabs/dct-backend/api/swap"
	"github.com/dctlabs/dct-backend/api/ton"
	"github.com/dctlabs/dct-backend/api/treasury"
)

type processSubscriptionRequest struct {
	PrincipalID string `json:"principalId"`
	Plan        string `json:"plan"`
	TxHash      string `json:"txHash"`
}

type processSubscriptionResponse struct {
	OK bool `json:"ok"`
}

// PostProcessSubscription settles one subscription payment: verify the
// on-chain transaction, split the treasury, run both swap legs, burn the
// buyback, and persist the ledger. Nothing is persisted until every
// collaborator step has succeeded, so there is no rollback path; a duplicate
// txHash fails loudly at the subscription insert.
func (h *Handler) PostProcessSubscription(w http.ResponseWriter, r *http.Request) {
	var req processSubscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if req.PrincipalID == "" || req.TxHash == "" {
		h.respondError(w, r, apperr.New(apperr.KindValidation, "principalId and txHash are required"))
		return
	}
	plan, ok := PlanByName(req.Plan)
	if !ok {
		h.respondError(w, r, apperr.Errorf(apperr.KindValidation, "unsupported plan %q", req.Plan))
		return
	}

	err := h.settle(r.Context(), req, plan)
	metrics.RecordSettlement(plan.Name, err)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, processSubscriptionResponse{OK: true})
}

func (h *Handler) settle(ctx context.Context, req processSubscriptionRequest, plan Plan) error {
	// Verify the payment against the indexer before touching anything else.
	receipt, err := h.indexer.VerifyPayment(ctx, req.TxHash, h.app.TreasuryWallet, plan.PriceNano)
	if err != nil {
		return fmt.Errorf("payment verification: %w", err)
	}

	// Split under the administrator-configured control record.
	treasuryCfg, err := h.store.TreasuryConfig(ctx)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to load treasury config", err)
	}
	split, err := treasuryCfg.Split(receipt.AmountNano)
	if err != nil {
		return fmt.Errorf("treasury split: %w", err)
	}

	// The two swap legs are independent and run concurrently; both must
	// complete before anything is persisted.
	legs, err := h.swapper.SwapBoth(ctx, split.InvestNano, split.BurnNano, req.TxHash)
	if err != nil {
		return fmt.Errorf("swap: %w", err)
	}

	if err := h.burner.Execute(ctx, legs.Burn.OutAmount, req.TxHash); err != nil {
		return fmt.Errorf("burn: %w", err)
	}

	return h.writeSettlement(ctx, req, plan, receipt, split, legs)
}

func (h *Handler) writeSettlement(
	ctx context.Context,
	req processSubscriptionRequest,
	plan Plan,
	receipt *ton.PaymentReceipt,
	split treasury.Split,
	legs swap.LegResults,
) error {
	now := h.clock.Now().UTC()

	principalID, err := h.store.PrincipalIDByExternal(ctx, req.PrincipalID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.Errorf(apperr.KindNotFound, "unknown principal %q", req.PrincipalID)
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to resolve principal", err)
	}

	sub := &store.Subscription{
		PrincipalID:    principalID,
		Plan:           plan.Name,
		AmountPaidNano: receipt.AmountNano,
		TxHash:         req.TxHash,
		DCTBought:      legs.Invest.OutAmount,
		DCTBurned:      legs.Burn.OutAmount,
		OpsNano:        split.OpsNano,
		Status:         store.SubscriptionActive,
		CreatedAt:      now,
	}
	if err := h.store.CreateSubscription(ctx, sub); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return apperr.Errorf(apperr.KindConflict, "transaction %s is already settled", req.TxHash)
		}
		return apperr.Wrap(apperr.KindInternal, "failed to create subscription", err)
	}

	stake := &store.Stake{
		PrincipalID:    principalID,
		SubscriptionID: sub.ID,
		AmountNano:     receipt.AmountNano,
		LockUntil:      now.AddDate(0, plan.LockMonths, 0),
		Weight:         plan.Weight,
		Status:         store.StakeActive,
		CreatedAt:      now,
	}
	if err := h.store.CreateStake(ctx, stake); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to create stake", err)
	}

	// Audit rows carry enough meta to reconstruct the settlement from the
	// log alone.
	baseMeta := map[string]any{
		"principal":  req.PrincipalID,
		"plan":       plan.Name,
		"payment_tx": req.TxHash,
		"payer":      receipt.Payer,
		"unit":       "nanoton",
	}
	if !receipt.BlockTime.IsZero() {
		baseMeta["block_time"] = receipt.BlockTime.Format(time.RFC3339)
	}

	entries := []store.TxLogEntry{
		{
			Kind:   store.TxKindOpsTransfer,
			RefID:  &sub.ID,
			Amount: float64(split.OpsNano),
			Meta:   withMeta(baseMeta, map[string]any{"destination": h.app.TreasuryWallet}),
		},
		{
			Kind:   store.TxKindBuyback,
			RefID:  &sub.ID,
			Amount: legs.Invest.OutAmount,
			Meta: withMeta(baseMeta, map[string]any{
				"unit":       "dct",
				"spent_nano": legs.Invest.SpentNano,
				"swap_tx":    legs.Invest.SwapTxHash,
			}),
		},
		{
			Kind:   store.TxKindBurn,
			RefID:  &sub.ID,
			Amount: legs.Burn.OutAmount,
			Meta: withMeta(baseMeta, map[string]any{
				"unit":         "dct",
				"spent_nano":   legs.Burn.SpentNano,
				"swap_tx":      legs.Burn.SwapTxHash,
				"token_master": h.app.DCTMaster,
			}),
		},
		{
			Kind:   store.TxKindStakeCredit,
			RefID:  &sub.ID,
			Amount: float64(stake.AmountNano),
			Meta: withMeta(baseMeta, map[string]any{
				"lock_until": stake.LockUntil.Format(time.RFC3339),
				"weight":     stake.Weight,
			}),
		},
	}
	for i := range entries {
		if err := h.store.AppendTxLog(ctx, &entries[i]); err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to append tx log", err)
		}
	}

	h.notifySettlement(ctx, req, plan, receipt, legs)

	h.log.Info("subscription settled",
		"principal", req.PrincipalID,
		"plan", plan.Name,
		"tx", req.TxHash,
		"amount_nano", receipt.AmountNano,
		"dct_bought", legs.Invest.OutAmount,
		"dct_burned", legs.Burn.OutAmount,
	)
	return nil
}

// notifySettlement posts a summary to the operator channel. Best-effort:
// failure is logged but never fails the settlement.
func (h *Handler) notifySettlement(ctx context.Context, req processSubscriptionRequest, plan Plan, receipt *ton.PaymentReceipt, legs swap.LegResults) {
	if h.notifier == nil {
		return
	}
	text := fmt.Sprintf(
		"<b>New subscription</b>\nPlan: %s\nPaid: %.2f TON\nDCT bought: %.2f\nDCT burned: %.2f\nTx: <code>%s</code>",
		plan.Name, float64(receipt.AmountNano)/ton.NanotonsPerTON,
		legs.Invest.OutAmount, legs.Burn.OutAmount, req.TxHash,
	)
	if err := h.notifier.SendMessage(ctx, text); err != nil {
		h.log.Warn("settlement notification failed", "tx", req.TxHash, "error", err)
	}
}

func withMeta(base map[string]any, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/dctlabs/dct-backend/api/apperr"
	"github.com/dctlabs/dct-backend/api/store"
	"github.com/dctlabs/dct-backend/api/ton"
)

// Proof freshness: how far in the past the wallet's proof timestamp may lie,
// and how much forward clock skew is tolerated.
const (
	proofFreshness   = 15 * time.Minute
	allowedClockSkew = 5 * time.Minute
)

type proofDomain struct {
	Value       string `json:"value"`
	LengthBytes uint32 `json:"lengthBytes"`
}

type walletProof struct {
	Timestamp int64       `json:"timestamp"`
	Domain    proofDomain `json:"domain"`
	Payload   string      `json:"payload"`
	Signature string      `json:"signature"`
}

type walletVerifyRequest struct {
	PrincipalID string      `json:"principalId"`
	Address     string      `json:"address"`
	PublicKey   string      `json:"publicKey"`
	Proof       walletProof `json:"proof"`
}

type walletVerifyResponse struct {
	OK      bool   `json:"ok"`
	Address string `json:"address"`
}

// PostWalletVerify validates a wallet-ownership proof against the
// principal's live challenge and links the wallet to the principal. The
// checks run in a fixed order and each failure carries its own class so
// operators can tell expiry from phishing from ownership conflicts.
func (h *Handler) PostWalletVerify(w http.ResponseWriter, r *http.Request) {
	var req walletVerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if req.PrincipalID == "" || req.Address == "" || req.PublicKey == "" ||
		req.Proof.Payload == "" || req.Proof.Signature == "" {
		h.respondError(w, r, apperr.New(apperr.KindValidation, "principalId, address, publicKey and proof are required"))
		return
	}

	ctx := r.Context()
	now := h.clock.Now().UTC()

	// 1. The proof must reference the principal's live challenge. A missing
	// or superseded payload reads the same as an expired one to the caller.
	ch, err := h.store.ChallengeByPayload(ctx, req.PrincipalID, req.Proof.Payload)
	if errors.Is(err, store.ErrNotFound) {
		h.respondError(w, r, apperr.New(apperr.KindAuth, "challenge expired or not found"))
		return
	}
	if err != nil {
		h.respondError(w, r, apperr.Wrap(apperr.KindInternal, "failed to load challenge", err))
		return
	}

	// 2. Challenge and proof timestamp freshness.
	if !now.Before(ch.ExpiresAt) {
		h.respondError(w, r, apperr.New(apperr.KindAuth, "challenge expired"))
		return
	}
	proofTime := time.Unix(req.Proof.Timestamp, 0).UTC()
	if proofTime.Before(now.Add(-proofFreshness)) || proofTime.After(now.Add(allowedClockSkew)) {
		h.respondError(w, r, apperr.New(apperr.KindAuth, "proof expired"))
		return
	}

	// 3. Domain allow-list. Surfaced as forbidden, distinct from expiry, so
	// relay/phishing attempts are visible in logs.
	if !h.allowedDomains[req.Proof.Domain.Value] {
		h.respondError(w, r, apperr.Errorf(apperr.KindForbidden, "domain %q is not allowed", req.Proof.Domain.Value))
		return
	}
	if int(req.Proof.Domain.LengthBytes) != len(req.Proof.Domain.Value) {
		h.respondError(w, r, apperr.New(apperr.KindForbidden, "domain length mismatch"))
		return
	}

	// 4. The address must parse before anything is checked against it; a
	// malformed address is a caller error, not a failed proof.
	addr, err := ton.ParseAddress(req.Address)
	if err != nil {
		h.respondError(w, r, apperr.Wrap(apperr.KindValidation, "invalid address", err))
		return
	}
	canonical := addr.Raw()

	// 5. Signature over the canonical proof message.
	proof := ton.Proof{
		Timestamp:    req.Proof.Timestamp,
		Domain:       req.Proof.Domain.Value,
		DomainLength: req.Proof.Domain.LengthBytes,
		Payload:      req.Proof.Payload,
		Signature:    req.Proof.Signature,
	}
	if err := ton.VerifyProof(req.PublicKey, canonical, proof); err != nil {
		h.respondError(w, r, apperr.Wrap(apperr.KindAuth, "invalid signature", err))
		return
	}

	// 6. An address linked to a different principal is never reassigned.
	existing, err := h.store.WalletLinkByAddress(ctx, canonical)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.respondError(w, r, apperr.Wrap(apperr.KindInternal, "failed to look up wallet link", err))
		return
	}
	if existing != nil && existing.PrincipalID != req.PrincipalID {
		h.respondError(w, r, apperr.New(apperr.KindForbidden, "wallet is already linked to another account"))
		return
	}

	// A verified wallet link is the entry point for a principal: first-time
	// callers get their principal row here, before settlement references it.
	if _, err := h.store.EnsurePrincipal(ctx, req.PrincipalID); err != nil {
		h.respondError(w, r, apperr.Wrap(apperr.KindInternal, "failed to ensure principal", err))
		return
	}

	link := store.WalletLink{
		PrincipalID: req.PrincipalID,
		Address:     canonical,
		PublicKey:   req.PublicKey,
		UpdatedAt:   now,
	}
	if err := h.store.UpsertWalletLink(ctx, link); err != nil {
		h.respondError(w, r, apperr.Wrap(apperr.KindInternal, "failed to store wallet link", err))
		return
	}

	// 7. Consume the challenge so the payload cannot be replayed.
	if err := h.store.ConsumeChallenge(ctx, ch.ID, now); err != nil {
		h.respondError(w, r, apperr.Wrap(apperr.KindInternal, "failed to consume challenge", err))
		return
	}

	h.log.Info("wallet linked", "principal", req.PrincipalID, "address", canonical)
	h.respondJSON(w, http.StatusOK, walletVerifyResponse{OK: true, Address: canonical})
}

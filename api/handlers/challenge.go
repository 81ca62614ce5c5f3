package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dctlabs/dct-backend/api/apperr"
	"github.com/dctlabs/dct-backend/api/store"
)

type walletChallengeRequest struct {
	PrincipalID string `json:"principalId"`
}

type walletChallengeResponse struct {
	Payload   string    `json:"payload"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// PostWalletChallenge issues a fresh wallet-verification challenge for the
// principal, invalidating any prior one. At most one live challenge exists
// per principal at any time.
func (h *Handler) PostWalletChallenge(w http.ResponseWriter, r *http.Request) {
	var req walletChallengeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if req.PrincipalID == "" {
		h.respondError(w, r, apperr.New(apperr.KindValidation, "principalId is required"))
		return
	}

	payload, err := generateChallengePayload()
	if err != nil {
		h.respondError(w, r, apperr.Wrap(apperr.KindInternal, "failed to generate challenge", err))
		return
	}

	now := h.clock.Now().UTC()
	ch := store.Challenge{
		ID:          uuid.New(),
		PrincipalID: req.PrincipalID,
		Payload:     payload,
		ExpiresAt:   now.Add(h.app.ChallengeTTL),
		CreatedAt:   now,
	}
	if err := h.store.ReplaceChallenge(r.Context(), ch); err != nil {
		h.respondError(w, r, apperr.Wrap(apperr.KindInternal, "failed to store challenge", err))
		return
	}

	h.respondJSON(w, http.StatusOK, walletChallengeResponse{
		Payload:   ch.Payload,
		ExpiresAt: ch.ExpiresAt,
	})
}

// generateChallengePayload returns a cryptographically random opaque payload.
func generateChallengePayload() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

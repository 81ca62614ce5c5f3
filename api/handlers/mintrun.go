package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dctlabs/dct-backend/api/apperr"
	"github.com/dctlabs/dct-backend/api/store"
)

// mintRunInput is the merged parameter set for one mint run start. Pointer
// fields distinguish "omitted" from "explicitly set": omitted fields keep the
// existing run's value, or the default when no run exists yet.
type mintRunInput struct {
	Key        string
	Initiator  *string
	Note       *string
	ContentRef *string
	Priority   *int
}

type mintRunView struct {
	Key         string     `json:"key"`
	Status      string     `json:"status"`
	Initiator   string     `json:"initiator,omitempty"`
	Note        string     `json:"note,omitempty"`
	ContentRef  string     `json:"contentRef,omitempty"`
	Priority    int        `json:"priority,omitempty"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type mintRunResponse struct {
	OK        bool        `json:"ok"`
	Run       mintRunView `json:"run"`
	Unchanged bool        `json:"unchanged,omitempty"`
}

func viewMintRun(run *store.MintRun) mintRunView {
	return mintRunView{
		Key:         run.Key,
		Status:      run.Status,
		Initiator:   run.Initiator,
		Note:        run.Note,
		ContentRef:  run.ContentRef,
		Priority:    run.Priority,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		UpdatedAt:   run.UpdatedAt,
	}
}

type themeMintRequest struct {
	MintIndex  *int    `json:"mintIndex"`
	Initiator  *string `json:"initiator"`
	Note       *string `json:"note"`
	ContentRef *string `json:"contentRef"`
	Priority   *int    `json:"priority"`
}

// PostStartThemeMint starts or re-asserts the theme-pass mint run for one
// mint index.
func (h *Handler) PostStartThemeMint(w http.ResponseWriter, r *http.Request) {
	var req themeMintRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if req.MintIndex == nil || *req.MintIndex < 0 {
		h.respondError(w, r, apperr.New(apperr.KindValidation, "mintIndex is required"))
		return
	}

	h.startMintRun(w, r, mintRunInput{
		Key:        fmt.Sprintf("theme:%d", *req.MintIndex),
		Initiator:  req.Initiator,
		Note:       req.Note,
		ContentRef: req.ContentRef,
		Priority:   req.Priority,
	})
}

type jettonMintRequest struct {
	Network    string  `json:"network"`
	Initiator  *string `json:"initiator"`
	Note       *string `json:"note"`
	ContentRef *string `json:"contentRef"`
	Priority   *int    `json:"priority"`
}

// PostStartJettonMint starts or re-asserts the jetton-minter run. Only the
// configured network is accepted; anything else is rejected before the state
// machine is touched.
func (h *Handler) PostStartJettonMint(w http.ResponseWriter, r *http.Request) {
	var req jettonMintRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if req.Network == "" {
		h.respondError(w, r, apperr.New(apperr.KindValidation, "network is required"))
		return
	}
	if req.Network != h.app.JettonNetwork {
		h.respondError(w, r, apperr.Errorf(apperr.KindForbidden, "network %q is not allowed", req.Network))
		return
	}

	h.startMintRun(w, r, mintRunInput{
		Key:        "jetton:" + req.Network,
		Initiator:  req.Initiator,
		Note:       req.Note,
		ContentRef: req.ContentRef,
		Priority:   req.Priority,
	})
}

// startMintRun drives the shared run state machine: none -> in_progress ->
// completed, with completed terminal. Repeating a start with no meaningful
// change is a no-op that returns the existing run without writing anything.
func (h *Handler) startMintRun(w http.ResponseWriter, r *http.Request, in mintRunInput) {
	ctx := r.Context()
	now := h.clock.Now().UTC()

	existing, err := h.store.MintRunByKey(ctx, in.Key)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.respondError(w, r, apperr.Wrap(apperr.KindInternal, "failed to load mint run", err))
		return
	}
	if existing != nil && existing.Status == store.MintRunCompleted {
		h.respondError(w, r, apperr.Errorf(apperr.KindConflict, "mint run %s is already completed", in.Key))
		return
	}

	next := mergeMintRun(existing, in)
	if existing != nil && !hasMeaningfulChange(existing, next) {
		h.respondJSON(w, http.StatusOK, mintRunResponse{OK: true, Run: viewMintRun(existing), Unchanged: true})
		return
	}

	firstStart := existing == nil || existing.Status != store.MintRunInProgress
	if firstStart {
		next.StartedAt = now
	} else {
		next.StartedAt = existing.StartedAt
	}
	next.Status = store.MintRunInProgress
	next.CompletedAt = nil
	next.UpdatedAt = now

	if err := h.store.UpsertMintRun(ctx, next); err != nil {
		h.respondError(w, r, apperr.Wrap(apperr.KindInternal, "failed to store mint run", err))
		return
	}

	if firstStart {
		entry := store.TxLogEntry{
			Kind: store.TxKindMintRunStarted,
			Meta: map[string]any{
				"key":       next.Key,
				"initiator": next.Initiator,
			},
		}
		if err := h.store.AppendTxLog(ctx, &entry); err != nil {
			h.respondError(w, r, apperr.Wrap(apperr.KindInternal, "failed to append mint run log", err))
			return
		}
	}

	h.log.Info("mint run started", "key", next.Key, "initiator", next.Initiator, "restated", !firstStart)
	h.respondJSON(w, http.StatusOK, mintRunResponse{OK: true, Run: viewMintRun(next)})
}

// mergeMintRun builds the candidate run: fields present in the input win,
// otherwise the existing run's value is kept, otherwise the default.
func mergeMintRun(existing *store.MintRun, in mintRunInput) *store.MintRun {
	next := &store.MintRun{Key: in.Key}
	if existing != nil {
		next.Initiator = existing.Initiator
		next.Note = existing.Note
		next.ContentRef = existing.ContentRef
		next.Priority = existing.Priority
	}
	if in.Initiator != nil {
		next.Initiator = *in.Initiator
	}
	if in.Note != nil {
		next.Note = *in.Note
	}
	if in.ContentRef != nil {
		next.ContentRef = *in.ContentRef
	}
	if in.Priority != nil {
		next.Priority = *in.Priority
	}
	return next
}

// hasMeaningfulChange reports whether writing next would change anything
// observable about the existing run. A run that is not yet in progress always
// counts as changed, since the write flips its status.
func hasMeaningfulChange(existing *store.MintRun, next *store.MintRun) bool {
	if existing == nil {
		return true
	}
	if existing.Status != store.MintRunInProgress {
		return true
	}
	return existing.Initiator != next.Initiator ||
		existing.Note != next.Note ||
		existing.ContentRef != next.ContentRef ||
		existing.Priority != next.Priority
}

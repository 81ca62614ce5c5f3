package handlers

import (
	"net/http"

	"github.com/dctlabs/dct-backend/api/apperr"
	"github.com/dctlabs/dct-backend/api/metrics"
	"github.com/dctlabs/dct-backend/api/store"
)

type distributeEpochResponse struct {
	OK     bool    `json:"ok"`
	Epoch  int64   `json:"epoch"`
	Total  float64 `json:"total"`
	Reason string  `json:"reason,omitempty"`
}

// PostDistributeEpoch distributes the per-epoch reward cap across all active
// stakes, proportional to stake amount times plan weight. The epoch index is
// derived from the clock, so re-running within the same epoch overwrites the
// same emission row instead of paying twice.
func (h *Handler) PostDistributeEpoch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.clock.Now().UTC()
	epoch := now.UnixMilli() / h.app.EpochLength.Milliseconds()

	stakes, err := h.store.ActiveStakes(ctx)
	if err != nil {
		h.respondError(w, r, apperr.Wrap(apperr.KindInternal, "failed to list active stakes", err))
		return
	}
	if len(stakes) == 0 {
		h.respondJSON(w, http.StatusOK, distributeEpochResponse{
			OK: true, Epoch: epoch, Reason: "no active stakes",
		})
		return
	}

	var totalWeight float64
	for _, st := range stakes {
		totalWeight += float64(st.AmountNano) * st.Weight
	}
	if totalWeight <= 0 {
		h.respondJSON(w, http.StatusOK, distributeEpochResponse{
			OK: true, Epoch: epoch, Reason: "no weight",
		})
		return
	}

	rewardCap := h.app.EpochRewardCap
	if err := h.store.UpsertEmission(ctx, store.Emission{
		Epoch:         epoch,
		TotalReward:   rewardCap,
		DistributedAt: now,
	}); err != nil {
		h.respondError(w, r, apperr.Wrap(apperr.KindInternal, "failed to record emission", err))
		return
	}

	for i := range stakes {
		st := &stakes[i]
		reward := float64(st.AmountNano) * st.Weight * rewardCap / totalWeight
		entry := store.TxLogEntry{
			Kind:   store.TxKindEpochReward,
			RefID:  &st.ID,
			Amount: reward,
			Meta: map[string]any{
				"epoch":      epoch,
				"unit":       "dct",
				"principal":  st.PrincipalID.String(),
				"stake_nano": st.AmountNano,
				"weight":     st.Weight,
			},
		}
		if err := h.store.AppendTxLog(ctx, &entry); err != nil {
			h.respondError(w, r, apperr.Wrap(apperr.KindInternal, "failed to append reward log", err))
			return
		}
	}

	metrics.EpochRewardsDistributed.Add(rewardCap)
	h.log.Info("epoch rewards distributed", "epoch", epoch, "stakes", len(stakes), "total", rewardCap)
	h.respondJSON(w, http.StatusOK, distributeEpochResponse{OK: true, Epoch: epoch, Total: rewardCap})
}

// Package store defines the datastore contracts for the backend and its two
// implementations: Postgres for production and an in-memory fake for tests.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dctlabs/dct-backend/api/treasury"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when an insert violates a uniqueness
	// constraint, e.g. a second settlement for the same tx hash.
	ErrDuplicate = errors.New("store: duplicate")
)

// Challenge is a short-lived wallet-verification challenge. At most one live
// challenge exists per principal.
type Challenge struct {
	ID          uuid.UUID
	PrincipalID string // external principal identifier
	Payload     string
	ExpiresAt   time.Time
	VerifiedAt  *time.Time
	CreatedAt   time.Time
}

// WalletLink binds a wallet address to a principal. An address linked to one
// principal is never reassigned to another.
type WalletLink struct {
	PrincipalID string // external principal identifier
	Address     string // canonical raw form
	PublicKey   string
	UpdatedAt   time.Time
}

// Subscription statuses.
const (
	SubscriptionActive = "active"
)

// Subscription records one settled payment. TxHash is unique: it is the
// idempotency boundary for double submission.
type Subscription struct {
	ID             uuid.UUID
	PrincipalID    uuid.UUID
	Plan           string
	AmountPaidNano int64
	TxHash         string
	DCTBought      float64
	DCTBurned      float64
	OpsNano        int64
	Status         string
	CreatedAt      time.Time
}

// Stake statuses.
const (
	StakeActive = "active"
)

// Stake is the position credited alongside a subscription. Weight and lock
// duration are a pure function of the plan.
type Stake struct {
	ID             uuid.UUID
	PrincipalID    uuid.UUID
	SubscriptionID uuid.UUID
	AmountNano     int64
	LockUntil      time.Time
	Weight         float64
	Status         string
	CreatedAt      time.Time
}

// Transaction log kinds.
const (
	TxKindOpsTransfer    = "ops_transfer"
	TxKindBuyback        = "buyback"
	TxKindBurn           = "burn"
	TxKindStakeCredit    = "stake_credit"
	TxKindEpochReward    = "epoch_reward"
	TxKindMintRunStarted = "mint_run_started"
)

// TxLogEntry is one row of the append-only audit trail. Meta carries enough
// context to reconstruct the operation from the log alone.
type TxLogEntry struct {
	ID        int64
	Kind      string
	RefID     *uuid.UUID
	Amount    float64
	Meta      map[string]any
	CreatedAt time.Time
}

// Emission records one epoch's reward distribution. Epoch is unique; a
// re-run overwrites rather than double-pays.
type Emission struct {
	Epoch         int64
	TotalReward   float64
	DistributedAt time.Time
}

// Mint run statuses. A completed run is terminal.
const (
	MintRunInProgress = "in_progress"
	MintRunCompleted  = "completed"
)

// MintRun tracks a long-lived external minting operation by key.
type MintRun struct {
	Key         string
	Status      string
	Initiator   string
	Note        string
	ContentRef  string
	Priority    int
	StartedAt   time.Time
	CompletedAt *time.Time
	UpdatedAt   time.Time
}

// Store is the datastore contract consumed by the handlers. Write-level
// idempotency (tx hash, epoch, mint key) is enforced by the implementation's
// uniqueness constraints.
type Store interface {
	// ReplaceChallenge deletes every prior challenge for the principal and
	// inserts ch, guaranteeing at most one live challenge per principal.
	ReplaceChallenge(ctx context.Context, ch Challenge) error
	// ChallengeByPayload returns the unconsumed challenge with the given
	// payload for the principal, or ErrNotFound.
	ChallengeByPayload(ctx context.Context, principalID, payload string) (*Challenge, error)
	// ConsumeChallenge marks a challenge verified so its payload cannot be
	// replayed.
	ConsumeChallenge(ctx context.Context, id uuid.UUID, verifiedAt time.Time) error

	// WalletLinkByAddress returns the link owning the address, or ErrNotFound.
	WalletLinkByAddress(ctx context.Context, address string) (*WalletLink, error)
	// UpsertWalletLink inserts or updates the principal's link.
	UpsertWalletLink(ctx context.Context, link WalletLink) error

	// EnsurePrincipal returns the internal id for an external principal
	// identifier, creating the principal if absent.
	EnsurePrincipal(ctx context.Context, externalID string) (uuid.UUID, error)
	// PrincipalIDByExternal resolves an external principal identifier, or
	// returns ErrNotFound.
	PrincipalIDByExternal(ctx context.Context, externalID string) (uuid.UUID, error)

	// TreasuryConfig loads the administrator-configured split control record.
	TreasuryConfig(ctx context.Context) (treasury.Config, error)

	// CreateSubscription inserts a settlement row, filling ID and CreatedAt.
	// Returns ErrDuplicate if the tx hash was already settled.
	CreateSubscription(ctx context.Context, sub *Subscription) error
	// CreateStake inserts a stake row, filling ID and CreatedAt.
	CreateStake(ctx context.Context, st *Stake) error
	// AppendTxLog appends one audit row. The log is never updated or deleted.
	AppendTxLog(ctx context.Context, e *TxLogEntry) error

	// ActiveStakes lists all stakes eligible for epoch rewards.
	ActiveStakes(ctx context.Context) ([]Stake, error)
	// UpsertEmission writes the emission row for an epoch, overwriting any
	// previous run of the same epoch.
	UpsertEmission(ctx context.Context, em Emission) error

	// MintRunByKey returns the run for key, or ErrNotFound.
	MintRunByKey(ctx context.Context, key string) (*MintRun, error)
	// UpsertMintRun inserts or replaces the run for run.Key.
	UpsertMintRun(ctx context.Context, run *MintRun) error
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dctlabs/dct-backend/api/treasury"
)

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an initialized pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

func (p *Postgres) ReplaceChallenge(ctx context.Context, ch Challenge) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `
		DELETE FROM wallet_challenges WHERE principal_id = $1
	`, ch.PrincipalID); err != nil {
		return fmt.Errorf("delete prior challenges: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO wallet_challenges (id, principal_id, payload, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ch.ID, ch.PrincipalID, ch.Payload, ch.ExpiresAt, ch.CreatedAt); err != nil {
		return fmt.Errorf("insert challenge: %w", err)
	}

	return tx.Commit(ctx)
}

func (p *Postgres) ChallengeByPayload(ctx context.Context, principalID, payload string) (*Challenge, error) {
	var ch Challenge
	err := p.pool.QueryRow(ctx, `
		SELECT id, principal_id, payload, expires_at, verified_at, created_at
		FROM wallet_challenges
		WHERE principal_id = $1 AND payload = $2 AND verified_at IS NULL
	`, principalID, payload).Scan(&ch.ID, &ch.PrincipalID, &ch.Payload, &ch.ExpiresAt, &ch.VerifiedAt, &ch.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select challenge: %w", err)
	}
	return &ch, nil
}

func (p *Postgres) ConsumeChallenge(ctx context.Context, id uuid.UUID, verifiedAt time.Time) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE wallet_challenges SET verified_at = $2 WHERE id = $1 AND verified_at IS NULL
	`, id, verifiedAt)
	if err != nil {
		return fmt.Errorf("consume challenge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) WalletLinkByAddress(ctx context.Context, address string) (*WalletLink, error) {
	var link WalletLink
	err := p.pool.QueryRow(ctx, `
		SELECT principal_id, address, COALESCE(public_key, ''), updated_at
		FROM wallet_links WHERE address = $1
	`, address).Scan(&link.PrincipalID, &link.Address, &link.PublicKey, &link.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select wallet link: %w", err)
	}
	return &link, nil
}

func (p *Postgres) UpsertWalletLink(ctx context.Context, link WalletLink) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO wallet_links (principal_id, address, public_key, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (principal_id) DO UPDATE SET
			address = EXCLUDED.address,
			public_key = EXCLUDED.public_key,
			updated_at = EXCLUDED.updated_at
	`, link.PrincipalID, link.Address, link.PublicKey, link.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert wallet link: %w", err)
	}
	return nil
}

func (p *Postgres) EnsurePrincipal(ctx context.Context, externalID string) (uuid.UUID, error) {
	var id uuid.UUID
	err := p.pool.QueryRow(ctx, `
		INSERT INTO principals (external_id)
		VALUES ($1)
		ON CONFLICT (external_id) DO UPDATE SET external_id = EXCLUDED.external_id
		RETURNING id
	`, externalID).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("ensure principal: %w", err)
	}
	return id, nil
}

func (p *Postgres) PrincipalIDByExternal(ctx context.Context, externalID string) (uuid.UUID, error) {
	var id uuid.UUID
	err := p.pool.QueryRow(ctx, `
		SELECT id FROM principals WHERE external_id = $1
	`, externalID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("select principal: %w", err)
	}
	return id, nil
}

func (p *Postgres) TreasuryConfig(ctx context.Context) (treasury.Config, error) {
	var cfg treasury.Config
	err := p.pool.QueryRow(ctx, `
		SELECT ops_pct, invest_pct, burn_pct FROM treasury_config WHERE id = 1
	`).Scan(&cfg.OpsPct, &cfg.InvestPct, &cfg.BurnPct)
	if errors.Is(err, pgx.ErrNoRows) {
		return treasury.Config{}, ErrNotFound
	}
	if err != nil {
		return treasury.Config{}, fmt.Errorf("select treasury config: %w", err)
	}
	return cfg, nil
}

func (p *Postgres) CreateSubscription(ctx context.Context, sub *Subscription) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO subscriptions
			(id, principal_id, plan, amount_paid_nano, tx_hash, dct_bought, dct_burned, ops_nano, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, sub.ID, sub.PrincipalID, sub.Plan, sub.AmountPaidNano, sub.TxHash,
		sub.DCTBought, sub.DCTBurned, sub.OpsNano, sub.Status, sub.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (p *Postgres) CreateStake(ctx context.Context, st *Stake) error {
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now().UTC()
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO stakes
			(id, principal_id, subscription_id, amount_nano, lock_until, weight, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, st.ID, st.PrincipalID, st.SubscriptionID, st.AmountNano, st.LockUntil, st.Weight, st.Status, st.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert stake: %w", err)
	}
	return nil
}

func (p *Postgres) AppendTxLog(ctx context.Context, e *TxLogEntry) error {
	meta, err := json.Marshal(e.Meta)
	if err != nil {
		return fmt.Errorf("marshal tx log meta: %w", err)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	err = p.pool.QueryRow(ctx, `
		INSERT INTO tx_log (kind, ref_id, amount, meta, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, e.Kind, e.RefID, e.Amount, meta, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert tx log: %w", err)
	}
	return nil
}

func (p *Postgres) ActiveStakes(ctx context.Context) ([]Stake, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, principal_id, subscription_id, amount_nano, lock_until, weight, status, created_at
		FROM stakes WHERE status = $1
	`, StakeActive)
	if err != nil {
		return nil, fmt.Errorf("select stakes: %w", err)
	}
	defer rows.Close()

	var stakes []Stake
	for rows.Next() {
		var st Stake
		if err := rows.Scan(&st.ID, &st.PrincipalID, &st.SubscriptionID, &st.AmountNano,
			&st.LockUntil, &st.Weight, &st.Status, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan stake: %w", err)
		}
		stakes = append(stakes, st)
	}
	return stakes, rows.Err()
}

func (p *Postgres) UpsertEmission(ctx context.Context, em Emission) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO emissions (epoch, total_reward, distributed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (epoch) DO UPDATE SET
			total_reward = EXCLUDED.total_reward,
			distributed_at = EXCLUDED.distributed_at
	`, em.Epoch, em.TotalReward, em.DistributedAt)
	if err != nil {
		return fmt.Errorf("upsert emission: %w", err)
	}
	return nil
}

func (p *Postgres) MintRunByKey(ctx context.Context, key string) (*MintRun, error) {
	var run MintRun
	err := p.pool.QueryRow(ctx, `
		SELECT key, status, COALESCE(initiator, ''), COALESCE(note, ''), COALESCE(content_ref, ''),
		       COALESCE(priority, 0), started_at, completed_at, updated_at
		FROM mint_runs WHERE key = $1
	`, key).Scan(&run.Key, &run.Status, &run.Initiator, &run.Note, &run.ContentRef,
		&run.Priority, &run.StartedAt, &run.CompletedAt, &run.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select mint run: %w", err)
	}
	return &run, nil
}

func (p *Postgres) UpsertMintRun(ctx context.Context, run *MintRun) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO mint_runs (key, status, initiator, note, content_ref, priority, started_at, completed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (key) DO UPDATE SET
			status = EXCLUDED.status,
			initiator = EXCLUDED.initiator,
			note = EXCLUDED.note,
			content_ref = EXCLUDED.content_ref,
			priority = EXCLUDED.priority,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at
	`, run.Key, run.Status, run.Initiator, run.Note, run.ContentRef, run.Priority,
		run.StartedAt, run.CompletedAt, run.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert mint run: %w", err)
	}
	return nil
}

var _ Store = (*Postgres)(nil)

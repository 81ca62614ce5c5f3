package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dctlabs/dct-backend/api/treasury"
)

// Memory is an in-memory Store used by tests. It enforces the same
// uniqueness rules as the Postgres schema.
type Memory struct {
	mu sync.Mutex

	challenges map[uuid.UUID]Challenge // by challenge id
	links      map[string]WalletLink   // by principal id
	principals map[string]uuid.UUID    // external id -> internal id
	treasury   treasury.Config

	subscriptions map[string]Subscription // by tx hash
	stakes        []Stake
	txLog         []TxLogEntry
	emissions     map[int64]Emission
	mintRuns      map[string]MintRun

	nextLogID int64
}

// NewMemory returns an empty in-memory store seeded with the default
// treasury split.
func NewMemory() *Memory {
	return &Memory{
		challenges:    make(map[uuid.UUID]Challenge),
		links:         make(map[string]WalletLink),
		principals:    make(map[string]uuid.UUID),
		treasury:      treasury.Config{OpsPct: 10, InvestPct: 70, BurnPct: 20},
		subscriptions: make(map[string]Subscription),
		emissions:     make(map[int64]Emission),
		mintRuns:      make(map[string]MintRun),
	}
}

// SetTreasuryConfig replaces the control record.
func (m *Memory) SetTreasuryConfig(cfg treasury.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.treasury = cfg
}

func (m *Memory) ReplaceChallenge(_ context.Context, ch Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.challenges {
		if existing.PrincipalID == ch.PrincipalID {
			delete(m.challenges, id)
		}
	}
	m.challenges[ch.ID] = ch
	return nil
}

func (m *Memory) ChallengeByPayload(_ context.Context, principalID, payload string) (*Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.challenges {
		if ch.PrincipalID == principalID && ch.Payload == payload && ch.VerifiedAt == nil {
			c := ch
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ConsumeChallenge(_ context.Context, id uuid.UUID, verifiedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.challenges[id]
	if !ok || ch.VerifiedAt != nil {
		return ErrNotFound
	}
	ch.VerifiedAt = &verifiedAt
	m.challenges[id] = ch
	return nil
}

func (m *Memory) WalletLinkByAddress(_ context.Context, address string) (*WalletLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, link := range m.links {
		if link.Address == address {
			l := link
			return &l, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UpsertWalletLink(_ context.Context, link WalletLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[link.PrincipalID] = link
	return nil
}

func (m *Memory) EnsurePrincipal(_ context.Context, externalID string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.principals[externalID]; ok {
		return id, nil
	}
	id := uuid.New()
	m.principals[externalID] = id
	return id, nil
}

func (m *Memory) PrincipalIDByExternal(_ context.Context, externalID string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.principals[externalID]
	if !ok {
		return uuid.Nil, ErrNotFound
	}
	return id, nil
}

func (m *Memory) TreasuryConfig(_ context.Context) (treasury.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.treasury, nil
}

func (m *Memory) CreateSubscription(_ context.Context, sub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.subscriptions[sub.TxHash]; exists {
		return ErrDuplicate
	}
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	m.subscriptions[sub.TxHash] = *sub
	return nil
}

func (m *Memory) CreateStake(_ context.Context, st *Stake) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now().UTC()
	}
	m.stakes = append(m.stakes, *st)
	return nil
}

func (m *Memory) AppendTxLog(_ context.Context, e *TxLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextLogID++
	e.ID = m.nextLogID
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	m.txLog = append(m.txLog, *e)
	return nil
}

func (m *Memory) ActiveStakes(_ context.Context) ([]Stake, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Stake
	for _, st := range m.stakes {
		if st.Status == StakeActive {
			out = append(out, st)
		}
	}
	return out, nil
}

func (m *Memory) UpsertEmission(_ context.Context, em Emission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emissions[em.Epoch] = em
	return nil
}

func (m *Memory) MintRunByKey(_ context.Context, key string) (*MintRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.mintRuns[key]
	if !ok {
		return nil, ErrNotFound
	}
	r := run
	return &r, nil
}

func (m *Memory) UpsertMintRun(_ context.Context, run *MintRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mintRuns[run.Key] = *run
	return nil
}

// Test accessors. These expose copies of internal state so tests can assert
// on writes without reaching into the maps.

// Subscriptions returns all settled subscriptions.
func (m *Memory) Subscriptions() []Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		out = append(out, sub)
	}
	return out
}

// Stakes returns all stake rows.
func (m *Memory) Stakes() []Stake {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Stake(nil), m.stakes...)
}

// TxLog returns the audit trail in insertion order.
func (m *Memory) TxLog() []TxLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TxLogEntry(nil), m.txLog...)
}

// Emissions returns all emission rows.
func (m *Memory) Emissions() map[int64]Emission {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]Emission, len(m.emissions))
	for k, v := range m.emissions {
		out[k] = v
	}
	return out
}

// WalletLinks returns all links keyed by principal.
func (m *Memory) WalletLinks() map[string]WalletLink {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]WalletLink, len(m.links))
	for k, v := range m.links {
		out[k] = v
	}
	return out
}

var _ Store = (*Memory)(nil)

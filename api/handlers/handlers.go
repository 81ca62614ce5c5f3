// Package handlers implements the HTTP surface of the backend: wallet
// linking, subscription settlement, epoch reward distribution, and the mint
// run state machines.
package handlers

import (
	"errors"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/dctlabs/dct-backend/api/burn"
	"github.com/dctlabs/dct-backend/api/config"
	"github.com/dctlabs/dct-backend/api/notify"
	"github.com/dctlabs/dct-backend/api/store"
	"github.com/dctlabs/dct-backend/api/swap"
	"github.com/dctlabs/dct-backend/api/ton"
)

// Config holds everything a handler invocation needs. All collaborators are
// injected so tests can point them at fakes.
type Config struct {
	Log   *slog.Logger
	Clock clockwork.Clock
	Store store.Store
	App   *config.App

	Indexer *ton.IndexerClient
	Swapper *swap.Client
	Burner  *burn.Client
	// Notifier may be nil; notifications are then skipped.
	Notifier *notify.Client
}

func (cfg *Config) Validate() error {
	if cfg.Log == nil {
		return errors.New("logger is required")
	}
	if cfg.Clock == nil {
		return errors.New("clock is required")
	}
	if cfg.Store == nil {
		return errors.New("store is required")
	}
	if cfg.App == nil {
		return errors.New("app config is required")
	}
	if cfg.Indexer == nil {
		return errors.New("indexer client is required")
	}
	if cfg.Swapper == nil {
		return errors.New("swap client is required")
	}
	if cfg.Burner == nil {
		return errors.New("burn client is required")
	}
	return nil
}

// Handler carries the injected dependencies for all endpoints.
type Handler struct {
	log   *slog.Logger
	clock clockwork.Clock
	store store.Store
	app   *config.App

	indexer  *ton.IndexerClient
	swapper  *swap.Client
	burner   *burn.Client
	notifier *notify.Client

	allowedDomains map[string]bool
	limiter        *rateLimiter
}

// New validates the config and builds the handler set.
func New(cfg Config) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	domains := make(map[string]bool, len(cfg.App.AllowedDomains))
	for _, d := range cfg.App.AllowedDomains {
		domains[d] = true
	}

	return &Handler{
		log:            cfg.Log,
		clock:          cfg.Clock,
		store:          cfg.Store,
		app:            cfg.App,
		indexer:        cfg.Indexer,
		swapper:        cfg.Swapper,
		burner:         cfg.Burner,
		notifier:       cfg.Notifier,
		allowedDomains: domains,
		limiter:        newRateLimiter(),
	}, nil
}

// Package config loads the backend's environment-derived configuration once
// at cold start and initializes the PostgreSQL pool.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// App is the process-wide configuration, read once at startup and passed
// into handlers explicitly.
type App struct {
	ListenAddr string
	// AppBaseURL is the mini-app UI origin, used for CORS.
	AppBaseURL string

	IndexerURL    string
	SwapRouterURL string
	BurnWebhook   string

	TelegramBotToken string
	TelegramChannel  string

	// TreasuryWallet is the address subscription payments must be sent to.
	TreasuryWallet string
	// DCTMaster is the jetton master address of the DCT token.
	DCTMaster string

	EpochLength    time.Duration
	EpochRewardCap float64

	// AllowedDomains is the ton-proof domain allow-list.
	AllowedDomains []string
	ChallengeTTL   time.Duration

	// JettonNetwork is the only network the jetton-minter run accepts.
	JettonNetwork string
}

// Defaults.
const (
	defaultListenAddr    = "0.0.0.0:8080"
	defaultChallengeTTL  = 5 * time.Minute
	defaultEpochLength   = 24 * time.Hour
	defaultJettonNetwork = "mainnet"
)

// LoadApp reads the configuration from the environment. Collaborator URLs
// and the treasury wallet are required; everything else has a default.
func LoadApp() (*App, error) {
	app := &App{
		ListenAddr:       envOr("LISTEN_ADDR", defaultListenAddr),
		AppBaseURL:       os.Getenv("APP_BASE_URL"),
		IndexerURL:       strings.TrimSuffix(os.Getenv("TON_INDEXER_URL"), "/"),
		SwapRouterURL:    strings.TrimSuffix(os.Getenv("SWAP_ROUTER_URL"), "/"),
		BurnWebhook:      os.Getenv("BURN_WEBHOOK_URL"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChannel:  os.Getenv("TELEGRAM_CHANNEL_ID"),
		TreasuryWallet:   os.Getenv("TREASURY_WALLET"),
		DCTMaster:        os.Getenv("DCT_MASTER"),
		JettonNetwork:    envOr("JETTON_ALLOWED_NETWORK", defaultJettonNetwork),
	}

	for name, val := range map[string]string{
		"TON_INDEXER_URL":  app.IndexerURL,
		"SWAP_ROUTER_URL":  app.SwapRouterURL,
		"BURN_WEBHOOK_URL": app.BurnWebhook,
		"TREASURY_WALLET":  app.TreasuryWallet,
		"DCT_MASTER":       app.DCTMaster,
	} {
		if val == "" {
			return nil, fmt.Errorf("%s is required", name)
		}
	}

	epochMs, err := envInt64("EPOCH_LENGTH_MS", defaultEpochLength.Milliseconds())
	if err != nil {
		return nil, err
	}
	if epochMs <= 0 {
		return nil, fmt.Errorf("EPOCH_LENGTH_MS must be positive")
	}
	app.EpochLength = time.Duration(epochMs) * time.Millisecond

	cap, err := envFloat("EPOCH_REWARD_CAP", 0)
	if err != nil {
		return nil, err
	}
	if cap <= 0 {
		return nil, fmt.Errorf("EPOCH_REWARD_CAP is required and must be positive")
	}
	app.EpochRewardCap = cap

	domains := os.Getenv("TONPROOF_ALLOWED_DOMAINS")
	if domains == "" {
		return nil, fmt.Errorf("TONPROOF_ALLOWED_DOMAINS is required")
	}
	for _, d := range strings.Split(domains, ",") {
		if d = strings.TrimSpace(d); d != "" {
			app.AllowedDomains = append(app.AllowedDomains, d)
		}
	}

	ttlSec, err := envInt64("TONPROOF_CHALLENGE_TTL", int64(defaultChallengeTTL.Seconds()))
	if err != nil {
		return nil, err
	}
	app.ChallengeTTL = time.Duration(ttlSec) * time.Second

	return app, nil
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func envInt64(name string, def int64) (int64, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", name, err)
	}
	return n, nil
}

func envFloat(name string, def float64) (float64, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", name, err)
	}
	return f, nil
}

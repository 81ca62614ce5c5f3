package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TON_INDEXER_URL", "https://indexer.example.com/")
	t.Setenv("SWAP_ROUTER_URL", "https://router.example.com")
	t.Setenv("BURN_WEBHOOK_URL", "https://burn.example.com/hook")
	t.Setenv("TREASURY_WALLET", "0:abc")
	t.Setenv("DCT_MASTER", "0:def")
	t.Setenv("EPOCH_REWARD_CAP", "240000")
	t.Setenv("TONPROOF_ALLOWED_DOMAINS", "app.example.com")
}

func TestLoadApp_Defaults(t *testing.T) {
	setRequiredEnv(t)

	app, err := LoadApp()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", app.ListenAddr)
	assert.Equal(t, "https://indexer.example.com", app.IndexerURL, "trailing slash stripped")
	assert.Equal(t, 240000.0, app.EpochRewardCap)
	assert.Equal(t, 24*time.Hour, app.EpochLength)
	assert.Equal(t, 5*time.Minute, app.ChallengeTTL)
	assert.Equal(t, "mainnet", app.JettonNetwork)
	assert.Equal(t, []string{"app.example.com"}, app.AllowedDomains)
}

func TestLoadApp_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LISTEN_ADDR", "127.0.0.1:9090")
	t.Setenv("EPOCH_LENGTH_MS", "3600000")
	t.Setenv("TONPROOF_CHALLENGE_TTL", "120")
	t.Setenv("TONPROOF_ALLOWED_DOMAINS", "a.example.com, b.example.com ,")
	t.Setenv("JETTON_ALLOWED_NETWORK", "testnet")

	app, err := LoadApp()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", app.ListenAddr)
	assert.Equal(t, time.Hour, app.EpochLength)
	assert.Equal(t, 2*time.Minute, app.ChallengeTTL)
	assert.Equal(t, []string{"a.example.com", "b.example.com"}, app.AllowedDomains)
	assert.Equal(t, "testnet", app.JettonNetwork)
}

func TestLoadApp_MissingRequired(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{name: "indexer url", unset: "TON_INDEXER_URL"},
		{name: "swap router url", unset: "SWAP_ROUTER_URL"},
		{name: "burn webhook", unset: "BURN_WEBHOOK_URL"},
		{name: "treasury wallet", unset: "TREASURY_WALLET"},
		{name: "dct master", unset: "DCT_MASTER"},
		{name: "epoch reward cap", unset: "EPOCH_REWARD_CAP"},
		{name: "allowed domains", unset: "TONPROOF_ALLOWED_DOMAINS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.unset, "")

			_, err := LoadApp()
			require.Error(t, err)
		})
	}
}

func TestLoadApp_InvalidNumbers(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "non numeric epoch length", key: "EPOCH_LENGTH_MS", value: "soon"},
		{name: "zero epoch length", key: "EPOCH_LENGTH_MS", value: "0"},
		{name: "non numeric cap", key: "EPOCH_REWARD_CAP", value: "many"},
		{name: "negative cap", key: "EPOCH_REWARD_CAP", value: "-1"},
		{name: "non numeric ttl", key: "TONPROOF_CHALLENGE_TTL", value: "later"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := LoadApp()
			require.Error(t, err)
		})
	}
}

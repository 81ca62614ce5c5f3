package ton

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWallet(t *testing.T) (pubHex string, priv ed25519.PrivateKey, address string) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return hex.EncodeToString(pub), priv, Address{Workchain: 0, Hash: testHash(0x55)}.Raw()
}

func TestVerifyProof_Valid(t *testing.T) {
	t.Parallel()

	pubHex, priv, address := newTestWallet(t)
	proof := Proof{
		Timestamp:    time.Now().Unix(),
		Domain:       "app.example.com",
		DomainLength: uint32(len("app.example.com")),
		Payload:      "deadbeef",
	}
	sig, err := SignProof(priv, address, proof)
	require.NoError(t, err)
	proof.Signature = sig

	require.NoError(t, VerifyProof(pubHex, address, proof))
}

func TestVerifyProof_URLEncodedSignature(t *testing.T) {
	t.Parallel()

	pubHex, priv, address := newTestWallet(t)
	proof := Proof{
		Timestamp:    time.Now().Unix(),
		Domain:       "app.example.com",
		DomainLength: uint32(len("app.example.com")),
		Payload:      "deadbeef",
	}
	sig, err := SignProof(priv, address, proof)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(sig)
	require.NoError(t, err)
	proof.Signature = base64.URLEncoding.EncodeToString(raw)

	require.NoError(t, VerifyProof(pubHex, address, proof))
}

func TestVerifyProof_RejectsTampering(t *testing.T) {
	t.Parallel()

	pubHex, priv, address := newTestWallet(t)
	base := Proof{
		Timestamp:    time.Now().Unix(),
		Domain:       "app.example.com",
		DomainLength: uint32(len("app.example.com")),
		Payload:      "deadbeef",
	}
	sig, err := SignProof(priv, address, base)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(p *Proof)
		addr   string
	}{
		{name: "different domain", mutate: func(p *Proof) { p.Domain = "evil.example.com" }, addr: address},
		{name: "different payload", mutate: func(p *Proof) { p.Payload = "cafebabe" }, addr: address},
		{name: "different timestamp", mutate: func(p *Proof) { p.Timestamp++ }, addr: address},
		{name: "different address", mutate: func(p *Proof) {}, addr: Address{Workchain: 0, Hash: testHash(0x77)}.Raw()},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			proof := base
			proof.Signature = sig
			tt.mutate(&proof)
			assert.Error(t, VerifyProof(pubHex, tt.addr, proof))
		})
	}
}

func TestVerifyProof_WrongKey(t *testing.T) {
	t.Parallel()

	_, priv, address := newTestWallet(t)
	otherPub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	proof := Proof{
		Timestamp:    time.Now().Unix(),
		Domain:       "app.example.com",
		DomainLength: uint32(len("app.example.com")),
		Payload:      "deadbeef",
	}
	sig, err := SignProof(priv, address, proof)
	require.NoError(t, err)
	proof.Signature = sig

	assert.Error(t, VerifyProof(hex.EncodeToString(otherPub), address, proof))
}

func TestVerifyProof_MalformedInputs(t *testing.T) {
	t.Parallel()

	pubHex, priv, address := newTestWallet(t)
	proof := Proof{
		Timestamp:    time.Now().Unix(),
		Domain:       "app.example.com",
		DomainLength: uint32(len("app.example.com")),
		Payload:      "deadbeef",
	}
	sig, err := SignProof(priv, address, proof)
	require.NoError(t, err)
	proof.Signature = sig

	assert.Error(t, VerifyProof("not-hex", address, proof), "bad public key encoding")
	assert.Error(t, VerifyProof("abcd", address, proof), "short public key")
	assert.Error(t, VerifyProof(pubHex, "0:abcd", proof), "bad address")

	bad := proof
	bad.Signature = "***"
	assert.Error(t, VerifyProof(pubHex, address, bad), "bad signature encoding")

	short := proof
	short.Signature = base64.StdEncoding.EncodeToString([]byte("short"))
	assert.Error(t, VerifyProof(pubHex, address, short), "short signature")
}

package ton

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Proof is the wallet-ownership attestation produced by a TON Connect
// wallet: a signature over a canonical message binding the wallet address,
// the requesting app domain, a timestamp, and an app-issued payload.
type Proof struct {
	Timestamp    int64
	Domain       string
	DomainLength uint32
	Payload      string
	Signature    string // base64
}

const (
	tonProofItemPrefix = "ton-proof-item-v2/"
	tonConnectPrefix   = "ton-connect"
)

// proofMessage builds the inner ton-proof-item-v2 message:
//
//	"ton-proof-item-v2/" ++ wc_be32 ++ hash ++ domain_len_le32 ++ domain ++ ts_le64 ++ payload
func proofMessage(addr Address, domain string, timestamp int64, payload string) []byte {
	msg := make([]byte, 0, len(tonProofItemPrefix)+4+32+4+len(domain)+8+len(payload))
	msg = append(msg, []byte(tonProofItemPrefix)...)
	msg = binary.BigEndian.AppendUint32(msg, uint32(addr.Workchain))
	msg = append(msg, addr.Hash[:]...)
	msg = binary.LittleEndian.AppendUint32(msg, uint32(len(domain)))
	msg = append(msg, []byte(domain)...)
	msg = binary.LittleEndian.AppendUint64(msg, uint64(timestamp))
	msg = append(msg, []byte(payload)...)
	return msg
}

// signedDigest is the digest the wallet actually signs:
//
//	sha256(0xffff ++ "ton-connect" ++ sha256(message))
func signedDigest(message []byte) []byte {
	inner := sha256.Sum256(message)
	outer := make([]byte, 0, 2+len(tonConnectPrefix)+32)
	outer = append(outer, 0xff, 0xff)
	outer = append(outer, []byte(tonConnectPrefix)...)
	outer = append(outer, inner[:]...)
	digest := sha256.Sum256(outer)
	return digest[:]
}

// VerifyProof checks proof.Signature against the given public key (hex) for
// the canonical message reconstructed from the address and proof fields.
func VerifyProof(publicKeyHex string, address string, proof Proof) error {
	pub, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return fmt.Errorf("invalid public key encoding: %w", err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("invalid public key size: expected %d, got %d", ed25519.PublicKeySize, len(pub))
	}

	sig, err := base64.StdEncoding.DecodeString(proof.Signature)
	if err != nil {
		sig, err = base64.URLEncoding.DecodeString(proof.Signature)
		if err != nil {
			return fmt.Errorf("invalid signature encoding: %w", err)
		}
	}
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("invalid signature size: expected %d, got %d", ed25519.SignatureSize, len(sig))
	}

	addr, err := ParseAddress(address)
	if err != nil {
		return fmt.Errorf("invalid address: %w", err)
	}

	msg := proofMessage(addr, proof.Domain, proof.Timestamp, proof.Payload)
	if !ed25519.Verify(ed25519.PublicKey(pub), signedDigest(msg), sig) {
		return fmt.Errorf("signature verification failed")
	}
	return nil
}

// SignProof produces a proof signature for the given key. Test helper for
// wallet behavior; production signatures come from the user's wallet.
func SignProof(priv ed25519.PrivateKey, address string, proof Proof) (string, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return "", err
	}
	msg := proofMessage(addr, proof.Domain, proof.Timestamp, proof.Payload)
	sig := ed25519.Sign(priv, signedDigest(msg))
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Package ton holds the chain-facing pieces of the backend: address
// normalization, TON Connect proof verification, and the payment indexer
// client.
package ton

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Address is a parsed TON account address: a workchain and a 32-byte
// account hash. Two addresses are the same account iff both fields match,
// regardless of which textual form they arrived in.
type Address struct {
	Workchain int32
	Hash      [32]byte
}

// ParseAddress accepts either the raw form ("0:abcd...") or the
// user-friendly base64 form (36 bytes: tag, workchain, hash, crc16).
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, fmt.Errorf("empty address")
	}
	if strings.Contains(s, ":") {
		return parseRawAddress(s)
	}
	return parseFriendlyAddress(s)
}

func parseRawAddress(s string) (Address, error) {
	parts := strings.SplitN(s, ":", 2)
	wc, err := strconv.ParseInt(parts[0], 10, 32)
	if err != nil {
		return Address{}, fmt.Errorf("invalid workchain %q: %w", parts[0], err)
	}
	hashBytes, err := hex.DecodeString(parts[1])
	if err != nil {
		return Address{}, fmt.Errorf("invalid account hash: %w", err)
	}
	if len(hashBytes) != 32 {
		return Address{}, fmt.Errorf("invalid account hash length: expected 32, got %d", len(hashBytes))
	}
	var addr Address
	addr.Workchain = int32(wc)
	copy(addr.Hash[:], hashBytes)
	return addr, nil
}

func parseFriendlyAddress(s string) (Address, error) {
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		raw, err = base64.StdEncoding.DecodeString(s)
		if err != nil {
			return Address{}, fmt.Errorf("invalid base64 address: %w", err)
		}
	}
	if len(raw) != 36 {
		return Address{}, fmt.Errorf("invalid address length: expected 36 bytes, got %d", len(raw))
	}

	want := uint16(raw[34])<<8 | uint16(raw[35])
	if got := crc16XModem(raw[:34]); got != want {
		return Address{}, fmt.Errorf("address checksum mismatch")
	}

	var addr Address
	addr.Workchain = int32(int8(raw[1]))
	copy(addr.Hash[:], raw[2:34])
	return addr, nil
}

// Raw returns the canonical raw form, e.g. "0:abcd...".
func (a Address) Raw() string {
	return fmt.Sprintf("%d:%s", a.Workchain, hex.EncodeToString(a.Hash[:]))
}

// Equal reports whether two addresses refer to the same account.
func (a Address) Equal(b Address) bool {
	return a.Workchain == b.Workchain && a.Hash == b.Hash
}

// SameAccount parses both strings and reports whether they refer to the same
// account. Either argument may be in raw or friendly form.
func SameAccount(a, b string) (bool, error) {
	pa, err := ParseAddress(a)
	if err != nil {
		return false, err
	}
	pb, err := ParseAddress(b)
	if err != nil {
		return false, err
	}
	return pa.Equal(pb), nil
}

// crc16XModem computes the CRC-16/XMODEM checksum used by friendly addresses.
func crc16XModem(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

package util

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ValidateCampaignName checks that a name is usable as a campaign identifier
func ValidateCampaignName(name string) error {
	if name == "" {
		return fmt.Errorf("campaign name cannot be empty")
	}
	if len(name) < 3 {
		return fmt.Errorf("campaign name must be at least 3 characters")
	}
	if len(name) > 128 {
		return fmt.Errorf("campaign name must be at most 128 characters")
	}
	return nil
}

// StringToECDSAPrivateKey parses a hex encoded secp256k1 private key,
// with or without a 0x prefix
func StringToECDSAPrivateKey(key string) (*ecdsa.PrivateKey, error) {
	return crypto.HexToECDSA(strings.TrimPrefix(key, "0x"))
}

// DeriveAddressFromECDSAPrivateKey returns the Ethereum address controlled
// by the given private key
func DeriveAddressFromECDSAPrivateKey(pk *ecdsa.PrivateKey) (common.Address, error) {
	if pk == nil {
		return common.Address{}, fmt.Errorf("private key is nil")
	}
	return crypto.PubkeyToAddress(pk.PublicKey), nil
}

// DeriveAddressFromECDSAPrivateKeyString parses a hex key and returns its address
func DeriveAddressFromECDSAPrivateKeyString(key string) (common.Address, error) {
	pk, err := StringToECDSAPrivateKey(key)
	if err != nil {
		return common.Address{}, err
	}
	return DeriveAddressFromECDSAPrivateKey(pk)
}

// Map applies fn to every element, passing the element index
func Map[A any, B any](in []A, fn func(A, uint64) B) []B {
	out := make([]B, 0, len(in))
	for i, item := range in {
		out = append(out, fn(item, uint64(i)))
	}
	return out
}

// Filter keeps the elements fn accepts
func Filter[A any](in []A, fn func(A) bool) []A {
	out := make([]A, 0)
	for _, item := range in {
		if fn(item) {
			out = append(out, item)
		}
	}
	return out
}

// Reduce folds the slice into an accumulator
func Reduce[A any, B any](in []A, fn func(B, A) B, acc B) B {
	for _, item := range in {
		acc = fn(acc, item)
	}
	return acc
}

// Flatten concatenates the inner slices in order
func Flatten[A any](in [][]A) []A {
	out := make([]A, 0)
	for _, inner := range in {
		out = append(out, inner...)
	}
	return out
}

package signer

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/crypto-libs/pkg/ecdsa"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// SigningKey describes one ECDSA key managed by a signer backend.
type SigningKey struct {
	PublicKey *ecdsa.PublicKey
	Address   string
	KeyId     string
}

func (sk *SigningKey) GetPublicKeyBytes() ([]byte, error) {
	if sk.PublicKey == nil {
		return nil, fmt.Errorf("public key is nil")
	}
	return sk.PublicKey.Bytes(), nil
}

func (sk *SigningKey) GetPublicKeyHex() (string, error) {
	pubKeyBytes, err := sk.GetPublicKeyBytes()
	if err != nil {
		return "", fmt.Errorf("failed to get public key bytes: %w", err)
	}
	return hexutil.Encode(pubKeyBytes), nil
}

// ISigner generates and uses secp256k1 keys for authorizing root rotations
// and authenticating webhook deliveries. Implementations keep the private key
// material behind the backend: callers only ever see digests and signatures.
type ISigner interface {
	GenerateKey(ctx context.Context, keyName string, aliasName string) (*SigningKey, error)
	GetKeyById(ctx context.Context, keyId string) (*SigningKey, error)

	// SignDigest signs a 32-byte digest and returns a 65-byte r || s || v
	// signature with v in the Ethereum 27/28 convention.
	SignDigest(ctx context.Context, keyId string, digest []byte) ([]byte, error)
}

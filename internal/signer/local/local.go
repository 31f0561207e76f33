package local

import (
	"context"
	"fmt"
	"sync"

	"github.com/Layr-Labs/crypto-libs/pkg/ecdsa"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papilo-cloud/merkle-tree-airdrop/internal/signer"
)

// keyEntry stores both the private key and metadata for a key
type keyEntry struct {
	privateKey *ecdsa.PrivateKey
	publicKey  *ecdsa.PublicKey
	keyName    string
	aliasName  string
	address    string
}

// LocalSigner keeps keys in memory. Intended for development and tests; a
// production deployment uses the AWS KMS backend.
type LocalSigner struct {
	logger   *zap.Logger
	keyStore map[string]*keyEntry // keyId -> keyEntry
	mu       sync.RWMutex
}

func NewLocalSigner(logger *zap.Logger) *LocalSigner {
	return &LocalSigner{
		logger:   logger,
		keyStore: make(map[string]*keyEntry),
	}
}

func (l *LocalSigner) GenerateKey(ctx context.Context, keyName string, aliasName string) (*signer.SigningKey, error) {
	// secp256k1 key pair, the curve the root update gate recovers against
	privateKey, publicKey, err := ecdsa.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ECDSA key: %w", err)
	}

	address, err := privateKey.DeriveAddress()
	if err != nil {
		return nil, fmt.Errorf("failed to derive Ethereum address from public key: %w", err)
	}

	keyId := fmt.Sprintf("local-key-%s", uuid.New().String())

	l.mu.Lock()
	l.keyStore[keyId] = &keyEntry{
		privateKey: privateKey,
		publicKey:  publicKey,
		keyName:    keyName,
		aliasName:  aliasName,
		address:    address.String(),
	}
	l.mu.Unlock()

	l.logger.Info("Generated local ECDSA key",
		zap.String("keyName", keyName),
		zap.String("aliasName", aliasName),
		zap.String("keyId", keyId),
		zap.String("address", address.String()),
	)

	return &signer.SigningKey{
		PublicKey: publicKey,
		Address:   address.String(),
		KeyId:     keyId,
	}, nil
}

func (l *LocalSigner) GetKeyById(ctx context.Context, keyId string) (*signer.SigningKey, error) {
	l.mu.RLock()
	entry, exists := l.keyStore[keyId]
	l.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("key with ID %s not found", keyId)
	}

	return &signer.SigningKey{
		PublicKey: entry.publicKey,
		Address:   entry.address,
		KeyId:     keyId,
	}, nil
}

func (l *LocalSigner) SignDigest(ctx context.Context, keyId string, digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be exactly 32 bytes, got %d", len(digest))
	}

	l.mu.RLock()
	entry, exists := l.keyStore[keyId]
	l.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("key with ID %s not found", keyId)
	}

	signature, err := entry.privateKey.Sign(digest)
	if err != nil {
		return nil, fmt.Errorf("failed to sign digest with key %s: %w", keyId, err)
	}

	l.logger.Debug("Signed digest with ECDSA key",
		zap.String("keyId", keyId),
		zap.Int("signatureLen", len(signature.Bytes())),
	)

	return signature.Bytes(), nil
}

// Helper functions for testing

// LoadPrivateKey loads a pre-existing private key into the key store.
func (l *LocalSigner) LoadPrivateKey(keyId string, privateKey *ecdsa.PrivateKey, keyName string, aliasName string) error {
	if privateKey == nil {
		return fmt.Errorf("private key cannot be nil")
	}

	address, err := privateKey.DeriveAddress()
	if err != nil {
		return fmt.Errorf("failed to derive Ethereum address from private key: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.keyStore[keyId]; exists {
		return fmt.Errorf("key with ID %s already exists", keyId)
	}

	l.keyStore[keyId] = &keyEntry{
		privateKey: privateKey,
		publicKey:  privateKey.Public(),
		keyName:    keyName,
		aliasName:  aliasName,
		address:    address.String(),
	}

	return nil
}

// LoadPrivateKeyFromHex loads a private key from a hex string into the key
// store. The hex string can optionally start with "0x".
func (l *LocalSigner) LoadPrivateKeyFromHex(keyId string, privateKeyHex string, keyName string, aliasName string) error {
	privateKey, err := ecdsa.NewPrivateKeyFromHexString(privateKeyHex)
	if err != nil {
		return fmt.Errorf("failed to parse private key from hex: %w", err)
	}

	return l.LoadPrivateKey(keyId, privateKey, keyName, aliasName)
}

// KeyExists checks if a key with the given ID exists in the store.
func (l *LocalSigner) KeyExists(keyId string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, exists := l.keyStore[keyId]
	return exists
}

// KeyCount returns the number of keys in the store.
func (l *LocalSigner) KeyCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.keyStore)
}

package awskms

import (
	"context"
	cryptoEcdsa "crypto/ecdsa"
	"encoding/asn1"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/crypto-libs/pkg/ecdsa"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/papilo-cloud/merkle-tree-airdrop/internal/signer"
)

// KMSSigner signs root updates and webhook payloads with keys held in AWS
// KMS. Private key material never leaves KMS; signatures are converted to
// the 65-byte Ethereum format by recovering the matching recovery ID.
type KMSSigner struct {
	logger      *zap.Logger
	awsConfig   aws.Config
	kmsClient   *kms.Client
	awsRegion   string
	environment string
}

func NewKMSSigner(awsCfg aws.Config, awsRegion string, environment string, logger *zap.Logger) *KMSSigner {
	return &KMSSigner{
		logger:      logger,
		awsConfig:   awsCfg,
		kmsClient:   kms.NewFromConfig(awsCfg),
		awsRegion:   awsRegion,
		environment: environment,
	}
}

func (k *KMSSigner) GenerateKey(ctx context.Context, keyName string, aliasName string) (*signer.SigningKey, error) {
	keyRes, err := k.createUpdaterKey(ctx, keyName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create ECDSA key %s in region %s", keyName, k.awsRegion)
	}

	if err := k.createKeyAlias(ctx, *keyRes.KeyMetadata.KeyId, aliasName); err != nil {
		return nil, errors.Wrapf(err, "failed to create alias %s for key %s in region %s", aliasName, *keyRes.KeyMetadata.KeyId, k.awsRegion)
	}

	return k.GetKeyById(ctx, *keyRes.KeyMetadata.KeyId)
}

func (k *KMSSigner) GetKeyById(ctx context.Context, keyId string) (*signer.SigningKey, error) {
	kmsPubKey, err := k.getPublicKey(ctx, keyId)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get public key for key %s in region %s", keyId, k.awsRegion)
	}

	ecdsaPubKey, err := parseECDSAPublicKey(kmsPubKey.PublicKey)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse public key for key %s in region %s", keyId, k.awsRegion)
	}

	pk := &ecdsa.PublicKey{
		X: ecdsaPubKey.X,
		Y: ecdsaPubKey.Y,
	}

	addr, err := pk.DeriveAddress()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to derive Ethereum address for key %s in region %s", keyId, k.awsRegion)
	}

	return &signer.SigningKey{
		PublicKey: pk,
		Address:   addr.String(),
		KeyId:     keyId,
	}, nil
}

func (k *KMSSigner) SignDigest(ctx context.Context, keyId string, digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be exactly 32 bytes, got %d", len(digest))
	}

	// Get the expected public key first so the recovery ID can be validated
	kmsPubKey, err := k.getPublicKey(ctx, keyId)
	if err != nil {
		return nil, fmt.Errorf("failed to get public key: %w", err)
	}

	expectedPubKey, err := parseECDSAPublicKey(kmsPubKey.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	signOutput, err := k.kmsClient.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(keyId),
		Message:          digest,
		SigningAlgorithm: types.SigningAlgorithmSpecEcdsaSha256,
		MessageType:      types.MessageTypeDigest,
	})
	if err != nil {
		return nil, err
	}

	var sigAsn1 asn1EcSig
	if _, err := asn1.Unmarshal(signOutput.Signature, &sigAsn1); err != nil {
		return nil, err
	}

	r := new(big.Int).SetBytes(sigAsn1.R.Bytes)
	s := new(big.Int).SetBytes(sigAsn1.S.Bytes)

	// secp256k1 curve order for malleability protection
	curveOrder, _ := new(big.Int).SetString("FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEBAAEDCE6AF48A03BBFD25E8CD0364141", 16)
	halfOrder := new(big.Int).Rsh(curveOrder, 1)

	// Low-S canonicalization
	if s.Cmp(halfOrder) > 0 {
		s = new(big.Int).Sub(curveOrder, s)
	}

	rBytes := r.FillBytes(make([]byte, 32))
	sBytes := s.FillBytes(make([]byte, 32))

	// KMS does not return the recovery ID; try each candidate until the
	// recovered public key matches
	for recoveryId := 0; recoveryId < 4; recoveryId++ {
		candidate := make([]byte, 65)
		copy(candidate[0:32], rBytes)
		copy(candidate[32:64], sBytes)
		candidate[64] = byte(recoveryId)

		recoveredPubKeyBytes, err := crypto.Ecrecover(digest, candidate)
		if err != nil {
			k.logger.Debug("Ecrecover failed",
				zap.Int("recoveryId", recoveryId),
				zap.Error(err))
			continue
		}

		recoveredPubKey, err := crypto.UnmarshalPubkey(recoveredPubKeyBytes)
		if err != nil {
			k.logger.Warn("Failed to unmarshal recovered public key",
				zap.Int("recoveryId", recoveryId),
				zap.Error(err))
			continue
		}

		if recoveredPubKey.X.Cmp(expectedPubKey.X) == 0 && recoveredPubKey.Y.Cmp(expectedPubKey.Y) == 0 {
			finalSignature := make([]byte, 65)
			copy(finalSignature[0:32], rBytes)
			copy(finalSignature[32:64], sBytes)
			finalSignature[64] = byte(27 + recoveryId)
			return finalSignature, nil
		}
	}

	return nil, fmt.Errorf("could not determine valid recovery ID - signature recovery failed")
}

// createUpdaterKey creates an ECDSA key on the secp256k1 curve, the one the
// root update signature gate recovers against.
func (k *KMSSigner) createUpdaterKey(ctx context.Context, keyName string) (*kms.CreateKeyOutput, error) {
	input := &kms.CreateKeyInput{
		KeyUsage:    types.KeyUsageTypeSignVerify,
		KeySpec:     types.KeySpecEccSecgP256k1,
		Description: aws.String(fmt.Sprintf("ECDSA key for airdrop root signing - %s", keyName)),
		Tags: []types.Tag{
			{
				TagKey:   aws.String("Name"),
				TagValue: aws.String(keyName),
			},
			{
				TagKey:   aws.String("Environment"),
				TagValue: aws.String(k.environment),
			},
			{
				TagKey:   aws.String("Purpose"),
				TagValue: aws.String("root-updater-key"),
			},
			{
				TagKey:   aws.String("Curve"),
				TagValue: aws.String("secp256k1"),
			},
		},
	}

	result, err := k.kmsClient.CreateKey(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create KMS key: %w", err)
	}

	return result, nil
}

func (k *KMSSigner) createKeyAlias(ctx context.Context, keyId, aliasName string) error {
	_, err := k.kmsClient.CreateAlias(ctx, &kms.CreateAliasInput{
		AliasName:   aws.String(fmt.Sprintf("alias/%s", aliasName)),
		TargetKeyId: aws.String(keyId),
	})
	if err != nil {
		return fmt.Errorf("failed to create key alias: %w", err)
	}
	return nil
}

func (k *KMSSigner) getPublicKey(ctx context.Context, keyId string) (*kms.GetPublicKeyOutput, error) {
	result, err := k.kmsClient.GetPublicKey(ctx, &kms.GetPublicKeyInput{
		KeyId: aws.String(keyId),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get public key: %w", err)
	}
	return result, nil
}

// parseECDSAPublicKey parses the DER-encoded public key returned by KMS
func parseECDSAPublicKey(derBytes []byte) (*cryptoEcdsa.PublicKey, error) {
	var asn1pubk asn1EcPublicKey
	if _, err := asn1.Unmarshal(derBytes, &asn1pubk); err != nil {
		return nil, fmt.Errorf("failed to parse ASN.1 public key: %w", err)
	}
	return crypto.UnmarshalPubkey(asn1pubk.PublicKey.Bytes)
}

type asn1EcSig struct {
	R asn1.RawValue
	S asn1.RawValue
}

type asn1EcPublicKey struct {
	EcPublicKeyInfo asn1EcPublicKeyInfo
	PublicKey       asn1.BitString
}

type asn1EcPublicKeyInfo struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.ObjectIdentifier
}

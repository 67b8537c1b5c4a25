package solana

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mr-tron/base58/base58"
	"github.com/shopspring/decimal"
)

var (
	ErrBadSignature = errors.New("signature verification failed")
	ErrBadPublicKey = errors.New("malformed public key")
)

// Client is the boundary to the chain. Verification is real ed25519; the
// submit side is pluggable so deployments can swap in an RPC-backed
// implementation without touching the ledger.
type Client interface {
	// VerifySignature checks that sig (base58) is a valid signature of
	// message by the base58-encoded ed25519 public key.
	VerifySignature(signature, message, publicKey string) error
	// SubmitStake submits a staking transaction for address and returns its
	// transaction signature.
	SubmitStake(ctx context.Context, address string, amount decimal.Decimal) (string, error)
	// SubmitUnstake releases the stake identified by stakeSignature and
	// returns the unstake transaction signature.
	SubmitUnstake(ctx context.Context, address, stakeSignature string) (string, error)
}

// LocalClient verifies signatures in-process and fabricates transaction
// references instead of talking to an RPC node. It is the default client for
// development and the only one shipped here.
type LocalClient struct{}

func NewLocalClient() *LocalClient { return &LocalClient{} }

func (c *LocalClient) VerifySignature(signature, message, publicKey string) error {
	key, err := base58.Decode(publicKey)
	if err != nil || len(key) != ed25519.PublicKeySize {
		return ErrBadPublicKey
	}
	sig, err := base58.Decode(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return ErrBadSignature
	}
	if !ed25519.Verify(ed25519.PublicKey(key), []byte(message), sig) {
		return ErrBadSignature
	}
	return nil
}

func (c *LocalClient) SubmitStake(ctx context.Context, address string, amount decimal.Decimal) (string, error) {
	return localSignature(), nil
}

func (c *LocalClient) SubmitUnstake(ctx context.Context, address, stakeSignature string) (string, error) {
	return localSignature(), nil
}

// localSignature builds a base58 string shaped like a real transaction
// signature (64 bytes before encoding) from fresh uuid entropy.
func localSignature() string {
	var raw [64]byte
	a, b := uuid.New(), uuid.New()
	copy(raw[:16], a[:])
	copy(raw[16:32], b[:])
	c, d := uuid.New(), uuid.New()
	copy(raw[32:48], c[:])
	copy(raw[48:], d[:])
	return base58.Encode(raw[:])
}

// Mock is a scripted Client for tests.
type Mock struct {
	VerifyErr  error
	Signatures []string // consumed in order by SubmitStake/SubmitUnstake
	SubmitErr  error

	SubmitCalls int // total submit attempts, including failed ones

	next int
}

func (m *Mock) VerifySignature(signature, message, publicKey string) error {
	return m.VerifyErr
}

func (m *Mock) SubmitStake(ctx context.Context, address string, amount decimal.Decimal) (string, error) {
	return m.take()
}

func (m *Mock) SubmitUnstake(ctx context.Context, address, stakeSignature string) (string, error) {
	return m.take()
}

func (m *Mock) take() (string, error) {
	m.SubmitCalls++
	if m.SubmitErr != nil {
		return "", m.SubmitErr
	}
	if m.next < len(m.Signatures) {
		s := m.Signatures[m.next]
		m.next++
		return s, nil
	}
	m.next++
	return fmt.Sprintf("mock-signature-%d", m.next), nil
}

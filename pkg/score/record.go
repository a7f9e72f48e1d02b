// Package score builds, signs and recovers the off-chain score records
// accepted by the reward gauge.
//
// A record is packed like solidity's abi.encodePacked(address, uint16, uint64)
// and hashed with keccak256. The signature is an EIP-191 personal message
// signature over the 32 raw hash bytes.
package score

import (
	"crypto/ecdsa"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// MaxBps is 100% in basis points.
	MaxBps = 10000

	// PackedLen is 20 (address) + 2 (uint16) + 8 (uint64).
	PackedLen = common.AddressLength + 2 + 8

	// SignatureLen is r || s || v.
	SignatureLen = crypto.SignatureLength

	recoveryIDOffset = 27
)

var (
	ErrInvalidScore     = errors.New("invalid score")
	ErrInvalidSignature = errors.New("invalid signature")
)

// Record is a score for one subject in one epoch.
type Record struct {
	Subject  common.Address `json:"subject" yaml:"subject"`
	ScoreBps uint16         `json:"score_bps" yaml:"scoreBps"`
	Epoch    uint64         `json:"epoch" yaml:"epoch"`
}

// Validate ensures the score is within [0, MaxBps].
func (r Record) Validate() error {
	if r.ScoreBps > MaxBps {
		return fmt.Errorf("%w: %d bps exceeds %d", ErrInvalidScore, r.ScoreBps, MaxBps)
	}
	return nil
}

// Pack returns the tightly packed big-endian encoding of the record.
func (r Record) Pack() []byte {
	b := make([]byte, PackedLen)
	copy(b, r.Subject.Bytes())
	binary.BigEndian.PutUint16(b[common.AddressLength:], r.ScoreBps)
	binary.BigEndian.PutUint64(b[common.AddressLength+2:], r.Epoch)
	return b
}

// Hash returns keccak256 of the packed record.
func (r Record) Hash() common.Hash {
	return crypto.Keccak256Hash(r.Pack())
}

// Sign hashes the record and signs it with key.
func (r Record) Sign(key *ecdsa.PrivateKey) (common.Hash, []byte, error) {
	if err := r.Validate(); err != nil {
		return common.Hash{}, nil, err
	}
	h := r.Hash()
	sig, err := SignHash(key, h)
	if err != nil {
		return common.Hash{}, nil, err
	}
	return h, sig, nil
}

// SignHash produces a 65 byte personal message signature over h with v in {27, 28}.
func SignHash(key *ecdsa.PrivateKey, h common.Hash) ([]byte, error) {
	if key == nil {
		return nil, errors.New("signing key required")
	}
	sig, err := crypto.Sign(accounts.TextHash(h.Bytes()), key)
	if err != nil {
		return nil, fmt.Errorf("error signing hash %s: %w", h.Hex(), err)
	}
	sig[crypto.RecoveryIDOffset] += recoveryIDOffset
	return sig, nil
}

// Recover returns the address that produced sig over h.
// Both 27/28 and 0/1 recovery ids are accepted.
func Recover(h common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLen {
		return common.Address{}, fmt.Errorf("%w: length %d, want %d", ErrInvalidSignature, len(sig), SignatureLen)
	}

	s := make([]byte, SignatureLen)
	copy(s, sig)
	if s[crypto.RecoveryIDOffset] >= recoveryIDOffset {
		s[crypto.RecoveryIDOffset] -= recoveryIDOffset
	}
	if s[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, fmt.Errorf("%w: recovery id %d", ErrInvalidSignature, sig[crypto.RecoveryIDOffset])
	}

	pub, err := crypto.SigToPub(accounts.TextHash(h.Bytes()), s)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Verify reports whether sig is the subject's signature of the record.
func Verify(r Record, sig []byte) error {
	addr, err := Recover(r.Hash(), sig)
	if err != nil {
		return err
	}
	if addr != r.Subject {
		return fmt.Errorf("%w: signed by %s, subject is %s", ErrInvalidSignature, addr.Hex(), r.Subject.Hex())
	}
	return nil
}

// FromRatio converts a [0, 1] score to basis points, rounding to nearest.
func FromRatio(v float64) uint16 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 1 {
		return MaxBps
	}
	return uint16(math.Round(v * MaxBps))
}

// EpochAt returns the epoch index of t for epochs of the given length.
// A zero length pins every submission to epoch 0.
func EpochAt(t time.Time, seconds uint64) uint64 {
	if seconds == 0 || t.Unix() < 0 {
		return 0
	}
	return uint64(t.Unix()) / seconds
}

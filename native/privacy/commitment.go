// Package privacy builds the shielded-amount commitments used by treasury
// withdrawal proposals. A commitment binds an amount and a caller supplied
// salt into a single digest that can be published without revealing the
// amount; anyone holding the opening (amount and salt) can verify it later.
package privacy

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"math/big"

	"lukechampine.com/blake3"
)

const (
	commitmentDomain = "sacco/withdrawal-commitment/v1"

	saltMinLength = 8
	saltMaxLength = 64
)

var (
	ErrInvalidAmount = errors.New("privacy: amount must be a non-negative integer")
	ErrInvalidSalt   = errors.New("privacy: salt length out of range")
)

// NewSalt returns a fresh 32-byte salt suitable for Commitment.
func NewSalt() ([]byte, error) {
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// Commitment hashes the amount and salt into the canonical digest. The
// encoding is length-delimited so distinct (amount, salt) pairs can never
// collide on concatenation.
func Commitment(amount *big.Int, salt []byte) ([32]byte, error) {
	var zero [32]byte
	if amount == nil || amount.Sign() < 0 {
		return zero, ErrInvalidAmount
	}
	if len(salt) < saltMinLength || len(salt) > saltMaxLength {
		return zero, ErrInvalidSalt
	}
	buf := bytes.NewBuffer(nil)
	if err := writeDelimited(buf, []byte(commitmentDomain)); err != nil {
		return zero, err
	}
	if err := writeDelimited(buf, amount.Bytes()); err != nil {
		return zero, err
	}
	if err := writeDelimited(buf, salt); err != nil {
		return zero, err
	}
	return blake3.Sum256(buf.Bytes()), nil
}

// Verify reports whether the commitment opens to the provided amount and
// salt. Malformed openings verify as false rather than erroring.
func Verify(commitment [32]byte, amount *big.Int, salt []byte) bool {
	computed, err := Commitment(amount, salt)
	if err != nil {
		return false
	}
	return computed == commitment
}

func writeDelimited(buf *bytes.Buffer, data []byte) error {
	if err := binary.Write(buf, binary.BigEndian, uint32(len(data))); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	_, err := buf.Write(data)
	return err
}

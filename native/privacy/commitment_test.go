package privacy

import (
	"errors"
	"math/big"
	"testing"
)

func TestCommitmentDeterministic(t *testing.T) {
	salt := []byte("0123456789abcdef")
	first, err := Commitment(big.NewInt(2500), salt)
	if err != nil {
		t.Fatalf("commitment: %v", err)
	}
	second, err := Commitment(big.NewInt(2500), salt)
	if err != nil {
		t.Fatalf("commitment: %v", err)
	}
	if first != second {
		t.Fatalf("same opening produced different digests")
	}
	if !Verify(first, big.NewInt(2500), salt) {
		t.Fatalf("verify rejected the opening")
	}
}

func TestCommitmentBindsAmountAndSalt(t *testing.T) {
	salt := []byte("0123456789abcdef")
	commitment, err := Commitment(big.NewInt(2500), salt)
	if err != nil {
		t.Fatalf("commitment: %v", err)
	}
	if Verify(commitment, big.NewInt(2501), salt) {
		t.Fatalf("verify accepted a different amount")
	}
	other := []byte("fedcba9876543210")
	if Verify(commitment, big.NewInt(2500), other) {
		t.Fatalf("verify accepted a different salt")
	}
}

func TestCommitmentNoConcatenationCollision(t *testing.T) {
	// Shifting a byte between amount and salt must change the digest.
	first, err := Commitment(new(big.Int).SetBytes([]byte{0x01, 0x02}), []byte("abcdefgh"))
	if err != nil {
		t.Fatalf("commitment: %v", err)
	}
	second, err := Commitment(new(big.Int).SetBytes([]byte{0x01}), []byte{0x02, 'a', 'b', 'c', 'd', 'e', 'f', 'g'})
	if err != nil {
		t.Fatalf("commitment: %v", err)
	}
	if first == second {
		t.Fatalf("boundary shift collided")
	}
}

func TestCommitmentValidation(t *testing.T) {
	salt := []byte("0123456789abcdef")
	if _, err := Commitment(nil, salt); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected amount rejection, got %v", err)
	}
	if _, err := Commitment(big.NewInt(-1), salt); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected negative rejection, got %v", err)
	}
	if _, err := Commitment(big.NewInt(1), []byte("short")); !errors.Is(err, ErrInvalidSalt) {
		t.Fatalf("expected short salt rejection, got %v", err)
	}
	if _, err := Commitment(big.NewInt(1), make([]byte, 65)); !errors.Is(err, ErrInvalidSalt) {
		t.Fatalf("expected long salt rejection, got %v", err)
	}
	if _, err := Commitment(big.NewInt(0), salt); err != nil {
		t.Fatalf("zero amount should commit: %v", err)
	}
}

func TestNewSaltUsable(t *testing.T) {
	salt, err := NewSalt()
	if err != nil {
		t.Fatalf("new salt: %v", err)
	}
	if len(salt) != 32 {
		t.Fatalf("unexpected salt length %d", len(salt))
	}
	if _, err := Commitment(big.NewInt(7), salt); err != nil {
		t.Fatalf("commitment with generated salt: %v", err)
	}
}

package crypto

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressHRP is the bech32 human-readable prefix for cooperative ledger
// addresses.
const AddressHRP = "sacco"

// AddressLength is the raw byte length of a ledger address.
const AddressLength = 20

// Address represents a 20-byte account address rendered as bech32 with the
// cooperative prefix.
type Address struct {
	raw [AddressLength]byte
}

// NewAddress wraps a raw 20-byte value. It panics when the slice has the
// wrong length; callers decoding untrusted input should go through
// DecodeAddress instead.
func NewAddress(b []byte) Address {
	if len(b) != AddressLength {
		panic("crypto: address must be 20 bytes long")
	}
	var a Address
	copy(a.raw[:], b)
	return a
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.raw[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(AddressHRP, conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a.raw[:])
	return out
}

// Raw returns the fixed-size array form used by persisted records.
func (a Address) Raw() [AddressLength]byte {
	return a.raw
}

// IsZero reports whether the address is the all-zero value.
func (a Address) IsZero() bool {
	return a.raw == [AddressLength]byte{}
}

// Equal reports byte equality with another address.
func (a Address) Equal(other Address) bool {
	return bytes.Equal(a.raw[:], other.raw[:])
}

// AddressFromRaw lifts a fixed-size array back into an Address.
func AddressFromRaw(raw [AddressLength]byte) Address {
	return Address{raw: raw}
}

// DecodeAddress parses a bech32 address and verifies the cooperative prefix.
func DecodeAddress(addrStr string) (Address, error) {
	hrp, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	if hrp != AddressHRP {
		return Address{}, fmt.Errorf("unexpected address prefix %q", hrp)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != AddressLength {
		return Address{}, fmt.Errorf("address payload must be %d bytes, got %d", AddressLength, len(conv))
	}
	return NewAddress(conv), nil
}

// --- Key Management ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

type PublicKey struct {
	*ecdsa.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

func (k *PublicKey) Address() Address {
	addrBytes := crypto.PubkeyToAddress(*k.PublicKey).Bytes()
	return NewAddress(addrBytes)
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

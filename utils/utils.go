package utils

import (
	"encoding/binary"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"lukechampine.com/blake3"
)

var ErrInvalidKeyMaterial = errors.New("invalid key material")

// Kind separates the derivation domains so that identical key material used
// for different purposes never yields the same identifier.
type Kind uint8

const (
	KindBank Kind = iota + 1
	KindTreasury
	KindUser
	KindWallet
)

const treasuryTag = "treasury"

func (k Kind) String() string {
	switch k {
	case KindBank:
		return "bank"
	case KindTreasury:
		return "treasury"
	case KindUser:
		return "user"
	case KindWallet:
		return "wallet"
	default:
		return "unknown"
	}
}

func (k Kind) valid() bool {
	return k >= KindBank && k <= KindWallet
}

// Derive maps (kind, key material) to a stable account identifier. Every part
// is length prefixed before hashing, so ("ab","c") and ("a","bc") differ.
func Derive(kind Kind, keyMaterial ...[]byte) (uuid.UUID, error) {
	if !kind.valid() {
		return uuid.Nil, errors.Wrapf(ErrInvalidKeyMaterial, "unknown kind %d", kind)
	}
	if len(keyMaterial) == 0 {
		return uuid.Nil, errors.Wrapf(ErrInvalidKeyMaterial, "%s: no key material", kind)
	}

	h := blake3.New(32, nil)
	h.Write([]byte("lending/derive/v1"))
	h.Write([]byte{byte(kind)})

	var prefix [8]byte
	for i, part := range keyMaterial {
		if len(part) == 0 {
			return uuid.Nil, errors.Wrapf(ErrInvalidKeyMaterial, "%s: part %d is empty", kind, i)
		}
		binary.BigEndian.PutUint64(prefix[:], uint64(len(part)))
		h.Write(prefix[:])
		h.Write(part)
	}

	return uuidFromHash(h.Sum(nil)), nil
}

func uuidFromHash(sum []byte) uuid.UUID {
	var id uuid.UUID
	copy(id[:], sum[:uuid.Size])
	id.SetVersion(uuid.V5)
	id.SetVariant(uuid.VariantRFC4122)
	return id
}

func BankId(assetId string) (uuid.UUID, error) {
	return Derive(KindBank, []byte(assetId))
}

// TreasuryId combines the bank id with a fixed tag and the asset id.
func TreasuryId(assetId string) (uuid.UUID, error) {
	bankId, err := BankId(assetId)
	if err != nil {
		return uuid.Nil, err
	}
	return Derive(KindTreasury, bankId.Bytes(), []byte(treasuryTag), []byte(assetId))
}

func UserId(ownerId string) (uuid.UUID, error) {
	return Derive(KindUser, []byte(ownerId))
}

// WalletId is the owner's external balance account on the transfer side.
func WalletId(ownerId string) (uuid.UUID, error) {
	return Derive(KindWallet, []byte(ownerId))
}

package donation

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
)

const (
	UserStoreAccountHeaderSize = (8 + // discriminator
		32 + // user
		32 + // bank
		4 + // donation length
		1) // bump

	userStoreDonationSize = 8
)

var UserStoreAccountDiscriminator = []byte{0x9e, 0xda, 0xb8, 0xda, 0x65, 0x90, 0x73, 0x60}

type UserStoreAccount struct {
	User      ed25519.PublicKey
	Bank      ed25519.PublicKey
	Donations []uint64
	Bump      uint8
}

// UserStoreDonationCapacity returns the maximum number of donations a user
// store record of space bytes can hold
func UserStoreDonationCapacity(space int) int {
	if space < UserStoreAccountHeaderSize {
		return 0
	}
	return (space - UserStoreAccountHeaderSize) / userStoreDonationSize
}

func (obj *UserStoreAccount) Size() int {
	return UserStoreAccountHeaderSize + len(obj.Donations)*userStoreDonationSize
}

// PutDonation appends a donation. Zero amounts are rejected with
// ErrInvalidArgument, and ErrSerializationOverflow is returned when the
// record would no longer fit in space bytes.
func (obj *UserStoreAccount) PutDonation(lamports uint64, space int) error {
	if lamports == 0 {
		return ErrInvalidArgument
	}

	if len(obj.Donations) >= UserStoreDonationCapacity(space) {
		return ErrSerializationOverflow
	}

	obj.Donations = append(obj.Donations, lamports)
	return nil
}

// Total returns the sum of the most recent n donations
func (obj *UserStoreAccount) Total(n int) uint64 {
	if n > len(obj.Donations) || n < 0 {
		n = len(obj.Donations)
	}

	var total uint64
	for _, lamports := range obj.Donations[len(obj.Donations)-n:] {
		total += lamports
	}
	return total
}

func (obj *UserStoreAccount) Marshal() []byte {
	data := make([]byte, obj.Size())
	obj.marshalInto(data)
	return data
}

// MarshalInto writes the record at the start of dst, which is usually the
// full account data. ErrSerializationOverflow is returned when it doesn't fit.
func (obj *UserStoreAccount) MarshalInto(dst []byte) error {
	if obj.Size() > len(dst) {
		return ErrSerializationOverflow
	}
	obj.marshalInto(dst)
	return nil
}

func (obj *UserStoreAccount) marshalInto(dst []byte) {
	var offset int

	putDiscriminator(dst, UserStoreAccountDiscriminator, &offset)
	putKey(dst, obj.User, &offset)
	putKey(dst, obj.Bank, &offset)
	putUint32(dst, uint32(len(obj.Donations)), &offset)
	for _, lamports := range obj.Donations {
		putUint64(dst, lamports, &offset)
	}
	putUint8(dst, obj.Bump, &offset)
}

func (obj *UserStoreAccount) Unmarshal(data []byte) error {
	if len(data) < UserStoreAccountHeaderSize {
		return ErrInvalidAccountData
	}

	var offset int

	var discriminator []byte
	getDiscriminator(data, &discriminator, &offset)
	if !bytes.Equal(discriminator, UserStoreAccountDiscriminator) {
		return ErrInvalidAccountData
	}

	getKey(data, &obj.User, &offset)
	getKey(data, &obj.Bank, &offset)

	var count uint32
	getUint32(data, &count, &offset)
	if uint64(count) > uint64(len(data)-UserStoreAccountHeaderSize)/userStoreDonationSize {
		return ErrInvalidAccountData
	}

	obj.Donations = make([]uint64, count)
	for i := range obj.Donations {
		getUint64(data, &obj.Donations[i], &offset)
	}

	getUint8(data, &obj.Bump, &offset)

	return nil
}

func (obj *UserStoreAccount) Clone() *UserStoreAccount {
	return &UserStoreAccount{
		User:      append(ed25519.PublicKey{}, obj.User...),
		Bank:      append(ed25519.PublicKey{}, obj.Bank...),
		Donations: append([]uint64{}, obj.Donations...),
		Bump:      obj.Bump,
	}
}

func (obj *UserStoreAccount) String() string {
	return fmt.Sprintf(
		"UserStore{user=%s,bank=%s,donation=%v,bump=%d}",
		base58.Encode(obj.User),
		base58.Encode(obj.Bank),
		obj.Donations,
		obj.Bump,
	)
}

// Discriminator implements constraint.Record
func (obj *UserStoreAccount) Discriminator() []byte {
	return UserStoreAccountDiscriminator
}

// Key implements constraint.Record
func (obj *UserStoreAccount) Key(field string) (ed25519.PublicKey, bool) {
	switch field {
	case "user":
		return obj.User, true
	case "bank":
		return obj.Bank, true
	default:
		return nil, false
	}
}

// GetBump implements constraint.Record
func (obj *UserStoreAccount) GetBump() uint8 {
	return obj.Bump
}

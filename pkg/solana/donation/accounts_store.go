package donation

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

const (
	StoreAccountHeaderSize = (8 + // discriminator
		32 + // owner
		32 + // bank
		4 + // users length
		1) // bump

	storeUserSize = 32
)

var StoreAccountDiscriminator = []byte{0x82, 0x30, 0xf7, 0xf4, 0xb6, 0xbf, 0x1e, 0x1a}

type StoreAccount struct {
	Owner ed25519.PublicKey
	Bank  ed25519.PublicKey
	Users []ed25519.PublicKey
	Bump  uint8
}

// StoreUserCapacity returns the maximum number of users a store record of
// space bytes can hold
func StoreUserCapacity(space int) int {
	if space < StoreAccountHeaderSize {
		return 0
	}
	return (space - StoreAccountHeaderSize) / storeUserSize
}

func (obj *StoreAccount) Size() int {
	return StoreAccountHeaderSize + len(obj.Users)*storeUserSize
}

// HasUser reports whether the user is in the store's directory. Lookup is a
// linear scan, bounded by StoreUserCapacity.
func (obj *StoreAccount) HasUser(user ed25519.PublicKey) bool {
	for _, existing := range obj.Users {
		if bytes.Equal(existing, user) {
			return true
		}
	}
	return false
}

// PutUser appends user to the directory unless it's already present, and
// reports whether it was appended. ErrSerializationOverflow is returned when
// the record would no longer fit in space bytes.
func (obj *StoreAccount) PutUser(user ed25519.PublicKey, space int) (bool, error) {
	if len(user) != ed25519.PublicKeySize {
		return false, ErrInvalidArgument
	}

	if obj.HasUser(user) {
		return false, nil
	}

	if len(obj.Users) >= StoreUserCapacity(space) {
		return false, ErrSerializationOverflow
	}

	obj.Users = append(obj.Users, append(ed25519.PublicKey{}, user...))
	return true, nil
}

func (obj *StoreAccount) Marshal() []byte {
	data := make([]byte, obj.Size())
	obj.marshalInto(data)
	return data
}

// MarshalInto writes the record at the start of dst, which is usually the
// full account data. ErrSerializationOverflow is returned when it doesn't fit.
func (obj *StoreAccount) MarshalInto(dst []byte) error {
	if obj.Size() > len(dst) {
		return ErrSerializationOverflow
	}
	obj.marshalInto(dst)
	return nil
}

func (obj *StoreAccount) marshalInto(dst []byte) {
	var offset int

	putDiscriminator(dst, StoreAccountDiscriminator, &offset)
	putKey(dst, obj.Owner, &offset)
	putKey(dst, obj.Bank, &offset)
	putUint32(dst, uint32(len(obj.Users)), &offset)
	for _, user := range obj.Users {
		putKey(dst, user, &offset)
	}
	putUint8(dst, obj.Bump, &offset)
}

func (obj *StoreAccount) Unmarshal(data []byte) error {
	if len(data) < StoreAccountHeaderSize {
		return ErrInvalidAccountData
	}

	var offset int

	var discriminator []byte
	getDiscriminator(data, &discriminator, &offset)
	if !bytes.Equal(discriminator, StoreAccountDiscriminator) {
		return ErrInvalidAccountData
	}

	getKey(data, &obj.Owner, &offset)
	getKey(data, &obj.Bank, &offset)

	var count uint32
	getUint32(data, &count, &offset)
	if uint64(count) > uint64(len(data)-StoreAccountHeaderSize)/storeUserSize {
		return ErrInvalidAccountData
	}

	obj.Users = make([]ed25519.PublicKey, count)
	for i := range obj.Users {
		getKey(data, &obj.Users[i], &offset)
	}

	getUint8(data, &obj.Bump, &offset)

	return nil
}

func (obj *StoreAccount) Clone() *StoreAccount {
	cloned := &StoreAccount{
		Owner: append(ed25519.PublicKey{}, obj.Owner...),
		Bank:  append(ed25519.PublicKey{}, obj.Bank...),
		Users: make([]ed25519.PublicKey, len(obj.Users)),
		Bump:  obj.Bump,
	}
	for i, user := range obj.Users {
		cloned.Users[i] = append(ed25519.PublicKey{}, user...)
	}
	return cloned
}

func (obj *StoreAccount) String() string {
	users := make([]string, len(obj.Users))
	for i, user := range obj.Users {
		users[i] = base58.Encode(user)
	}

	return fmt.Sprintf(
		"Store{owner=%s,bank=%s,users=[%s],bump=%d}",
		base58.Encode(obj.Owner),
		base58.Encode(obj.Bank),
		strings.Join(users, ","),
		obj.Bump,
	)
}

// Discriminator implements constraint.Record
func (obj *StoreAccount) Discriminator() []byte {
	return StoreAccountDiscriminator
}

// Key implements constraint.Record
func (obj *StoreAccount) Key(field string) (ed25519.PublicKey, bool) {
	switch field {
	case "owner":
		return obj.Owner, true
	case "bank":
		return obj.Bank, true
	default:
		return nil, false
	}
}

// GetBump implements constraint.Record
func (obj *StoreAccount) GetBump() uint8 {
	return obj.Bump
}

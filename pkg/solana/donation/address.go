package donation

import (
	"crypto/ed25519"

	"github.com/code-payments/donation-ledger/pkg/solana"
)

var (
	StorePrefix     = []byte("store")
	UserStorePrefix = []byte("store_user")
)

type GetStoreAddressArgs struct {
	Owner ed25519.PublicKey
}

func GetStoreAddress(args *GetStoreAddressArgs) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(
		PROGRAM_ID,
		StorePrefix,
		args.Owner,
	)
}

type GetUserStoreAddressArgs struct {
	User ed25519.PublicKey
}

func GetUserStoreAddress(args *GetUserStoreAddressArgs) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(
		PROGRAM_ID,
		UserStorePrefix,
		args.User,
	)
}

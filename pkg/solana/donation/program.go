package donation

import (
	"crypto/ed25519"
	"errors"
)

var (
	ErrInvalidProgram         = errors.New("invalid program id")
	ErrInvalidAccountData     = errors.New("unexpected account data")
	ErrInvalidInstructionData = errors.New("unexpected instruction data")
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrSerializationOverflow  = errors.New("record exceeds allocated account space")
)

var (
	PROGRAM_ADDRESS = mustBase58Decode("D1wdCFggRdEXEYHTgVYBxVF8DQDJe3xRbe9QhQiYEnx2")
	PROGRAM_ID      = ed25519.PublicKey(PROGRAM_ADDRESS)
)

var (
	SYSTEM_PROGRAM_ID = ed25519.PublicKey(mustBase58Decode("11111111111111111111111111111111"))
)

// AccountSpace is the number of bytes allocated for every record
const AccountSpace = 10 * 1024

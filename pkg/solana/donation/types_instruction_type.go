package donation

import (
	"bytes"
)

type InstructionType uint8

const (
	Unknown InstructionType = iota

	InstructionTypeInitialize
	InstructionTypeInitializeUser
	InstructionTypeDonate
	InstructionTypeWithdraw
)

const instructionDiscriminatorSize = 8

// Instruction discriminators are the first 8 bytes of sha256("global:<name>")
var instructionDiscriminators = map[InstructionType][]byte{
	InstructionTypeInitialize:     {0xaf, 0xaf, 0x6d, 0x1f, 0x0d, 0x98, 0x9b, 0xed},
	InstructionTypeInitializeUser: {0x6f, 0x11, 0xb9, 0xfa, 0x3c, 0x7a, 0x26, 0xfe},
	InstructionTypeDonate:         {0x79, 0xba, 0xda, 0xd3, 0x49, 0x46, 0xc4, 0xb4},
	InstructionTypeWithdraw:       {0xb7, 0x12, 0x46, 0x9c, 0x94, 0x6d, 0xa1, 0x22},
}

func (t InstructionType) String() string {
	switch t {
	case InstructionTypeInitialize:
		return "Initialize"
	case InstructionTypeInitializeUser:
		return "InitializeUser"
	case InstructionTypeDonate:
		return "Donate"
	case InstructionTypeWithdraw:
		return "Withdraw"
	default:
		return "Unknown"
	}
}

func putInstructionType(dst []byte, v InstructionType, offset *int) {
	copy(dst[*offset:], instructionDiscriminators[v])
	*offset += instructionDiscriminatorSize
}

// GetInstructionType returns the instruction type identified by the
// discriminator at the start of data
func GetInstructionType(data []byte) InstructionType {
	if len(data) < instructionDiscriminatorSize {
		return Unknown
	}

	for t, discriminator := range instructionDiscriminators {
		if bytes.Equal(data[:instructionDiscriminatorSize], discriminator) {
			return t
		}
	}
	return Unknown
}

package donation

import (
	"crypto/ed25519"

	"github.com/sirupsen/logrus"

	"github.com/code-payments/donation-ledger/pkg/ledger/constraint"
	"github.com/code-payments/donation-ledger/pkg/ledger/runtime"
)

// Program hosts the donation program in the ledger runtime
type Program struct {
	log *logrus.Entry
}

func NewProgram() *Program {
	return &Program{
		log: logrus.StandardLogger().WithField("type", "solana/donation"),
	}
}

// ID implements runtime.Program.ID
func (p *Program) ID() ed25519.PublicKey {
	return PROGRAM_ID
}

// Process implements runtime.Program.Process
func (p *Program) Process(ictx *runtime.InvokeContext) error {
	instructionType := GetInstructionType(ictx.Data)

	var err error
	switch instructionType {
	case InstructionTypeInitialize:
		ictx.Log("Instruction: Initialize")
		err = processInitialize(ictx)
	case InstructionTypeInitializeUser:
		ictx.Log("Instruction: InitializeUser")
		err = processInitializeUser(ictx)
	case InstructionTypeDonate:
		ictx.Log("Instruction: Donate")
		err = processDonate(ictx)
	case InstructionTypeWithdraw:
		ictx.Log("Instruction: Withdraw")
		err = processWithdraw(ictx)
	default:
		ictx.Log("%s", constraint.LogLine("", constraint.ErrInstructionFallbackNotFound))
		err = constraint.ErrInstructionFallbackNotFound
	}

	if err != nil {
		p.log.WithError(err).WithFields(logrus.Fields{
			"instruction": instructionType.String(),
			"class":       GetErrorClass(err).String(),
		}).Debug("instruction failed")
	}
	return err
}

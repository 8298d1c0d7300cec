package main

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"io"
	"strings"

	"github.com/mr-tron/base58"
	flag "github.com/spf13/pflag"

	"github.com/code-payments/donation-ledger/pkg/ledger/donor"
	"github.com/code-payments/donation-ledger/pkg/solana"
	"github.com/code-payments/donation-ledger/pkg/solana/donation"
)

type environment struct {
	ctx         context.Context
	out         io.Writer
	client      *donor.Client
	keypairPath string
}

func (e *environment) signer() (ed25519.PrivateKey, error) {
	return donor.LoadKeypair(e.keypairPath)
}

// keyOrSigner parses a base58 key, falling back to the signer's public key
// when value is empty
func (e *environment) keyOrSigner(value string) (ed25519.PublicKey, error) {
	if value == "" {
		signer, err := e.signer()
		if err != nil {
			return nil, err
		}
		return signer.Public().(ed25519.PublicKey), nil
	}
	return parseKey(value)
}

func (e *environment) printSignature(action string, sig solana.Signature, err error) error {
	if err != nil {
		if code, ok := donation.GetErrorCode(err); ok {
			return fmt.Errorf("%s failed: %w (code %d, %s)", action, err, code, donation.ErrorClassOf(code))
		}
		return fmt.Errorf("%s failed: %w", action, err)
	}

	fmt.Fprintf(e.out, "%s confirmed: %s\n", action, sig.String())
	return nil
}

type command struct {
	usage string
	run   func(e *environment, flags *flag.FlagSet, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"airdrop":    {"request lamports from the node faucet", runAirdrop},
		"balance":    {"show the balance of an account", runBalance},
		"donate":     {"donate lamports to the bank of a store", runDonate},
		"fund":       {"transfer lamports from the signer to an account", runFund},
		"init":       {"create the signer's store", runInit},
		"init-user":  {"create the signer's user store against a store", runInitUser},
		"keygen":     {"write a new keypair file", runKeygen},
		"show-store": {"print a store", runShowStore},
		"show-user":  {"print a user store", runShowUser},
		"withdraw":   {"withdraw lamports from the bank to the store owner", runWithdraw},
	}
}

func parseKey(value string) (ed25519.PublicKey, error) {
	key, err := base58.Decode(value)
	if err != nil || len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid public key: %s", value)
	}
	return key, nil
}

func requireFlag(flags *flag.FlagSet, names ...string) error {
	var missing []string
	for _, name := range names {
		if !flags.Changed(name) {
			missing = append(missing, "--"+name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required flags: %s", strings.Join(missing, ", "))
	}
	return nil
}

func runInit(e *environment, flags *flag.FlagSet, args []string) error {
	bankFlag := flags.String("bank", "", "recipient of donations to the store")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if err := requireFlag(flags, "bank"); err != nil {
		return err
	}

	bank, err := parseKey(*bankFlag)
	if err != nil {
		return err
	}
	owner, err := e.signer()
	if err != nil {
		return err
	}

	sig, err := e.client.Initialize(e.ctx, owner, bank)
	return e.printSignature("init", sig, err)
}

func runInitUser(e *environment, flags *flag.FlagSet, args []string) error {
	ownerFlag := flags.String("owner", "", "owner of the store")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if err := requireFlag(flags, "owner"); err != nil {
		return err
	}

	owner, err := parseKey(*ownerFlag)
	if err != nil {
		return err
	}
	user, err := e.signer()
	if err != nil {
		return err
	}

	sig, err := e.client.InitializeUser(e.ctx, user, owner)
	return e.printSignature("init-user", sig, err)
}

func runDonate(e *environment, flags *flag.FlagSet, args []string) error {
	ownerFlag := flags.String("owner", "", "owner of the store")
	lamportsFlag := flags.Uint64("lamports", 0, "amount to donate")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if err := requireFlag(flags, "owner", "lamports"); err != nil {
		return err
	}

	owner, err := parseKey(*ownerFlag)
	if err != nil {
		return err
	}
	user, err := e.signer()
	if err != nil {
		return err
	}

	sig, err := e.client.Donate(e.ctx, user, owner, *lamportsFlag)
	return e.printSignature("donate", sig, err)
}

func runWithdraw(e *environment, flags *flag.FlagSet, args []string) error {
	ownerFlag := flags.String("owner", "", "owner of the store")
	lamportsFlag := flags.Uint64("lamports", 0, "amount to withdraw")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if err := requireFlag(flags, "owner", "lamports"); err != nil {
		return err
	}

	owner, err := parseKey(*ownerFlag)
	if err != nil {
		return err
	}
	bank, err := e.signer()
	if err != nil {
		return err
	}

	sig, err := e.client.Withdraw(e.ctx, bank, owner, *lamportsFlag)
	return e.printSignature("withdraw", sig, err)
}

func runFund(e *environment, flags *flag.FlagSet, args []string) error {
	toFlag := flags.String("to", "", "recipient account")
	lamportsFlag := flags.Uint64("lamports", 0, "amount to transfer")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if err := requireFlag(flags, "to", "lamports"); err != nil {
		return err
	}

	to, err := parseKey(*toFlag)
	if err != nil {
		return err
	}
	from, err := e.signer()
	if err != nil {
		return err
	}

	sig, err := e.client.Fund(e.ctx, from, to, *lamportsFlag)
	return e.printSignature("fund", sig, err)
}

func runAirdrop(e *environment, flags *flag.FlagSet, args []string) error {
	toFlag := flags.String("to", "", "recipient account (defaults to the signer)")
	lamportsFlag := flags.Uint64("lamports", 0, "amount to airdrop")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if err := requireFlag(flags, "lamports"); err != nil {
		return err
	}

	to, err := e.keyOrSigner(*toFlag)
	if err != nil {
		return err
	}

	sig, err := e.client.Airdrop(e.ctx, to, *lamportsFlag)
	return e.printSignature("airdrop", sig, err)
}

func runBalance(e *environment, flags *flag.FlagSet, args []string) error {
	keyFlag := flags.String("key", "", "account (defaults to the signer)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	key, err := e.keyOrSigner(*keyFlag)
	if err != nil {
		return err
	}

	balance, err := e.client.GetBalance(e.ctx, key)
	if err != nil {
		return err
	}

	fmt.Fprintf(e.out, "%d\n", balance)
	return nil
}

func runShowStore(e *environment, flags *flag.FlagSet, args []string) error {
	ownerFlag := flags.String("owner", "", "owner of the store (defaults to the signer)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	owner, err := e.keyOrSigner(*ownerFlag)
	if err != nil {
		return err
	}

	address, err := e.client.StoreAddress(owner)
	if err != nil {
		return err
	}
	store, err := e.client.GetStore(e.ctx, owner)
	if err != nil {
		return err
	}

	fmt.Fprintf(e.out, "address: %s\n", base58.Encode(address))
	fmt.Fprintf(e.out, "owner:   %s\n", base58.Encode(store.Owner))
	fmt.Fprintf(e.out, "bank:    %s\n", base58.Encode(store.Bank))
	fmt.Fprintf(e.out, "bump:    %d\n", store.Bump)
	fmt.Fprintf(e.out, "users:   %d\n", len(store.Users))
	for _, user := range store.Users {
		fmt.Fprintf(e.out, "  %s\n", base58.Encode(user))
	}
	return nil
}

func runShowUser(e *environment, flags *flag.FlagSet, args []string) error {
	userFlag := flags.String("user", "", "user (defaults to the signer)")
	lastFlag := flags.Int("last", 0, "also print the total of the last N donations")
	if err := flags.Parse(args); err != nil {
		return err
	}

	user, err := e.keyOrSigner(*userFlag)
	if err != nil {
		return err
	}

	address, err := e.client.UserStoreAddress(user)
	if err != nil {
		return err
	}
	userStore, err := e.client.GetUserStore(e.ctx, user)
	if err != nil {
		return err
	}

	fmt.Fprintf(e.out, "address:   %s\n", base58.Encode(address))
	fmt.Fprintf(e.out, "user:      %s\n", base58.Encode(userStore.User))
	fmt.Fprintf(e.out, "bank:      %s\n", base58.Encode(userStore.Bank))
	fmt.Fprintf(e.out, "bump:      %d\n", userStore.Bump)
	fmt.Fprintf(e.out, "donations: %d\n", len(userStore.Donations))
	for _, lamports := range userStore.Donations {
		fmt.Fprintf(e.out, "  %d\n", lamports)
	}
	if *lastFlag > 0 {
		fmt.Fprintf(e.out, "total of last %d: %d\n", *lastFlag, userStore.Total(*lastFlag))
	}
	return nil
}

func runKeygen(e *environment, flags *flag.FlagSet, args []string) error {
	outFlag := flags.String("out", "", "path of the keypair file to write")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if err := requireFlag(flags, "out"); err != nil {
		return err
	}

	public, private, err := ed25519.GenerateKey(nil)
	if err != nil {
		return err
	}
	if err := donor.SaveKeypair(*outFlag, private); err != nil {
		return err
	}

	fmt.Fprintf(e.out, "%s\n", base58.Encode(public))
	return nil
}

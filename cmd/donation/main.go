package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/code-payments/donation-ledger/pkg/ledger/donor"
	"github.com/code-payments/donation-ledger/pkg/netutil"
	"github.com/code-payments/donation-ledger/pkg/solana"
)

const defaultURL = "http://localhost:8899"

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	globals := flag.NewFlagSet("donation", flag.ContinueOnError)
	globals.SetInterspersed(false)
	globals.SetOutput(out)

	urlFlag := globals.String("url", envOr("DONATION_RPC_URL", defaultURL), "ledger RPC endpoint (or set DONATION_RPC_URL env var)")
	waitFlag := globals.Uint("wait", 0, "attempts made waiting for the node to report healthy before running the command")
	keypairFlag := globals.String("keypair", envOr("DONATION_KEYPAIR", defaultKeypairPath()), "signer keypair file (or set DONATION_KEYPAIR env var)")

	globals.Usage = func() {
		fmt.Fprintf(out, "usage: donation [global flags] <command> [flags]\n\ncommands:\n")
		for _, name := range commandNames() {
			fmt.Fprintf(out, "  %-12s %s\n", name, commands[name].usage)
		}
		fmt.Fprintf(out, "\nglobal flags:\n%s", globals.FlagUsages())
	}

	if err := globals.Parse(args); err != nil {
		return err
	}
	if globals.NArg() == 0 {
		globals.Usage()
		return fmt.Errorf("a command is required")
	}

	name := globals.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		globals.Usage()
		return fmt.Errorf("unknown command: %s", name)
	}

	endpoint, err := netutil.NormalizeEndpoint(*urlFlag, false)
	if err != nil {
		return fmt.Errorf("invalid --url: %w", err)
	}
	if *waitFlag > 0 {
		if err := netutil.WaitForHealthy(endpoint, *waitFlag); err != nil {
			return fmt.Errorf("node at %s is not healthy: %w", endpoint, err)
		}
	}

	env := &environment{
		ctx:         ctx,
		out:         out,
		client:      donor.NewClient(solana.New(endpoint), donor.WithEnvConfigs()),
		keypairPath: *keypairFlag,
	}

	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.SetOutput(out)
	return cmd.run(env, flags, globals.Args()[1:])
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func defaultKeypairPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "id.json"
	}
	return filepath.Join(home, ".config", "solana", "id.json")
}

package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/donation-ledger/pkg/ledger/account/memory"
	"github.com/code-payments/donation-ledger/pkg/ledger/donor"
	"github.com/code-payments/donation-ledger/pkg/ledger/rpc"
	"github.com/code-payments/donation-ledger/pkg/ledger/runtime"
	"github.com/code-payments/donation-ledger/pkg/solana/donation"
)

type cli struct {
	t   *testing.T
	url string
	dir string
}

func newCLI(t *testing.T) *cli {
	t.Setenv("DONOR_CLIENT_POLL_INTERVAL", "10ms")
	t.Setenv("DONOR_CLIENT_CONFIRMATION_TIMEOUT", "5s")

	bank, err := runtime.New(context.Background(), memory.New(), runtime.WithOverrides(&runtime.Overrides{}), donation.NewProgram())
	require.NoError(t, err)

	server := httptest.NewServer(rpc.NewServer(bank, rpc.WithOverrides(&rpc.Overrides{})).Handler())
	t.Cleanup(server.Close)

	return &cli{t: t, url: server.URL, dir: t.TempDir()}
}

func (c *cli) run(keypair string, args ...string) (string, error) {
	var out bytes.Buffer
	full := append([]string{"--url", c.url, "--wait", "3", "--keypair", filepath.Join(c.dir, keypair+".json")}, args...)
	err := run(context.Background(), full, &out)
	return out.String(), err
}

func (c *cli) mustRun(keypair string, args ...string) string {
	out, err := c.run(keypair, args...)
	require.NoError(c.t, err, out)
	return out
}

// keygen writes a keypair file named name and returns its base58 public key
func (c *cli) keygen(name string) string {
	out := c.mustRun(name, "keygen", "--out", filepath.Join(c.dir, name+".json"))
	return strings.TrimSpace(out)
}

func TestRun_DonationFlow(t *testing.T) {
	c := newCLI(t)

	owner := c.keygen("owner")
	bank := c.keygen("bank")
	user := c.keygen("user")

	c.mustRun("owner", "airdrop", "--lamports", "1000000000")
	c.mustRun("user", "airdrop", "--lamports", "2000000000")
	c.mustRun("user", "fund", "--to", bank, "--lamports", "100000000")
	assert.Equal(t, "100000000\n", c.mustRun("bank", "balance"))

	out := c.mustRun("owner", "init", "--bank", bank)
	assert.True(t, strings.HasPrefix(out, "init confirmed: "))

	c.mustRun("user", "init-user", "--owner", owner)
	c.mustRun("user", "donate", "--owner", owner, "--lamports", "300")
	c.mustRun("user", "donate", "--owner", owner, "--lamports", "200")

	out = c.mustRun("owner", "show-store")
	assert.Contains(t, out, "owner:   "+owner)
	assert.Contains(t, out, "bank:    "+bank)
	assert.Contains(t, out, "users:   1\n  "+user)

	out = c.mustRun("owner", "show-user", "--user", user, "--last", "1")
	assert.Contains(t, out, "donations: 2\n  300\n  200\n")
	assert.Contains(t, out, "total of last 1: 200")

	out = c.mustRun("bank", "withdraw", "--owner", owner, "--lamports", "500")
	assert.True(t, strings.HasPrefix(out, "withdraw confirmed: "))
	assert.Equal(t, "100000000\n", c.mustRun("bank", "balance"))

	_, err := c.run("bank", "withdraw", "--owner", owner, "--lamports", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code 6000")
	assert.Contains(t, err.Error(), donation.ClassInvalidArgument.String())

	_, err = c.run("user", "withdraw", "--owner", owner, "--lamports", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), donation.ClassConstraint.String())
}

func TestRun_Usage(t *testing.T) {
	c := newCLI(t)

	var out bytes.Buffer
	err := run(context.Background(), nil, &out)
	assert.EqualError(t, err, "a command is required")
	assert.Contains(t, out.String(), "init-user")

	_, err = c.run("owner", "bogus")
	assert.EqualError(t, err, "unknown command: bogus")

	_, err = c.run("owner", "donate", "--owner", "abc")
	assert.EqualError(t, err, "missing required flags: --lamports")

	_, err = c.run("owner", "init", "--bank", "not-a-key")
	assert.EqualError(t, err, "invalid public key: not-a-key")

	_, err = c.run("missing", "init", "--bank", base58.Encode(make([]byte, ed25519.PublicKeySize)))
	assert.Error(t, err)

	err = run(context.Background(), []string{"--url", "ftp://[bad", "balance"}, &out)
	assert.Error(t, err)
}

func TestRun_ShowMissingStore(t *testing.T) {
	c := newCLI(t)
	c.keygen("owner")

	_, err := c.run("owner", "show-store")
	assert.ErrorIs(t, err, donor.ErrStoreNotFound)
}

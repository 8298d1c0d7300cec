package runtime

import (
	"github.com/code-payments/donation-ledger/pkg/config"
	"github.com/code-payments/donation-ledger/pkg/config/env"
	"github.com/code-payments/donation-ledger/pkg/config/memory"
	"github.com/code-payments/donation-ledger/pkg/config/wrapper"
)

const (
	envConfigPrefix = "LEDGER_RUNTIME_"

	lamportsPerSignatureConfigEnvName = envConfigPrefix + "LAMPORTS_PER_SIGNATURE"
	defaultLamportsPerSignature       = 5000

	computeUnitLimitConfigEnvName = envConfigPrefix + "COMPUTE_UNIT_LIMIT"
	defaultComputeUnitLimit       = 200_000

	maxRecentBlockhashesConfigEnvName = envConfigPrefix + "MAX_RECENT_BLOCKHASHES"
	defaultMaxRecentBlockhashes       = 150

	feePayerRateLimitConfigEnvName = envConfigPrefix + "FEE_PAYER_RATE_LIMIT"
	defaultFeePayerRateLimit       = 50.0

	faucetSeedConfigEnvName = envConfigPrefix + "FAUCET_SEED"
	defaultFaucetSeed       = "donation-ledger-faucet"

	faucetGenesisLamportsConfigEnvName = envConfigPrefix + "FAUCET_GENESIS_LAMPORTS"
	defaultFaucetGenesisLamports       = 500_000_000 * LamportsPerSol

	airdropEnabledConfigEnvName = envConfigPrefix + "AIRDROP_ENABLED"
	defaultAirdropEnabled       = true

	maxAirdropLamportsConfigEnvName = envConfigPrefix + "MAX_AIRDROP_LAMPORTS"
	defaultMaxAirdropLamports       = 100 * LamportsPerSol
)

type conf struct {
	lamportsPerSignature  config.Uint64
	computeUnitLimit      config.Uint64
	maxRecentBlockhashes  config.Uint64
	feePayerRateLimit     config.Float64
	faucetSeed            config.String
	faucetGenesisLamports config.Uint64
	airdropEnabled        config.Bool
	maxAirdropLamports    config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			lamportsPerSignature:  env.NewUint64Config(lamportsPerSignatureConfigEnvName, defaultLamportsPerSignature),
			computeUnitLimit:      env.NewUint64Config(computeUnitLimitConfigEnvName, defaultComputeUnitLimit),
			maxRecentBlockhashes:  env.NewUint64Config(maxRecentBlockhashesConfigEnvName, defaultMaxRecentBlockhashes),
			feePayerRateLimit:     env.NewFloat64Config(feePayerRateLimitConfigEnvName, defaultFeePayerRateLimit),
			faucetSeed:            env.NewStringConfig(faucetSeedConfigEnvName, defaultFaucetSeed),
			faucetGenesisLamports: env.NewUint64Config(faucetGenesisLamportsConfigEnvName, defaultFaucetGenesisLamports),
			airdropEnabled:        env.NewBoolConfig(airdropEnabledConfigEnvName, defaultAirdropEnabled),
			maxAirdropLamports:    env.NewUint64Config(maxAirdropLamportsConfigEnvName, defaultMaxAirdropLamports),
		}
	}
}

// Overrides are static configuration values, used by tests and tools that
// embed the runtime. Zero values fall back to the defaults, except for
// LamportsPerSignature and FeePayerRateLimit, where zero disables fees and
// rate limiting respectively.
type Overrides struct {
	LamportsPerSignature uint64
	ComputeUnitLimit     uint64
	MaxRecentBlockhashes uint64
	FeePayerRateLimit    float64
	MaxAirdropLamports   uint64
	DisableAirdrops      bool
}

// WithOverrides returns configuration using the provided static values
func WithOverrides(overrides *Overrides) ConfigProvider {
	return func() *conf {
		computeUnitLimit := overrides.ComputeUnitLimit
		if computeUnitLimit == 0 {
			computeUnitLimit = defaultComputeUnitLimit
		}

		maxRecentBlockhashes := overrides.MaxRecentBlockhashes
		if maxRecentBlockhashes == 0 {
			maxRecentBlockhashes = defaultMaxRecentBlockhashes
		}

		maxAirdropLamports := overrides.MaxAirdropLamports
		if maxAirdropLamports == 0 {
			maxAirdropLamports = defaultMaxAirdropLamports
		}

		return &conf{
			lamportsPerSignature:  wrapper.NewUint64Config(memory.NewConfig(overrides.LamportsPerSignature), defaultLamportsPerSignature),
			computeUnitLimit:      wrapper.NewUint64Config(memory.NewConfig(computeUnitLimit), defaultComputeUnitLimit),
			maxRecentBlockhashes:  wrapper.NewUint64Config(memory.NewConfig(maxRecentBlockhashes), defaultMaxRecentBlockhashes),
			feePayerRateLimit:     wrapper.NewFloat64Config(memory.NewConfig(overrides.FeePayerRateLimit), defaultFeePayerRateLimit),
			faucetSeed:            wrapper.NewStringConfig(memory.NewConfig(defaultFaucetSeed), defaultFaucetSeed),
			faucetGenesisLamports: wrapper.NewUint64Config(memory.NewConfig(uint64(defaultFaucetGenesisLamports)), defaultFaucetGenesisLamports),
			airdropEnabled:        wrapper.NewBoolConfig(memory.NewConfig(!overrides.DisableAirdrops), defaultAirdropEnabled),
			maxAirdropLamports:    wrapper.NewUint64Config(memory.NewConfig(maxAirdropLamports), defaultMaxAirdropLamports),
		}
	}
}

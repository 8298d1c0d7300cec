package donor

import (
	"time"

	"github.com/code-payments/donation-ledger/pkg/config"
	"github.com/code-payments/donation-ledger/pkg/config/env"
	"github.com/code-payments/donation-ledger/pkg/config/memory"
	"github.com/code-payments/donation-ledger/pkg/config/wrapper"
	"github.com/code-payments/donation-ledger/pkg/solana"
)

const (
	envConfigPrefix = "DONOR_CLIENT_"

	confirmationTimeoutConfigEnvName = envConfigPrefix + "CONFIRMATION_TIMEOUT"
	defaultConfirmationTimeout       = 30 * time.Second

	pollIntervalConfigEnvName = envConfigPrefix + "POLL_INTERVAL"
	defaultPollInterval       = solana.PollRate

	maxSubmitAttemptsConfigEnvName = envConfigPrefix + "MAX_SUBMIT_ATTEMPTS"
	defaultMaxSubmitAttempts       = 3

	addressCacheSizeConfigEnvName = envConfigPrefix + "ADDRESS_CACHE_SIZE"
	defaultAddressCacheSize       = 10_000
)

type conf struct {
	confirmationTimeout config.Duration
	pollInterval        config.Duration
	maxSubmitAttempts   config.Uint64
	addressCacheSize    config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			confirmationTimeout: env.NewDurationConfig(confirmationTimeoutConfigEnvName, defaultConfirmationTimeout),
			pollInterval:        env.NewDurationConfig(pollIntervalConfigEnvName, defaultPollInterval),
			maxSubmitAttempts:   env.NewUint64Config(maxSubmitAttemptsConfigEnvName, defaultMaxSubmitAttempts),
			addressCacheSize:    env.NewUint64Config(addressCacheSizeConfigEnvName, defaultAddressCacheSize),
		}
	}
}

// Overrides are static configuration values. Zero values fall back to the
// defaults.
type Overrides struct {
	ConfirmationTimeout time.Duration
	PollInterval        time.Duration
	MaxSubmitAttempts   uint64
}

// WithOverrides returns configuration using the provided static values
func WithOverrides(overrides *Overrides) ConfigProvider {
	return func() *conf {
		confirmationTimeout := overrides.ConfirmationTimeout
		if confirmationTimeout == 0 {
			confirmationTimeout = defaultConfirmationTimeout
		}

		pollInterval := overrides.PollInterval
		if pollInterval == 0 {
			pollInterval = defaultPollInterval
		}

		maxSubmitAttempts := overrides.MaxSubmitAttempts
		if maxSubmitAttempts == 0 {
			maxSubmitAttempts = defaultMaxSubmitAttempts
		}

		return &conf{
			confirmationTimeout: wrapper.NewDurationConfig(memory.NewConfig(confirmationTimeout), defaultConfirmationTimeout),
			pollInterval:        wrapper.NewDurationConfig(memory.NewConfig(pollInterval), defaultPollInterval),
			maxSubmitAttempts:   wrapper.NewUint64Config(memory.NewConfig(maxSubmitAttempts), defaultMaxSubmitAttempts),
			addressCacheSize:    wrapper.NewUint64Config(memory.NewConfig(uint64(defaultAddressCacheSize)), defaultAddressCacheSize),
		}
	}
}

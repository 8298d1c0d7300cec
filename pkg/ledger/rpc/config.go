package rpc

import (
	"github.com/code-payments/donation-ledger/pkg/config"
	"github.com/code-payments/donation-ledger/pkg/config/env"
	"github.com/code-payments/donation-ledger/pkg/config/memory"
	"github.com/code-payments/donation-ledger/pkg/config/wrapper"
)

const (
	envConfigPrefix = "LEDGER_RPC_"

	sendTransactionRateLimitConfigEnvName = envConfigPrefix + "SEND_TRANSACTION_RATE_LIMIT"
	defaultSendTransactionRateLimit       = 100.0

	airdropRateLimitConfigEnvName = envConfigPrefix + "AIRDROP_RATE_LIMIT"
	defaultAirdropRateLimit       = 5.0

	maxRequestBytesConfigEnvName = envConfigPrefix + "MAX_REQUEST_BYTES"
	defaultMaxRequestBytes       = 64 * 1024
)

type conf struct {
	sendTransactionRateLimit config.Float64
	airdropRateLimit         config.Float64
	maxRequestBytes          config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			sendTransactionRateLimit: env.NewFloat64Config(sendTransactionRateLimitConfigEnvName, defaultSendTransactionRateLimit),
			airdropRateLimit:         env.NewFloat64Config(airdropRateLimitConfigEnvName, defaultAirdropRateLimit),
			maxRequestBytes:          env.NewUint64Config(maxRequestBytesConfigEnvName, defaultMaxRequestBytes),
		}
	}
}

// Overrides are static configuration values. Zero rate limits disable
// limiting, and a zero request size falls back to the default.
type Overrides struct {
	SendTransactionRateLimit float64
	AirdropRateLimit         float64
	MaxRequestBytes          uint64
}

// WithOverrides returns configuration using the provided static values
func WithOverrides(overrides *Overrides) ConfigProvider {
	return func() *conf {
		maxRequestBytes := overrides.MaxRequestBytes
		if maxRequestBytes == 0 {
			maxRequestBytes = defaultMaxRequestBytes
		}

		return &conf{
			sendTransactionRateLimit: wrapper.NewFloat64Config(memory.NewConfig(overrides.SendTransactionRateLimit), defaultSendTransactionRateLimit),
			airdropRateLimit:         wrapper.NewFloat64Config(memory.NewConfig(overrides.AirdropRateLimit), defaultAirdropRateLimit),
			maxRequestBytes:          wrapper.NewUint64Config(memory.NewConfig(maxRequestBytes), defaultMaxRequestBytes),
		}
	}
}

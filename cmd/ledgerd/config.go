package main

import (
	"github.com/spf13/viper"
)

const (
	accountStoreConfigKey = "app.account_store"
	boltPathConfigKey     = "app.bolt_path"
	postgresDSNConfigKey  = "app.postgres_dsn"
	slotScheduleConfigKey = "app.slot_schedule"

	accountStoreMemory   = "memory"
	accountStorePostgres = "postgres"
	accountStoreBolt     = "bolt"
)

type ledgerConfig struct {
	AccountStore string
	BoltPath     string
	PostgresDSN  string

	// SlotSchedule is the cron spec on which slots are produced
	SlotSchedule string
}

func init() {
	viper.SetDefault(accountStoreConfigKey, accountStoreMemory)
	viper.SetDefault(boltPathConfigKey, "ledger.db")
	viper.SetDefault(slotScheduleConfigKey, "@every 1s")

	_ = viper.BindEnv(accountStoreConfigKey, "LEDGER_ACCOUNT_STORE")
	_ = viper.BindEnv(boltPathConfigKey, "LEDGER_BOLT_PATH")
	_ = viper.BindEnv(postgresDSNConfigKey, "LEDGER_POSTGRES_DSN")
	_ = viper.BindEnv(slotScheduleConfigKey, "LEDGER_SLOT_SCHEDULE")
}

func loadLedgerConfig() ledgerConfig {
	return ledgerConfig{
		AccountStore: viper.GetString(accountStoreConfigKey),
		BoltPath:     viper.GetString(boltPathConfigKey),
		PostgresDSN:  viper.GetString(postgresDSNConfigKey),
		SlotSchedule: viper.GetString(slotScheduleConfigKey),
	}
}

// Package config defines the tx-pool's externally tunable options
// (spec.md 6) and loads them with viper, generalizing the teacher's
// single conf.AppConf datadir singleton (utxo/BlockTreeDB.go) into a
// typed, file/env-loadable struct.
package config

import (
	"time"

	"github.com/spf13/viper"
	"github.com/xiaolou86/ckb/util"
)

// TxPoolConfig holds every option spec.md 6 enumerates.
type TxPoolConfig struct {
	// MaxTxPoolSize is the byte ceiling enforced by limit_size.
	MaxTxPoolSize uint64
	// MaxAncestorsCount rejects admissions that would exceed this many
	// in-pool ancestors.
	MaxAncestorsCount uint64
	// MinFeeRate is the admission floor, applied by the caller before
	// add_pending/add_gap/add_proposed.
	MinFeeRate util.FeeRate
	// MinRBFRate is the RBF premium rate; RBF is enabled iff this is
	// strictly greater than MinFeeRate.
	MinRBFRate util.FeeRate
	// ExpiryHours is converted to milliseconds for remove_expired.
	ExpiryHours uint64
	// RecentReject is the path to the persistent reject-cache database.
	// Empty disables the cache.
	RecentReject string
	// KeepRejectedTxHashesDays is the reject cache TTL in days (min 1).
	KeepRejectedTxHashesDays uint8
	// KeepRejectedTxHashesCount bounds the reject cache's capacity.
	KeepRejectedTxHashesCount int
}

// Default returns sane defaults so the pool runs unconfigured in tests,
// matching the conservative defaults CKB ships with.
func Default() TxPoolConfig {
	return TxPoolConfig{
		MaxTxPoolSize:             180_000_000,
		MaxAncestorsCount:         125,
		MinFeeRate:                1000,
		MinRBFRate:                0,
		ExpiryHours:               24,
		RecentReject:              "",
		KeepRejectedTxHashesDays:  1,
		KeepRejectedTxHashesCount: 10_000,
	}
}

// ExpiryDuration converts ExpiryHours to a time.Duration for remove_expired.
func (c TxPoolConfig) ExpiryDuration() time.Duration {
	return time.Duration(c.ExpiryHours) * time.Hour
}

// EnableRBF reports whether RBF admission is enabled: strictly greater
// than the plain admission floor (spec.md 4.5 preconditions).
func (c TxPoolConfig) EnableRBF() bool {
	return c.MinRBFRate > c.MinFeeRate
}

// Load reads a TxPoolConfig from the named file (if non-empty) and from
// environment variables prefixed TXPOOL_, overlaying Default(). Following
// the pack-wide viper convention (go-ethereum, vechain-thor config
// loaders) rather than the teacher's bespoke conf.AppConf singleton.
func Load(path string) (TxPoolConfig, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("TXPOOL")
	v.AutomaticEnv()
	v.SetDefault("max_tx_pool_size", cfg.MaxTxPoolSize)
	v.SetDefault("max_ancestors_count", cfg.MaxAncestorsCount)
	v.SetDefault("min_fee_rate", uint64(cfg.MinFeeRate))
	v.SetDefault("min_rbf_rate", uint64(cfg.MinRBFRate))
	v.SetDefault("expiry_hours", cfg.ExpiryHours)
	v.SetDefault("recent_reject", cfg.RecentReject)
	v.SetDefault("keep_rejected_tx_hashes_days", cfg.KeepRejectedTxHashesDays)
	v.SetDefault("keep_rejected_tx_hashes_count", cfg.KeepRejectedTxHashesCount)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, err
		}
	}

	cfg.MaxTxPoolSize = v.GetUint64("max_tx_pool_size")
	cfg.MaxAncestorsCount = v.GetUint64("max_ancestors_count")
	cfg.MinFeeRate = util.FeeRate(v.GetUint64("min_fee_rate"))
	cfg.MinRBFRate = util.FeeRate(v.GetUint64("min_rbf_rate"))
	cfg.ExpiryHours = v.GetUint64("expiry_hours")
	cfg.RecentReject = v.GetString("recent_reject")
	days := v.GetInt("keep_rejected_tx_hashes_days")
	if days < 1 {
		days = 1
	}
	cfg.KeepRejectedTxHashesDays = uint8(days)
	cfg.KeepRejectedTxHashesCount = v.GetInt("keep_rejected_tx_hashes_count")

	return cfg, nil
}

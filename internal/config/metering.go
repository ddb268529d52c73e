package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// MeteringConfig tunes the quota check/record/revoke pipeline.
type MeteringConfig struct {
	// SnapshotTTLMinutes bounds how long a cached quota snapshot is served.
	SnapshotTTLMinutes int `mapstructure:"snapshotTtlMinutes"`
	// FreshnessWindowMinutes is how old a local limit row may be before a
	// remote sync is attempted.
	FreshnessWindowMinutes int `mapstructure:"freshnessWindowMinutes"`
	// CacheOnResolve writes the snapshot as soon as quota is resolved,
	// before the allow/deny comparison.
	CacheOnResolve bool `mapstructure:"cacheOnResolve"`
}

func DefaultMeteringConfig() MeteringConfig {
	return MeteringConfig{
		SnapshotTTLMinutes:     30,
		FreshnessWindowMinutes: 60,
		CacheOnResolve:         true,
	}
}

func (c MeteringConfig) SnapshotTTL() time.Duration {
	return time.Duration(c.SnapshotTTLMinutes) * time.Minute
}

func (c MeteringConfig) FreshnessWindow() time.Duration {
	return time.Duration(c.FreshnessWindowMinutes) * time.Minute
}

// MeteringConfigHolder serves the current metering config and hot-reloads it
// when the backing file changes.
type MeteringConfigHolder struct {
	current atomic.Value // holds MeteringConfig
}

func NewMeteringConfigHolder() (*MeteringConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("metering")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/metering/config")
	v.AddConfigPath("/etc/metering")
	v.AddConfigPath(".")

	v.SetEnvPrefix("METERING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultMeteringConfig()
	v.SetDefault("metering.snapshotTtlMinutes", defaults.SnapshotTTLMinutes)
	v.SetDefault("metering.freshnessWindowMinutes", defaults.FreshnessWindowMinutes)
	v.SetDefault("metering.cacheOnResolve", defaults.CacheOnResolve)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg MeteringConfig
	if err := v.UnmarshalKey("metering", &cfg); err != nil {
		return nil, err
	}
	if err := validateMeteringConfig(cfg); err != nil {
		return nil, err
	}

	holder := &MeteringConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated MeteringConfig
		if err := v.UnmarshalKey("metering", &updated); err != nil {
			log.Printf("[metering-config] reload failed: %v", err)
			return
		}
		if err := validateMeteringConfig(updated); err != nil {
			log.Printf("[metering-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[metering-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticMeteringConfigHolder returns a holder pinned to cfg, for tests.
func NewStaticMeteringConfigHolder(cfg MeteringConfig) *MeteringConfigHolder {
	holder := &MeteringConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *MeteringConfigHolder) Get() MeteringConfig {
	return h.current.Load().(MeteringConfig)
}

func validateMeteringConfig(cfg MeteringConfig) error {
	if cfg.SnapshotTTLMinutes <= 0 {
		return errors.New("metering.snapshotTtlMinutes must be positive")
	}
	if cfg.FreshnessWindowMinutes <= 0 {
		return errors.New("metering.freshnessWindowMinutes must be positive")
	}
	return nil
}

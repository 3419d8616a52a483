package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"bondchain/core/genesis"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BONDD_"

const (
	// DefaultBlockTimeSeconds is the block interval of a fresh node.
	DefaultBlockTimeSeconds = 2
	// MinVestingDuration is the shortest vesting period a market may set.
	MinVestingDuration = 36 * time.Hour
)

// MinVestingBlocksFor converts MinVestingDuration into blocks of the given
// length.
func MinVestingBlocksFor(blockTimeSeconds uint64) uint64 {
	if blockTimeSeconds == 0 {
		return 0
	}
	return uint64(MinVestingDuration/time.Second) / blockTimeSeconds
}

type Config struct {
	DataDir   string       `toml:"DataDir"`
	Node      Node         `toml:"node"`
	API       API          `toml:"api"`
	Auth      Auth         `toml:"auth"`
	Log       Log          `toml:"log"`
	Telemetry Telemetry    `toml:"telemetry"`
	Pauses    Pauses       `toml:"pauses"`
	Quota     Quota        `toml:"quota"`
	Oracle    Oracle       `toml:"oracle"`
	Genesis   genesis.Spec `toml:"genesis"`
}

// Defaults returns the configuration written for a fresh node.
func Defaults() *Config {
	return &Config{
		DataDir: "./bond-data",
		Node: Node{
			MinVestingBlocks: MinVestingBlocksFor(DefaultBlockTimeSeconds),
			BlockTimeSeconds: DefaultBlockTimeSeconds,
		},
		API: API{
			Address:         ":8080",
			RateLimit:       20,
			Burst:           40,
			ReadTimeoutSecs: 15,
		},
		Auth: Auth{
			SecretEnv: "BONDD_JWT_SECRET",
			Issuer:    "bondd",
			Audience:  "bond-operators",
		},
		Log: Log{
			Level:      "info",
			Env:        "dev",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		Quota: Quota{EpochBlocks: 720},
		Oracle: Oracle{
			MaxAgeBlocks: 0,
			Prices:       map[string]string{},
		},
		Genesis: genesis.Dev(),
	}
}

// Load reads the configuration at path, creating a default file when none
// exists. A .env file next to the working directory and BONDD_* variables
// override file values. An unset MinVestingBlocks is derived from the block
// time.
func Load(path string) (*Config, error) {
	var cfg *Config
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		created, err := createDefault(path)
		if err != nil {
			return nil, err
		}
		cfg = created
	} else if err != nil {
		return nil, err
	} else {
		cfg = Defaults()
		cfg.Genesis = genesis.Spec{}
		cfg.Node.MinVestingBlocks = 0
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	_ = godotenv.Load()
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if cfg.Node.MinVestingBlocks == 0 {
		cfg.Node.MinVestingBlocks = MinVestingBlocksFor(cfg.Node.BlockTimeSeconds)
	}
	if cfg.Oracle.Prices == nil {
		cfg.Oracle.Prices = map[string]string{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// createDefault creates and saves a default configuration file. The genesis
// time is pinned to the moment of creation so block heights survive restarts.
func createDefault(path string) (*Config, error) {
	cfg := Defaults()
	cfg.Genesis.GenesisTime = time.Now().UTC().Format(time.RFC3339)
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func applyEnv(cfg *Config) error {
	setStr(&cfg.DataDir, "DATA_DIR")
	setStr(&cfg.API.Address, "API_ADDRESS")
	setStr(&cfg.Log.Level, "LOG_LEVEL")
	setStr(&cfg.Log.Env, "ENV")
	setStr(&cfg.Log.File, "LOG_FILE")
	setStr(&cfg.Telemetry.Endpoint, "OTEL_ENDPOINT")
	setStr(&cfg.Telemetry.Headers, "OTEL_HEADERS")
	setStr(&cfg.Genesis.GenesisTime, "GENESIS_TIME")
	for _, set := range []func() error{
		func() error { return setUint(&cfg.Node.MinVestingBlocks, "MIN_VESTING_BLOCKS") },
		func() error { return setUint(&cfg.Node.BlockTimeSeconds, "BLOCK_TIME_SECONDS") },
		func() error { return setUint(&cfg.Oracle.MaxAgeBlocks, "ORACLE_MAX_AGE_BLOCKS") },
		func() error { return setFloat(&cfg.API.RateLimit, "API_RATE_LIMIT") },
		func() error { return setInt(&cfg.API.Burst, "API_BURST") },
		func() error { return setBool(&cfg.Telemetry.Insecure, "OTEL_INSECURE") },
		func() error { return setBool(&cfg.Telemetry.Metrics, "OTEL_METRICS") },
		func() error { return setBool(&cfg.Telemetry.Traces, "OTEL_TRACES") },
		func() error { return setFloat(&cfg.Telemetry.SampleRatio, "OTEL_SAMPLE_RATIO") },
		func() error { return setBool(&cfg.Auth.Enabled, "AUTH_ENABLED") },
		func() error { return setBool(&cfg.Pauses.Bond, "PAUSE_BOND") },
		func() error { return setBool(&cfg.Pauses.Treasury, "PAUSE_TREASURY") },
	} {
		if err := set(); err != nil {
			return err
		}
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func setStr(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setUint(dst *uint64, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	*dst = n
	return nil
}

func setInt(dst *int, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	*dst = b
	return nil
}

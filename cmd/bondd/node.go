package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"bondchain/config"
	"bondchain/core"
	"bondchain/observability/logging"
	"bondchain/storage"
)

const defaultConfig = "./config.toml"

// nodeFlags are shared by every command that opens the data directory.
type nodeFlags struct {
	config *string
	height *uint64
}

func registerNodeFlags(fs *flag.FlagSet) nodeFlags {
	return nodeFlags{
		config: fs.String("config", defaultConfig, "Path to the configuration file"),
		height: fs.Uint64("height", 0, "Pin the block height instead of deriving it from the genesis time"),
	}
}

type node struct {
	cfg    *config.Config
	db     storage.Database
	svc    *core.BondService
	logger *slog.Logger
}

// openNode loads configuration, opens the store and assembles the bond
// service. Offline commands log warnings to stderr only.
func openNode(flags nodeFlags, logger *slog.Logger) (*node, error) {
	cfg, err := config.Load(*flags.config)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logger == nil {
		logger = logging.New(os.Stderr, logging.Options{Service: "bondd", Env: cfg.Log.Env, Level: "warn"})
	}
	clock, err := newClock(cfg, *flags.height)
	if err != nil {
		return nil, err
	}
	limits, err := cfg.Quota.Limits()
	if err != nil {
		return nil, err
	}
	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open data dir %s: %w", cfg.DataDir, err)
	}
	svc := core.NewBondService(db, clock, cfg.Node.MinVestingBlocks)
	svc.SetLogger(logger)
	svc.SetQuota(limits)
	for _, module := range cfg.Pauses.PausedModules() {
		svc.Pauses().Set(module, true)
	}
	oracle, err := buildOracle(cfg.Oracle, svc.Height())
	if err != nil {
		db.Close()
		return nil, err
	}
	svc.SetOracle(oracle)
	return &node{cfg: cfg, db: db, svc: svc, logger: logger}, nil
}

func newClock(cfg *config.Config, pinned uint64) (core.Clock, error) {
	if pinned > 0 {
		return core.NewManualClock(pinned), nil
	}
	genesisTime, err := cfg.Genesis.Time()
	if err != nil {
		return nil, err
	}
	blockTime := time.Duration(cfg.Node.BlockTimeSeconds) * time.Second
	return core.NewBlockClock(genesisTime, blockTime), nil
}

func (n *node) Close() {
	n.db.Close()
}

// withNode runs fn against an opened node and closes it afterwards.
func withNode(flags nodeFlags, fn func(ctx context.Context, n *node) error) error {
	n, err := openNode(flags, nil)
	if err != nil {
		return err
	}
	defer n.Close()
	return fn(context.Background(), n)
}

func printf(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, format, args...)
}

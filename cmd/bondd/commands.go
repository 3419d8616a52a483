package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bondchain/core"
	"bondchain/core/genesis"
	"bondchain/crypto"
	"bondchain/native/bond"
	"bondchain/observability/logging"
	"bondchain/observability/otel"
	"bondchain/rpc"
)

func runInit(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	flags := registerNodeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	return withNode(flags, func(ctx context.Context, n *node) error {
		if err := n.svc.ApplyGenesis(ctx, &n.cfg.Genesis); err != nil {
			if errors.Is(err, core.ErrGenesisApplied) {
				printf(stdout, "genesis already applied to %s\n", n.cfg.DataDir)
				return nil
			}
			return err
		}
		printf(stdout, "genesis applied to %s at height %d (%d markets)\n",
			n.cfg.DataDir, n.svc.Height(), len(n.cfg.Genesis.Markets))
		return nil
	})
}

func runServe(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	flags := registerNodeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n, err := openNode(flags, nil)
	if err != nil {
		return err
	}
	defer n.Close()

	logger, logCloser := logging.SetupWithOptions(logging.Options{
		Service:    "bondd",
		Env:        n.cfg.Log.Env,
		Level:      n.cfg.Log.Level,
		File:       n.cfg.Log.File,
		MaxSizeMB:  n.cfg.Log.MaxSizeMB,
		MaxBackups: n.cfg.Log.MaxBackups,
		MaxAgeDays: n.cfg.Log.MaxAgeDays,
	})
	defer logCloser.Close()
	n.svc.SetLogger(logger)

	shutdown, err := otel.Init(ctx, otel.Config{
		ServiceName: "bondd",
		Environment: n.cfg.Log.Env,
		Endpoint:    n.cfg.Telemetry.Endpoint,
		Insecure:    n.cfg.Telemetry.Insecure,
		Headers:     otel.ParseHeaders(n.cfg.Telemetry.Headers),
		Metrics:     n.cfg.Telemetry.Metrics,
		Traces:      n.cfg.Telemetry.Traces,
		SampleRatio: n.cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	if err := n.svc.ApplyGenesis(ctx, &n.cfg.Genesis); err != nil && !errors.Is(err, core.ErrGenesisApplied) {
		return fmt.Errorf("apply genesis: %w", err)
	}

	server, err := rpc.NewServer(n.svc, rpc.Config{
		Address:     n.cfg.API.Address,
		RateLimit:   n.cfg.API.RateLimit,
		Burst:       n.cfg.API.Burst,
		ReadTimeout: time.Duration(n.cfg.API.ReadTimeoutSecs) * time.Second,
		Auth: rpc.AuthConfig{
			Enabled:   n.cfg.Auth.Enabled,
			SecretEnv: n.cfg.Auth.SecretEnv,
			Issuer:    n.cfg.Auth.Issuer,
			Audience:  n.cfg.Auth.Audience,
		},
	}, logger)
	if err != nil {
		return err
	}
	logger.Info("bondd starting",
		"data_dir", n.cfg.DataDir,
		"height", n.svc.Height(),
		"paused", strings.Join(n.cfg.Pauses.PausedModules(), ","))
	return server.ListenAndServe(ctx)
}

func runQuote(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("quote", flag.ContinueOnError)
	flags := registerNodeFlags(fs)
	marketID := fs.String("market", "", "Market identifier")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return withNode(flags, func(ctx context.Context, n *node) error {
		view, err := n.svc.Market(ctx, *marketID)
		if err != nil {
			return err
		}
		m := view.Market
		printf(stdout, "market:           %s (%s -> %s)\n", m.ID, m.PrincipalToken, m.PayoutToken)
		printf(stdout, "height:           %d\n", view.Height)
		printf(stdout, "control variable: %s\n", m.Terms.ControlVariable)
		printf(stdout, "vesting term:     %d blocks\n", m.Terms.VestingTerm)
		if view.Quote == nil {
			printf(stdout, "status:           not initialised\n")
			return nil
		}
		payoutDecimals, err := n.svc.TokenDecimals(ctx, m.PayoutToken)
		if err != nil {
			return err
		}
		q := view.Quote
		printf(stdout, "debt ratio:       %s\n", q.DebtRatio)
		printf(stdout, "price:            %s (floored=%t capped=%t)\n", q.Price, q.Floored, q.Capped)
		printf(stdout, "true price:       %s\n", q.TruePrice)
		printf(stdout, "fee rate:         %s\n", q.FeeRate)
		printf(stdout, "current debt:     %s\n", formatUnits(view.CurrentDebt, payoutDecimals))
		printf(stdout, "max payout:       %s\n", formatUnits(view.MaxPayout, payoutDecimals))
		return nil
	})
}

func runDeposit(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("deposit", flag.ContinueOnError)
	flags := registerNodeFlags(fs)
	signer := registerSignerFlags(fs, true)
	marketID := fs.String("market", "", "Market identifier")
	from := fs.String("from", "", "Depositor address; defaults to the signing key's account")
	amount := fs.String("amount", "", "Principal amount in whole tokens, e.g. 0.1")
	maxPrice := fs.String("max-price", "", "Highest acceptable true price; defaults to the current one")
	if err := fs.Parse(args); err != nil {
		return err
	}
	b, err := openBackend(flags, signer, "from", *from)
	if err != nil {
		return err
	}
	defer b.Close()
	ctx := context.Background()

	market, err := b.market(ctx, *marketID)
	if err != nil {
		return err
	}
	principal, err := parseUnits(*amount, market.principalDecimals)
	if err != nil {
		return err
	}
	limit, err := maxPriceFor(*maxPrice, market)
	if err != nil {
		return err
	}
	result, err := b.deposit(ctx, *marketID, principal, limit)
	if err != nil {
		return err
	}
	printf(stdout, "bonded %s %s at price %s\n", formatUnits(principal, market.principalDecimals), market.principalToken, result.PricePaid)
	printf(stdout, "payout %s %s (fee %s), vests at block %d\n",
		formatUnits(result.Credited, market.payoutDecimals), market.payoutToken,
		formatUnits(result.Fee, market.payoutDecimals), result.MaturesAt)
	return nil
}

func maxPriceFor(raw string, market *marketInfo) (*big.Int, error) {
	if strings.TrimSpace(raw) != "" {
		return parseUnits(raw, 0)
	}
	if market.truePrice == nil {
		return nil, bond.ErrVestingNotSet
	}
	return new(big.Int).Set(market.truePrice), nil
}

func runRedeem(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("redeem", flag.ContinueOnError)
	flags := registerNodeFlags(fs)
	signer := registerSignerFlags(fs, true)
	marketID := fs.String("market", "", "Market identifier")
	from := fs.String("from", "", "Depositor address; defaults to the signing key's account")
	if err := fs.Parse(args); err != nil {
		return err
	}
	b, err := openBackend(flags, signer, "from", *from)
	if err != nil {
		return err
	}
	defer b.Close()
	ctx := context.Background()

	market, err := b.market(ctx, *marketID)
	if err != nil {
		return err
	}
	result, err := b.redeem(ctx, *marketID)
	if err != nil {
		return err
	}
	printf(stdout, "redeemed %s %s\n", formatUnits(result.Paid, market.payoutDecimals), market.payoutToken)
	if result.Closed {
		printf(stdout, "bond fully vested and closed\n")
	} else {
		printf(stdout, "remaining %s %s\n", formatUnits(result.Remaining, market.payoutDecimals), market.payoutToken)
	}
	return nil
}

func runPosition(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("position", flag.ContinueOnError)
	flags := registerNodeFlags(fs)
	marketID := fs.String("market", "", "Market identifier")
	owner := fs.String("owner", "", "Depositor address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	addr, err := crypto.DecodeAddress(*owner)
	if err != nil {
		return fmt.Errorf("invalid -owner: %w", err)
	}
	return withNode(flags, func(ctx context.Context, n *node) error {
		market, err := n.svc.Market(ctx, *marketID)
		if err != nil {
			return err
		}
		decimals, err := n.svc.TokenDecimals(ctx, market.Market.PayoutToken)
		if err != nil {
			return err
		}
		view, err := n.svc.Position(ctx, *marketID, addr)
		if err != nil {
			return err
		}
		p := view.Position
		printf(stdout, "owner:          %s\n", p.Owner)
		printf(stdout, "payout:         %s %s\n", formatUnits(p.Payout, decimals), market.Market.PayoutToken)
		printf(stdout, "vested:         %s%%\n", formatUnits(view.PercentVested, 2))
		printf(stdout, "pending payout: %s\n", formatUnits(view.PendingPayout, decimals))
		printf(stdout, "price paid:     %s\n", p.PricePaid)
		printf(stdout, "vesting left:   %d blocks from %d\n", p.Vesting, p.LastBlock)
		return nil
	})
}

func runTerms(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("terms", flag.ContinueOnError)
	flags := registerNodeFlags(fs)
	signer := registerSignerFlags(fs, true)
	marketID := fs.String("market", "", "Market identifier")
	caller := fs.String("caller", "", "Policy address; defaults to the signing key's account")
	param := fs.String("param", "", "Parameter to set: VESTING, PAYOUT or DEBT")
	value := fs.String("value", "", "New value in base units")
	if err := fs.Parse(args); err != nil {
		return err
	}
	parameter, err := bond.ParseTermsParameter(*param)
	if err != nil {
		return err
	}
	amount, err := parseUnits(*value, 0)
	if err != nil {
		return err
	}
	b, err := openBackend(flags, signer, "caller", *caller)
	if err != nil {
		return err
	}
	defer b.Close()
	if err := b.setTerms(context.Background(), *marketID, parameter, amount); err != nil {
		return err
	}
	printf(stdout, "%s set to %s\n", parameter, amount)
	return nil
}

func runAdjust(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("adjust", flag.ContinueOnError)
	flags := registerNodeFlags(fs)
	signer := registerSignerFlags(fs, true)
	marketID := fs.String("market", "", "Market identifier")
	caller := fs.String("caller", "", "Policy address; defaults to the signing key's account")
	add := fs.Bool("add", true, "Raise the control variable; false lowers it")
	rate := fs.String("rate", "", "Change applied per step")
	target := fs.String("target", "", "Control variable at which the adjustment stops")
	buffer := fs.Uint64("buffer", 0, "Minimum blocks between steps")
	if err := fs.Parse(args); err != nil {
		return err
	}
	step, err := parseUnits(*rate, 0)
	if err != nil {
		return fmt.Errorf("rate: %w", err)
	}
	goal, err := parseUnits(*target, 0)
	if err != nil {
		return fmt.Errorf("target: %w", err)
	}
	b, err := openBackend(flags, signer, "caller", *caller)
	if err != nil {
		return err
	}
	defer b.Close()
	if err := b.setAdjustment(context.Background(), *marketID, *add, step, goal, *buffer); err != nil {
		return err
	}
	direction := "down"
	if *add {
		direction = "up"
	}
	printf(stdout, "control variable moves %s by %s every %d blocks until %s\n", direction, step, *buffer, goal)
	return nil
}

func runWithdraw(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("withdraw", flag.ContinueOnError)
	flags := registerNodeFlags(fs)
	signer := registerSignerFlags(fs, false)
	treasuryID := fs.String("treasury", "", "Treasury identifier")
	caller := fs.String("caller", "", "Treasury policy address; defaults to the signing key's account")
	token := fs.String("token", "", "Token symbol")
	to := fs.String("to", "", "Destination address")
	amount := fs.String("amount", "", "Amount in whole tokens")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*treasuryID) == "" {
		return fmt.Errorf("-treasury required")
	}
	key, err := signer.load()
	if err != nil {
		return err
	}
	policy, err := resolveActor("caller", *caller, key)
	if err != nil {
		return err
	}
	destination, err := crypto.DecodeAddress(*to)
	if err != nil {
		return fmt.Errorf("invalid -to: %w", err)
	}
	return withNode(flags, func(ctx context.Context, n *node) error {
		symbol := strings.ToUpper(strings.TrimSpace(*token))
		decimals, err := n.svc.TokenDecimals(ctx, symbol)
		if err != nil {
			return err
		}
		value, err := parseUnits(*amount, decimals)
		if err != nil {
			return err
		}
		treasuryAddr := genesis.TreasuryAddress(*treasuryID)
		if err := n.svc.WithdrawTreasury(ctx, policy, treasuryAddr, symbol, destination, value); err != nil {
			return err
		}
		printf(stdout, "withdrew %s %s from %s to %s\n", formatUnits(value, decimals), symbol, treasuryAddr, destination)
		return nil
	})
}

func runKeygen(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	out := fs.String("keystore", "", "Write the key to an encrypted keystore file instead of printing it")
	passphraseEnv := fs.String("passphrase-env", "BONDD_KEYSTORE_PASSPHRASE", "Environment variable holding the keystore passphrase; prompts when unset")
	light := fs.Bool("light-kdf", false, "Use light scrypt parameters (dev keys only)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	printf(stdout, "address:     %s\n", key.PubKey().Address())
	if *out == "" {
		printf(stdout, "private key: %s\n", hex.EncodeToString(key.Bytes()))
		return nil
	}
	passphrase, err := readPassphrase(*passphraseEnv)
	if err != nil {
		return err
	}
	params := crypto.StandardScrypt
	if *light {
		params = crypto.LightScrypt
	}
	if err := crypto.SaveToKeystore(*out, key, passphrase, params); err != nil {
		return err
	}
	printf(stdout, "keystore:    %s\n", *out)
	return nil
}

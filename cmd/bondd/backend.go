package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"os"
	"strings"

	"bondchain/crypto"
	"bondchain/native/bond"
	"bondchain/rpc"
)

// signerFlags select the key a command acts with and, for commands the API
// serves, where signed requests are sent.
type signerFlags struct {
	keystore      *string
	passphraseEnv *string
	keyFile       *string
	api           *string
	tokenEnv      *string
}

func registerSignerFlags(fs *flag.FlagSet, remote bool) signerFlags {
	flags := signerFlags{
		keystore:      fs.String("keystore", "", "Encrypted keystore holding the signing key"),
		passphraseEnv: fs.String("passphrase-env", "BONDD_KEYSTORE_PASSPHRASE", "Environment variable holding the keystore passphrase"),
		keyFile:       fs.String("key", "", "File holding a hex-encoded signing key"),
		api:           new(string),
		tokenEnv:      new(string),
	}
	if remote {
		flags.api = fs.String("api", "", "Send a signed request to this bondd API instead of opening the data directory")
		flags.tokenEnv = fs.String("token-env", "BONDD_API_TOKEN", "Environment variable holding an operator bearer token")
	}
	return flags
}

// load returns the configured signing key, or nil when none was given.
func (f signerFlags) load() (*crypto.PrivateKey, error) {
	keystorePath := strings.TrimSpace(*f.keystore)
	keyPath := strings.TrimSpace(*f.keyFile)
	switch {
	case keystorePath != "" && keyPath != "":
		return nil, errors.New("use either -keystore or -key")
	case keystorePath != "":
		passphrase, err := readPassphrase(*f.passphraseEnv)
		if err != nil {
			return nil, err
		}
		return crypto.LoadFromKeystore(keystorePath, passphrase)
	case keyPath != "":
		return loadKeyFile(keyPath)
	default:
		return nil, nil
	}
}

func loadKeyFile(path string) (*crypto.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	encoded := strings.TrimPrefix(strings.TrimSpace(string(raw)), "0x")
	if encoded == "" {
		return nil, fmt.Errorf("key file %s is empty", path)
	}
	decoded, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("key file %s: %w", path, err)
	}
	key, err := crypto.PrivateKeyFromBytes(decoded)
	if err != nil {
		return nil, fmt.Errorf("key file %s: %w", path, err)
	}
	return key, nil
}

// resolveActor picks the account a command acts for. A signing key decides
// it; an address flag must then agree with the key.
func resolveActor(flagName, raw string, key *crypto.PrivateKey) (crypto.Address, error) {
	raw = strings.TrimSpace(raw)
	if key != nil {
		signer := key.PubKey().Address()
		if raw != "" {
			claimed, err := crypto.DecodeAddress(raw)
			if err != nil {
				return crypto.Address{}, fmt.Errorf("invalid -%s: %w", flagName, err)
			}
			if !claimed.Equal(signer) {
				return crypto.Address{}, fmt.Errorf("signing key belongs to %s but -%s was %s", signer, flagName, raw)
			}
		}
		return signer, nil
	}
	if raw == "" {
		return crypto.Address{}, fmt.Errorf("-%s or a signing key required", flagName)
	}
	addr, err := crypto.DecodeAddress(raw)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("invalid -%s: %w", flagName, err)
	}
	return addr, nil
}

// marketInfo is the part of a market the mutating commands need.
type marketInfo struct {
	principalToken    string
	payoutToken       string
	principalDecimals uint8
	payoutDecimals    uint8
	truePrice         *big.Int
}

// backend executes bond operations for one account, either against the
// local data directory or through the API.
type backend interface {
	market(ctx context.Context, marketID string) (*marketInfo, error)
	deposit(ctx context.Context, marketID string, amount, maxPrice *big.Int) (*bond.DepositResult, error)
	redeem(ctx context.Context, marketID string) (*bond.RedeemResult, error)
	setTerms(ctx context.Context, marketID string, param bond.TermsParameter, value *big.Int) error
	setAdjustment(ctx context.Context, marketID string, add bool, rate, target *big.Int, buffer uint64) error
	Close()
}

// openBackend resolves the acting account and opens the matching backend.
func openBackend(nf nodeFlags, sf signerFlags, flagName, raw string) (backend, error) {
	key, err := sf.load()
	if err != nil {
		return nil, err
	}
	if api := strings.TrimSpace(*sf.api); api != "" {
		if key == nil {
			return nil, errors.New("-api requires -keystore or -key")
		}
		if _, err := resolveActor(flagName, raw, key); err != nil {
			return nil, err
		}
		client := rpc.NewClient(api, key)
		if *sf.tokenEnv != "" {
			client.SetBearer(os.Getenv(*sf.tokenEnv))
		}
		return &remoteBackend{client: client}, nil
	}
	actor, err := resolveActor(flagName, raw, key)
	if err != nil {
		return nil, err
	}
	n, err := openNode(nf, nil)
	if err != nil {
		return nil, err
	}
	return &localBackend{node: n, actor: actor}, nil
}

type localBackend struct {
	node  *node
	actor crypto.Address
}

func (b *localBackend) market(ctx context.Context, marketID string) (*marketInfo, error) {
	view, err := b.node.svc.Market(ctx, marketID)
	if err != nil {
		return nil, err
	}
	info := &marketInfo{
		principalToken:    view.Market.PrincipalToken,
		payoutToken:       view.Market.PayoutToken,
		principalDecimals: view.PrincipalDecimals,
		payoutDecimals:    view.PayoutDecimals,
	}
	if view.Quote != nil {
		info.truePrice = view.Quote.TruePrice
	}
	return info, nil
}

func (b *localBackend) deposit(ctx context.Context, marketID string, amount, maxPrice *big.Int) (*bond.DepositResult, error) {
	return b.node.svc.Deposit(ctx, marketID, b.actor, amount, maxPrice)
}

func (b *localBackend) redeem(ctx context.Context, marketID string) (*bond.RedeemResult, error) {
	return b.node.svc.Redeem(ctx, marketID, b.actor)
}

func (b *localBackend) setTerms(ctx context.Context, marketID string, param bond.TermsParameter, value *big.Int) error {
	return b.node.svc.SetBondTerms(ctx, marketID, b.actor, param, value)
}

func (b *localBackend) setAdjustment(ctx context.Context, marketID string, add bool, rate, target *big.Int, buffer uint64) error {
	return b.node.svc.SetAdjustment(ctx, marketID, b.actor, add, rate, target, buffer)
}

func (b *localBackend) Close() {
	b.node.Close()
}

type remoteBackend struct {
	client *rpc.Client
}

func (b *remoteBackend) market(ctx context.Context, marketID string) (*marketInfo, error) {
	resp, err := b.client.Market(ctx, marketID)
	if err != nil {
		return nil, err
	}
	info := &marketInfo{
		principalToken:    resp.PrincipalToken,
		payoutToken:       resp.PayoutToken,
		principalDecimals: resp.PrincipalDecimals,
		payoutDecimals:    resp.PayoutDecimals,
	}
	if resp.Quote != nil {
		price, ok := new(big.Int).SetString(resp.Quote.TruePrice, 10)
		if !ok {
			return nil, fmt.Errorf("malformed true price %q", resp.Quote.TruePrice)
		}
		info.truePrice = price
	}
	return info, nil
}

func (b *remoteBackend) deposit(ctx context.Context, marketID string, amount, maxPrice *big.Int) (*bond.DepositResult, error) {
	return b.client.Deposit(ctx, marketID, amount, maxPrice)
}

func (b *remoteBackend) redeem(ctx context.Context, marketID string) (*bond.RedeemResult, error) {
	return b.client.Redeem(ctx, marketID)
}

func (b *remoteBackend) setTerms(ctx context.Context, marketID string, param bond.TermsParameter, value *big.Int) error {
	return b.client.SetBondTerms(ctx, marketID, param, value)
}

func (b *remoteBackend) setAdjustment(ctx context.Context, marketID string, add bool, rate, target *big.Int, buffer uint64) error {
	return b.client.SetAdjustment(ctx, marketID, add, rate, target, buffer)
}

func (b *remoteBackend) Close() {}

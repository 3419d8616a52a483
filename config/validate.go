package config

import (
	"fmt"
	"math/big"
	"strings"

	"bondchain/native/bond"
	nativecommon "bondchain/native/common"
	"bondchain/native/treasury"
)

// Validate checks the loaded configuration, including the embedded genesis.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("DataDir must be set")
	}
	if c.Node.MinVestingBlocks == 0 {
		return fmt.Errorf("node: MinVestingBlocks must be positive")
	}
	if c.Node.BlockTimeSeconds == 0 {
		return fmt.Errorf("node: BlockTimeSeconds must be positive")
	}
	if c.API.RateLimit < 0 || c.API.Burst < 0 {
		return fmt.Errorf("api: RateLimit and Burst must not be negative")
	}
	if c.API.RateLimit > 0 && c.API.Burst == 0 {
		return fmt.Errorf("api: Burst must be positive when RateLimit is set")
	}
	if c.Auth.Enabled && strings.TrimSpace(c.Auth.SecretEnv) == "" {
		return fmt.Errorf("auth: SecretEnv required when auth is enabled")
	}
	if _, err := c.Quota.Limits(); err != nil {
		return err
	}
	for i, pool := range c.Oracle.Pools {
		if strings.TrimSpace(pool.LPToken) == "" {
			return fmt.Errorf("oracle: pool %d: LPToken required", i)
		}
		for name, raw := range map[string]string{
			"BaseReserve":  pool.BaseReserve,
			"QuoteReserve": pool.QuoteReserve,
			"LPSupply":     pool.LPSupply,
		} {
			if _, err := ParseAmount(raw); err != nil {
				return fmt.Errorf("oracle: pool %s: %s: %w", pool.LPToken, name, err)
			}
		}
	}
	if err := c.Genesis.Validate(); err != nil {
		return err
	}
	for _, market := range c.Genesis.Markets {
		if market.Terms.VestingTerm < c.Node.MinVestingBlocks {
			return fmt.Errorf("genesis market %s: vesting term below MinVestingBlocks", market.ID)
		}
	}
	return nil
}

// Limits converts the deposit quota into its runtime form.
func (q Quota) Limits() (nativecommon.Quota, error) {
	out := nativecommon.Quota{
		MaxRequestsPerEpoch: q.MaxDepositsPerEpoch,
		EpochBlocks:         q.EpochBlocks,
	}
	if strings.TrimSpace(q.MaxPrincipalPerEpoch) != "" {
		limit, err := ParseAmount(q.MaxPrincipalPerEpoch)
		if err != nil {
			return out, fmt.Errorf("quota: MaxPrincipalPerEpoch: %w", err)
		}
		out.MaxPrincipalPerEpoch = limit
	}
	return out, nil
}

// PausedModules lists the modules configured as paused.
func (p Pauses) PausedModules() []string {
	var out []string
	if p.Bond {
		out = append(out, bond.ModuleName)
	}
	if p.Treasury {
		out = append(out, treasury.ModuleName)
	}
	return out
}

// ParseAmount parses a non-negative base-unit integer. Underscores may be
// used as digit separators.
func ParseAmount(raw string) (*big.Int, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(raw), "_", "")
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || !bond.FitsUint256(value) {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return value, nil
}

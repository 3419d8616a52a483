package config

// Node controls the block clock and chain-wide bond constraints.
type Node struct {
	// MinVestingBlocks is the shortest vesting term SetBondTerms accepts.
	MinVestingBlocks uint64 `toml:"MinVestingBlocks"`
	// BlockTimeSeconds converts wall-clock time into block heights.
	BlockTimeSeconds uint64 `toml:"BlockTimeSeconds"`
}

// API configures the HTTP surface.
type API struct {
	Address         string  `toml:"Address"`
	RateLimit       float64 `toml:"RateLimit"`
	Burst           int     `toml:"Burst"`
	ReadTimeoutSecs int     `toml:"ReadTimeoutSecs"`
}

// Auth guards the operator routes with HMAC-signed bearer tokens. SecretEnv
// names the environment variable holding the secret.
type Auth struct {
	Enabled   bool   `toml:"Enabled"`
	SecretEnv string `toml:"SecretEnv"`
	Issuer    string `toml:"Issuer"`
	Audience  string `toml:"Audience"`
}

type Log struct {
	Level      string `toml:"Level"`
	Env        string `toml:"Env"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
	Metrics  bool   `toml:"Metrics"`
	Traces   bool   `toml:"Traces"`
	// SampleRatio keeps this fraction of root spans; 0 keeps all.
	SampleRatio float64 `toml:"SampleRatio"`
}

// Pauses lists the modules halted at startup.
type Pauses struct {
	Bond     bool `toml:"Bond"`
	Treasury bool `toml:"Treasury"`
}

// Quota limits deposits per depositor within an epoch of blocks. Zero values
// disable the corresponding limit.
type Quota struct {
	MaxDepositsPerEpoch  uint32 `toml:"MaxDepositsPerEpoch"`
	MaxPrincipalPerEpoch string `toml:"MaxPrincipalPerEpoch"`
	EpochBlocks          uint64 `toml:"EpochBlocks"`
}

// Oracle configures the USD price sources consulted by discount-capped
// markets. Configured prices are stamped with the startup height, so a
// non-zero MaxAgeBlocks only suits deployments with a live feed.
type Oracle struct {
	MaxAgeBlocks uint64            `toml:"MaxAgeBlocks"`
	Prices       map[string]string `toml:"Prices"`
	Pools        []Pool            `toml:"Pools"`
}

// Pool describes an LP token valued from its reserves.
type Pool struct {
	LPToken       string `toml:"LPToken"`
	LPDecimals    uint8  `toml:"LPDecimals"`
	Base          string `toml:"Base"`
	BaseDecimals  uint8  `toml:"BaseDecimals"`
	Quote         string `toml:"Quote"`
	QuoteDecimals uint8  `toml:"QuoteDecimals"`
	BaseReserve   string `toml:"BaseReserve"`
	QuoteReserve  string `toml:"QuoteReserve"`
	LPSupply      string `toml:"LPSupply"`
}

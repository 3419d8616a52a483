package bond

import "errors"

var (
	errNilState           = errors.New("bond engine: state not configured")
	errNilBank            = errors.New("bond engine: bank not configured")
	errNilTreasury        = errors.New("bond engine: treasury not configured")
	errMarketNotSet       = errors.New("bond engine: market identifier not configured")
	errNilOracle          = errors.New("bond engine: price oracle not configured")
	ErrMarketNotFound     = errors.New("bond engine: market not found")
	ErrMarketExists       = errors.New("bond engine: market already registered")
	ErrInvalidAmount      = errors.New("bond engine: amount must be positive and fit 256 bits")
	ErrInvalidMaxPrice    = errors.New("bond engine: max price required")
	ErrInvalidDepositor   = errors.New("bond engine: invalid depositor")
	ErrInvalidAddress     = errors.New("bond engine: address must not be zero")
	ErrUnauthorized       = errors.New("bond engine: caller not authorised")
	ErrSlippage           = errors.New("bond engine: slippage limit: more than max price")
	ErrMaxCapacity        = errors.New("bond engine: max capacity reached")
	ErrBondTooSmall       = errors.New("bond engine: bond too small")
	ErrBondTooLarge       = errors.New("bond engine: bond too large")
	ErrNoBond             = errors.New("bond engine: no bond registered for depositor")
	ErrDebtOutstanding    = errors.New("bond engine: debt must be zero to initialise")
	ErrVestingNotSet      = errors.New("bond engine: vesting term must be initialised first")
	ErrVestingTooShort    = errors.New("bond engine: vesting must be longer than 36 hours")
	ErrPayoutTooHigh      = errors.New("bond engine: payout cannot be above 1 percent")
	ErrInvalidParameter   = errors.New("bond engine: invalid parameter")
	ErrIncrementTooLarge  = errors.New("bond engine: adjustment increment too large")
	ErrTierLengthMismatch = errors.New("bond engine: fee tier ceilings and rates differ in length")
	ErrEmptyFeeSchedule   = errors.New("bond engine: at least one fee tier required")
	ErrPayoutDecimals     = errors.New("bond engine: payout token must carry at least 5 decimals")
	ErrZeroSupply         = errors.New("bond engine: payout token supply is zero")
	ErrOraclePrice        = errors.New("bond engine: oracle returned a non-positive price")
)

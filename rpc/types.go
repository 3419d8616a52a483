package rpc

import (
	"math/big"

	"bondchain/core"
)

// Amounts travel as base-unit decimal strings. Mutating requests embed
// signedRequest and are signed by the depositor or caller they name.

type depositRequest struct {
	Depositor string `json:"depositor"`
	Amount    string `json:"amount"`
	MaxPrice  string `json:"max_price"`
	signedRequest
}

type redeemRequest struct {
	Depositor string `json:"depositor"`
	signedRequest
}

type callerRequest struct {
	Caller string `json:"caller"`
	signedRequest
}

type termsRequest struct {
	Caller    string `json:"caller"`
	Parameter string `json:"parameter"`
	Value     string `json:"value"`
	signedRequest
}

type adjustmentRequest struct {
	Caller string `json:"caller"`
	Add    bool   `json:"add"`
	Rate   string `json:"rate"`
	Target string `json:"target"`
	Buffer uint64 `json:"buffer"`
	signedRequest
}

type feeTreasuryRequest struct {
	Caller      string `json:"caller"`
	FeeTreasury string `json:"fee_treasury"`
	signedRequest
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// NonceResponse reports the nonce an account must sign its next request with.
type NonceResponse struct {
	Account string `json:"account"`
	Nonce   uint64 `json:"nonce"`
}

type DepositResponse struct {
	Value     string `json:"value"`
	Payout    string `json:"payout"`
	Fee       string `json:"fee"`
	Credited  string `json:"credited"`
	PricePaid string `json:"price_paid"`
	MaturesAt uint64 `json:"matures_at"`
}

type RedeemResponse struct {
	Paid      string `json:"paid"`
	Remaining string `json:"remaining"`
	Closed    bool   `json:"closed"`
}

type termsJSON struct {
	ControlVariable string `json:"control_variable"`
	VestingTerm     uint64 `json:"vesting_term"`
	MinimumPrice    string `json:"minimum_price"`
	MaxPayout       string `json:"max_payout"`
	MaxDebt         string `json:"max_debt"`
	MaxDiscount     string `json:"max_discount"`
}

type adjustmentJSON struct {
	Add       bool   `json:"add"`
	Rate      string `json:"rate"`
	Target    string `json:"target"`
	Buffer    uint64 `json:"buffer"`
	LastBlock uint64 `json:"last_block"`
}

type quoteJSON struct {
	DebtRatio string `json:"debt_ratio"`
	RawPrice  string `json:"raw_price"`
	Price     string `json:"price"`
	TruePrice string `json:"true_price"`
	FeeRate   string `json:"fee_rate"`
	Floored   bool   `json:"floored"`
	Capped    bool   `json:"capped"`
	Discount  string `json:"discount,omitempty"`
}

type totalsJSON struct {
	PrincipalBonded        string `json:"principal_bonded"`
	PayoutGiven            string `json:"payout_given"`
	PayoutSinceLastSubsidy string `json:"payout_since_last_subsidy"`
}

// MarketResponse is the wire form of a market snapshot.
type MarketResponse struct {
	ID                string         `json:"id"`
	PrincipalToken    string         `json:"principal_token"`
	PayoutToken       string         `json:"payout_token"`
	PrincipalDecimals uint8          `json:"principal_decimals"`
	PayoutDecimals    uint8          `json:"payout_decimals"`
	Treasury          string         `json:"treasury"`
	FeeTreasury       string         `json:"fee_treasury"`
	ModuleAccount     string         `json:"module_account"`
	Height            uint64         `json:"height"`
	Initialised       bool           `json:"initialised"`
	Terms             termsJSON      `json:"terms"`
	Adjustment        adjustmentJSON `json:"adjustment"`
	Quote             *quoteJSON     `json:"quote,omitempty"`
	CurrentDebt       string         `json:"current_debt,omitempty"`
	DebtDecay         string         `json:"debt_decay,omitempty"`
	MaxPayout         string         `json:"max_payout,omitempty"`
	Totals            totalsJSON     `json:"totals"`
}

type positionResponse struct {
	Owner         string `json:"owner"`
	Payout        string `json:"payout"`
	Vesting       uint64 `json:"vesting"`
	LastBlock     uint64 `json:"last_block"`
	PricePaid     string `json:"price_paid"`
	PercentVested string `json:"percent_vested"`
	PendingPayout string `json:"pending_payout"`
	Height        uint64 `json:"height"`
}

func str(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func newMarketResponse(view *core.MarketView) MarketResponse {
	m := view.Market
	out := MarketResponse{
		ID:                m.ID,
		PrincipalToken:    m.PrincipalToken,
		PayoutToken:       m.PayoutToken,
		PrincipalDecimals: view.PrincipalDecimals,
		PayoutDecimals:    view.PayoutDecimals,
		Treasury:          m.Treasury.String(),
		FeeTreasury:       m.FeeTreasury.String(),
		ModuleAccount:     view.ModuleAccount,
		Height:            view.Height,
		Initialised:       m.Initialised(),
		Terms: termsJSON{
			ControlVariable: str(m.Terms.ControlVariable),
			VestingTerm:     m.Terms.VestingTerm,
			MinimumPrice:    str(m.Terms.MinimumPrice),
			MaxPayout:       str(m.Terms.MaxPayout),
			MaxDebt:         str(m.Terms.MaxDebt),
			MaxDiscount:     str(m.Terms.MaxDiscount),
		},
		Adjustment: adjustmentJSON{
			Add:       m.Adjustment.Add,
			Rate:      str(m.Adjustment.Rate),
			Target:    str(m.Adjustment.Target),
			Buffer:    m.Adjustment.Buffer,
			LastBlock: m.Adjustment.LastBlock,
		},
		Totals: totalsJSON{
			PrincipalBonded:        str(view.Totals.PrincipalBonded),
			PayoutGiven:            str(view.Totals.PayoutGiven),
			PayoutSinceLastSubsidy: str(view.Totals.PayoutSinceLastSubsidy),
		},
	}
	if q := view.Quote; q != nil {
		out.Quote = &quoteJSON{
			DebtRatio: str(q.DebtRatio),
			RawPrice:  str(q.RawPrice),
			Price:     str(q.Price),
			TruePrice: str(q.TruePrice),
			FeeRate:   str(q.FeeRate),
			Floored:   q.Floored,
			Capped:    q.Capped,
		}
		if q.Discount != nil {
			out.Quote.Discount = q.Discount.String()
		}
		out.CurrentDebt = str(view.CurrentDebt)
		out.DebtDecay = str(view.DebtDecay)
		out.MaxPayout = str(view.MaxPayout)
	}
	return out
}

func newPositionResponse(view *core.PositionView) positionResponse {
	p := view.Position
	return positionResponse{
		Owner:         p.Owner.String(),
		Payout:        str(p.Payout),
		Vesting:       p.Vesting,
		LastBlock:     p.LastBlock,
		PricePaid:     str(p.PricePaid),
		PercentVested: str(view.PercentVested),
		PendingPayout: str(view.PendingPayout),
		Height:        view.Height,
	}
}

package state

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"bondchain/crypto"
	"bondchain/native/bond"
)

var (
	bondMarketPrefix   = []byte("bond/market/")
	bondPositionPrefix = []byte("bond/position/")
	bondMarketListKey  = ethcrypto.Keccak256([]byte("bond/market-list"))
)

func bondMarketKey(id string) []byte {
	buf := make([]byte, len(bondMarketPrefix)+len(id))
	copy(buf, bondMarketPrefix)
	copy(buf[len(bondMarketPrefix):], id)
	return ethcrypto.Keccak256(buf)
}

func bondPositionKey(id string, owner []byte) []byte {
	buf := make([]byte, len(bondPositionPrefix)+len(id)+1+len(owner))
	copy(buf, bondPositionPrefix)
	copy(buf[len(bondPositionPrefix):], id)
	buf[len(bondPositionPrefix)+len(id)] = '/'
	copy(buf[len(bondPositionPrefix)+len(id)+1:], owner)
	return ethcrypto.Keccak256(buf)
}

type storedAddress struct {
	Prefix string
	Bytes  [20]byte
}

func newStoredAddress(addr crypto.Address) storedAddress {
	return storedAddress{Prefix: string(addr.Prefix()), Bytes: addr.Raw()}
}

func (s storedAddress) address() crypto.Address {
	if s.Prefix == "" && s.Bytes == ([20]byte{}) {
		return crypto.Address{}
	}
	return crypto.NewAddress(crypto.AddressPrefix(s.Prefix), s.Bytes[:])
}

type storedMarket struct {
	ID                     string
	PrincipalToken         string
	PayoutToken            string
	Treasury               storedAddress
	FeeTreasury            storedAddress
	Policy                 storedAddress
	DAO                    storedAddress
	SubsidyRouter          storedAddress
	ControlVariable        *big.Int
	VestingTerm            uint64
	MinimumPrice           *big.Int
	MaxPayout              *big.Int
	MaxDebt                *big.Int
	MaxDiscount            *big.Int
	AdjustAdd              bool
	AdjustRate             *big.Int
	AdjustTarget           *big.Int
	AdjustBuffer           uint64
	AdjustLastBlock        uint64
	TierCeilings           []*big.Int
	TierRates              []*big.Int
	TotalDebt              *big.Int
	LastDecay              uint64
	TotalPrincipalBonded   *big.Int
	TotalPayoutGiven       *big.Int
	PayoutSinceLastSubsidy *big.Int
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func newStoredMarket(m *bond.Market) *storedMarket {
	stored := &storedMarket{
		ID:                     m.ID,
		PrincipalToken:         m.PrincipalToken,
		PayoutToken:            m.PayoutToken,
		Treasury:               newStoredAddress(m.Treasury),
		FeeTreasury:            newStoredAddress(m.FeeTreasury),
		Policy:                 newStoredAddress(m.Policy),
		DAO:                    newStoredAddress(m.DAO),
		SubsidyRouter:          newStoredAddress(m.SubsidyRouter),
		ControlVariable:        bigOrZero(m.Terms.ControlVariable),
		VestingTerm:            m.Terms.VestingTerm,
		MinimumPrice:           bigOrZero(m.Terms.MinimumPrice),
		MaxPayout:              bigOrZero(m.Terms.MaxPayout),
		MaxDebt:                bigOrZero(m.Terms.MaxDebt),
		MaxDiscount:            bigOrZero(m.Terms.MaxDiscount),
		AdjustAdd:              m.Adjustment.Add,
		AdjustRate:             bigOrZero(m.Adjustment.Rate),
		AdjustTarget:           bigOrZero(m.Adjustment.Target),
		AdjustBuffer:           m.Adjustment.Buffer,
		AdjustLastBlock:        m.Adjustment.LastBlock,
		TotalDebt:              bigOrZero(m.TotalDebt),
		LastDecay:              m.LastDecay,
		TotalPrincipalBonded:   bigOrZero(m.TotalPrincipalBonded),
		TotalPayoutGiven:       bigOrZero(m.TotalPayoutGiven),
		PayoutSinceLastSubsidy: bigOrZero(m.PayoutSinceLastSubsidy),
	}
	for _, tier := range m.FeeTiers {
		stored.TierCeilings = append(stored.TierCeilings, bigOrZero(tier.Ceiling))
		stored.TierRates = append(stored.TierRates, bigOrZero(tier.Rate))
	}
	return stored
}

func (s *storedMarket) toMarket() (*bond.Market, error) {
	if len(s.TierCeilings) != len(s.TierRates) {
		return nil, fmt.Errorf("bond market %s: corrupt fee schedule", s.ID)
	}
	market := &bond.Market{
		ID:             s.ID,
		PrincipalToken: s.PrincipalToken,
		PayoutToken:    s.PayoutToken,
		Treasury:       s.Treasury.address(),
		FeeTreasury:    s.FeeTreasury.address(),
		Policy:         s.Policy.address(),
		DAO:            s.DAO.address(),
		SubsidyRouter:  s.SubsidyRouter.address(),
		Terms: bond.Terms{
			ControlVariable: bigOrZero(s.ControlVariable),
			VestingTerm:     s.VestingTerm,
			MinimumPrice:    bigOrZero(s.MinimumPrice),
			MaxPayout:       bigOrZero(s.MaxPayout),
			MaxDebt:         bigOrZero(s.MaxDebt),
			MaxDiscount:     bigOrZero(s.MaxDiscount),
		},
		Adjustment: bond.Adjustment{
			Add:       s.AdjustAdd,
			Rate:      bigOrZero(s.AdjustRate),
			Target:    bigOrZero(s.AdjustTarget),
			Buffer:    s.AdjustBuffer,
			LastBlock: s.AdjustLastBlock,
		},
		TotalDebt:              bigOrZero(s.TotalDebt),
		LastDecay:              s.LastDecay,
		TotalPrincipalBonded:   bigOrZero(s.TotalPrincipalBonded),
		TotalPayoutGiven:       bigOrZero(s.TotalPayoutGiven),
		PayoutSinceLastSubsidy: bigOrZero(s.PayoutSinceLastSubsidy),
	}
	for i := range s.TierCeilings {
		market.FeeTiers = append(market.FeeTiers, bond.FeeTier{
			Ceiling: bigOrZero(s.TierCeilings[i]),
			Rate:    bigOrZero(s.TierRates[i]),
		})
	}
	return market, nil
}

type storedPosition struct {
	Owner     storedAddress
	Payout    *big.Int
	Vesting   uint64
	LastBlock uint64
	PricePaid *big.Int
}

// BondMarket loads a market by identifier. Missing markets yield nil.
func (m *Manager) BondMarket(id string) (*bond.Market, error) {
	stored := new(storedMarket)
	ok, err := m.getRLP(bondMarketKey(strings.TrimSpace(id)), stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return stored.toMarket()
}

// PutBondMarket persists a market and records it in the market index.
func (m *Manager) PutBondMarket(market *bond.Market) error {
	if market == nil || strings.TrimSpace(market.ID) == "" {
		return fmt.Errorf("bond market: identifier required")
	}
	ids, err := m.BondMarketIDs()
	if err != nil {
		return err
	}
	idx := sort.SearchStrings(ids, market.ID)
	if idx == len(ids) || ids[idx] != market.ID {
		ids = append(ids, "")
		copy(ids[idx+1:], ids[idx:])
		ids[idx] = market.ID
		if err := m.putRLP(bondMarketListKey, ids); err != nil {
			return err
		}
	}
	return m.putRLP(bondMarketKey(market.ID), newStoredMarket(market))
}

// BondMarketIDs lists registered markets in sorted order.
func (m *Manager) BondMarketIDs() ([]string, error) {
	var ids []string
	ok, err := m.getRLP(bondMarketListKey, &ids)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []string{}, nil
	}
	return ids, nil
}

// BondPosition loads a depositor's bond. Missing positions yield nil.
func (m *Manager) BondPosition(id string, owner crypto.Address) (*bond.Position, error) {
	stored := new(storedPosition)
	ok, err := m.getRLP(bondPositionKey(id, owner.Bytes()), stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &bond.Position{
		Owner:     stored.Owner.address(),
		Payout:    bigOrZero(stored.Payout),
		Vesting:   stored.Vesting,
		LastBlock: stored.LastBlock,
		PricePaid: bigOrZero(stored.PricePaid),
	}, nil
}

// PutBondPosition persists a depositor's bond.
func (m *Manager) PutBondPosition(id string, pos *bond.Position) error {
	if pos == nil || pos.Owner.IsZero() {
		return fmt.Errorf("bond position: owner required")
	}
	stored := &storedPosition{
		Owner:     newStoredAddress(pos.Owner),
		Payout:    bigOrZero(pos.Payout),
		Vesting:   pos.Vesting,
		LastBlock: pos.LastBlock,
		PricePaid: bigOrZero(pos.PricePaid),
	}
	return m.putRLP(bondPositionKey(id, pos.Owner.Bytes()), stored)
}

// DeleteBondPosition removes a depositor's bond.
func (m *Manager) DeleteBondPosition(id string, owner crypto.Address) error {
	return m.remove(bondPositionKey(id, owner.Bytes()))
}

package bond

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	ErrDivisionByZero = errors.New("bond math: division by zero")
	ErrOverflow       = errors.New("bond math: overflow")
)

var (
	q112       = new(big.Int).Lsh(big.NewInt(1), 112)
	maxUint224 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 224), big.NewInt(1))
	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	// 2^112 / 10^18, truncated. Decoding with it yields an 18 decimal value.
	q112Per1e18 = big.NewInt(5_192_296_858_534_827)
)

// Pow10 returns 10^n.
func Pow10(n uint) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// FitsUint256 reports whether x is a non-negative integer representable in
// 256 bits.
func FitsUint256(x *big.Int) bool {
	return x != nil && x.Sign() >= 0 && x.Cmp(maxUint256) <= 0
}

// MulDivFloor computes floor(a*b/denom) with unbounded intermediate precision.
func MulDivFloor(a, b, denom *big.Int) (*big.Int, error) {
	if denom == nil || denom.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, denom), nil
}

// MulDiv256 computes floor(a*b/denom) for 256-bit operands. The product is
// widened to 512 bits; only a quotient that does not fit 256 bits overflows.
func MulDiv256(a, b, denom *big.Int) (*big.Int, error) {
	if denom == nil || denom.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	if !FitsUint256(a) || !FitsUint256(b) || !FitsUint256(denom) {
		return nil, ErrOverflow
	}
	x, _ := uint256.FromBig(a)
	y, _ := uint256.FromBig(b)
	d, _ := uint256.FromBig(denom)
	result, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, ErrOverflow
	}
	return result.ToBig(), nil
}

// ToBaseUnits rescales amount from one decimal base to another, truncating.
func ToBaseUnits(amount *big.Int, fromDecimals, toDecimals uint8) *big.Int {
	if amount == nil {
		return big.NewInt(0)
	}
	out := new(big.Int).Set(amount)
	switch {
	case toDecimals > fromDecimals:
		out.Mul(out, Pow10(uint(toDecimals-fromDecimals)))
	case fromDecimals > toDecimals:
		out.Quo(out, Pow10(uint(fromDecimals-toDecimals)))
	}
	return out
}

// UQ112x112 is an unsigned binary fixed-point number with 112 fractional bits.
type UQ112x112 struct {
	x *big.Int
}

// Fraction encodes numerator/denominator as a UQ112x112. The encoded value
// must fit 224 bits.
func Fraction(numerator, denominator *big.Int) (UQ112x112, error) {
	if denominator == nil || denominator.Sign() <= 0 {
		return UQ112x112{}, ErrDivisionByZero
	}
	if numerator == nil || numerator.Sign() == 0 {
		return UQ112x112{x: big.NewInt(0)}, nil
	}
	result, err := MulDiv256(numerator, q112, denominator)
	if err != nil {
		return UQ112x112{}, err
	}
	if result.Cmp(maxUint224) > 0 {
		return UQ112x112{}, ErrOverflow
	}
	return UQ112x112{x: result}, nil
}

// Raw returns the encoded integer.
func (q UQ112x112) Raw() *big.Int {
	if q.x == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(q.x)
}

// Decode112With18 converts the fixed-point value into an integer carrying 18
// decimals.
func (q UQ112x112) Decode112With18() *big.Int {
	if q.x == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Quo(q.x, q112Per1e18)
}

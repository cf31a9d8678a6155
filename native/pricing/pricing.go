// Package pricing holds the pure listing-price and reputation-discount
// computations. Every function is deterministic integer arithmetic over
// non-negative amounts bounded to 256 bits.
package pricing

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"propchain/native/common"
)

const (
	// DefaultDemandThreshold is the demand score above which the multiplier applies.
	DefaultDemandThreshold uint64 = 100
	// DefaultDemandMultiplier scales the base price for high-demand listings.
	DefaultDemandMultiplier uint64 = 2
	// DefaultDiscountScoreThreshold is the reputation score above which the
	// discount applies.
	DefaultDiscountScoreThreshold uint64 = 80
	// DefaultDiscountPercent is the rent discount for reputable tenants.
	DefaultDiscountPercent uint64 = 10
	// DefaultLatePenaltyPercent is the rent increase applied once past due.
	DefaultLatePenaltyPercent uint64 = 10
)

// Factor is the externally supplied demand input for listing prices.
type Factor struct {
	Demand    uint64
	BasePrice *big.Int
}

// Reputation is the externally supplied tenant score.
type Reputation struct {
	Score uint64
}

// Policy bundles the thresholds used by listing and lease logic.
type Policy struct {
	DemandThreshold        uint64
	DemandMultiplier       uint64
	DiscountScoreThreshold uint64
	DiscountPercent        uint64
	LatePenaltyPercent     uint64
}

// DefaultPolicy returns the reference policy: threshold 100, multiplier 2,
// 10% discount above score 80 and a 10% late penalty.
func DefaultPolicy() Policy {
	return Policy{
		DemandThreshold:        DefaultDemandThreshold,
		DemandMultiplier:       DefaultDemandMultiplier,
		DiscountScoreThreshold: DefaultDiscountScoreThreshold,
		DiscountPercent:        DefaultDiscountPercent,
		LatePenaltyPercent:     DefaultLatePenaltyPercent,
	}
}

// Validate ensures the policy percentages are within range.
func (p Policy) Validate() error {
	if p.DemandMultiplier == 0 {
		return fmt.Errorf("pricing: demand multiplier must be positive")
	}
	if p.DiscountPercent > 100 {
		return fmt.Errorf("pricing: discount percent out of range: %d", p.DiscountPercent)
	}
	if p.LatePenaltyPercent > 100 {
		return fmt.Errorf("pricing: late penalty percent out of range: %d", p.LatePenaltyPercent)
	}
	return nil
}

// ListingPrice applies DynamicPrice with the policy threshold and multiplier.
func (p Policy) ListingPrice(f Factor) (*big.Int, error) {
	return DynamicPrice(f, p.DemandThreshold, p.DemandMultiplier)
}

// Discount returns the policy discount percentage for the reputation.
func (p Policy) Discount(r Reputation) uint64 {
	if r.Score > p.DiscountScoreThreshold {
		return p.DiscountPercent
	}
	return 0
}

// DynamicPrice returns base_price*multiplier when demand exceeds threshold,
// otherwise base_price.
func DynamicPrice(f Factor, threshold, multiplier uint64) (*big.Int, error) {
	base, err := toUint256(f.BasePrice)
	if err != nil {
		return nil, err
	}
	if f.Demand <= threshold {
		return base.ToBig(), nil
	}
	price, overflow := new(uint256.Int).MulOverflow(base, uint256.NewInt(multiplier))
	if overflow {
		return nil, fmt.Errorf("pricing: dynamic price: %w", common.ErrArithmeticOverflow)
	}
	return price.ToBig(), nil
}

// DiscountPercent returns 10 when the score exceeds 80, else 0.
func DiscountPercent(r Reputation) uint64 {
	return DefaultPolicy().Discount(r)
}

// PercentOf returns amount*percent/100, truncating toward zero.
func PercentOf(amount *big.Int, percent uint64) (*big.Int, error) {
	value, err := toUint256(amount)
	if err != nil {
		return nil, err
	}
	product, overflow := new(uint256.Int).MulOverflow(value, uint256.NewInt(percent))
	if overflow {
		return nil, fmt.Errorf("pricing: percent of amount: %w", common.ErrArithmeticOverflow)
	}
	return product.Div(product, uint256.NewInt(100)).ToBig(), nil
}

// Decrease subtracts percent of amount from amount. Percentages above 100
// are rejected so the result never goes negative.
func Decrease(amount *big.Int, percent uint64) (*big.Int, error) {
	if percent > 100 {
		return nil, fmt.Errorf("pricing: decrease percent %d: %w", percent, common.ErrInvalidAmount)
	}
	value, err := toUint256(amount)
	if err != nil {
		return nil, err
	}
	delta, err := PercentOf(amount, percent)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Sub(value.ToBig(), delta), nil
}

// Increase adds percent of amount to amount.
func Increase(amount *big.Int, percent uint64) (*big.Int, error) {
	value, err := toUint256(amount)
	if err != nil {
		return nil, err
	}
	delta, err := PercentOf(amount, percent)
	if err != nil {
		return nil, err
	}
	deltaValue, _ := uint256.FromBig(delta)
	sum, overflow := new(uint256.Int).AddOverflow(value, deltaValue)
	if overflow {
		return nil, fmt.Errorf("pricing: increase amount: %w", common.ErrArithmeticOverflow)
	}
	return sum.ToBig(), nil
}

// CheckAmount validates that amount is a non-negative 256-bit value.
func CheckAmount(amount *big.Int) error {
	_, err := toUint256(amount)
	return err
}

func toUint256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("pricing: negative amount %s: %w", v, common.ErrInvalidAmount)
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("pricing: amount exceeds 256 bits: %w", common.ErrArithmeticOverflow)
	}
	return out, nil
}

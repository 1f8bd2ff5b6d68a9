package domain

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestPriceFromReserves_EqualReserves(t *testing.T) {
	r := uint256.NewInt(1e18)

	price := PriceFromReserves(r, r)
	if price.Cmp(uint256.NewInt(1e18)) != 0 {
		t.Errorf("1:1 reserves should price at 1e18, got %s", price)
	}
}

func TestPriceFromReserves_DoubleReserve1(t *testing.T) {
	r0 := uint256.NewInt(1e18)
	r1 := uint256.NewInt(2e18)

	price := PriceFromReserves(r0, r1)
	if price.Cmp(uint256.NewInt(2e18)) != 0 {
		t.Errorf("2:1 reserves should price at 2e18, got %s", price)
	}
}

func TestPriceFromReserves_EmptyPool(t *testing.T) {
	price := PriceFromReserves(uint256.NewInt(0), uint256.NewInt(5))
	if !price.IsZero() {
		t.Errorf("empty reserve0 should price at zero, got %s", price)
	}
}

func TestPriceFromReserves_LargeReserves(t *testing.T) {
	// Reserves near the uint112 cap must not overflow the 256-bit math.
	r0 := new(uint256.Int).Lsh(uint256.NewInt(1), 112)
	r1 := new(uint256.Int).Lsh(uint256.NewInt(1), 112)

	price := PriceFromReserves(r0, r1)
	if price.Cmp(uint256.NewInt(1e18)) != 0 {
		t.Errorf("equal max reserves should price at 1e18, got %s", price)
	}
}

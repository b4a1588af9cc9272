package mmpolicy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-desktop/trading-backend/internal/domain"
	"github.com/atlas-desktop/trading-backend/internal/structure"
)

func testParams() GridParams {
	return GridParams{
		Levels:            3,
		StepBps:           10,
		BaseQuotePerOrder: 50,
		MaxSizeMult:       2.0,
		SoftMin:           0.40,
		SoftMax:           0.60,
		HardMin:           0.35,
		HardMax:           0.65,
		MinBaseQty:        0.0001,
	}
}

func TestBuildGridBuildsOrders(t *testing.T) {
	inv := Inventory{Base: 1.0, Quote: 1000.0}
	orders := BuildGrid(1000, 1000, inv, testParams())
	assert.NotEmpty(t, orders)
}

func TestBuildGridReturnsNoneOutsideHardBand(t *testing.T) {
	inv := Inventory{Base: 10, Quote: 10}
	orders := BuildGrid(1000, 1000, inv, testParams())
	assert.Nil(t, orders)
}

func TestBuildGridCapsSellQtyToAvailableBase(t *testing.T) {
	inv := Inventory{Base: 0.02, Quote: 20}
	orders := BuildGrid(1000, 1000, inv, testParams())
	require.NotNil(t, orders)
	var total float64
	for _, o := range orders {
		if o.Side == Sell {
			total += float64(o.Qty)
		}
	}
	assert.LessOrEqual(t, total, float64(inv.Base)+1e-9)
}

func TestBuildGridCapsBuyNotionalToAvailableQuote(t *testing.T) {
	inv := Inventory{Base: 0.02, Quote: 20}
	orders := BuildGrid(1000, 1000, inv, testParams())
	require.NotNil(t, orders)
	var total float64
	for _, o := range orders {
		if o.Side == Buy {
			total += float64(o.Qty) * float64(o.Price)
		}
	}
	assert.LessOrEqual(t, total, float64(inv.Quote)+1e-9)
}

func TestBuildGridBiasesTowardSellsWhenOverweightBase(t *testing.T) {
	inv := Inventory{Base: 6.0, Quote: 4000.0} // r = 0.6
	orders := BuildGrid(1000, 1000, inv, testParams())
	require.NotNil(t, orders)
	var buyQty, sellQty float64
	for _, o := range orders {
		if o.Side == Buy {
			buyQty += float64(o.Qty)
		} else {
			sellQty += float64(o.Qty)
		}
	}
	assert.Greater(t, sellQty, buyQty)
}

func TestBuildGridBiasesTowardBuysWhenUnderweightBase(t *testing.T) {
	inv := Inventory{Base: 4.0, Quote: 6000.0} // r = 0.4
	orders := BuildGrid(1000, 1000, inv, testParams())
	require.NotNil(t, orders)
	var buyQty, sellQty float64
	for _, o := range orders {
		if o.Side == Buy {
			buyQty += float64(o.Qty)
		} else {
			sellQty += float64(o.Qty)
		}
	}
	assert.Greater(t, buyQty, sellQty)
}

func TestPolicyDecisionOrder(t *testing.T) {
	params := Params{SoftMin: 0.4, SoftMax: 0.6, HardMin: 0.35, HardMax: 0.65}

	d := Decide(structure.BosPotential, true, 0.5, params)
	assert.Equal(t, Disabled, d.Mode)
	assert.Equal(t, ReasonNoConfirmedBos, d.Reason)

	d = Decide(structure.BosConfirmed, false, 0.5, params)
	assert.Equal(t, Disabled, d.Mode)
	assert.Equal(t, ReasonNoPullback, d.Reason)

	d = Decide(structure.BosConfirmed, true, 0.999, params)
	assert.Equal(t, Disabled, d.Mode)
	assert.Equal(t, ReasonInventoryOutsideHardBand, d.Reason)

	d = Decide(structure.BosConfirmed, true, 0.62, params)
	assert.Equal(t, Defensive, d.Mode)
	assert.Equal(t, ReasonInventoryOutsideSoftBand, d.Reason)

	d = Decide(structure.BosConfirmed, true, 0.5, params)
	assert.Equal(t, Normal, d.Mode)
	assert.Equal(t, ReasonOk, d.Reason)
}

func TestHardBandRejectScenario(t *testing.T) {
	inv := Inventory{Base: 10, Quote: 10}
	r, ok := BaseRatio(inv, 1000)
	require.True(t, ok)
	assert.InDelta(t, 0.999, float64(r), 1e-3)
	assert.Nil(t, BuildGrid(1000, 1000, inv, testParams()))

	d := Decide(structure.BosConfirmed, true, r, Params{SoftMin: 0.4, SoftMax: 0.6, HardMin: 0.35, HardMax: 0.65})
	assert.Equal(t, Disabled, d.Mode)
	assert.Equal(t, ReasonInventoryOutsideHardBand, d.Reason)
}

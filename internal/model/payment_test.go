package model_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/club-payments/internal/model"
)

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestTotalPriceSumsEveryItem(t *testing.T) {
	cc := model.CoatCheck("Coat", price("2.00"))
	p := model.NewPayment(
		[]model.LineItem{model.Ticket("VIP", price("30.00"))},
		[]model.LineItem{model.Consumable("Beer", price("5.00")), model.Consumable("Water", price("1.50"))},
		&cc,
	)
	assert.True(t, p.TotalPrice().Equal(price("38.50")), "got %s", p.TotalPrice())
}

func TestTotalPriceZeroItems(t *testing.T) {
	p := model.NewPayment(nil, nil, nil)
	assert.True(t, p.TotalPrice().IsZero())
	assert.Empty(t, p.Tickets())
	assert.Nil(t, p.CoatCheck())
}

func TestPaymentOwnsItems(t *testing.T) {
	tickets := []model.LineItem{model.Ticket("General", price("10.00"))}
	p := model.NewPayment(tickets, nil, nil)
	tickets[0] = model.Ticket("Mutated", price("99.00"))

	got := p.Tickets()
	assert.Equal(t, "General", got[0].Description)
	got[0] = model.Ticket("Again", price("1.00"))
	assert.Equal(t, "General", p.Tickets()[0].Description)
	assert.True(t, p.TotalPrice().Equal(price("10.00")))
}

func TestAssignIDOnce(t *testing.T) {
	p := model.NewPayment(nil, nil, nil)
	_, ok := p.ID()
	require.False(t, ok)

	require.NoError(t, p.AssignID(7))
	id, ok := p.ID()
	require.True(t, ok)
	assert.Equal(t, int64(7), id)

	err := p.AssignID(8)
	assert.True(t, errors.Is(err, model.ErrIDAssigned))
	id, _ = p.ID()
	assert.Equal(t, int64(7), id)
}

func TestSummaryCarriesTotal(t *testing.T) {
	p := model.NewSummary(3, price("37.00"))
	assert.True(t, p.Summary())
	assert.True(t, p.TotalPrice().Equal(price("37.00")))
	assert.Empty(t, p.Consumables())
	assert.Contains(t, p.String(), "Total: 37.00")
}

func TestStringRendersItems(t *testing.T) {
	cc := model.CoatCheck("Coat", price("2"))
	p := model.NewPaymentWithID(4, []model.LineItem{model.Ticket("VIP", price("30"))}, nil, &cc)
	out := p.String()
	assert.Contains(t, out, "ID: 4")
	assert.Contains(t, out, "VIP : 30.00 €")
	assert.Contains(t, out, "Coat : 2.00 €")
	assert.Contains(t, out, "Total: 32.00 €")
}

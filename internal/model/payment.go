package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrIDAssigned is returned by AssignID when the payment already carries an
// identity.  Identities are immutable once assigned.
var ErrIDAssigned = errors.New("payment id already assigned")

// Payment is the aggregate persisted by the storage layer: the tickets,
// consumables and optional coat-check fee charged together at the door.
//
// Fields:
//  id          – set by the relational backend on first save (hasID reports it).
//  tickets     – ticket line items in insertion order.
//  consumables – consumable line items in insertion order.
//  coatCheck   – optional coat-check fee.
//  total       – derived in the constructor, never set directly.
//  summary     – true when only the total survived (flat-file records).
type Payment struct {
	id          int64
	hasID       bool
	tickets     []LineItem
	consumables []LineItem
	coatCheck   *LineItem
	total       decimal.Decimal
	summary     bool
}

// NewPayment builds a transient payment without an id.  The slices are
// copied so the payment owns its items.  coatCheck may be nil.
func NewPayment(tickets, consumables []LineItem, coatCheck *LineItem) *Payment {
	p := &Payment{
		tickets:     cloneItems(tickets),
		consumables: cloneItems(consumables),
	}
	if coatCheck != nil {
		cc := *coatCheck
		p.coatCheck = &cc
	}
	p.total = p.computeTotal()
	return p
}

// NewPaymentWithID is NewPayment for aggregates rebuilt by a backend that
// already knows the identity.
func NewPaymentWithID(id int64, tickets, consumables []LineItem, coatCheck *LineItem) *Payment {
	p := NewPayment(tickets, consumables, coatCheck)
	p.id, p.hasID = id, true
	return p
}

// NewSummary rebuilds a payment from a backend that only keeps the total.
// The result has no line items and reports Summary() == true.
func NewSummary(id int64, total decimal.Decimal) *Payment {
	return &Payment{id: id, hasID: true, total: total, summary: true}
}

func (p *Payment) computeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, t := range p.tickets {
		total = total.Add(t.UnitPrice)
	}
	for _, c := range p.consumables {
		total = total.Add(c.UnitPrice)
	}
	if p.coatCheck != nil {
		total = total.Add(p.coatCheck.UnitPrice)
	}
	return total
}

// ID returns the identity and whether one has been assigned.
func (p *Payment) ID() (int64, bool) { return p.id, p.hasID }

// AssignID sets the identity exactly once.
func (p *Payment) AssignID(id int64) error {
	if p.hasID {
		return fmt.Errorf("%w: %d", ErrIDAssigned, p.id)
	}
	p.id, p.hasID = id, true
	return nil
}

// Tickets returns a copy of the ticket items.
func (p *Payment) Tickets() []LineItem { return cloneItems(p.tickets) }

// Consumables returns a copy of the consumable items.
func (p *Payment) Consumables() []LineItem { return cloneItems(p.consumables) }

// CoatCheck returns the coat-check item, or nil.
func (p *Payment) CoatCheck() *LineItem {
	if p.coatCheck == nil {
		return nil
	}
	cc := *p.coatCheck
	return &cc
}

// TotalPrice is the sum of every line item price.
func (p *Payment) TotalPrice() decimal.Decimal { return p.total }

// Summary reports whether the line-item breakdown was lost.
func (p *Payment) Summary() bool { return p.summary }

// String renders the payment for operator output.
func (p *Payment) String() string {
	var sb strings.Builder
	if p.hasID {
		fmt.Fprintf(&sb, "ID: %d\n", p.id)
	} else {
		sb.WriteString("ID: -\n")
	}
	sb.WriteString("Tickets:\n")
	for _, t := range p.tickets {
		fmt.Fprintf(&sb, " - %s\n", t)
	}
	sb.WriteString("Consumables:\n")
	for _, c := range p.consumables {
		fmt.Fprintf(&sb, " - %s\n", c)
	}
	sb.WriteString("Coat check:\n")
	if p.coatCheck != nil {
		fmt.Fprintf(&sb, " - %s\n", p.coatCheck)
	}
	if p.summary {
		sb.WriteString("(line items not available from this backend)\n")
	}
	fmt.Fprintf(&sb, "Total: %s €\n", p.total.StringFixed(2))
	return sb.String()
}

func cloneItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}

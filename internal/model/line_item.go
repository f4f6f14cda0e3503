package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ItemKind classifies a line item.  Each kind maps to its own child table
// in the relational backend.
type ItemKind string

const (
	KindTicket     ItemKind = "TICKET"
	KindConsumable ItemKind = "CONSUMABLE"
	KindCoatCheck  ItemKind = "COAT_CHECK"
)

// LineItem is a single priced entry of a payment.  It is a value type and
// is never modified after construction.
type LineItem struct {
	Kind        ItemKind
	Description string
	UnitPrice   decimal.Decimal
}

// Ticket builds a ticket line item.
func Ticket(desc string, price decimal.Decimal) LineItem {
	return LineItem{Kind: KindTicket, Description: desc, UnitPrice: price}
}

// Consumable builds a consumable line item.
func Consumable(desc string, price decimal.Decimal) LineItem {
	return LineItem{Kind: KindConsumable, Description: desc, UnitPrice: price}
}

// CoatCheck builds a coat-check line item.
func CoatCheck(desc string, price decimal.Decimal) LineItem {
	return LineItem{Kind: KindCoatCheck, Description: desc, UnitPrice: price}
}

func (i LineItem) String() string {
	return fmt.Sprintf("%s : %s €", i.Description, i.UnitPrice.StringFixed(2))
}

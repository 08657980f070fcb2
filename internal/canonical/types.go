package canonical

import (
	"strconv"
	"strings"
)

// Type is one element of the closed canonical vocabulary.
// The string value is the exact column name downstream engines expect.
type Type string

const (
	Date     Type = "Date"
	Sales    Type = "Sales"
	Amount   Type = "Amount"
	Product  Type = "Product"
	Quantity Type = "Quantity"
	Region   Type = "Region"
	Customer Type = "Customer"
	Category Type = "Category"
	Price    Type = "Price"
	Cost     Type = "Cost"
	Profit   Type = "Profit"
	Discount Type = "Discount"
	OrderID  Type = "OrderID"

	// Ignore is always a legal sink for headers with no semantic role.
	Ignore Type = "Ignore"
)

// vocabulary lists every legal type in a stable order.
var vocabulary = []Type{
	Date, Sales, Amount, Product, Quantity, Region,
	Customer, Category, Price, Cost, Profit, Discount, OrderID,
	Ignore,
}

// Vocabulary returns a copy of the closed vocabulary, Ignore last.
func Vocabulary() []Type {
	out := make([]Type, len(vocabulary))
	copy(out, vocabulary)

	return out
}

// Parse resolves a name onto the vocabulary. Matching is case-insensitive
// and tolerates surrounding whitespace. The boolean is false for unknown names.
func Parse(name string) (Type, bool) {
	clean := strings.TrimSpace(name)
	for _, t := range vocabulary {
		if strings.EqualFold(string(t), clean) {
			return t, true
		}
	}

	return "", false
}

// IsValid reports whether t belongs to the vocabulary.
func (t Type) IsValid() bool {
	for _, v := range vocabulary {
		if v == t {
			return true
		}
	}

	return false
}

// IsIgnore reports whether t is the Ignore sink.
func (t Type) IsIgnore() bool {
	return t == Ignore
}

// String returns the canonical column name.
func (t Type) String() string {
	return string(t)
}

// Alias returns the collision alias for the n-th losing claimant,
// e.g. Region.Alias(1) == "Region_1".
func (t Type) Alias(n int) string {
	return string(t) + "_" + strconv.Itoa(n)
}

// Numeric reports whether columns of this type are expected to coerce to numbers.
func (t Type) Numeric() bool {
	switch t {
	case Sales, Amount, Quantity, Price, Cost, Profit, Discount:
		return true
	default:
		return false
	}
}

// Temporal reports whether columns of this type are expected to coerce to dates.
func (t Type) Temporal() bool {
	return t == Date
}

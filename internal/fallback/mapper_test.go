package fallback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemamap/internal/canonical"
	"schemamap/internal/mapping"
)

func TestMap(t *testing.T) {
	tests := []struct {
		header string
		want   canonical.Type
		conf   float64
	}{
		{"Date", canonical.Date, 0.95},
		{"txn_dt", canonical.Date, 0.90},
		{"Order No", canonical.OrderID, 0.92},
		{"Sale Date", canonical.Date, 0.80},
		{"rev", canonical.Sales, 0.90},
		{"Unit Price", canonical.Price, 0.85},
		{"Unit Cost", canonical.Cost, 0.85},
		{"QTY_SOLD", canonical.Quantity, 0.85},
		{"Cust Name", canonical.Customer, 0.85},
		{"Year", canonical.Date, 0.80},
		{"Week", canonical.Date, 0.80},
		{"Line Total", canonical.Amount, 0.70},
		{"Región", canonical.Region, 0.90},
	}

	m := New(0)

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, ok := m.Map(tt.header)
			require.True(t, ok)
			assert.Equal(t, tt.want, got.Type)
			assert.InDelta(t, tt.conf, got.Confidence, 1e-9)
			assert.Equal(t, mapping.SourceLocalRule, got.Source)
			assert.Equal(t, "keyword", got.Strategy)
		})
	}
}

func TestMapExclusions(t *testing.T) {
	m := New(0)

	for _, header := range []string{
		"Sales Rep", "Payment Amount", "Discount", "discount_value", "Tax Total",
		"Shipping Cost", "Order Notes", "Commission",
	} {
		_, ok := m.Map(header)
		assert.False(t, ok, header)
	}
}

func TestMapBelowGate(t *testing.T) {
	m := New(0)

	for _, header := range []string{"", "   ", "misc", "foo bar"} {
		_, ok := m.Map(header)
		assert.False(t, ok, header)
	}

	_, ok := New(90).Map("txn_dt")
	assert.True(t, ok, "90 clears a 90 gate")

	_, ok = New(91).Map("txn_dt")
	assert.False(t, ok)
}

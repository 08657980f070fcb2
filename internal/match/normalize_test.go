package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		// Separators
		{"Sale_Date", "sale date"},
		{"sales.amount", "sales amount"},
		{"product-id", "product id"},
		{"Region / Zone", "region zone"},
		{"a&b|c", "a b c"},

		// Case and camel case
		{"REGION", "region"},
		{"SalesAmount", "sales amount"},
		{"productID", "product id"},
		{"HTTPStatus", "http status"},

		// Punctuation and whitespace
		{"  Qty (units)  ", "qty units"},
		{"Chiffre d'affaires", "chiffre daffaires"},
		{"price$", "price"},
		{"__total__", "total"},

		// Unicode folding
		{"Quantité", "quantite"},
		{"Straße", "strasse"},
		{"Ørder", "order"},
		{"Ðata", "data"},
		{"İstanbul", "istanbul"},
		{"Ꭰ", "ꭰ"},
		{"区域", "区域"},

		// Edge cases
		{"", ""},
		{"   ", ""},
		{"ID", "id"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeHeader(tt.input))
		})
	}
}

func TestNormalizeHeaderIdempotentForEveryRune(t *testing.T) {
	failures := 0

	for r := rune(0x20); r <= 0x2FFFF && failures < 10; r++ {
		for _, in := range []string{string(r), "x" + string(r) + "Y", string(r) + string(r) + "a"} {
			once := NormalizeHeader(in)
			if twice := NormalizeHeader(once); twice != once {
				failures++
				t.Errorf("U+%04X %q -> %q -> %q", r, in, once, twice)
			}
		}
	}
}

func FuzzNormalizeHeader(f *testing.F) {
	for _, seed := range []string{
		"Sale_Date", "SalesAmount", "Quantité vendue", "  Qty (units)  ",
		"txn_dt", "rev", "Région", "order-ID#", "Straße_Nr", "A&B|C and D",
		"ÆRØ", "Ðata", "ᎠᏃ", "İstanbul", "ΣΑΣ", "ᄀ!ᅡ", "区域_销售", "X.Y.Z", "",
	} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, raw string) {
		once := NormalizeHeader(raw)
		require.Equal(t, once, NormalizeHeader(once), "normalize(%q)", raw)
	})
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"txn", "dt"}, Tokens("txn dt"))
	assert.Empty(t, Tokens(""))
}

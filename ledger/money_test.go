package ledger_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/pos-ledger/ledger"
)

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		want     string
	}{
		{"1250", "PHP", "₱1,250.00"},
		{"12.5", "php", "₱12.50"},
		{"0.005", "PHP", "₱0.01"},
		{"-35", "PHP", "-₱35.00"},
		{"9.99", "USD", "$9.99"},
		{"7.5", "XXQ", "7.50"},
	}
	for _, tt := range tests {
		t.Run(tt.amount+" "+tt.currency, func(t *testing.T) {
			assert.Equal(t, tt.want, ledger.FormatMoney(decimal.RequireFromString(tt.amount), tt.currency))
		})
	}
}

func TestReferenceGenerator(t *testing.T) {
	gen, err := ledger.NewReferenceGenerator()
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		ref := gen()
		require.Len(t, ref, ledger.ReferenceLength)
		require.False(t, seen[ref], "duplicate reference %s", ref)
		seen[ref] = true
	}
}

package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestDeriveStatus(t *testing.T) {
	d := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }

	cases := []struct {
		name   string
		amount string
		paid   string
		want   Status
	}{
		{"nothing paid", "1000", "0", StatusUnpaid},
		{"partially paid", "1000", "400", StatusPartial},
		{"fully paid", "1000", "1000", StatusPaid},
		{"zero amount is settled", "0", "0", StatusPaid},
		{"credit note unrefunded", "-500", "0", StatusUnpaid},
		{"credit note partially refunded", "-500", "-200", StatusPartial},
		{"credit note fully refunded", "-500", "-500", StatusPaid},
		{"cent precision", "99.99", "99.99", StatusPaid},
		{"one cent short", "100.00", "99.99", StatusPartial},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, DeriveStatus(d(tc.amount), d(tc.paid)))
		})
	}
}

func TestBillableDue(t *testing.T) {
	b := Billable{
		Amount:     decimal.RequireFromString("1500"),
		AmountPaid: decimal.RequireFromString("600"),
	}
	require.True(t, b.Due().Equal(decimal.RequireFromString("900")))
}

func TestValidMethod(t *testing.T) {
	require.True(t, ValidMethod(MethodCash))
	require.True(t, ValidMethod(MethodMpesa))
	require.False(t, ValidMethod(Method("cheque")))
}

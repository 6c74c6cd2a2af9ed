package credit

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAdmit(t *testing.T) {
	cases := []struct {
		name        string
		limit       string
		balance     string
		prospective string
		walkIn      bool
		allowed     bool
		available   string
	}{
		{"fully paid always passes", "0", "0", "0", false, true, "0"},
		{"within limit", "1000", "200", "800", false, true, "800"},
		{"exactly at limit", "1000", "0", "1000", false, true, "1000"},
		{"one cent over", "1000", "0", "1000.01", false, false, "1000"},
		{"balance consumes limit", "1000", "900", "200", false, false, "100"},
		{"zero limit denies any debt", "0", "0", "0.01", false, false, "0"},
		{"overdrawn floors at zero", "500", "700", "10", false, false, "0"},
		{"walk-in passes with unpaid remainder", "0", "0", "1000", true, true, "0"},
		{"walk-in fully paid passes", "0", "0", "0", true, true, "0"},
		{"credit balance extends room", "500", "-100", "600", false, true, "600"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Admit(d(tc.limit), d(tc.balance), d(tc.prospective), tc.walkIn)
			require.Equal(t, tc.allowed, got.Allowed)
			require.True(t, got.AvailableCredit.Equal(d(tc.available)),
				"available credit %s, want %s", got.AvailableCredit, tc.available)
		})
	}
}

package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      interface{}
		want    decimal.Decimal
		wantErr bool
		missing bool
	}{
		{name: "float64", in: 12.5, want: decimal.RequireFromString("12.5")},
		{name: "int", in: 7, want: decimal.NewFromInt(7)},
		{name: "int64", in: int64(9), want: decimal.NewFromInt(9)},
		{name: "plain string", in: "200.00", want: decimal.RequireFromString("200")},
		{name: "currency string", in: "$1,204.50", want: decimal.RequireFromString("1204.5")},
		{name: "pound string", in: " £18.00 ", want: decimal.RequireFromString("18")},
		{name: "negative string", in: "-3.10", want: decimal.RequireFromString("-3.1")},
		{name: "nil", in: nil, wantErr: true, missing: true},
		{name: "empty string", in: "  ", wantErr: true, missing: true},
		{name: "garbage", in: "twelve", wantErr: true},
		{name: "bool", in: true, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				if tc.missing {
					require.ErrorIs(t, err, ErrMissing)
				} else {
					require.NotErrorIs(t, err, ErrMissing)
				}
				return
			}
			require.NoError(t, err)
			require.True(t, tc.want.Equal(got), "want %s got %s", tc.want, got)
		})
	}
}

func TestParseOptional(t *testing.T) {
	got, err := ParseOptional(nil)
	require.NoError(t, err)
	require.True(t, got.IsZero())

	_, err = ParseOptional("abc")
	require.Error(t, err)
}

func TestField(t *testing.T) {
	data := map[string]interface{}{"total_price": "99.95", "bad": "x"}

	got, err := Field(data, "total_price")
	require.NoError(t, err)
	require.Equal(t, "99.95", got.String())

	_, err = Field(data, "absent")
	require.ErrorIs(t, err, ErrMissing)

	_, err = Field(data, "bad")
	require.ErrorContains(t, err, "bad")
}

func TestMicros(t *testing.T) {
	got, err := Micros("12345678")
	require.NoError(t, err)
	require.Equal(t, "12.345678", got.String())
}

func TestClamp(t *testing.T) {
	lo, hi := decimal.Zero, decimal.NewFromInt(100)
	require.True(t, Clamp(decimal.NewFromInt(-5), lo, hi).Equal(lo))
	require.True(t, Clamp(decimal.NewFromInt(150), lo, hi).Equal(hi))
	require.True(t, Clamp(decimal.NewFromInt(42), lo, hi).Equal(decimal.NewFromInt(42)))
}

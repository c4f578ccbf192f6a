package currency

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewAmount(t *testing.T) {
	tests := []struct {
		name    string
		btc     float64
		want    Amount
		wantErr bool
	}{
		{name: "zero", btc: 0, want: 0},
		{name: "one btc", btc: 1, want: 1e8},
		{name: "dust", btc: 0.00000546, want: 546},
		{name: "nan", btc: math.NaN(), wantErr: true},
		{name: "inf", btc: math.Inf(1), wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NewAmount(tc.btc)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestAmountArithmetic(t *testing.T) {
	a := Amount(20_000_000)
	b := Amount(5_000_000)

	require.Equal(t, Amount(25_000_000), a.Add(b))
	require.Equal(t, Amount(15_000_000), a.Sub(b))
	require.True(t, a.IsPositive())
	require.False(t, Amount(0).IsPositive())
	require.False(t, Amount(-1).IsPositive())
}

func TestAmountFormat(t *testing.T) {
	a := Amount(150_000_000)
	require.Equal(t, "1.5", a.Format(Main)[:3])
	require.Equal(t, "150000000 sat", a.Format(Base))
	require.InDelta(t, 1.5, a.ToUnit(Main), 1e-12)
}

package money

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromString(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "two decimals", in: "49.99", want: "49.99"},
		{name: "integer", in: "50", want: "50.00"},
		{name: "one decimal", in: "5.9", want: "5.90"},
		{name: "rounds half to even down", in: "2.125", want: "2.12"},
		{name: "rounds half to even up", in: "2.135", want: "2.14"},
		{name: "garbage", in: "fifty", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := FromString(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.String())
		})
	}
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "10.00", MustFromString("100.00").Percent(10).String())
	assert.Equal(t, "5.00", MustFromString("49.99").Percent(10).Round2().Add(Zero).String())
	assert.Equal(t, "0.00", Zero.Percent(10).String())
}

func TestArithmetic(t *testing.T) {
	subtotal := MustFromString("100.00")
	discount := subtotal.Percent(10)
	shipping := MustFromString("5.99")

	total := subtotal.Sub(discount).Add(shipping)
	assert.Equal(t, "95.99", total.String())
}

func TestCentsRoundTrip(t *testing.T) {
	m := FromCents(5099)
	assert.Equal(t, "50.99", m.String())
	assert.Equal(t, int64(5099), m.Cents())
}

// Round2 must be idempotent for every representable amount: rounding an
// already-rounded value never changes it.
func TestRound2Idempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		m := FromCents(rng.Int63n(10_000_000) - 5_000_000)
		once := m.Round2()
		twice := once.Round2()
		require.True(t, once.Equal(twice), "round2 not idempotent for %s", m)
	}
}

// Banker's rounding is deterministic: re-deriving the same discount from
// the same subtotal always yields an identical amount.
func TestPercentDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		subtotal := FromCents(rng.Int63n(1_000_000))
		first := subtotal.Percent(10)
		for j := 0; j < 5; j++ {
			require.True(t, first.Equal(subtotal.Percent(10)))
		}
	}
}

func TestComparisons(t *testing.T) {
	a := MustFromString("50.00")
	b := MustFromString("49.99")

	assert.True(t, b.LessThan(a))
	assert.False(t, a.LessThan(a))
	assert.Equal(t, 1, a.Cmp(b))
	assert.False(t, a.IsNegative())
	assert.True(t, MustFromString("-0.01").IsNegative())
}

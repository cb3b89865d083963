package scoring

import (
	"testing"

	"market-cards-scoring/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var boomCard = models.AssetRates{Equity: dec("15"), Debt: dec("2"), Gold: dec("-3"), Cash: dec("1")}

func TestWeightedReturn(t *testing.T) {
	tests := []struct {
		name  string
		alloc models.AssetAllocation
		want  string
	}{
		{"equity heavy", alloc(40, 30, 20, 10), "6.1"},
		{"cash heavy", alloc(10, 10, 20, 60), "1.7"},
		{"all equity", alloc(100, 0, 0, 0), "15"},
		{"fractional weights", alloc(33, 33, 33, 1), "4.63"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := WeightedReturn(tt.alloc, boomCard)
			require.NoError(t, err)
			assert.True(t, got.Equal(dec(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestWeightedReturn_KeepsFullPrecision(t *testing.T) {
	rates := models.AssetRates{Equity: dec("1.25"), Debt: dec("0"), Gold: dec("0"), Cash: dec("0")}
	got, err := WeightedReturn(alloc(33, 33, 33, 1), rates)
	require.NoError(t, err)
	assert.Equal(t, "0.4125", got.String())
}

func TestWeightedReturn_RefusesUnnormalizedAllocation(t *testing.T) {
	_, err := WeightedReturn(alloc(30, 30, 30, 20), boomCard)
	require.ErrorIs(t, err, ErrAllocationNotNormalized)

	_, err = WeightedModifier(alloc(10, 10, 10, 10), boomCard)
	require.ErrorIs(t, err, ErrAllocationNotNormalized)
}

func TestApplyEventReturn(t *testing.T) {
	got := ApplyEventReturn(dec("10.00"), dec("6.10"), 3, 0)
	assert.Equal(t, "13.61", RoundNAV(got).StringFixed(2))

	// bonuses are flat, not compounded
	got = ApplyEventReturn(dec("20"), dec("-50"), 2, 1)
	assert.True(t, got.Equal(dec("13")), "got %s", got)
}

func TestApplyShockModifier(t *testing.T) {
	got := ApplyShockModifier(dec("13.61"), dec("-10"))
	assert.True(t, got.Equal(dec("12.249")), "got %s", got)
	assert.Equal(t, "12.25", RoundNAV(got).StringFixed(2))
}

func TestApplyShockModifier_ZeroIsIdentity(t *testing.T) {
	for _, s := range []string{"0", "10.00", "13.61", "-4.5", "123456.78"} {
		x := dec(s)
		got := ApplyShockModifier(x, decimal.Zero)
		assert.Equal(t, x, got)
	}

	res, err := ScoreShock(dec("13.61"), alloc(25, 25, 25, 25), models.AssetRates{})
	require.NoError(t, err)
	assert.True(t, res.NAV.Equal(dec("13.61")))
	assert.True(t, res.WeightedModifier.IsZero())
}

func TestRoundNAV_HalfAwayFromZero(t *testing.T) {
	assert.Equal(t, "10.13", RoundNAV(dec("10.125")).StringFixed(2))
	assert.Equal(t, "10.12", RoundNAV(dec("10.1249")).StringFixed(2))
	assert.Equal(t, "-10.13", RoundNAV(dec("-10.125")).StringFixed(2))
}

func TestScoreEvent_EndToEndExample(t *testing.T) {
	teamA, err := ScoreEvent(models.StartingNAV, alloc(40, 30, 20, 10), boomCard, 3, 0)
	require.NoError(t, err)
	assert.True(t, teamA.WeightedReturn.Equal(dec("6.10")))
	assert.Equal(t, "13.61", teamA.NAVAfter.StringFixed(2))

	teamB, err := ScoreEvent(models.StartingNAV, alloc(10, 10, 20, 60), boomCard, 2, 1)
	require.NoError(t, err)
	assert.True(t, teamB.WeightedReturn.Equal(dec("1.70")))
	// 10 * 1.017 + 3
	assert.Equal(t, "13.17", teamB.NAVAfter.StringFixed(2))
}

func TestScoreEvent_RoundsOnlyOnce(t *testing.T) {
	// 10.01 * 1.004125 = 10.05129125
	rates := models.AssetRates{Equity: dec("1.25")}
	res, err := ScoreEvent(dec("10.01"), alloc(33, 33, 33, 1), rates, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "0.4125", res.WeightedReturn.String())
	assert.Equal(t, "10.05", res.NAVAfter.StringFixed(2))
}

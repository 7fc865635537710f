package installment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"varejo/internal/core/types"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestGenerate_RemainderOnFirstInstallment(t *testing.T) {
	out, err := Generate(Plan{
		Total:        types.MustMoney("10.00"),
		Count:        3,
		IntervalDays: 30,
		Anchor:       date(2024, time.January, 1),
		Mode:         ModeDayInterval,
	})
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.True(t, out[0].Amount.Equal(types.MustMoney("3.34")), "got %s", out[0].Amount)
	assert.True(t, out[1].Amount.Equal(types.MustMoney("3.33")), "got %s", out[1].Amount)
	assert.True(t, out[2].Amount.Equal(types.MustMoney("3.33")), "got %s", out[2].Amount)

	sum := out[0].Amount.Add(out[1].Amount).Add(out[2].Amount)
	assert.True(t, sum.Equal(types.MustMoney("10.00")), "sum %s", sum)

	assert.Equal(t, date(2024, time.January, 31), out[0].DueDate)
	assert.Equal(t, date(2024, time.March, 1), out[1].DueDate)
	assert.Equal(t, date(2024, time.March, 31), out[2].DueDate)
}

func TestGenerate_ExactDivisionHasNoRemainder(t *testing.T) {
	out, err := Generate(Plan{
		Total:        types.MustMoney("9.99"),
		Count:        3,
		IntervalDays: 15,
		Anchor:       date(2024, time.June, 10),
		Mode:         ModeDayInterval,
	})
	require.NoError(t, err)

	for i, inst := range out {
		assert.True(t, inst.Amount.Equal(types.MustMoney("3.33")), "installment %d: %s", i+1, inst.Amount)
		assert.Equal(t, i+1, inst.Number)
	}
}

func TestGenerate_SumAlwaysEqualsTotal(t *testing.T) {
	totals := []string{"0.01", "0.10", "1.00", "99.99", "100.01", "7.77", "1234.56"}
	counts := []int{1, 2, 3, 4, 6, 7, 12}

	for _, ts := range totals {
		for _, count := range counts {
			total := types.MustMoney(ts)
			out, err := Generate(Plan{
				Total:        total,
				Count:        count,
				IntervalDays: 30,
				Anchor:       date(2024, time.January, 1),
				Mode:         ModeDayInterval,
			})
			require.NoError(t, err)
			require.Len(t, out, count)

			sum := types.ZeroMoney()
			for _, inst := range out {
				assert.False(t, inst.Amount.IsNegative(), "total=%s count=%d", ts, count)
				sum = sum.Add(inst.Amount)
			}
			assert.True(t, sum.Equal(total), "total=%s count=%d sum=%s", ts, count, sum)
		}
	}
}

func TestGenerate_MonthlySameDay(t *testing.T) {
	out, err := Generate(Plan{
		Total:  types.MustMoney("300.00"),
		Count:  3,
		Anchor: date(2024, time.January, 15),
		Mode:   ModeMonthlySameDay,
	})
	require.NoError(t, err)

	assert.Equal(t, date(2024, time.February, 15), out[0].DueDate)
	assert.Equal(t, date(2024, time.March, 15), out[1].DueDate)
	assert.Equal(t, date(2024, time.April, 15), out[2].DueDate)
}

func TestGenerate_SingleInstallment(t *testing.T) {
	out, err := Generate(Plan{
		Total:        types.MustMoney("42.50"),
		Count:        1,
		IntervalDays: 30,
		Anchor:       date(2024, time.May, 1),
		Mode:         ModeDayInterval,
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].Amount.Equal(types.MustMoney("42.50")))
	assert.Equal(t, date(2024, time.May, 31), out[0].DueDate)
}

func TestGenerate_InvalidPlans(t *testing.T) {
	_, err := Generate(Plan{Total: types.MustMoney("10.00"), Count: 0, IntervalDays: 30})
	assert.Error(t, err)

	_, err = Generate(Plan{Total: types.MustMoney("-1.00"), Count: 2, IntervalDays: 30})
	assert.Error(t, err)

	_, err = Generate(Plan{Total: types.MustMoney("10.00"), Count: 2, IntervalDays: 0, Mode: ModeDayInterval})
	assert.Error(t, err)
}

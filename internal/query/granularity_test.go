package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResolvePeriodTodayIsHourlyAndSingleDay(t *testing.T) {
	now := time.Date(2026, time.March, 10, 14, 37, 0, 0, time.UTC)
	from, to, granularity, err := resolvePeriod(PeriodToday, now)
	require.NoError(t, err)
	require.Equal(t, GranularityHourly, granularity)
	require.Equal(t, time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC), from)
	require.Equal(t, time.Date(2026, time.March, 11, 0, 0, 0, 0, time.UTC), to)
}

func TestResolvePeriodLast7DaysIsDaily(t *testing.T) {
	now := time.Date(2026, time.March, 10, 14, 37, 0, 0, time.UTC)
	from, to, granularity, err := resolvePeriod(PeriodLast7Days, now)
	require.NoError(t, err)
	require.Equal(t, GranularityDaily, granularity)
	require.Equal(t, 8*24*time.Hour, to.Sub(from))
}

func TestResolvePeriodCurrentYearIsMonthly(t *testing.T) {
	now := time.Date(2026, time.March, 10, 14, 37, 0, 0, time.UTC)
	from, _, granularity, err := resolvePeriod(PeriodCurrentYear, now)
	require.NoError(t, err)
	require.Equal(t, GranularityMonthly, granularity)
	require.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), from)
}

func TestResolvePeriodRejectsUnknownPeriod(t *testing.T) {
	_, _, _, err := resolvePeriod("bogus", time.Now())
	require.Error(t, err)
}

func TestResolveCustomRangeDerivesGranularityFromDuration(t *testing.T) {
	base := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	g, err := resolveCustomRange(base, base.Add(12*time.Hour))
	require.NoError(t, err)
	require.Equal(t, GranularityHourly, g)

	g, err = resolveCustomRange(base, base.AddDate(0, 0, 10))
	require.NoError(t, err)
	require.Equal(t, GranularityDaily, g)

	g, err = resolveCustomRange(base, base.AddDate(0, 0, 90))
	require.NoError(t, err)
	require.Equal(t, GranularityWeekly, g)

	g, err = resolveCustomRange(base, base.AddDate(1, 0, 0))
	require.NoError(t, err)
	require.Equal(t, GranularityMonthly, g)
}

func TestResolveCustomRangeRejectsNonPositiveRange(t *testing.T) {
	base := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	_, err := resolveCustomRange(base, base)
	require.Error(t, err)
}

func TestBucketBoundariesCoverDailyRange(t *testing.T) {
	from := time.Date(2026, time.March, 1, 6, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.March, 4, 0, 0, 0, 0, time.UTC)
	bounds := bucketBoundaries(from, to, GranularityDaily)
	require.Len(t, bounds, 3)
	require.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), bounds[0])
	require.Equal(t, time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC), bounds[2])
}

func TestBucketForAssignsHourlyRowToItsDailyBucket(t *testing.T) {
	from := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC)
	bounds := bucketBoundaries(from, to, GranularityDaily)

	row := time.Date(2026, time.March, 2, 14, 0, 0, 0, time.UTC)
	b := bucketFor(row, GranularityDaily, bounds)
	require.Equal(t, time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC), b)
}

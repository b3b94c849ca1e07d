package query

import (
	"time"

	platformerrors "github.com/loganalytics/platform/internal/platform/errors"
)

// Granularity is the bucket width GetAggregatedMetrics re-buckets hourly
// rollups into (§4.12).
type Granularity string

const (
	GranularityHourly  Granularity = "hourly"
	GranularityDaily   Granularity = "daily"
	GranularityWeekly  Granularity = "weekly"
	GranularityMonthly Granularity = "monthly"
)

// Named periods accepted by the period=… query parameter (§4.12, §6.1).
const (
	PeriodToday        = "today"
	PeriodLast7Days    = "last7days"
	PeriodLast30Days   = "last30days"
	PeriodCurrentWeek  = "currentWeek"
	PeriodCurrentMonth = "currentMonth"
	PeriodCurrentYear  = "currentYear"
)

// resolvePeriod turns a named period into a [from, to) range and the
// granularity it implies, per §4.12: today -> hourly (single day only);
// last7days/last30days/currentWeek/currentMonth -> daily;
// currentYear -> monthly.
func resolvePeriod(period string, now time.Time) (from, to time.Time, granularity Granularity, err error) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch period {
	case PeriodToday:
		return today, today.Add(24 * time.Hour), GranularityHourly, nil
	case PeriodLast7Days:
		return today.AddDate(0, 0, -7), today.Add(24 * time.Hour), GranularityDaily, nil
	case PeriodLast30Days:
		return today.AddDate(0, 0, -30), today.Add(24 * time.Hour), GranularityDaily, nil
	case PeriodCurrentWeek:
		weekday := int(today.Weekday())
		monday := today.AddDate(0, 0, -(weekday - 1))
		if weekday == 0 { // Sunday: Go's Weekday() is 0, ISO week starts Monday
			monday = today.AddDate(0, 0, -6)
		}
		return monday, today.Add(24 * time.Hour), GranularityDaily, nil
	case PeriodCurrentMonth:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, today.Add(24 * time.Hour), GranularityDaily, nil
	case PeriodCurrentYear:
		start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		return start, today.Add(24 * time.Hour), GranularityMonthly, nil
	default:
		return time.Time{}, time.Time{}, "", platformerrors.InvalidInput("period", "unknown period: "+period)
	}
}

// resolveCustomRange derives a granularity from an explicit [from, to)
// range per §4.12: <=1 day -> hourly, <=30 days -> daily, <=180 days ->
// weekly, else monthly.
func resolveCustomRange(from, to time.Time) (Granularity, error) {
	if !to.After(from) {
		return "", platformerrors.InvalidInput("periodTo", "must be after periodFrom")
	}
	d := to.Sub(from)
	switch {
	case d <= 24*time.Hour:
		return GranularityHourly, nil
	case d <= 30*24*time.Hour:
		return GranularityDaily, nil
	case d <= 180*24*time.Hour:
		return GranularityWeekly, nil
	default:
		return GranularityMonthly, nil
	}
}

// bucketBoundaries returns the ordered bucket start times covering
// [from, to) at the given granularity, used to zero-fill buckets that
// have no aggregated_metrics row.
func bucketBoundaries(from, to time.Time, granularity Granularity) []time.Time {
	var bounds []time.Time
	switch granularity {
	case GranularityHourly:
		start := from.Truncate(time.Hour)
		for b := start; b.Before(to); b = b.Add(time.Hour) {
			bounds = append(bounds, b)
		}
	case GranularityDaily:
		start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
		for b := start; b.Before(to); b = b.AddDate(0, 0, 1) {
			bounds = append(bounds, b)
		}
	case GranularityWeekly:
		start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
		for b := start; b.Before(to); b = b.AddDate(0, 0, 7) {
			bounds = append(bounds, b)
		}
	case GranularityMonthly:
		start := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)
		for b := start; b.Before(to); b = b.AddDate(0, 1, 0) {
			bounds = append(bounds, b)
		}
	}
	return bounds
}

// bucketFor returns the bucket start time at granularity that t (an
// hourly aggregated_metrics row's bucket_time) belongs to.
func bucketFor(t time.Time, granularity Granularity, bounds []time.Time) time.Time {
	if len(bounds) == 0 {
		return t
	}
	best := bounds[0]
	for _, b := range bounds {
		if !b.After(t) {
			best = b
		} else {
			break
		}
	}
	return best
}

package partition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPartitionNameIsMonthlyGranularity(t *testing.T) {
	d := time.Date(2026, time.March, 17, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "log_events_2026_03", partitionName(d))
}

func TestMonthBoundsSpansWholeCalendarMonth(t *testing.T) {
	d := time.Date(2026, time.February, 28, 23, 59, 0, 0, time.UTC)
	start, end := monthBounds(d)
	assert.Equal(t, time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestPartitionNameSameForEveryDayInMonth(t *testing.T) {
	first := time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(2026, time.July, 31, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, partitionName(first), partitionName(last))
}

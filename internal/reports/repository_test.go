package reports_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/phishgate/backend/internal/reports"
)

// The store numbers weekdays 1=Sunday..7=Saturday; the API is 0-based.
func TestNormalizeWeekday(t *testing.T) {
	require.Equal(t, 0, reports.NormalizeWeekday(1)) // Sunday
	require.Equal(t, 3, reports.NormalizeWeekday(4)) // Wednesday
	require.Equal(t, 6, reports.NormalizeWeekday(7)) // Saturday

	// round-trips with Go's time.Weekday numbering
	for native := 1; native <= 7; native++ {
		require.Equal(t, time.Weekday(native-1), time.Weekday(reports.NormalizeWeekday(native)))
	}
}

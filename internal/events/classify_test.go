package events_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/phishgate/backend/internal/events"
	"github.com/phishgate/backend/internal/models"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		message string
		want    models.EventType
	}{
		{"Email Sent", models.EventEmailSent},
		{"Email Opened", models.EventEmailOpened},
		{"Clicked Link", models.EventClicked},
		{"Submitted Data", models.EventSubmittedData},
		{"Email Reported", models.EventReported},
		{"email reported", models.EventReported},
		// compound messages resolve to the deeper funnel stage
		{"Email Opened and Clicked", models.EventClicked},
		{"Clicked Link and Submitted Data", models.EventSubmittedData},
		// unrecognized messages count as delivery notifications
		{"Campaign Created", models.EventEmailSent},
		{"", models.EventEmailSent},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, events.Classify(tc.message), "message %q", tc.message)
	}
}

func TestFunnelDepthOrdering(t *testing.T) {
	require.Less(t, models.EventEmailSent.FunnelDepth(), models.EventEmailOpened.FunnelDepth())
	require.Less(t, models.EventEmailOpened.FunnelDepth(), models.EventClicked.FunnelDepth())
	require.Less(t, models.EventClicked.FunnelDepth(), models.EventSubmittedData.FunnelDepth())
	require.Less(t, models.EventSubmittedData.FunnelDepth(), models.EventReported.FunnelDepth())
	require.Equal(t, -1, models.EventType("bogus").FunnelDepth())
}

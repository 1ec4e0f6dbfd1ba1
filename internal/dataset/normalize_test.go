package dataset

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/1-icenine/eci-tracker/internal/snapshot"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	in := []snapshot.Record{
		{CaptureDate: "2025-06-27", CaptureTime: "11:53:46"},
		{CaptureDate: "6/27/2025", CaptureTime: "11-53-46"},
		{CaptureDate: "July 1, 2025", CaptureTime: "00-00-01"},
		{CaptureDate: snapshot.UnknownDate, CaptureTime: snapshot.UnknownTime},
		{CaptureDate: "garbage", CaptureTime: "1:2:3"},
	}
	got, changed := Normalize(in)
	require.Equal(t, 2, changed)
	require.Equal(t, "2025-06-27", got[1].CaptureDate)
	require.Equal(t, "11:53:46", got[1].CaptureTime)
	require.Equal(t, "2025-07-01", got[2].CaptureDate)
	require.Equal(t, "00:00:01", got[2].CaptureTime)
	require.Equal(t, snapshot.UnknownDate, got[3].CaptureDate)
	require.Equal(t, snapshot.UnknownTime, got[3].CaptureTime)
	require.Equal(t, "garbage", got[4].CaptureDate)

	// The input slice is not modified.
	require.Equal(t, "6/27/2025", in[1].CaptureDate)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	t.Parallel()

	once, _ := Normalize([]snapshot.Record{{CaptureDate: "2025/02/03", CaptureTime: "01-02-03"}})
	twice, changed := Normalize(once)
	require.Zero(t, changed)
	require.Equal(t, once, twice)
}

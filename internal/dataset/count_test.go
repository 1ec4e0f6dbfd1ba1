package dataset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCountByDay(t *testing.T) {
	t.Parallel()

	urls := []string{
		"https://web.archive.org/web/20250701120000/https://x",
		"https://web.archive.org/web/20250630235959/https://x",
		"https://web.archive.org/web/20250701000001/https://x",
		"https://web.archive.org/web/20250231000000/https://x",
		"not a snapshot",
		"https://web.archive.org/web/20250602080000/https://x",
	}
	got := CountByDay(urls)
	require.Len(t, got, 3)
	require.Equal(t, "June 2, 2025", got[0].Label())
	require.Equal(t, 1, got[0].Count)
	require.Equal(t, "June 30, 2025", got[1].Label())
	require.Equal(t, "July 1, 2025", got[2].Label())
	require.Equal(t, 2, got[2].Count)

	require.False(t, NewMonth(got, 0))
	require.False(t, NewMonth(got, 1))
	require.True(t, NewMonth(got, 2))
}

func TestCountByDayEmpty(t *testing.T) {
	t.Parallel()

	require.Empty(t, CountByDay(nil))
}

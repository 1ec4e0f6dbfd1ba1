package detector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeuristic_ShouldPromote_EmptyBody(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(100)
	require.True(t, h.ShouldPromote(nil))
	require.True(t, h.ShouldPromote([]byte("  \n")))
}

func TestHeuristic_ShouldPromote_SPAMarkers(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(100)
	require.True(t, h.ShouldPromote([]byte(`<html><body><app-root></app-root></body></html>`)))
	require.True(t, h.ShouldPromote([]byte(`<div id="__next"></div>`)))
}

func TestHeuristic_ShouldPromote_ScriptDensity(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(1000)
	require.True(t, h.ShouldPromote([]byte(`<html><script>var a=1;</script><p>t</p></html>`)))
}

func TestHeuristic_ShouldPromote_StaticPage(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(0)
	require.Equal(t, DefaultMinBytes, h.BodyLengthThreshold)
	body := "<html><body><p>" + strings.Repeat("Statements of support ", 200) + "</p></body></html>"
	require.False(t, h.ShouldPromote([]byte(body)))
}

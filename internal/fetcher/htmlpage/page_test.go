package htmlpage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const signaturePage = `<html><body>
<table>
  <thead><tr><th>Country</th><th>Statements</th><th>Threshold</th><th>Percentage</th></tr></thead>
  <tbody>
    <tr><td> Germany </td><td>12,345</td><td>9,600</td><td>128.59%</td></tr>
    <tr><td>France</td><td>1,000</td><td>8,640</td><td>11.57%</td></tr>
    <tr><td colspan="4">Total number of signatories: 13,345</td></tr>
  </tbody>
</table>
<table><tr><td>other</td></tr></table>
</body></html>`

func TestPageRowsAndCells(t *testing.T) {
	t.Parallel()

	page, err := Parse([]byte(signaturePage), "")
	require.NoError(t, err)
	require.True(t, page.Has(""))
	require.False(t, page.Has("div.missing"))

	var got [][]string
	for row := range page.FindTableRows() {
		got = append(got, row.Cells())
	}
	require.Len(t, got, 5)
	require.Empty(t, got[0])
	require.Equal(t, []string{"Germany", "12,345", "9,600", "128.59%"}, got[1])
	require.Len(t, got[3], 1)
	require.Equal(t, []string{"other"}, got[4])
	require.Equal(t, []byte(signaturePage), page.HTML())
}

func TestPageRowsStopEarly(t *testing.T) {
	t.Parallel()

	page, err := Parse([]byte(signaturePage), "")
	require.NoError(t, err)
	count := 0
	for range page.FindTableRows() {
		count++
		if count == 2 {
			break
		}
	}
	require.Equal(t, 2, count)
}

func TestPageWithoutTable(t *testing.T) {
	t.Parallel()

	page, err := Parse([]byte("<html><body><p>nothing</p></body></html>"), "")
	require.NoError(t, err)
	require.False(t, page.Has(DefaultTableSelector))
	for range page.FindTableRows() {
		t.Fatal("expected no rows")
	}
}

const layoutFirstPage = `<html><body>
<table class="meta"><tr><td>Registration</td><td>2024/000007</td></tr></table>
<table class="signatures">
  <tr><th>Country</th><th>Statements</th><th>Threshold</th><th>Percentage</th></tr>
  <tr><td>Germany</td><td>12,345</td><td>9,600</td><td>128.59%</td></tr>
</table>
</body></html>`

func TestPageRowsSpanAllTables(t *testing.T) {
	t.Parallel()

	page, err := Parse([]byte(layoutFirstPage), "")
	require.NoError(t, err)

	var got [][]string
	for row := range page.FindTableRows() {
		got = append(got, row.Cells())
	}
	require.Equal(t, [][]string{
		{"Registration", "2024/000007"},
		{},
		{"Germany", "12,345", "9,600", "128.59%"},
	}, got)
}

func TestPageRowsHonorSelector(t *testing.T) {
	t.Parallel()

	page, err := Parse([]byte(layoutFirstPage), "table.signatures tr")
	require.NoError(t, err)
	require.True(t, page.Has("table.signatures tr"))

	var got [][]string
	for row := range page.FindTableRows() {
		got = append(got, row.Cells())
	}
	require.Len(t, got, 2)
	require.Equal(t, []string{"Germany", "12,345", "9,600", "128.59%"}, got[1])
}

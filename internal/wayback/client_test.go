package wayback

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"
)

const (
	testBase   = "https://cdx.test/cdx/search/cdx"
	testTarget = "https://citizens-initiative.europa.eu/initiatives/details/2024/000007_en"
)

const cdxBody = `[
 ["urlkey","timestamp","original","mimetype","statuscode","digest","length"],
 ["eu,europa)/x","20240612133710","https://citizens-initiative.europa.eu/initiatives/details/2024/000007_en","text/html","200","AAA","100"],
 ["eu,europa)/x","20250627115346","https://citizens-initiative.europa.eu/initiatives/details/2024/000007_en","text/html","200","BBB","120"]
]`

func newMockClient(t *testing.T) (*Client, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	return New(Config{BaseURL: testBase, UserAgent: "eci-test", Transport: transport}, nil), transport
}

func TestSnapshotsParsesRows(t *testing.T) {
	t.Parallel()

	client, transport := newMockClient(t)
	transport.RegisterResponder(http.MethodGet, testBase,
		func(req *http.Request) (*http.Response, error) {
			q := req.URL.Query()
			require.Equal(t, testTarget, q.Get("url"))
			require.Equal(t, "json", q.Get("output"))
			require.Equal(t, "statuscode:200", q.Get("filter"))
			require.Equal(t, "20240101000000", q.Get("from"))
			require.Equal(t, "eci-test", req.Header.Get("User-Agent"))
			return httpmock.NewStringResponse(http.StatusOK, cdxBody), nil
		})

	snaps, err := client.Snapshots(context.Background(), testTarget, Filter{
		From:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		StatusOK: true,
	})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	require.Equal(t, "20240612133710", snaps[0].Timestamp)
	require.Equal(t, "200", snaps[0].StatusCode)
	require.Equal(t, "https://web.archive.org/web/20240612133710/"+testTarget, snaps[0].ArchiveURL())
	require.Equal(t, 1, transport.GetTotalCallCount())
}

func TestSnapshotsEmpty(t *testing.T) {
	t.Parallel()

	client, transport := newMockClient(t)
	transport.RegisterResponder(http.MethodGet, testBase, httpmock.NewStringResponder(http.StatusOK, "[]"))

	snaps, err := client.Snapshots(context.Background(), testTarget, Filter{})
	require.NoError(t, err)
	require.Empty(t, snaps)
	require.Equal(t, NoSnapshotsFile, FileName(snaps))
}

func TestSnapshotsErrors(t *testing.T) {
	t.Parallel()

	client, transport := newMockClient(t)
	transport.RegisterResponder(http.MethodGet, testBase, httpmock.NewStringResponder(http.StatusServiceUnavailable, "busy"))
	_, err := client.Snapshots(context.Background(), testTarget, Filter{})
	require.ErrorContains(t, err, "status 503")

	_, err = client.Snapshots(context.Background(), "", Filter{})
	require.Error(t, err)

	bad, badTransport := newMockClient(t)
	badTransport.RegisterResponder(http.MethodGet, testBase, httpmock.NewStringResponder(http.StatusOK, "not json"))
	_, err = bad.Snapshots(context.Background(), testTarget, Filter{})
	require.ErrorContains(t, err, "decode cdx response")
}

func TestFileName(t *testing.T) {
	t.Parallel()

	snaps := []Snapshot{
		{Timestamp: "20250627115346"},
		{Timestamp: "20240612133710"},
		{Timestamp: "garbage"},
		{Timestamp: "20241301000000"},
	}
	require.Equal(t, "snapshotLinks_2024-06-12_to_2025-06-27.txt", FileName(snaps))
}

func TestSave(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "Snapshot Links")
	snaps := []Snapshot{
		{Timestamp: "20240612133710", Original: testTarget},
		{Timestamp: "20240613080000", Original: testTarget},
	}
	path, err := Save(dir, snaps)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "snapshotLinks_2024-06-12_to_2024-06-13.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t,
		"https://web.archive.org/web/20240612133710/"+testTarget+"\n"+
			"https://web.archive.org/web/20240613080000/"+testTarget+"\n",
		string(data))
}

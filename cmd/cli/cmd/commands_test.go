package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartscan/internal/database"
	"smartscan/internal/handlers"
	"smartscan/internal/parser"
)

// runCommand executes the root command with args and returns its stdout
func runCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	for _, name := range []string{"SMARTSCAN_SERVER", "SMARTSCAN_FORMAT", "SMARTSCAN_QUIET", "SMARTSCAN_TIMEOUT"} {
		t.Setenv(name, "")
	}
	t.Setenv("NO_COLOR", "1")

	serverURL, format, quiet, noColor = "", "", false, false
	listLimit, listInteractive, extractWorkers = 0, false, 0

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/health":
			w.Write([]byte(`{"status":"healthy","database":"ok"}`))
		case "/api/scan/text":
			var req handlers.TextRequest
			json.NewDecoder(r.Body).Decode(&req)
			json.NewEncoder(w).Encode(parser.NewEngine().Process(req.Text))
		case "/api/scans":
			json.NewEncoder(w).Encode(handlers.ScanListResponse{Count: 1, Scans: []database.Scan{
				{ID: 4, Timestamp: "20240305_143000", Filename: "scan_x.jpg", ContainerID: strPtr("CSQU3054383"), ValidationStatus: strPtr("valid")},
			}})
		case "/api/scans/4":
			json.NewEncoder(w).Encode(database.Scan{ID: 4, Filename: "scan_x.jpg", ContainerID: strPtr("CSQU3054383")})
		case "/api/stats":
			json.NewEncoder(w).Encode(handlers.StatsResponse{Scans: &database.ScanStats{Total: 4, Valid: 3, Unresolved: 1}})
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail":"Not Found"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckCommand(t *testing.T) {
	out, err := runCommand(t, "", "check", "CSQU3054383", "mscu 123456 6")
	require.NoError(t, err)
	assert.Contains(t, out, "CONTAINER ID")
	assert.Contains(t, out, "MSCU1234566")

	out, err = runCommand(t, "", "check", "-q", "CSQU3054383", "MSCU1234567")
	assert.EqualError(t, err, "1 of 2 container IDs failed validation")
	assert.Equal(t, "CSQU3054383\n", out)
}

func TestCheckIDs(t *testing.T) {
	results, invalid := checkIDs([]string{"TGHU1234567", "TGHU1234568"})
	require.Len(t, results, 2)
	assert.Equal(t, 1, invalid)
	assert.True(t, results[0].Valid)
	assert.Equal(t, "TGHU1234568", results[1].Input)
}

func TestExtractCommand(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "door1.txt")
	second := filepath.Join(dir, "door2.txt")
	require.NoError(t, os.WriteFile(first, []byte("CONTAINER NO\nCSQU 3054383"), 0o644))
	require.NoError(t, os.WriteFile(second, []byte("empty"), 0o644))

	out, err := runCommand(t, "", "extract", "--quiet", "--workers", "2", first, second)
	require.NoError(t, err)
	assert.Equal(t, first+"\tCSQU3054383\n", out)

	out, err = runCommand(t, "", "extract", "-f", "json", first, second)
	require.NoError(t, err)
	assert.Contains(t, out, `"path": "`+first+`"`)
	assert.Contains(t, out, "no candidates found")

	out, err = runCommand(t, "seal 12 TGHU 123456-7", "extract", "-q")
	require.NoError(t, err)
	assert.Equal(t, "-\tTGHU1234567\n", out)
}

func TestTextCommand(t *testing.T) {
	srv := fakeAPI(t)

	out, err := runCommand(t, "MSCU 1234566", "text", "-s", srv.URL, "-q")
	require.NoError(t, err)
	assert.Equal(t, "MSCU1234566\n", out)

	path := filepath.Join(t.TempDir(), "ocr.txt")
	require.NoError(t, os.WriteFile(path, []byte("CSQU 3054383"), 0o644))
	out, err = runCommand(t, "", "text", "-s", srv.URL, path)
	require.NoError(t, err)
	assert.Contains(t, out, "Best match: CSQU3054383")

	_, err = runCommand(t, "", "text", "-s", srv.URL, filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorContains(t, err, "failed to read input")
}

func TestServerCommands(t *testing.T) {
	srv := fakeAPI(t)

	out, err := runCommand(t, "", "list", "-s", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "CSQU3054383")
	assert.Contains(t, out, "scan_x.jpg")

	out, err = runCommand(t, "", "get", "-s", srv.URL, "4")
	require.NoError(t, err)
	assert.Contains(t, out, "Scan ID: 4")

	_, err = runCommand(t, "", "get", "-s", srv.URL, "9")
	assert.EqualError(t, err, "API error 404: Not Found")

	_, err = runCommand(t, "", "get", "-s", srv.URL, "abc")
	assert.EqualError(t, err, "invalid ID 'abc': must be a positive integer")

	out, err = runCommand(t, "", "stats", "-s", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Scans: 4 total, 3 valid, 0 invalid, 1 unresolved")
}

func TestServerUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := runCommand(t, "", "stats", "-s", url)
	assert.ErrorContains(t, err, "request failed")
}

func TestCompletionCommand(t *testing.T) {
	out, err := runCommand(t, "", "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "smartscan")
}

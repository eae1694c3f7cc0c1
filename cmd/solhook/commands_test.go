package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// runApp runs the CLI with args and returns what it wrote to stdout.
func runApp(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	app.Reader = strings.NewReader(stdin)
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"solhook"}, args...))
	return out.String(), err
}

func TestHealthCommand_Success(t *testing.T) {
	// Create test server that returns 200 OK
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))
	defer server.Close()

	out, err := runApp(t, "", "--server-url", server.URL, "server", "health")
	require.NoError(t, err)
	assert.Contains(t, out, "Server is healthy")
}

func TestHealthCommand_Failure(t *testing.T) {
	// Create test server that returns 500
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := runApp(t, "", "--server-url", server.URL, "server", "health")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unhealthy status")
}

func TestHealthCommand_MissingServerURL(t *testing.T) {
	_, err := runApp(t, "", "--server-url", "", "server", "health")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server-url is required")
}

func TestVersionCommand(t *testing.T) {
	// Set version info
	version = "1.0.0"
	commit = "abc123"
	date = "2025-10-10"

	out, err := runApp(t, "", "server", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version: 1.0.0")
	assert.Contains(t, out, "Commit:  abc123")
}

func TestTokensCommand(t *testing.T) {
	out, err := runApp(t, "", "tokens")
	require.NoError(t, err)
	assert.Contains(t, out, "USDC")
	assert.Contains(t, out, "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

	out, err = runApp(t, "", "tokens", "--jq", `.[] | select(.symbol == "USDT") | .decimals`)
	require.NoError(t, err)
	assert.Equal(t, "6\n", out)
}

func TestWebhookSendCommand(t *testing.T) {
	payload := `[{"signature":"sig1","nativeTransfers":[]}]`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/webhooks/sol-transfers", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, payload, string(body))
		w.Header().Set("X-Request-ID", "req-9")
		w.Write([]byte("No whale transfers found"))
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "payload.json")
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))

	out, err := runApp(t, "", "--server-url", server.URL, "webhook", "send", "--kind", "sol_transfer", "--file", path)
	require.NoError(t, err)
	assert.Equal(t, "200 No whale transfers found\n", out)

	// Table names are accepted too, and "-" reads stdin.
	out, err = runApp(t, payload, "--server-url", server.URL, "webhook", "send", "--kind", "sol_transfers", "--file", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "No whale transfers found")
}

func TestWebhookSendCommand_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/webhooks/token-transfers", r.URL.Path)
		w.Header().Set("X-Request-ID", "req-10")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("Invalid payload: notification array is empty"))
	}))
	defer server.Close()

	_, err := runApp(t, "[]", "--server-url", server.URL, "webhook", "send", "-k", "token_transfer", "-f", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server answered 400: Invalid payload: notification array is empty")
	assert.Contains(t, err.Error(), "req-10")
}

func TestWebhookSendCommand_UnknownKind(t *testing.T) {
	_, err := runApp(t, "[]", "webhook", "send", "--kind", "swaps", "--file", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown kind "swaps"`)
}

func TestAPISolTransfersCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sol-transfers", r.URL.Path)
		assert.Equal(t, "A", r.URL.Query().Get("address"))
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sol_transfers":[{"id":3,"signature":"sig1","sender":"A","receiver":"B","amount_sol":"2000"}],"count":1}`))
	}))
	defer server.Close()

	out, err := runApp(t, "", "--server-url", server.URL, "api", "sol-transfers", "--address", "A")
	require.NoError(t, err)
	assert.Contains(t, out, "sig1")
	assert.Contains(t, out, "2000")

	out, err = runApp(t, "", "--server-url", server.URL, "api", "sol-transfers", "-a", "A", "--jq", ".[0].receiver")
	require.NoError(t, err)
	assert.Equal(t, "\"B\"\n", out)
}

func TestAPITokensCommand_JSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tokens":[{"mint":"m","symbol":"USDC","decimals":6}],"count":1}`))
	}))
	defer server.Close()

	out, err := runApp(t, "", "--server-url", server.URL, "--json", "api", "tokens")
	require.NoError(t, err)
	assert.Contains(t, out, `"symbol": "USDC"`)
}

func TestDBCommand_RequiresDatabaseURL(t *testing.T) {
	os.Unsetenv("DATABASE_URL")
	_, err := runApp(t, "", "--database-url", "", "db", "sol-transfers")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database-url is required")
}

func TestDBCommand_InvalidLimit(t *testing.T) {
	_, err := runApp(t, "", "db", "nft-sales", "--limit", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit must be between 1 and 1000")
}

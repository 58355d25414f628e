package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "version: dev")
	assert.Contains(t, out, "commit: unknown")
}

func TestFlags(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"config", "log-level", "print-state"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "flag %s", name)
	}
}

func TestRejectsArgs(t *testing.T) {
	_, err := execute(t, "extra")
	assert.Error(t, err)
}

func TestBadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spot-outlet.yaml")
	require.NoError(t, os.WriteFile(path, []byte("threshold: -1\n"), 0o600))

	_, err := execute(t, "--config", path)
	assert.ErrorContains(t, err, "threshold")
}

func TestPrintState(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
		end := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
		fmt.Fprintf(w, `[{"SEK_per_kWh":0.25,"time_start":%q,"time_end":%q}]`, start, end)
	}))
	defer ts.Close()

	cfg := fmt.Sprintf("threshold: 0.61\nprices:\n  base_url: %s\nclock:\n  ntp_host: 127.0.0.1:1\nlogging:\n  level: disabled\n", ts.URL)
	path := filepath.Join(t.TempDir(), "spot-outlet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))

	out, err := execute(t, "--config", path, "--print-state")
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "price 0.25 SEK/kWh"), out)
	assert.Contains(t, out, "AUTO: outlet ON, indicator green")
}

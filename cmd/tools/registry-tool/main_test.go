package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"annual-reports-workers/pkg/registry"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRegistry(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestRun(t *testing.T) {
	valid := writeRegistry(t, "registry.json", registry.DefaultJSON())
	broken := writeRegistry(t, "broken.json", []byte(`{"version": 1}`))

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
	}{
		{name: "no command", args: nil, wantCode: 1, wantOut: "Usage: registry-tool"},
		{name: "unknown command", args: []string{"bogus"}, wantCode: 1, wantOut: "Commands:"},
		{name: "help", args: []string{"help"}, wantCode: 0, wantOut: "publish"},
		{name: "validate default registry", args: []string{"validate", "-path", valid}, wantCode: 0, wantOut: "is valid"},
		{name: "validate broken registry", args: []string{"validate", "-path", broken}, wantCode: 1},
		{name: "validate missing file", args: []string{"validate", "-path", filepath.Join(t.TempDir(), "nope.json")}, wantCode: 1},
		{name: "lint default registry", args: []string{"lint", "-path", valid}, wantCode: 0, wantOut: "0 errors"},
		{name: "publish without dsn", args: []string{"publish", "-path", valid, "-dsn", ""}, wantCode: 1},
		{name: "bad flag", args: []string{"lint", "-nope"}, wantCode: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(tt.args, &stdout, &stderr)
			assert.Equal(t, tt.wantCode, code, stderr.String())
			if tt.wantOut != "" {
				assert.Contains(t, stdout.String(), tt.wantOut)
			}
		})
	}
}

func TestRun_LintJSON(t *testing.T) {
	valid := writeRegistry(t, "registry.json", registry.DefaultJSON())

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run([]string{"lint", "-path", valid, "-json"}, &stdout, &stderr))

	var findings []registry.Finding
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &findings))
	for _, f := range findings {
		assert.NotEqual(t, registry.SeverityError, f.Severity)
	}
}

func TestRun_Export(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run([]string{"export"}, &stdout, &stderr))
	assert.Equal(t, registry.DefaultJSON(), stdout.Bytes())

	stdout.Reset()
	require.Equal(t, 0, run([]string{"export", "-schema"}, &stdout, &stderr))
	assert.JSONEq(t, string(registry.SchemaJSON()), stdout.String())
}

func TestInvalidate(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	require.NoError(t, mr.Set("annual-reports:registry:snapshot", "{}"))
	require.NoError(t, invalidate(mr.Addr(), "annual-reports:registry:snapshot"))
	assert.False(t, mr.Exists("annual-reports:registry:snapshot"))
}

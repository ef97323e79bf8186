package preflight

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strix/pkg/config"
)

type stubRuntime struct {
	available bool
}

func (s stubRuntime) Available(context.Context) bool { return s.available }
func (s stubRuntime) Command() string                { return "docker" }

func envMap(m map[string]string) config.LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func ollamaVersionServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/version" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"version": "0.5.7"})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRequired(t *testing.T) {
	tests := []struct {
		name string
		in   Inputs
		want []Check
	}{
		{
			name: "remote backend, no files",
			in:   Inputs{Lookup: envMap(map[string]string{config.EnvBackend: "openai"})},
			want: []Check{CheckRuntime},
		},
		{
			name: "default backend is local",
			in:   Inputs{Lookup: envMap(nil)},
			want: []Check{CheckRuntime, CheckBackend},
		},
		{
			name: "mount files",
			in: Inputs{
				Lookup: envMap(map[string]string{config.EnvBackend: "OpenAI"}),
				Run:    config.RunConfig{VPNFile: "a.ovpn", HostsFile: "hosts"},
			},
			want: []Check{CheckRuntime, CheckVPNFile, CheckHostsFile},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Required(tt.in))
		})
	}
}

func TestRun_AllPassing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lab.ovpn"), []byte("client\n"), 0600))
	srv := ollamaVersionServer(t)

	results := Run(context.Background(), Inputs{
		Runtime: stubRuntime{available: true},
		Lookup:  envMap(map[string]string{config.EnvOllamaURL: srv.URL}),
		WorkDir: dir,
		Run:     config.RunConfig{VPNFile: "lab.ovpn"},
	})

	assert.True(t, results.Passed)
	assert.Len(t, results.Checks, 3)
	assert.Equal(t, "All 3 preflight checks passed", results.Summary)
	for _, c := range results.Checks {
		assert.True(t, c.Passed, "%s: %s", c.Check, c.Message)
	}
	assert.Contains(t, FormatResults(results), "[PASS] backend: Ollama 0.5.7 reachable")
}

func TestRun_RuntimeUnavailableFails(t *testing.T) {
	results := Run(context.Background(), Inputs{
		Runtime: stubRuntime{available: false},
		Lookup:  envMap(map[string]string{config.EnvBackend: "openai"}),
	})

	assert.False(t, results.Passed)
	assert.Equal(t, "1 of 1 preflight checks failed", results.Summary)

	out := FormatResults(results)
	assert.Contains(t, out, "Preflight checks failed")
	assert.Contains(t, out, "docker is not running or not installed")
	assert.Contains(t, out, "https://docs.docker.com/get-docker/")
}

func TestRun_MissingOrInvalidMountFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "hosts.d"), 0755))

	results := Run(context.Background(), Inputs{
		Runtime: stubRuntime{available: true},
		Lookup:  envMap(map[string]string{config.EnvBackend: "openai"}),
		WorkDir: dir,
		Run:     config.RunConfig{VPNFile: "missing.ovpn", HostsFile: "hosts.d"},
	})

	assert.False(t, results.Passed)
	require.Len(t, results.Checks, 3)
	assert.False(t, results.Checks[1].Passed)
	assert.Contains(t, results.Checks[1].Message, "is not accessible")
	assert.False(t, results.Checks[2].Passed)
	assert.Contains(t, results.Checks[2].Message, "not a regular file")
}

func TestRun_UnreachableBackendIsAdvisory(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	results := Run(context.Background(), Inputs{
		Runtime: stubRuntime{available: true},
		Lookup:  envMap(map[string]string{config.EnvOllamaURL: url}),
	})

	assert.True(t, results.Passed)
	require.Len(t, results.Checks, 2)
	backend := results.Checks[1]
	assert.False(t, backend.Passed)
	assert.True(t, backend.Advisory)
	assert.Contains(t, FormatResults(results), "[WARN] backend")
}

func TestCheckBackend_InvalidURL(t *testing.T) {
	res := checkBackend(context.Background(), envMap(map[string]string{config.EnvOllamaURL: "::not a url"}), nil)
	assert.False(t, res.Passed)
	assert.Error(t, res.Error)
}

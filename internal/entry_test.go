package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/starford/hfx/internal/apperr"
	"github.com/starford/hfx/internal/metrics"
	"github.com/starford/hfx/internal/models"
	"github.com/starford/hfx/internal/testutil"
)

// testConfig points both sources at the fixture hydrofabric, whose network
// layer doubles as the relationship table.
func testConfig(t *testing.T) *Config {
	t.Helper()
	hf := testutil.Hydrofabric(t)
	cfg := NewDefaultConfig()
	cfg.App.LogLevel = slog.LevelError
	cfg.Sources.Hydrofabric = hf
	cfg.Sources.Network = hf
	cfg.Sources.CacheDir = t.TempDir()
	cfg.Output.Path = filepath.Join(t.TempDir(), "out.gpkg")
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestRun_WritesSubset(t *testing.T) {
	cfg := testConfig(t)

	if err := Run(context.Background(), WithConfig(cfg), WithIdentifiers("nex-86")); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := testutil.Strings(t, cfg.Output.Path, "divides", "divide_id"); len(got) != 1 || got[0] != "cat-12" {
		t.Errorf("divides = %v", got)
	}
	if got := testutil.Strings(t, cfg.Output.Path, "nexus", "id"); len(got) != 1 || got[0] != "nex-86" {
		t.Errorf("nexus = %v", got)
	}
}

func TestRun_InvalidIdentifierFailsBeforeFetch(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sources.Network = "s3://missing-bucket/never-fetched.parquet"

	err := Run(context.Background(), WithConfig(cfg), WithIdentifiers("cat-1", "xyz-2"))
	if !errors.Is(err, apperr.ErrInvalidIdentifier) {
		t.Fatalf("err = %v, want invalid identifier", err)
	}
}

func TestRun_NoIdentifiers(t *testing.T) {
	err := Run(context.Background(), WithConfig(testConfig(t)))
	if !errors.Is(err, apperr.ErrNoFilterCriteria) {
		t.Fatalf("err = %v, want no filter criteria", err)
	}
}

func TestRun_EmptyResolution(t *testing.T) {
	cfg := testConfig(t)
	err := Run(context.Background(), WithConfig(cfg), WithIdentifiers("cat-4040"))
	if !errors.Is(err, apperr.ErrEmptyResolution) {
		t.Fatalf("err = %v, want empty resolution", err)
	}
}

func TestRun_RequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestResolve_JSON(t *testing.T) {
	var out bytes.Buffer
	err := Resolve(context.Background(), WithConfig(testConfig(t)), WithIdentifiers("wb-13"), WithStdout(&out))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	var spec models.FilterSpec
	if err := json.Unmarshal(out.Bytes(), &spec); err != nil {
		t.Fatalf("decode: %v\n%s", err, out.String())
	}
	want := models.FilterSpec{Waterbodies: []string{"wb-13"}, Nexuses: []string{"tnx-1"}}
	if !spec.Equal(want) {
		t.Errorf("spec = %+v, want %+v", spec, want)
	}
}

func TestResolve_YAML(t *testing.T) {
	var out bytes.Buffer
	err := Resolve(context.Background(),
		WithConfig(testConfig(t)), WithIdentifiers("cat-10"), WithStdout(&out), WithFormat(FormatYAML))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	var spec models.FilterSpec
	if err := yaml.Unmarshal(out.Bytes(), &spec); err != nil {
		t.Fatalf("decode: %v\n%s", err, out.String())
	}
	if len(spec.Catchments) != 1 || spec.Catchments[0] != "cat-10" {
		t.Errorf("catchments = %v", spec.Catchments)
	}
}

func TestResolve_UnknownFormat(t *testing.T) {
	err := Resolve(context.Background(), WithConfig(testConfig(t)), WithIdentifiers("cat-10"), WithFormat("xml"))
	if err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestClassify(t *testing.T) {
	var out bytes.Buffer
	err := Classify(WithConfig(NewDefaultConfig()), WithIdentifiers("cat-1", "cnx-2", "bad"), WithStdout(&out))
	if !errors.Is(err, apperr.ErrInvalidIdentifier) {
		t.Fatalf("err = %v, want invalid identifier", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	want := []string{"cat-1\tcatchment", "cnx-2\tnexus", "bad\tunknown"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %q", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestHTTPHandler_HealthAndMetrics(t *testing.T) {
	reg := metrics.NewRegistry()
	reg.Resolutions.WithLabelValues(metrics.OutcomeResolved).Inc()
	h := NewHTTPHandler(http.NotFoundHandler(), reg)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("health = %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "hfx_resolutions_total") {
		t.Errorf("metrics = %d", w.Code)
	}
}

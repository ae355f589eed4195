package metrics_test

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Sternrassler/fontshield/pkg/metrics"

	// Registers every fontshield metric.
	_ "github.com/Sternrassler/fontshield/pkg/assetproxy"
	_ "github.com/Sternrassler/fontshield/pkg/origin"
	_ "github.com/Sternrassler/fontshield/pkg/proxy"
)

func TestRegistry(t *testing.T) {
	if metrics.Registry == nil {
		t.Error("Registry should not be nil")
	}

	if metrics.Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
	if metrics.Gatherer != prometheus.DefaultGatherer {
		t.Error("Gatherer should be the default Prometheus gatherer")
	}
}

func TestNames(t *testing.T) {
	seen := make(map[string]bool)
	for _, name := range metrics.Names {
		if !strings.HasPrefix(name, metrics.Prefix) {
			t.Errorf("metric %q lacks prefix %q", name, metrics.Prefix)
		}
		if seen[name] {
			t.Errorf("metric %q listed twice", name)
		}
		seen[name] = true
	}
}

// TestNamesCoverRegisteredMetrics fails when a package registers a metric
// that is missing from Names.
func TestNamesCoverRegisteredMetrics(t *testing.T) {
	documented := make(map[string]bool, len(metrics.Names))
	for _, name := range metrics.Names {
		documented[name] = true
	}

	families, err := metrics.Gatherer.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, mf := range families {
		name := mf.GetName()
		if strings.HasPrefix(name, metrics.Prefix) && !documented[name] {
			t.Errorf("metric %q is registered but not listed in Names", name)
		}
	}
}

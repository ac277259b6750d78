package testsupport

import (
	"sort"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// GetMetricValue reads a metric from the default registry. Counters and gauges return
// their value; histograms return their sample count. Missing series read as 0.
func GetMetricValue(t *testing.T, metricName string, labels map[string]string) float64 {
	t.Helper()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	// Gather returns families sorted by name.
	idx := sort.Search(len(families), func(i int) bool {
		return families[i].GetName() >= metricName
	})
	if idx == len(families) || families[idx].GetName() != metricName {
		return 0
	}

	var sum float64
	for _, m := range families[idx].GetMetric() {
		if !matchesLabels(m, labels) {
			continue
		}
		switch {
		case m.GetCounter() != nil:
			sum += m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			sum += m.GetGauge().GetValue()
		case m.GetHistogram() != nil:
			sum += float64(m.GetHistogram().GetSampleCount())
		}
	}
	return sum
}

func matchesLabels(m *dto.Metric, filter map[string]string) bool {
	if len(filter) == 0 {
		return true
	}

	got := make(map[string]string, len(m.GetLabel()))
	for _, pair := range m.GetLabel() {
		got[pair.GetName()] = pair.GetValue()
	}
	for k, v := range filter {
		if got[k] != v {
			return false
		}
	}
	return true
}

// AssertMetricDelta asserts that fn moves the metric by exactly expectedDelta.
func AssertMetricDelta(t *testing.T, metricName string, labels map[string]string, expectedDelta float64, fn func()) {
	t.Helper()

	before := GetMetricValue(t, metricName, labels)
	fn()
	after := GetMetricValue(t, metricName, labels)

	assert.Equal(t, expectedDelta, after-before, "metric %s%v delta mismatch", metricName, labels)
}

// AssertMetricDeltaAsync is AssertMetricDelta for effects that land on another goroutine.
func AssertMetricDeltaAsync(t *testing.T, metricName string, labels map[string]string, expectedDelta float64, fn func()) {
	t.Helper()

	before := GetMetricValue(t, metricName, labels)
	fn()

	require.Eventually(t, func() bool {
		return GetMetricValue(t, metricName, labels) == before+expectedDelta
	}, 2*time.Second, 20*time.Millisecond, "metric %s%v never moved by %.0f", metricName, labels, expectedDelta)
}

// AssertHistogramRecorded asserts that a histogram has at least one sample.
func AssertHistogramRecorded(t *testing.T, metricName string, labels map[string]string) {
	t.Helper()

	assert.Greater(t, GetMetricValue(t, metricName, labels), 0.0, "histogram %s%v has no samples", metricName, labels)
}

package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
)

func TestBridgeMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBridgeMetrics(reg)
	m.ObserveTurn("resumed")
	m.ObserveRelaySend("text", true)
	m.ObserveInbound("message.received", "ok")
	m.ObserveEngineCall("continue", 200, 0.5)
}

func TestBridgeMetricsNilSafe(t *testing.T) {
	var m *BridgeMetrics
	m.ObserveTurn("created")
	m.ObserveRelaySend("voice", false)
	m.ObserveInbound("event", "status")
	m.ObserveEngineCall("start", 0, 0.1)
}

func TestSnap_AggregatesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBridgeMetrics(reg)
	m.ObserveTurn("created")
	m.ObserveTurn("resumed")
	m.ObserveTurn("resumed")
	m.ObserveRelaySend("text", true)
	m.ObserveRelaySend("media", true)
	m.ObserveRelaySend("voice", false)
	m.ObserveInbound("message.received", "ok")
	m.ObserveEngineCall("start", 200, 0.2)
	m.ObserveEngineCall("continue", 0, 0.4)
	m.ObserveEngineCall("continue", 500, 0.3)

	snap := Snap(reg)

	assert.Equal(t, int64(1), snap.Turns["created"])
	assert.Equal(t, int64(2), snap.Turns["resumed"])
	assert.Equal(t, int64(2), snap.RelaySent)
	assert.Equal(t, int64(1), snap.RelayFailed)
	assert.Equal(t, int64(1), snap.InboundWebhooks)
	assert.Equal(t, int64(3), snap.EngineCalls)
	assert.Equal(t, int64(2), snap.EngineFailures)
	assert.InDelta(t, 300.0, snap.EngineMeanMs, 0.001)
}

type stubGatherer struct {
	families []*dto.MetricFamily
	err      error
}

func (s stubGatherer) Gather() ([]*dto.MetricFamily, error) {
	return s.families, s.err
}

func TestSnap_GatherError(t *testing.T) {
	snap := Snap(stubGatherer{err: errors.New("boom")})
	assert.Empty(t, snap.Turns)
	assert.Zero(t, snap.EngineCalls)
}

func TestSnap_IgnoresForeignFamilies(t *testing.T) {
	name := "other_total"
	value := 4.0
	snap := Snap(stubGatherer{families: []*dto.MetricFamily{{
		Name:   &name,
		Metric: []*dto.Metric{{Counter: &dto.Counter{Value: &value}}},
	}}})
	assert.Empty(t, snap.Turns)
	assert.Zero(t, snap.RelaySent)
}

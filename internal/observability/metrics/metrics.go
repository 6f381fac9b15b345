package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flowbridge"

// BridgeMetrics exposes counters/histograms for the flow bridge.
type BridgeMetrics struct {
	turnsTotal     *prometheus.CounterVec
	relaySends     *prometheus.CounterVec
	inboundTotal   *prometheus.CounterVec
	engineDuration *prometheus.HistogramVec
}

func NewBridgeMetrics(reg prometheus.Registerer) *BridgeMetrics {
	m := &BridgeMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "turns_total",
			Help:      "Inbound turns by lifecycle decision",
		}, []string{"decision"}),
		relaySends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "sends_total",
			Help:      "Outbound transport sends issued by the relay",
		}, []string{"kind", "status"}),
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messaging",
			Name:      "inbound_webhook_total",
			Help:      "Total inbound transport webhooks",
		}, []string{"event_type", "status"}),
		engineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "flowengine",
			Name:      "request_seconds",
			Help:      "Latency of flow engine sendMessage calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"call", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.relaySends, m.inboundTotal, m.engineDuration)
	return m
}

func (m *BridgeMetrics) ObserveTurn(decision string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(decision).Inc()
}

func (m *BridgeMetrics) ObserveRelaySend(kind string, ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.relaySends.WithLabelValues(kind, status).Inc()
}

func (m *BridgeMetrics) ObserveInbound(eventType, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(eventType, status).Inc()
}

// ObserveEngineCall records a flow engine round trip. status is the HTTP
// status code, or 0 when the engine could not be reached.
func (m *BridgeMetrics) ObserveEngineCall(call string, status int, seconds float64) {
	if m == nil {
		return
	}
	label := "unreachable"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.engineDuration.WithLabelValues(call, label).Observe(seconds)
}

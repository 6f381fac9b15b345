package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Snapshot summarises bridge activity read back from a prometheus gatherer.
type Snapshot struct {
	Turns           map[string]int64 `json:"turns"`
	RelaySent       int64            `json:"relay_sent"`
	RelayFailed     int64            `json:"relay_failed"`
	EngineCalls     int64            `json:"engine_calls"`
	EngineMeanMs    float64          `json:"engine_mean_ms"`
	EngineFailures  int64            `json:"engine_failures"`
	InboundWebhooks int64            `json:"inbound_webhooks"`
}

// Snap gathers the current bridge metric families. Gather errors yield an empty snapshot.
func Snap(gatherer prometheus.Gatherer) Snapshot {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	snap := Snapshot{Turns: map[string]int64{}}
	mfs, err := gatherer.Gather()
	if err != nil {
		return snap
	}

	var engineSum float64
	for _, mf := range mfs {
		if mf == nil {
			continue
		}
		switch mf.GetName() {
		case namespace + "_bridge_turns_total":
			for _, metric := range mf.Metric {
				snap.Turns[labelValue(metric, "decision")] += counterValue(metric)
			}
		case namespace + "_relay_sends_total":
			for _, metric := range mf.Metric {
				if labelValue(metric, "status") == "ok" {
					snap.RelaySent += counterValue(metric)
				} else {
					snap.RelayFailed += counterValue(metric)
				}
			}
		case namespace + "_messaging_inbound_webhook_total":
			for _, metric := range mf.Metric {
				snap.InboundWebhooks += counterValue(metric)
			}
		case namespace + "_flowengine_request_seconds":
			for _, metric := range mf.Metric {
				h := metric.GetHistogram()
				if h == nil {
					continue
				}
				count := int64(h.GetSampleCount())
				snap.EngineCalls += count
				engineSum += h.GetSampleSum()
				status := labelValue(metric, "status")
				if status == "unreachable" || (len(status) == 3 && status[0] != '2') {
					snap.EngineFailures += count
				}
			}
		}
	}
	if snap.EngineCalls > 0 {
		snap.EngineMeanMs = engineSum / float64(snap.EngineCalls) * 1000.0
	}
	return snap
}

func counterValue(metric *dto.Metric) int64 {
	if metric == nil || metric.GetCounter() == nil {
		return 0
	}
	return int64(metric.GetCounter().GetValue())
}

func labelValue(metric *dto.Metric, name string) string {
	if metric == nil {
		return ""
	}
	for _, lp := range metric.Label {
		if lp != nil && lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

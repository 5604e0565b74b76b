package cfg

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/datastax/process-control-monitor/src/rules"
	"github.com/datastax/process-control-monitor/src/series"
)

type recordingPublisher struct {
	sync.Mutex
	messages []interface{}
}

func (p *recordingPublisher) Broadcast(messageType string, payload interface{}) {
	p.Lock()
	defer p.Unlock()
	p.messages = append(p.messages, payload)
}

func testChart(t *testing.T, chart ChartCfg) *ChartCfg {
	if chart.DataURL == "" {
		chart.DataURL = "unused.json"
	}
	errNil(t, chart.init())
	return &chart
}

func page(values ...float64) *series.DataPage {
	p := &series.DataPage{}
	for i, v := range values {
		p.Matrix = append(p.Matrix, []series.Cell{series.NumCell(float64(i)), series.NumCell(v)})
	}
	return p
}

func TestEvaluateChartHostAggregates(t *testing.T) {
	chart := testChart(t, ChartCfg{Name: "host", Rules: rules.Config{SinglePointBeyondLimits: true}})
	p := page(0, 3.5, -3.5, 2, -2)
	p.Control = &series.ControlAggregates{Avg: 0, Stdev: 1}

	result, err := EvaluateChart(chart, p)
	errNil(t, err)
	assert(t, result.Chart == "host", "chart name")
	assert(t, result.Limits.UCL() == 3 && result.Limits.LCL() == -3, "host aggregates %+v", result.Limits)
	assert(t, len(result.Points) == 2, "two points %+v", result.Points)
	assert(t, result.Points[0].Index == 1 && result.Points[0].Direction == rules.Above, "above")
	assert(t, result.Points[1].Index == 2 && result.Points[1].Direction == rules.Below, "below")
	assert(t, result.Viewport.Min == -3.5 && result.Viewport.Max == 3.5, "viewport %+v", result.Viewport)
	assert(t, len(result.Labels) == 5 && len(result.Observations) == 5, "labels and observations")
	assert(t, result.OutOfControl(), "out of control")
	assert(t, result.CountByRule()[rules.SinglePointRule] == 2, "count by rule")
	assert(t, result.PointStyle.Color == "#ff0000", "point style")
}

func TestEvaluateChartConfiguredAggregates(t *testing.T) {
	mean, std := 10.0, 1.0
	chart := testChart(t, ChartCfg{Name: "configured", Mean: &mean, StdDev: &std, Rules: rules.AllRules()})
	p := page(10.5, 10.2, 9.9)
	p.Control = &series.ControlAggregates{Avg: 0, Stdev: 100}

	result, err := EvaluateChart(chart, p)
	errNil(t, err)
	assert(t, result.Limits.Mean == 10 && result.Limits.StdDev == 1, "configured aggregates win %+v", result.Limits)
	assert(t, !result.OutOfControl(), "in control %+v", result.Points)
}

func TestEvaluateChartComputedAggregates(t *testing.T) {
	chart := testChart(t, ChartCfg{Name: "computed", Rules: rules.Config{EightInARow: true}})
	result, err := EvaluateChart(chart, page(2, 4, 4, 4, 5, 5, 7, 9))
	errNil(t, err)
	assert(t, result.Limits.Mean == 5, "computed mean %+v", result.Limits)
	assert(t, result.Limits.StdDev > 2.13 && result.Limits.StdDev < 2.14, "computed sample standard deviation %+v", result.Limits)
}

func TestEvaluateChartInvalidAggregates(t *testing.T) {
	chart := testChart(t, ChartCfg{Name: "invalid", Rules: rules.AllRules()})
	p := page(1, 2, 3)
	p.Control = &series.ControlAggregates{Avg: 0, Stdev: -1}

	_, err := EvaluateChart(chart, p)
	assert(t, err != nil, "negative standard deviation aborts the evaluation")

	_, err = EvaluateChart(&ChartCfg{Name: "uninitialized"}, p)
	assert(t, err != nil, "uninitialized chart")
}

func TestMonitorChart(t *testing.T) {
	Config = Configuration{Name: "monitor-test"}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"control": {"avg": 0, "stdev": 1},
			"qMatrix": [
				[{"qNum": 1, "qText": "a"}, {"qNum": 0.5, "qText": "0.5"}],
				[{"qNum": 2, "qText": "b"}, {"qNum": 4, "qText": "4"}],
				[{"qNum": 3, "qText": "c"}, {"qNum": "NaN", "qText": "-", "qIsNull": true}]
			]
		}`))
	}))
	defer server.Close()

	chart := testChart(t, ChartCfg{
		Name:    "monitored",
		DataURL: server.URL,
		Rules:   rules.Config{SinglePointBeyondLimits: true},
	})
	publisher := &recordingPublisher{}

	result, err := MonitorChart(context.Background(), chart, publisher)
	errNil(t, err)
	assert(t, len(result.Points) == 1 && result.Points[0].Index == 1, "flagged point %+v", result.Points)
	assert(t, len(publisher.messages) == 1, "result published")

	latest := LatestResults()
	found := false
	for _, r := range latest {
		found = found || r.Chart == "monitored"
	}
	assert(t, found, "latest result kept")

	key := getMetricKey(OutOfControlGaugeOpt())
	gauge := ruleMetrics[key].WithLabelValues("monitored", string(rules.SinglePointRule))
	assert(t, testutil.ToFloat64(gauge) == 1, "out of control gauge")
	ucl := metrics[getMetricKey(ControlLimitGaugeOpt("ucl", ""))].WithLabelValues("monitored")
	assert(t, testutil.ToFloat64(ucl) == 3, "ucl gauge")
	observations := metrics[getMetricKey(ObservationsGaugeOpt())].WithLabelValues("monitored")
	assert(t, testutil.ToFloat64(observations) == 2, "observations gauge")
}

func TestMonitorChartFetchError(t *testing.T) {
	Config = Configuration{Name: "monitor-test"}
	chart := testChart(t, ChartCfg{Name: "missing", DataURL: "/nonexistent/page.json"})
	publisher := &recordingPublisher{}

	_, err := MonitorChart(context.Background(), chart, publisher)
	assert(t, err != nil, "missing data page")
	assert(t, len(publisher.messages) == 0, "nothing published")
}

func TestChartIncidentDetails(t *testing.T) {
	chart := testChart(t, ChartCfg{Name: "details", Rules: rules.AllRules()})
	p := page(0, 3.5, 2.5, 2.5, -3.5)
	p.Control = &series.ControlAggregates{Avg: 0, Stdev: 1}
	result, err := EvaluateChart(chart, p)
	errNil(t, err)

	incident := chartIncident(result)
	assert(t, incident.Chart == "details" && incident.Alias == "details-out-of-control", "incident names %+v", incident)
	assert(t, incident.Details["ucl"] == 3.0 && incident.Details["lcl"] == -3.0, "limits %v", incident.Details)
	assert(t, incident.Details["points"] == len(result.Points), "points %v", incident.Details)
	assert(t, incident.Details["latestIndex"] == 4, "latest flagged index %v", incident.Details)
	byRule := incident.Details["rules"].(map[string]int)
	assert(t, byRule[string(rules.SinglePointRule)] == 2, "rule counts %v", byRule)
	assert(t, byRule[string(rules.TwoOfThreeRule)] > 0, "rule counts %v", byRule)
}

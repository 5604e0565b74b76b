package cfg

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metrics     = make(map[string]*prometheus.GaugeVec)
	ruleMetrics = make(map[string]*prometheus.GaugeVec)
	summaries   = make(map[string]*prometheus.SummaryVec)
	counters    = make(map[string]*prometheus.CounterVec)

	// charts are evaluated on their own goroutines
	metricsLock = &sync.Mutex{}
)

const (
	namespace          = "spc"
	limitsSubsystem    = "limits"
	evaluateSubsystem  = "evaluation"
	chartLabel         = "chart"
	ruleLabel          = "rule"
	outOfControlMetric = "out_of_control_points"
)

// This is Premetheus data modelling and naming convention
// https://prometheus.io/docs/practices/naming/

// ControlLimitGaugeOpt is the description of a control limit gauge, such as mean or ucl
func ControlLimitGaugeOpt(name, desc string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: limitsSubsystem,
		Name:      name,
		Help:      desc,
	}
}

// OutOfControlGaugeOpt is the description of the number of flagged points per rule
func OutOfControlGaugeOpt() prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: evaluateSubsystem,
		Name:      outOfControlMetric,
		Help:      "number of out of control points flagged by a rule in the latest evaluation",
	}
}

// ObservationsGaugeOpt is the description of the number of observations in the latest page
func ObservationsGaugeOpt() prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: evaluateSubsystem,
		Name:      "observations",
		Help:      "number of non missing observations in the latest evaluation",
	}
}

// EvaluationLatencyGaugeOpt is the description of the fetch and evaluation latency
func EvaluationLatencyGaugeOpt() prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: evaluateSubsystem,
		Name:      "latency_ms",
		Help:      "chart data fetch and rule evaluation latency in ms",
	}
}

// EvaluationCounterOpt is the description of the evaluation counter
func EvaluationCounterOpt(name, desc string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: evaluateSubsystem,
		Name:      name,
		Help:      desc,
	}
}

// PromGaugeInt registers gauge reading in integer
func PromGaugeInt(opt prometheus.GaugeOpts, chart string, num int) {
	PromGauge(opt, chart, float64(num))
}

// PromGauge registers gauge reading
func PromGauge(opt prometheus.GaugeOpts, chart string, num float64) {
	metricsLock.Lock()
	defer metricsLock.Unlock()
	key := getMetricKey(opt)
	if promMetric, ok := metrics[key]; ok {
		promMetric.WithLabelValues(chart).Set(num)
	} else {
		newMetric := prometheus.NewGaugeVec(opt, []string{chartLabel})
		prometheus.Register(newMetric)
		newMetric.WithLabelValues(chart).Set(num)
		metrics[key] = newMetric
	}
}

// PromRuleGauge registers gauge reading per chart and rule
func PromRuleGauge(opt prometheus.GaugeOpts, chart, rule string, num float64) {
	metricsLock.Lock()
	defer metricsLock.Unlock()
	key := getMetricKey(opt)
	if promMetric, ok := ruleMetrics[key]; ok {
		promMetric.WithLabelValues(chart, rule).Set(num)
	} else {
		newMetric := prometheus.NewGaugeVec(opt, []string{chartLabel, ruleLabel})
		prometheus.Register(newMetric)
		newMetric.WithLabelValues(chart, rule).Set(num)
		ruleMetrics[key] = newMetric
	}
}

// PromCounter registers counter and increment
func PromCounter(opt prometheus.CounterOpts, chart string) {
	metricsLock.Lock()
	defer metricsLock.Unlock()
	key := fmt.Sprintf("%s-%s-%s", opt.Namespace, opt.Subsystem, opt.Name)
	if promMetric, ok := counters[key]; ok {
		promMetric.WithLabelValues(chart).Inc()
	} else {
		newMetric := prometheus.NewCounterVec(opt, []string{chartLabel})
		prometheus.Register(newMetric)
		newMetric.WithLabelValues(chart).Inc()
		counters[key] = newMetric
	}
}

// PromLatencySum expose latency gauge and summary to Prometheus
func PromLatencySum(opt prometheus.GaugeOpts, chart string, latency time.Duration) {
	ms := float64(latency / time.Millisecond)
	PromGauge(opt, chart, ms)

	metricsLock.Lock()
	defer metricsLock.Unlock()
	key := getMetricKey(opt)
	if summary, ok := summaries[key]; ok {
		summary.WithLabelValues(chart).Observe(ms)
	} else {
		newSummary := prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Namespace:  opt.Namespace,
			Subsystem:  opt.Subsystem,
			Name:       fmt.Sprintf("%s_hst", opt.Name),
			Help:       opt.Help,
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			MaxAge:     30 * time.Minute,
			AgeBuckets: 3,
			BufCap:     500,
		}, []string{chartLabel})
		prometheus.MustRegister(newSummary)
		newSummary.WithLabelValues(chart).Observe(ms)
		summaries[key] = newSummary
	}
}

func getMetricKey(opt prometheus.GaugeOpts) string {
	return fmt.Sprintf("%s-%s-%s", opt.Namespace, opt.Subsystem, opt.Name)
}

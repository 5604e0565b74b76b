//
//  Copyright (c) 2020-2021 Datastax, Inc.
//
//  Licensed to the Apache Software Foundation (ASF) under one
//  or more contributor license agreements.  See the NOTICE file
//  distributed with this work for additional information
//  regarding copyright ownership.  The ASF licenses this file
//  to you under the Apache License, Version 2.0 (the
//  "License"); you may not use this file except in compliance
//  with the License.  You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing,
//  software distributed under the License is distributed on an
//  "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
//  KIND, either express or implied.  See the License for the
//  specific language governing permissions and limitations
//  under the License.
//

package cfg

import (
	"context"
	"fmt"
	"time"

	"github.com/apex/log"

	"github.com/datastax/process-control-monitor/src/rules"
	"github.com/datastax/process-control-monitor/src/series"
	"github.com/datastax/process-control-monitor/src/stats"
	"github.com/datastax/process-control-monitor/src/util"
)

// ChartResult is the outcome of one chart evaluation handed to the chart clients
type ChartResult struct {
	Chart        string                  `json:"chart"`
	EvaluatedAt  time.Time               `json:"evaluatedAt"`
	Limits       stats.ControlLimits     `json:"limits"`
	Viewport     series.Range            `json:"viewport"`
	Labels       []series.DimensionLabel `json:"labels"`
	Observations []series.Observation    `json:"observations"`
	Points       []rules.FlaggedPoint    `json:"points"`
	PointStyle   PointStyleCfg           `json:"pointStyle"`
}

// OutOfControl returns whether any point is flagged
func (r *ChartResult) OutOfControl() bool {
	return len(r.Points) > 0
}

// CountByRule returns the number of flagged points per rule
func (r *ChartResult) CountByRule() map[rules.Name]int {
	counts := make(map[rules.Name]int)
	for _, p := range r.Points {
		counts[p.Rule]++
	}
	return counts
}

// Publisher pushes chart results to live clients
type Publisher interface {
	Broadcast(messageType string, payload interface{})
}

// latest evaluation per chart name
var latestResults = util.NewSyncMap[string, *ChartResult]()

// LatestResults returns the latest evaluation of every chart ordered by chart name
func LatestResults() []*ChartResult {
	return latestResults.Values(func(a, b string) bool { return a < b })
}

// aggregates picks the configured aggregates, then the host ones, and last computes them from the page
func (c *ChartCfg) aggregates(page *series.DataPage, observations []series.Observation) (mean, stdDev float64, source string) {
	if c.Mean != nil && c.StdDev != nil {
		return *c.Mean, *c.StdDev, "config"
	}
	if page.Control != nil {
		return page.Control.Avg, page.Control.Stdev, "host"
	}
	mean, stdDev = stats.Aggregate(series.Values(observations))
	return mean, stdDev, "computed"
}

// EvaluateChart runs the rules of a chart over a data page
func EvaluateChart(chart *ChartCfg, page *series.DataPage) (*ChartResult, error) {
	if chart.evaluator == nil {
		return nil, fmt.Errorf("chart %s is not initialized", chart.Name)
	}
	observations := series.ExtractColumn(page.Matrix, chart.MeasureColumn)
	mean, stdDev, source := chart.aggregates(page, observations)
	limits, err := stats.ComputeLimits(mean, stdDev)
	if err != nil {
		return nil, fmt.Errorf("chart %s %s aggregates: %w", chart.Name, source, err)
	}

	return &ChartResult{
		Chart:        chart.Name,
		EvaluatedAt:  time.Now(),
		Limits:       limits,
		Viewport:     series.Viewport(limits, observations),
		Labels:       series.DimensionLabels(page.Matrix, series.DimensionType(page.DimensionTags)),
		Observations: observations,
		Points:       chart.evaluator.Evaluate(observations, limits),
		PointStyle:   chart.PointStyle,
	}, nil
}

// FetchAndEvaluate loads the chart data page and evaluates it
func FetchAndEvaluate(ctx context.Context, chart *ChartCfg) (*ChartResult, error) {
	fetcher := series.NewFetcher(util.TimeDuration(chart.ResponseSeconds, 30, time.Second), chart.Retries, chart.Headers)
	page, err := fetcher.Fetch(ctx, chart.DataURL)
	if err != nil {
		return nil, err
	}
	return EvaluateChart(chart, page)
}

var ruleNames = []rules.Name{rules.SinglePointRule, rules.TwoOfThreeRule, rules.FourOfFiveRule, rules.RunRule, rules.ExpressionRule}

func promResult(result *ChartResult) {
	PromGauge(ControlLimitGaugeOpt("mean", "control chart centerline"), result.Chart, result.Limits.Mean)
	PromGauge(ControlLimitGaugeOpt("std_dev", "control chart standard deviation"), result.Chart, result.Limits.StdDev)
	PromGauge(ControlLimitGaugeOpt("ucl", "upper control limit at 3σ"), result.Chart, result.Limits.UCL())
	PromGauge(ControlLimitGaugeOpt("lcl", "lower control limit at 3σ"), result.Chart, result.Limits.LCL())
	PromGaugeInt(ObservationsGaugeOpt(), result.Chart, len(series.Values(result.Observations)))

	counts := result.CountByRule()
	for _, name := range ruleNames {
		PromRuleGauge(OutOfControlGaugeOpt(), result.Chart, string(name), float64(counts[name]))
	}
}

// chartIncident summarizes an out of control result
func chartIncident(result *ChartResult) Incident {
	byRule := make(map[string]int)
	for rule, count := range result.CountByRule() {
		byRule[string(rule)] = count
	}
	details := map[string]interface{}{
		"mean":        result.Limits.Mean,
		"stdDev":      result.Limits.StdDev,
		"ucl":         result.Limits.UCL(),
		"lcl":         result.Limits.LCL(),
		"points":      len(result.Points),
		"rules":       byRule,
		"evaluatedAt": result.EvaluatedAt.Format(time.RFC3339),
	}
	if len(result.Points) > 0 {
		latest := result.Points[0].Index
		for _, p := range result.Points {
			if p.Index > latest {
				latest = p.Index
			}
		}
		details["latestIndex"] = latest
	}
	return Incident{
		Chart:   result.Chart,
		Alias:   result.Chart + "-out-of-control",
		Message: fmt.Sprintf("chart %s is out of control", result.Chart),
		Description: fmt.Sprintf("%d points flagged, mean %.2f ucl %.2f lcl %.2f",
			len(result.Points), result.Limits.Mean, result.Limits.UCL(), result.Limits.LCL()),
		Details: details,
	}
}

// MonitorChart evaluates a chart once, exposes metrics, publishes the result and tracks incidents
func MonitorChart(ctx context.Context, chart *ChartCfg, publisher Publisher) (*ChartResult, error) {
	start := time.Now()
	result, err := FetchAndEvaluate(ctx, chart)
	if err != nil {
		PromCounter(EvaluationCounterOpt("failures_total", "chart evaluation failures"), chart.Name)
		errMsg := fmt.Sprintf("chart %s evaluation error: %v", chart.Name, err)
		VerboseAlert(chart.Name+"-evaluation", errMsg, 10*time.Minute)
		return nil, err
	}
	PromLatencySum(EvaluationLatencyGaugeOpt(), chart.Name, time.Since(start))
	PromCounter(EvaluationCounterOpt("total", "chart evaluations"), chart.Name)
	promResult(result)

	latestResults.Put(chart.Name, result)
	if publisher != nil {
		publisher.Broadcast("evaluation", result)
	}

	if result.OutOfControl() {
		log.WithFields(log.Fields{
			"chart":  chart.Name,
			"points": len(result.Points),
			"mean":   result.Limits.Mean,
			"stdDev": result.Limits.StdDev,
		}).Warn("out of control points")
		ReportIncident(chartIncident(result), &chart.AlertPolicy)
	} else {
		ClearIncident(chart.Name)
	}
	return result, nil
}

// MonitorCharts evaluates every configured chart on its own interval until ctx is done
func MonitorCharts(ctx context.Context, publisher Publisher) {
	charts := GetConfig().Charts
	for i := range charts {
		chart := &charts[i]
		interval := util.TimeDuration(chart.IntervalSeconds, 60, time.Second)
		log.Infof("monitor chart %s every %v from %s", chart.Name, interval, chart.DataURL)
		RunInterval(ctx, func() {
			if _, err := MonitorChart(ctx, chart, publisher); err != nil {
				log.Errorf("chart %s evaluation error %v", chart.Name, err)
			}
		}, interval)
	}
}

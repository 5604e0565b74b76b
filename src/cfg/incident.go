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
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"

	"github.com/datastax/process-control-monitor/src/util"
)

// report incident when a chart keeps evaluating out of control.
// incident trackers are guarded by incidentTrackersLock.

type incidentRecord struct {
	dedupKey  string
	alias     string
	createdAt time.Time
}

var (
	// key is the component, value is the PagerDuty dedup key for resolution
	incidents = make(map[string]incidentRecord)

	// lock for incidents map
	incidentsLock = &sync.RWMutex{}

	// tracks incident to determine whether real alerting is required
	// key is the component name
	incidentTrackers     = make(map[string]*IncidentAlertPolicy)
	incidentTrackersLock = &sync.RWMutex{}
)

// IncidentAlertPolicy tracks and reports incident when threshold is reached
type IncidentAlertPolicy struct {
	Entity            string
	Counters          int
	EvalWindowSeconds time.Duration
	Alerts            []time.Time
	LimitInWindow     int
	Limit             int
	LastUpdatedAt     time.Time
}

// return if alert is triggered
func (t *IncidentAlertPolicy) report(component, msg string) bool {
	now := time.Now()
	t.LastUpdatedAt = now
	t.Entity = component
	t.Counters = t.Counters + 1
	t.Alerts = append(t.Alerts, now)
	if t.Limit > 0 && t.Counters >= t.Limit {
		t.Counters = 0
		t.Alerts = nil
		return true
	}
	if t.Limit > 0 && t.Counters+1 >= t.Limit {
		// pre-alert before an incident could be created next time
		VerboseAlert(component, msg, time.Hour)
	}

	// evict expired alerts
	inWindow := t.Alerts[:0]
	for _, v := range t.Alerts {
		if now.Sub(v) < t.EvalWindowSeconds {
			inWindow = append(inWindow, v)
		}
	}
	t.Alerts = inWindow

	if t.LimitInWindow > 0 && len(t.Alerts) >= t.LimitInWindow {
		t.Counters = 0
		t.Alerts = nil
		return true
	}
	return false
}

func (t *IncidentAlertPolicy) clear() int {
	if t.Counters > 0 {
		t.Counters--
	}
	return t.Counters
}

func newPolicy(eval *AlertPolicyCfg) *IncidentAlertPolicy {
	return &IncidentAlertPolicy{
		EvalWindowSeconds: util.TimeDuration(eval.MovingWindowSeconds, 1, time.Second),
		LimitInWindow:     eval.CeilingInMovingWindow,
		Limit:             eval.Ceiling,
		LastUpdatedAt:     time.Now(),
	}
}

func trackIncident(component, msg string, eval *AlertPolicyCfg) bool {
	incidentTrackersLock.Lock()
	defer incidentTrackersLock.Unlock()
	tracker, ok := incidentTrackers[component]
	if !ok {
		tracker = newPolicy(eval)
		incidentTrackers[component] = tracker
	}
	return tracker.report(component, msg)
}

// Incident describes an out of control chart for Slack and PagerDuty
type Incident struct {
	Chart       string
	Alias       string
	Message     string
	Description string
	Details     map[string]interface{}
}

// text is the Slack rendering, details are listed in key order
func (i Incident) text() string {
	var sb strings.Builder
	sb.WriteString(i.Message)
	if i.Description != "" {
		sb.WriteString(" " + i.Description)
	}
	keys := make([]string, 0, len(i.Details))
	for k := range i.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "\n%s: %v", k, i.Details[k])
	}
	return sb.String()
}

// ReportIncident reports an out of control evaluation and returns whether an incident is created.
func ReportIncident(incident Incident, eval *AlertPolicyCfg) bool {
	if (eval.Ceiling > 0 || eval.CeilingInMovingWindow > 0) && trackIncident(incident.Chart, incident.Message, eval) {
		CreateIncident(incident)
		return true
	}
	return false
}

// CreateIncident alerts Slack and triggers a PagerDuty incident if it is configured
func CreateIncident(incident Incident) {
	Alert(incident.text())
	if key := GetConfig().PagerDutyConfig.IntegrationKey; key != "" {
		if err := CreatePDIncident(incident, key); err != nil {
			log.Errorf("failed to create PagerDuty incident for %s error %v", incident.Chart, err)
		}
	}
}

// ClearIncident clears an existing incident
func ClearIncident(component string) {
	incidentTrackersLock.Lock()
	if tracker, ok := incidentTrackers[component]; ok {
		tracker.clear()
	}
	incidentTrackersLock.Unlock()

	incidentsLock.Lock()
	record, ok := incidents[component]
	delete(incidents, component)
	incidentsLock.Unlock()
	if !ok {
		return
	}

	log.Infof("resolve incident %s created at %v", component, record.createdAt)
	if key := GetConfig().PagerDutyConfig.IntegrationKey; key != "" {
		if err := ResolvePDIncident(component, util.AssignString(record.dedupKey, record.alias), key); err != nil {
			log.Errorf("failed to resolve PagerDuty incident for %s error %v", component, err)
		}
	}
}

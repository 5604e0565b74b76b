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
	"errors"
	"time"

	pd "github.com/PagerDuty/go-pagerduty"
	"github.com/apex/log"
)

const (
	trigger = "trigger"
	resolve = "resolve"

	pdSource = "process-control-monitor"
	pdClass  = "out_of_control"
)

// pdEventsEndpoint is the PagerDuty Events API v2 base URL
var pdEventsEndpoint = "https://events.pagerduty.com"

// pdEvent builds the Events v2 event of a chart incident, the evaluation details
// are carried as custom details so responders see the limits and the rule counts
func pdEvent(action, dedupKey, routingKey string, incident Incident) *pd.V2Event {
	payload := &pd.V2Payload{
		Summary:   incident.Chart + ": " + incident.Message,
		Source:    pdSource,
		Severity:  "error",
		Component: incident.Chart,
		Group:     GetConfig().Name,
		Class:     pdClass,
		Details:   incident.Details,
	}
	if action == resolve {
		payload.Summary = incident.Chart + ": back in control"
		payload.Severity = "info"
	}
	return &pd.V2Event{
		RoutingKey: routingKey,
		DedupKey:   dedupKey,
		Action:     action,
		Payload:    payload,
	}
}

// CreatePDIncident triggers a PagerDuty incident and keeps its dedup key for resolution
func CreatePDIncident(incident Incident, routingKey string) error {
	resp, err := sendPDEvent(pdEvent(trigger, incident.Alias, routingKey, incident))
	if err != nil {
		return err
	}
	if resp == nil {
		return errors.New("empty pagerduty event update response")
	}

	incidentsLock.Lock()
	defer incidentsLock.Unlock()
	incidents[incident.Chart] = incidentRecord{
		dedupKey:  resp.DedupKey,
		alias:     incident.Alias,
		createdAt: time.Now(),
	}
	return nil
}

// ResolvePDIncident resolves the PagerDuty incident of a chart
func ResolvePDIncident(chart, dedupKey, routingKey string) error {
	_, err := sendPDEvent(pdEvent(resolve, dedupKey, routingKey, Incident{Chart: chart}))
	return err
}

func sendPDEvent(event *pd.V2Event) (*pd.V2EventResponse, error) {
	if event.RoutingKey == "" {
		return nil, nil
	}
	client := pd.NewClient("", pd.WithV2EventsAPIEndpoint(pdEventsEndpoint))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := client.ManageEventWithContext(ctx, event)
	if err != nil {
		log.Errorf("PagerDuty %s event for %s error %v", event.Action, event.Payload.Component, err)
		return nil, err
	}
	log.WithFields(log.Fields{
		"action":   event.Action,
		"chart":    event.Payload.Component,
		"dedupKey": resp.DedupKey,
	}).Info("PagerDuty event sent")
	return resp, nil
}

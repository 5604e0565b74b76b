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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/datastax/process-control-monitor/src/util"
)

// SlackMessage is the incoming webhook payload, the channel is bound to the webhook
type SlackMessage struct {
	Text     string `json:"text"`
	Username string `json:"username,omitempty"`
}

// LogOnly as a silence window only logs with no Slack notification
const LogOnly = -1 * time.Second

// silence keeps the last notification time of a component
type silence struct {
	notifiedAt time.Time
	window     time.Duration
}

func (s silence) expired(now time.Time) bool {
	return now.Sub(s.notifiedAt) > s.window
}

var silences = util.NewSyncMap[string, silence]()

// VerboseAlert notifies Slack at most once per silence window for a component,
// the alerts in between are only logged unless slack verbose is on
func VerboseAlert(component, message string, silenceWindow time.Duration) {
	if silenceWindow < 0 {
		log.Errorf("Alert %s", message)
		return
	}
	now := time.Now()
	if !GetConfig().SlackConfig.Verbose {
		if s, ok := silences.Get(component); ok && !s.expired(now) {
			log.WithField("component", component).Errorf("Alert %s", message)
			return
		}
		silences.Put(component, silence{notifiedAt: now, window: silenceWindow})
	}
	Alert(message)
}

// Alert logs msg and posts it to the Slack webhook if one is configured
func Alert(msg string) {
	log.Errorf("Alert %s", msg)
	url := GetConfig().SlackConfig.AlertURL
	if url == "" {
		return
	}
	if err := SendSlackNotification(url, SlackMessage{Text: msg, Username: GetConfig().Name}); err != nil {
		log.Errorf("slack error %v", err)
	}
}

// SendSlackNotification posts a message to a Slack incoming webhook
func SendSlackNotification(webhookURL string, msg SlackMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := retryablehttp.NewRequest(http.MethodPost, webhookURL, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := retryablehttp.NewClient()
	client.HTTPClient.Timeout = 10 * time.Second
	client.RetryMax = 2
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.Logger = nil

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	reply, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if text := strings.TrimSpace(string(reply)); text != "ok" {
		return fmt.Errorf("slack webhook status %d, response %s", resp.StatusCode, text)
	}
	return nil
}

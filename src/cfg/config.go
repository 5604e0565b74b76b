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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"
	"unicode"

	"github.com/apex/log"
	"sigs.k8s.io/yaml"

	"github.com/datastax/process-control-monitor/src/rules"
)

// PrometheusCfg configures Premetheus set up
type PrometheusCfg struct {
	Port          string `json:"port"`
	ExposeMetrics bool   `json:"exposeMetrics"`
}

// StreamCfg configures the websocket endpoint that pushes evaluations to chart clients
type StreamCfg struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SlackCfg is slack configuration
type SlackCfg struct {
	AlertURL string `json:"alertUrl"`
	Verbose  bool   `json:"verbose"`
}

// PagerDutyCfg is PagerDuty configuration
type PagerDutyCfg struct {
	IntegrationKey string `json:"integrationKey"`
}

// PointStyleCfg is how out of control points are drawn. The evaluation
// never reads it, it is handed to the chart clients with every result.
type PointStyleCfg struct {
	Color string `json:"color"`
	Shape string `json:"shape"`
	Size  int    `json:"size"`
}

// PointShapes are the supported out of control point shapes
var PointShapes = []string{"circle", "triangle", "square", "diamond", "star", "polygon"}

// ChartCfg configures one process control chart
type ChartCfg struct {
	Name string `json:"name"`
	// DataURL is a http(s) URL or a file path to the hypercube data page
	DataURL string            `json:"dataUrl"`
	Headers map[string]string `json:"headers"`
	// MeasureColumn is the matrix column with the control field, the dimension is column 0
	MeasureColumn   int `json:"measureColumn"`
	IntervalSeconds int `json:"intervalSeconds"`
	ResponseSeconds int `json:"responseSeconds"`
	Retries         int `json:"retries"`
	// Mean and StdDev override the host aggregates when both are set
	Mean        *float64       `json:"mean"`
	StdDev      *float64       `json:"stdDev"`
	Rules       rules.Config   `json:"rules"`
	PointStyle  PointStyleCfg  `json:"pointStyle"`
	AlertPolicy AlertPolicyCfg `json:"alertPolicy"`

	evaluator *rules.Evaluator
}

// Configuration - this server's configuration
type Configuration struct {
	// Name is the monitor instance name, it is mandatory
	Name             string        `json:"name"`
	LogLevel         string        `json:"logLevel"`
	GopsEnabled      bool          `json:"gopsEnabled"`
	PrometheusConfig PrometheusCfg `json:"prometheusConfig"`
	StreamConfig     StreamCfg     `json:"streamConfig"`
	SlackConfig      SlackCfg      `json:"slackConfig"`
	PagerDutyConfig  PagerDutyCfg  `json:"pagerDutyConfig"`
	Charts           []ChartCfg    `json:"charts"`
}

// AlertPolicyCfg is a set of criteria to evaluation triggers for incident alert
type AlertPolicyCfg struct {
	// first evaluation to count continuous out of control evaluations
	Ceiling int `json:"ceiling"`
	// Second evaluation for moving window
	MovingWindowSeconds   int `json:"movingWindowSeconds"`
	CeilingInMovingWindow int `json:"ceilingInMovingWindow"`
}

// Init validates the configuration, applies defaults and compiles the chart rules
func (c *Configuration) Init() error {
	if len(c.Name) < 1 {
		return fmt.Errorf("a valid `name` in Configuration must be specified")
	}
	if c.PrometheusConfig.Port == "" {
		c.PrometheusConfig.Port = ":8080"
	}
	if c.StreamConfig.Path == "" {
		c.StreamConfig.Path = "/ws"
	}

	names := make(map[string]bool)
	for i := range c.Charts {
		chart := &c.Charts[i]
		if chart.Name == "" {
			return fmt.Errorf("chart %d requires a name", i)
		}
		if names[chart.Name] {
			return fmt.Errorf("duplicated chart name %s", chart.Name)
		}
		names[chart.Name] = true

		if err := chart.init(); err != nil {
			return fmt.Errorf("chart %s: %w", chart.Name, err)
		}
	}
	return nil
}

func (c *ChartCfg) init() error {
	if c.DataURL == "" {
		return fmt.Errorf("dataUrl is required")
	}
	if c.MeasureColumn == 0 {
		c.MeasureColumn = 1
	}
	if (c.Mean == nil) != (c.StdDev == nil) {
		return fmt.Errorf("mean and stdDev must be configured together")
	}

	if c.PointStyle.Color == "" {
		c.PointStyle.Color = "#ff0000"
	}
	if c.PointStyle.Shape == "" {
		c.PointStyle.Shape = "circle"
	}
	if c.PointStyle.Size == 0 {
		c.PointStyle.Size = 5
	}
	validShape := false
	for _, s := range PointShapes {
		validShape = validShape || s == c.PointStyle.Shape
	}
	if !validShape {
		return fmt.Errorf("unsupported point shape %s", c.PointStyle.Shape)
	}

	evaluator, err := rules.NewEvaluator(c.Rules)
	if err != nil {
		return err
	}
	c.evaluator = evaluator
	return nil
}

// Evaluator returns the compiled rules of the chart
func (c *ChartCfg) Evaluator() *rules.Evaluator {
	return c.evaluator
}

// Config - this server's configuration instance
var Config Configuration

// LoadConfig reads a JSON or YAML configuration file
func LoadConfig(configFile string) (*Configuration, error) {
	fileBytes, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration file %s: %w", configFile, err)
	}
	return ParseConfig(fileBytes)
}

// ParseConfig parses JSON or YAML bytes into an initialized Configuration
func ParseConfig(fileBytes []byte) (*Configuration, error) {
	var config Configuration
	if hasJSONPrefix(fileBytes) {
		if err := json.Unmarshal(fileBytes, &config); err != nil {
			return nil, err
		}
	} else {
		if err := yaml.Unmarshal(fileBytes, &config); err != nil {
			return nil, err
		}
	}

	if err := config.Init(); err != nil {
		return nil, err
	}
	return &config, nil
}

// ReadConfigFile reads configuration file into the server configuration instance.
func ReadConfigFile(configFile string) {
	config, err := LoadConfig(configFile)
	if err != nil {
		log.Errorf("failed to load configuration file %s", configFile)
		panic(err)
	}
	Config = *config
	log.Infof("config %s with %d charts", Config.Name, len(Config.Charts))
}

var jsonPrefix = []byte("{")

func hasJSONPrefix(buf []byte) bool {
	return hasPrefix(buf, jsonPrefix)
}

// Return true if the first non-whitespace bytes in buf is prefix.
func hasPrefix(buf []byte, prefix []byte) bool {
	trim := bytes.TrimLeftFunc(buf, unicode.IsSpace)
	return bytes.HasPrefix(trim, prefix)
}

// GetConfig returns a reference to the Configuration
func GetConfig() *Configuration {
	return &Config
}

type monitorFunc func()

// RunInterval runs fn immediately and then on every interval until ctx is done
func RunInterval(ctx context.Context, fn monitorFunc, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		fn()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-ctx.Done():
				return
			}
		}
	}()
}

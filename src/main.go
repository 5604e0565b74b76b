package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/apex/log"
	"github.com/apex/log/handlers/text"
	"github.com/google/gops/agent"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/datastax/process-control-monitor/src/cfg"
	"github.com/datastax/process-control-monitor/src/stream"
)

var (
	cfgFile = flag.String("config", "../config/runtime.yml", "config file for monitoring")
	once    = flag.Bool("once", false, "evaluate every chart once, print the results and exit")
)

func main() {
	flag.Parse()
	log.SetHandler(text.New(os.Stderr))
	log.Infof("config file %s", *cfgFile)
	cfg.ReadConfigFile(*cfgFile)

	config := cfg.GetConfig()
	if level, err := log.ParseLevel(config.LogLevel); err == nil {
		log.SetLevel(level)
	} else if config.LogLevel != "" {
		log.Warnf("invalid log level %s, keep info", config.LogLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *once {
		os.Exit(evaluateOnce(ctx))
	}

	if config.GopsEnabled {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Errorf("gops agent error %v", err)
		}
		defer agent.Close()
	}

	hub := stream.NewHub(func() interface{} { return cfg.LatestResults() })
	go hub.Run(ctx)

	mux := http.NewServeMux()
	if config.PrometheusConfig.ExposeMetrics {
		mux.Handle("/metrics", promhttp.Handler())
	}
	if config.StreamConfig.Enabled {
		mux.Handle(config.StreamConfig.Path, hub)
	}
	mux.HandleFunc("/charts", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(cfg.LatestResults()); err != nil {
			log.Errorf("failed to encode chart results %v", err)
		}
	})
	server := &http.Server{Addr: config.PrometheusConfig.Port, Handler: mux}
	go func() {
		log.Infof("listen on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error %v", err)
		}
	}()

	cfg.MonitorCharts(ctx, hub)

	<-ctx.Done()
	log.Infof("shutting down")
	server.Shutdown(context.Background())
}

// evaluateOnce prints one evaluation per chart as JSON and returns the exit code
func evaluateOnce(ctx context.Context) int {
	code := 0
	results := make([]*cfg.ChartResult, 0, len(cfg.GetConfig().Charts))
	for i := range cfg.GetConfig().Charts {
		chart := &cfg.GetConfig().Charts[i]
		result, err := cfg.FetchAndEvaluate(ctx, chart)
		if err != nil {
			log.Errorf("chart %s evaluation error %v", chart.Name, err)
			code = 1
			continue
		}
		results = append(results, result)
	}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(results); err != nil {
		log.Errorf("failed to encode results %v", err)
		return 1
	}
	return code
}

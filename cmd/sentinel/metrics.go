package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/crowdsecurity/go-cs-lib/trace"
	"github.com/crowdsecurity/go-cs-lib/version"

	"github.com/sentinelhq/sentinel/pkg/appversion"
	"github.com/sentinelhq/sentinel/pkg/csconfig"
	"github.com/sentinelhq/sentinel/pkg/metrics"
)

var globalSentinelInfo = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name:        "sentinel_info",
		Help:        "Information about sentinel.",
		ConstLabels: prometheus.Labels{"version": appversion.StripTags(version.String())},
	},
)

func newRegistry(level metrics.MetricsLevelConfig) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()

	if level == metrics.MetricsLevelNone {
		return reg, nil
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		globalSentinelInfo,
	)

	if err := metrics.RegisterMetrics(reg, level); err != nil {
		return nil, err
	}

	globalSentinelInfo.Set(1)

	return reg, nil
}

// servePrometheus exposes /metrics. It returns a nil server when disabled.
func servePrometheus(config *csconfig.PrometheusCfg) (*http.Server, error) {
	if !config.Enabled {
		return nil, nil
	}

	level := metrics.MetricsLevelConfig(config.Level)

	reg, err := newRegistry(level)
	if err != nil {
		return nil, err
	}

	if level == metrics.MetricsLevelNone {
		log.Info("prometheus is enabled with level 'none', not serving metrics")
		return nil, nil
	}

	addr := net.JoinHostPort(config.ListenAddr, strconv.Itoa(config.ListenPort))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("prometheus: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		defer trace.CatchPanic("sentinel/servePrometheus")

		log.Infof("serving metrics on %s", config.URL())

		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warningf("metrics server: %s", err)
		}
	}()

	return server, nil
}

func shutdownHTTP(server *http.Server, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Warningf("while shutting down %s server: %s", name, err)
	}
}

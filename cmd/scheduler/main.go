/*
Copyright The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/zapr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	clock "k8s.io/utils/clock"

	"github.com/kubeplace/placement-controller/internal/env"
	"github.com/kubeplace/placement-controller/pkg/binder"
	"github.com/kubeplace/placement-controller/pkg/clusterclient"
	"github.com/kubeplace/placement-controller/pkg/controller"
	"github.com/kubeplace/placement-controller/pkg/metrics"
	"github.com/kubeplace/placement-controller/pkg/rejection"
	"github.com/kubeplace/placement-controller/pkg/trace"
)

type options struct {
	schedulerName       string
	kubeconfig          string
	metricsPort         int
	logLevel            string
	rejectionTimeout    time.Duration
	watchTimeoutSeconds int64
	bindAttempts        uint
	bindDelay           time.Duration
}

func main() {
	opts := parseFlags()

	logger := newZapLogger(opts.logLevel)
	defer logger.Sync() //nolint:errcheck

	log := zapr.NewLogger(logger)

	config, err := loadClientConfig(opts.kubeconfig)
	if err != nil {
		log.Error(err, "failed to load cluster config")
		os.Exit(1)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		log.Error(err, "failed to build clientset")
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	metrics.Register(reg)
	startMetricsServer(opts.metricsPort, reg, log)

	realClock := clock.RealClock{}
	client := clusterclient.New(clientset)
	tracer := trace.NewRecorder(log, realClock)
	rejectionRegistry := rejection.NewRegistry(client, opts.rejectionTimeout, realClock, log)
	b := binder.New(client, opts.bindAttempts, opts.bindDelay, tracer, log)

	c := controller.New(client, rejectionRegistry, tracer, b, realClock, log, controller.Options{
		SchedulerName:       opts.schedulerName,
		WatchTimeoutSeconds: opts.watchTimeoutSeconds,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting placement controller", "scheduler-name", opts.schedulerName)
	if err := c.Run(ctx); err != nil {
		log.Error(err, "controller exited with error")
		os.Exit(1)
	}

	logLatencySummary(tracer, log)
	log.Info("shutdown complete")
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.schedulerName, "scheduler-name", env.WithDefaultString("SCHEDULER_NAME", "my-scheduler"), "Name this controller matches against pod.spec.schedulerName")
	flag.StringVar(&opts.kubeconfig, "kubeconfig", env.WithDefaultString("KUBECONFIG", ""), "Path to kubeconfig; when unset, in-cluster config discovery is used")
	flag.IntVar(&opts.metricsPort, "metrics-port", env.WithDefaultInt("METRICS_PORT", 8080), "Port the optional Prometheus metrics endpoint binds to")
	flag.StringVar(&opts.logLevel, "log-level", env.WithDefaultString("LOG_LEVEL", "info"), "Zap log level: debug, info, warn, error")

	rejectionTimeoutSeconds := flag.Int("rejection-timeout-seconds", env.WithDefaultInt("REJECTION_TIMEOUT_SECONDS", int(rejection.DefaultTimeout.Seconds())), "Cool-down window before a rejected pod is reconsidered")
	watchTimeoutSeconds := flag.Int64("watch-timeout-seconds", int64(env.WithDefaultInt("WATCH_TIMEOUT_SECONDS", 60)), "Per-session watch timeout")
	bindAttempts := flag.Uint("bind-retries", uint(env.WithDefaultInt("BIND_RETRIES", int(binder.DefaultAttempts))), "Total bind attempts before giving up for this event")
	bindDelaySeconds := flag.Int("bind-retry-delay-seconds", env.WithDefaultInt("BIND_RETRY_DELAY_SECONDS", int(binder.DefaultDelay.Seconds())), "Delay between bind retries")

	flag.Parse()

	opts.rejectionTimeout = time.Duration(*rejectionTimeoutSeconds) * time.Second
	opts.watchTimeoutSeconds = *watchTimeoutSeconds
	opts.bindAttempts = *bindAttempts
	opts.bindDelay = time.Duration(*bindDelaySeconds) * time.Second
	return opts
}

func loadClientConfig(kubeconfig string) (*rest.Config, error) {
	if kubeconfig != "" {
		return clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	return rest.InClusterConfig()
}

func newZapLogger(level string) *zap.Logger {
	lvl := zap.NewAtomicLevel()
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl.SetLevel(zap.InfoLevel)
	}
	cfg := zap.Config{
		Level:             lvl,
		Development:       false,
		DisableCaller:     level != "debug",
		DisableStacktrace: true,
		Encoding:          "json",
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:     "message",
			LevelKey:       "level",
			TimeKey:        "time",
			NameKey:        "logger",
			CallerKey:      "caller",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	logger, err := cfg.Build()
	if err != nil {
		// zap.Config.Build only fails on a malformed encoder/output
		// configuration; the literal config above is always valid.
		return zap.NewNop()
	}
	return logger
}

func startMetricsServer(port int, reg *prometheus.Registry, log interface{ Info(string, ...any) }) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Info("metrics server stopped", "error", err.Error())
		}
	}()
	log.Info("metrics endpoint listening", "addr", addr)
}

func logLatencySummary(tracer *trace.Recorder, log interface{ Info(string, ...any) }) {
	p50, p95, mean, n := tracer.LatencySummary()
	if n == 0 {
		return
	}
	log.Info("bind latency summary",
		"samples", n,
		"p50_seconds", p50.Seconds(),
		"p95_seconds", p95.Seconds(),
		"mean_seconds", mean.Seconds(),
	)
}

// Command rwlatch-stress runs a randomized workload against a set of
// latches and reports their spin and park counters.
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/llxisdsh/rwlatch"
	"github.com/llxisdsh/rwlatch/internal/stress"
)

func main() {
	def := stress.DefaultConfig()
	var (
		goroutines = flag.Int("goroutines", def.Goroutines, "number of worker goroutines")
		latches    = flag.Int("latches", def.Latches, "number of latches the workers share")
		ops        = flag.Int("ops", def.Ops, "operations per worker")
		exclusive  = flag.Int("exclusive", def.ExclusivePercent, "percent of plain exclusive holds")
		recursive  = flag.Int("recursive", def.RecursivePercent, "percent of recursive exclusive holds")
		handoff    = flag.Int("handoff", def.HandoffPercent, "percent of ticket hand-offs")
		move       = flag.Int("move", def.MovePercent, "percent of ownership moves")
		spin       = flag.Int("spin", def.SpinRounds, "spin rounds before parking")
		level      = flag.String("diag", "off", "diagnostics level: off, checks or ledger")
		seed       = flag.Uint64("seed", def.Seed, "workload seed")
		timeout    = flag.Duration("timeout", 0, "abort the run after this long; 0 means no limit")
		longWait   = flag.Duration("long-wait", time.Second, "report waits longer than this while running")
		dump       = flag.Bool("dump", false, "print all latches and the sync array after the run")
		metrics    = flag.String("metrics", "", "serve Prometheus metrics on this address, e.g. :9100")
		logLevel   = flag.String("log-level", "info", "log level")
		logFormat  = flag.String("log-format", "console", "log format: console or json")
		logOutput  = flag.String("log-output", "stderr", "log output: stdout, stderr or a file")
	)
	flag.Parse()

	logger, err := newLogger(*logLevel, *logFormat, *logOutput)
	if err != nil {
		fmt.Fprintln(os.Stderr, "rwlatch-stress:", err)
		os.Exit(2)
	}
	defer logger.Sync() //nolint:errcheck

	diag, ok := parseDiag(*level)
	if !ok {
		logger.Fatal("unknown diagnostics level", zap.String("diag", *level))
	}

	cfg := stress.Config{
		Goroutines:       *goroutines,
		Latches:          *latches,
		Ops:              *ops,
		ExclusivePercent: *exclusive,
		RecursivePercent: *recursive,
		HandoffPercent:   *handoff,
		MovePercent:      *move,
		Level:            diag,
		SpinRounds:       *spin,
		Seed:             *seed,
	}
	stats := rwlatch.NewStats()
	runner := stress.NewRunner(cfg, logger, rwlatch.WithStats(stats))

	if *metrics != "" {
		stop := serveMetrics(*metrics, stats, logger)
		defer stop()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if *timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}
	go watchLongWaits(ctx, *longWait)

	logger.Info("starting stress run",
		zap.Int("goroutines", cfg.Goroutines),
		zap.Int("latches", cfg.Latches),
		zap.Int("ops", cfg.Ops),
		zap.Stringer("diag", cfg.Level),
		zap.Int("spin", cfg.SpinRounds),
	)
	res, err := runner.Run(ctx)
	printResult(os.Stdout, res, stats.Snapshot())
	if *dump || err != nil {
		rwlatch.PrintAll(os.Stdout)
		rwlatch.DefaultSyncArray().Print(os.Stdout)
	}
	if err != nil {
		logger.Error("stress run failed", zap.Error(err))
		os.Exit(1)
	}
	runner.Close()
}

func parseDiag(s string) (rwlatch.DiagLevel, bool) {
	for _, d := range []rwlatch.DiagLevel{rwlatch.DiagOff, rwlatch.DiagChecks, rwlatch.DiagLedger} {
		if d.String() == s {
			return d, true
		}
	}
	return 0, false
}

func watchLongWaits(ctx context.Context, threshold time.Duration) {
	if threshold <= 0 {
		return
	}
	t := time.NewTicker(threshold)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			rwlatch.DefaultSyncArray().LongWaits(threshold)
		}
	}
}

func serveMetrics(addr string, stats *rwlatch.Stats, logger *zap.Logger) func() {
	reg := prometheus.NewRegistry()
	reg.MustRegister(rwlatch.NewStatsCollector("rwlatch", stats,
		rwlatch.DefaultRegistry(), rwlatch.DefaultSyncArray()))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		ErrorLog:      zap.NewStdLog(logger),
		ErrorHandling: promhttp.ContinueOnError,
	}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("address", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("metrics server shutdown", zap.Error(err))
		}
	}
}

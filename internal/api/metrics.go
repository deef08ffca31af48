package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	backtestsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "strategy_tester_backtests_started_total",
		Help: "Number of backtest runs started via the API.",
	})
	backtestsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "strategy_tester_backtests_completed_total",
		Help: "Number of backtest runs that completed successfully.",
	})
	backtestsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "strategy_tester_backtests_failed_total",
		Help: "Number of backtest runs that failed or were cancelled.",
	})
	backtestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "strategy_tester_backtest_duration_seconds",
		Help:    "Wall-clock duration of completed backtest runs.",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	})
)

package usecase

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commitConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stock_commit_conflicts_total",
			Help: "Cart lines that failed the commit-time stock check after retries",
		},
	)

	ordersCommitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_committed_total",
			Help: "Orders appended to the order sheet, by final status",
		},
		[]string{"status"},
	)
)

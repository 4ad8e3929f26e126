package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var refreshesTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "catalog_refreshes_total",
		Help: "Number of completed catalog snapshot reloads",
	},
)

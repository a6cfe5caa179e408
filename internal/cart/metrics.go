package cart

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_mutations_total",
			Help: "Cart mutations applied, by operation",
		},
		[]string{"op"},
	)

	persistenceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_persistence_failures_total",
			Help: "Failed slot reads, writes and notifications, by operation",
		},
		[]string{"op"},
	)

	reloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_reloads_total",
			Help: "Reads of the persisted slot into memory, by reason",
		},
		[]string{"reason"},
	)

	storeEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_store_evictions_total",
			Help: "Stores dropped from the registry, by reason",
		},
		[]string{"reason"},
	)

	liveStores = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cart_live_stores",
			Help: "Stores currently held by the registry",
		},
	)
)

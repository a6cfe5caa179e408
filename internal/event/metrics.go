package event

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var notificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cart_notifications_total",
		Help: "Cart change notifications by transport and direction",
	},
	[]string{"transport", "direction"},
)

package middleware

import (
	"net/http"

	"github.com/suivie/storefront/pkg/logger"
)

var discardLogger = logger.Discard

func okHandler(status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})
}

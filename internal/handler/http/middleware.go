package http

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/suivie/storefront/pkg/httputil"
	"github.com/suivie/storefront/pkg/middleware"
)

type contextKey string

const profileKey contextKey = "profile_id"

var profilePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ProfileFromHeader reads the optional X-Profile-ID header into the request
// context. An absent header selects the default profile; a malformed one is
// rejected because it becomes part of a storage key.
func ProfileFromHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		profile := r.Header.Get(middleware.ProfileHeader)
		if profile != "" && !profilePattern.MatchString(profile) {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{
					Code:    "INVALID_INPUT",
					Message: middleware.ProfileHeader + " must be 1-64 letters, digits, '-' or '_'",
				},
			})
			return
		}
		ctx := context.WithValue(r.Context(), profileKey, profile)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func profileFromContext(ctx context.Context) string {
	profile, _ := ctx.Value(profileKey).(string)
	return profile
}

// ContentTypeJSON rejects request bodies that are not declared as JSON.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "UNSUPPORTED_MEDIA_TYPE", Message: "Content-Type must be application/json"},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

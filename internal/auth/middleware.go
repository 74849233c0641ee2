package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/kgellert/hodatay-groupchat/internal/lib/logger/sl"
	"github.com/kgellert/hodatay-groupchat/internal/transport/httpapi"
)

// Middleware authenticates the request with the bearer token, or with the
// "token" query parameter which browsers use for WebSocket upgrades.
// It only reads the token; user rows belong to the identity service.
func Middleware(v *Verifier, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "auth.Middleware"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			id, err := v.Verify(TokenFromRequest(r))
			if err != nil {
				log.Debug("rejected token", sl.Err(err))
				httpapi.WriteError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

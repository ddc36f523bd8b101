package webd

import (
	"bytes"
	"log/slog"
	"net/http"
	"strings"

	ghandlers "github.com/gorilla/handlers"
)

// tokenAuthenticationMiddleware checks the request token against the configured one.
// The token goes in an "Authorization: Bearer" header, or the api_token query param
// for clients that cannot set headers.
// If no token is configured, it allows all requests.
func (s *WebDaemon) tokenAuthenticationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Config.Token == "" || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			token = r.URL.Query().Get("api_token")
		}
		if token != s.Config.Token {
			s.logger.Warn("Invalid token",
				"method", r.Method, "url", r.URL.Path,
				"remote-addr", r.RemoteAddr, "user-agent", r.UserAgent())
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func permissiveCorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Add("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept, Authorization")
		w.Header().Add("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func contentTypeMiddlewareFunc(contentType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", contentType)
			next.ServeHTTP(w, r)
		})
	}
}

// slogWriter hands access log lines to a logger.
type slogWriter struct {
	logger *slog.Logger
}

func (w slogWriter) Write(p []byte) (int, error) {
	w.logger.Info(string(bytes.TrimSpace(p)))
	return len(p), nil
}

// loggingMiddleware logs requests in Apache Combined Log Format.
func (s *WebDaemon) loggingMiddleware(next http.Handler) http.Handler {
	return ghandlers.CombinedLoggingHandler(slogWriter{logger: s.logger.With("log", "access")}, next)
}

package markserve

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/felixge/httpsnoop"
)

// accessLog logs every request once it has been served
func accessLog(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		log.Debug("markserve: served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", m.Code,
			"bytes", m.Written,
			"duration", m.Duration,
		)
	})
}

// NewLogger writes text logs to stderr at the config's level
func NewLogger(config *Config) (*slog.Logger, error) {
	level, err := config.Level()
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

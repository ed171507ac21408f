package http

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"perfumery-notify/internal/handler/http/requestid"
	"perfumery-notify/internal/handler/http/respond"
)

// statusRecorder captures the status code and body size of a response.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func record(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (w *statusRecorder) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.status = code
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Logging logs one line per request with the request and trace ids.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := record(w)

			next.ServeHTTP(rec, r)

			span := trace.SpanFromContext(r.Context())
			logger.Info("request completed",
				slog.String("request_id", requestid.FromContext(r.Context())),
				slog.String("trace_id", span.SpanContext().TraceID().String()),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.Header.Get("User-Agent")),
				slog.Int("status", rec.status),
				slog.Int("bytes", rec.bytes),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// Recover turns a handler panic into a 500 response and an error log.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					respond.SafeError(w, http.StatusInternalServerError, errors.New("internal error"))
					logger.Error("panic recovered",
						slog.String("request_id", requestid.FromContext(r.Context())),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.Any("panic", rec),
						slog.String("stack", string(debug.Stack())),
					)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type requestRecord struct {
	mu         sync.Mutex
	timestamps []time.Time
}

// RateLimiter is a per-client-IP sliding-window limiter for the public
// storefront endpoints.
type RateLimiter struct {
	records   sync.Map // client ip -> *requestRecord
	limit     int
	window    time.Duration
	now       func() time.Time
	cleanMu   sync.Mutex
	lastClean time.Time
}

// NewRateLimiter allows limit requests per window for each client IP.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:     limit,
		window:    window,
		now:       time.Now,
		lastClean: time.Now(),
	}
}

// Limit rejects requests over the limit with 429 and a Retry-After header.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rl.periodicCleanup()

		if !rl.allow(clientIP(r)) {
			w.Header().Set("Retry-After", retryAfter(rl.window))
			respond.SafeError(w, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
			rateLimited.WithLabelValues(r.Method, r.URL.Path).Inc()
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(ip string) bool {
	now := rl.now()

	val, _ := rl.records.LoadOrStore(ip, &requestRecord{})
	rec := val.(*requestRecord)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	cutoff := now.Add(-rl.window)
	kept := rec.timestamps[:0]
	for _, ts := range rec.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	rec.timestamps = kept

	if len(rec.timestamps) >= rl.limit {
		return false
	}
	rec.timestamps = append(rec.timestamps, now)
	return true
}

// periodicCleanup drops idle clients at most every ten minutes.
func (rl *RateLimiter) periodicCleanup() {
	rl.cleanMu.Lock()
	defer rl.cleanMu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastClean) < 10*time.Minute {
		return
	}
	rl.lastClean = now
	cutoff := now.Add(-2 * rl.window)

	rl.records.Range(func(key, value any) bool {
		rec := value.(*requestRecord)
		rec.mu.Lock()
		stale := true
		for _, ts := range rec.timestamps {
			if ts.After(cutoff) {
				stale = false
				break
			}
		}
		rec.mu.Unlock()
		if stale {
			rl.records.Delete(key)
		}
		return true
	})
}

func (rl *RateLimiter) size() int {
	n := 0
	rl.records.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func retryAfter(window time.Duration) string {
	secs := int(window.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// socket address. The api is expected to sit behind the storefront's proxy.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
			return ip.String()
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

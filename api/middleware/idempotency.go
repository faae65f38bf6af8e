package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/radarprecios/radarprecios-backend/api/responses"
	pkgerrors "github.com/radarprecios/radarprecios-backend/pkg/errors"
	"github.com/radarprecios/radarprecios-backend/pkg/logger"
	pkgredis "github.com/radarprecios/radarprecios-backend/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"

	defaultIdempotencyTTL = 24 * time.Hour
	// Field devices queue price submissions while offline and may resend
	// them days later.
	ledgerIdempotencyTTL = 7 * 24 * time.Hour

	jsonBodyLimit = 1 << 20
)

type idempotentRoute struct {
	method  string
	pattern string
	ttl     time.Duration
	// upload routes are bounded by the configured photo limit
	upload bool
}

// Patterns use path.Match syntax.
var idempotentRoutes = []idempotentRoute{
	{http.MethodPost, "/api/prices", ledgerIdempotencyTTL, true},
	{http.MethodPost, "/api/checkins", defaultIdempotencyTTL, false},
	{http.MethodPut, "/api/checkins/checkout", defaultIdempotencyTTL, false},
	{http.MethodPut, "/api/checkins/*/checkout", defaultIdempotencyTTL, false},
	{http.MethodPost, "/api/agendas", defaultIdempotencyTTL, false},
	{http.MethodPost, "/api/agendas/bulk", defaultIdempotencyTTL, false},
	{http.MethodPost, "/api/users", defaultIdempotencyTTL, false},
}

func (rt idempotentRoute) bodyLimit(uploadLimit int64) int64 {
	if rt.upload && uploadLimit > 0 {
		return uploadLimit
	}
	return jsonBodyLimit
}

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	RequestHash string `json:"request_hash"`
}

func (s storedResponse) write(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

// Idempotency replays the stored response of a mutating request that carries
// an Idempotency-Key already seen for the same user and route. Requests
// without the header, or with no store configured, pass through untouched.
// The body is buffered for hashing, so it is capped first: uploadLimit for
// photo routes, 1 MiB for JSON routes.
func Idempotency(store pkgredis.IdempotencyStore, uploadLimit int64, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			route, ok := matchRoute(r.Method, strings.TrimSuffix(r.URL.Path, "/"))
			if key == "" || !ok {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			limit := route.bodyLimit(uploadLimit)
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "request body exceeds the size limit").
						WithDetails(map[string]any{"max_bytes": limit}))
					return
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unable to read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			scope := replayScope(r)
			hash := requestHash(r.Header.Get("Content-Type"), body)

			raw, found, err := store.Replay(ctx, scope, key)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if found {
				var stored storedResponse
				if err := json.Unmarshal([]byte(raw), &stored); err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
					return
				}
				if stored.RequestHash != hash {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
					return
				}
				if logg != nil {
					logg.Info(logg.WithField(ctx, "idempotency_key", key), "idempotency.replayed")
				}
				stored.write(w)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			// server faults stay retryable under the same key
			status := capture.statusCode()
			if status >= http.StatusInternalServerError {
				return
			}

			payload, err := json.Marshal(storedResponse{
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
				RequestHash: hash,
			})
			if err == nil {
				_, err = store.Remember(ctx, scope, key, string(payload), route.ttl)
			}
			if err != nil && logg != nil {
				logg.Error(logg.WithField(ctx, "idempotency_key", key), "idempotency.persist_failed", err)
			}
		})
	}
}

func replayScope(r *http.Request) string {
	return strconv.FormatInt(UserIDFromContext(r.Context()), 10) + ":" + r.Method + ":" + r.URL.Path
}

// requestHash fingerprints the body. Multipart boundaries are random per
// request, so they are blanked before hashing a resent upload.
func requestHash(contentType string, body []byte) string {
	if mediaType, params, err := mime.ParseMediaType(contentType); err == nil && strings.HasPrefix(mediaType, "multipart/") {
		if boundary := params["boundary"]; boundary != "" {
			body = bytes.ReplaceAll(body, []byte(boundary), nil)
		}
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func matchRoute(method, urlPath string) (idempotentRoute, bool) {
	for _, route := range idempotentRoutes {
		if route.method != method {
			continue
		}
		if matched, _ := path.Match(route.pattern, urlPath); matched {
			return route, true
		}
	}
	return idempotentRoute{}, false
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

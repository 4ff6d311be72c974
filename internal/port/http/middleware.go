package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/domain/entity"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/metrics"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/service"
)

type ContextKey string

const (
	IdentityCtxKey = ContextKey("identity")
	SessionCtxKey  = ContextKey("session")

	SessionHeader = "X-Session-ID"
)

// Claims is the token payload issued by the user service.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

var errMissingUserID = errors.New("user_id claim is empty")

func parseToken(tokenString, secret string) (entity.Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return entity.Identity{}, err
	}
	if !token.Valid {
		return entity.Identity{}, jwt.ErrTokenInvalidClaims
	}
	if claims.UserID == "" {
		return entity.Identity{}, errMissingUserID
	}
	return entity.Identity{UserID: claims.UserID, Email: claims.Email}, nil
}

// Authenticate attaches the caller identity to the request context. Requests
// without a bearer token continue as guests; a malformed or invalid token is rejected.
func Authenticate(secret string, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := entity.Guest()

			header := r.Header.Get("Authorization")
			if header != "" {
				parts := strings.Fields(header)
				if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
					writeError(w, http.StatusUnauthorized, "authorization header format must be 'Bearer <token>'")
					return
				}
				if secret == "" {
					log.Warn("Bearer token received but no JWT secret is configured")
					writeError(w, http.StatusUnauthorized, "authentication is not configured")
					return
				}
				parsed, err := parseToken(parts[1], secret)
				if err != nil {
					log.Debugf("Rejected token: %v", err)
					if errors.Is(err, jwt.ErrTokenExpired) {
						writeError(w, http.StatusUnauthorized, "token has expired")
						return
					}
					writeError(w, http.StatusUnauthorized, "token is invalid")
					return
				}
				identity = parsed
			}

			ctx := context.WithValue(r.Context(), IdentityCtxKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func IdentityFrom(ctx context.Context) entity.Identity {
	identity, _ := ctx.Value(IdentityCtxKey).(entity.Identity)
	return identity
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IdentityFrom(r.Context()).IsAuthenticated() {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithSession binds the request to the session named by the X-Session-ID header,
// creating one when the header is missing or invalid, and echoes the ID back.
func WithSession(sessions *service.SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, release := sessions.Acquire(r.Context(), r.Header.Get(SessionHeader), IdentityFrom(r.Context()))
			defer release()
			w.Header().Set(SessionHeader, sess.ID)
			ctx := context.WithValue(r.Context(), SessionCtxKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func SessionFrom(ctx context.Context) *service.Session {
	sess, _ := ctx.Value(SessionCtxKey).(*service.Session)
	return sess
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// RequestLogger logs one line per request and records HTTP metrics.
func RequestLogger(log logger.Logger, m *metrics.MetricsManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routePattern(r)
			m.ObserveHTTP(r.Method, route, status, started)
			log.Infof("%s %s -> %d (%d bytes, %s) request_id=%s",
				r.Method, r.URL.Path, status, ww.BytesWritten(), time.Since(started), chimw.GetReqID(r.Context()))
		})
	}
}

// RateLimiter keeps a token bucket per client address.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rateEntry
	rps      rate.Limit
	burst    int
	idleTTL  time.Duration
}

type rateEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*rateEntry),
		rps:      rate.Limit(rps),
		burst:    burst,
		idleTTL:  10 * time.Minute,
	}
}

func (l *RateLimiter) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.limiters) > 10000 {
		for k, e := range l.limiters {
			if now.Sub(e.lastSeen) > l.idleTTL {
				delete(l.limiters, k)
			}
		}
	}
	e, ok := l.limiters[key]
	if !ok {
		e = &rateEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.rps <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		if !l.get(clientKey(r), time.Now()).Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

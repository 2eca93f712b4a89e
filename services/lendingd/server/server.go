package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	nativecommon "moneymarket/native/common"
	"moneymarket/observability"
	"moneymarket/services/lendingd/config"
	"moneymarket/services/lendingd/engine"
)

const (
	requestLimit          = 1 << 16
	defaultRequestTimeout = 10 * time.Second
	defaultEventsLimit    = 100
)

// Options tunes the HTTP surface.
type Options struct {
	Auth           config.AuthConfig
	RateLimit      config.RateLimitConfig
	Quota          nativecommon.Quota
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// Server exposes the lending engine over HTTP.
type Server struct {
	engine  engine.Engine
	auth    *authenticator
	limiter *rateLimiter
	quota   *quotaTracker
	timeout time.Duration
	logger  *slog.Logger
	handler http.Handler
}

// New constructs the HTTP server around eng.
func New(eng engine.Engine, opts Options) (*Server, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine must not be nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	s := &Server{
		engine:  eng,
		auth:    newAuthenticator(opts.Auth),
		limiter: newRateLimiter(opts.RateLimit),
		quota:   newQuotaTracker(opts.Quota),
		timeout: timeout,
		logger:  logger,
	}
	s.handler = otelhttp.NewHandler(s.routes(), "lendingd")
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(s.requestID)
	r.Use(s.observe)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.limiter.middleware)
		r.Get("/markets", s.listMarkets)
		r.Get("/markets/{market}", s.getMarket)
		r.Get("/accounts/{account}/liquidity", s.getLiquidity)
		r.Get("/accounts/{account}/markets/{market}", s.getPosition)
		r.Get("/events", s.recentEvents)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.middleware)
			r.Post("/markets/{market}/mint", s.mint)
			r.Post("/markets/{market}/redeem", s.redeem)
			r.Post("/markets/{market}/redeem-underlying", s.redeemUnderlying)
			r.Post("/markets/{market}/borrow", s.borrow)
			r.Post("/markets/{market}/repay", s.repay)
			r.Post("/markets/{market}/liquidate", s.liquidate)
			r.Post("/markets/{market}/transfer", s.transfer)
			r.Post("/markets/{market}/approve", s.approve)
			r.Post("/accounts/{account}/enter", s.enterMarkets)
			r.Post("/accounts/{account}/exit", s.exitMarket)
		})
	})
	return r
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		route := routePattern(r)
		duration := time.Since(start)
		observability.API().Observe(route, r.Method, recorder.status, duration)
		s.logger.Debug("http request",
			slog.String("request_id", w.Header().Get("X-Request-Id")),
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("status", recorder.status),
			slog.Duration("duration", duration))
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

func (s *Server) context(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.timeout)
}

func decodeBody(r *http.Request, out any) error {
	if r.Body == nil {
		return errors.New("missing request body")
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(io.LimitReader(r.Body, requestLimit))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// charge applies the account quota. value is priced through the engine only
// when a value cap is configured.
func (s *Server) charge(ctx context.Context, account, market, amount string) error {
	if !s.quota.limits.Enabled() {
		return nil
	}
	var value uint64
	if s.quota.limits.MaxValuePerEpoch > 0 && market != "" && amount != "" {
		priced, err := s.engine.Value(ctx, market, amount)
		if err != nil {
			return err
		}
		value = priced
	}
	return s.quota.charge(account, value)
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request, err error) {
	if status := statusFor(err); status == http.StatusTooManyRequests {
		observability.API().RecordThrottle(routePattern(r), "quota")
	} else if status == http.StatusInternalServerError {
		s.logger.Error("lending request failed",
			slog.String("request_id", w.Header().Get("X-Request-Id")),
			slog.String("route", routePattern(r)),
			slog.Any("error", err))
	}
	writeEngineError(w, err)
}

func (s *Server) listMarkets(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.context(r.Context())
	defer cancel()
	markets, err := s.engine.ListMarkets(ctx)
	if err != nil {
		s.reject(w, r, err)
		return
	}
	if markets == nil {
		markets = []engine.Market{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"markets": markets})
}

func (s *Server) getMarket(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.context(r.Context())
	defer cancel()
	market, err := s.engine.GetMarket(ctx, chi.URLParam(r, "market"))
	if err != nil {
		s.reject(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, market)
}

func (s *Server) getLiquidity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.context(r.Context())
	defer cancel()
	liquidity, err := s.engine.GetLiquidity(ctx, chi.URLParam(r, "account"))
	if err != nil {
		s.reject(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, liquidity)
}

func (s *Server) getPosition(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.context(r.Context())
	defer cancel()
	position, err := s.engine.GetPosition(ctx, chi.URLParam(r, "account"), chi.URLParam(r, "market"))
	if err != nil {
		s.reject(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, position)
}

func (s *Server) recentEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	ctx, cancel := s.context(r.Context())
	defer cancel()
	recent, err := s.engine.RecentEvents(ctx, limit)
	if err != nil {
		s.reject(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": recent})
}

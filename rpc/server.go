package rpc

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"bondchain/core"
	"bondchain/crypto"
	"bondchain/native/bond"
	"bondchain/observability"
)

const maxRequestBytes = 1 << 16

// Service is the bond surface exposed over HTTP.
type Service interface {
	Height() uint64
	Markets(ctx context.Context) ([]string, error)
	Market(ctx context.Context, marketID string) (*core.MarketView, error)
	Position(ctx context.Context, marketID string, owner crypto.Address) (*core.PositionView, error)
	NextNonce(ctx context.Context, account crypto.Address) (uint64, error)
	PayoutFor(ctx context.Context, marketID string, value *big.Int) (*big.Int, error)
	Deposit(ctx context.Context, marketID string, depositor crypto.Address, amount, maxPrice *big.Int) (*bond.DepositResult, error)
	Redeem(ctx context.Context, marketID string, depositor crypto.Address) (*bond.RedeemResult, error)
	SetBondTerms(ctx context.Context, marketID string, caller crypto.Address, param bond.TermsParameter, value *big.Int) error
	SetAdjustment(ctx context.Context, marketID string, caller crypto.Address, add bool, rate, target *big.Int, buffer uint64) error
	ResetSubsidyCounter(ctx context.Context, marketID string, caller crypto.Address) (*big.Int, error)
	SetFeeTreasury(ctx context.Context, marketID string, caller, feeTreasury crypto.Address) error
}

// Config controls the HTTP listener.
type Config struct {
	Address string
	// RateLimit is the sustained number of mutating requests per second
	// allowed for one client. Zero disables limiting.
	RateLimit   float64
	Burst       int
	ReadTimeout time.Duration
	Auth        AuthConfig
}

type Server struct {
	svc     Service
	cfg     Config
	logger  *slog.Logger
	limiter *rateLimiter
	auth    *authenticator
	now     func() time.Time
	metrics interface {
		Observe(route, method string, status int, duration time.Duration)
		RecordThrottle(route, reason string)
	}

	serverMu   sync.Mutex
	httpServer *http.Server
}

// NewServer constructs an HTTP server over svc.
func NewServer(svc Service, cfg Config, logger *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, errors.New("rpc: service required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	auth, err := newAuthenticator(cfg.Auth)
	if err != nil {
		return nil, err
	}
	return &Server{
		svc:     svc,
		cfg:     cfg,
		logger:  logger,
		limiter: newRateLimiter(cfg.RateLimit, cfg.Burst),
		auth:    auth,
		now:     time.Now,
		metrics: observability.API(),
	}, nil
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)

	r.Get("/healthz", s.observe("healthz", s.handleHealth))
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/markets", s.observe("markets", s.handleMarkets))
	r.Get("/accounts/{addr}/nonce", s.observe("nonce", s.handleNonce))

	r.Route("/markets/{id}", func(mr chi.Router) {
		mr.Get("/", s.observe("market", s.handleMarket))
		mr.Get("/payout", s.observe("payout", s.handlePayout))
		mr.Get("/positions/{addr}", s.observe("position", s.handlePosition))

		mr.Group(func(wr chi.Router) {
			wr.Use(s.rateLimit)
			wr.Post("/deposit", s.observe("deposit", s.handleDeposit))
			wr.Post("/redeem", s.observe("redeem", s.handleRedeem))
		})

		mr.Group(func(ar chi.Router) {
			ar.Use(s.rateLimit)
			ar.Use(s.auth.middleware(operatorScope))
			ar.Post("/terms", s.observe("terms", s.handleTerms))
			ar.Post("/adjustment", s.observe("adjustment", s.handleAdjustment))
			ar.Post("/subsidy/reset", s.observe("subsidy_reset", s.handleSubsidyReset))
			ar.Post("/fee-treasury", s.observe("fee_treasury", s.handleFeeTreasury))
		})
	})

	return otelhttp.NewHandler(r, "bondd.api")
}

// Serve accepts connections on listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	readTimeout := s.cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       readTimeout,
		WriteTimeout:      readTimeout,
		IdleTimeout:       60 * time.Second,
	}
	s.serverMu.Lock()
	s.httpServer = srv
	s.serverMu.Unlock()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(listener) }()
	s.logger.Info("bond API listening", slog.String("address", listener.Addr().String()))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// ListenAndServe binds the configured address and serves until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := strings.TrimSpace(s.cfg.Address)
	if addr == "" {
		addr = ":8080"
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

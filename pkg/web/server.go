package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ulule/limiter/v3"
	mhttp "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/liut/parley/pkg/services/chat"
	"github.com/liut/parley/pkg/services/stores"
)

type Service interface {
	Serve(ctx context.Context) error
	Stop(ctx context.Context) error
}

type Config struct {
	Addr  string
	Debug bool

	// RateLimit like "30-S" or "1000-H", empty for no limit
	RateLimit string
	// AllowOrigins of websocket clients, empty or "*" for all
	AllowOrigins []string

	Session *chat.Session
	Bus     *chat.Bus
	// Store is cleared on logout
	Store stores.SessionStore
	// OnLogout is called after the session is closed
	OnLogout func()

	DocHandler http.Handler
}

type server struct {
	Addr string
	cfg  Config

	sess  *chat.Session
	bus   *chat.Bus
	store stores.SessionStore

	ar *chi.Mux     // app router
	hs *http.Server // http server
}

// New return new web server
func New(cfg Config) Service {
	return newServer(cfg)
}

func newServer(cfg Config) *server {
	ar := chi.NewMux()
	if cfg.Debug {
		ar.Use(middleware.Logger)
	}
	ar.Use(middleware.Recoverer, middleware.RealIP)

	s := &server{
		Addr: cfg.Addr, ar: ar,
		cfg:   cfg,
		sess:  cfg.Session,
		bus:   cfg.Bus,
		store: cfg.Store,
	}
	if s.bus == nil {
		s.bus = chat.NewBus()
	}
	s.strapRouter()

	s.hs = &http.Server{
		Addr:              s.Addr,
		Handler:           s.ar,
		ReadHeaderTimeout: time.Second * 10,
	}

	if cfg.Debug {
		logger().Infow("routes:")
		walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
			route = strings.Replace(route, "/*/", "/", -1)
			fmt.Fprintf(os.Stderr, "DEBUG: %-6s %-32s --> %s (%d mw)\n", method, route, nameOfFunction(handler), len(middlewares))
			return nil
		}

		if err := chi.Walk(ar, walkFunc); err != nil {
			logger().Infow("router walk fail", "err", err)
		}
	}
	return s
}

// rateLimiter returns nil when formatted is empty or invalid
func rateLimiter(formatted string) func(http.Handler) http.Handler {
	if len(formatted) == 0 {
		return nil
	}
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		logger().Infow("invalid rate limit, disabled", "formatted", formatted, "err", err)
		return nil
	}
	mw := mhttp.NewMiddleware(limiter.New(memory.NewStore(), rate))
	return mw.Handler
}

func (s *server) Serve(ctx context.Context) error {
	// Run HTTP server
	runErrChan := make(chan error, 1)
	t := time.AfterFunc(time.Millisecond*200, func() {
		runErrChan <- s.hs.ListenAndServe()
	})

	defer t.Stop()
	logger().Infow("Listen on", "addr", s.hs.Addr)

	// Wait
	select {
	case runErr := <-runErrChan:
		if runErr != nil && !errors.Is(runErr, http.ErrServerClosed) {
			logger().Infow("run http server failed",
				"err", runErr,
			)
			return runErr
		}
		return nil
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		_ = s.Stop(sctx)
		logger().Infow("http server has been stopped")
		return ctx.Err()
	}
}

func (s *server) Stop(ctx context.Context) error {
	if err := s.hs.Shutdown(ctx); err != nil {
		logger().Infow("Server Shutdown", "err", err)
		return err
	}
	return nil
}

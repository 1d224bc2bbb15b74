// Package devserver serves the output directory during development and pushes rebuild events to
// connected browsers.
package devserver

import (
	"context"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/aidarkhanov/nanoid"
	"github.com/gorilla/mux"
	"github.com/rotisserie/eris"
	"github.com/unrolled/secure"

	"github.com/ngld/assetpipe/pkg/logging"
)

const shutdownTimeout = 5 * time.Second

// Server serves Dir with live reload support
type Server struct {
	// Addr is the listen address, e.g. localhost:3000
	Addr string
	// Dir is the directory to serve
	Dir string
	Hub *Hub
}

// New returns a server with a fresh hub
func New(addr, dir string) *Server {
	return &Server{Addr: addr, Dir: dir, Hub: NewHub()}
}

func requestLogger(base context.Context) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			reqID, err := nanoid.Generate(nanoid.DefaultAlphabet, 12)
			if err != nil {
				reqID = nanoid.New()
			}

			logger := logging.Log(base).With().Str("req", reqID).Logger()
			ctx := logging.WithLogger(r.Context(), &logger)

			logger.Debug().Msgf("%s %s", r.Method, r.URL.Path)
			next.ServeHTTP(rw, r.WithContext(ctx))
		})
	}
}

// Handler returns the router. base provides the logger used for requests.
func (s *Server) Handler(base context.Context) http.Handler {
	r := mux.NewRouter()
	r.Use(requestLogger(base))

	r.Handle(EventsPath, s.Hub).Methods(http.MethodGet)
	r.HandleFunc(ScriptPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write([]byte(ClientScript))
	}).Methods(http.MethodGet)

	r.PathPrefix("/").Handler(InjectLiveReload(http.FileServer(http.Dir(filepath.Clean(s.Dir)))))

	sm := secure.New(secure.Options{
		IsDevelopment:      true,
		BrowserXssFilter:   true,
		ContentTypeNosniff: true,
		FrameDeny:          true,
	})

	return sm.Handler(r)
}

// Serve handles requests on ln until ctx is cancelled, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:     s.Handler(ctx),
		ReadTimeout: 15 * time.Second,
		// event streams stay open indefinitely
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		errs <- server.Serve(ln)
	}()

	logging.Log(ctx).Info().Msgf("Serving %s on http://%s", s.Dir, ln.Addr())

	select {
	case err := <-errs:
		s.Hub.Shutdown()
		return eris.Wrap(err, "dev server failed")
	case <-ctx.Done():
	}

	s.Hub.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "failed to shut down dev server")
	}

	logging.Log(ctx).Info().Msg("Dev server stopped")
	return nil
}

// Run listens on Addr and serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return eris.Wrapf(err, "failed to listen on %s", s.Addr)
	}

	return s.Serve(ctx, ln)
}

package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/standardbeagle/idgrep/internal/config"
	idebug "github.com/standardbeagle/idgrep/internal/debug"
	"github.com/standardbeagle/idgrep/internal/errors"
	"github.com/standardbeagle/idgrep/internal/invocation"
	"github.com/standardbeagle/idgrep/internal/pathinfo"
	"github.com/standardbeagle/idgrep/internal/session"
	"github.com/standardbeagle/idgrep/internal/version"
)

// maxRequestBody bounds JSON request bodies
const maxRequestBody = 1 << 20

// UnixPrefix selects a Unix socket listener, as in "unix:/tmp/idgrep.sock"
const UnixPrefix = "unix:"

// SearchServer serves searches over HTTP. Each request gets its own
// session; nothing about a search outlives its request.
type SearchServer struct {
	cfg     *config.Config
	limiter *rate.Limiter

	listener     net.Listener
	server       *http.Server
	startTime    time.Time
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
	mu           sync.RWMutex
	running      bool

	configPath  string // watched for hot reload when set
	stopWatcher context.CancelFunc
	onReload    []func(*config.Config)

	mounts map[string]http.Handler
}

// NewSearchServer creates a server for cfg. It does not listen until Start.
func NewSearchServer(cfg *config.Config) *SearchServer {
	return &SearchServer{
		cfg:          cfg,
		limiter:      newLimiter(cfg.Server),
		startTime:    time.Now(),
		shutdownChan: make(chan struct{}),
	}
}

func newLimiter(sc config.Server) *rate.Limiter {
	if sc.RateLimit <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(sc.RateLimit), sc.Burst)
}

// SetConfigPath enables hot reload of the given config file or directory.
// It must be called before Start.
func (s *SearchServer) SetConfigPath(path string) {
	s.configPath = path
}

// Mount serves h under pattern alongside the search endpoints. It must be
// called before Start.
func (s *SearchServer) Mount(pattern string, h http.Handler) {
	if s.mounts == nil {
		s.mounts = make(map[string]http.Handler)
	}
	s.mounts[pattern] = h
}

// OnReload registers fn to receive every configuration applied by
// UpdateConfig
func (s *SearchServer) OnReload(fn func(*config.Config)) {
	s.mu.Lock()
	s.onReload = append(s.onReload, fn)
	s.mu.Unlock()
}

// Config returns the active configuration
func (s *SearchServer) Config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// UpdateConfig swaps in a new configuration. Searches already running
// keep the configuration they started with.
func (s *SearchServer) UpdateConfig(cfg *config.Config) {
	s.mu.Lock()
	old := s.cfg
	s.cfg = cfg
	hooks := slices.Clone(s.onReload)
	s.mu.Unlock()

	if cfg.Server.RateLimit <= 0 {
		s.limiter.SetLimit(rate.Inf)
	} else {
		s.limiter.SetLimit(rate.Limit(cfg.Server.RateLimit))
		s.limiter.SetBurst(cfg.Server.Burst)
	}
	if old != nil && old.Server.Listen != cfg.Server.Listen {
		idebug.LogServer("listen address change to %s takes effect on restart", cfg.Server.Listen)
	}
	for _, fn := range hooks {
		fn(cfg)
	}
	idebug.LogServer("configuration reloaded from %s", cfg.Source)
}

// Start begins listening for client connections
func (s *SearchServer) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	listen := s.cfg.Server.Listen
	s.mu.Unlock()

	listener, err := listenOn(listen)
	if err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			idebug.LogServer("Server error: %v", err)
		}
	}()

	if s.configPath != "" {
		ctx, cancel := context.WithCancel(context.Background())
		s.stopWatcher = cancel
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := config.Watch(ctx, s.configPath, s.UpdateConfig); err != nil {
				idebug.LogServer("config watch on %s stopped: %v", s.configPath, err)
			}
		}()
	}

	idebug.LogServer("Search server started on %s (pid: %d)", s.Addr(), os.Getpid())
	return nil
}

func listenOn(listen string) (net.Listener, error) {
	if socketPath, ok := strings.CutPrefix(listen, UnixPrefix); ok {
		// Remove a stale socket left by a previous run
		os.Remove(socketPath)
		l, err := net.Listen("unix", socketPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create socket: %w", err)
		}
		os.Chmod(socketPath, 0o600)
		return l, nil
	}
	l, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", listen, err)
	}
	return l, nil
}

// Addr returns the listen address in the form accepted by NewClient
func (s *SearchServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	if s.listener.Addr().Network() == "unix" {
		return UnixPrefix + s.listener.Addr().String()
	}
	return s.listener.Addr().String()
}

// Handler returns the routed handler with recovery and admission control
func (s *SearchServer) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerHandlers(mux)
	return s.recoverPanics(mux)
}

// registerHandlers sets up the HTTP endpoints
func (s *SearchServer) registerHandlers(mux *http.ServeMux) {
	mux.Handle("POST /search", s.limited(s.handleSearch))
	mux.Handle("POST /search/stream", s.limited(s.handleStream))
	mux.Handle("POST /search/preview", s.limited(s.handlePreview))
	mux.Handle("POST /search/pathinfo", s.limited(s.handlePathInfo))
	mux.HandleFunc("GET /ping", s.handlePing)
	mux.HandleFunc("POST /ping", s.handlePing)
	mux.HandleFunc("POST /shutdown", s.handleShutdown)
	for pattern, h := range s.mounts {
		mux.Handle(pattern, h)
	}
}

// recoverPanics turns a handler panic into a 500 instead of a dropped
// connection
func (s *SearchServer) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				idebug.LogServer("PANIC RECOVERED in %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
				writeError(w, http.StatusInternalServerError, fmt.Sprintf("internal error handling %s: %v", r.URL.Path, rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// limited rejects requests beyond the configured admission rate
func (s *SearchServer) limited(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		h(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}

// writeFailure maps a typed error onto its HTTP status
func writeFailure(w http.ResponseWriter, err error) {
	writeError(w, errors.StatusCode(err), err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

// newSession validates the request body and returns a ready session, or
// writes the error response and returns nil
func (s *SearchServer) newSession(w http.ResponseWriter, r *http.Request) *session.Session {
	var req SearchRequest
	if !decodeBody(w, r, &req) {
		return nil
	}
	sess, err := session.New(s.Config(), &req)
	if err != nil {
		writeFailure(w, err)
		return nil
	}
	w.Header().Set(HeaderFingerprint, sess.Invocation().FingerprintHex())
	w.Header().Set(HeaderSessionID, sess.ID)
	return sess
}

// handleSearch runs a search to completion and returns it in one body
func (s *SearchServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	sess := s.newSession(w, r)
	if sess == nil {
		return
	}
	out, err := sess.Collect(r.Context())
	if err != nil {
		if stderrors.Is(err, session.ErrCancelled) {
			idebug.LogServer("search %s cancelled by client", sess.ID)
			return
		}
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleStream relays session events as NDJSON, one flushed line each
func (s *SearchServer) handleStream(w http.ResponseWriter, r *http.Request) {
	sess := s.newSession(w, r)
	if sess == nil {
		return
	}

	rc := http.NewResponseController(w)
	enc := json.NewEncoder(w)
	wroteHeader := false
	sink := session.SinkFunc(func(ev session.Event) error {
		if !wroteHeader {
			w.Header().Set("Content-Type", contentTypeNDJSON)
			w.Header().Set("Cache-Control", "no-cache")
			w.WriteHeader(http.StatusOK)
			wroteHeader = true
		}
		if err := enc.Encode(ev); err != nil {
			return err
		}
		return rc.Flush()
	})

	err := sess.Stream(r.Context(), sink)
	switch {
	case err == nil:
	case stderrors.Is(err, session.ErrCancelled):
		idebug.LogServer("stream %s cancelled by client", sess.ID)
	case !wroteHeader:
		// Failed before the preview, so the status can still carry it
		writeFailure(w, err)
	default:
		// Mid-stream failure: the missing done event tells the client
		idebug.LogServer("stream %s failed: %v", sess.ID, err)
	}
}

// handlePreview builds the command without running it
func (s *SearchServer) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	inv, err := invocation.NewBuilder(s.Config()).Build(&req)
	if err != nil {
		writeFailure(w, err)
		return
	}
	w.Header().Set(HeaderFingerprint, inv.FingerprintHex())
	writeJSON(w, http.StatusOK, PreviewResponse{
		CommandExecuted: invocation.Render(inv),
		Variations:      inv.Variations,
	})
}

// handlePathInfo reports the size of a search target
func (s *SearchServer) handlePathInfo(w http.ResponseWriter, r *http.Request) {
	var req PathInfoRequest
	if !decodeBody(w, r, &req) {
		return
	}
	opts := pathinfo.OptionsFromConfig(s.Config())
	opts.Include = req.Include
	opts.Exclude = req.Exclude
	opts.RespectGitignore = req.RespectGitignore

	info, err := pathinfo.Stat(req.SearchPath, opts)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handlePing responds to health check requests
func (s *SearchServer) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PingResponse{
		Status:  "ok",
		Uptime:  time.Since(s.startTime).Seconds(),
		Version: version.Version,
		BuildID: version.BuildID(),
	})
}

// handleShutdown acknowledges and then releases Wait
func (s *SearchServer) handleShutdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ShutdownResponse{
		Success: true,
		Message: "Server shutting down",
	})

	// Trigger shutdown after response is sent
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.signalShutdown()
	}()
}

func (s *SearchServer) signalShutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdownChan) })
}

// Done is closed once a client has requested shutdown
func (s *SearchServer) Done() <-chan struct{} {
	return s.shutdownChan
}

// Wait blocks until a client requests shutdown
func (s *SearchServer) Wait() {
	<-s.shutdownChan
}

// Shutdown stops accepting requests and waits for in-flight ones. Streams
// still running when ctx expires are cut off, which kills their engines.
func (s *SearchServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	if s.stopWatcher != nil {
		s.stopWatcher()
	}

	var shutdownErr error
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			s.server.Close()
		}
	}

	s.wg.Wait()
	s.signalShutdown()

	if s.listener != nil && s.listener.Addr().Network() == "unix" {
		os.Remove(s.listener.Addr().String())
	}

	idebug.LogServer("Search server shut down cleanly")
	return shutdownErr
}

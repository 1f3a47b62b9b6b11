// Package server exposes the pipeline over HTTP.
//
// A run is posted once as Newick or JSON and addressed by its run hash
// afterwards. Layouts, single trees, interpolated frames and distances are
// computed on demand through the same cached [pipeline.Runner] the CLI uses,
// so a Redis-backed runner lets several instances share one another's work.
//
//	GET  /api/stats                     hook counters, when enabled
//	POST /api/runs                      body: trees; ?input_format=&leaf_order=
//	GET  /api/runs/{run}                summary and Newick of every tree
//	GET  /api/runs/{run}/distances      consecutive transitions
//	GET  /api/runs/{run}/layouts        every layout
//	GET  /api/runs/{run}/layouts/{i}    one layout
//	GET  /api/runs/{run}/trees/{i}      one tree; ?format=svg|png|json|dot|graphviz|pdf
//	GET  /api/runs/{run}/frame          ?from=&to=&t=&direction=&format=
//
// Layout and style options are query parameters on every GET: width,
// height, margin, transform, uniform, stroke_width, font_size, background,
// highlight.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/matzehuels/phylomorph/pkg/buildinfo"
	"github.com/matzehuels/phylomorph/pkg/cache"
	perrors "github.com/matzehuels/phylomorph/pkg/errors"
	"github.com/matzehuels/phylomorph/pkg/observability"
	"github.com/matzehuels/phylomorph/pkg/pipeline"
	"github.com/matzehuels/phylomorph/pkg/tree"
)

// MaxBodySize bounds posted runs.
const MaxBodySize = 16 << 20

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// Server serves runs through a pipeline runner.
type Server struct {
	runner *pipeline.Runner
	base   pipeline.Options
	logger *log.Logger

	stats *observability.Counters

	mu   sync.RWMutex
	runs map[string][]*tree.Node
}

// Option configures a [Server].
type Option func(*Server)

// WithStats serves c at GET /api/stats. The caller installs c as the
// process's hooks.
func WithStats(c *observability.Counters) Option {
	return func(s *Server) { s.stats = c }
}

// New returns a server. base holds the defaults every request starts from.
func New(runner *pipeline.Runner, base pipeline.Options, logger *log.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		runner: runner,
		base:   base,
		logger: logger,
		runs:   make(map[string][]*tree.Node),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, buildinfo.Current())
	})
	if s.stats != nil {
		r.Get("/api/stats", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, s.stats.Snapshot())
		})
	}

	r.Post("/api/runs", s.createRun)
	r.Route("/api/runs/{run}", func(r chi.Router) {
		r.Use(s.withRun)
		r.Get("/", s.getRun)
		r.Get("/distances", s.getDistances)
		r.Get("/layouts", s.getLayouts)
		r.Get("/layouts/{index}", s.getLayout)
		r.Get("/trees/{index}", s.getTree)
		r.Get("/frame", s.getFrame)
	})
	return r
}

// =============================================================================
// Middleware
// =============================================================================

type ctxKey int

const (
	loggerKey ctxKey = iota
	runKey
)

// requestID tags every request with an ID, taken from the client when it
// sends one.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), loggerKey, s.logger.With("req", id[:8]))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// observe reports requests to the server hooks and logs them.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		hooks := observability.Server()
		hooks.OnRequest(r.Context(), r.Method, r.URL.Path)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		hooks.OnResponse(r.Context(), r.Method, r.URL.Path, status, elapsed)
		loggerFrom(r.Context()).Debug("request", "method", r.Method, "path", r.URL.Path, "status", status, "bytes", ww.BytesWritten(), "took", elapsed.Round(time.Microsecond))
	})
}

// withRun resolves {run} and stores the trees in the context.
func (s *Server) withRun(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trees, err := s.run(r.Context(), chi.URLParam(r, "run"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), runKey, trees)))
	})
}

func loggerFrom(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}

func treesFrom(ctx context.Context) []*tree.Node {
	trees, _ := ctx.Value(runKey).([]*tree.Node)
	return trees
}

// =============================================================================
// Run Registry
// =============================================================================

func runCacheKey(id string) string { return "run:" + id }

// register keeps trees in memory and in the runner's cache so other
// instances sharing the cache can serve the run.
func (s *Server) register(ctx context.Context, id string, trees []*tree.Node) {
	s.mu.Lock()
	s.runs[id] = trees
	s.mu.Unlock()

	data, err := tree.EncodeJSON(trees)
	if err != nil {
		loggerFrom(ctx).Warn("encode run", "run", id, "err", err)
		return
	}
	if err := s.runner.Cache.Set(ctx, runCacheKey(id), data, cache.TTLTrees); err != nil {
		loggerFrom(ctx).Warn("cache run", "run", id, "err", err)
	}
}

// run looks up a run in memory, then in the cache.
func (s *Server) run(ctx context.Context, id string) ([]*tree.Node, error) {
	s.mu.RLock()
	trees, ok := s.runs[id]
	s.mu.RUnlock()
	if ok {
		return trees, nil
	}

	data, ok, err := s.runner.Cache.Get(ctx, runCacheKey(id))
	if err != nil {
		loggerFrom(ctx).Warn("cache lookup", "run", id, "err", err)
	}
	if !ok {
		return nil, perrors.New(perrors.ErrCodeNotFound, "run %s not found", id)
	}
	trees, err = pipeline.Parse(data, tree.FormatJSON, nil)
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeInternal, err, "decode cached run %s", id)
	}
	s.mu.Lock()
	s.runs[id] = trees
	s.mu.Unlock()
	return trees, nil
}

// =============================================================================
// Handlers
// =============================================================================

// RunSummary describes a stored run.
type RunSummary struct {
	ID        string   `json:"id"`
	Trees     int      `json:"trees"`
	Leaves    int      `json:"leaves"`
	LeafNames []string `json:"leaf_names"`
	Newick    []string `json:"newick,omitempty"`
}

func summarize(id string, trees []*tree.Node, withNewick bool) RunSummary {
	sum := RunSummary{ID: id, Trees: len(trees), Leaves: len(trees[0].Leaves()), LeafNames: trees[0].LeafNames()}
	if withNewick {
		for _, t := range trees {
			sum.Newick = append(sum.Newick, tree.EncodeNewick(t))
		}
	}
	return sum
}

func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodySize))
	if err != nil {
		writeError(w, r, perrors.Wrap(perrors.ErrCodeInvalidInput, err, "read body"))
		return
	}
	q := r.URL.Query()
	opts := pipeline.Options{
		Data:      data,
		Format:    q.Get("input_format"),
		LeafOrder: splitList(q.Get("leaf_order")),
		Logger:    loggerFrom(r.Context()),
	}
	trees, _, err := s.runner.Load(r.Context(), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id := pipeline.RunHash(trees)
	s.register(r.Context(), id, trees)
	loggerFrom(r.Context()).Info("run stored", "run", id[:12], "trees", len(trees))

	w.Header().Set("Location", "/api/runs/"+id)
	writeJSON(w, http.StatusCreated, summarize(id, trees, false))
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, summarize(chi.URLParam(r, "run"), treesFrom(r.Context()), true))
}

func (s *Server) getDistances(w http.ResponseWriter, r *http.Request) {
	opts, err := s.options(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	transitions, err := s.runner.Transitions(r.Context(), treesFrom(r.Context()), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if transitions == nil {
		transitions = []pipeline.Transition{}
	}
	writeJSON(w, http.StatusOK, transitions)
}

func (s *Server) getLayouts(w http.ResponseWriter, r *http.Request) {
	opts, err := s.options(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	layouts, hit, err := s.runner.Layouts(r.Context(), treesFrom(r.Context()), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	setCacheHeader(w, hit)
	writeJSON(w, http.StatusOK, layouts)
}

func (s *Server) getLayout(w http.ResponseWriter, r *http.Request) {
	opts, err := s.options(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	i, err := intParam(chi.URLParam(r, "index"), "index")
	if err != nil {
		writeError(w, r, err)
		return
	}
	l, hit, err := s.runner.Layout(r.Context(), treesFrom(r.Context()), i, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	setCacheHeader(w, hit)
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) getTree(w http.ResponseWriter, r *http.Request) {
	opts, err := s.options(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	i, err := intParam(chi.URLParam(r, "index"), "index")
	if err != nil {
		writeError(w, r, err)
		return
	}
	artifacts, hit, err := s.runner.RenderTreeWithCacheInfo(r.Context(), treesFrom(r.Context()), i, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	setCacheHeader(w, hit)
	writeArtifact(w, opts.Formats[0], artifacts[opts.Formats[0]])
}

func (s *Server) getFrame(w http.ResponseWriter, r *http.Request) {
	opts, err := s.options(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	from, to, t := 0, 1, 0.0
	if v := q.Get("from"); v != "" {
		if from, err = intParam(v, "from"); err != nil {
			writeError(w, r, err)
			return
		}
		to = from + 1
	}
	if v := q.Get("to"); v != "" {
		if to, err = intParam(v, "to"); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if v := q.Get("t"); v != "" {
		if t, err = floatParam(v, "t"); err != nil {
			writeError(w, r, err)
			return
		}
	}
	artifacts, err := s.runner.RenderFrame(r.Context(), treesFrom(r.Context()), from, to, t, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeArtifact(w, opts.Formats[0], artifacts[opts.Formats[0]])
}

// =============================================================================
// Responses
// =============================================================================

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := perrors.HTTPStatus(err)
	if status >= 500 {
		loggerFrom(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, ErrorResponse{
		Error:     perrors.UserMessage(err),
		Code:      string(perrors.GetCode(err)),
		RequestID: w.Header().Get(RequestIDHeader),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("encode response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeArtifact(w http.ResponseWriter, format string, data []byte) {
	w.Header().Set("Content-Type", contentType(format))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(data)
}

func setCacheHeader(w http.ResponseWriter, hit bool) {
	if hit {
		w.Header().Set("X-Cache", "hit")
	} else {
		w.Header().Set("X-Cache", "miss")
	}
}

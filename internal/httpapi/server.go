// Package httpapi exposes learner sessions over HTTP: one SCORM session and
// course-data cache per learner, plus the debug event feed.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-scorm/internal/course"
	"github.com/p-n-ai/pai-scorm/internal/coursedata"
	"github.com/p-n-ai/pai-scorm/internal/debug"
	"github.com/p-n-ai/pai-scorm/internal/localstore"
	"github.com/p-n-ai/pai-scorm/internal/scorm"
)

const defaultLearner = "anonymous"

// validID limits course and learner ids to characters that are safe in store
// namespaces, key patterns and download file names.
var validID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// RuntimeFactory returns the LMS runtime for a learner in a course. A nil
// Runtime means no LMS is available.
type RuntimeFactory func(courseID, learnerID string) scorm.Runtime

// Deps are the collaborators a Server is built from.
type Deps struct {
	Courses          *course.Loader
	Stores           localstore.Factory
	Runtimes         RuntimeFactory
	Sink             *debug.Sink
	Logger           *slog.Logger
	PreferredVersion scorm.Version
	SCORMDebug       bool
	Debounce         time.Duration
	Now              func() time.Time
}

// Server owns the live learner sessions.
type Server struct {
	deps Deps

	mu       sync.RWMutex
	sessions map[string]*learnerSession
}

type learnerSession struct {
	id        string
	courseID  string
	learnerID string
	namespace string
	course    course.Course
	created   time.Time

	store   localstore.Store
	session *scorm.Session
	cache   *coursedata.Cache
}

// New creates a server with no sessions.
func New(deps Deps) *Server {
	if deps.Courses == nil {
		deps.Courses, _ = course.NewLoader("")
	}
	if deps.Stores == nil {
		mem := localstore.NewMemoryStore()
		deps.Stores = func(ns string) localstore.Store { return mem.Namespace(ns) }
	}
	if deps.Runtimes == nil {
		deps.Runtimes = func(string, string) scorm.Runtime { return nil }
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Server{
		deps:     deps,
		sessions: make(map[string]*learnerSession),
	}
}

// errUnknownSession is returned for session ids not in the registry.
var errUnknownSession = errors.New("unknown session")

// errUnknownInteraction is returned for interaction indexes the course does
// not define.
var errUnknownInteraction = errors.New("unknown interaction")

// errUnknownCourse is returned when a session is opened for a course that
// is not loaded.
var errUnknownCourse = errors.New("unknown course")

// Open starts a learner session and returns its id. The fallback store is
// read, the LMS connect is attempted once and the course data is restored.
func (s *Server) Open(ctx context.Context, courseID, learnerID string) (string, error) {
	ls, err := s.open(ctx, courseID, learnerID)
	if err != nil {
		return "", err
	}
	return ls.id, nil
}

func (s *Server) open(ctx context.Context, courseID, learnerID string) (*learnerSession, error) {
	if learnerID == "" {
		learnerID = defaultLearner
	}
	if !validID.MatchString(courseID) {
		return nil, badRequest("course_id %q must match %s", courseID, validID)
	}
	if !validID.MatchString(learnerID) {
		return nil, badRequest("learner_id %q must match %s", learnerID, validID)
	}
	c, ok := s.deps.Courses.GetCourse(courseID)
	if !ok {
		return nil, fmt.Errorf("%w %q", errUnknownCourse, courseID)
	}

	preferred := c.PreferredVersion()
	if preferred == "" {
		preferred = s.deps.PreferredVersion
	}

	ls := &learnerSession{
		id:        uuid.NewString(),
		courseID:  courseID,
		learnerID: learnerID,
		namespace: courseID + ":" + learnerID,
		course:    c,
		created:   s.deps.Now(),
	}
	ls.store = s.deps.Stores(ls.namespace)
	ls.session = scorm.NewSession(scorm.Options{
		Runtime:          s.deps.Runtimes(courseID, learnerID),
		Store:            ls.store,
		Sink:             s.deps.Sink,
		PreferredVersion: preferred,
		Debug:            s.deps.SCORMDebug,
		Interactions:     c.Interactions(),
		Now:              s.deps.Now,
	})
	ls.cache = coursedata.New(coursedata.Config{
		Session:  ls.session,
		Store:    ls.store,
		Sink:     s.deps.Sink,
		Debounce: s.deps.Debounce,
		Now:      s.deps.Now,
	})

	if err := ls.session.Hydrate(ctx); err != nil {
		return nil, fmt.Errorf("hydrating session: %w", err)
	}
	if _, err := ls.session.Connect(); err != nil {
		return nil, fmt.Errorf("connecting session: %w", err)
	}
	if ids := c.ObjectiveIDs(); len(ids) > 0 && ls.session.Connected() {
		if err := ls.session.InitObjectives(ids...); err != nil {
			return nil, fmt.Errorf("initializing objectives: %w", err)
		}
	}
	if err := ls.cache.Restore(ctx); err != nil {
		// A failed restore leaves the cache empty and the session usable.
		s.deps.Logger.Warn("course data restore failed",
			"session_id", ls.id,
			"course_id", courseID,
			"error", err,
		)
	}

	s.mu.Lock()
	s.sessions[ls.id] = ls
	s.mu.Unlock()

	s.deps.Logger.Info("learner session opened",
		"session_id", ls.id,
		"course_id", courseID,
		"learner_id", learnerID,
		"connected", ls.session.Connected(),
	)
	return ls, nil
}

func (s *Server) lookup(id string) (*learnerSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ls, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w %q", errUnknownSession, id)
	}
	return ls, nil
}

// Close flushes pending course data, terminates the LMS session and drops
// transient fallback keys.
func (s *Server) Close(ctx context.Context, id string) error {
	s.mu.Lock()
	ls, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w %q", errUnknownSession, id)
	}
	return ls.close(ctx)
}

func (ls *learnerSession) close(ctx context.Context) error {
	defer ls.cache.Close()

	var errs []error
	if err := ls.cache.Flush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flushing course data: %w", err))
	}
	if err := ls.session.Terminate(); err != nil {
		errs = append(errs, fmt.Errorf("terminating session: %w", err))
	}
	if err := ls.store.Clear(ctx, localstore.ScopeSession); err != nil {
		errs = append(errs, fmt.Errorf("clearing session keys: %w", err))
	}
	return errors.Join(errs...)
}

// SessionIDs returns the open session ids, sorted.
func (s *Server) SessionIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Shutdown closes every open session.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	for _, id := range s.SessionIDs() {
		if err := s.Close(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sessions", s.handleOpen)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGet)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleClose)

	mux.HandleFunc("GET /api/sessions/{id}/data", s.handleGetData)
	mux.HandleFunc("POST /api/sessions/{id}/data", s.handleSetMany)
	mux.HandleFunc("GET /api/sessions/{id}/data/{key}", s.handleGetValue)
	mux.HandleFunc("PUT /api/sessions/{id}/data/{key}", s.handleSetValue)
	mux.HandleFunc("POST /api/sessions/{id}/persist", s.handlePersist)
	mux.HandleFunc("POST /api/sessions/{id}/restore", s.handleRestore)
	mux.HandleFunc("POST /api/sessions/{id}/reset", s.handleReset)

	mux.HandleFunc("PUT /api/sessions/{id}/location", s.handleSetLocation)
	mux.HandleFunc("PUT /api/sessions/{id}/score", s.handleSetScore)
	mux.HandleFunc("POST /api/sessions/{id}/complete", s.handleComplete)
	mux.HandleFunc("PUT /api/sessions/{id}/objectives/{index}", s.handleObjective)
	mux.HandleFunc("POST /api/sessions/{id}/interactions/{index}/response", s.handleResponse)
	mux.HandleFunc("POST /api/sessions/{id}/interactions/{index}/record", s.handleRecord)
	mux.HandleFunc("GET /api/sessions/{id}/report.xlsx", s.handleReport)

	mux.HandleFunc("GET /api/debug/events", s.handleDebugEvents)
	mux.HandleFunc("DELETE /api/debug/events", s.handleDebugClear)
	mux.HandleFunc("GET /api/debug/stream", s.handleDebugStream)
	return mux
}

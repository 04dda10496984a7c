package scorm

import (
	"maps"
	"sync"
)

// Call is one operation recorded by MemoryRuntime.
type Call struct {
	Op    string
	Path  string
	Value string
}

// MemoryRuntime is an in-process LMS. Set values are buffered until Commit,
// every call is recorded, and failures can be injected, which makes it both
// the preview host's LMS and a test double. The zero value is usable and
// negotiates no version; NewMemoryRuntime sets one.
type MemoryRuntime struct {
	// FailInit makes Initialize report failure.
	FailInit bool

	mu          sync.Mutex
	version     Version
	configured  Version
	debug       bool
	initialized bool
	terminated  bool
	committed   map[string]string
	pending     map[string]string
	calls       []Call
	commits     int
	getErrs     map[string]error
	setErrs     map[string]error
}

// NewMemoryRuntime creates a runtime that negotiates version on Initialize.
func NewMemoryRuntime(version Version) *MemoryRuntime {
	return &MemoryRuntime{
		version:   version,
		committed: make(map[string]string),
		pending:   make(map[string]string),
		getErrs:   make(map[string]error),
		setErrs:   make(map[string]error),
	}
}

func (m *MemoryRuntime) Configure(version Version, debug bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configured = version
	m.debug = debug
	m.calls = append(m.calls, Call{Op: "configure", Value: string(version)})
}

func (m *MemoryRuntime) Initialize() InitResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Op: "initialize"})
	if m.FailInit {
		return InitResult{}
	}
	m.initialized = true
	m.terminated = false
	return InitResult{Success: true, Version: string(m.version)}
}

func (m *MemoryRuntime) Get(path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Op: "get", Path: path})
	if err := m.getErrs[path]; err != nil {
		return "", err
	}
	if v, ok := m.pending[path]; ok {
		return v, nil
	}
	return m.committed[path], nil
}

func (m *MemoryRuntime) Set(path, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Op: "set", Path: path, Value: value})
	if err := m.setErrs[path]; err != nil {
		return err
	}
	m.initLocked()
	m.pending[path] = value
	return nil
}

func (m *MemoryRuntime) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Op: "commit"})
	m.flushLocked()
	return nil
}

func (m *MemoryRuntime) Terminate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Op: "terminate"})
	m.flushLocked()
	m.terminated = true
	m.initialized = false
	return nil
}

func (m *MemoryRuntime) flushLocked() {
	m.initLocked()
	maps.Copy(m.committed, m.pending)
	clear(m.pending)
	m.commits++
}

// initLocked allocates the maps of a zero-value runtime.
func (m *MemoryRuntime) initLocked() {
	if m.committed == nil {
		m.committed = make(map[string]string)
		m.pending = make(map[string]string)
		m.getErrs = make(map[string]error)
		m.setErrs = make(map[string]error)
	}
}

// Seed stores a committed value, as if left by an earlier attempt.
func (m *MemoryRuntime) Seed(path, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initLocked()
	m.committed[path] = value
}

// FailGet makes Get on path return err.
func (m *MemoryRuntime) FailGet(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initLocked()
	m.getErrs[path] = err
}

// FailSet makes Set on path return err.
func (m *MemoryRuntime) FailSet(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initLocked()
	m.setErrs[path] = err
}

// Value returns a committed value.
func (m *MemoryRuntime) Value(path string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.committed[path]
	return v, ok
}

// Committed returns a copy of all committed values.
func (m *MemoryRuntime) Committed() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.committed)
}

// Commits counts Commit and Terminate flushes.
func (m *MemoryRuntime) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

// Calls returns the recorded calls in order.
func (m *MemoryRuntime) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call{}, m.calls...)
}

// ResetCalls forgets recorded calls and the commit count.
func (m *MemoryRuntime) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.commits = 0
}

// Configured reports the version and debug flag passed to Configure.
func (m *MemoryRuntime) Configured() (Version, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.configured, m.debug
}

// Terminated reports whether Terminate has been called since Initialize.
func (m *MemoryRuntime) Terminated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.terminated
}

// MemoryLMS hands out one MemoryRuntime per learner so progress survives
// between sessions of the same learner.
type MemoryLMS struct {
	mu       sync.Mutex
	version  Version
	runtimes map[string]*MemoryRuntime
}

// NewMemoryLMS creates an LMS whose runtimes negotiate version.
func NewMemoryLMS(version Version) *MemoryLMS {
	return &MemoryLMS{
		version:  version,
		runtimes: make(map[string]*MemoryRuntime),
	}
}

// Runtime returns the runtime for learner, creating it on first use.
func (l *MemoryLMS) Runtime(learner string) *MemoryRuntime {
	l.mu.Lock()
	defer l.mu.Unlock()
	rt, ok := l.runtimes[learner]
	if !ok {
		rt = NewMemoryRuntime(l.version)
		l.runtimes[learner] = rt
	}
	return rt
}

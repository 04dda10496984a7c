// Package scorm manages the connection to a SCORM 1.2/2004 runtime: the
// session lifecycle, version-specific data-model paths, suspend-data
// encoding and the local fallback used when no LMS is present.
package scorm

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"

	"github.com/p-n-ai/pai-scorm/internal/debug"
	"github.com/p-n-ai/pai-scorm/internal/localstore"
)

const timestampLayout = "2006-01-02T15:04:05"

// State is a session lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Options configures a Session.
type Options struct {
	Runtime          Runtime
	Store            localstore.Store
	Keys             localstore.Keys
	Sink             *debug.Sink
	PreferredVersion Version
	Debug            bool
	Interactions     []Interaction
	Now              func() time.Time
}

// Session is the connection to one learner's LMS runtime. It is safe for
// concurrent use; runtime calls are serialised.
type Session struct {
	mu sync.Mutex

	rt        Runtime
	store     localstore.Store
	keys      localstore.Keys
	sink      *debug.Sink
	preferred Version
	debug     bool
	now       func() time.Time

	state        State
	version      Version
	attempts     int
	attempted    bool
	initResult   InitResult
	suspendData  string
	location     int
	interactions []Interaction
}

// NewSession creates a disconnected session. A nil Runtime means no LMS is
// present; a nil Store falls back to process memory.
func NewSession(opts Options) *Session {
	rt := opts.Runtime
	if rt == nil {
		rt = UnavailableRuntime{}
	}
	store := opts.Store
	if store == nil {
		store = localstore.NewMemoryStore()
	}
	keys := opts.Keys
	if keys == (localstore.Keys{}) {
		keys = localstore.DefaultKeys()
	}
	preferred := opts.PreferredVersion
	if preferred == "" {
		preferred = Version2004
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Session{
		rt:           rt,
		store:        store,
		keys:         keys,
		sink:         opts.Sink,
		preferred:    preferred,
		debug:        opts.Debug,
		now:          now,
		interactions: cloneInteractions(opts.Interactions),
	}
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	State        string        `json:"state"`
	Version      Version       `json:"version"`
	Connected    bool          `json:"connected"`
	Attempts     int           `json:"attempts"`
	InitResult   InitResult    `json:"init_result"`
	Location     int           `json:"location"`
	SuspendData  string        `json:"suspend_data"`
	Interactions []Interaction `json:"interactions"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:        s.state.String(),
		Version:      s.version,
		Connected:    s.state == StateConnected,
		Attempts:     s.attempts,
		InitResult:   s.initResult,
		Location:     s.location,
		SuspendData:  s.suspendData,
		Interactions: cloneInteractions(s.interactions),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateConnected
}

// Version returns the negotiated version, or "" before a successful connect.
func (s *Session) Version() Version {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Attempts counts connect attempts, successful or not.
func (s *Session) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Connect configures and initialises the runtime. A failed initialise leaves
// the session disconnected and is not an error; runtime errors while warming
// the read-through cache are returned as-is.
func (s *Session) Connect() (InitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked()
}

func (s *Session) connectLocked() (InitResult, error) {
	switch s.state {
	case StateConnected:
		s.sink.Info(debug.SourceScorm, "SCORM already connected", nil)
		return s.initResult, nil
	case StateTerminated:
		s.sink.Warn(debug.SourceScorm, "SCORM session already terminated", nil)
		return s.initResult, nil
	}

	s.state = StateConnecting
	s.rt.Configure(s.preferred, s.debug)
	res := s.rt.Initialize()
	s.attempts++
	s.attempted = true
	s.initResult = res

	if !res.Success {
		s.state = StateDisconnected
		s.sink.Warn(debug.SourceScorm, "SCORM initialize failed, using local fallback", map[string]any{
			"attempt": s.attempts,
		})
		return res, nil
	}

	version, ok := ParseVersion(res.Version)
	if !ok {
		version = s.preferred
	}
	s.version = version
	s.state = StateConnected
	s.sink.Info(debug.SourceScorm, "SCORM connected", map[string]any{
		"version": string(version),
		"attempt": s.attempts,
	})

	p := pathsFor(version)
	loc, err := s.rt.Get(p.location)
	if err != nil {
		return res, err
	}
	s.location = parseLocation(loc)

	suspend, err := s.rt.Get(p.suspendData)
	if err != nil {
		return res, err
	}
	s.suspendData = suspend

	// Some LMSs resume with "not attempted"; never leave a resumed course
	// reading as finished or untouched.
	status, err := s.rt.Get(p.status)
	if err != nil {
		return res, err
	}
	switch strings.ToLower(status) {
	case "completed", "passed":
	default:
		if err := s.rt.Set(p.status, "incomplete"); err != nil {
			return res, err
		}
		s.sink.Info(debug.SourceScorm, "Marked course incomplete", map[string]any{
			"previous_status": status,
		})
	}

	return res, nil
}

// reconnectIfNeeded performs the single lazy connect a session is allowed.
// Once any attempt has been made, failed writes do not retry.
func (s *Session) reconnectIfNeeded() error {
	if s.attempted || s.state == StateConnected {
		return nil
	}
	s.sink.Info(debug.SourceScorm, "SCORM not connected, connecting", nil)
	_, err := s.connectLocked()
	return err
}

// Hydrate loads the bookmark and suspend-data mirror from the fallback store.
func (s *Session) Hydrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bookmark, ok, err := s.store.Get(ctx, s.keys.Bookmark)
	if err != nil {
		return fmt.Errorf("read bookmark: %w", err)
	}
	if ok {
		s.location = parseLocation(bookmark)
	}

	suspend, ok, err := s.store.Get(ctx, s.keys.SuspendData)
	if err != nil {
		return fmt.Errorf("read suspend data mirror: %w", err)
	}
	if ok {
		s.suspendData = suspend
	}

	s.sink.Info(debug.SourceScorm, "Hydrated from local store", map[string]any{
		"location":            s.location,
		"suspend_data_length": len(s.suspendData),
	})
	return nil
}

// Location returns the bookmark from the LMS, or from the fallback store
// when disconnected. Missing or malformed bookmarks read as 0.
func (s *Session) Location(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateConnected {
		v, err := s.rt.Get(pathsFor(s.version).location)
		if err != nil {
			return 0, err
		}
		return parseLocation(v), nil
	}

	v, ok, err := s.store.Get(ctx, s.keys.Bookmark)
	if err != nil {
		return 0, fmt.Errorf("read bookmark: %w", err)
	}
	if !ok {
		return 0, nil
	}
	return parseLocation(v), nil
}

// SetLocation stores the bookmark in the LMS, or in the fallback store when
// disconnected.
func (s *Session) SetLocation(ctx context.Context, location int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reconnectIfNeeded(); err != nil {
		return err
	}

	s.location = location
	value := strconv.Itoa(location)

	if s.state != StateConnected {
		if err := s.store.Set(ctx, s.keys.Bookmark, value); err != nil {
			return fmt.Errorf("write bookmark: %w", err)
		}
		s.sink.Warn(debug.SourceScorm, "SCORM not connected, bookmark stored locally", map[string]any{
			"location": location,
		})
		return nil
	}

	if err := s.rt.Set(pathsFor(s.version).location, value); err != nil {
		return err
	}
	if err := s.rt.Commit(); err != nil {
		return err
	}
	s.sink.Info(debug.SourceScorm, "Location set", map[string]any{"location": location})
	return nil
}

// SuspendData reads suspend_data from the LMS. ok is false when disconnected.
func (s *Session) SuspendData() (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnected {
		s.sink.Warn(debug.SourceScorm, "SCORM not connected, no suspend data", nil)
		return "", false, nil
	}
	v, err := s.rt.Get(pathsFor(s.version).suspendData)
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// SuspendMirror returns the last encoded suspend data seen or written.
func (s *Session) SuspendMirror() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suspendData
}

// SetSuspendData encodes v and writes it to the LMS, or to the fallback
// store when disconnected. Under SCORM 1.2 an encoded value longer than
// 4096 characters fails with *LimitExceededError and nothing is written.
func (s *Session) SetSuspendData(ctx context.Context, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reconnectIfNeeded(); err != nil {
		return err
	}

	encoded, err := Encode(v)
	if err != nil {
		return err
	}
	if err := CheckSuspendLimit(s.version, encoded); err != nil {
		s.sink.Error(debug.SourceScorm, "Suspend data exceeds SCORM 1.2 limit", map[string]any{
			"length": len([]rune(encoded)),
		})
		return err
	}

	if s.state == StateConnected {
		if err := s.rt.Set(pathsFor(s.version).suspendData, encoded); err != nil {
			return err
		}
		if err := s.rt.Commit(); err != nil {
			return err
		}
		s.sink.Info(debug.SourceScorm, "Suspend data written", map[string]any{"length": len(encoded)})
	} else {
		if err := s.store.Set(ctx, s.keys.SuspendData, encoded); err != nil {
			return fmt.Errorf("write suspend data mirror: %w", err)
		}
		s.sink.Warn(debug.SourceScorm, "SCORM not connected, suspend data stored locally", map[string]any{
			"length": len(encoded),
		})
	}

	s.suspendData = encoded
	return nil
}

// Score returns the raw score. ok is false when disconnected, unset or not
// a number.
func (s *Session) Score() (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnected {
		s.sink.Warn(debug.SourceScorm, "SCORM not connected, cannot get score", nil)
		return 0, false, nil
	}
	raw, err := s.rt.Get(pathsFor(s.version).scoreRaw)
	if err != nil {
		return 0, false, err
	}
	if raw == "" {
		s.sink.Warn(debug.SourceScorm, "No score found in SCORM data", nil)
		return 0, false, nil
	}
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		s.sink.Warn(debug.SourceScorm, "SCORM score is not a number", map[string]any{"raw": raw})
		return 0, false, nil
	}
	return score, true, nil
}

// SetScore writes the raw score on a 0–100 scale.
func (s *Session) SetScore(score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reconnectIfNeeded(); err != nil {
		return err
	}
	if s.state != StateConnected {
		s.sink.Warn(debug.SourceScorm, "SCORM not connected, score not sent", map[string]any{"score": score})
		return nil
	}

	p := pathsFor(s.version)
	if err := s.setAll(
		p.scoreMin, "0",
		p.scoreMax, "100",
		p.scoreRaw, formatNumber(score),
	); err != nil {
		return err
	}
	if err := s.rt.Commit(); err != nil {
		return err
	}
	s.sink.Info(debug.SourceScorm, "Score set", map[string]any{"score": score})
	return nil
}

// SetComplete marks the course completed.
func (s *Session) SetComplete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reconnectIfNeeded(); err != nil {
		return err
	}
	if s.state != StateConnected {
		s.sink.Warn(debug.SourceScorm, "SCORM not connected, completion not sent", nil)
		return nil
	}

	if err := s.rt.Set(pathsFor(s.version).status, "completed"); err != nil {
		return err
	}
	if err := s.rt.Commit(); err != nil {
		return err
	}
	s.sink.Info(debug.SourceScorm, "Course marked completed", nil)
	return nil
}

// LearnerName returns the learner's name. ok is false when disconnected.
func (s *Session) LearnerName() (string, bool, error) {
	return s.getLearnerField("learner name", func(p fieldPaths) string { return p.learnerName })
}

// LearnerID returns the learner's id. ok is false when disconnected.
func (s *Session) LearnerID() (string, bool, error) {
	return s.getLearnerField("learner id", func(p fieldPaths) string { return p.learnerID })
}

// LearnerLanguage returns the learner's preferred language. ok is false when
// disconnected, unset or not a valid BCP 47 tag.
func (s *Session) LearnerLanguage() (language.Tag, bool, error) {
	raw, ok, err := s.getLearnerField("learner language", func(p fieldPaths) string { return p.learnerLanguage })
	if err != nil || !ok || raw == "" {
		return language.Und, false, err
	}
	tag, err := language.Parse(raw)
	if err != nil {
		s.sink.Warn(debug.SourceLang, "Learner language is not a valid tag", map[string]any{"raw": raw})
		return language.Und, false, nil
	}
	s.sink.Info(debug.SourceLang, "Learner language resolved", map[string]any{"language": tag.String()})
	return tag, true, nil
}

func (s *Session) getLearnerField(name string, path func(fieldPaths) string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnected {
		s.sink.Warn(debug.SourceScorm, "SCORM not connected, cannot get "+name, nil)
		return "", false, nil
	}
	v, err := s.rt.Get(path(pathsFor(s.version)))
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// InitObjectives writes objective ids at indexes 0..n-1.
func (s *Session) InitObjectives(ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reconnectIfNeeded(); err != nil {
		return err
	}
	if s.state != StateConnected {
		s.sink.Warn(debug.SourceScorm, "SCORM not connected, cannot initialize objectives", nil)
		return nil
	}

	for i, id := range ids {
		if err := s.rt.Set(objectivePath(i, "id"), id); err != nil {
			return err
		}
	}
	if err := s.rt.Commit(); err != nil {
		return err
	}
	s.sink.Info(debug.SourceScorm, "SCORM objectives initialized", map[string]any{"count": len(ids)})
	return nil
}

// SetObjectiveID writes a single objective id.
func (s *Session) SetObjectiveID(index int, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reconnectIfNeeded(); err != nil {
		return err
	}
	if s.state != StateConnected {
		s.sink.Warn(debug.SourceScorm, "SCORM not connected, cannot set objective id", nil)
		return nil
	}

	if err := s.rt.Set(objectivePath(index, "id"), id); err != nil {
		return err
	}
	if err := s.rt.Commit(); err != nil {
		return err
	}
	s.sink.Info(debug.SourceScorm, "Objective id set", map[string]any{"index": index, "id": id})
	return nil
}

// SetObjectiveScore writes an objective's raw score.
func (s *Session) SetObjectiveScore(index int, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reconnectIfNeeded(); err != nil {
		return err
	}
	if s.state != StateConnected {
		s.sink.Warn(debug.SourceScorm, "SCORM not connected, cannot set objective score", nil)
		return nil
	}

	if err := s.rt.Set(objectivePath(index, "score.raw"), formatNumber(score)); err != nil {
		return err
	}
	if err := s.rt.Commit(); err != nil {
		return err
	}
	s.sink.Info(debug.SourceScorm, "Objective score set", map[string]any{"index": index, "score": score})
	return nil
}

// SetObjectiveProgress writes progress (percent) as a 0–1 measure. SCORM 1.2
// has no progress measure, so the write is skipped there.
func (s *Session) SetObjectiveProgress(index int, percent float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reconnectIfNeeded(); err != nil {
		return err
	}
	if s.state != StateConnected {
		s.sink.Warn(debug.SourceScorm, "SCORM not connected, cannot set objective progress", nil)
		return nil
	}
	if !pathsFor(s.version).objectiveProgress {
		s.sink.Warn(debug.SourceScorm, "Objective progress not supported by SCORM "+string(s.version), map[string]any{
			"index": index,
		})
		return nil
	}

	value := strconv.FormatFloat(percent/100, 'f', 2, 64)
	if err := s.rt.Set(objectivePath(index, "progress_measure"), value); err != nil {
		return err
	}
	if err := s.rt.Commit(); err != nil {
		return err
	}
	s.sink.Info(debug.SourceScorm, "Objective progress set", map[string]any{"index": index, "progress": value})
	return nil
}

// Interactions returns a copy of the tracked interactions.
func (s *Session) Interactions() []Interaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneInteractions(s.interactions)
}

// SetResponse captures a learner response for the interaction at index and
// grades it against the expected answer. Nothing is sent to the LMS.
func (s *Session) SetResponse(index int, response string) (Interaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.interactions) {
		return Interaction{}, false
	}
	it := &s.interactions[index]
	it.LearnerResponse = response
	it.WasCorrect = CorrectnessOf(response == it.CorrectAnswer)

	s.sink.Info(debug.SourceScorm, "Interaction response captured", map[string]any{
		"interaction": it.ID,
		"correct":     it.WasCorrect.String(),
	})
	return cloneInteractions([]Interaction{*it})[0], true
}

// RecordTracked sends the tracked interaction at index to the LMS.
func (s *Session) RecordTracked(index int) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.interactions) {
		s.mu.Unlock()
		return fmt.Errorf("no interaction at index %d", index)
	}
	it := s.interactions[index]
	s.mu.Unlock()

	return s.RecordInteraction(it)
}

// RecordInteraction sends one interaction to the LMS and commits once.
// Interactions are best effort: when disconnected the call is logged and
// skipped, and nothing is queued for later.
func (s *Session) RecordInteraction(in Interaction) error {
	index, err := strconv.Atoi(in.ID)
	if err != nil || index < 0 {
		return fmt.Errorf("interaction id %q is not a SCORM interaction index", in.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reconnectIfNeeded(); err != nil {
		return err
	}
	if s.state != StateConnected {
		s.sink.Warn(debug.SourceScorm, "SCORM not connected, skipping interaction log", map[string]any{
			"interaction": in.ID,
		})
		return nil
	}

	p := pathsFor(s.version)
	fields := []string{
		interactionPath(index, "id"), in.QuestionRef,
		interactionPath(index, "type"), in.QuestionType,
	}
	if p.interactionDescription && in.QuestionText != "" {
		fields = append(fields, interactionPath(index, "description"), in.QuestionText)
	}
	fields = append(fields, interactionPath(index, p.interactionResponse), in.LearnerResponse)
	if p.interactionTimestamp {
		fields = append(fields, interactionPath(index, "timestamp"), s.now().UTC().Format(timestampLayout))
	}
	fields = append(fields,
		interactionPath(index, "correct_responses.0.pattern"), in.CorrectAnswer,
		interactionPath(index, "result"), in.WasCorrect.result(p),
		interactionPath(index, "objectives.0.id"), in.ObjectiveID,
	)

	if err := s.setAll(fields...); err != nil {
		return err
	}
	if err := s.rt.Commit(); err != nil {
		return err
	}
	s.sink.Info(debug.SourceScorm, "Interaction sent to LMS", map[string]any{
		"interaction": in.ID,
		"fields":      len(fields) / 2,
	})
	return nil
}

// Terminate closes the runtime. A session that never tried to connect
// attempts once first so the LMS sees a cleanly closed attempt.
func (s *Session) Terminate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateTerminated {
		s.sink.Info(debug.SourceScorm, "SCORM session already terminated", nil)
		return nil
	}
	if err := s.reconnectIfNeeded(); err != nil {
		return err
	}

	wasConnected := s.state == StateConnected
	s.state = StateTerminated
	if !wasConnected {
		s.sink.Warn(debug.SourceScorm, "SCORM not connected, nothing to terminate", nil)
		return nil
	}
	if err := s.rt.Terminate(); err != nil {
		return err
	}
	s.sink.Info(debug.SourceScorm, "SCORM terminated", nil)
	return nil
}

// setAll sets path/value pairs in order, stopping at the first error.
func (s *Session) setAll(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if err := s.rt.Set(pairs[i], pairs[i+1]); err != nil {
			return err
		}
	}
	return nil
}

func parseLocation(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return n
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

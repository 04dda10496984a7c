package scorm_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/language"

	"github.com/p-n-ai/pai-scorm/internal/debug"
	"github.com/p-n-ai/pai-scorm/internal/localstore"
	"github.com/p-n-ai/pai-scorm/internal/scorm"
)

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 589000000, time.UTC)

func newSession(t *testing.T, rt scorm.Runtime) (*scorm.Session, *localstore.MemoryStore, *debug.Sink) {
	t.Helper()
	store := localstore.NewMemoryStore()
	sink := debug.New(true, 100, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s := scorm.NewSession(scorm.Options{
		Runtime: rt,
		Store:   store,
		Sink:    sink,
		Debug:   true,
		Now:     func() time.Time { return fixedNow },
		Interactions: []scorm.Interaction{
			{ID: "0", QuestionRef: "q1", QuestionText: "What is 2 + 2?", QuestionType: "numeric", CorrectAnswer: "4", ObjectiveID: "obj1"},
			{ID: "1", QuestionRef: "q2", QuestionText: "Pick a fruit", QuestionType: "choice", CorrectAnswer: "2", ObjectiveID: "obj2",
				Options: []scorm.Option{{Key: "1", Option: "Apple"}, {Key: "2", Option: "Banana"}}},
		},
	})
	return s, store, sink
}

func connected(t *testing.T, version scorm.Version) (*scorm.Session, *scorm.MemoryRuntime) {
	t.Helper()
	rt := scorm.NewMemoryRuntime(version)
	s, _, _ := newSession(t, rt)
	res, err := s.Connect()
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !res.Success {
		t.Fatal("Connect() should succeed")
	}
	rt.ResetCalls()
	return s, rt
}

func countOps(calls []scorm.Call, op string) int {
	n := 0
	for _, c := range calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

func TestSession_Connect(t *testing.T) {
	rt := scorm.NewMemoryRuntime(scorm.Version12)
	rt.Seed("cmi.core.lesson_location", "7")
	rt.Seed("cmi.suspend_data", `{~page~:7}`)
	s, _, _ := newSession(t, rt)

	if s.State() != scorm.StateDisconnected {
		t.Fatalf("initial state = %v, want disconnected", s.State())
	}

	res, err := s.Connect()
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !res.Success || res.Version != "1.2" {
		t.Errorf("InitResult = %+v", res)
	}
	if s.State() != scorm.StateConnected {
		t.Errorf("state = %v, want connected", s.State())
	}
	if s.Version() != scorm.Version12 {
		t.Errorf("Version() = %q, want 1.2", s.Version())
	}
	if s.Attempts() != 1 {
		t.Errorf("Attempts() = %d, want 1", s.Attempts())
	}

	version, dbg := rt.Configured()
	if version != scorm.Version2004 || !dbg {
		t.Errorf("Configure(%q, %v), want preferred 2004 with debug", version, dbg)
	}

	snap := s.Snapshot()
	if snap.Location != 7 {
		t.Errorf("hydrated location = %d, want 7", snap.Location)
	}
	if snap.SuspendData != `{~page~:7}` {
		t.Errorf("hydrated suspend data = %q", snap.SuspendData)
	}

	// Second connect is a no-op.
	if _, err := s.Connect(); err != nil {
		t.Fatalf("second Connect() error = %v", err)
	}
	if s.Attempts() != 1 {
		t.Errorf("Attempts() after reconnect = %d, want 1", s.Attempts())
	}
	if n := countOps(rt.Calls(), "initialize"); n != 1 {
		t.Errorf("initialize calls = %d, want 1", n)
	}
}

func TestSession_ConnectMarksIncomplete(t *testing.T) {
	tests := []struct {
		name    string
		version scorm.Version
		path    string
		seed    string
		want    string
	}{
		{"1.2 not attempted", scorm.Version12, "cmi.core.lesson_status", "not attempted", "incomplete"},
		{"1.2 passed kept", scorm.Version12, "cmi.core.lesson_status", "passed", "passed"},
		{"2004 unknown", scorm.Version2004, "cmi.completion_status", "unknown", "incomplete"},
		{"2004 completed kept", scorm.Version2004, "cmi.completion_status", "Completed", "Completed"},
		{"2004 unset", scorm.Version2004, "cmi.completion_status", "", "incomplete"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := scorm.NewMemoryRuntime(tt.version)
			if tt.seed != "" {
				rt.Seed(tt.path, tt.seed)
			}
			s, _, _ := newSession(t, rt)

			if _, err := s.Connect(); err != nil {
				t.Fatalf("Connect() error = %v", err)
			}
			got, _ := rt.Get(tt.path)
			if got != tt.want {
				t.Errorf("%s = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestSession_ConnectFailure(t *testing.T) {
	rt := scorm.NewMemoryRuntime(scorm.Version2004)
	rt.FailInit = true
	s, _, sink := newSession(t, rt)

	res, err := s.Connect()
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if res.Success {
		t.Error("Connect() should report failure")
	}
	if s.State() != scorm.StateDisconnected {
		t.Errorf("state = %v, want disconnected", s.State())
	}
	if s.Attempts() != 1 {
		t.Errorf("Attempts() = %d, want 1", s.Attempts())
	}
	if s.Version() != "" {
		t.Errorf("Version() = %q, want unset", s.Version())
	}

	events := sink.Events()
	if len(events) == 0 || events[len(events)-1].Level != debug.LevelWarn {
		t.Errorf("expected a warn event, got %+v", events)
	}
}

func TestSession_UnknownVersionFallsBackToPreferred(t *testing.T) {
	rt := scorm.NewMemoryRuntime("")
	s := scorm.NewSession(scorm.Options{Runtime: rt, PreferredVersion: scorm.Version12})

	if _, err := s.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if s.Version() != scorm.Version12 {
		t.Errorf("Version() = %q, want 1.2", s.Version())
	}
}

func TestSession_LazyReconnectIsSingleShot(t *testing.T) {
	rt := scorm.NewMemoryRuntime(scorm.Version2004)
	rt.FailInit = true
	s, store, _ := newSession(t, rt)
	ctx := context.Background()

	if err := s.SetLocation(ctx, 5); err != nil {
		t.Fatalf("SetLocation(5) error = %v", err)
	}
	if s.Attempts() != 1 {
		t.Fatalf("Attempts() after first write = %d, want 1", s.Attempts())
	}

	if err := s.SetLocation(ctx, 6); err != nil {
		t.Fatalf("SetLocation(6) error = %v", err)
	}
	if s.Attempts() != 1 {
		t.Errorf("Attempts() after second write = %d, want 1 (no retry)", s.Attempts())
	}
	if n := countOps(rt.Calls(), "initialize"); n != 1 {
		t.Errorf("initialize calls = %d, want 1", n)
	}

	got, ok, _ := store.Get(ctx, localstore.DefaultKeys().Bookmark)
	if !ok || got != "6" {
		t.Errorf("local bookmark = %q, %v; want 6", got, ok)
	}
}

func TestSession_LazyConnectSucceeds(t *testing.T) {
	rt := scorm.NewMemoryRuntime(scorm.Version2004)
	s, _, _ := newSession(t, rt)

	if err := s.SetLocation(context.Background(), 5); err != nil {
		t.Fatalf("SetLocation() error = %v", err)
	}
	if !s.Connected() {
		t.Fatal("first write should connect")
	}
	if v, _ := rt.Value("cmi.location"); v != "5" {
		t.Errorf("cmi.location = %q, want 5", v)
	}
}

func TestSession_SetScore(t *testing.T) {
	tests := []struct {
		version scorm.Version
		prefix  string
	}{
		{scorm.Version12, "cmi.core.score."},
		{scorm.Version2004, "cmi.score."},
	}

	for _, tt := range tests {
		t.Run(string(tt.version), func(t *testing.T) {
			s, rt := connected(t, tt.version)

			if err := s.SetScore(80); err != nil {
				t.Fatalf("SetScore() error = %v", err)
			}

			want := map[string]string{"raw": "80", "min": "0", "max": "100"}
			for leaf, v := range want {
				if got, _ := rt.Value(tt.prefix + leaf); got != v {
					t.Errorf("%s%s = %q, want %q", tt.prefix, leaf, got, v)
				}
			}
			if rt.Commits() != 1 {
				t.Errorf("commits = %d, want 1", rt.Commits())
			}

			score, ok, err := s.Score()
			if err != nil || !ok || score != 80 {
				t.Errorf("Score() = %v, %v, %v; want 80", score, ok, err)
			}
		})
	}
}

func TestSession_ScoreNotConnected(t *testing.T) {
	s, _, _ := newSession(t, nil)

	if _, ok, err := s.Score(); ok || err != nil {
		t.Errorf("Score() = ok %v, err %v; want not-connected sentinel", ok, err)
	}
}

func TestSession_ScoreNotANumber(t *testing.T) {
	s, rt := connected(t, scorm.Version2004)
	rt.Seed("cmi.score.raw", "eighty")

	if _, ok, err := s.Score(); ok || err != nil {
		t.Errorf("Score() = ok %v, err %v; want ok false", ok, err)
	}
}

func TestSession_SetSuspendData_Encoded(t *testing.T) {
	s, rt := connected(t, scorm.Version12)

	if err := s.SetSuspendData(context.Background(), map[string]any{"a": "it's"}); err != nil {
		t.Fatalf("SetSuspendData() error = %v", err)
	}

	if got, _ := rt.Value("cmi.suspend_data"); got != `{~a~:~it¬s~}` {
		t.Errorf("cmi.suspend_data = %q, want {~a~:~it¬s~}", got)
	}
	if n := countOps(rt.Calls(), "commit"); n != 1 {
		t.Errorf("commit calls = %d, want 1", n)
	}
	if s.SuspendMirror() != `{~a~:~it¬s~}` {
		t.Errorf("SuspendMirror() = %q", s.SuspendMirror())
	}
}

func TestSession_SetSuspendData_LimitUnder12(t *testing.T) {
	s, rt := connected(t, scorm.Version12)
	big := map[string]any{"blob": strings.Repeat("x", scorm.SuspendDataLimit12)}

	err := s.SetSuspendData(context.Background(), big)

	var limitErr *scorm.LimitExceededError
	if !errors.As(err, &limitErr) {
		t.Fatalf("error = %v, want *scorm.LimitExceededError", err)
	}
	if limitErr.Version != scorm.Version12 {
		t.Errorf("Version = %q", limitErr.Version)
	}
	if n := countOps(rt.Calls(), "set"); n != 0 {
		t.Errorf("set calls = %d, want 0", n)
	}
	if s.SuspendMirror() != "" {
		t.Error("mirror should not change on failure")
	}
}

func TestSession_SetSuspendData_NoLimitUnder2004(t *testing.T) {
	s, rt := connected(t, scorm.Version2004)
	big := map[string]any{"blob": strings.Repeat("x", scorm.SuspendDataLimit12)}

	if err := s.SetSuspendData(context.Background(), big); err != nil {
		t.Fatalf("SetSuspendData() error = %v", err)
	}
	if got, _ := rt.Value("cmi.suspend_data"); len(got) <= scorm.SuspendDataLimit12 {
		t.Errorf("suspend data length = %d, want > %d", len(got), scorm.SuspendDataLimit12)
	}
}

func TestSession_SetSuspendData_Disconnected(t *testing.T) {
	s, store, _ := newSession(t, nil)
	ctx := context.Background()

	if err := s.SetSuspendData(ctx, map[string]any{"page": 3}); err != nil {
		t.Fatalf("SetSuspendData() error = %v", err)
	}

	got, ok, _ := store.Get(ctx, localstore.DefaultKeys().SuspendData)
	if !ok || got != `{~page~:3}` {
		t.Errorf("local suspend data = %q, %v", got, ok)
	}
	if _, ok, _ := s.SuspendData(); ok {
		t.Error("SuspendData() should report not connected")
	}
}

func TestSession_AdapterErrorsPropagate(t *testing.T) {
	s, rt := connected(t, scorm.Version2004)
	boom := errors.New("LMS rejected value")
	rt.FailSet("cmi.location", boom)

	err := s.SetLocation(context.Background(), 3)
	if err != boom {
		t.Errorf("SetLocation() error = %v, want the runtime error unchanged", err)
	}
	if n := countOps(rt.Calls(), "commit"); n != 0 {
		t.Errorf("commit calls = %d, want 0 after failed set", n)
	}
}

func TestSession_Location(t *testing.T) {
	ctx := context.Background()

	t.Run("connected", func(t *testing.T) {
		s, rt := connected(t, scorm.Version12)
		rt.Seed("cmi.core.lesson_location", "12")
		got, err := s.Location(ctx)
		if err != nil || got != 12 {
			t.Errorf("Location() = %d, %v; want 12", got, err)
		}
	})

	t.Run("fallback", func(t *testing.T) {
		s, store, _ := newSession(t, nil)
		if got, _ := s.Location(ctx); got != 0 {
			t.Errorf("Location() with nothing stored = %d, want 0", got)
		}
		store.Set(ctx, localstore.DefaultKeys().Bookmark, "4")
		if got, _ := s.Location(ctx); got != 4 {
			t.Errorf("Location() = %d, want 4", got)
		}
	})
}

func TestSession_Hydrate(t *testing.T) {
	s, store, _ := newSession(t, nil)
	ctx := context.Background()
	keys := localstore.DefaultKeys()
	store.Set(ctx, keys.Bookmark, "9")
	store.Set(ctx, keys.SuspendData, `{~page~:9}`)

	if err := s.Hydrate(ctx); err != nil {
		t.Fatalf("Hydrate() error = %v", err)
	}

	snap := s.Snapshot()
	if snap.Location != 9 || snap.SuspendData != `{~page~:9}` {
		t.Errorf("Snapshot() = %+v", snap)
	}
}

func TestSession_SetComplete(t *testing.T) {
	s, rt := connected(t, scorm.Version12)

	if err := s.SetComplete(); err != nil {
		t.Fatalf("SetComplete() error = %v", err)
	}
	if got, _ := rt.Value("cmi.core.lesson_status"); got != "completed" {
		t.Errorf("lesson_status = %q, want completed", got)
	}
}

func TestSession_LearnerFields(t *testing.T) {
	tests := []struct {
		version  scorm.Version
		namePath string
		idPath   string
		langPath string
	}{
		{scorm.Version12, "cmi.core.student_name", "cmi.core.student_id", "cmi.student_preference.language"},
		{scorm.Version2004, "cmi.learner_name", "cmi.learner_id", "cmi.learner_preference.language"},
	}

	for _, tt := range tests {
		t.Run(string(tt.version), func(t *testing.T) {
			s, rt := connected(t, tt.version)
			rt.Seed(tt.namePath, "Doe, Jane")
			rt.Seed(tt.idPath, "L-42")
			rt.Seed(tt.langPath, "fr-FR")

			if name, ok, _ := s.LearnerName(); !ok || name != "Doe, Jane" {
				t.Errorf("LearnerName() = %q, %v", name, ok)
			}
			if id, ok, _ := s.LearnerID(); !ok || id != "L-42" {
				t.Errorf("LearnerID() = %q, %v", id, ok)
			}
			tag, ok, err := s.LearnerLanguage()
			if err != nil || !ok || tag != language.MustParse("fr-FR") {
				t.Errorf("LearnerLanguage() = %v, %v, %v", tag, ok, err)
			}
		})
	}
}

func TestSession_LearnerLanguageInvalid(t *testing.T) {
	s, rt := connected(t, scorm.Version2004)
	rt.Seed("cmi.learner_preference.language", "not a language!!")

	if _, ok, err := s.LearnerLanguage(); ok || err != nil {
		t.Errorf("LearnerLanguage() = ok %v, err %v; want ok false", ok, err)
	}
}

func TestSession_Objectives(t *testing.T) {
	t.Run("2004", func(t *testing.T) {
		s, rt := connected(t, scorm.Version2004)

		if err := s.InitObjectives("obj1", "obj2"); err != nil {
			t.Fatalf("InitObjectives() error = %v", err)
		}
		if err := s.SetObjectiveScore(1, 75); err != nil {
			t.Fatalf("SetObjectiveScore() error = %v", err)
		}
		if err := s.SetObjectiveProgress(1, 50); err != nil {
			t.Fatalf("SetObjectiveProgress() error = %v", err)
		}

		want := map[string]string{
			"cmi.objectives.0.id":               "obj1",
			"cmi.objectives.1.id":               "obj2",
			"cmi.objectives.1.score.raw":        "75",
			"cmi.objectives.1.progress_measure": "0.50",
		}
		for path, v := range want {
			if got, _ := rt.Value(path); got != v {
				t.Errorf("%s = %q, want %q", path, got, v)
			}
		}
	})

	t.Run("1.2 skips progress", func(t *testing.T) {
		s, rt := connected(t, scorm.Version12)

		if err := s.SetObjectiveProgress(0, 50); err != nil {
			t.Fatalf("SetObjectiveProgress() error = %v", err)
		}
		if _, ok := rt.Value("cmi.objectives.0.progress_measure"); ok {
			t.Error("progress_measure should not be written under 1.2")
		}
		if rt.Commits() != 0 {
			t.Errorf("commits = %d, want 0", rt.Commits())
		}
	})
}

func TestSession_SetResponse(t *testing.T) {
	s, _, _ := newSession(t, nil)

	it, ok := s.SetResponse(0, "4")
	if !ok {
		t.Fatal("SetResponse(0) should find the interaction")
	}
	if it.WasCorrect != scorm.Correct {
		t.Errorf("WasCorrect = %v, want correct", it.WasCorrect)
	}

	it, _ = s.SetResponse(1, "1")
	if it.WasCorrect != scorm.Incorrect {
		t.Errorf("WasCorrect = %v, want incorrect", it.WasCorrect)
	}

	if _, ok := s.SetResponse(5, "x"); ok {
		t.Error("SetResponse(5) should report a missing interaction")
	}

	got := s.Interactions()
	if got[0].LearnerResponse != "4" || got[1].LearnerResponse != "1" {
		t.Errorf("Interactions() = %+v", got)
	}
}

func TestSession_RecordInteraction(t *testing.T) {
	tests := []struct {
		name       string
		version    scorm.Version
		correct    scorm.Correctness
		want       map[string]string
		absent     []string
		wantFields int
	}{
		{
			name:    "1.2 wrong",
			version: scorm.Version12,
			correct: scorm.Incorrect,
			want: map[string]string{
				"cmi.interactions.1.id":                          "q2",
				"cmi.interactions.1.type":                        "choice",
				"cmi.interactions.1.student_response":            "1",
				"cmi.interactions.1.correct_responses.0.pattern": "2",
				"cmi.interactions.1.result":                      "wrong",
				"cmi.interactions.1.objectives.0.id":             "obj2",
			},
			absent:     []string{"cmi.interactions.1.timestamp", "cmi.interactions.1.learner_response", "cmi.interactions.1.description"},
			wantFields: 6,
		},
		{
			name:    "2004 incorrect",
			version: scorm.Version2004,
			correct: scorm.Incorrect,
			want: map[string]string{
				"cmi.interactions.1.id":                          "q2",
				"cmi.interactions.1.type":                        "choice",
				"cmi.interactions.1.description":                 "Pick a fruit",
				"cmi.interactions.1.learner_response":            "1",
				"cmi.interactions.1.timestamp":                   "2026-03-14T09:26:53",
				"cmi.interactions.1.correct_responses.0.pattern": "2",
				"cmi.interactions.1.result":                      "incorrect",
				"cmi.interactions.1.objectives.0.id":             "obj2",
			},
			wantFields: 8,
		},
		{
			name:       "2004 correct",
			version:    scorm.Version2004,
			correct:    scorm.Correct,
			want:       map[string]string{"cmi.interactions.1.result": "correct"},
			wantFields: 8,
		},
		{
			name:       "1.2 ungraded is neutral, not wrong",
			version:    scorm.Version12,
			correct:    scorm.Unknown,
			want:       map[string]string{"cmi.interactions.1.result": "neutral"},
			wantFields: 6,
		},
		{
			name:       "2004 ungraded is neutral, not incorrect",
			version:    scorm.Version2004,
			correct:    scorm.Unknown,
			want:       map[string]string{"cmi.interactions.1.result": "neutral"},
			wantFields: 8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, rt := connected(t, tt.version)

			err := s.RecordInteraction(scorm.Interaction{
				ID:              "1",
				QuestionRef:     "q2",
				QuestionText:    "Pick a fruit",
				QuestionType:    "choice",
				LearnerResponse: "1",
				CorrectAnswer:   "2",
				WasCorrect:      tt.correct,
				ObjectiveID:     "obj2",
			})
			if err != nil {
				t.Fatalf("RecordInteraction() error = %v", err)
			}

			for path, v := range tt.want {
				if got, _ := rt.Value(path); got != v {
					t.Errorf("%s = %q, want %q", path, got, v)
				}
			}
			for _, path := range tt.absent {
				if _, ok := rt.Value(path); ok {
					t.Errorf("%s should not be written", path)
				}
			}
			calls := rt.Calls()
			if n := countOps(calls, "set"); n != tt.wantFields {
				t.Errorf("set calls = %d, want %d", n, tt.wantFields)
			}
			if n := countOps(calls, "commit"); n != 1 {
				t.Errorf("commit calls = %d, want 1", n)
			}
		})
	}
}

func TestSession_RecordInteraction_Disconnected(t *testing.T) {
	rt := scorm.NewMemoryRuntime(scorm.Version2004)
	rt.FailInit = true
	s, _, sink := newSession(t, rt)

	if err := s.RecordTracked(0); err != nil {
		t.Fatalf("RecordTracked() error = %v", err)
	}
	if n := countOps(rt.Calls(), "set"); n != 0 {
		t.Errorf("set calls = %d, want 0", n)
	}

	events := sink.Events()
	last := events[len(events)-1]
	if last.Level != debug.LevelWarn || !strings.Contains(last.Message, "skipping interaction") {
		t.Errorf("last event = %+v", last)
	}
}

func TestSession_RecordInteraction_BadID(t *testing.T) {
	s, _ := connected(t, scorm.Version2004)

	if err := s.RecordInteraction(scorm.Interaction{ID: "q1"}); err == nil {
		t.Fatal("RecordInteraction() should reject a non-numeric id")
	}
}

func TestSession_Terminate(t *testing.T) {
	t.Run("connected", func(t *testing.T) {
		s, rt := connected(t, scorm.Version2004)

		if err := s.Terminate(); err != nil {
			t.Fatalf("Terminate() error = %v", err)
		}
		if s.State() != scorm.StateTerminated {
			t.Errorf("state = %v, want terminated", s.State())
		}
		if !rt.Terminated() {
			t.Error("runtime should be terminated")
		}

		// Terminated is final.
		if _, err := s.Connect(); err != nil {
			t.Fatalf("Connect() after terminate error = %v", err)
		}
		if s.State() != scorm.StateTerminated {
			t.Errorf("state after Connect() = %v, want terminated", s.State())
		}
	})

	t.Run("never connected attempts first", func(t *testing.T) {
		rt := scorm.NewMemoryRuntime(scorm.Version2004)
		s, _, _ := newSession(t, rt)

		if err := s.Terminate(); err != nil {
			t.Fatalf("Terminate() error = %v", err)
		}
		if n := countOps(rt.Calls(), "initialize"); n != 1 {
			t.Errorf("initialize calls = %d, want 1", n)
		}
		if n := countOps(rt.Calls(), "terminate"); n != 1 {
			t.Errorf("terminate calls = %d, want 1", n)
		}
	})

	t.Run("no LMS", func(t *testing.T) {
		s, _, _ := newSession(t, nil)

		if err := s.Terminate(); err != nil {
			t.Fatalf("Terminate() error = %v", err)
		}
		if s.State() != scorm.StateTerminated {
			t.Errorf("state = %v, want terminated", s.State())
		}
		if s.Attempts() != 1 {
			t.Errorf("Attempts() = %d, want 1", s.Attempts())
		}
	})
}

func TestCorrectness_JSON(t *testing.T) {
	tests := []struct {
		c    scorm.Correctness
		want string
	}{
		{scorm.Unknown, "null"},
		{scorm.Correct, "true"},
		{scorm.Incorrect, "false"},
	}

	for _, tt := range tests {
		t.Run(tt.c.String(), func(t *testing.T) {
			b, err := tt.c.MarshalJSON()
			if err != nil || string(b) != tt.want {
				t.Fatalf("MarshalJSON() = %s, %v", b, err)
			}
			var back scorm.Correctness
			if err := back.UnmarshalJSON(b); err != nil || back != tt.c {
				t.Errorf("UnmarshalJSON(%s) = %v, %v", b, back, err)
			}
		})
	}
}

func TestSession_SetObjectiveID(t *testing.T) {
	s, rt := connected(t, scorm.Version12)

	if err := s.SetObjectiveID(2, "obj3"); err != nil {
		t.Fatalf("SetObjectiveID() error = %v", err)
	}
	if got, _ := rt.Value("cmi.objectives.2.id"); got != "obj3" {
		t.Errorf("cmi.objectives.2.id = %q, want obj3", got)
	}
}

func TestMemoryRuntime_ZeroValue(t *testing.T) {
	var rt scorm.MemoryRuntime

	if res := rt.Initialize(); !res.Success {
		t.Fatalf("Initialize() = %+v", res)
	}
	if v, err := rt.Get("cmi.location"); err != nil || v != "" {
		t.Errorf("Get() on empty runtime = %q, %v", v, err)
	}
	if err := rt.Set("cmi.score.raw", "80"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := rt.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if v, ok := rt.Value("cmi.score.raw"); !ok || v != "80" {
		t.Errorf("Value() = %q, %v, want 80", v, ok)
	}

	boom := errors.New("boom")
	var fresh scorm.MemoryRuntime
	fresh.FailSet("cmi.location", boom)
	if err := fresh.Set("cmi.location", "1"); !errors.Is(err, boom) {
		t.Errorf("Set() error = %v, want boom", err)
	}
}

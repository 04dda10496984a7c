// Package course loads course manifests: objectives and the assessment
// questions that become SCORM interactions.
package course

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const questionsSuffix = ".questions.yaml"

// Loader loads and caches course manifests from the filesystem.
type Loader struct {
	rootDir string
	courses map[string]Course
	mu      sync.RWMutex
}

// questionBank is a separate question file for a course.
type questionBank struct {
	CourseID  string     `yaml:"course_id"`
	Questions []Question `yaml:"questions"`
}

// NewLoader creates a loader and loads every manifest under rootDir. An
// empty rootDir yields a loader with no courses.
func NewLoader(rootDir string) (*Loader, error) {
	l := &Loader{
		rootDir: rootDir,
		courses: make(map[string]Course),
	}
	if rootDir == "" {
		return l, nil
	}

	if err := l.loadAll(); err != nil {
		return nil, fmt.Errorf("loading courses: %w", err)
	}

	slog.Info("courses loaded", "courses", len(l.courses))
	return l, nil
}

// GetCourse returns a course by ID.
func (l *Loader) GetCourse(id string) (Course, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.courses[id]
	return c, ok
}

// AllCourses returns all loaded courses sorted by ID.
func (l *Loader) AllCourses() []Course {
	l.mu.RLock()
	defer l.mu.RUnlock()
	courses := make([]Course, 0, len(l.courses))
	for _, c := range l.courses {
		courses = append(courses, c)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses
}

// Add registers a course, replacing any course with the same ID.
func (l *Loader) Add(c Course) error {
	if c.ID == "" {
		return fmt.Errorf("course id is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.courses[c.ID] = c
	return nil
}

func (l *Loader) loadAll() error {
	var banks []string
	err := filepath.Walk(l.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}

		switch {
		case strings.HasSuffix(path, questionsSuffix):
			banks = append(banks, path)
		case strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml"):
			return l.loadCourse(path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Question files are merged once every manifest is known.
	for _, path := range banks {
		if err := l.loadQuestions(path); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) loadCourse(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var c Course
	if err := yaml.Unmarshal(data, &c); err != nil {
		slog.Warn("skipping invalid course YAML", "path", path, "error", err)
		return nil
	}

	if c.ID == "" {
		return nil // Not a course manifest
	}

	l.mu.Lock()
	l.courses[c.ID] = c
	l.mu.Unlock()

	return nil
}

func (l *Loader) loadQuestions(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var bank questionBank
	if err := yaml.Unmarshal(data, &bank); err != nil {
		slog.Warn("skipping invalid question YAML", "path", path, "error", err)
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.courses[bank.CourseID]
	if !ok {
		slog.Warn("question file has no matching course", "path", path, "course_id", bank.CourseID)
		return nil
	}
	c.Questions = append(c.Questions, bank.Questions...)
	l.courses[c.ID] = c
	return nil
}

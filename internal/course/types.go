package course

import (
	"strconv"

	"golang.org/x/text/language"

	"github.com/p-n-ai/pai-scorm/internal/scorm"
)

// Course is a course manifest loaded from YAML.
type Course struct {
	ID         string      `yaml:"id"`
	Title      string      `yaml:"title"`
	Version    string      `yaml:"scorm_version"`
	Languages  []string    `yaml:"languages"`
	Objectives []Objective `yaml:"objectives"`
	Questions  []Question  `yaml:"questions"`
}

// Objective is a learning objective tracked in cmi.objectives.
type Objective struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
}

// Question is an assessment item tracked as a SCORM interaction.
type Question struct {
	ID        string   `yaml:"id"`
	Text      string   `yaml:"text"`
	Type      string   `yaml:"type"`
	Options   []Option `yaml:"options"`
	Correct   string   `yaml:"correct"`
	Objective string   `yaml:"objective"`
}

// Option is one answer choice.
type Option struct {
	Key  string `yaml:"key"`
	Text string `yaml:"text"`
}

// ObjectiveIDs returns the objective ids in manifest order.
func (c Course) ObjectiveIDs() []string {
	ids := make([]string, len(c.Objectives))
	for i, o := range c.Objectives {
		ids[i] = o.ID
	}
	return ids
}

// Interactions builds the tracked interactions for the course questions.
// Each question's position becomes its interaction index.
func (c Course) Interactions() []scorm.Interaction {
	out := make([]scorm.Interaction, len(c.Questions))
	for i, q := range c.Questions {
		var opts []scorm.Option
		for _, o := range q.Options {
			opts = append(opts, scorm.Option{Key: o.Key, Option: o.Text})
		}
		out[i] = scorm.Interaction{
			ID:            strconv.Itoa(i),
			QuestionRef:   q.ID,
			QuestionText:  q.Text,
			QuestionType:  q.Type,
			Options:       opts,
			CorrectAnswer: q.Correct,
			ObjectiveID:   q.Objective,
		}
	}
	return out
}

// PreferredVersion returns the SCORM version the course asks for, or ""
// when unset or unknown.
func (c Course) PreferredVersion() scorm.Version {
	v, _ := scorm.ParseVersion(c.Version)
	return v
}

// MatchLanguage picks the course language closest to the learner's
// preference. Courses without languages fall back to English.
func (c Course) MatchLanguage(pref language.Tag) language.Tag {
	var supported []language.Tag
	for _, l := range c.Languages {
		if tag, err := language.Parse(l); err == nil {
			supported = append(supported, tag)
		}
	}
	if len(supported) == 0 {
		return language.English
	}
	_, idx, _ := language.NewMatcher(supported).Match(pref)
	return supported[idx]
}

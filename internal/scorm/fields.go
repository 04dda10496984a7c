package scorm

import "fmt"

// Version is a SCORM data-model version.
type Version string

const (
	Version12   Version = "1.2"
	Version2004 Version = "2004"
)

// ParseVersion accepts the version strings runtimes report.
func ParseVersion(s string) (Version, bool) {
	switch s {
	case "1.2":
		return Version12, true
	case "2004":
		return Version2004, true
	}
	return "", false
}

// fieldPaths holds the data-model element names for one version.
type fieldPaths struct {
	location        string
	scoreRaw        string
	scoreMin        string
	scoreMax        string
	status          string
	suspendData     string
	learnerName     string
	learnerID       string
	learnerLanguage string

	interactionResponse string
	resultIncorrect     string

	// 2004-only elements.
	objectiveProgress      bool
	interactionTimestamp   bool
	interactionDescription bool
}

var paths = map[Version]fieldPaths{
	Version12: {
		location:            "cmi.core.lesson_location",
		scoreRaw:            "cmi.core.score.raw",
		scoreMin:            "cmi.core.score.min",
		scoreMax:            "cmi.core.score.max",
		status:              "cmi.core.lesson_status",
		suspendData:         "cmi.suspend_data",
		learnerName:         "cmi.core.student_name",
		learnerID:           "cmi.core.student_id",
		learnerLanguage:     "cmi.student_preference.language",
		interactionResponse: "student_response",
		resultIncorrect:     "wrong",
	},
	Version2004: {
		location:               "cmi.location",
		scoreRaw:               "cmi.score.raw",
		scoreMin:               "cmi.score.min",
		scoreMax:               "cmi.score.max",
		status:                 "cmi.completion_status",
		suspendData:            "cmi.suspend_data",
		learnerName:            "cmi.learner_name",
		learnerID:              "cmi.learner_id",
		learnerLanguage:        "cmi.learner_preference.language",
		interactionResponse:    "learner_response",
		resultIncorrect:        "incorrect",
		objectiveProgress:      true,
		interactionTimestamp:   true,
		interactionDescription: true,
	},
}

// pathsFor falls back to 2004 names for an unset version.
func pathsFor(v Version) fieldPaths {
	if p, ok := paths[v]; ok {
		return p
	}
	return paths[Version2004]
}

func objectivePath(index int, leaf string) string {
	return fmt.Sprintf("cmi.objectives.%d.%s", index, leaf)
}

func interactionPath(index int, leaf string) string {
	return fmt.Sprintf("cmi.interactions.%d.%s", index, leaf)
}

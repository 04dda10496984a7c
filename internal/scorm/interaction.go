package scorm

import (
	"encoding/json"
	"fmt"
)

// Correctness is a tri-state answer result.
type Correctness int

const (
	Unknown Correctness = iota
	Correct
	Incorrect
)

// CorrectnessOf converts a definite outcome.
func CorrectnessOf(ok bool) Correctness {
	if ok {
		return Correct
	}
	return Incorrect
}

func (c Correctness) String() string {
	switch c {
	case Correct:
		return "correct"
	case Incorrect:
		return "incorrect"
	default:
		return "unknown"
	}
}

// MarshalJSON renders Unknown as null and the others as booleans.
func (c Correctness) MarshalJSON() ([]byte, error) {
	switch c {
	case Correct:
		return []byte("true"), nil
	case Incorrect:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

func (c *Correctness) UnmarshalJSON(b []byte) error {
	var v *bool
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("correctness: %w", err)
	}
	if v == nil {
		*c = Unknown
		return nil
	}
	*c = CorrectnessOf(*v)
	return nil
}

// result returns the cmi.interactions.n.result vocabulary for c. Unknown
// is sent as "neutral", never as the version's incorrect value: an
// ungraded response is not a wrong answer.
func (c Correctness) result(p fieldPaths) string {
	switch c {
	case Correct:
		return "correct"
	case Incorrect:
		return p.resultIncorrect
	default:
		return "neutral"
	}
}

// Option is one answer choice of a question.
type Option struct {
	Key    string `json:"key"`
	Option string `json:"option"`
}

// Interaction is a learner's response to one assessment item. ID is the
// interaction index in the LMS data model.
type Interaction struct {
	ID              string      `json:"interaction_id"`
	QuestionRef     string      `json:"question_ref"`
	QuestionText    string      `json:"question_text"`
	QuestionType    string      `json:"question_type"`
	Options         []Option    `json:"question_options,omitempty"`
	LearnerResponse string      `json:"learner_response"`
	CorrectAnswer   string      `json:"correct_answer"`
	WasCorrect      Correctness `json:"was_correct"`
	ObjectiveID     string      `json:"objective_id"`
}

func cloneInteractions(in []Interaction) []Interaction {
	out := make([]Interaction, len(in))
	for i, it := range in {
		it.Options = append([]Option(nil), it.Options...)
		out[i] = it
	}
	return out
}

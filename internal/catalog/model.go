// Package catalog loads, validates and indexes the question dataset that
// feeds game rounds, and implements per-round alternative generation and
// answer checking for every question variant.
package catalog

import "fmt"

// QuestionType discriminates the closed set of question variants.
type QuestionType string

const (
	QuestionTypeColor     QuestionType = "color"
	QuestionTypeCharacter QuestionType = "character"
	QuestionTypeText      QuestionType = "text"
	QuestionTypeYear      QuestionType = "year"
)

// Valid reports whether qt names a known question variant.
func (qt QuestionType) Valid() bool {
	switch qt {
	case QuestionTypeColor, QuestionTypeCharacter, QuestionTypeText, QuestionTypeYear:
		return true
	}
	return false
}

// Media is one playable track referenced by questions.
type Media struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	ReleaseYear *int   `json:"release_year,omitempty"`
	PlaybackID  string `json:"spotify_uri,omitempty"`
}

// Character is a named entity used as a correct answer or distractor for
// character questions. Characters are dropped after validation; only the
// name set survives into the runtime indexes.
type Character struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
}

// StoredQuestion is the on-disk question record.
type StoredQuestion struct {
	ID       int          `json:"id"`
	MediaID  int          `json:"media_id"`
	Type     QuestionType `json:"question_type"`
	Text     string       `json:"question_text,omitempty"`
	IsActive bool         `json:"is_active"`
}

// QuestionOption is one answer choice belonging to a question. Incorrect
// options are predefined distractors for character and text questions.
type QuestionOption struct {
	ID         int    `json:"id"`
	QuestionID int    `json:"question_id"`
	Text       string `json:"option_text"`
	IsCorrect  bool   `json:"is_correct"`
}

// QuestionSet is a named, ordered list of question ids selectable at lobby
// creation.
type QuestionSet struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	QuestionIDs []int  `json:"question_ids"`
}

// StoredData is the exact shape of the on-disk JSON document.
type StoredData struct {
	Media      []Media          `json:"media"`
	Characters []Character      `json:"characters"`
	Questions  []StoredQuestion `json:"questions"`
	Options    []QuestionOption `json:"options"`
	Sets       []QuestionSet    `json:"sets"`
}

// Question is the runtime aggregate of a question, its media and options.
type Question struct {
	StoredQuestion
	Media   Media
	Options []QuestionOption
}

// CorrectOptions returns the options flagged correct, in stored order.
func (q *Question) CorrectOptions() []QuestionOption {
	var correct []QuestionOption
	for _, o := range q.Options {
		if o.IsCorrect {
			correct = append(correct, o)
		}
	}
	return correct
}

// ValidationError describes a dataset invariant violation, naming the
// offending entity so operators can fix the source file.
type ValidationError struct {
	Kind   string
	ID     string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("catalog validation: %s %s field %s: %s", e.Kind, e.ID, e.Field, e.Reason)
	}
	return fmt.Sprintf("catalog validation: %s %s: %s", e.Kind, e.ID, e.Reason)
}

func validationErr(kind string, id any, field, reason string) *ValidationError {
	return &ValidationError{Kind: kind, ID: fmt.Sprint(id), Field: field, Reason: reason}
}

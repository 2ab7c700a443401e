package catalog

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Catalog is the validated, indexed question dataset. It is immutable after
// Load and safe for concurrent readers.
type Catalog struct {
	stored StoredData
	path   string

	mediaByID      map[int]Media
	optionsByQID   map[int][]QuestionOption
	questionsByID  map[int]*Question
	characterNames map[string]bool
	active         []*Question
	setsByName     map[string]QuestionSet

	weights ColorWeights
}

// Load reads, strictly decodes and validates the dataset at path, then
// builds the runtime indexes and the color sampling weights.
func Load(path string, log *logrus.Logger) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()

	var data StoredData
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}

	c, err := FromStored(data)
	if err != nil {
		return nil, err
	}
	c.path = path

	if log != nil {
		log.WithFields(logrus.Fields{
			"path":             path,
			"media":            len(data.Media),
			"questions":        len(data.Questions),
			"active_questions": len(c.active),
			"sets":             len(data.Sets),
		}).Info("Question catalog loaded")
	}
	return c, nil
}

// FromStored validates and indexes an in-memory dataset. All catalogue
// invariants are checked here; the first violation is returned as a
// *ValidationError.
func FromStored(data StoredData) (*Catalog, error) {
	c := &Catalog{
		stored:         data,
		mediaByID:      make(map[int]Media, len(data.Media)),
		optionsByQID:   make(map[int][]QuestionOption, len(data.Questions)),
		questionsByID:  make(map[int]*Question, len(data.Questions)),
		characterNames: make(map[string]bool, len(data.Characters)),
		setsByName:     make(map[string]QuestionSet, len(data.Sets)),
	}
	if err := c.validateAndIndex(); err != nil {
		return nil, err
	}
	c.weights = computeColorWeights(c.active)
	return c, nil
}

func (c *Catalog) validateAndIndex() error {
	for _, m := range c.stored.Media {
		if _, dup := c.mediaByID[m.ID]; dup {
			return validationErr("media", m.ID, "id", "duplicate id")
		}
		c.mediaByID[m.ID] = m
	}

	charIDs := make(map[int]bool, len(c.stored.Characters))
	imageURLs := make(map[string]bool, len(c.stored.Characters))
	for _, ch := range c.stored.Characters {
		if charIDs[ch.ID] {
			return validationErr("character", ch.ID, "id", "duplicate id")
		}
		charIDs[ch.ID] = true
		if ch.Name == "" {
			return validationErr("character", ch.ID, "name", "empty")
		}
		if c.characterNames[ch.Name] {
			return validationErr("character", ch.ID, "name", "duplicate name "+ch.Name)
		}
		c.characterNames[ch.Name] = true
		if ch.ImageURL != "" {
			if imageURLs[ch.ImageURL] {
				return validationErr("character", ch.ID, "image_url", "duplicate url "+ch.ImageURL)
			}
			imageURLs[ch.ImageURL] = true
		}
	}

	qIDs := make(map[int]bool, len(c.stored.Questions))
	for _, q := range c.stored.Questions {
		if qIDs[q.ID] {
			return validationErr("question", q.ID, "id", "duplicate id")
		}
		qIDs[q.ID] = true
		if !q.Type.Valid() {
			return validationErr("question", q.ID, "question_type", fmt.Sprintf("unknown type %q", q.Type))
		}
		if _, ok := c.mediaByID[q.MediaID]; !ok {
			return validationErr("question", q.ID, "media_id", fmt.Sprintf("unresolved media %d", q.MediaID))
		}
	}

	optIDs := make(map[int]bool, len(c.stored.Options))
	for _, o := range c.stored.Options {
		if optIDs[o.ID] {
			return validationErr("option", o.ID, "id", "duplicate id")
		}
		optIDs[o.ID] = true
		if !qIDs[o.QuestionID] {
			return validationErr("option", o.ID, "question_id", fmt.Sprintf("unresolved question %d", o.QuestionID))
		}
		c.optionsByQID[o.QuestionID] = append(c.optionsByQID[o.QuestionID], o)
	}

	setIDs := make(map[int]bool, len(c.stored.Sets))
	for _, s := range c.stored.Sets {
		if setIDs[s.ID] {
			return validationErr("set", s.ID, "id", "duplicate id")
		}
		setIDs[s.ID] = true
		for _, qid := range s.QuestionIDs {
			if !qIDs[qid] {
				return validationErr("set", s.ID, "question_ids", fmt.Sprintf("unresolved question %d", qid))
			}
		}
		c.setsByName[s.Name] = s
	}

	// Per-variant option checks, then aggregate the active questions.
	for i := range c.stored.Questions {
		sq := c.stored.Questions[i]
		opts := c.optionsByQID[sq.ID]

		switch sq.Type {
		case QuestionTypeColor:
			for _, o := range opts {
				if _, err := ParseColor(o.Text); err != nil {
					return validationErr("option", o.ID, "option_text", fmt.Sprintf("not a palette color: %q", o.Text))
				}
			}
		case QuestionTypeCharacter:
			for _, o := range opts {
				if !c.characterNames[o.Text] {
					return validationErr("option", o.ID, "option_text", fmt.Sprintf("unknown character %q", o.Text))
				}
			}
		case QuestionTypeYear:
			if sq.IsActive {
				media := c.mediaByID[sq.MediaID]
				if media.ReleaseYear == nil {
					return validationErr("question", sq.ID, "media_id", "year question on media without release_year")
				}
			}
		}

		q := &Question{StoredQuestion: sq, Media: c.mediaByID[sq.MediaID], Options: opts}
		c.questionsByID[sq.ID] = q
		if sq.IsActive {
			c.active = append(c.active, q)
		}
	}

	return nil
}

// Stored returns the raw dataset, inactive entries included.
func (c *Catalog) Stored() StoredData {
	return c.stored
}

// ActiveQuestions returns the aggregated active questions in stored order.
// Callers must not mutate the returned slice.
func (c *Catalog) ActiveQuestions() []*Question {
	return c.active
}

// QuestionByID looks up one question aggregate, active or not.
func (c *Catalog) QuestionByID(id int) (*Question, bool) {
	q, ok := c.questionsByID[id]
	return q, ok
}

// HasSet reports whether a question set with the given name exists.
func (c *Catalog) HasSet(name string) bool {
	_, ok := c.setsByName[name]
	return ok
}

// SetNames returns the names of every question set.
func (c *Catalog) SetNames() []string {
	names := make([]string, 0, len(c.setsByName))
	for name := range c.setsByName {
		names = append(names, name)
	}
	return names
}

// Weights returns the process-wide color sampling weights.
func (c *Catalog) Weights() ColorWeights {
	return c.weights
}

// ShuffledQuestions returns a fresh random permutation of the active
// questions, restricted to the named set when setName is non-empty. Inactive
// questions are skipped even when a set references them.
func (c *Catalog) ShuffledQuestions(rng *rand.Rand, setName string) ([]*Question, error) {
	var queue []*Question
	if setName == "" {
		queue = append(queue, c.active...)
	} else {
		set, ok := c.setsByName[setName]
		if !ok {
			return nil, fmt.Errorf("unknown question set %q", setName)
		}
		for _, qid := range set.QuestionIDs {
			if q := c.questionsByID[qid]; q != nil && q.IsActive {
				queue = append(queue, q)
			}
		}
	}
	rng.Shuffle(len(queue), func(i, j int) {
		queue[i], queue[j] = queue[j], queue[i]
	})
	return queue, nil
}

// SaveExternal persists externally-edited data alongside the original file,
// with a _from_web suffix so the curated source is never clobbered.
func (c *Catalog) SaveExternal(data StoredData) (string, error) {
	if _, err := FromStored(data); err != nil {
		return "", err
	}

	base := strings.TrimSuffix(c.path, filepath.Ext(c.path))
	out := base + "_from_web.json"

	buf, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal catalog: %w", err)
	}
	if err := os.WriteFile(out, buf, 0o644); err != nil {
		return "", fmt.Errorf("write catalog %s: %w", out, err)
	}
	return out, nil
}

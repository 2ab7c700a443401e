package catalog

import (
	"fmt"
	"math/rand"
	"strconv"
)

// AlternativeCount is the number of choices shown to players each round.
// Rounds with fewer options than this show all of them.
const AlternativeCount = 6

// yearTolerance is the accepted distance from the true release year.
const yearTolerance = 2

// RoundChoices is the material frozen at round start: the alternatives
// presented to players, in display order, and the set of correct answers.
type RoundChoices struct {
	Alternatives []string
	Correct      []string
}

// IsCorrect checks a submitted answer against the frozen round material.
// Year questions accept answers within ±2 of the true year; every other
// variant requires an exact match with a correct alternative.
func (rc RoundChoices) IsCorrect(qt QuestionType, submitted string) bool {
	if qt == QuestionTypeYear {
		if len(rc.Correct) == 0 {
			return false
		}
		want, err := strconv.Atoi(rc.Correct[0])
		if err != nil {
			return false
		}
		got, err := strconv.Atoi(submitted)
		if err != nil {
			return false
		}
		diff := got - want
		if diff < 0 {
			diff = -diff
		}
		return diff <= yearTolerance
	}

	for _, c := range rc.Correct {
		if submitted == c {
			return true
		}
	}
	return false
}

// GenerateRound produces the round material for q using the catalogue's
// stored correct answers.
func (c *Catalog) GenerateRound(rng *rand.Rand, q *Question) (RoundChoices, error) {
	switch q.Type {
	case QuestionTypeColor:
		correct, err := correctColors(q)
		if err != nil {
			return RoundChoices{}, err
		}
		return c.colorRound(rng, correct, false), nil

	case QuestionTypeYear:
		if q.Media.ReleaseYear == nil {
			return RoundChoices{}, fmt.Errorf("question %d: year question without release year", q.ID)
		}
		return yearRound(rng, *q.Media.ReleaseYear), nil

	case QuestionTypeCharacter, QuestionTypeText:
		return optionRound(rng, q.Options, nil), nil
	}
	return RoundChoices{}, fmt.Errorf("question %d: unknown type %q", q.ID, q.Type)
}

// GenerateRoundWithCorrect produces the round material for q with the
// admin-specified correct answers overriding the stored ones. For color
// questions the confusable-exclusion rule applies to distractor sampling.
func (c *Catalog) GenerateRoundWithCorrect(rng *rand.Rand, q *Question, specified []string) (RoundChoices, error) {
	if len(specified) == 0 {
		return c.GenerateRound(rng, q)
	}

	switch q.Type {
	case QuestionTypeColor:
		correct := make([]Color, 0, len(specified))
		for _, s := range specified {
			col, err := ParseColor(s)
			if err != nil {
				return RoundChoices{}, fmt.Errorf("specified alternative: %w", err)
			}
			correct = append(correct, col)
		}
		return c.colorRound(rng, correct, true), nil

	case QuestionTypeYear:
		y, err := strconv.Atoi(specified[0])
		if err != nil {
			return RoundChoices{}, fmt.Errorf("specified alternative %q: not a year", specified[0])
		}
		return yearRound(rng, y), nil

	case QuestionTypeCharacter, QuestionTypeText:
		return optionRound(rng, q.Options, specified), nil
	}
	return RoundChoices{}, fmt.Errorf("question %d: unknown type %q", q.ID, q.Type)
}

func correctColors(q *Question) ([]Color, error) {
	var correct []Color
	for _, o := range q.Options {
		if !o.IsCorrect {
			continue
		}
		col, err := ParseColor(o.Text)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", q.ID, err)
		}
		correct = append(correct, col)
	}
	return correct, nil
}

// colorRound seeds the alternatives with every correct color, then fills up
// to AlternativeCount with weighted distractors from the rest of the
// palette. With applyExclusion set, colors confusable with a correct one
// are banned from the distractor pool.
func (c *Catalog) colorRound(rng *rand.Rand, correct []Color, applyExclusion bool) RoundChoices {
	held := make([]Color, 0, AlternativeCount)
	inHeld := make(map[Color]bool, AlternativeCount)
	for _, col := range correct {
		if !inHeld[col] {
			held = append(held, col)
			inHeld[col] = true
		}
	}

	if len(held) >= AlternativeCount {
		rng.Shuffle(len(held), func(i, j int) { held[i], held[j] = held[j], held[i] })
		held = held[:AlternativeCount]
	} else {
		var banned map[Color]bool
		if applyExclusion {
			banned = excludedDistractors(correct)
		}

		candidates := make([]Color, 0, len(Palette))
		for _, col := range Palette {
			if !inHeld[col] && !banned[col] {
				candidates = append(candidates, col)
			}
		}

		for len(held) < AlternativeCount && len(candidates) > 0 {
			pick := c.weights.sampleWeighted(rng, candidates)
			held = append(held, pick)
			inHeld[pick] = true
			for i, col := range candidates {
				if col == pick {
					candidates = append(candidates[:i], candidates[i+1:]...)
					break
				}
			}
		}
		rng.Shuffle(len(held), func(i, j int) { held[i], held[j] = held[j], held[i] })
	}

	rc := RoundChoices{
		Alternatives: make([]string, len(held)),
		Correct:      make([]string, len(correct)),
	}
	for i, col := range held {
		rc.Alternatives[i] = string(col)
	}
	for i, col := range correct {
		rc.Correct[i] = string(col)
	}
	return rc
}

func yearRound(rng *rand.Rand, year int) RoundChoices {
	alts := make([]string, 0, 2*yearTolerance+1)
	for y := year - yearTolerance; y <= year+yearTolerance; y++ {
		alts = append(alts, strconv.Itoa(y))
	}
	rng.Shuffle(len(alts), func(i, j int) { alts[i], alts[j] = alts[j], alts[i] })
	return RoundChoices{Alternatives: alts, Correct: []string{strconv.Itoa(year)}}
}

// optionRound builds the round from predefined options: correct answers
// first, then shuffled distractors up to AlternativeCount, final order
// shuffled. An overriding correct set replaces the stored is_correct flags.
func optionRound(rng *rand.Rand, options []QuestionOption, override []string) RoundChoices {
	correctSet := make(map[string]bool)
	if override != nil {
		for _, s := range override {
			correctSet[s] = true
		}
	} else {
		for _, o := range options {
			if o.IsCorrect {
				correctSet[o.Text] = true
			}
		}
	}

	var correct, distractors []string
	seen := make(map[string]bool)
	for s := range correctSet {
		correct = append(correct, s)
		seen[s] = true
	}
	for _, o := range options {
		if !seen[o.Text] && !correctSet[o.Text] {
			distractors = append(distractors, o.Text)
			seen[o.Text] = true
		}
	}

	rng.Shuffle(len(distractors), func(i, j int) { distractors[i], distractors[j] = distractors[j], distractors[i] })

	alts := append([]string{}, correct...)
	for _, d := range distractors {
		if len(alts) >= AlternativeCount {
			break
		}
		alts = append(alts, d)
	}
	if len(alts) > AlternativeCount {
		alts = alts[:AlternativeCount]
	}
	rng.Shuffle(len(alts), func(i, j int) { alts[i], alts[j] = alts[j], alts[i] })

	return RoundChoices{Alternatives: alts, Correct: correct}
}

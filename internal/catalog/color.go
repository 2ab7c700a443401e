package catalog

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
)

// Color is one entry of the closed 13-color palette used by color questions.
type Color string

const (
	ColorRed    Color = "Red"
	ColorGreen  Color = "Green"
	ColorBlue   Color = "Blue"
	ColorYellow Color = "Yellow"
	ColorPurple Color = "Purple"
	ColorGold   Color = "Gold"
	ColorSilver Color = "Silver"
	ColorPink   Color = "Pink"
	ColorBlack  Color = "Black"
	ColorWhite  Color = "White"
	ColorBrown  Color = "Brown"
	ColorOrange Color = "Orange"
	ColorGray   Color = "Gray"
)

// Palette lists every color in canonical order.
var Palette = []Color{
	ColorRed, ColorGreen, ColorBlue, ColorYellow, ColorPurple,
	ColorGold, ColorSilver, ColorPink, ColorBlack, ColorWhite,
	ColorBrown, ColorOrange, ColorGray,
}

// ParseColor parses s as a palette color, ASCII-case-insensitively.
// "Grey" is accepted as an alias for Gray.
func ParseColor(s string) (Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "red":
		return ColorRed, nil
	case "green":
		return ColorGreen, nil
	case "blue":
		return ColorBlue, nil
	case "yellow":
		return ColorYellow, nil
	case "purple":
		return ColorPurple, nil
	case "gold":
		return ColorGold, nil
	case "silver":
		return ColorSilver, nil
	case "pink":
		return ColorPink, nil
	case "black":
		return ColorBlack, nil
	case "white":
		return ColorWhite, nil
	case "brown":
		return ColorBrown, nil
	case "orange":
		return ColorOrange, nil
	case "gray", "grey":
		return ColorGray, nil
	}
	return "", fmt.Errorf("unknown color %q", s)
}

// weightFloor guarantees every palette color a non-zero sampling weight.
const weightFloor = 0.15

// ColorWeights is the frequency-derived sampling distribution over the
// palette. It is computed once at catalogue load and read-only afterwards.
type ColorWeights map[Color]float64

// computeColorWeights derives w(c) = sqrt(count(c)/N) + 0.15 where count(c)
// is the number of correct color options naming c across active color
// questions and N the total number of active questions.
func computeColorWeights(questions []*Question) ColorWeights {
	counts := make(map[Color]int, len(Palette))
	total := len(questions)

	for _, q := range questions {
		if q.Type != QuestionTypeColor {
			continue
		}
		for _, o := range q.Options {
			if !o.IsCorrect {
				continue
			}
			// Validated at load time, cannot fail here.
			if c, err := ParseColor(o.Text); err == nil {
				counts[c]++
			}
		}
	}

	weights := make(ColorWeights, len(Palette))
	for _, c := range Palette {
		w := weightFloor
		if total > 0 {
			w += math.Sqrt(float64(counts[c]) / float64(total))
		}
		weights[c] = w
	}
	return weights
}

// sampleWeighted draws one color from candidates proportionally to its
// weight. If the total weight of the candidates is non-positive the draw
// falls back to uniform.
func (w ColorWeights) sampleWeighted(rng *rand.Rand, candidates []Color) Color {
	var total float64
	for _, c := range candidates {
		total += w[c]
	}
	if total <= 0 {
		return candidates[rng.Intn(len(candidates))]
	}

	r := rng.Float64() * total
	for _, c := range candidates {
		r -= w[c]
		if r < 0 {
			return c
		}
	}
	return candidates[len(candidates)-1]
}

// exclusionGroups are the easily-confused color trios/pairs. When an admin
// specifies correct colors for a round, picking one member of a group bans
// the remaining members from the distractor pool.
var exclusionGroups = [][]Color{
	{ColorYellow, ColorGold, ColorOrange},
	{ColorSilver, ColorGray},
}

// excludedDistractors returns the colors banned from the distractor pool
// given the round's correct colors.
func excludedDistractors(correct []Color) map[Color]bool {
	banned := make(map[Color]bool)
	for _, group := range exclusionGroups {
		hit := false
		for _, c := range correct {
			for _, g := range group {
				if c == g {
					hit = true
				}
			}
		}
		if !hit {
			continue
		}
		for _, g := range group {
			banned[g] = true
		}
	}
	// Correct colors themselves are never banned, only their confusables.
	for _, c := range correct {
		delete(banned, c)
	}
	return banned
}

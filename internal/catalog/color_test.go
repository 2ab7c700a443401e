package catalog

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		input   string
		want    Color
		wantErr bool
	}{
		{"Red", ColorRed, false},
		{"red", ColorRed, false},
		{"RED", ColorRed, false},
		{" gold ", ColorGold, false},
		{"Gray", ColorGray, false},
		{"Grey", ColorGray, false},
		{"grey", ColorGray, false},
		{"Mauve", "", true},
		{"", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseColor(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPaletteComplete(t *testing.T) {
	assert.Len(t, Palette, 13)
	seen := make(map[Color]bool)
	for _, c := range Palette {
		assert.False(t, seen[c], "duplicate palette entry %s", c)
		seen[c] = true
	}
}

func TestComputeColorWeights(t *testing.T) {
	questions := colorQuestions(t, map[Color]int{
		ColorRed:  4,
		ColorBlue: 1,
	})

	weights := computeColorWeights(questions)
	n := float64(len(questions))

	// Every palette color gets at least the floor.
	for _, c := range Palette {
		assert.GreaterOrEqual(t, weights[c], weightFloor, "weight for %s", c)
	}

	assert.InDelta(t, math.Sqrt(4/n)+weightFloor, weights[ColorRed], 1e-9)
	assert.InDelta(t, math.Sqrt(1/n)+weightFloor, weights[ColorBlue], 1e-9)
	assert.InDelta(t, weightFloor, weights[ColorPink], 1e-9)

	// Sum identity: Σ w(c) = Σ sqrt(count(c)/N) + 0.15*|palette|.
	var sum, expected float64
	for _, c := range Palette {
		sum += weights[c]
	}
	expected = math.Sqrt(4/n) + math.Sqrt(1/n) + weightFloor*float64(len(Palette))
	assert.InDelta(t, expected, sum, 1e-9)
}

func TestComputeColorWeightsEmptyDataset(t *testing.T) {
	weights := computeColorWeights(nil)
	for _, c := range Palette {
		assert.InDelta(t, weightFloor, weights[c], 1e-9)
	}
}

func TestSampleWeightedCoversCandidates(t *testing.T) {
	weights := ColorWeights{ColorRed: 1.0, ColorBlue: 0.5, ColorGreen: 0.25}
	rng := rand.New(rand.NewSource(7))
	candidates := []Color{ColorRed, ColorBlue, ColorGreen}

	hits := make(map[Color]int)
	for i := 0; i < 2000; i++ {
		hits[weights.sampleWeighted(rng, candidates)]++
	}

	// Every candidate must be reachable, and heavier colors drawn more.
	for _, c := range candidates {
		assert.Positive(t, hits[c], "color %s never sampled", c)
	}
	assert.Greater(t, hits[ColorRed], hits[ColorGreen])
}

func TestSampleWeightedZeroTotalFallsBackToUniform(t *testing.T) {
	weights := ColorWeights{}
	rng := rand.New(rand.NewSource(1))
	candidates := []Color{ColorRed, ColorBlue}

	hits := make(map[Color]int)
	for i := 0; i < 200; i++ {
		hits[weights.sampleWeighted(rng, candidates)]++
	}
	assert.Positive(t, hits[ColorRed])
	assert.Positive(t, hits[ColorBlue])
}

func TestExcludedDistractors(t *testing.T) {
	tests := []struct {
		name    string
		correct []Color
		banned  []Color
		free    []Color
	}{
		{
			name:    "yellow bans gold and orange",
			correct: []Color{ColorYellow},
			banned:  []Color{ColorGold, ColorOrange},
			free:    []Color{ColorRed, ColorSilver, ColorGray},
		},
		{
			name:    "silver bans gray",
			correct: []Color{ColorSilver},
			banned:  []Color{ColorGray},
			free:    []Color{ColorGold, ColorOrange},
		},
		{
			name:    "both groups",
			correct: []Color{ColorGold, ColorGray},
			banned:  []Color{ColorYellow, ColorOrange, ColorSilver},
			free:    []Color{ColorRed, ColorBlue},
		},
		{
			name:    "no confusable correct",
			correct: []Color{ColorRed},
			banned:  nil,
			free:    []Color{ColorYellow, ColorGold, ColorOrange, ColorSilver, ColorGray},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			banned := excludedDistractors(tc.correct)
			for _, c := range tc.banned {
				assert.True(t, banned[c], "%s should be banned", c)
			}
			for _, c := range tc.free {
				assert.False(t, banned[c], "%s should not be banned", c)
			}
			// A correct color is never banned.
			for _, c := range tc.correct {
				assert.False(t, banned[c], "correct color %s banned", c)
			}
		})
	}
}

// colorQuestions builds one active color question per correct-answer count
// requested, e.g. {Red: 2} yields two questions whose correct option is Red.
func colorQuestions(t *testing.T, counts map[Color]int) []*Question {
	t.Helper()

	var questions []*Question
	id := 1
	for color, n := range counts {
		for i := 0; i < n; i++ {
			questions = append(questions, &Question{
				StoredQuestion: StoredQuestion{ID: id, MediaID: 1, Type: QuestionTypeColor, IsActive: true},
				Media:          Media{ID: 1, Title: "Track", Artist: "Artist"},
				Options: []QuestionOption{
					{ID: id * 10, QuestionID: id, Text: string(color), IsCorrect: true},
				},
			})
			id++
		}
	}
	return questions
}

package catalogue

import (
	"fmt"
	"math/rand"
	"strconv"
)

// GenerateAlternatives builds the frozen alternative list and the set of
// correct answers for a round, per spec §4.1. override, when non-empty,
// names the admin-supplied correct answers for a Color question and
// triggers the Yellow/Gold/Orange and Silver/Gray mutual-exclusion rule;
// it is ignored for every other question type.
func GenerateAlternatives(rng *rand.Rand, q Question, weights map[Color]float64, override []string) ([]string, map[string]struct{}, error) {
	switch q.Type {
	case TypeColor:
		return generateColorAlternatives(rng, q, weights, override)
	case TypeCharacter:
		return generateShuffledAlternatives(rng, q, 6)
	case TypeText:
		return generateShuffledAlternatives(rng, q, 6)
	case TypeYear:
		return generateYearAlternatives(rng, q)
	default:
		return nil, nil, fmt.Errorf("catalogue: unknown question type %v", q.Type)
	}
}

func generateColorAlternatives(rng *rand.Rand, q Question, weights map[Color]float64, override []string) ([]string, map[string]struct{}, error) {
	var correct []Color
	excluded := make(map[Color]struct{})

	if len(override) > 0 {
		for _, name := range override {
			c, ok := ParseColor(name)
			if !ok {
				continue
			}
			correct = append(correct, c)
			for _, x := range exclusionTrio(c) {
				excluded[x] = struct{}{}
			}
		}
		if len(correct) == 0 {
			return nil, nil, fmt.Errorf("catalogue: no valid specified colors in override")
		}
	} else {
		for _, o := range q.CorrectOptions() {
			if c, ok := ParseColor(o.Text); ok {
				correct = append(correct, c)
			}
		}
		if len(correct) == 0 {
			return nil, nil, fmt.Errorf("catalogue: color question %d has no parseable correct option", q.ID)
		}
	}

	included := make(map[Color]struct{}, len(correct))
	for _, c := range correct {
		included[c] = struct{}{}
	}

	result := append([]Color(nil), correct...)

	if len(result) >= 6 {
		rng.Shuffle(len(result), func(i, j int) { result[i], result[j] = result[j], result[i] })
		result = result[:6]
	} else {
		var candidates []Color
		for _, c := range Palette {
			if _, in := included[c]; in {
				continue
			}
			if _, ex := excluded[c]; ex {
				continue
			}
			candidates = append(candidates, c)
		}

		for len(result) < 6 && len(candidates) > 0 {
			pick := weightedPickColor(rng, candidates, weights)
			result = append(result, pick)
			included[pick] = struct{}{}

			filtered := candidates[:0]
			for _, c := range candidates {
				if c != pick {
					filtered = append(filtered, c)
				}
			}
			candidates = filtered
		}

		rng.Shuffle(len(result), func(i, j int) { result[i], result[j] = result[j], result[i] })
	}

	names := make([]string, len(result))
	correctSet := make(map[string]struct{}, len(correct))
	for i, c := range result {
		names[i] = c.String()
	}
	for _, c := range correct {
		correctSet[c.String()] = struct{}{}
	}

	return names, correctSet, nil
}

// weightedPickColor samples one color from candidates proportional to its
// weight, using rejection against the maximum candidate weight. If every
// candidate has non-positive weight, it samples uniformly.
func weightedPickColor(rng *rand.Rand, candidates []Color, weights map[Color]float64) Color {
	max := 0.0
	for _, c := range candidates {
		if w := weights[c]; w > max {
			max = w
		}
	}
	if max <= 0 {
		return candidates[rng.Intn(len(candidates))]
	}

	for {
		c := candidates[rng.Intn(len(candidates))]
		if rng.Float64()*max <= weights[c] {
			return c
		}
	}
}

func generateShuffledAlternatives(rng *rand.Rand, q Question, cap int) ([]string, map[string]struct{}, error) {
	if len(q.Options) == 0 {
		return nil, nil, fmt.Errorf("catalogue: question %d has no options", q.ID)
	}

	options := append([]Option(nil), q.Options...)
	rng.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })

	if len(options) > cap {
		options = options[:cap]
	}

	names := make([]string, len(options))
	correct := make(map[string]struct{})
	for i, o := range options {
		names[i] = o.Text
		if o.IsCorrect {
			correct[o.Text] = struct{}{}
		}
	}

	// The correct option(s) may have been truncated away by the cap; make
	// sure every correct answer for the question is actually present in
	// names, matching the round-context invariant that alternatives must
	// contain every correct alternative.
	for _, o := range q.Options {
		if !o.IsCorrect {
			continue
		}
		if _, present := correct[o.Text]; !present {
			correct[o.Text] = struct{}{}
			names = append(names, o.Text)
		}
	}

	return names, correct, nil
}

func generateYearAlternatives(rng *rand.Rand, q Question) ([]string, map[string]struct{}, error) {
	if q.Media.ReleaseYear == nil {
		return nil, nil, fmt.Errorf("catalogue: year question %d has no release year", q.ID)
	}

	year := *q.Media.ReleaseYear
	years := []int{year - 2, year - 1, year, year + 1, year + 2}
	rng.Shuffle(len(years), func(i, j int) { years[i], years[j] = years[j], years[i] })

	names := make([]string, len(years))
	for i, y := range years {
		names[i] = strconv.Itoa(y)
	}

	return names, map[string]struct{}{strconv.Itoa(year): {}}, nil
}

// ValidateAnswer reports whether answer is correct for q, per spec §4.1:
// exact text match for Color/Character/Text, ±2 years for Year.
func ValidateAnswer(q Question, answer string) bool {
	switch q.Type {
	case TypeYear:
		if q.Media.ReleaseYear == nil {
			return false
		}
		submitted, err := strconv.Atoi(answer)
		if err != nil {
			return false
		}
		diff := submitted - *q.Media.ReleaseYear
		if diff < 0 {
			diff = -diff
		}
		return diff <= 2
	default:
		for _, o := range q.CorrectOptions() {
			if o.Text == answer {
				return true
			}
		}
		return false
	}
}

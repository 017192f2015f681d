// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

// Package sentiment implements deterministic lexicon-based sentiment
// scoring with negation and intensifier handling. All functions are pure;
// batch and trend variants are reductions over the single-text analyzer.
package sentiment

import (
	"strings"
	"time"
	"unicode"
)

// Label classifies an analyzed text.
type Label string

const (
	LabelPositive Label = "positive"
	LabelNegative Label = "negative"
	LabelNeutral  Label = "neutral"
)

// Label thresholds on the normalized score.
const (
	positiveThreshold = 0.2
	negativeThreshold = -0.2
)

// Result is the outcome of analyzing one text.
type Result struct {
	// Score is (positive-negative)/(positive+negative), clamped to
	// [-1,1]; 0 when no sentiment words were found.
	Score float64 `json:"score"`

	Label Label `json:"label"`

	// Confidence is min(sentimentWords/(wordCount*0.3), 1).
	Confidence float64 `json:"confidence"`

	// Positive and Negative are the raw accumulated weights.
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`

	WordCount      int `json:"word_count"`
	SentimentWords int `json:"sentiment_words"`

	// Suggestions are improvement hints, present only for negative text.
	Suggestions []string `json:"suggestions,omitempty"`
}

// Analyze scores a single text. The pass is strictly left to right; the
// negation flag and intensifier multiplier apply only to the immediately
// following sentiment word and reset after every token.
func Analyze(text string) Result {
	tokens := tokenize(text)

	var positive, negative float64
	sentimentWords := 0
	multiplier := 1.0
	negated := false

	for _, token := range tokens {
		if m, ok := intensifiers[token]; ok {
			multiplier = m
			continue
		}
		if _, ok := negations[token]; ok {
			negated = true
			continue
		}

		if weight, ok := positiveWords[token]; ok {
			sentimentWords++
			if negated {
				negative += weight * multiplier
			} else {
				positive += weight * multiplier
			}
		} else if weight, ok := negativeWords[token]; ok {
			sentimentWords++
			if negated {
				// Negating a negative is a weak positive, not a
				// strong one.
				positive += weight * multiplier / 2
			} else {
				negative += weight * multiplier
			}
		}

		multiplier = 1.0
		negated = false
	}

	result := Result{
		Positive:       positive,
		Negative:       negative,
		WordCount:      len(tokens),
		SentimentWords: sentimentWords,
	}

	if total := positive + negative; total > 0 {
		result.Score = clamp((positive-negative)/total, -1, 1)
	}

	switch {
	case result.Score > positiveThreshold:
		result.Label = LabelPositive
	case result.Score < negativeThreshold:
		result.Label = LabelNegative
	default:
		result.Label = LabelNeutral
	}

	if result.WordCount > 0 {
		confidence := float64(sentimentWords) / (float64(result.WordCount) * 0.3)
		if confidence > 1 {
			confidence = 1
		}
		result.Confidence = confidence
	}

	if result.Label == LabelNegative {
		result.Suggestions = suggest(tokens)
	}

	return result
}

// tokenize lowercases, strips punctuation except apostrophes, and drops
// single-character tokens.
func tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '\'':
			return unicode.ToLower(r)
		default:
			return ' '
		}
	}, text)

	fields := strings.Fields(cleaned)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) > 1 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func suggest(tokens []string) []string {
	present := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		present[t] = struct{}{}
	}

	var out []string
	for _, rule := range suggestionRules {
		for _, kw := range rule.keywords {
			if _, ok := present[kw]; ok {
				out = append(out, rule.suggestion)
				break
			}
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Aggregate summarizes a batch of analyzed texts.
type Aggregate struct {
	Count         int     `json:"count"`
	AverageScore  float64 `json:"average_score"`
	PositiveCount int     `json:"positive_count"`
	NegativeCount int     `json:"negative_count"`
	NeutralCount  int     `json:"neutral_count"`
}

// AnalyzeBatch analyzes each text and reduces the results.
func AnalyzeBatch(texts []string) Aggregate {
	agg := Aggregate{Count: len(texts)}
	if len(texts) == 0 {
		return agg
	}

	sum := 0.0
	for _, text := range texts {
		r := Analyze(text)
		sum += r.Score
		switch r.Label {
		case LabelPositive:
			agg.PositiveCount++
		case LabelNegative:
			agg.NegativeCount++
		default:
			agg.NeutralCount++
		}
	}
	agg.AverageScore = sum / float64(len(texts))
	return agg
}

// Direction classifies a sentiment trend.
type Direction string

const (
	TrendImproving Direction = "improving"
	TrendDeclining Direction = "declining"
	TrendStable    Direction = "stable"
)

// slopeDeadband is the +/- slope band treated as stable.
const slopeDeadband = 0.05

// Sample is one time-ordered sentiment observation.
type Sample struct {
	Score     float64   `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}

// TrendResult is the outcome of a trend computation.
type TrendResult struct {
	Direction Direction `json:"direction"`
	Slope     float64   `json:"slope"`
}

// Trend fits a simple linear regression over the time-ordered scores
// (index as x) and classifies the slope against the stable deadband.
func Trend(samples []Sample) TrendResult {
	if len(samples) < 2 {
		return TrendResult{Direction: TrendStable}
	}

	n := float64(len(samples))
	var sumX, sumY, sumXY, sumXX float64
	for i, s := range samples {
		x := float64(i)
		sumX += x
		sumY += s.Score
		sumXY += x * s.Score
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return TrendResult{Direction: TrendStable}
	}
	slope := (n*sumXY - sumX*sumY) / denom

	result := TrendResult{Slope: slope}
	switch {
	case slope > slopeDeadband:
		result.Direction = TrendImproving
	case slope < -slopeDeadband:
		result.Direction = TrendDeclining
	default:
		result.Direction = TrendStable
	}
	return result
}

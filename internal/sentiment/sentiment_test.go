// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

package sentiment

import (
	"math"
	"testing"
	"time"
)

func TestAnalyze_Negation(t *testing.T) {
	notBad := Analyze("not bad")
	bad := Analyze("bad")

	if notBad.Score <= bad.Score {
		t.Errorf("negated negative must beat plain negative: %v <= %v", notBad.Score, bad.Score)
	}
	if notBad.Score <= 0 {
		t.Errorf("negated negative must lean positive, got %v", notBad.Score)
	}
	if notBad.Positive != 1 {
		// "bad" weighs 2; negation credits half to positive.
		t.Errorf("negated negative must contribute half weight, got %v", notBad.Positive)
	}
}

func TestAnalyze_NegatedPositive(t *testing.T) {
	notGood := Analyze("not good")
	if notGood.Score >= 0 {
		t.Errorf("negated positive must lean negative, got %v", notGood.Score)
	}
}

func TestAnalyze_Intensifier(t *testing.T) {
	veryGood := Analyze("very good")
	good := Analyze("good")

	if veryGood.Positive <= good.Positive {
		t.Errorf("intensified positive weight %v must exceed %v", veryGood.Positive, good.Positive)
	}
}

func TestAnalyze_ModifierAppliesToNextWordOnly(t *testing.T) {
	// "very" modifies "clean" only; "good" gets base weight.
	r := Analyze("very clean and good")
	want := 2*1.5 + 2.0
	if math.Abs(r.Positive-want) > 1e-9 {
		t.Errorf("positive = %v, want %v", r.Positive, want)
	}

	// A modifier followed by a non-sentiment word is consumed.
	r = Analyze("very long good")
	if math.Abs(r.Positive-2.0) > 1e-9 {
		t.Errorf("modifier must not persist across words: positive = %v, want 2", r.Positive)
	}
}

func TestAnalyze_NoSentimentWords(t *testing.T) {
	r := Analyze("the appointment is on tuesday")
	if r.Score != 0 || r.Label != LabelNeutral {
		t.Errorf("no sentiment words must yield neutral zero, got %+v", r)
	}
	if r.Confidence != 0 {
		t.Errorf("confidence must be 0 without sentiment words, got %v", r.Confidence)
	}
}

func TestAnalyze_Tokenization(t *testing.T) {
	// Punctuation stripped, apostrophes kept, single characters dropped.
	r := Analyze("I didn't like it... BAD!!")
	if r.Label != LabelNegative {
		t.Errorf("expected negative label, got %+v", r)
	}
	// "I" is dropped; didn't/like/it/bad remain.
	if r.WordCount != 4 {
		t.Errorf("word count = %d, want 4", r.WordCount)
	}
}

func TestAnalyze_Labels(t *testing.T) {
	tests := []struct {
		text string
		want Label
	}{
		{"excellent treatment, very relaxing", LabelPositive},
		{"terrible experience, rude staff", LabelNegative},
		{"good but expensive", LabelNeutral},
	}
	for _, tc := range tests {
		if got := Analyze(tc.text).Label; got != tc.want {
			t.Errorf("Analyze(%q).Label = %s, want %s", tc.text, got, tc.want)
		}
	}
}

func TestAnalyze_Confidence(t *testing.T) {
	// 2 sentiment words over 4 tokens: 2/(4*0.3) capped at 1.
	r := Analyze("great service terrible wait")
	if r.Confidence != 1 {
		t.Errorf("confidence = %v, want capped 1", r.Confidence)
	}

	r = Analyze("good morning we arrived early for the first session today")
	if r.Confidence >= 1 {
		t.Errorf("sparse sentiment must not cap confidence, got %v", r.Confidence)
	}
}

func TestAnalyze_Suggestions(t *testing.T) {
	r := Analyze("terrible experience, rude staff and a long wait")
	if r.Label != LabelNegative {
		t.Fatalf("expected negative label, got %+v", r)
	}
	if len(r.Suggestions) != 2 {
		t.Fatalf("expected wait and staff suggestions, got %v", r.Suggestions)
	}

	// Positive text never carries suggestions.
	if s := Analyze("wonderful staff").Suggestions; len(s) != 0 {
		t.Errorf("positive text must carry no suggestions, got %v", s)
	}
}

func TestAnalyzeBatch(t *testing.T) {
	agg := AnalyzeBatch([]string{
		"excellent and relaxing",
		"terrible and rude",
		"the appointment is on tuesday",
	})
	if agg.Count != 3 {
		t.Errorf("count = %d, want 3", agg.Count)
	}
	if agg.PositiveCount != 1 || agg.NegativeCount != 1 || agg.NeutralCount != 1 {
		t.Errorf("label counts = %+v", agg)
	}

	if empty := AnalyzeBatch(nil); empty.Count != 0 || empty.AverageScore != 0 {
		t.Errorf("empty batch must be zero, got %+v", empty)
	}
}

func TestTrend(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	at := func(i int) time.Time { return base.Add(time.Duration(i) * time.Hour) }

	improving := Trend([]Sample{
		{Score: -0.5, Timestamp: at(0)},
		{Score: 0, Timestamp: at(1)},
		{Score: 0.5, Timestamp: at(2)},
	})
	if improving.Direction != TrendImproving {
		t.Errorf("expected improving, got %+v", improving)
	}

	declining := Trend([]Sample{
		{Score: 0.6, Timestamp: at(0)},
		{Score: 0.1, Timestamp: at(1)},
		{Score: -0.4, Timestamp: at(2)},
	})
	if declining.Direction != TrendDeclining {
		t.Errorf("expected declining, got %+v", declining)
	}

	// Slope within the deadband reads as stable.
	stable := Trend([]Sample{
		{Score: 0.10, Timestamp: at(0)},
		{Score: 0.12, Timestamp: at(1)},
		{Score: 0.11, Timestamp: at(2)},
	})
	if stable.Direction != TrendStable {
		t.Errorf("expected stable, got %+v", stable)
	}

	if single := Trend([]Sample{{Score: 1, Timestamp: at(0)}}); single.Direction != TrendStable {
		t.Errorf("single sample must be stable, got %+v", single)
	}
}

// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

package sentiment

// positiveWords maps sentiment-bearing words to their weights.
var positiveWords = map[string]float64{
	"good":        2,
	"great":       3,
	"excellent":   3,
	"amazing":     3,
	"wonderful":   3,
	"best":        3,
	"love":        3,
	"loved":       3,
	"recommend":   3,
	"nice":        2,
	"helpful":     2,
	"friendly":    2,
	"professional": 2,
	"clean":       2,
	"relaxing":    2,
	"soothing":    2,
	"effective":   2,
	"satisfied":   2,
	"happy":       2,
	"comfortable": 2,
	"caring":      2,
	"gentle":      2,
	"calm":        1,
	"fresh":       1,
	"fine":        1,
	"okay":        1,
}

var negativeWords = map[string]float64{
	"terrible":      3,
	"awful":         3,
	"horrible":      3,
	"worst":         3,
	"hate":          3,
	"hated":         3,
	"rude":          3,
	"dirty":         3,
	"unhygienic":    3,
	"useless":       3,
	"overpriced":    3,
	"disappointing": 3,
	"disappointed":  3,
	"bad":           2,
	"poor":          2,
	"expensive":     2,
	"costly":        2,
	"slow":          2,
	"late":          2,
	"painful":       2,
	"confusing":     2,
	"unclear":       2,
	"unprofessional": 2,
	"unfriendly":    2,
	"crowded":       2,
	"noisy":         2,
	"wait":          1,
	"waiting":       1,
	"delay":         1,
}

// intensifiers multiply the weight of the immediately following sentiment
// word.
var intensifiers = map[string]float64{
	"very":       1.5,
	"really":     1.5,
	"extremely":  2.0,
	"absolutely": 2.0,
	"totally":    1.8,
	"highly":     1.5,
	"so":         1.3,
	"too":        1.3,
	"quite":      1.2,
}

// negations flip the immediately following sentiment word.
var negations = map[string]struct{}{
	"not":     {},
	"no":      {},
	"never":   {},
	"don't":   {},
	"doesn't": {},
	"didn't":  {},
	"won't":   {},
	"can't":   {},
	"isn't":   {},
	"wasn't":  {},
	"aren't":  {},
	"weren't": {},
	"hardly":  {},
	"barely":  {},
}

// suggestionRules map complaint keywords to improvement suggestions,
// surfaced only for negative-labelled text.
var suggestionRules = []struct {
	keywords   []string
	suggestion string
}{
	{
		keywords:   []string{"wait", "waiting", "slow", "late", "delay", "queue"},
		suggestion: "Review appointment scheduling to reduce waiting times",
	},
	{
		keywords:   []string{"price", "expensive", "costly", "overpriced", "cost"},
		suggestion: "Clarify package pricing and highlight value options",
	},
	{
		keywords:   []string{"staff", "rude", "unfriendly", "unprofessional", "receptionist"},
		suggestion: "Reinforce staff courtesy and hospitality training",
	},
	{
		keywords:   []string{"confusing", "unclear", "complicated", "instructions"},
		suggestion: "Simplify treatment explanations and pre-visit instructions",
	},
	{
		keywords:   []string{"dirty", "unhygienic", "unclean", "hygiene", "smell"},
		suggestion: "Audit treatment room cleanliness and hygiene protocols",
	},
}

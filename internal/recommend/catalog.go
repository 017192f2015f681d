// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

package recommend

// Service is a catalog entry. The catalog is fixed and in-memory; it is
// not user data and carries no retention requirements.
type Service struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Category       string   `json:"category"`
	Tags           []string `json:"tags"`
	DoshaAffinity  []string `json:"dosha_affinity"`
	Popularity     float64  `json:"popularity"`
	ConversionRate float64  `json:"conversion_rate"`
}

func (s Service) hasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (s Service) hasDosha(dosha string) bool {
	for _, d := range s.DoshaAffinity {
		if d == dosha {
			return true
		}
	}
	return false
}

// DefaultCatalog returns the built-in service catalog.
func DefaultCatalog() []Service {
	return []Service{
		{
			ID:             "dosha-assessment",
			Name:           "Dosha Assessment",
			Category:       "assessment",
			Tags:           []string{"dosha", "quiz", "first-visit", "wellness"},
			DoshaAffinity:  []string{"vata", "pitta", "kapha"},
			Popularity:     95,
			ConversionRate: 4.2,
		},
		{
			ID:             "ayurvedic-consultation",
			Name:           "Ayurvedic Consultation",
			Category:       "consultation",
			Tags:           []string{"consultation", "diagnosis", "treatment-plan"},
			DoshaAffinity:  []string{"vata", "pitta", "kapha"},
			Popularity:     88,
			ConversionRate: 6.5,
		},
		{
			ID:             "panchakarma",
			Name:           "Panchakarma Detox",
			Category:       "treatment",
			Tags:           []string{"detox", "cleanse", "panchakarma"},
			DoshaAffinity:  []string{"pitta", "kapha"},
			Popularity:     72,
			ConversionRate: 3.1,
		},
		{
			ID:             "abhyanga",
			Name:           "Abhyanga Massage",
			Category:       "treatment",
			Tags:           []string{"massage", "oil", "relaxation"},
			DoshaAffinity:  []string{"vata"},
			Popularity:     81,
			ConversionRate: 5.4,
		},
		{
			ID:             "shirodhara",
			Name:           "Shirodhara Therapy",
			Category:       "treatment",
			Tags:           []string{"relaxation", "stress", "sleep"},
			DoshaAffinity:  []string{"vata", "pitta"},
			Popularity:     64,
			ConversionRate: 2.8,
		},
		{
			ID:             "diet-plan",
			Name:           "Personalized Diet Plan",
			Category:       "program",
			Tags:           []string{"diet", "nutrition", "lifestyle"},
			DoshaAffinity:  []string{"kapha", "pitta"},
			Popularity:     70,
			ConversionRate: 4.9,
		},
		{
			ID:             "yoga-therapy",
			Name:           "Yoga Therapy Sessions",
			Category:       "program",
			Tags:           []string{"yoga", "movement", "wellness"},
			DoshaAffinity:  []string{"vata", "kapha"},
			Popularity:     77,
			ConversionRate: 3.6,
		},
		{
			ID:             "herbal-remedies",
			Name:           "Herbal Remedy Starter Kit",
			Category:       "product",
			Tags:           []string{"herbs", "supplements", "first-visit"},
			DoshaAffinity:  []string{"vata", "pitta", "kapha"},
			Popularity:     58,
			ConversionRate: 7.2,
		},
	}
}

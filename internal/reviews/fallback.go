package reviews

import "github.com/ImGenos/Dm-Placards/internal/core/domain"

// fallbackSnapshot is the fixed review content served when neither the
// live API nor the cache can produce data. Kept as a dataset so content or
// locale changes stay out of the orchestration logic.
var fallbackSnapshot = domain.PlaceSnapshot{
	Name:         "Dm Placards",
	Rating:       4.8,
	TotalRatings: 27,
	PlaceID:      "fallback",
	Reviews: []domain.Review{
		{
			AuthorName:   "Marie L.",
			Language:     "fr",
			Rating:       5,
			RelativeTime: "il y a un mois",
			Text:         "Travail soigné et équipe à l'écoute. Notre dressing sur mesure est magnifique.",
			Time:         3,
		},
		{
			AuthorName:   "Thomas B.",
			Language:     "fr",
			Rating:       5,
			RelativeTime: "il y a 2 mois",
			Text:         "Très professionnel, délais respectés. Je recommande sans hésiter.",
			Time:         2,
		},
		{
			AuthorName:   "Sophie M.",
			Language:     "fr",
			Rating:       4,
			RelativeTime: "il y a 3 mois",
			Text:         "Beau résultat pour notre placard d'entrée, finitions de qualité.",
			Time:         1,
		},
	},
}

// FallbackSnapshot returns a copy of the fixed fallback content.
func FallbackSnapshot() *domain.PlaceSnapshot {
	snap := fallbackSnapshot.Clone()
	snap.Source = OutcomeFallback
	return snap
}

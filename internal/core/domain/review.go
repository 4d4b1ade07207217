package domain

import "sort"

// Review is a single third-party review as returned by the Places API.
// Rating is nominally an integer 1-5 but upstream occasionally delivers
// fractional or out-of-range values, so it is kept as a float and only
// compared, never indexed.
type Review struct {
	AuthorName      string  `json:"author_name"`
	AuthorURL       string  `json:"author_url,omitempty"`
	Language        string  `json:"language,omitempty"`
	ProfilePhotoURL string  `json:"profile_photo_url,omitempty"`
	Rating          float64 `json:"rating"`
	RelativeTime    string  `json:"relative_time_description,omitempty"`
	Text            string  `json:"text,omitempty"`

	// Time is the upstream epoch timestamp (seconds or milliseconds,
	// upstream-defined). Treated as opaque and used only for ordering.
	Time int64 `json:"time"`
}

// PlaceSnapshot is the aggregate review data for one place at a point in
// time. A snapshot is immutable once built; a fresh fetch produces a new
// snapshot rather than mutating an existing one.
type PlaceSnapshot struct {
	Name         string   `json:"name"`
	Rating       float64  `json:"rating"`
	TotalRatings int      `json:"user_ratings_total"`
	PlaceID      string   `json:"place_id"`
	Reviews      []Review `json:"reviews"`

	// Source records where the snapshot came from: live, cache, stale or
	// fallback. Informational only, not persisted.
	Source string `json:"source,omitempty"`
}

// Clone returns a deep copy so callers can hand out snapshots without
// sharing the reviews slice.
func (s *PlaceSnapshot) Clone() *PlaceSnapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Reviews = make([]Review, len(s.Reviews))
	copy(out.Reviews, s.Reviews)
	return &out
}

// SelectReviews filters reviews to rating >= minRating, sorts them by
// timestamp descending (stable, so ties keep input order) and caps the
// result at max entries. The filter runs before the cap, so a recent
// low-rated review never displaces a qualifying one except through the cap.
func SelectReviews(reviews []Review, minRating float64, max int) []Review {
	selected := make([]Review, 0, len(reviews))
	for _, r := range reviews {
		if r.Rating >= minRating {
			selected = append(selected, r)
		}
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Time > selected[j].Time
	})

	if max > 0 && len(selected) > max {
		selected = selected[:max]
	}
	return selected
}

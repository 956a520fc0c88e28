// Package matching turns swipe history into a taste vector and ranks hotels against it.
package matching

import (
	"bytes"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/briangreenhill/nomadstay/internal/models"
)

// truthWeight is the share of a match score taken from the hotel's truth score
const truthWeight = 0.3

// BuildTaste averages feature exposure over a user's swipes: a like adds the
// hotel's feature values, a pass subtracts them. hotels maps hotel id to the
// hotel swiped on; swipes on unknown hotels are skipped.
func BuildTaste(userID uuid.UUID, swipes []models.Swipe, hotels map[uuid.UUID]models.Hotel) models.TasteVector {
	sums := make(map[string]float64)
	samples := 0
	for _, s := range swipes {
		h, ok := hotels[s.HotelID]
		if !ok {
			continue
		}
		sign := -1.0
		if s.Liked {
			sign = 1.0
		}
		for f, v := range h.Features {
			sums[f] += sign * clamp(v, 0, 1)
		}
		samples++
	}

	weights := make(map[string]float64, len(sums))
	if samples > 0 {
		for f, s := range sums {
			weights[f] = math.Round(s/float64(samples)*1000) / 1000
		}
	}
	return models.TasteVector{UserID: userID, Weights: weights, Samples: samples}
}

// Score rates a hotel for a taste vector on a 0-100 scale. Taste affinity
// centres on 50; the hotel's truth score is blended in.
func Score(taste models.TasteVector, h models.Hotel) float64 {
	// summed in name order so the float result does not depend on map order
	names := make([]string, 0, len(taste.Weights))
	for f := range taste.Weights {
		names = append(names, f)
	}
	sort.Strings(names)

	affinity := 0.0
	for _, f := range names {
		affinity += taste.Weights[f] * clamp(h.Features[f], 0, 1)
	}
	if len(names) > 0 {
		affinity /= float64(len(names))
	}
	tasteScore := clamp(50+50*affinity, 0, 100)
	truth := h.Aggregate.TruthScore
	if h.Aggregate.ContributionCount == 0 {
		truth = 50
	}
	return math.Round(((1-truthWeight)*tasteScore+truthWeight*truth)*10) / 10
}

// Filter keeps hotels meeting hard preference constraints
func Filter(prefs models.Preferences, hotels []models.Hotel) []models.Hotel {
	out := make([]models.Hotel, 0, len(hotels))
	for _, h := range hotels {
		agg := h.Aggregate
		if prefs.MinWifiMbps > 0 && agg.AvgWifiDownload != nil && *agg.AvgWifiDownload < prefs.MinWifiMbps {
			continue
		}
		if prefs.QuietRequired && agg.AvgNoiseLevel != nil && *agg.AvgNoiseLevel > 50 {
			continue
		}
		if !hasAll(h, prefs.MustHave) {
			continue
		}
		out = append(out, h)
	}
	return out
}

// Rank scores hotels and returns the best limit of them, highest first.
// Equal scores are ordered by hotel id so results are stable.
func Rank(taste models.TasteVector, hotels []models.Hotel, limit int) []models.Match {
	matches := make([]models.Match, 0, len(hotels))
	for _, h := range hotels {
		matches = append(matches, models.Match{
			HotelID:    h.ID,
			Name:       h.Name,
			Score:      Score(taste, h),
			TruthScore: h.Aggregate.TruthScore,
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return bytes.Compare(matches[i].HotelID[:], matches[j].HotelID[:]) < 0
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func hasAll(h models.Hotel, features []string) bool {
	for _, f := range features {
		if h.Features[f] <= 0 {
			return false
		}
	}
	return true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

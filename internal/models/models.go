// Package models holds the payload types shared by the cache adapters, the
// datastore and the inventory client.
package models

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/briangreenhill/nomadstay/internal/truthscore"
)

type City struct {
	Slug    string `json:"slug"`
	Name    string `json:"name"`
	Country string `json:"country"`
}

// Hotel is the hotel record as served to clients, including its cached
// reputation snapshot.
type Hotel struct {
	ID       uuid.UUID `json:"id"`
	CitySlug string    `json:"city_slug"`
	Name     string    `json:"name"`
	Address  string    `json:"address,omitempty"`
	Stars    int       `json:"stars"`

	// Features are provider supplied tags scored 0-1 (e.g. "coworking": 1)
	Features map[string]float64 `json:"features,omitempty"`

	Aggregate truthscore.HotelAggregate `json:"aggregate"`
}

type Rate struct {
	HotelID      uuid.UUID `json:"hotel_id"`
	RoomType     string    `json:"room_type"`
	CheckIn      string    `json:"check_in"`
	CheckOut     string    `json:"check_out"`
	Guests       int       `json:"guests"`
	Currency     string    `json:"currency"`
	NightlyCents int64     `json:"nightly_cents"`
	Refundable   bool      `json:"refundable"`
}

// RateQuery identifies a live rate lookup
type RateQuery struct {
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
	Guests   int    `json:"guests"`
}

type Preferences struct {
	UserID          uuid.UUID `json:"user_id"`
	MaxNightlyUSD   int       `json:"max_nightly_usd"`
	MinWifiMbps     float64   `json:"min_wifi_mbps"`
	QuietRequired   bool      `json:"quiet_required"`
	MustHave        []string  `json:"must_have,omitempty"`
	PreferredCities []string  `json:"preferred_cities,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Swipe struct {
	UserID    uuid.UUID `json:"user_id"`
	HotelID   uuid.UUID `json:"hotel_id"`
	Liked     bool      `json:"liked"`
	CreatedAt time.Time `json:"created_at"`
}

// TasteVector is a user's learned affinity per hotel feature, each in [-1, 1]
type TasteVector struct {
	UserID  uuid.UUID          `json:"user_id"`
	Weights map[string]float64 `json:"weights"`
	Samples int                `json:"samples"`
}

type Match struct {
	HotelID    uuid.UUID `json:"hotel_id"`
	Name       string    `json:"name"`
	Score      float64   `json:"score"`
	TruthScore float64   `json:"truth_score"`
}

// SearchParams are the inputs of a match search
type SearchParams struct {
	City     string   `json:"city"`
	CheckIn  string   `json:"check_in"`
	CheckOut string   `json:"check_out"`
	Guests   int      `json:"guests"`
	Filters  []string `json:"filters,omitempty"`
}

// Params flattens the search into string pairs. Filters go through
// NormalizeFilters so that their order and case never matter.
func (s SearchParams) Params() map[string]string {
	return map[string]string{
		"city":      s.City,
		"check_in":  s.CheckIn,
		"check_out": s.CheckOut,
		"guests":    strconv.Itoa(s.Guests),
		"filters":   strings.Join(NormalizeFilters(s.Filters), ","),
	}
}

// NormalizeFilters lower-cases and trims feature names, splits comma lists,
// drops empty and repeated names and sorts the result. Hotel feature tags
// are lower case.
func NormalizeFilters(filters []string) []string {
	seen := make(map[string]bool, len(filters))
	out := make([]string, 0, len(filters))
	for _, raw := range filters {
		for _, f := range strings.Split(raw, ",") {
			f = strings.ToLower(strings.TrimSpace(f))
			if f == "" || seen[f] {
				continue
			}
			seen[f] = true
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

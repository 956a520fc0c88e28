// Package truthscore folds verified post-stay contributions into a single
// confidence-weighted reputation score per hotel.
package truthscore

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Contribution is one guest's post-stay report for one hotel. Every
// measurement is optional; nil means "not reported", never zero.
type Contribution struct {
	ID        uuid.UUID `json:"id"`
	HotelID   uuid.UUID `json:"hotel_id"`
	BookingID uuid.UUID `json:"booking_id"`
	UserID    uuid.UUID `json:"user_id"`

	WifiDownloadMbps *float64 `json:"wifi_download_mbps,omitempty"`
	WifiUploadMbps   *float64 `json:"wifi_upload_mbps,omitempty"`
	WifiPingMs       *float64 `json:"wifi_ping_ms,omitempty"`
	NoiseLevel       *float64 `json:"noise_level,omitempty"` // 0 (silent) - 100

	HotWater         *bool `json:"hot_water,omitempty"`
	BlackoutCurtains *bool `json:"blackout_curtains,omitempty"`
	QuietRoom        *bool `json:"quiet_room,omitempty"`
	AC               *bool `json:"ac,omitempty"`
	WorkDesk         *bool `json:"work_desk,omitempty"`

	Notes         string `json:"notes,omitempty"`
	OverallRating *int   `json:"overall_rating,omitempty"` // 1-5

	// Verified is set at creation iff the contribution is tied to a completed booking
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}

// Amenity names a boolean amenity field of a Contribution
type Amenity string

const (
	AmenityHotWater         Amenity = "hot_water"
	AmenityBlackoutCurtains Amenity = "blackout_curtains"
	AmenityQuietRoom        Amenity = "quiet_room"
	AmenityAC               Amenity = "ac"
	AmenityWorkDesk         Amenity = "work_desk"
)

// Amenities lists every amenity in a fixed order
var Amenities = []Amenity{AmenityHotWater, AmenityBlackoutCurtains, AmenityQuietRoom, AmenityAC, AmenityWorkDesk}

// Report returns the contribution's answer for a, or nil if not reported
func (c Contribution) Report(a Amenity) *bool {
	switch a {
	case AmenityHotWater:
		return c.HotWater
	case AmenityBlackoutCurtains:
		return c.BlackoutCurtains
	case AmenityQuietRoom:
		return c.QuietRoom
	case AmenityAC:
		return c.AC
	case AmenityWorkDesk:
		return c.WorkDesk
	}
	return nil
}

// Verdict is the aggregated state of one amenity
type Verdict int

const (
	// Unknown means no verified contribution reported the amenity
	Unknown Verdict = iota
	Verified
	Unverified
)

func (v Verdict) String() string {
	switch v {
	case Verified:
		return "verified"
	case Unverified:
		return "unverified"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes Unknown as null, Verified as true and Unverified as false
func (v Verdict) MarshalJSON() ([]byte, error) {
	switch v {
	case Verified:
		return []byte("true"), nil
	case Unverified:
		return []byte("false"), nil
	case Unknown:
		return []byte("null"), nil
	}
	return nil, fmt.Errorf("invalid verdict %d", int(v))
}

// UnmarshalJSON accepts true, false or null
func (v *Verdict) UnmarshalJSON(b []byte) error {
	var ok *bool
	if err := json.Unmarshal(b, &ok); err != nil {
		return fmt.Errorf("decode verdict: %w", err)
	}
	switch {
	case ok == nil:
		*v = Unknown
	case *ok:
		*v = Verified
	default:
		*v = Unverified
	}
	return nil
}

// AmenityVerdicts holds one verdict per amenity
type AmenityVerdicts struct {
	HotWater         Verdict `json:"hot_water"`
	BlackoutCurtains Verdict `json:"blackout_curtains"`
	QuietRoom        Verdict `json:"quiet_room"`
	AC               Verdict `json:"ac"`
	WorkDesk         Verdict `json:"work_desk"`
}

// Get returns the verdict for a
func (av AmenityVerdicts) Get(a Amenity) Verdict {
	switch a {
	case AmenityHotWater:
		return av.HotWater
	case AmenityBlackoutCurtains:
		return av.BlackoutCurtains
	case AmenityQuietRoom:
		return av.QuietRoom
	case AmenityAC:
		return av.AC
	case AmenityWorkDesk:
		return av.WorkDesk
	}
	return Unknown
}

func (av *AmenityVerdicts) set(a Amenity, v Verdict) {
	switch a {
	case AmenityHotWater:
		av.HotWater = v
	case AmenityBlackoutCurtains:
		av.BlackoutCurtains = v
	case AmenityQuietRoom:
		av.QuietRoom = v
	case AmenityAC:
		av.AC = v
	case AmenityWorkDesk:
		av.WorkDesk = v
	}
}

// HotelAggregate is a hotel's reputation snapshot. It is always recomputed
// wholesale from the full contribution set, never patched.
type HotelAggregate struct {
	HotelID           uuid.UUID `json:"hotel_id"`
	TruthScore        float64   `json:"truth_score"`      // 0-100
	TruthConfidence   float64   `json:"truth_confidence"` // 0-1
	RawScore          float64   `json:"raw_score"`        // score before confidence weighting
	ContributionCount int       `json:"contribution_count"`

	AvgWifiDownload *float64 `json:"avg_wifi_download"`
	AvgWifiUpload   *float64 `json:"avg_wifi_upload"`
	AvgWifiPing     *float64 `json:"avg_wifi_ping"`
	WifiTestCount   int      `json:"wifi_test_count"`
	AvgNoiseLevel   *float64 `json:"avg_noise_level"`
	NoiseTestCount  int      `json:"noise_test_count"`

	Amenities AmenityVerdicts `json:"amenities"`

	CommunityRating *float64 `json:"community_rating"`
	RatingCount     int      `json:"rating_count"`
}

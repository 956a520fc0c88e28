package truthscore

import (
	"bytes"
	"math"
	"sort"

	"github.com/google/uuid"
)

const (
	// NeutralBaseline is the score of a hotel nobody has reported on
	NeutralBaseline = 50.0

	// confidenceScale is the contribution count at which confidence reaches 1-1/e
	confidenceScale = 5.0

	// saturation points for normalizing wifi throughput to 0-100
	downloadFullMbps = 100.0
	uploadFullMbps   = 50.0
)

// Component weights of the raw score. Components without data drop out and
// the remaining weights are renormalized.
const (
	weightDownload  = 0.30
	weightUpload    = 0.10
	weightQuiet     = 0.20
	weightAmenities = 0.15
	weightRating    = 0.25
)

// Confidence maps a verified contribution count to [0, 1]. It is 0 for no
// contributions, about 0.33 for two, 0.86 for ten, and never decreases.
func Confidence(n int) float64 {
	if n <= 0 {
		return 0
	}
	return 1 - math.Exp(-float64(n)/confidenceScale)
}

// Compute builds the aggregate for hotelID from contributions. Unverified
// contributions are ignored. The result depends only on the set of
// contributions, not their order.
func Compute(hotelID uuid.UUID, contributions []Contribution) HotelAggregate {
	verified := make([]Contribution, 0, len(contributions))
	for _, c := range contributions {
		if c.Verified {
			verified = append(verified, c)
		}
	}
	// fixed summation order keeps float results identical across runs
	sort.Slice(verified, func(i, j int) bool {
		if !verified[i].CreatedAt.Equal(verified[j].CreatedAt) {
			return verified[i].CreatedAt.Before(verified[j].CreatedAt)
		}
		return bytes.Compare(verified[i].ID[:], verified[j].ID[:]) < 0
	})

	var download, upload, ping, noise, rating mean
	yes := make(map[Amenity]int, len(Amenities))
	no := make(map[Amenity]int, len(Amenities))

	for _, c := range verified {
		download.add(nonNegative(c.WifiDownloadMbps))
		upload.add(nonNegative(c.WifiUploadMbps))
		ping.add(nonNegative(c.WifiPingMs))
		noise.add(inRange(c.NoiseLevel, 0, 100))
		if c.OverallRating != nil && *c.OverallRating >= 1 && *c.OverallRating <= 5 {
			r := float64(*c.OverallRating)
			rating.add(&r)
		}
		for _, a := range Amenities {
			if rep := c.Report(a); rep != nil {
				if *rep {
					yes[a]++
				} else {
					no[a]++
				}
			}
		}
	}

	agg := HotelAggregate{
		HotelID:           hotelID,
		ContributionCount: len(verified),
		AvgWifiDownload:   download.value(),
		AvgWifiUpload:     upload.value(),
		AvgWifiPing:       ping.value(),
		WifiTestCount:     download.n,
		AvgNoiseLevel:     noise.value(),
		NoiseTestCount:    noise.n,
		CommunityRating:   rating.value(),
		RatingCount:       rating.n,
	}
	for _, a := range Amenities {
		agg.Amenities.set(a, majority(yes[a], no[a]))
	}

	conf := Confidence(agg.ContributionCount)
	raw := rawScore(agg)
	agg.TruthConfidence = round(conf, 4)
	agg.RawScore = round(raw, 1)
	agg.TruthScore = round(clamp(conf*raw+(1-conf)*NeutralBaseline, 0, 100), 1)
	return agg
}

// majority resolves an amenity vote. A tie counts as Unverified: an amenity
// is only advertised when most guests confirmed it.
func majority(yes, no int) Verdict {
	switch {
	case yes+no == 0:
		return Unknown
	case yes > no:
		return Verified
	default:
		return Unverified
	}
}

func rawScore(agg HotelAggregate) float64 {
	var sum, weights float64
	add := func(w, v float64) {
		sum += w * clamp(v, 0, 100)
		weights += w
	}

	if agg.AvgWifiDownload != nil {
		add(weightDownload, math.Min(*agg.AvgWifiDownload/downloadFullMbps, 1)*100)
	}
	if agg.AvgWifiUpload != nil {
		add(weightUpload, math.Min(*agg.AvgWifiUpload/uploadFullMbps, 1)*100)
	}
	if agg.AvgNoiseLevel != nil {
		add(weightQuiet, 100-*agg.AvgNoiseLevel)
	}
	known, confirmed := 0, 0
	for _, a := range Amenities {
		switch agg.Amenities.Get(a) {
		case Verified:
			known++
			confirmed++
		case Unverified:
			known++
		}
	}
	if known > 0 {
		add(weightAmenities, float64(confirmed)/float64(known)*100)
	}
	if agg.CommunityRating != nil {
		add(weightRating, (*agg.CommunityRating-1)/4*100)
	}

	if weights == 0 {
		return NeutralBaseline
	}
	return sum / weights
}

// mean accumulates an average over reported values only
type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v *float64) {
	if v == nil {
		return
	}
	m.sum += *v
	m.n++
}

func (m mean) value() *float64 {
	if m.n == 0 {
		return nil
	}
	v := round(m.sum/float64(m.n), 2)
	return &v
}

func nonNegative(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
		return nil
	}
	return v
}

func inRange(v *float64, lo, hi float64) *float64 {
	if v == nil || math.IsNaN(*v) || *v < lo || *v > hi {
		return nil
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

package cache

import "time"

// Domain is a category of cached data with its own TTL
type Domain string

const (
	DomainCities          Domain = "cities"
	DomainHotelsByCity    Domain = "hotels_by_city"
	DomainHotelDetails    Domain = "hotel_details"
	DomainHotelRates      Domain = "hotel_rates"
	DomainUserPreferences Domain = "user_preferences"
	DomainSwipeDeck       Domain = "swipe_deck"
	DomainMatchResults    Domain = "match_results"

	// DomainTaste holds derived taste vectors; it follows the preferences TTL
	DomainTaste Domain = "taste"
)

// TTLs in seconds, ordered by volatility: live rates and match results are
// the shortest, reference data the longest.
var domainTTL = map[Domain]int{
	DomainCities:          86400,
	DomainHotelsByCity:    3600,
	DomainHotelDetails:    21600,
	DomainHotelRates:      300,
	DomainUserPreferences: 604800,
	DomainSwipeDeck:       7200,
	DomainMatchResults:    300,
	DomainTaste:           604800,
}

// TTL returns the domain's expiry, or zero for an unknown domain
func (d Domain) TTL() time.Duration {
	return time.Duration(domainTTL[d]) * time.Second
}

// Domains lists every known domain
func Domains() []Domain {
	return []Domain{
		DomainCities, DomainHotelsByCity, DomainHotelDetails, DomainHotelRates,
		DomainUserPreferences, DomainSwipeDeck, DomainMatchResults, DomainTaste,
	}
}

// domainOf extracts the domain prefix from a key built by Key
func domainOf(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i]
		}
	}
	return key
}

package cache

import (
	"context"
	"strconv"

	"github.com/google/uuid"

	"github.com/briangreenhill/nomadstay/internal/models"
)

// UserCache fronts per-user taste vectors, preference snapshots and swipe
// decks. Entries are never refreshed implicitly beyond their TTL: callers
// invalidate on logout, preference edits and swipes.
type UserCache struct {
	p *Policy
}

// NewUserCache creates a user cache adapter
func NewUserCache(p *Policy) *UserCache {
	return &UserCache{p: p}
}

// TasteKey is the cache key of a user's taste vector
func TasteKey(userID uuid.UUID) string {
	return Key(DomainTaste, userID.String())
}

// PreferencesKey is the cache key of a user's preference snapshot
func PreferencesKey(userID uuid.UUID) string {
	return Key(DomainUserPreferences, userID.String())
}

// SwipeDeckKey is the cache key of a user's pending swipe deck
func SwipeDeckKey(userID uuid.UUID) string {
	return Key(DomainSwipeDeck, userID.String())
}

// TasteVector returns the cached taste vector or builds it with fetch
func (uc *UserCache) TasteVector(ctx context.Context, userID uuid.UUID, fetch func(context.Context) (models.TasteVector, error)) (models.TasteVector, error) {
	return Cached(ctx, uc.p, TasteKey(userID), DomainTaste.TTL(), fetch)
}

// Preferences returns the cached preference snapshot or loads it with fetch
func (uc *UserCache) Preferences(ctx context.Context, userID uuid.UUID, fetch func(context.Context) (models.Preferences, error)) (models.Preferences, error) {
	return Cached(ctx, uc.p, PreferencesKey(userID), DomainUserPreferences.TTL(), fetch)
}

// SwipeDeck returns the cached deck of hotels to swipe on
func (uc *UserCache) SwipeDeck(ctx context.Context, userID uuid.UUID, fetch func(context.Context) ([]models.Hotel, error)) ([]models.Hotel, error) {
	return Cached(ctx, uc.p, SwipeDeckKey(userID), DomainSwipeDeck.TTL(), fetch)
}

// SetPreferences writes a fresh snapshot after an edit
func (uc *UserCache) SetPreferences(ctx context.Context, prefs models.Preferences) {
	uc.p.Set(ctx, PreferencesKey(prefs.UserID), prefs, DomainUserPreferences.TTL())
}

// InvalidateTaste drops everything derived from the user's swipes: taste
// vector, swipe deck and match results.
func (uc *UserCache) InvalidateTaste(ctx context.Context, userID uuid.UUID) {
	uc.p.Delete(ctx, TasteKey(userID), SwipeDeckKey(userID))
	uc.p.InvalidatePattern(ctx, Pattern(DomainMatchResults, userID.String()))
}

// InvalidateUser drops every cached entry owned by the user
func (uc *UserCache) InvalidateUser(ctx context.Context, userID uuid.UUID) {
	uc.p.Delete(ctx, PreferencesKey(userID))
	uc.InvalidateTaste(ctx, userID)
}

// MatchCache fronts per-search match results
type MatchCache struct {
	p *Policy
}

// NewMatchCache creates a match results adapter
func NewMatchCache(p *Policy) *MatchCache {
	return &MatchCache{p: p}
}

// MatchKey is the cache key of one user's results for one search. Logically
// identical searches map to the same key.
func MatchKey(userID uuid.UUID, search models.SearchParams) string {
	return Key(DomainMatchResults, userID.String(), SearchHash(search.Params()))
}

// Results returns cached match results or computes them with fetch
func (mc *MatchCache) Results(ctx context.Context, userID uuid.UUID, search models.SearchParams, fetch func(context.Context) ([]models.Match, error)) ([]models.Match, error) {
	return Cached(ctx, mc.p, MatchKey(userID, search), DomainMatchResults.TTL(), fetch)
}

// HotelCache fronts inventory reference data, hotel records and live rates
type HotelCache struct {
	p *Policy
}

// NewHotelCache creates a hotel cache adapter
func NewHotelCache(p *Policy) *HotelCache {
	return &HotelCache{p: p}
}

// HotelKey is the cache key of a hotel's details record
func HotelKey(hotelID uuid.UUID) string {
	return Key(DomainHotelDetails, hotelID.String())
}

// RatesKey is the cache key of one live rate lookup
func RatesKey(hotelID uuid.UUID, q models.RateQuery) string {
	return Key(DomainHotelRates, hotelID.String(), q.CheckIn, q.CheckOut, strconv.Itoa(q.Guests))
}

// Cities returns the cached city list
func (hc *HotelCache) Cities(ctx context.Context, fetch func(context.Context) ([]models.City, error)) ([]models.City, error) {
	return Cached(ctx, hc.p, Key(DomainCities, "all"), DomainCities.TTL(), fetch)
}

// HotelsByCity returns the cached hotel list of a city
func (hc *HotelCache) HotelsByCity(ctx context.Context, city string, fetch func(context.Context) ([]models.Hotel, error)) ([]models.Hotel, error) {
	return Cached(ctx, hc.p, Key(DomainHotelsByCity, city), DomainHotelsByCity.TTL(), fetch)
}

// Details returns the cached hotel record
func (hc *HotelCache) Details(ctx context.Context, hotelID uuid.UUID, fetch func(context.Context) (models.Hotel, error)) (models.Hotel, error) {
	return Cached(ctx, hc.p, HotelKey(hotelID), DomainHotelDetails.TTL(), fetch)
}

// Rates returns cached live rates for a stay
func (hc *HotelCache) Rates(ctx context.Context, hotelID uuid.UUID, q models.RateQuery, fetch func(context.Context) ([]models.Rate, error)) ([]models.Rate, error) {
	return Cached(ctx, hc.p, RatesKey(hotelID, q), DomainHotelRates.TTL(), fetch)
}

// InvalidateHotel drops the hotel's details record so the next read sees a
// freshly persisted aggregate
func (hc *HotelCache) InvalidateHotel(ctx context.Context, hotelID uuid.UUID) {
	hc.p.Delete(ctx, HotelKey(hotelID))
}

// InvalidateCity drops a city's hotel list
func (hc *HotelCache) InvalidateCity(ctx context.Context, city string) {
	hc.p.Delete(ctx, Key(DomainHotelsByCity, city))
}

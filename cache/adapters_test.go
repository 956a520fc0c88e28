package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/nomadstay/internal/models"
)

func TestMatchKeyDeterministic(t *testing.T) {
	user := uuid.MustParse("7f1c2a3e-1111-4a4a-8b8b-000000000001")
	a := models.SearchParams{City: "Lisbon", CheckIn: "2026-05-01", CheckOut: "2026-05-04", Guests: 2, Filters: []string{"coworking", "Quiet"}}
	b := models.SearchParams{City: "lisbon", CheckIn: "2026-05-01", CheckOut: "2026-05-04", Guests: 2, Filters: []string{"quiet", " coworking"}}

	assert.Equal(t, MatchKey(user, a), MatchKey(user, b))
	assert.Contains(t, MatchKey(user, a), "match_results:"+user.String()+":")

	c := b
	c.Guests = 3
	assert.NotEqual(t, MatchKey(user, a), MatchKey(user, c))
	assert.NotEqual(t, MatchKey(user, a), MatchKey(uuid.New(), a))
}

func TestUserCacheInvalidation(t *testing.T) {
	ctx := context.Background()
	p := NewPolicy(NewMemoryStore(), zerolog.Nop())
	users, matches := NewUserCache(p), NewMatchCache(p)
	user, other := uuid.New(), uuid.New()
	search := models.SearchParams{City: "lisbon", Guests: 1}

	seed := func(id uuid.UUID) {
		_, err := users.TasteVector(ctx, id, func(context.Context) (models.TasteVector, error) {
			return models.TasteVector{UserID: id, Samples: 1}, nil
		})
		require.NoError(t, err)
		_, err = users.Preferences(ctx, id, func(context.Context) (models.Preferences, error) {
			return models.Preferences{UserID: id}, nil
		})
		require.NoError(t, err)
		_, err = users.SwipeDeck(ctx, id, func(context.Context) ([]models.Hotel, error) {
			return []models.Hotel{{Name: "a"}}, nil
		})
		require.NoError(t, err)
		_, err = matches.Results(ctx, id, search, func(context.Context) ([]models.Match, error) {
			return []models.Match{{Name: "a", Score: 70}}, nil
		})
		require.NoError(t, err)
	}
	seed(user)
	seed(other)

	users.InvalidateTaste(ctx, user)
	assert.False(t, p.Exists(ctx, TasteKey(user)))
	assert.False(t, p.Exists(ctx, SwipeDeckKey(user)))
	assert.False(t, p.Exists(ctx, MatchKey(user, search)))
	assert.True(t, p.Exists(ctx, PreferencesKey(user)), "swipes do not touch preferences")

	users.InvalidateUser(ctx, user)
	assert.False(t, p.Exists(ctx, PreferencesKey(user)))

	for _, k := range []string{TasteKey(other), PreferencesKey(other), SwipeDeckKey(other), MatchKey(other, search)} {
		assert.True(t, p.Exists(ctx, k), k)
	}
}

func TestUserCacheSetPreferences(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	p := NewPolicy(store, zerolog.Nop())
	users := NewUserCache(p)
	user := uuid.New()

	users.SetPreferences(ctx, models.Preferences{UserID: user, MinWifiMbps: 50, QuietRequired: true})

	got, err := users.Preferences(ctx, user, func(context.Context) (models.Preferences, error) {
		t.Fatal("preferences must be served from cache")
		return models.Preferences{}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 50.0, got.MinWifiMbps)
	assert.True(t, got.QuietRequired)
}

func TestHotelCache(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	p := NewPolicy(NewMemoryStore(WithClock(c.Now)), zerolog.Nop())
	hotels := NewHotelCache(p)
	id := uuid.New()
	q := models.RateQuery{CheckIn: "2026-05-01", CheckOut: "2026-05-03", Guests: 2}

	loads := 0
	details := func(context.Context) (models.Hotel, error) {
		loads++
		return models.Hotel{ID: id, Name: "Casa Azul"}, nil
	}
	_, err := hotels.Details(ctx, id, details)
	require.NoError(t, err)
	_, err = hotels.Details(ctx, id, details)
	require.NoError(t, err)
	assert.Equal(t, 1, loads)

	hotels.InvalidateHotel(ctx, id)
	_, err = hotels.Details(ctx, id, details)
	require.NoError(t, err)
	assert.Equal(t, 2, loads)

	rateCalls := 0
	rates := func(context.Context) ([]models.Rate, error) {
		rateCalls++
		return []models.Rate{{HotelID: id, NightlyCents: 9900, Currency: "EUR"}}, nil
	}
	got, err := hotels.Rates(ctx, id, q, rates)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hotel_rates:"+id.String()+":2026-05-01:2026-05-03:2", RatesKey(id, q))

	c.Advance(4 * time.Minute)
	_, err = hotels.Rates(ctx, id, q, rates)
	require.NoError(t, err)
	assert.Equal(t, 1, rateCalls)

	c.Advance(time.Minute)
	_, err = hotels.Rates(ctx, id, q, rates)
	require.NoError(t, err)
	assert.Equal(t, 2, rateCalls, "rates live five minutes")

	_, err = hotels.HotelsByCity(ctx, "Lisbon", func(context.Context) ([]models.Hotel, error) {
		return []models.Hotel{{ID: id}}, nil
	})
	require.NoError(t, err)
	assert.True(t, p.Exists(ctx, "hotels_by_city:lisbon"))
	hotels.InvalidateCity(ctx, "LISBON")
	assert.False(t, p.Exists(ctx, "hotels_by_city:lisbon"))

	_, err = hotels.Cities(ctx, func(context.Context) ([]models.City, error) {
		return []models.City{{Slug: "lisbon"}}, nil
	})
	require.NoError(t, err)
	assert.True(t, p.Exists(ctx, "cities:all"))
}

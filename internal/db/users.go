package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/briangreenhill/nomadstay/internal/models"
)

const getUserPreferences = `SELECT user_id, max_nightly_usd, min_wifi_mbps, quiet_required,
	must_have, preferred_cities, updated_at
FROM user_preferences WHERE user_id = $1`

// GetUserPreferences returns the user's preferences, or zero-valued
// preferences if none were saved yet
func (q *Queries) GetUserPreferences(ctx context.Context, userID uuid.UUID) (models.Preferences, error) {
	var (
		p         models.Preferences
		updatedAt pgtype.Timestamptz
	)
	err := q.db.QueryRow(ctx, getUserPreferences, userID).Scan(
		&p.UserID, &p.MaxNightlyUSD, &p.MinWifiMbps, &p.QuietRequired,
		&p.MustHave, &p.PreferredCities, &updatedAt,
	)
	if err != nil {
		if mapErr(err) == ErrNotFound {
			return models.Preferences{UserID: userID}, nil
		}
		return models.Preferences{}, fmt.Errorf("get preferences: %w", err)
	}
	p.UpdatedAt = updatedAt.Time.UTC()
	return p, nil
}

const upsertUserPreferences = `INSERT INTO user_preferences (
	user_id, max_nightly_usd, min_wifi_mbps, quiet_required, must_have, preferred_cities, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, now())
ON CONFLICT (user_id) DO UPDATE SET
	max_nightly_usd = EXCLUDED.max_nightly_usd,
	min_wifi_mbps = EXCLUDED.min_wifi_mbps,
	quiet_required = EXCLUDED.quiet_required,
	must_have = EXCLUDED.must_have,
	preferred_cities = EXCLUDED.preferred_cities,
	updated_at = EXCLUDED.updated_at
RETURNING updated_at`

func (q *Queries) UpsertUserPreferences(ctx context.Context, p models.Preferences) (models.Preferences, error) {
	var updatedAt pgtype.Timestamptz
	mustHave, cities := p.MustHave, p.PreferredCities
	if mustHave == nil {
		mustHave = []string{}
	}
	if cities == nil {
		cities = []string{}
	}
	err := q.db.QueryRow(ctx, upsertUserPreferences,
		p.UserID, p.MaxNightlyUSD, p.MinWifiMbps, p.QuietRequired, mustHave, cities,
	).Scan(&updatedAt)
	if err != nil {
		return models.Preferences{}, fmt.Errorf("upsert preferences: %w", mapErr(err))
	}
	p.UpdatedAt = updatedAt.Time.UTC()
	return p, nil
}

const listSwipes = `SELECT user_id, hotel_id, liked, created_at FROM swipes WHERE user_id = $1 ORDER BY created_at`

func (q *Queries) ListSwipes(ctx context.Context, userID uuid.UUID) ([]models.Swipe, error) {
	rows, err := q.db.Query(ctx, listSwipes, userID)
	if err != nil {
		return nil, fmt.Errorf("query swipes: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Swipe, error) {
		var (
			s         models.Swipe
			createdAt pgtype.Timestamptz
		)
		err := row.Scan(&s.UserID, &s.HotelID, &s.Liked, &createdAt)
		s.CreatedAt = createdAt.Time.UTC()
		return s, err
	})
}

// A repeated swipe on the same hotel replaces the earlier one
const upsertSwipe = `INSERT INTO swipes (user_id, hotel_id, liked, created_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (user_id, hotel_id) DO UPDATE SET liked = EXCLUDED.liked, created_at = EXCLUDED.created_at`

func (q *Queries) UpsertSwipe(ctx context.Context, s models.Swipe) error {
	if _, err := q.db.Exec(ctx, upsertSwipe, s.UserID, s.HotelID, s.Liked); err != nil {
		return fmt.Errorf("upsert swipe: %w", mapErr(err))
	}
	return nil
}

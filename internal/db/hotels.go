package db

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/briangreenhill/nomadstay/internal/models"
	"github.com/briangreenhill/nomadstay/internal/truthscore"
)

// The snapshot column holds the full aggregate; the scalar columns exist for
// sorting and are always written together with it.
const upsertHotelAggregate = `INSERT INTO hotel_aggregates (
	hotel_id, truth_score, truth_confidence, contribution_count, snapshot, updated_at
) VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (hotel_id) DO UPDATE SET
	truth_score = EXCLUDED.truth_score,
	truth_confidence = EXCLUDED.truth_confidence,
	contribution_count = EXCLUDED.contribution_count,
	snapshot = EXCLUDED.snapshot,
	updated_at = EXCLUDED.updated_at`

// SaveHotelAggregate replaces the stored aggregate of a hotel
func (q *Queries) SaveHotelAggregate(ctx context.Context, agg truthscore.HotelAggregate) error {
	snapshot, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("encode aggregate: %w", err)
	}
	if _, err := q.db.Exec(ctx, upsertHotelAggregate,
		agg.HotelID, agg.TruthScore, agg.TruthConfidence, agg.ContributionCount, snapshot,
	); err != nil {
		return fmt.Errorf("upsert hotel aggregate: %w", err)
	}
	return nil
}

const hotelColumns = `h.id, h.city_slug, h.name, h.address, h.stars, h.features, a.snapshot`

const getHotel = `SELECT ` + hotelColumns + `
FROM hotels h
LEFT JOIN hotel_aggregates a ON a.hotel_id = h.id
WHERE h.id = $1`

func (q *Queries) GetHotel(ctx context.Context, id uuid.UUID) (models.Hotel, error) {
	h, err := scanHotel(q.db.QueryRow(ctx, getHotel, id))
	if err != nil {
		return models.Hotel{}, mapErr(err)
	}
	return h, nil
}

const listHotelsByCity = `SELECT ` + hotelColumns + `
FROM hotels h
LEFT JOIN hotel_aggregates a ON a.hotel_id = h.id
WHERE h.city_slug = $1
ORDER BY a.truth_score DESC NULLS LAST, h.name`

func (q *Queries) ListHotelsByCity(ctx context.Context, city string) ([]models.Hotel, error) {
	return q.listHotels(ctx, listHotelsByCity, city)
}

const listHotelsByIDs = `SELECT ` + hotelColumns + `
FROM hotels h
LEFT JOIN hotel_aggregates a ON a.hotel_id = h.id
WHERE h.id = ANY($1)`

func (q *Queries) ListHotelsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Hotel, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return q.listHotels(ctx, listHotelsByIDs, ids)
}

const listUnswipedHotels = `SELECT ` + hotelColumns + `
FROM hotels h
LEFT JOIN hotel_aggregates a ON a.hotel_id = h.id
WHERE NOT EXISTS (SELECT 1 FROM swipes s WHERE s.user_id = $1 AND s.hotel_id = h.id)
ORDER BY a.truth_confidence DESC NULLS LAST, h.id
LIMIT $2`

// ListUnswipedHotels returns hotels the user has not swiped on yet
func (q *Queries) ListUnswipedHotels(ctx context.Context, userID uuid.UUID, limit int) ([]models.Hotel, error) {
	return q.listHotels(ctx, listUnswipedHotels, userID, limit)
}

func (q *Queries) listHotels(ctx context.Context, sql string, args ...any) ([]models.Hotel, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query hotels: %w", err)
	}
	defer rows.Close()

	var out []models.Hotel
	for rows.Next() {
		h, err := scanHotel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func scanHotel(row pgx.Row) (models.Hotel, error) {
	var (
		h                  models.Hotel
		address            pgtype.Text
		features, snapshot []byte
	)
	if err := row.Scan(&h.ID, &h.CitySlug, &h.Name, &address, &h.Stars, &features, &snapshot); err != nil {
		return models.Hotel{}, err
	}
	h.Address = address.String
	if len(features) > 0 {
		if err := json.Unmarshal(features, &h.Features); err != nil {
			return models.Hotel{}, fmt.Errorf("decode features of hotel %s: %w", h.ID, err)
		}
	}
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &h.Aggregate); err != nil {
			return models.Hotel{}, fmt.Errorf("decode aggregate of hotel %s: %w", h.ID, err)
		}
	} else {
		h.Aggregate = truthscore.Compute(h.ID, nil)
	}
	return h, nil
}

const listCities = `SELECT slug, name, country FROM cities ORDER BY name`

func (q *Queries) ListCities(ctx context.Context) ([]models.City, error) {
	rows, err := q.db.Query(ctx, listCities)
	if err != nil {
		return nil, fmt.Errorf("query cities: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.City, error) {
		var c models.City
		err := row.Scan(&c.Slug, &c.Name, &c.Country)
		return c, err
	})
}

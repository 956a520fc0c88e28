package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/briangreenhill/nomadstay/internal/truthscore"
)

const contributionColumns = `id, booking_id, hotel_id, user_id,
	wifi_download_mbps, wifi_upload_mbps, wifi_ping_ms, noise_level,
	hot_water, blackout_curtains, quiet_room, ac, work_desk,
	notes, overall_rating, verified, created_at`

const listVerifiedContributions = `SELECT ` + contributionColumns + `
FROM contributions
WHERE hotel_id = $1 AND verified
ORDER BY created_at, id`

// ListVerifiedContributions returns every verified contribution of a hotel
func (q *Queries) ListVerifiedContributions(ctx context.Context, hotelID uuid.UUID) ([]truthscore.Contribution, error) {
	rows, err := q.db.Query(ctx, listVerifiedContributions, hotelID)
	if err != nil {
		return nil, fmt.Errorf("query contributions: %w", err)
	}
	defer rows.Close()

	var out []truthscore.Contribution
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type CreateContributionParams struct {
	ID        uuid.UUID
	BookingID uuid.UUID
	UserID    uuid.UUID

	WifiDownloadMbps *float64
	WifiUploadMbps   *float64
	WifiPingMs       *float64
	NoiseLevel       *float64

	HotWater         *bool
	BlackoutCurtains *bool
	QuietRoom        *bool
	AC               *bool
	WorkDesk         *bool

	Notes         string
	OverallRating *int
}

// The hotel and the verified flag come from the booking row: a contribution
// is verified iff its booking is completed. booking_id is unique, so a second
// contribution for the same booking fails with ErrDuplicate.
const createContribution = `INSERT INTO contributions (
	id, booking_id, hotel_id, user_id,
	wifi_download_mbps, wifi_upload_mbps, wifi_ping_ms, noise_level,
	hot_water, blackout_curtains, quiet_room, ac, work_desk,
	notes, overall_rating, verified
)
SELECT $1, b.id, b.hotel_id, b.user_id,
	$4, $5, $6, $7,
	$8, $9, $10, $11, $12,
	$13, $14, b.status = 'completed'
FROM bookings b
WHERE b.id = $2 AND b.user_id = $3
RETURNING ` + contributionColumns

// CreateContribution records a post-stay report for one of the user's bookings
func (q *Queries) CreateContribution(ctx context.Context, arg CreateContributionParams) (truthscore.Contribution, error) {
	id := arg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	row := q.db.QueryRow(ctx, createContribution,
		id, arg.BookingID, arg.UserID,
		float8(arg.WifiDownloadMbps), float8(arg.WifiUploadMbps), float8(arg.WifiPingMs), float8(arg.NoiseLevel),
		boolean(arg.HotWater), boolean(arg.BlackoutCurtains), boolean(arg.QuietRoom), boolean(arg.AC), boolean(arg.WorkDesk),
		pgtype.Text{String: arg.Notes, Valid: arg.Notes != ""}, int4(arg.OverallRating),
	)
	c, err := scanContribution(row)
	if err != nil {
		return truthscore.Contribution{}, mapErr(err)
	}
	return c, nil
}

func scanContribution(row pgx.Row) (truthscore.Contribution, error) {
	var (
		c                                       truthscore.Contribution
		download, upload, ping, noise           pgtype.Float8
		hotWater, blackout, quiet, ac, workDesk pgtype.Bool
		notes                                   pgtype.Text
		rating                                  pgtype.Int4
		createdAt                               pgtype.Timestamptz
	)
	err := row.Scan(
		&c.ID, &c.BookingID, &c.HotelID, &c.UserID,
		&download, &upload, &ping, &noise,
		&hotWater, &blackout, &quiet, &ac, &workDesk,
		&notes, &rating, &c.Verified, &createdAt,
	)
	if err != nil {
		return truthscore.Contribution{}, err
	}
	c.WifiDownloadMbps = fromFloat8(download)
	c.WifiUploadMbps = fromFloat8(upload)
	c.WifiPingMs = fromFloat8(ping)
	c.NoiseLevel = fromFloat8(noise)
	c.HotWater = fromBool(hotWater)
	c.BlackoutCurtains = fromBool(blackout)
	c.QuietRoom = fromBool(quiet)
	c.AC = fromBool(ac)
	c.WorkDesk = fromBool(workDesk)
	c.Notes = notes.String
	if rating.Valid {
		r := int(rating.Int32)
		c.OverallRating = &r
	}
	c.CreatedAt = createdAt.Time.UTC()
	return c, nil
}

func float8(v *float64) pgtype.Float8 {
	if v == nil {
		return pgtype.Float8{}
	}
	return pgtype.Float8{Float64: *v, Valid: true}
}

func fromFloat8(v pgtype.Float8) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func boolean(v *bool) pgtype.Bool {
	if v == nil {
		return pgtype.Bool{}
	}
	return pgtype.Bool{Bool: *v, Valid: true}
}

func fromBool(v pgtype.Bool) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Bool
	return &b
}

func int4(v *int) pgtype.Int4 {
	if v == nil {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: int32(*v), Valid: true}
}

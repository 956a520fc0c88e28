package jobs

import "github.com/google/uuid"

const (
	TaskRecomputeTruthScore = "truthscore:recompute"

	QueueTruthScore = "truthscore"
)

type RecomputeTruthScorePayload struct {
	HotelID uuid.UUID `json:"hotel_id"`
}

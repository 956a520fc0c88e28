package routes

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"

	"github.com/briangreenhill/nomadstay/internal/db"
	"github.com/briangreenhill/nomadstay/internal/matching"
	"github.com/briangreenhill/nomadstay/internal/models"
)

const (
	deckSize   = 20
	matchLimit = 20
)

type contributionRequest struct {
	WifiDownloadMbps *float64 `json:"wifi_download_mbps"`
	WifiUploadMbps   *float64 `json:"wifi_upload_mbps"`
	WifiPingMs       *float64 `json:"wifi_ping_ms"`
	NoiseLevel       *float64 `json:"noise_level"`

	HotWater         *bool `json:"hot_water"`
	BlackoutCurtains *bool `json:"blackout_curtains"`
	QuietRoom        *bool `json:"quiet_room"`
	AC               *bool `json:"ac"`
	WorkDesk         *bool `json:"work_desk"`

	Notes         string `json:"notes"`
	OverallRating *int   `json:"overall_rating"`
}

func (c contributionRequest) validate() error {
	for _, v := range []*float64{c.WifiDownloadMbps, c.WifiUploadMbps, c.WifiPingMs} {
		if v != nil && *v < 0 {
			return errors.New("measurements must not be negative")
		}
	}
	if c.NoiseLevel != nil && (*c.NoiseLevel < 0 || *c.NoiseLevel > 100) {
		return errors.New("noise_level must be between 0 and 100")
	}
	if c.OverallRating != nil && (*c.OverallRating < 1 || *c.OverallRating > 5) {
		return errors.New("overall_rating must be between 1 and 5")
	}
	return nil
}

// handleContribution records a post-stay report and schedules a recompute of
// the hotel's aggregate. The response never waits for the recompute.
func (s *Server) handleContribution(w http.ResponseWriter, r *http.Request) {
	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid booking ID", nil)
		return
	}
	var req contributionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid contribution", nil)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}

	c, err := s.Q.CreateContribution(r.Context(), db.CreateContributionParams{
		BookingID:        bookingID,
		UserID:           userID(r),
		WifiDownloadMbps: req.WifiDownloadMbps,
		WifiUploadMbps:   req.WifiUploadMbps,
		WifiPingMs:       req.WifiPingMs,
		NoiseLevel:       req.NoiseLevel,
		HotWater:         req.HotWater,
		BlackoutCurtains: req.BlackoutCurtains,
		QuietRoom:        req.QuietRoom,
		AC:               req.AC,
		WorkDesk:         req.WorkDesk,
		Notes:            strings.TrimSpace(req.Notes),
		OverallRating:    req.OverallRating,
	})
	switch {
	case errors.Is(err, db.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "booking not found", nil)
		return
	case errors.Is(err, db.ErrDuplicate):
		writeError(w, r, http.StatusConflict, "booking already reviewed", nil)
		return
	case err != nil:
		writeError(w, r, http.StatusInternalServerError, "failed to save contribution", err)
		return
	}

	writeJSON(w, r, http.StatusCreated, c)

	// unverified reports never reach the aggregate
	if c.Verified {
		s.Jobs.RecomputeTruthScore(r.Context(), c.HotelID)
	}
}

func (s *Server) preferences(ctx context.Context, uid uuid.UUID) (models.Preferences, error) {
	return s.Users.Preferences(ctx, uid, func(ctx context.Context) (models.Preferences, error) {
		return s.Q.GetUserPreferences(ctx, uid)
	})
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.preferences(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to load preferences", err)
		return
	}
	writeJSON(w, r, http.StatusOK, prefs)
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	var prefs models.Preferences
	if err := decodeJSON(w, r, &prefs); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid preferences", nil)
		return
	}
	if prefs.MaxNightlyUSD < 0 || prefs.MinWifiMbps < 0 {
		writeError(w, r, http.StatusBadRequest, "preferences must not be negative", nil)
		return
	}
	uid := userID(r)
	prefs.UserID = uid
	prefs.MustHave = models.NormalizeFilters(prefs.MustHave)

	saved, err := s.Q.UpsertUserPreferences(r.Context(), prefs)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to save preferences", err)
		return
	}
	// match results were filtered with the old preferences
	s.Users.InvalidateUser(r.Context(), uid)
	s.Users.SetPreferences(r.Context(), saved)
	writeJSON(w, r, http.StatusOK, saved)
}

func (s *Server) handleDeck(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	deck, err := s.Users.SwipeDeck(r.Context(), uid, func(ctx context.Context) ([]models.Hotel, error) {
		return s.Q.ListUnswipedHotels(ctx, uid, deckSize)
	})
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to load deck", err)
		return
	}
	if deck == nil {
		deck = []models.Hotel{}
	}
	writeJSON(w, r, http.StatusOK, deck)
}

type swipeRequest struct {
	HotelID uuid.UUID `json:"hotel_id"`
	Liked   bool      `json:"liked"`
}

func (s *Server) handleSwipe(w http.ResponseWriter, r *http.Request) {
	var req swipeRequest
	if err := decodeJSON(w, r, &req); err != nil || req.HotelID == uuid.Nil {
		writeError(w, r, http.StatusBadRequest, "invalid swipe", nil)
		return
	}
	uid := userID(r)
	if err := s.Q.UpsertSwipe(r.Context(), models.Swipe{UserID: uid, HotelID: req.HotelID, Liked: req.Liked}); err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to save swipe", err)
		return
	}
	s.Users.InvalidateTaste(r.Context(), uid)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) taste(ctx context.Context, uid uuid.UUID) (models.TasteVector, error) {
	return s.Users.TasteVector(ctx, uid, func(ctx context.Context) (models.TasteVector, error) {
		swipes, err := s.Q.ListSwipes(ctx, uid)
		if err != nil {
			return models.TasteVector{}, err
		}
		ids := make([]uuid.UUID, 0, len(swipes))
		for _, sw := range swipes {
			ids = append(ids, sw.HotelID)
		}
		hotels, err := s.Q.ListHotelsByIDs(ctx, ids)
		if err != nil {
			return models.TasteVector{}, err
		}
		byID := make(map[uuid.UUID]models.Hotel, len(hotels))
		for _, h := range hotels {
			byID[h.ID] = h
		}
		return matching.BuildTaste(uid, swipes, byID), nil
	})
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	search := models.SearchParams{
		City:     strings.ToLower(strings.TrimSpace(q.Get("city"))),
		CheckIn:  q.Get("check_in"),
		CheckOut: q.Get("check_out"),
		Filters:  models.NormalizeFilters(q["filter"]),
	}
	if search.City == "" {
		writeError(w, r, http.StatusBadRequest, "city required", nil)
		return
	}
	if search.CheckIn != "" || search.CheckOut != "" {
		rq, err := parseRateQuery(r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error(), nil)
			return
		}
		search.Guests = rq.Guests
	}

	uid := userID(r)
	matches, err := s.Matches.Results(r.Context(), uid, search, func(ctx context.Context) ([]models.Match, error) {
		prefs, err := s.preferences(ctx, uid)
		if err != nil {
			return nil, err
		}
		taste, err := s.taste(ctx, uid)
		if err != nil {
			return nil, err
		}
		hotels, err := s.Hotels.HotelsByCity(ctx, search.City, func(ctx context.Context) ([]models.Hotel, error) {
			return s.Q.ListHotelsByCity(ctx, search.City)
		})
		if err != nil {
			return nil, err
		}
		prefs.MustHave = models.NormalizeFilters(append(append([]string(nil), prefs.MustHave...), search.Filters...))
		return matching.Rank(taste, matching.Filter(prefs, hotels), matchLimit), nil
	})
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to compute matches", err)
		return
	}
	hlog.FromRequest(r).Debug().Int("matches", len(matches)).Str("city", search.City).Msg("matches served")
	writeJSON(w, r, http.StatusOK, matches)
}

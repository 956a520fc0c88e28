package routes

import (
	"context"
	"net/http"
	"time"

	scs "github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/briangreenhill/nomadstay/cache"
	"github.com/briangreenhill/nomadstay/internal/db"
	appmw "github.com/briangreenhill/nomadstay/internal/http/middleware"
	"github.com/briangreenhill/nomadstay/internal/jobs"
	"github.com/briangreenhill/nomadstay/internal/models"
	"github.com/briangreenhill/nomadstay/internal/truthscore"
)

const sessionUserKey = "user_id"

// Store is the part of db.Queries the handlers use
type Store interface {
	ListCities(ctx context.Context) ([]models.City, error)
	ListHotelsByCity(ctx context.Context, city string) ([]models.Hotel, error)
	GetHotel(ctx context.Context, id uuid.UUID) (models.Hotel, error)
	ListHotelsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Hotel, error)
	ListUnswipedHotels(ctx context.Context, userID uuid.UUID, limit int) ([]models.Hotel, error)
	CreateContribution(ctx context.Context, arg db.CreateContributionParams) (truthscore.Contribution, error)
	GetUserPreferences(ctx context.Context, userID uuid.UUID) (models.Preferences, error)
	UpsertUserPreferences(ctx context.Context, p models.Preferences) (models.Preferences, error)
	ListSwipes(ctx context.Context, userID uuid.UUID) ([]models.Swipe, error)
	UpsertSwipe(ctx context.Context, s models.Swipe) error
}

// RateProvider serves live room rates
type RateProvider interface {
	Rates(ctx context.Context, hotelID uuid.UUID, q models.RateQuery) ([]models.Rate, error)
}

type Server struct {
	Router    *chi.Mux
	Sess      *scs.SessionManager
	Q         Store
	Inventory RateProvider // nil when no provider is configured
	Hotels    *cache.HotelCache
	Users     *cache.UserCache
	Matches   *cache.MatchCache
	Jobs      jobs.Dispatcher
	Logger    zerolog.Logger
}

type ServerOptions struct {
	Sess      *scs.SessionManager
	Q         Store
	Inventory RateProvider
	Cache     *cache.Policy
	Jobs      jobs.Dispatcher
	Logger    zerolog.Logger
}

func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(hlog.NewHandler(opts.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(chimw.Recoverer)

	s := &Server{
		Router:    r,
		Sess:      opts.Sess,
		Q:         opts.Q,
		Inventory: opts.Inventory,
		Hotels:    cache.NewHotelCache(opts.Cache),
		Users:     cache.NewUserCache(opts.Cache),
		Matches:   cache.NewMatchCache(opts.Cache),
		Jobs:      opts.Jobs,
		Logger:    opts.Logger,
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("write health check response")
		}
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/cities", s.handleCities)
	r.Get("/cities/{city}/hotels", s.handleCityHotels)
	r.Get("/hotels/{hotelID}", s.handleHotel)
	r.Get("/hotels/{hotelID}/rates", s.handleRates)

	r.Group(func(pr chi.Router) {
		pr.Use(s.sessionToContext)
		pr.Use(appmw.RequireAuth)
		pr.Post("/bookings/{bookingID}/contribution", s.handleContribution)
		pr.Get("/me/preferences", s.handleGetPreferences)
		pr.Put("/me/preferences", s.handlePutPreferences)
		pr.Get("/deck", s.handleDeck)
		pr.Post("/swipes", s.handleSwipe)
		pr.Get("/matches", s.handleMatches)
		pr.Post("/logout", s.handleLogout)
	})

	return s
}

// SignIn binds the session to userID. The login flow itself lives outside
// this service.
func (s *Server) SignIn(ctx context.Context, userID uuid.UUID) error {
	if err := s.Sess.RenewToken(ctx); err != nil {
		return err
	}
	s.Sess.Put(ctx, sessionUserKey, userID.String())
	return nil
}

func (s *Server) sessionToContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := s.Sess.GetString(r.Context(), sessionUserKey); raw != "" {
			if id, err := uuid.Parse(raw); err == nil {
				r = r.WithContext(appmw.WithUserID(r.Context(), id))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func userID(r *http.Request) uuid.UUID {
	id, _ := appmw.UserID(r.Context())
	return id
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	if err != nil && status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Int("status", status).Msg(msg)
	}
	writeJSON(w, r, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Users.InvalidateUser(r.Context(), userID(r))
	if err := s.Sess.Destroy(r.Context()); err != nil {
		writeError(w, r, http.StatusInternalServerError, "logout failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package routes

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/briangreenhill/nomadstay/internal/db"
	"github.com/briangreenhill/nomadstay/internal/inventory"
	"github.com/briangreenhill/nomadstay/internal/models"
)

const dateLayout = "2006-01-02"

func (s *Server) handleCities(w http.ResponseWriter, r *http.Request) {
	cities, err := s.Hotels.Cities(r.Context(), s.Q.ListCities)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to load cities", err)
		return
	}
	writeJSON(w, r, http.StatusOK, cities)
}

func (s *Server) handleCityHotels(w http.ResponseWriter, r *http.Request) {
	city := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "city")))
	hotels, err := s.Hotels.HotelsByCity(r.Context(), city, func(ctx context.Context) ([]models.Hotel, error) {
		return s.Q.ListHotelsByCity(ctx, city)
	})
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to load hotels", err)
		return
	}
	if hotels == nil {
		hotels = []models.Hotel{}
	}
	writeJSON(w, r, http.StatusOK, hotels)
}

func (s *Server) handleHotel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "hotelID"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid hotel ID", nil)
		return
	}
	hotel, err := s.Hotels.Details(r.Context(), id, func(ctx context.Context) (models.Hotel, error) {
		return s.Q.GetHotel(ctx, id)
	})
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "hotel not found", nil)
		return
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to load hotel", err)
		return
	}
	writeJSON(w, r, http.StatusOK, hotel)
}

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "hotelID"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid hotel ID", nil)
		return
	}
	q, err := parseRateQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if s.Inventory == nil {
		writeError(w, r, http.StatusServiceUnavailable, "rates unavailable", nil)
		return
	}

	rates, err := s.Hotels.Rates(r.Context(), id, q, func(ctx context.Context) ([]models.Rate, error) {
		return s.Inventory.Rates(ctx, id, q)
	})
	if errors.Is(err, inventory.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "hotel not found", nil)
		return
	}
	if err != nil {
		writeError(w, r, http.StatusBadGateway, "failed to load rates", err)
		return
	}
	if rates == nil {
		rates = []models.Rate{}
	}
	writeJSON(w, r, http.StatusOK, rates)
}

func parseRateQuery(r *http.Request) (models.RateQuery, error) {
	v := r.URL.Query()
	q := models.RateQuery{
		CheckIn:  v.Get("check_in"),
		CheckOut: v.Get("check_out"),
		Guests:   1,
	}
	in, err := time.Parse(dateLayout, q.CheckIn)
	if err != nil {
		return q, errors.New("check_in must be YYYY-MM-DD")
	}
	out, err := time.Parse(dateLayout, q.CheckOut)
	if err != nil {
		return q, errors.New("check_out must be YYYY-MM-DD")
	}
	if !out.After(in) {
		return q, errors.New("check_out must be after check_in")
	}
	if g := v.Get("guests"); g != "" {
		n, err := strconv.Atoi(g)
		if err != nil || n < 1 {
			return q, errors.New("guests must be a positive number")
		}
		q.Guests = n
	}
	return q, nil
}

// README: Ambulance handlers: nearest-bed match and active reservation lookup.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"lifeline/internal/modules/inventory"
	"lifeline/internal/modules/matching"
	"lifeline/internal/modules/reservation"
	"lifeline/internal/types"
)

type Matcher interface {
	FindNearest(ctx context.Context, req matching.Request) (*matching.Result, error)
	ActiveReservation(ctx context.Context, requesterID types.ID) (*reservation.Reservation, error)
	AllowedKinds() []inventory.Kind
}

// ETAEstimator is optional; when nil, responses carry no eta_seconds.
type ETAEstimator interface {
	DriveEstimate(ctx context.Context, origin, destination types.Point) (time.Duration, error)
}

type AmbulanceHandler struct {
	matcher Matcher
	eta     ETAEstimator
	log     zerolog.Logger
}

func NewAmbulanceHandler(matcher Matcher, eta ETAEstimator, log zerolog.Logger) *AmbulanceHandler {
	return &AmbulanceHandler{matcher: matcher, eta: eta, log: log}
}

type findNearestReq struct {
	AmbulanceID     string   `json:"ambulance_id" binding:"required"`
	Latitude        *float64 `json:"latitude" binding:"required"`
	Longitude       *float64 `json:"longitude" binding:"required"`
	RequiredBedType string   `json:"required_bed_type" binding:"required"`
}

type findNearestResp struct {
	HospitalID    types.ID  `json:"hospital_id"`
	HospitalName  string    `json:"hospital_name"`
	DistanceKm    float64   `json:"distance_km"`
	AvailableBeds int       `json:"available_beds"`
	BedID         types.ID  `json:"bed_id"`
	ReservationID types.ID  `json:"reservation_id"`
	ExpiresAt     time.Time `json:"expires_at"`
	ETASeconds    *int64    `json:"eta_seconds,omitempty"`
}

type reservationResp struct {
	ReservationID types.ID           `json:"reservation_id"`
	AmbulanceID   types.ID           `json:"ambulance_id"`
	HospitalID    types.ID           `json:"hospital_id"`
	BedID         types.ID           `json:"bed_id"`
	Status        reservation.Status `json:"status"`
	ReservedAt    time.Time          `json:"reservation_time"`
	ExpiresAt     time.Time          `json:"expiry_time"`
}

func (h *AmbulanceHandler) FindNearest(c *gin.Context) {
	var req findNearestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeCodedError(c, http.StatusBadRequest, "invalid_request", "missing fields: ambulance_id, latitude, longitude and required_bed_type are required")
		return
	}
	origin := types.Point{Lat: *req.Latitude, Lng: *req.Longitude}
	res, err := h.matcher.FindNearest(c.Request.Context(), matching.Request{
		RequesterID: types.ID(req.AmbulanceID),
		Position:    origin,
		Kind:        req.RequiredBedType,
	})
	if err != nil {
		writeMatchError(c, h.log, err)
		return
	}

	resp := findNearestResp{
		HospitalID:    res.FacilityID,
		HospitalName:  res.FacilityName,
		DistanceKm:    res.DistanceKm,
		AvailableBeds: res.AvailableBeds,
		BedID:         res.BedID,
		ReservationID: res.ReservationID,
		ExpiresAt:     res.ExpiresAt,
	}
	if h.eta != nil && res.FacilityPosition != nil {
		d, err := h.eta.DriveEstimate(c.Request.Context(), origin, *res.FacilityPosition)
		if err != nil {
			h.log.Warn().Err(err).Str("hospital_id", string(res.FacilityID)).Msg("eta lookup failed")
		} else {
			secs := int64(d / time.Second)
			resp.ETASeconds = &secs
		}
	}
	writeJSON(c, http.StatusOK, resp)
}

func (h *AmbulanceHandler) ActiveReservation(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing ambulance id")
		return
	}
	r, err := h.matcher.ActiveReservation(c.Request.Context(), types.ID(id))
	if err != nil {
		writeMatchError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, reservationResp{
		ReservationID: r.ID,
		AmbulanceID:   r.RequesterID,
		HospitalID:    r.FacilityID,
		BedID:         r.BedID,
		Status:        r.Status,
		ReservedAt:    r.CreatedAt,
		ExpiresAt:     r.ExpiresAt,
	})
}

// BedTypes lists the bed types find-nearest accepts.
func (h *AmbulanceHandler) BedTypes(c *gin.Context) {
	writeJSON(c, http.StatusOK, map[string]any{"bed_types": h.matcher.AllowedKinds()})
}

// README: Hospital directory handlers: create, update, get, stats, nearby search.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"lifeline/internal/modules/facility"
	"lifeline/internal/types"
)

type FacilityService interface {
	Create(ctx context.Context, cmd facility.CreateCommand) (*facility.Facility, error)
	Update(ctx context.Context, id types.ID, cmd facility.CreateCommand) (*facility.Facility, error)
	Count(ctx context.Context) (int, error)
	Get(ctx context.Context, id types.ID) (*facility.Facility, error)
	Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]facility.Nearby, error)
}

type HospitalHandler struct {
	facilities FacilityService
	log        zerolog.Logger
}

func NewHospitalHandler(svc FacilityService, log zerolog.Logger) *HospitalHandler {
	return &HospitalHandler{facilities: svc, log: log}
}

type createHospitalReq struct {
	Name      string   `json:"name" binding:"required"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Address   string   `json:"address"`
	Phone     string   `json:"phone"`
	State     string   `json:"state"`
	District  string   `json:"district"`
}

type hospitalResp struct {
	ID         types.ID  `json:"id"`
	Name       string    `json:"name"`
	Latitude   *float64  `json:"latitude"`
	Longitude  *float64  `json:"longitude"`
	Address    string    `json:"address,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	State      string    `json:"state,omitempty"`
	District   string    `json:"district,omitempty"`
	DistanceKm *float64  `json:"distance_km,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func toHospitalResp(f facility.Facility) hospitalResp {
	resp := hospitalResp{
		ID:        f.ID,
		Name:      f.Name,
		Address:   f.Address,
		Phone:     f.Phone,
		State:     f.State,
		District:  f.District,
		CreatedAt: f.CreatedAt,
	}
	if f.Position != nil {
		lat, lng := f.Position.Lat, f.Position.Lng
		resp.Latitude, resp.Longitude = &lat, &lng
	}
	return resp
}

func (r createHospitalReq) command() facility.CreateCommand {
	return facility.CreateCommand{
		Name:     r.Name,
		Lat:      r.Latitude,
		Lng:      r.Longitude,
		Address:  r.Address,
		Phone:    r.Phone,
		State:    r.State,
		District: r.District,
	}
}

func (h *HospitalHandler) Create(c *gin.Context) {
	var req createHospitalReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "missing fields")
		return
	}
	f, err := h.facilities.Create(c.Request.Context(), req.command())
	if err != nil {
		writeFacilityError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusCreated, toHospitalResp(*f))
}

// Update replaces the hospital's details; omitted coordinates clear its position.
func (h *HospitalHandler) Update(c *gin.Context) {
	var req createHospitalReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "missing fields")
		return
	}
	f, err := h.facilities.Update(c.Request.Context(), types.ID(c.Param("id")), req.command())
	if err != nil {
		writeFacilityError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, toHospitalResp(*f))
}

func (h *HospitalHandler) Stats(c *gin.Context) {
	n, err := h.facilities.Count(c.Request.Context())
	if err != nil {
		writeInternal(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"total_hospitals": n})
}

func (h *HospitalHandler) Get(c *gin.Context) {
	id := c.Param("id")
	f, err := h.facilities.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeFacilityError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, toHospitalResp(*f))
}

func (h *HospitalHandler) Nearby(c *gin.Context) {
	lat, okLat := queryFloat(c, "lat")
	lng, okLng := queryFloat(c, "lng")
	radius, okRadius := queryFloat(c, "radius_km")
	if !okLat || !okLng || !okRadius {
		writeError(c, http.StatusBadRequest, "lat, lng and radius_km are required numbers")
		return
	}
	found, err := h.facilities.Nearby(c.Request.Context(), types.Point{Lat: lat, Lng: lng}, radius)
	if err != nil {
		writeFacilityError(c, h.log, err)
		return
	}
	out := make([]hospitalResp, len(found))
	for i, n := range found {
		out[i] = toHospitalResp(n.Facility)
		d := n.DistanceKm
		out[i].DistanceKm = &d
	}
	writeJSON(c, http.StatusOK, map[string]any{"hospitals": out})
}

// README: Bed inventory handlers: create, get, status update, availability listing and counts.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"lifeline/internal/modules/inventory"
	"lifeline/internal/types"
)

type BedService interface {
	Create(ctx context.Context, cmd inventory.CreateCommand) (*inventory.Bed, error)
	Get(ctx context.Context, id types.ID) (*inventory.Bed, error)
	SetStatus(ctx context.Context, id types.ID, status string) (*inventory.Bed, error)
	ListAvailable(ctx context.Context, facilityID types.ID, kind string) ([]inventory.Bed, error)
	CountAvailable(ctx context.Context, facilityID types.ID, kind string) (int, error)
}

type BedHandler struct {
	beds BedService
	log  zerolog.Logger
}

func NewBedHandler(svc BedService, log zerolog.Logger) *BedHandler {
	return &BedHandler{beds: svc, log: log}
}

type createBedReq struct {
	HospitalID string `json:"hospital_id" binding:"required"`
	BedNumber  string `json:"bed_number" binding:"required"`
	BedType    string `json:"bed_type" binding:"required"`
}

type setStatusReq struct {
	Status string `json:"status" binding:"required"`
}

func (h *BedHandler) Create(c *gin.Context) {
	var req createBedReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "missing fields")
		return
	}
	b, err := h.beds.Create(c.Request.Context(), inventory.CreateCommand{
		FacilityID: types.ID(req.HospitalID),
		Number:     req.BedNumber,
		Kind:       req.BedType,
	})
	if err != nil {
		writeBedError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusCreated, b)
}

func (h *BedHandler) Get(c *gin.Context) {
	b, err := h.beds.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeBedError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}

func (h *BedHandler) SetStatus(c *gin.Context) {
	var req setStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "missing status")
		return
	}
	b, err := h.beds.SetStatus(c.Request.Context(), types.ID(c.Param("id")), req.Status)
	if err != nil {
		writeBedError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}

func (h *BedHandler) ListAvailable(c *gin.Context) {
	beds, err := h.beds.ListAvailable(c.Request.Context(), types.ID(c.Query("hospital_id")), c.Query("bed_type"))
	if err != nil {
		writeBedError(c, h.log, err)
		return
	}
	if beds == nil {
		beds = []inventory.Bed{}
	}
	writeJSON(c, http.StatusOK, map[string]any{"beds": beds})
}

func (h *BedHandler) CountAvailable(c *gin.Context) {
	hospitalID, kind := c.Query("hospital_id"), c.Query("bed_type")
	n, err := h.beds.CountAvailable(c.Request.Context(), types.ID(hospitalID), kind)
	if err != nil {
		writeBedError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"hospital_id": hospitalID, "bed_type": kind, "available": n})
}

// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"lifeline/internal/modules/facility"
	"lifeline/internal/modules/geo"
	"lifeline/internal/modules/inventory"
	"lifeline/internal/modules/matching"
	"lifeline/internal/modules/reservation"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeCodedError(c *gin.Context, status int, code, msg string) {
	writeJSON(c, status, errorResponse{Error: msg, Code: code})
}

func writeInternal(c *gin.Context, log zerolog.Logger, err error) {
	log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	writeError(c, http.StatusInternalServerError, "internal error")
}

func writeMatchError(c *gin.Context, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, matching.ErrInvalidRequest):
		writeCodedError(c, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, matching.ErrNoAvailability):
		writeCodedError(c, http.StatusNotFound, "no_availability", err.Error())
	case errors.Is(err, matching.ErrRetryExhausted):
		writeCodedError(c, http.StatusConflict, "retry_exhausted", "beds were taken concurrently; retry the request")
	case errors.Is(err, reservation.ErrNotFound):
		writeCodedError(c, http.StatusNotFound, "not_found", err.Error())
	default:
		writeInternal(c, log, err)
	}
}

func writeFacilityError(c *gin.Context, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, facility.ErrBadRequest),
		errors.Is(err, facility.ErrInvalidRadius),
		errors.Is(err, geo.ErrInvalidLatitude),
		errors.Is(err, geo.ErrInvalidLongitude):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, facility.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	default:
		writeInternal(c, log, err)
	}
}

func writeBedError(c *gin.Context, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, inventory.ErrBadRequest),
		errors.Is(err, inventory.ErrInvalidKind),
		errors.Is(err, inventory.ErrInvalidStatus):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, inventory.ErrNotFound), errors.Is(err, inventory.ErrFacilityNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, inventory.ErrDuplicateNumber):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeInternal(c, log, err)
	}
}

// queryFloat parses a required float query parameter.
func queryFloat(c *gin.Context, key string) (float64, bool) {
	v := c.Query(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

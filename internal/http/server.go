// README: API gateway; builds the gin engine and delegates to module services.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"lifeline/internal/http/handlers"
	"lifeline/internal/http/middleware"
)

type ServerDeps struct {
	Matching  handlers.Matcher
	Facility  handlers.FacilityService
	Inventory handlers.BedService
	// ETA is optional.
	ETA    handlers.ETAEstimator
	Logger zerolog.Logger
}

type Server struct {
	ambulance *handlers.AmbulanceHandler
	hospital  *handlers.HospitalHandler
	bed       *handlers.BedHandler
	log       zerolog.Logger
}

func NewServer(deps ServerDeps) *Server {
	log := deps.Logger.With().Str("module", "http").Logger()
	return &Server{
		ambulance: handlers.NewAmbulanceHandler(deps.Matching, deps.ETA, log),
		hospital:  handlers.NewHospitalHandler(deps.Facility, log),
		bed:       handlers.NewBedHandler(deps.Inventory, log),
		log:       log,
	}
}

func (s *Server) Routes() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(s.log), middleware.Logging(s.log))
	s.register(r)
	return r
}

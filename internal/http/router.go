// README: HTTP route registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) register(r *gin.Engine) {
	api := r.Group("/api")

	api.POST("/ambulance/find-nearest", s.ambulance.FindNearest)
	api.GET("/ambulance/bed-types", s.ambulance.BedTypes)
	api.GET("/ambulance/:id/reservation", s.ambulance.ActiveReservation)

	api.POST("/hospitals", s.hospital.Create)
	api.GET("/hospitals/nearby", s.hospital.Nearby)
	api.GET("/hospitals/stats", s.hospital.Stats)
	api.GET("/hospitals/:id", s.hospital.Get)
	api.PUT("/hospitals/:id", s.hospital.Update)

	api.POST("/beds", s.bed.Create)
	api.GET("/beds/:id", s.bed.Get)
	api.PUT("/beds/:id/status", s.bed.SetStatus)
	api.GET("/beds/available", s.bed.ListAvailable)
	api.GET("/beds/available/count", s.bed.CountAvailable)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
}

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/fleetbridge/internal/models"
	"github.com/langchou/fleetbridge/internal/provider"
)

// IFTAReport 生成季度 IFTA 报表
// ?quarter=2025-Q3&source=eld|manual|combined
func (h *Handler) IFTAReport(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	quarter := c.DefaultQuery("quarter", provider.QuarterOf(time.Now()))
	source := c.Query("source")

	report, err := h.iftaEngine.BuildReport(c.Request.Context(), userID, quarter, source)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}

// ListManualTrips 列出手动行程
// ?from=&to=（RFC3339，默认当前季度）
func (h *Handler) ListManualTrips(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	from, to, err := provider.QuarterRange(provider.QuarterOf(time.Now()))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve quarter"})
		return
	}
	if raw := c.Query("from"); raw != "" {
		if t, perr := time.Parse(time.RFC3339, raw); perr == nil {
			from = t
		}
	}
	if raw := c.Query("to"); raw != "" {
		if t, perr := time.Parse(time.RFC3339, raw); perr == nil {
			to = t
		}
	}

	trips, err := h.manualTripRepo.ListByUser(c.Request.Context(), userID, from, to)
	if err != nil {
		h.logger.Error("Failed to list manual trips", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list manual trips"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": trips})
}

// CreateManualTrip 录入一条手动行程及辖区切换点
func (h *Handler) CreateManualTrip(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req struct {
		VehicleID     int64   `json:"vehicle_id" binding:"required"`
		TripDate      string  `json:"trip_date" binding:"required"` // YYYY-MM-DD
		StartOdometer float64 `json:"start_odometer"`
		EndOdometer   float64 `json:"end_odometer" binding:"required"`
		Crossings     []struct {
			Jurisdiction string  `json:"jurisdiction" binding:"required"`
			Odometer     float64 `json:"odometer"`
		} `json:"crossings" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tripDate, err := time.Parse("2006-01-02", req.TripDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "trip_date must be YYYY-MM-DD"})
		return
	}
	if req.EndOdometer <= req.StartOdometer {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_odometer must be greater than start_odometer"})
		return
	}

	// 车辆必须属于当前用户
	vehicle, err := h.fleetRepo.GetVehicle(c.Request.Context(), req.VehicleID)
	if err != nil || vehicle.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Vehicle not found"})
		return
	}

	trip := &models.ManualTrip{
		UserID:        userID,
		VehicleID:     req.VehicleID,
		TripDate:      tripDate,
		StartOdometer: req.StartOdometer,
		EndOdometer:   req.EndOdometer,
	}
	crossings := make([]*models.StateCrossing, 0, len(req.Crossings))
	for _, cr := range req.Crossings {
		crossings = append(crossings, &models.StateCrossing{
			Jurisdiction: cr.Jurisdiction,
			Odometer:     cr.Odometer,
		})
	}

	if err := h.manualTripRepo.Create(c.Request.Context(), trip, crossings); err != nil {
		h.logger.Error("Failed to create manual trip", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create manual trip"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": gin.H{
		"trip":      trip,
		"crossings": crossings,
	}})
}

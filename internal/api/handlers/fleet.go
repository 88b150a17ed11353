package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/fleetbridge/internal/models"
)

// ListVehicles 获取车辆列表
func (h *Handler) ListVehicles(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	vehicles, err := h.fleetRepo.ListVehiclesByUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list vehicles", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list vehicles"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": vehicles})
}

// CreateVehicle 创建本地车辆
func (h *Handler) CreateVehicle(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req struct {
		Name         string `json:"name" binding:"required"`
		VIN          string `json:"vin"`
		LicensePlate string `json:"license_plate"`
		Make         string `json:"make"`
		Model        string `json:"model"`
		Year         *int   `json:"year"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	v := &models.Vehicle{
		UserID:       userID,
		Name:         req.Name,
		VIN:          req.VIN,
		LicensePlate: req.LicensePlate,
		Make:         req.Make,
		Model:        req.Model,
		Year:         req.Year,
	}
	if err := h.fleetRepo.CreateVehicle(c.Request.Context(), v); err != nil {
		h.logger.Error("Failed to create vehicle", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create vehicle"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": v})
}

// ListDrivers 获取司机列表
func (h *Handler) ListDrivers(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	drivers, err := h.fleetRepo.ListDriversByUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list drivers", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list drivers"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": drivers})
}

// CreateDriver 创建本地司机
func (h *Handler) CreateDriver(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req struct {
		Name          string `json:"name" binding:"required"`
		LicenseNumber string `json:"license_number"`
		LicenseState  string `json:"license_state"`
		Phone         string `json:"phone"`
		Email         string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d := &models.Driver{
		UserID:        userID,
		Name:          req.Name,
		LicenseNumber: req.LicenseNumber,
		LicenseState:  req.LicenseState,
		Phone:         req.Phone,
		Email:         req.Email,
	}
	if err := h.fleetRepo.CreateDriver(c.Request.Context(), d); err != nil {
		h.logger.Error("Failed to create driver", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create driver"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": d})
}

// LatestPositions 获取每辆车的最新位置
// 可选 bbox 过滤：?min_lon=&min_lat=&max_lon=&max_lat=
func (h *Handler) LatestPositions(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	if c.Query("min_lon") != "" {
		minLon, err1 := strconv.ParseFloat(c.Query("min_lon"), 64)
		minLat, err2 := strconv.ParseFloat(c.Query("min_lat"), 64)
		maxLon, err3 := strconv.ParseFloat(c.Query("max_lon"), 64)
		maxLat, err4 := strconv.ParseFloat(c.Query("max_lat"), 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bounding box"})
			return
		}

		positions, err := h.gpsReader.WithinBounds(c.Request.Context(), userID, minLon, minLat, maxLon, maxLat)
		if err != nil {
			h.logger.Error("Failed to filter positions", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list positions"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": positions})
		return
	}

	positions, err := h.gpsReader.LatestPositions(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list positions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list positions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": positions})
}

// PositionsNearby 获取中心点半径内的最新位置
// ?lat=&lon=&radius_km=
func (h *Handler) PositionsNearby(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	lat, err1 := strconv.ParseFloat(c.Query("lat"), 64)
	lon, err2 := strconv.ParseFloat(c.Query("lon"), 64)
	radiusKm, err3 := strconv.ParseFloat(c.DefaultQuery("radius_km", "50"), 64)
	if err1 != nil || err2 != nil || err3 != nil || radiusKm <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid lat/lon/radius_km"})
		return
	}

	positions, err := h.gpsReader.WithinRadius(c.Request.Context(), userID, lat, lon, radiusKm)
	if err != nil {
		h.logger.Error("Failed to query nearby positions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query nearby positions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": positions})
}

// PositionHistory 获取单辆车的位置轨迹
// ?connection_id=&external_vehicle_id=&from=&to=（RFC3339）
func (h *Handler) PositionHistory(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	connID, err := strconv.ParseInt(c.Query("connection_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid connection_id"})
		return
	}
	externalVehicleID := c.Query("external_vehicle_id")
	if externalVehicleID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing external_vehicle_id"})
		return
	}

	conn, err := h.connManager.Get(c.Request.Context(), connID)
	if err != nil || conn.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Connection not found"})
		return
	}

	from, to := timeRange(c, 24*time.Hour)
	locations, err := h.gpsReader.History(c.Request.Context(), connID, externalVehicleID, from, to)
	if err != nil {
		h.logger.Error("Failed to list position history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list position history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": locations})
}

// DriverStatuses 获取司机值班状态视图
func (h *Handler) DriverStatuses(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	statuses, err := h.hosReader.DriverStatuses(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list driver statuses", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list driver statuses"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": statuses})
}

// DriverHOSLogs 获取单个司机的值班日志
// ?connection_id=&external_driver_id=&from=&to=
func (h *Handler) DriverHOSLogs(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	connID, err := strconv.ParseInt(c.Query("connection_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid connection_id"})
		return
	}
	externalDriverID := c.Query("external_driver_id")
	if externalDriverID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing external_driver_id"})
		return
	}

	conn, err := h.connManager.Get(c.Request.Context(), connID)
	if err != nil || conn.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Connection not found"})
		return
	}

	from, to := timeRange(c, 7*24*time.Hour)
	logs, err := h.hosReader.Logs(c.Request.Context(), connID, externalDriverID, from, to)
	if err != nil {
		h.logger.Error("Failed to list hos logs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list hos logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": logs})
}

// ActiveFaults 获取活跃故障码
func (h *Handler) ActiveFaults(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	faults, err := h.diagReader.ActiveFaults(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list faults", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list faults"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": faults})
}

// ClearFault 手动清除故障码
func (h *Handler) ClearFault(c *gin.Context) {
	if _, ok := h.userID(c); !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.diagReader.Clear(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Fault not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Fault cleared"})
}

// timeRange 解析 from/to 查询参数，缺省回看 defaultLookback
func timeRange(c *gin.Context, defaultLookback time.Duration) (time.Time, time.Time) {
	to := time.Now()
	from := to.Add(-defaultLookback)
	if raw := c.Query("from"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			from = t
		}
	}
	if raw := c.Query("to"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			to = t
		}
	}
	return from, to
}

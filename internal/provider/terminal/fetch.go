package terminal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/langchou/fleetbridge/internal/models"
	"github.com/langchou/fleetbridge/internal/provider"
)

// Terminal 的统一模型：camelCase 字段，游标分页 {results, next}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// FetchVehicles 获取全部车辆
func (c *Client) FetchVehicles(ctx context.Context) ([]models.Vehicle, error) {
	var out []models.Vehicle
	err := c.fetchAllPages(ctx, "/vehicles", nil, func(results json.RawMessage) error {
		var page []struct {
			ID           string `json:"id"`
			Name         string `json:"name"`
			VIN          string `json:"vin"`
			LicensePlate string `json:"licensePlate"`
			Make         string `json:"make"`
			Model        string `json:"model"`
		}
		if err := json.Unmarshal(results, &page); err != nil {
			return fmt.Errorf("decode vehicles: %w", err)
		}
		for _, v := range page {
			out = append(out, models.Vehicle{
				ExternalID:   v.ID,
				Name:         v.Name,
				VIN:          v.VIN,
				LicensePlate: v.LicensePlate,
				Make:         v.Make,
				Model:        v.Model,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchDrivers 获取全部司机
func (c *Client) FetchDrivers(ctx context.Context) ([]models.Driver, error) {
	var out []models.Driver
	err := c.fetchAllPages(ctx, "/drivers", nil, func(results json.RawMessage) error {
		var page []struct {
			ID            string `json:"id"`
			FirstName     string `json:"firstName"`
			LastName      string `json:"lastName"`
			LicenseNumber string `json:"licenseNumber"`
			LicenseState  string `json:"licenseState"`
			Phone         string `json:"phone"`
			Email         string `json:"email"`
			Status        string `json:"status"`
		}
		if err := json.Unmarshal(results, &page); err != nil {
			return fmt.Errorf("decode drivers: %w", err)
		}
		for _, d := range page {
			out = append(out, models.Driver{
				ExternalID:    d.ID,
				Name:          d.FirstName + " " + d.LastName,
				LicenseNumber: d.LicenseNumber,
				LicenseState:  d.LicenseState,
				Phone:         d.Phone,
				Email:         d.Email,
				Status:        d.Status,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// wireLocation Terminal 统一位置模型
type wireLocation struct {
	ID        string  `json:"id"`
	VehicleID string  `json:"vehicle"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Heading   float64 `json:"heading"`
	SpeedMph  float64 `json:"speed"`
	Odometer  float64 `json:"odometer"` // km
	Address   string  `json:"formattedAddress"`
	LocatedAt string  `json:"locatedAt"`
}

func (l wireLocation) toModel() models.GPSLocation {
	heading := l.Heading
	speed := l.SpeedMph
	odo := l.Odometer
	return models.GPSLocation{
		ExternalID:        l.ID,
		ExternalVehicleID: l.VehicleID,
		Latitude:          l.Latitude,
		Longitude:         l.Longitude,
		Heading:           &heading,
		SpeedMph:          &speed,
		OdometerKm:        &odo,
		Address:           l.Address,
		RecordedAt:        parseTime(l.LocatedAt),
	}
}

// FetchCurrentLocations 获取全部车辆的当前位置
func (c *Client) FetchCurrentLocations(ctx context.Context) ([]models.GPSLocation, error) {
	q := url.Values{}
	q.Set("latest", "true")
	var out []models.GPSLocation
	err := c.fetchAllPages(ctx, "/vehicles/locations", q, func(results json.RawMessage) error {
		var page []wireLocation
		if err := json.Unmarshal(results, &page); err != nil {
			return fmt.Errorf("decode locations: %w", err)
		}
		for _, l := range page {
			out = append(out, l.toModel())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchLocationHistory 获取某车辆的历史轨迹
func (c *Client) FetchLocationHistory(ctx context.Context, vehicleExternalID string, from, to time.Time) ([]models.GPSLocation, error) {
	q := url.Values{}
	q.Set("vehicleIds", vehicleExternalID)
	q.Set("startedAt", from.Format(time.RFC3339))
	q.Set("endedAt", to.Format(time.RFC3339))

	var out []models.GPSLocation
	err := c.fetchAllPages(ctx, "/vehicles/locations", q, func(results json.RawMessage) error {
		var page []wireLocation
		if err := json.Unmarshal(results, &page); err != nil {
			return fmt.Errorf("decode location history: %w", err)
		}
		for _, l := range page {
			out = append(out, l.toModel())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchHOSLogs 获取值班状态日志
func (c *Client) FetchHOSLogs(ctx context.Context, from, to time.Time) ([]models.HOSLog, error) {
	q := url.Values{}
	q.Set("startedAt", from.Format(time.RFC3339))
	q.Set("endedAt", to.Format(time.RFC3339))

	var out []models.HOSLog
	err := c.fetchAllPages(ctx, "/hos/logs", q, func(results json.RawMessage) error {
		var page []struct {
			ID         string `json:"id"`
			DriverID   string `json:"driver"`
			DutyStatus string `json:"dutyStatus"`
			StartedAt  string `json:"startedAt"`
			EndedAt    string `json:"endedAt"`
			Location   string `json:"location"`
			Remark     string `json:"remark"`
		}
		if err := json.Unmarshal(results, &page); err != nil {
			return fmt.Errorf("decode hos logs: %w", err)
		}
		for _, l := range page {
			log := models.HOSLog{
				ExternalID:       l.ID,
				ExternalDriverID: l.DriverID,
				DutyStatus:       l.DutyStatus,
				StartedAt:        parseTime(l.StartedAt),
				Location:         l.Location,
				Remark:           l.Remark,
			}
			if l.EndedAt != "" {
				ended := parseTime(l.EndedAt)
				log.EndedAt = &ended
			}
			out = append(out, log)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchHOSDailyLogs 获取每日汇总日志
func (c *Client) FetchHOSDailyLogs(ctx context.Context, from, to time.Time) ([]models.HOSDailyLog, error) {
	q := url.Values{}
	q.Set("startDate", from.Format("2006-01-02"))
	q.Set("endDate", to.Format("2006-01-02"))

	var out []models.HOSDailyLog
	err := c.fetchAllPages(ctx, "/hos/daily-logs", q, func(results json.RawMessage) error {
		var page []struct {
			DriverID          string   `json:"driver"`
			Date              string   `json:"date"`
			DriveMinutes      int      `json:"driveMinutes"`
			OnDutyMinutes     int      `json:"onDutyMinutes"`
			DriveRemainingMin int      `json:"driveRemainingMinutes"`
			CycleRemainingMin int      `json:"cycleRemainingMinutes"`
			Violations        []string `json:"violations"`
		}
		if err := json.Unmarshal(results, &page); err != nil {
			return fmt.Errorf("decode daily logs: %w", err)
		}
		for _, d := range page {
			logDate, _ := time.Parse("2006-01-02", d.Date)
			dl := models.HOSDailyLog{
				ExternalDriverID:  d.DriverID,
				LogDate:           logDate,
				DriveMinutes:      d.DriveMinutes,
				OnDutyMinutes:     d.OnDutyMinutes,
				RemainingDriveMin: d.DriveRemainingMin,
				CycleRemainingMin: d.CycleRemainingMin,
				HasViolation:      len(d.Violations) > 0,
			}
			for i, v := range d.Violations {
				if i > 0 {
					dl.ViolationRemarks += "; "
				}
				dl.ViolationRemarks += v
			}
			out = append(out, dl)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchIFTASummary 获取指定季度的辖区里程汇总
func (c *Client) FetchIFTASummary(ctx context.Context, quarter string) ([]models.IFTAMileage, error) {
	from, to, err := provider.QuarterRange(quarter)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("startedAt", from.Format(time.RFC3339))
	q.Set("endedAt", to.Format(time.RFC3339))
	q.Set("groupBy", "jurisdiction")

	var out []models.IFTAMileage
	ferr := c.fetchAllPages(ctx, "/ifta/summaries", q, func(results json.RawMessage) error {
		var page []struct {
			VehicleID    string  `json:"vehicle"`
			Jurisdiction string  `json:"jurisdiction"`
			Miles        float64 `json:"totalMiles"`
		}
		if err := json.Unmarshal(results, &page); err != nil {
			return fmt.Errorf("decode ifta summaries: %w", err)
		}
		for _, e := range page {
			out = append(out, models.IFTAMileage{
				ExternalVehicleID: e.VehicleID,
				Jurisdiction:      e.Jurisdiction,
				Quarter:           quarter,
				Miles:             e.Miles,
			})
		}
		return nil
	})
	if ferr != nil {
		return nil, ferr
	}
	return out, nil
}

// FetchFaultCodes 聚合器把故障上报归在 safety events 里
func (c *Client) FetchFaultCodes(ctx context.Context) ([]models.FaultCode, error) {
	var out []models.FaultCode
	err := c.fetchAllPages(ctx, "/safety/events", nil, func(results json.RawMessage) error {
		var page []struct {
			ID          string `json:"id"`
			VehicleID   string `json:"vehicle"`
			Code        string `json:"code"`
			Description string `json:"description"`
			Severity    string `json:"severity"`
			Active      bool   `json:"active"`
			OccurredAt  string `json:"occurredAt"`
			ResolvedAt  string `json:"resolvedAt"`
		}
		if err := json.Unmarshal(results, &page); err != nil {
			return fmt.Errorf("decode safety events: %w", err)
		}
		for _, f := range page {
			fc := models.FaultCode{
				ExternalID:        f.ID,
				ExternalVehicleID: f.VehicleID,
				Code:              f.Code,
				Description:       f.Description,
				Severity:          f.Severity,
				IsActive:          f.Active,
				ReportedAt:        parseTime(f.OccurredAt),
			}
			if f.ResolvedAt != "" {
				resolved := parseTime(f.ResolvedAt)
				fc.ResolvedAt = &resolved
			}
			out = append(out, fc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchFuelPurchases 聚合器暂未统一加油记录接口
func (c *Client) FetchFuelPurchases(ctx context.Context, from, to time.Time) ([]models.FuelPurchase, error) {
	return nil, provider.ErrNotSupported
}

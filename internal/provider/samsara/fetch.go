package samsara

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/langchou/fleetbridge/internal/models"
	"github.com/langchou/fleetbridge/internal/provider"
)

// ============ 线格式（Samsara 侧） ============

type wireVehicle struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	VIN          string `json:"vin"`
	LicensePlate string `json:"licensePlate"`
	Make         string `json:"make"`
	Model        string `json:"model"`
	Year         string `json:"year"`
}

type wireDriver struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	LicenseNumber string `json:"licenseNumber"`
	LicenseState  string `json:"licenseState"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	DriverStatus  string `json:"driverActivationStatus"`
}

type wireLocation struct {
	Time      string  `json:"time"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Heading   float64 `json:"heading"`
	Speed     float64 `json:"speed"` // mph
	Address   struct {
		FormattedLocation string `json:"formattedLocation"`
	} `json:"reverseGeo"`
}

type wireVehicleLocation struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Location wireLocation `json:"location"`
}

type wireHOSLog struct {
	ID     string `json:"id"`
	Driver struct {
		ID string `json:"id"`
	} `json:"driver"`
	HosStatusType string `json:"hosStatusType"`
	LogStartTime  string `json:"logStartTime"`
	LogEndTime    string `json:"logEndTime"`
	Remark        string `json:"remark"`
}

type wireDailyLog struct {
	Driver struct {
		ID string `json:"id"`
	} `json:"driver"`
	LogDate              string `json:"startTime"`
	DriveMs              int64  `json:"activeTimeMs"`
	OnDutyMs             int64  `json:"onDutyTimeMs"`
	DriveRemainingMs     int64  `json:"driveRemainingMs"`
	CycleRemainingMs     int64  `json:"cycleRemainingMs"`
	Violations           []struct {
		Type string `json:"type"`
	} `json:"violations"`
}

type wireIFTAEntry struct {
	Vehicle struct {
		ID string `json:"id"`
	} `json:"vehicle"`
	Jurisdiction string  `json:"jurisdiction"`
	TotalMiles   float64 `json:"totalMiles"`
}

type wireFault struct {
	ID      string `json:"id"`
	Vehicle struct {
		ID string `json:"id"`
	} `json:"vehicle"`
	Code        string `json:"spnDescription"`
	CodeID      string `json:"spnId"`
	Description string `json:"fmiDescription"`
	Severity    string `json:"severity"`
	IsActive    bool   `json:"isActive"`
	OccurredAt  string `json:"occurredAtTime"`
}

type wireFuelPurchase struct {
	ID      string `json:"id"`
	Vehicle struct {
		ID string `json:"id"`
	} `json:"vehicle"`
	Jurisdiction    string  `json:"jurisdiction"`
	FuelVolumeGal   float64 `json:"fuelVolumeGallons"`
	TotalPriceCents float64 `json:"totalPriceCents"`
	FuelType        string  `json:"fuelType"`
	Vendor          string  `json:"merchantName"`
	TransactionTime string  `json:"transactionTime"`
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ============ 拉取操作 ============

// FetchVehicles 获取全部车辆
func (c *Client) FetchVehicles(ctx context.Context) ([]models.Vehicle, error) {
	var out []models.Vehicle
	err := c.fetchAllPages(ctx, "/fleet/vehicles", nil, func(data json.RawMessage) error {
		var page []wireVehicle
		if err := json.Unmarshal(data, &page); err != nil {
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
	err := c.fetchAllPages(ctx, "/fleet/drivers", nil, func(data json.RawMessage) error {
		var page []wireDriver
		if err := json.Unmarshal(data, &page); err != nil {
			return fmt.Errorf("decode drivers: %w", err)
		}
		for _, d := range page {
			out = append(out, models.Driver{
				ExternalID:    d.ID,
				Name:          d.Name,
				LicenseNumber: d.LicenseNumber,
				LicenseState:  d.LicenseState,
				Phone:         d.Phone,
				Email:         d.Email,
				Status:        d.DriverStatus,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchCurrentLocations 获取全部车辆的当前位置
func (c *Client) FetchCurrentLocations(ctx context.Context) ([]models.GPSLocation, error) {
	var out []models.GPSLocation
	err := c.fetchAllPages(ctx, "/fleet/vehicles/locations", nil, func(data json.RawMessage) error {
		var page []wireVehicleLocation
		if err := json.Unmarshal(data, &page); err != nil {
			return fmt.Errorf("decode locations: %w", err)
		}
		for _, v := range page {
			loc := v.Location
			recordedAt := parseTime(loc.Time)
			heading := loc.Heading
			speed := loc.Speed
			out = append(out, models.GPSLocation{
				ExternalID:        v.ID + "-" + loc.Time,
				ExternalVehicleID: v.ID,
				Latitude:          loc.Latitude,
				Longitude:         loc.Longitude,
				Heading:           &heading,
				SpeedMph:          &speed,
				Address:           loc.Address.FormattedLocation,
				RecordedAt:        recordedAt,
			})
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
	q.Set("startTime", from.Format(time.RFC3339))
	q.Set("endTime", to.Format(time.RFC3339))

	var out []models.GPSLocation
	err := c.fetchAllPages(ctx, "/fleet/vehicles/locations/history", q, func(data json.RawMessage) error {
		var page []struct {
			ID        string         `json:"id"`
			Locations []wireLocation `json:"locations"`
		}
		if err := json.Unmarshal(data, &page); err != nil {
			return fmt.Errorf("decode location history: %w", err)
		}
		for _, v := range page {
			for _, loc := range v.Locations {
				heading := loc.Heading
				speed := loc.Speed
				out = append(out, models.GPSLocation{
					ExternalID:        v.ID + "-" + loc.Time,
					ExternalVehicleID: v.ID,
					Latitude:          loc.Latitude,
					Longitude:         loc.Longitude,
					Heading:           &heading,
					SpeedMph:          &speed,
					Address:           loc.Address.FormattedLocation,
					RecordedAt:        parseTime(loc.Time),
				})
			}
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
	q.Set("startTime", from.Format(time.RFC3339))
	q.Set("endTime", to.Format(time.RFC3339))

	var out []models.HOSLog
	err := c.fetchAllPages(ctx, "/fleet/hos/logs", q, func(data json.RawMessage) error {
		var page []wireHOSLog
		if err := json.Unmarshal(data, &page); err != nil {
			return fmt.Errorf("decode hos logs: %w", err)
		}
		for _, l := range page {
			log := models.HOSLog{
				ExternalID:       l.ID,
				ExternalDriverID: l.Driver.ID,
				DutyStatus:       l.HosStatusType,
				StartedAt:        parseTime(l.LogStartTime),
				Remark:           l.Remark,
			}
			if l.LogEndTime != "" {
				ended := parseTime(l.LogEndTime)
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
	err := c.fetchAllPages(ctx, "/fleet/hos/daily-logs", q, func(data json.RawMessage) error {
		var page []wireDailyLog
		if err := json.Unmarshal(data, &page); err != nil {
			return fmt.Errorf("decode daily logs: %w", err)
		}
		for _, d := range page {
			dl := models.HOSDailyLog{
				ExternalDriverID:  d.Driver.ID,
				LogDate:           parseTime(d.LogDate),
				DriveMinutes:      int(d.DriveMs / 60000),
				OnDutyMinutes:     int(d.OnDutyMs / 60000),
				RemainingDriveMin: int(d.DriveRemainingMs / 60000),
				CycleRemainingMin: int(d.CycleRemainingMs / 60000),
				HasViolation:      len(d.Violations) > 0,
			}
			for i, v := range d.Violations {
				if i > 0 {
					dl.ViolationRemarks += "; "
				}
				dl.ViolationRemarks += v.Type
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
	year, q, err := provider.ParseQuarter(quarter)
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	query.Set("year", fmt.Sprintf("%d", year))
	query.Set("quarter", fmt.Sprintf("Q%d", q))

	var out []models.IFTAMileage
	ferr := c.fetchAllPages(ctx, "/fleet/reports/ifta/vehicle", query, func(data json.RawMessage) error {
		var page []wireIFTAEntry
		if err := json.Unmarshal(data, &page); err != nil {
			return fmt.Errorf("decode ifta summary: %w", err)
		}
		for _, e := range page {
			out = append(out, models.IFTAMileage{
				ExternalVehicleID: e.Vehicle.ID,
				Jurisdiction:      e.Jurisdiction,
				Quarter:           quarter,
				Miles:             e.TotalMiles,
			})
		}
		return nil
	})
	if ferr != nil {
		return nil, ferr
	}
	return out, nil
}

// FetchFaultCodes 获取车辆故障码
func (c *Client) FetchFaultCodes(ctx context.Context) ([]models.FaultCode, error) {
	var out []models.FaultCode
	err := c.fetchAllPages(ctx, "/fleet/defects", nil, func(data json.RawMessage) error {
		var page []wireFault
		if err := json.Unmarshal(data, &page); err != nil {
			return fmt.Errorf("decode fault codes: %w", err)
		}
		for _, f := range page {
			code := f.CodeID
			if code == "" {
				code = f.Code
			}
			out = append(out, models.FaultCode{
				ExternalID:        f.ID,
				ExternalVehicleID: f.Vehicle.ID,
				Code:              code,
				Description:       f.Description,
				Severity:          f.Severity,
				IsActive:          f.IsActive,
				ReportedAt:        parseTime(f.OccurredAt),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchFuelPurchases 获取加油记录
func (c *Client) FetchFuelPurchases(ctx context.Context, from, to time.Time) ([]models.FuelPurchase, error) {
	q := url.Values{}
	q.Set("startTime", from.Format(time.RFC3339))
	q.Set("endTime", to.Format(time.RFC3339))

	var out []models.FuelPurchase
	err := c.fetchAllPages(ctx, "/fleet/fuel-purchases", q, func(data json.RawMessage) error {
		var page []wireFuelPurchase
		if err := json.Unmarshal(data, &page); err != nil {
			return fmt.Errorf("decode fuel purchases: %w", err)
		}
		for _, p := range page {
			cost := p.TotalPriceCents / 100
			out = append(out, models.FuelPurchase{
				ExternalID:        p.ID,
				ExternalVehicleID: p.Vehicle.ID,
				Jurisdiction:      p.Jurisdiction,
				Gallons:           p.FuelVolumeGal,
				TotalCost:         &cost,
				FuelType:          p.FuelType,
				Vendor:            p.Vendor,
				PurchasedAt:       parseTime(p.TransactionTime),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

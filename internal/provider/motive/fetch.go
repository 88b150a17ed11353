package motive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/langchou/fleetbridge/internal/models"
	"github.com/langchou/fleetbridge/internal/provider"
)

// Motive 的列表响应将每条记录包在实体名对象里，
// 例如 {"vehicles": [{"vehicle": {...}}, ...], "pagination": {...}}

type wireVehicle struct {
	ID           int64  `json:"id"`
	Number       string `json:"number"`
	VIN          string `json:"vin"`
	LicensePlate string `json:"license_plate_number"`
	Make         string `json:"make"`
	Model        string `json:"model"`
	Year         string `json:"year"`
}

type wireDriver struct {
	ID            int64  `json:"id"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	LicenseNumber string `json:"driver_company_id"`
	LicenseState  string `json:"license_state"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	Status        string `json:"status"`
}

type wireLocation struct {
	ID        int64   `json:"id"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Bearing   float64 `json:"bearing"`
	SpeedKph  float64 `json:"speed"`
	Odometer  float64 `json:"odometer"`
	Located   string  `json:"located_at"`
	Address   string  `json:"description"`
	VehicleID int64   `json:"vehicle_id"`
}

const kphToMph = 0.621371

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
	err := c.fetchAllPages(ctx, "/v1/vehicles", nil, func(body []byte) (int, error) {
		var page struct {
			Vehicles []struct {
				Vehicle wireVehicle `json:"vehicle"`
			} `json:"vehicles"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return 0, fmt.Errorf("decode vehicles: %w", err)
		}
		for _, item := range page.Vehicles {
			v := item.Vehicle
			out = append(out, models.Vehicle{
				ExternalID:   strconv.FormatInt(v.ID, 10),
				Name:         v.Number,
				VIN:          v.VIN,
				LicensePlate: v.LicensePlate,
				Make:         v.Make,
				Model:        v.Model,
			})
		}
		return len(page.Vehicles), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchDrivers 获取全部司机
func (c *Client) FetchDrivers(ctx context.Context) ([]models.Driver, error) {
	var out []models.Driver
	err := c.fetchAllPages(ctx, "/v1/users", url.Values{"role": []string{"driver"}}, func(body []byte) (int, error) {
		var page struct {
			Users []struct {
				User wireDriver `json:"user"`
			} `json:"users"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return 0, fmt.Errorf("decode drivers: %w", err)
		}
		for _, item := range page.Users {
			d := item.User
			out = append(out, models.Driver{
				ExternalID:    strconv.FormatInt(d.ID, 10),
				Name:          d.FirstName + " " + d.LastName,
				LicenseNumber: d.LicenseNumber,
				LicenseState:  d.LicenseState,
				Phone:         d.Phone,
				Email:         d.Email,
				Status:        d.Status,
			})
		}
		return len(page.Users), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// locationToModel 转换为规范化位置记录
func locationToModel(loc wireLocation, vehicleID int64) models.GPSLocation {
	heading := loc.Bearing
	speed := loc.SpeedKph * kphToMph
	odo := loc.Odometer
	extVehicle := strconv.FormatInt(vehicleID, 10)
	return models.GPSLocation{
		ExternalID:        strconv.FormatInt(loc.ID, 10),
		ExternalVehicleID: extVehicle,
		Latitude:          loc.Lat,
		Longitude:         loc.Lon,
		Heading:           &heading,
		SpeedMph:          &speed,
		OdometerKm:        &odo,
		Address:           loc.Address,
		RecordedAt:        parseTime(loc.Located),
	}
}

// FetchCurrentLocations 获取全部车辆的当前位置
func (c *Client) FetchCurrentLocations(ctx context.Context) ([]models.GPSLocation, error) {
	var out []models.GPSLocation
	err := c.fetchAllPages(ctx, "/v1/vehicle_locations", nil, func(body []byte) (int, error) {
		var page struct {
			Vehicles []struct {
				Vehicle struct {
					ID              int64         `json:"id"`
					CurrentLocation *wireLocation `json:"current_location"`
				} `json:"vehicle"`
			} `json:"vehicles"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return 0, fmt.Errorf("decode vehicle locations: %w", err)
		}
		for _, item := range page.Vehicles {
			if item.Vehicle.CurrentLocation == nil {
				continue
			}
			out = append(out, locationToModel(*item.Vehicle.CurrentLocation, item.Vehicle.ID))
		}
		return len(page.Vehicles), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchLocationHistory 获取某车辆的历史轨迹
func (c *Client) FetchLocationHistory(ctx context.Context, vehicleExternalID string, from, to time.Time) ([]models.GPSLocation, error) {
	vehicleID, err := strconv.ParseInt(vehicleExternalID, 10, 64)
	if err != nil {
		return nil, &provider.ValidationError{Field: "vehicle_id", Message: "must be numeric for motive"}
	}

	q := url.Values{}
	q.Set("vehicle_ids", vehicleExternalID)
	q.Set("start_date", from.Format(time.RFC3339))
	q.Set("end_date", to.Format(time.RFC3339))

	var out []models.GPSLocation
	ferr := c.fetchAllPages(ctx, "/v2/vehicle_locations", q, func(body []byte) (int, error) {
		var page struct {
			VehicleLocations []struct {
				VehicleLocation wireLocation `json:"vehicle_location"`
			} `json:"vehicle_locations"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return 0, fmt.Errorf("decode location history: %w", err)
		}
		for _, item := range page.VehicleLocations {
			out = append(out, locationToModel(item.VehicleLocation, vehicleID))
		}
		return len(page.VehicleLocations), nil
	})
	if ferr != nil {
		return nil, ferr
	}
	return out, nil
}

// FetchHOSLogs 获取值班状态日志
func (c *Client) FetchHOSLogs(ctx context.Context, from, to time.Time) ([]models.HOSLog, error) {
	q := url.Values{}
	q.Set("min_start_time", from.Format(time.RFC3339))
	q.Set("max_start_time", to.Format(time.RFC3339))

	var out []models.HOSLog
	err := c.fetchAllPages(ctx, "/v1/hos_logs", q, func(body []byte) (int, error) {
		var page struct {
			HosLogs []struct {
				HosLog struct {
					ID     int64 `json:"id"`
					Driver struct {
						ID int64 `json:"id"`
					} `json:"driver"`
					Status    string `json:"status"`
					StartTime string `json:"start_time"`
					EndTime   string `json:"end_time"`
					Location  string `json:"location"`
					Remark    string `json:"remark"`
				} `json:"hos_log"`
			} `json:"hos_logs"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return 0, fmt.Errorf("decode hos logs: %w", err)
		}
		for _, item := range page.HosLogs {
			l := item.HosLog
			log := models.HOSLog{
				ExternalID:       strconv.FormatInt(l.ID, 10),
				ExternalDriverID: strconv.FormatInt(l.Driver.ID, 10),
				DutyStatus:       l.Status,
				StartedAt:        parseTime(l.StartTime),
				Location:         l.Location,
				Remark:           l.Remark,
			}
			if l.EndTime != "" {
				ended := parseTime(l.EndTime)
				log.EndedAt = &ended
			}
			out = append(out, log)
		}
		return len(page.HosLogs), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchHOSDailyLogs 获取每日汇总日志
func (c *Client) FetchHOSDailyLogs(ctx context.Context, from, to time.Time) ([]models.HOSDailyLog, error) {
	q := url.Values{}
	q.Set("start_date", from.Format("2006-01-02"))
	q.Set("end_date", to.Format("2006-01-02"))

	var out []models.HOSDailyLog
	err := c.fetchAllPages(ctx, "/v1/available_time", q, func(body []byte) (int, error) {
		var page struct {
			Users []struct {
				User struct {
					ID            int64  `json:"id"`
					Date          string `json:"date"`
					DriveMinutes  int    `json:"drive_minutes"`
					DutyMinutes   int    `json:"duty_minutes"`
					DriveLeftMin  int    `json:"available_drive_minutes"`
					CycleLeftMin  int    `json:"available_cycle_minutes"`
					HosViolations []struct {
						Description string `json:"description"`
					} `json:"hos_violations"`
				} `json:"user"`
			} `json:"users"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return 0, fmt.Errorf("decode available time: %w", err)
		}
		for _, item := range page.Users {
			u := item.User
			dl := models.HOSDailyLog{
				ExternalDriverID:  strconv.FormatInt(u.ID, 10),
				LogDate:           parseDate(u.Date),
				DriveMinutes:      u.DriveMinutes,
				OnDutyMinutes:     u.DutyMinutes,
				RemainingDriveMin: u.DriveLeftMin,
				CycleRemainingMin: u.CycleLeftMin,
				HasViolation:      len(u.HosViolations) > 0,
			}
			for i, v := range u.HosViolations {
				if i > 0 {
					dl.ViolationRemarks += "; "
				}
				dl.ViolationRemarks += v.Description
			}
			out = append(out, dl)
		}
		return len(page.Users), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func parseDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// FetchIFTASummary 获取指定季度的辖区里程汇总
func (c *Client) FetchIFTASummary(ctx context.Context, quarter string) ([]models.IFTAMileage, error) {
	year, qn, err := provider.ParseQuarter(quarter)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("year", strconv.Itoa(year))
	q.Set("quarter", strconv.Itoa(qn))

	var out []models.IFTAMileage
	ferr := c.fetchAllPages(ctx, "/v1/ifta/summary", q, func(body []byte) (int, error) {
		var page struct {
			IftaTrips []struct {
				IftaTrip struct {
					VehicleID    int64   `json:"vehicle_id"`
					Jurisdiction string  `json:"jurisdiction"`
					Distance     float64 `json:"distance"` // miles
				} `json:"ifta_trip"`
			} `json:"ifta_trips"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return 0, fmt.Errorf("decode ifta summary: %w", err)
		}
		for _, item := range page.IftaTrips {
			t := item.IftaTrip
			out = append(out, models.IFTAMileage{
				ExternalVehicleID: strconv.FormatInt(t.VehicleID, 10),
				Jurisdiction:      t.Jurisdiction,
				Quarter:           quarter,
				Miles:             t.Distance,
			})
		}
		return len(page.IftaTrips), nil
	})
	if ferr != nil {
		return nil, ferr
	}
	return out, nil
}

// FetchFaultCodes 获取车辆故障码
func (c *Client) FetchFaultCodes(ctx context.Context) ([]models.FaultCode, error) {
	var out []models.FaultCode
	err := c.fetchAllPages(ctx, "/v1/fault_codes", nil, func(body []byte) (int, error) {
		var page struct {
			FaultCodes []struct {
				FaultCode struct {
					ID          int64  `json:"id"`
					VehicleID   int64  `json:"vehicle_id"`
					Code        string `json:"code"`
					Description string `json:"description"`
					Type        string `json:"type"`
					Status      string `json:"status"` // open / resolved
					FirstSeenAt string `json:"first_observed_at"`
					ResolvedAt  string `json:"last_observed_at"`
				} `json:"fault_code"`
			} `json:"fault_codes"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return 0, fmt.Errorf("decode fault codes: %w", err)
		}
		for _, item := range page.FaultCodes {
			f := item.FaultCode
			fc := models.FaultCode{
				ExternalID:        strconv.FormatInt(f.ID, 10),
				ExternalVehicleID: strconv.FormatInt(f.VehicleID, 10),
				Code:              f.Code,
				Description:       f.Description,
				Severity:          f.Type,
				IsActive:          f.Status != "resolved",
				ReportedAt:        parseTime(f.FirstSeenAt),
			}
			if f.Status == "resolved" && f.ResolvedAt != "" {
				resolved := parseTime(f.ResolvedAt)
				fc.ResolvedAt = &resolved
			}
			out = append(out, fc)
		}
		return len(page.FaultCodes), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchFuelPurchases Motive 不支持加油记录
func (c *Client) FetchFuelPurchases(ctx context.Context, from, to time.Time) ([]models.FuelPurchase, error) {
	return nil, provider.ErrNotSupported
}

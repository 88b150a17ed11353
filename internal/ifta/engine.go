package ifta

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/langchou/fleetbridge/internal/provider"
	"github.com/langchou/fleetbridge/internal/repository"
)

// 里程数据源常量
const (
	SourceELD      = "eld"
	SourceManual   = "manual"
	SourceCombined = "combined"
)

// Config IFTA 对账引擎配置
type Config struct {
	// PreferELD 两个数据源都覆盖同一辖区时，combined 报表采用哪边的里程
	PreferELD bool
}

// Engine IFTA 季度报表引擎
// 把 ELD 同步里程、手动行程里程和加油量合并成季度辖区报表
type Engine struct {
	logger         *zap.Logger
	iftaRepo       *repository.IFTARepository
	manualTripRepo *repository.ManualTripRepository
	fuelRepo       *repository.FuelRepository
	cfg            Config
}

// NewEngine 创建对账引擎
func NewEngine(
	logger *zap.Logger,
	iftaRepo *repository.IFTARepository,
	manualTripRepo *repository.ManualTripRepository,
	fuelRepo *repository.FuelRepository,
	cfg Config,
) *Engine {
	return &Engine{
		logger:         logger,
		iftaRepo:       iftaRepo,
		manualTripRepo: manualTripRepo,
		fuelRepo:       fuelRepo,
		cfg:            cfg,
	}
}

// JurisdictionEntry 报表中单个辖区的行
// 两个来源都有数据时给出差值（ELD 里程减手动里程），供人工核对
type JurisdictionEntry struct {
	Jurisdiction string   `json:"jurisdiction"`
	Miles        float64  `json:"miles"`
	Source       string   `json:"source"`
	ELDMiles     *float64 `json:"eld_miles,omitempty"`
	ManualMiles  *float64 `json:"manual_miles,omitempty"`
	DiffMiles    *float64 `json:"diff_miles,omitempty"`
	FuelGallons  float64  `json:"fuel_gallons"`
}

// Report 季度 IFTA 报表
type Report struct {
	Quarter         string              `json:"quarter"`
	RequestedSource string              `json:"requested_source"`
	Source          string              `json:"source"`
	Fallback        bool                `json:"fallback"`
	FallbackReason  string              `json:"fallback_reason,omitempty"`
	Jurisdictions   []JurisdictionEntry `json:"jurisdictions"`
	TotalMiles      float64             `json:"total_miles"`
	TotalGallons    float64             `json:"total_gallons"`
}

// BuildReport 生成用户某季度的辖区里程报表
// source 为 eld 但该季度没有任何 ELD 里程时，自动回退到手动行程并标记原因
func (e *Engine) BuildReport(ctx context.Context, userID int64, quarter, source string) (*Report, error) {
	if _, _, err := provider.ParseQuarter(quarter); err != nil {
		return nil, err
	}
	from, to, err := provider.QuarterRange(quarter)
	if err != nil {
		return nil, err
	}

	switch source {
	case SourceELD, SourceManual, SourceCombined:
	case "":
		source = SourceCombined
	default:
		return nil, fmt.Errorf("unknown mileage source: %s", source)
	}

	eldMiles, err := e.iftaRepo.SumByJurisdiction(ctx, userID, quarter)
	if err != nil {
		return nil, err
	}
	manualMiles, err := e.manualTripRepo.SumMilesByJurisdiction(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	fuelGallons, err := e.fuelRepo.SumGallonsByJurisdiction(ctx, userID, quarter)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Quarter:         quarter,
		RequestedSource: source,
		Source:          source,
	}

	e.assemble(report, eldMiles, manualMiles, fuelGallons)

	for _, entry := range report.Jurisdictions {
		report.TotalMiles += entry.Miles
		report.TotalGallons += entry.FuelGallons
	}
	return report, nil
}

// assemble 按请求的数据源填充报表行
// eld 来源但两边都没数据时不算回退，只在 FallbackReason 里说明空报表的原因
func (e *Engine) assemble(report *Report, eldMiles, manualMiles, fuelGallons map[string]float64) {
	switch report.RequestedSource {
	case SourceELD:
		switch {
		case len(eldMiles) == 0 && len(manualMiles) > 0:
			// ELD 没有数据时回退到手动行程
			report.Source = SourceManual
			report.Fallback = true
			report.FallbackReason = "no eld mileage recorded for quarter, fell back to manual trips"
			report.Jurisdictions = singleSource(manualMiles, SourceManual, fuelGallons)
		case len(eldMiles) == 0:
			report.FallbackReason = "no eld mileage recorded for quarter and no manual trips to fall back to"
			report.Jurisdictions = singleSource(eldMiles, SourceELD, fuelGallons)
		default:
			report.Jurisdictions = singleSource(eldMiles, SourceELD, fuelGallons)
		}
	case SourceManual:
		report.Jurisdictions = singleSource(manualMiles, SourceManual, fuelGallons)
	case SourceCombined:
		report.Jurisdictions = e.combine(eldMiles, manualMiles, fuelGallons)
	}
}

// singleSource 单数据源报表行
func singleSource(miles map[string]float64, source string, fuel map[string]float64) []JurisdictionEntry {
	entries := make([]JurisdictionEntry, 0, len(miles))
	for jurisdiction, m := range miles {
		entries = append(entries, JurisdictionEntry{
			Jurisdiction: jurisdiction,
			Miles:        m,
			Source:       source,
			FuelGallons:  fuel[jurisdiction],
		})
	}
	sortEntries(entries)
	return entries
}

// combine 合并两个数据源
// 重叠辖区按配置取一边的里程并给出差值，其余辖区各自保留
func (e *Engine) combine(eld, manual, fuel map[string]float64) []JurisdictionEntry {
	seen := make(map[string]bool)
	var entries []JurisdictionEntry

	for jurisdiction, eldM := range eld {
		entry := JurisdictionEntry{
			Jurisdiction: jurisdiction,
			FuelGallons:  fuel[jurisdiction],
		}
		if manualM, ok := manual[jurisdiction]; ok {
			em, mm := eldM, manualM
			diff := em - mm
			entry.ELDMiles = &em
			entry.ManualMiles = &mm
			entry.DiffMiles = &diff
			if e.cfg.PreferELD {
				entry.Miles = eldM
				entry.Source = SourceELD
			} else {
				entry.Miles = manualM
				entry.Source = SourceManual
			}
		} else {
			entry.Miles = eldM
			entry.Source = SourceELD
		}
		entries = append(entries, entry)
		seen[jurisdiction] = true
	}

	for jurisdiction, manualM := range manual {
		if seen[jurisdiction] {
			continue
		}
		entries = append(entries, JurisdictionEntry{
			Jurisdiction: jurisdiction,
			Miles:        manualM,
			Source:       SourceManual,
			FuelGallons:  fuel[jurisdiction],
		})
	}

	sortEntries(entries)
	return entries
}

func sortEntries(entries []JurisdictionEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Jurisdiction < entries[j].Jurisdiction
	})
}

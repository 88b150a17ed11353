package reader

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/langchou/fleetbridge/internal/models"
	"github.com/langchou/fleetbridge/internal/repository"
)

// 描述关键词兜底分级表
// 服务商没有给出级别时按描述文本猜测
var (
	criticalKeywords = []string{"engine", "brake", "coolant", "oil pressure", "transmission", "airbag", "derate"}
	warningKeywords  = []string{"emission", "sensor", "battery", "tire", "fuel system", "exhaust", "dpf"}
)

// DiagnosticsReader 车辆故障码视图读取器
type DiagnosticsReader struct {
	logger    *zap.Logger
	faultRepo *repository.FaultRepository
}

// NewDiagnosticsReader 创建诊断读取器
func NewDiagnosticsReader(logger *zap.Logger, faultRepo *repository.FaultRepository) *DiagnosticsReader {
	return &DiagnosticsReader{logger: logger, faultRepo: faultRepo}
}

// VehicleFault 故障码视图，带归一化后的严重级别
type VehicleFault struct {
	*models.FaultCode
	NormalizedSeverity string `json:"normalized_severity"`
}

// ActiveFaults 返回用户全部活跃故障码
func (r *DiagnosticsReader) ActiveFaults(ctx context.Context, userID int64) ([]*VehicleFault, error) {
	faults, err := r.faultRepo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]*VehicleFault, 0, len(faults))
	for _, f := range faults {
		out = append(out, &VehicleFault{
			FaultCode:          f,
			NormalizedSeverity: ClassifySeverity(f.Severity, f.Description),
		})
	}
	return out, nil
}

// Clear 手动清除故障码
func (r *DiagnosticsReader) Clear(ctx context.Context, faultID int64) error {
	return r.faultRepo.Clear(ctx, faultID)
}

// ClassifySeverity 归一化故障严重级别
// 优先采用服务商给出的级别，缺失时按描述关键词兜底，都没有则归为 info
func ClassifySeverity(providerSeverity, description string) string {
	switch strings.ToLower(strings.TrimSpace(providerSeverity)) {
	case "critical", "severe", "major", "high":
		return models.FaultSeverityCritical
	case "warning", "moderate", "medium":
		return models.FaultSeverityWarning
	case "info", "low", "minor":
		return models.FaultSeverityInfo
	}

	desc := strings.ToLower(description)
	for _, kw := range criticalKeywords {
		if strings.Contains(desc, kw) {
			return models.FaultSeverityCritical
		}
	}
	for _, kw := range warningKeywords {
		if strings.Contains(desc, kw) {
			return models.FaultSeverityWarning
		}
	}
	return models.FaultSeverityInfo
}

package provider

import (
	"fmt"
	"time"
)

// ParseQuarter 解析季度字符串，如 2025-Q3 -> (2025, 3)
func ParseQuarter(quarter string) (year int, q int, err error) {
	if _, err = fmt.Sscanf(quarter, "%d-Q%d", &year, &q); err != nil {
		return 0, 0, &ValidationError{Field: "quarter", Message: fmt.Sprintf("invalid quarter %q, expected YYYY-Qn", quarter)}
	}
	if q < 1 || q > 4 {
		return 0, 0, &ValidationError{Field: "quarter", Message: fmt.Sprintf("invalid quarter number %d", q)}
	}
	return year, q, nil
}

// QuarterRange 返回季度的起止时间（UTC）
func QuarterRange(quarter string) (from, to time.Time, err error) {
	year, q, err := ParseQuarter(quarter)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	from = time.Date(year, time.Month((q-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
	to = from.AddDate(0, 3, 0)
	return from, to, nil
}

// QuarterOf 返回时间所属的季度字符串
func QuarterOf(t time.Time) string {
	q := (int(t.Month())-1)/3 + 1
	return fmt.Sprintf("%d-Q%d", t.Year(), q)
}

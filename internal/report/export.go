package report

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/clinirepas/api/internal/analytics"
)

// Export is the machine-readable counterpart of the PDF document. Every
// aggregate the PDF shows appears here under a stable key, plus the
// generation timestamp and the human label of the covered range.
type Export struct {
	GeneratedAt          time.Time                  `json:"generated_at"`
	RangeLabel           string                     `json:"range_label"`
	Days                 int                        `json:"days"`
	Buckets              []analytics.DayBucket      `json:"daily"`
	PatientStatusCounts  []analytics.StatusCount    `json:"patient_status_counts"`
	EmployeeStatusCounts []analytics.StatusCount    `json:"employee_status_counts"`
	MealTypeCounts       []analytics.DimensionCount `json:"meal_type_counts"`
	DietCounts           []analytics.DimensionCount `json:"diet_counts"`
	TopMenus             []analytics.DimensionCount `json:"top_menus"`
	RevenueTrendPct      float64                    `json:"revenue_trend_pct"`
}

// RangeLabel builds the label stored in an Export for a trailing window of
// days ending now.
func RangeLabel(days int, now time.Time) string {
	start := now.AddDate(0, 0, -(days - 1))
	return fmt.Sprintf("%s — %s", start.Format("02/01/2006"), now.Format("02/01/2006"))
}

// RenderJSON serializes the export, indented for direct download.
func RenderJSON(e Export) ([]byte, error) {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render json export: %w", err)
	}
	return data, nil
}

// ParseExport decodes a dump produced by RenderJSON.
func ParseExport(data []byte) (Export, error) {
	var e Export
	if err := json.Unmarshal(data, &e); err != nil {
		return Export{}, fmt.Errorf("parse json export: %w", err)
	}
	return e, nil
}

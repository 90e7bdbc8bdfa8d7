package report

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clinirepas/api/internal/analytics"
	"github.com/clinirepas/api/internal/enum"
)

func TestRenderJSONRoundTrip(t *testing.T) {
	generated := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	in := Export{
		GeneratedAt: generated,
		RangeLabel:  RangeLabel(7, generated),
		Days:        7,
		Buckets: []analytics.DayBucket{
			{Date: "2026-03-09", PatientOrders: 3, EmployeeOrders: 2, Revenue: decimal.NewFromInt(7000)},
			{Date: "2026-03-10", PatientOrders: 1, EmployeeOrders: 0, Revenue: decimal.Zero},
		},
		PatientStatusCounts: []analytics.StatusCount{
			{Status: enum.PatientOrderStatusPendingApproval, Count: 2},
			{Status: enum.PatientOrderStatusDelivered, Count: 2},
		},
		EmployeeStatusCounts: []analytics.StatusCount{
			{Status: enum.EmployeeOrderStatusOrdered, Count: 2},
		},
		MealTypeCounts: []analytics.DimensionCount{
			{Value: enum.MealTypeLunch, Count: 3},
			{Value: enum.MealTypeDinner, Count: 1},
		},
		DietCounts: []analytics.DimensionCount{
			{Value: enum.DietNoSalt, Count: 2},
		},
		TopMenus: []analytics.DimensionCount{
			{Value: "Poulet DG", Count: 5},
			{Value: "Ndolè", Count: 3},
		},
		RevenueTrendPct: 50,
	}

	data, err := RenderJSON(in)
	if err != nil {
		t.Fatalf("RenderJSON: %v", err)
	}

	out, err := ParseExport(data)
	if err != nil {
		t.Fatalf("ParseExport: %v", err)
	}

	if !out.GeneratedAt.Equal(in.GeneratedAt) {
		t.Errorf("generated_at = %v, want %v", out.GeneratedAt, in.GeneratedAt)
	}
	if out.RangeLabel != in.RangeLabel {
		t.Errorf("range_label = %q, want %q", out.RangeLabel, in.RangeLabel)
	}
	if len(out.Buckets) != len(in.Buckets) {
		t.Fatalf("buckets length = %d, want %d", len(out.Buckets), len(in.Buckets))
	}
	for i := range in.Buckets {
		if out.Buckets[i].PatientOrders != in.Buckets[i].PatientOrders {
			t.Errorf("bucket %d patient orders = %d, want %d", i, out.Buckets[i].PatientOrders, in.Buckets[i].PatientOrders)
		}
		if !out.Buckets[i].Revenue.Equal(in.Buckets[i].Revenue) {
			t.Errorf("bucket %d revenue = %s, want %s", i, out.Buckets[i].Revenue, in.Buckets[i].Revenue)
		}
	}
	if len(out.PatientStatusCounts) != 2 || out.PatientStatusCounts[0].Count != 2 {
		t.Errorf("patient status counts not preserved: %+v", out.PatientStatusCounts)
	}
	if len(out.TopMenus) != 2 || out.TopMenus[0].Value != "Poulet DG" {
		t.Errorf("top menus not preserved: %+v", out.TopMenus)
	}
	if out.RevenueTrendPct != 50 {
		t.Errorf("revenue_trend_pct = %v, want 50", out.RevenueTrendPct)
	}
}

func TestRangeLabel(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	got := RangeLabel(7, now)
	want := "04/03/2026 — 10/03/2026"
	if got != want {
		t.Errorf("RangeLabel(7) = %q, want %q", got, want)
	}
}

func TestParseExportRejectsGarbage(t *testing.T) {
	if _, err := ParseExport([]byte("{not json")); err == nil {
		t.Error("expected error for malformed input")
	}
}

// Package analytics derives dashboard and report figures from order
// snapshots. Every function is pure over its inputs: no store access, no
// mutation, safe to call concurrently with the same slice.
package analytics

import (
	"sort"
	"time"

	"github.com/clinirepas/api/internal/database"
	"github.com/clinirepas/api/internal/enum"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// DayBucket is one calendar day of order activity.
type DayBucket struct {
	Date           string          `json:"date"` // YYYY-MM-DD, local calendar day
	PatientOrders  int             `json:"patient_orders"`
	EmployeeOrders int             `json:"employee_orders"`
	Revenue        decimal.Decimal `json:"revenue"`
}

// StatusCount pairs a status with its order count.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// DimensionCount pairs an arbitrary dimension value (meal type, diet, menu
// name) with its count.
type DimensionCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// BucketByDay groups orders into the trailing `days` calendar days ending at
// `now` (inclusive). The result always has exactly `days` entries, oldest
// first; days without orders appear with zero counts. Bucketing is by local
// calendar day of created_at, not by raw timestamp. Revenue sums the total
// price of non-cancelled employee orders; patient orders carry no price.
func BucketByDay(patientOrders []database.PatientOrder, employeeOrders []database.EmployeeOrder, days int, now time.Time) []DayBucket {
	loc := now.Location()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	start := end.AddDate(0, 0, -(days - 1))

	buckets := make([]DayBucket, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i)
		key := day.Format("2006-01-02")
		buckets[i] = DayBucket{Date: key, Revenue: decimal.Zero}
		index[key] = i
	}

	for _, o := range patientOrders {
		key := o.CreatedAt.In(loc).Format("2006-01-02")
		if i, ok := index[key]; ok {
			buckets[i].PatientOrders++
		}
	}
	for _, o := range employeeOrders {
		key := o.CreatedAt.In(loc).Format("2006-01-02")
		i, ok := index[key]
		if !ok {
			continue
		}
		buckets[i].EmployeeOrders++
		if o.Status != enum.EmployeeOrderStatusCancelled {
			buckets[i].Revenue = buckets[i].Revenue.Add(numericToDecimal(o.TotalPrice))
		}
	}

	return buckets
}

// CountPatientOrdersByStatus partitions patient orders by status. Every
// status in the enumeration appears in the output, zero-filled when absent
// from the input, so the counts always sum to len(orders).
func CountPatientOrdersByStatus(orders []database.PatientOrder) []StatusCount {
	counts := make(map[string]int, len(enum.PatientOrderStatuses))
	for _, o := range orders {
		counts[o.Status]++
	}
	out := make([]StatusCount, 0, len(enum.PatientOrderStatuses))
	for _, s := range enum.PatientOrderStatuses {
		out = append(out, StatusCount{Status: s, Count: counts[s]})
	}
	return out
}

// CountEmployeeOrdersByStatus is CountPatientOrdersByStatus for the employee
// order enumeration.
func CountEmployeeOrdersByStatus(orders []database.EmployeeOrder) []StatusCount {
	counts := make(map[string]int, len(enum.EmployeeOrderStatuses))
	for _, o := range orders {
		counts[o.Status]++
	}
	out := make([]StatusCount, 0, len(enum.EmployeeOrderStatuses))
	for _, s := range enum.EmployeeOrderStatuses {
		out = append(out, StatusCount{Status: s, Count: counts[s]})
	}
	return out
}

// CountByMealType partitions patient orders over the fixed meal type set,
// zero-filled.
func CountByMealType(orders []database.PatientOrder) []DimensionCount {
	counts := make(map[string]int, len(enum.MealTypes))
	for _, o := range orders {
		counts[o.MealType]++
	}
	out := make([]DimensionCount, 0, len(enum.MealTypes))
	for _, m := range enum.MealTypes {
		out = append(out, DimensionCount{Value: m, Count: counts[m]})
	}
	return out
}

// CountByDiet partitions patients over the fixed diet set, zero-filled.
func CountByDiet(patients []database.Patient) []DimensionCount {
	counts := make(map[string]int, len(enum.Diets))
	for _, p := range patients {
		counts[p.Diet]++
	}
	out := make([]DimensionCount, 0, len(enum.Diets))
	for _, d := range enum.Diets {
		out = append(out, DimensionCount{Value: d, Count: counts[d]})
	}
	return out
}

// TopMenus ranks employee order items by how often their menu was ordered
// and keeps the top k. The sort is stable: menus tied on count stay in
// first-seen input order.
func TopMenus(items []database.EmployeeOrderItem, k int) []DimensionCount {
	counts := make(map[string]int)
	var order []string
	for _, it := range items {
		if _, seen := counts[it.MenuName]; !seen {
			order = append(order, it.MenuName)
		}
		counts[it.MenuName]++
	}

	out := make([]DimensionCount, 0, len(order))
	for _, name := range order {
		out = append(out, DimensionCount{Value: name, Count: counts[name]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

// Trend returns the percentage growth between the first and last point of a
// series: (last-first)/first*100. A series shorter than two points, or one
// starting at zero, yields 0 rather than an error.
func Trend(series []float64) float64 {
	if len(series) < 2 {
		return 0
	}
	first := series[0]
	last := series[len(series)-1]
	if first == 0 {
		return 0
	}
	return (last - first) / first * 100
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

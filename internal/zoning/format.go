package zoning

import (
	"fmt"
	"math"
)

const squareFeetPerAcre = 43560

// FormatArea renders an acreage; tiny areas are shown in square feet.
func FormatArea(acres float64) string {
	if acres == 0 {
		return "0 acres"
	}
	if acres < 0.01 {
		return fmt.Sprintf("%d sq ft", int(math.Round(acres*squareFeetPerAcre)))
	}
	return fmt.Sprintf("%.2f acres", acres)
}

// Percentage renders value as a rounded share of total.
func Percentage(value, total float64) string {
	if total == 0 {
		return "0%"
	}
	return fmt.Sprintf("%d%%", int(math.Round(value/total*100)))
}

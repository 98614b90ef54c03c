package exporter

import (
	"fmt"
	"strconv"
	"time"

	"mpxreport/internal/config"
)

// formatCell renders a summary value as CSV text
func formatCell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.Format(config.ReportDateLayout)
	default:
		return fmt.Sprint(val)
	}
}

// formatRow renders one summary row as CSV text
func formatRow(row []interface{}) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = formatCell(v)
	}
	return out
}

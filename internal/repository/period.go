package repository

import "time"

// Period labels accepted by QueryRange and the HTTP layer.
const (
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodYear  = "year"
)

// BucketWidthMillis maps a period label to its downsampling bucket width.
// Buckets are aligned to the Unix epoch, so the month/year daily bucket is
// the UTC calendar day. Unknown or empty periods fall back to the day
// mapping (one point per hour).
func BucketWidthMillis(period string) int64 {
	switch period {
	case PeriodWeek:
		return (6 * time.Hour).Milliseconds()
	case PeriodMonth, PeriodYear:
		return (24 * time.Hour).Milliseconds()
	case PeriodDay:
		fallthrough
	default:
		return time.Hour.Milliseconds()
	}
}

// PeriodWindowMillis returns the lookback window used when a request names
// only a period: day = 24h, week = 7d, month = 30d, year = 365d.
func PeriodWindowMillis(period string) int64 {
	switch period {
	case PeriodWeek:
		return (7 * 24 * time.Hour).Milliseconds()
	case PeriodMonth:
		return (30 * 24 * time.Hour).Milliseconds()
	case PeriodYear:
		return (365 * 24 * time.Hour).Milliseconds()
	case PeriodDay:
		fallthrough
	default:
		return (24 * time.Hour).Milliseconds()
	}
}

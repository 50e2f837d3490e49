package normalize

import "time"

const isoMillis = "2006-01-02T15:04:05.000Z"

// FormatDate renders t in UTC with millisecond precision.
func FormatDate(t time.Time) string {
	return t.UTC().Format(isoMillis)
}

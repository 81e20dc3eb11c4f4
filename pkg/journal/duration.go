package journal

import "time"

func durationOf(nanos int64) time.Duration {
	return time.Duration(nanos)
}

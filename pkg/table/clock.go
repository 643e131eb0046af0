package table

import "time"

// nowMillis returns the current time as milliseconds since the Unix epoch,
// ReedBase's version-timestamp resolution (spec.md §3).
func nowMillis() int64 {
	return time.Now().UnixMilli()
}

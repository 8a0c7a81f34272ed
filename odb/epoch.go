package odb

import "time"

// classicMacEpochOffset is the number of seconds between the classic Mac
// epoch (1904-01-01T00:00:00Z) and the Unix epoch.
// https://www.epochconverter.com/mac
const classicMacEpochOffset = 2082844800

// classicMacTime converts seconds-since-1904 as stored on disk to a Go
// time.Time in UTC.
func classicMacTime(seconds uint32) time.Time {
	return time.Unix(int64(seconds)-classicMacEpochOffset, 0).UTC()
}

package race

import "fmt"

// MaxLapMillis is the longest lap that is recorded. Slower laps are
// discarded.
const MaxLapMillis int64 = 16777215

// FormatLapTime renders millis as h:m:s:cs, m:s:cs or s:cs where cs are
// hundredths. Leading zero parts are omitted, nothing is padded.
func FormatLapTime(millis int64) string {
	hours := millis / 3_600_000
	millis -= hours * 3_600_000
	minutes := millis / 60_000
	millis -= minutes * 60_000
	seconds := millis / 1000
	millis -= seconds * 1000
	cs := millis / 10
	switch {
	case hours > 0:
		return fmt.Sprintf("%d:%d:%d:%d", hours, minutes, seconds, cs)
	case minutes > 0:
		return fmt.Sprintf("%d:%d:%d", minutes, seconds, cs)
	default:
		return fmt.Sprintf("%d:%d", seconds, cs)
	}
}

package core

import "fmt"

var monthNames = [...]string{
	"gennaio", "febbraio", "marzo", "aprile", "maggio", "giugno",
	"luglio", "agosto", "settembre", "ottobre", "novembre", "dicembre",
}

// FormatTimestamp renders a transaction date as "10 marzo 2019 alle 03:20".
// The zero timestamp renders as an empty string.
func FormatTimestamp(ts Timestamp) string {
	if ts.IsZero() {
		return ""
	}
	t := ts.Time
	return fmt.Sprintf("%02d %s %d alle %02d:%02d",
		t.Day(), monthNames[t.Month()-1], t.Year(), t.Hour(), t.Minute())
}

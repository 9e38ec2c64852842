package workbook

import (
	"strconv"
	"strings"
	"time"

	"github.com/tealeg/xlsx"
)

// Month-first layouts come before day-first ones; "03/04/2025" is read as
// March 4th.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"01-02-2006",
	"02-Jan-2006",
	"2-Jan-2006",
	"02-Jan-06",
	"2-Jan-06",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02.01.2006",
}

// Excel serials outside this range are treated as plain numbers.
const (
	minSerial = 1
	maxSerial = 2958465 // 9999-12-31
)

// ParseDate reads a calendar date from a cell. Numeric cells are Excel date
// serials as stored in xlsx files.
func ParseDate(s string, date1904 bool) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f < minSerial || f > maxSerial {
			return time.Time{}, false
		}
		t := xlsx.TimeFromExcelTime(f, date1904)
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

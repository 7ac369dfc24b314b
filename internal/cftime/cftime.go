// Package cftime decodes CF-convention time axes, i.e. numeric offsets
// qualified by a units string ("days since 1950-01-01") and a calendar
// identifier, into calendar dates.
package cftime

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Date is a civil date. It is deliberately not a time.Time: non-real
// calendars produce dates such as 2050-02-30 which time.Time would
// normalize away.
type Date struct {
	Year  int
	Month int
	Day   int
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// unitSecs maps CF time unit spellings to their length in seconds.
var unitSecs = map[string]float64{
	"seconds": 1, "second": 1, "secs": 1, "sec": 1, "s": 1,
	"minutes": 60, "minute": 60, "mins": 60, "min": 60,
	"hours": 3600, "hour": 3600, "hrs": 3600, "hr": 3600, "h": 3600,
	"days": 86400, "day": 86400, "d": 86400,
}

var monthDays = map[int][]int{
	365: {31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31},
	366: {31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31},
	360: {30, 30, 30, 30, 30, 30, 30, 30, 30, 30, 30, 30},
}

// yearLen returns the fixed year length in days for non-real CF
// calendars, or 0 for calendars based on real (Gregorian) time.
func yearLen(calendar string) (int, error) {
	switch strings.ToLower(calendar) {
	case "", "standard", "gregorian", "proleptic_gregorian":
		return 0, nil
	case "noleap", "365_day":
		return 365, nil
	case "all_leap", "366_day":
		return 366, nil
	case "360_day":
		return 360, nil
	default:
		return 0, fmt.Errorf("cftime: unsupported calendar %q", calendar)
	}
}

// Decode converts raw numeric time values into calendar dates using the
// given CF units string and calendar identifier.
func Decode(values []float64, units, calendar string) ([]Date, error) {
	secsPerUnit, epoch, err := parseUnits(units)
	if err != nil {
		return nil, err
	}
	days, err := yearLen(calendar)
	if err != nil {
		return nil, err
	}

	dates := make([]Date, len(values))
	for i, v := range values {
		if days == 0 {
			dates[i] = realDate(epoch, v*secsPerUnit)
		} else {
			dates[i] = fixedDate(epoch, v*secsPerUnit, monthDays[days])
		}
	}
	return dates, nil
}

// epochTime is the reference timestamp parsed out of a CF units string.
type epochTime struct {
	year, month, day int
	secondOfDay      float64
}

// parseUnits splits a CF units string of the form
// "<unit> since <date>[ <time>[ <zone>]]".
func parseUnits(units string) (float64, epochTime, error) {
	var epoch epochTime
	fields := strings.Fields(units)
	if len(fields) < 3 || strings.ToLower(fields[1]) != "since" {
		return 0, epoch, fmt.Errorf("cftime: cannot parse time units %q", units)
	}
	secs, ok := unitSecs[strings.ToLower(fields[0])]
	if !ok {
		return 0, epoch, fmt.Errorf("cftime: unsupported time unit %q in %q", fields[0], units)
	}

	dateParts := strings.SplitN(fields[2], "-", 3)
	if len(dateParts) != 3 {
		return 0, epoch, fmt.Errorf("cftime: cannot parse reference date in %q", units)
	}
	var derr error
	atoi := func(s string) int {
		n, err := strconv.Atoi(s)
		if err != nil && derr == nil {
			derr = err
		}
		return n
	}
	epoch.year = atoi(dateParts[0])
	epoch.month = atoi(dateParts[1])
	epoch.day = atoi(dateParts[2])
	if derr != nil {
		return 0, epoch, fmt.Errorf("cftime: cannot parse reference date in %q: %v", units, derr)
	}

	if len(fields) >= 4 {
		clock := strings.SplitN(fields[3], ":", 3)
		for i, c := range clock {
			f, err := strconv.ParseFloat(c, 64)
			if err != nil {
				return 0, epoch, fmt.Errorf("cftime: cannot parse reference time in %q: %v", units, err)
			}
			epoch.secondOfDay += f * math.Pow(60, float64(2-i))
		}
	}
	return secs, epoch, nil
}

// realDate resolves an offset in seconds against a real-calendar epoch.
// Whole days go through AddDate to stay clear of time.Duration overflow
// on century-scale axes.
func realDate(epoch epochTime, offsetSecs float64) Date {
	t := time.Date(epoch.year, time.Month(epoch.month), epoch.day, 0, 0, 0, 0, time.UTC)
	total := offsetSecs + epoch.secondOfDay
	days := math.Floor(total / 86400)
	rem := total - days*86400
	t = t.AddDate(0, 0, int(days)).Add(time.Duration(rem * float64(time.Second)))
	return Date{t.Year(), int(t.Month()), t.Day()}
}

// fixedDate resolves an offset in seconds against an epoch in a calendar
// where every year has the same month lengths.
func fixedDate(epoch epochTime, offsetSecs float64, months []int) Date {
	perYear := 0
	cum := make([]int, len(months))
	for i, m := range months {
		cum[i] = perYear
		perYear += m
	}

	abs := epoch.year*perYear + cum[epoch.month-1] + epoch.day - 1
	abs += int(math.Floor((offsetSecs + epoch.secondOfDay) / 86400))

	year := abs / perYear
	if abs < 0 && abs%perYear != 0 {
		year--
	}
	doy := abs - year*perYear
	month := len(months)
	for i, c := range cum {
		if doy < c {
			month = i
			break
		}
	}
	return Date{year, month, doy - cum[month-1] + 1}
}

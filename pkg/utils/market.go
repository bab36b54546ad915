package utils

import "time"

// IndiaLocation is the timezone for Indian markets.
var IndiaLocation *time.Location

func init() {
	var err error
	IndiaLocation, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// Fallback to UTC+5:30
		IndiaLocation = time.FixedZone("IST", 5*60*60+30*60)
	}
}

// MarketCloseHour and MarketCloseMinute mark the NSE equity derivatives close.
const (
	MarketCloseHour   = 15
	MarketCloseMinute = 30
)

// DateOf returns midnight of t's calendar day in IST.
func DateOf(t time.Time) time.Time {
	t = t.In(IndiaLocation)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, IndiaLocation)
}

// PreviousTradingDay returns the weekday before t, skipping weekends.
// Exchange holidays are not modelled.
func PreviousTradingDay(t time.Time) time.Time {
	d := DateOf(t).AddDate(0, 0, -1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// DaysBetween counts whole calendar days from a to b in IST.
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}

// ParseDate accepts 2006-01-02, 02-Jan-2006 and 02Jan2006 and returns the
// date at IST midnight.
func ParseDate(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range []string{"2006-01-02", "02-Jan-2006", "02Jan2006", "2006-01-02T15:04:05Z07:00"} {
		t, err := time.ParseInLocation(layout, s, IndiaLocation)
		if err == nil {
			return DateOf(t), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

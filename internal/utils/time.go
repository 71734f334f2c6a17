
package utils

import (
	"time"

	_ "time/tzdata"

	"github.com/go-universal/jalaali"
)

// TehranLoc returns the Tehran time zone location.
func TehranLoc() *time.Location {
	return jalaali.TehranTz()
}

func NowTehran() time.Time {
	return time.Now().In(TehranLoc())
}

// JalaliDateTime returns a string like "1404/10/09 - 16:40" in Tehran time.
func JalaliDateTime(t time.Time) string {
	j := jalaali.New(t.In(TehranLoc()))
	return j.Format("2006/01/02 - 15:04")
}

// MinuteOfDay returns minutes since midnight in Tehran time.
func MinuteOfDay(t time.Time) int {
	t = t.In(TehranLoc())
	return t.Hour()*60 + t.Minute()
}

// ParseHHMM parses "HH:MM" and returns minutes since midnight.
func ParseHHMM(hhmm string) (int, bool) {
	if len(hhmm) != 5 || hhmm[2] != ':' {
		return 0, false
	}
	for _, i := range []int{0, 1, 3, 4} {
		if hhmm[i] < '0' || hhmm[i] > '9' {
			return 0, false
		}
	}
	hh := int(hhmm[0]-'0')*10 + int(hhmm[1]-'0')
	mm := int(hhmm[3]-'0')*10 + int(hhmm[4]-'0')
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, false
	}
	return hh*60 + mm, true
}

// InWindow reports whether minuteOfDay falls inside [start, end). start == end is an
// empty window. Windows may cross midnight, e.g. 23:00 -> 06:00.
func InWindow(minuteOfDay int, start int, end int) bool {
	if start == end {
		return false
	}
	if start < end {
		return minuteOfDay >= start && minuteOfDay < end
	}
	// Crosses midnight
	return minuteOfDay >= start || minuteOfDay < end
}

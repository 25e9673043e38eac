package payroll

import (
	"strings"
	"time"

	"github.com/warp/payroll-engine/generic"
)

// DayPackage is the set of weekdays a recurring assignment runs on.
type DayPackage struct {
	code string
	days [7]bool
}

var dayTokens = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tues": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

var wildcardPackages = map[string]bool{
	"all": true, "all_days": true, "all days": true, "daily": true, "*": true,
}

// ParseDayPackage parses a recurrence code.
//
//	"all", "all_days", "daily", "*"  every day
//	"Mon/Wed/Fri", "sat_mon_wed"     explicit days; separators / , _ - space
func ParseDayPackage(code string) (DayPackage, error) {
	normalized := strings.ToLower(strings.TrimSpace(code))
	dp := DayPackage{code: code}

	if wildcardPackages[normalized] {
		for i := range dp.days {
			dp.days[i] = true
		}
		return dp, nil
	}

	tokens := strings.FieldsFunc(normalized, func(r rune) bool {
		return r == '/' || r == ',' || r == '_' || r == '-' || r == ' '
	})
	if len(tokens) == 0 {
		return DayPackage{}, &generic.DayPackageError{Code: code, Token: ""}
	}
	for _, tok := range tokens {
		wd, ok := dayTokens[tok]
		if !ok {
			return DayPackage{}, &generic.DayPackageError{Code: code, Token: tok}
		}
		dp.days[wd] = true
	}
	return dp, nil
}

// Includes reports whether the package runs on wd.
func (dp DayPackage) Includes(wd time.Weekday) bool { return dp.days[wd] }

func (dp DayPackage) String() string { return dp.code }

package integration

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultAttendanceGraceDays = 5
	defaultValidityDays        = 365
)

// Policy はインテグレーションの予約と有効期限に関する設定です。
type Policy struct {
	AllowedWeekdays                []time.Weekday
	AttendanceGraceDays            int
	DefaultExamValidityDays        int
	DefaultIntegrationValidityDays int
}

// DefaultPolicy は火曜・木曜のみ予約可能な既定値を返します。
func DefaultPolicy() Policy {
	return Policy{
		AllowedWeekdays:                []time.Weekday{time.Tuesday, time.Thursday},
		AttendanceGraceDays:            defaultAttendanceGraceDays,
		DefaultExamValidityDays:        defaultValidityDays,
		DefaultIntegrationValidityDays: defaultValidityDays,
	}
}

func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if len(p.AllowedWeekdays) == 0 {
		p.AllowedWeekdays = def.AllowedWeekdays
	}
	if p.AttendanceGraceDays < 0 {
		p.AttendanceGraceDays = def.AttendanceGraceDays
	}
	if p.DefaultExamValidityDays <= 0 {
		p.DefaultExamValidityDays = def.DefaultExamValidityDays
	}
	if p.DefaultIntegrationValidityDays <= 0 {
		p.DefaultIntegrationValidityDays = def.DefaultIntegrationValidityDays
	}
	return p
}

// Allows は day が予約可能な曜日かどうかを返します。
func (p Policy) Allows(day time.Weekday) bool {
	for _, d := range p.AllowedWeekdays {
		if d == day {
			return true
		}
	}
	return false
}

var weekdayCodes = map[string]time.Weekday{
	"SUN": time.Sunday,
	"MON": time.Monday,
	"TUE": time.Tuesday,
	"WED": time.Wednesday,
	"THU": time.Thursday,
	"FRI": time.Friday,
	"SAT": time.Saturday,
}

// ParseWeekdays は MON..SUN の曜日コードを time.Weekday に変換します。
func ParseWeekdays(codes []string) ([]time.Weekday, error) {
	out := make([]time.Weekday, 0, len(codes))
	seen := make(map[time.Weekday]struct{}, len(codes))
	for _, code := range codes {
		day, ok := weekdayCodes[strings.ToUpper(strings.TrimSpace(code))]
		if !ok {
			return nil, fmt.Errorf("integration: unknown weekday code %q", code)
		}
		if _, dup := seen[day]; dup {
			continue
		}
		seen[day] = struct{}{}
		out = append(out, day)
	}
	return out, nil
}

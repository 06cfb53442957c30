package appointment

import (
	"errors"
	"fmt"
	"time"
)

const (
	SlotDuration     = 15 * time.Minute
	WorkdayStartHour = 9
	WorkdayEndHour   = 17
)

var ErrInvalidTime = errors.New("invalid appointment time")

type TimeViolation string

const (
	ViolationOutsideHours TimeViolation = "outside_working_hours"
	ViolationOffGrid      TimeViolation = "not_aligned_to_slot"
	ViolationSubMinute    TimeViolation = "sub_minute_precision"
)

// InvalidTimeError reports which part of the slot rule a timestamp broke.
type InvalidTimeError struct {
	Violation TimeViolation
	At        time.Time
}

func (e *InvalidTimeError) Error() string {
	switch e.Violation {
	case ViolationOutsideHours:
		return fmt.Sprintf("appointments can only be booked between %02d:00 and %02d:00", WorkdayStartHour, WorkdayEndHour)
	case ViolationOffGrid:
		return fmt.Sprintf("appointments must start on a %d minute boundary (9:00, 9:15, 9:30...)", int(SlotDuration/time.Minute))
	case ViolationSubMinute:
		return "appointment time must not carry seconds or fractions of a second"
	default:
		return ErrInvalidTime.Error()
	}
}

func (e *InvalidTimeError) Unwrap() error {
	return ErrInvalidTime
}

// ValidateSlot checks t against the clinic's wall clock in loc.
func ValidateSlot(t time.Time, loc *time.Location) error {
	if loc != nil {
		t = t.In(loc)
	}

	if h := t.Hour(); h < WorkdayStartHour || h >= WorkdayEndHour {
		return &InvalidTimeError{Violation: ViolationOutsideHours, At: t}
	}
	if t.Minute()%int(SlotDuration/time.Minute) != 0 {
		return &InvalidTimeError{Violation: ViolationOffGrid, At: t}
	}
	if t.Second() != 0 || t.Nanosecond() != 0 {
		return &InvalidTimeError{Violation: ViolationSubMinute, At: t}
	}
	return nil
}

// ConflictWindow returns the open interval (lower, upper) in which a
// confirmed booking for the same doctor conflicts with one at t.
func ConflictWindow(t time.Time) (lower, upper time.Time) {
	return t.Add(-SlotDuration), t.Add(SlotDuration)
}

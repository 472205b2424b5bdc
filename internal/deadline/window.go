package deadline

import (
	"fmt"
	"time"

	"github.com/sumire/taskboard/internal/domain"
)

// Window evaluates deadline strings against the clock in a single fixed
// zone. All math is minute-granular, matching the stored layout.
type Window struct {
	loc *time.Location
}

// NewWindow creates a Window operating in the given zone.
func NewWindow(loc *time.Location) *Window {
	return &Window{loc: loc}
}

func (w *Window) parse(deadlineAt string) (time.Time, error) {
	t, err := time.ParseInLocation(domain.DeadlineLayout, deadlineAt, w.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: parse deadline %q: %v", domain.ErrInvalidInput, deadlineAt, err)
	}
	return t, nil
}

// IsPastDeadline reports whether the deadline lies strictly before now.
func (w *Window) IsPastDeadline(deadlineAt string, now time.Time) (bool, error) {
	d, err := w.parse(deadlineAt)
	if err != nil {
		return false, err
	}
	return d.Before(now), nil
}

// IsDue reports whether now falls inside the notify window before the
// deadline, that is 0 <= deadline-now <= offset minutes. A zero offset in
// minutes compares truncated-to-minute equality instead, so the alert still
// fires when the sweep does not land exactly on the deadline instant.
func (w *Window) IsDue(deadlineAt string, notifyBefore int, unit domain.NotifyUnit, now time.Time) (bool, error) {
	d, err := w.parse(deadlineAt)
	if err != nil {
		return false, err
	}

	if notifyBefore == 0 && unit == domain.UnitMinute {
		return d.Truncate(time.Minute).Equal(now.Truncate(time.Minute)), nil
	}

	offset, err := offsetMinutes(notifyBefore, unit)
	if err != nil {
		return false, err
	}

	diff := d.Sub(now).Minutes()
	return diff >= 0 && diff <= float64(offset), nil
}

func offsetMinutes(notifyBefore int, unit domain.NotifyUnit) (int, error) {
	switch unit {
	case domain.UnitMinute:
		return notifyBefore, nil
	case domain.UnitHour:
		return notifyBefore * 60, nil
	case domain.UnitDay:
		return notifyBefore * 24 * 60, nil
	case domain.UnitWeek:
		return notifyBefore * 7 * 24 * 60, nil
	default:
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidNotifyUnit, unit)
	}
}

/*
availability.go - Half-open interval availability checking

PURPOSE:
  Decides whether a unit is free of conflicting bookings for a requested
  stay. The overlap rule is half-open: existingStart < end AND
  existingEnd > start. Touching at the boundary is allowed, so a guest
  checking out on the 12th never conflicts with one checking in on the
  12th.

RACE WARNING:
  IsAvailable alone is check-then-act and cannot prevent double
  booking. Store.CreateBooking re-runs this rule inside the insert
  transaction; IsAvailable exists for the read-only availability
  endpoint and for early rejection with a friendly error.
*/
package booking

import "context"

// Overlaps applies the half-open interval rule to [aStart, aEnd) and
// [bStart, bEnd).
func Overlaps(aStart, aEnd, bStart, bEnd Date) bool {
	return bStart.Before(aEnd) && bEnd.After(aStart)
}

// Checker answers availability queries against the store.
type Checker struct {
	Store Store
}

func NewChecker(store Store) *Checker {
	return &Checker{Store: store}
}

// IsAvailable reports whether the unit has no non-cancelled booking
// overlapping [start, end). Read-only; no side effects.
func (c *Checker) IsAvailable(ctx context.Context, unitID UnitID, start, end Date) (bool, error) {
	if !end.After(start) {
		return false, &InvalidRangeError{Start: start, End: end}
	}
	conflicts, err := c.Store.ListOverlapping(ctx, unitID, start, end)
	if err != nil {
		return false, err
	}
	return len(conflicts) == 0, nil
}

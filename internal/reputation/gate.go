package reputation

// BookingThreshold is the minimum reputation at which new bookings are
// allowed. Distinct from ReputationFloor: a worker can sink well below this
// threshold without ever leaving the clamp interval.
const BookingThreshold = -5

// BookingRestrictionReason is the fixed copy returned for gate denials.
const BookingRestrictionReason = "Worker reputation too low due to repeated no-shows"

// BookingDecision is the result of the booking eligibility gate.
type BookingDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// CanBeBooked decides whether new bookings may be created for a worker with
// the given reputation. Pure; callers provide the persisted score.
func CanBeBooked(reputation int) BookingDecision {
	if reputation >= BookingThreshold {
		return BookingDecision{Allowed: true}
	}
	return BookingDecision{Allowed: false, Reason: BookingRestrictionReason}
}

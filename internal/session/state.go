package session

import "time"

// DefaultRefreshWindow is how close to expiry a session counts as expiring
// soon.
const DefaultRefreshWindow = 5 * time.Minute

// State classifies a session by how much life its access token has left.
type State int

const (
	Unauthenticated State = iota
	Fresh
	ExpiringSoon
	Expired // signature still valid, access token is not
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case ExpiringSoon:
		return "expiring_soon"
	case Expired:
		return "expired"
	default:
		return "unauthenticated"
	}
}

// Authenticated reports whether the state carries a session at all.
func (s State) Authenticated() bool { return s != Unauthenticated }

// IsExpiringSoon reports whether d expires in less than DefaultRefreshWindow.
// Exactly five minutes left is not expiring soon.
func IsExpiringSoon(d Data, now time.Time) bool {
	return ExpiresWithin(d, now, DefaultRefreshWindow)
}

// ExpiresWithin reports whether d has less than window left. Whole seconds
// are compared, matching the resolution of ExpiresAt.
func ExpiresWithin(d Data, now time.Time, window time.Duration) bool {
	return d.ExpiresAt-now.Unix() < int64(window/time.Second)
}

// Classify returns the State of d at now. A nil d is Unauthenticated.
func Classify(d *Data, now time.Time, window time.Duration) State {
	switch {
	case d == nil:
		return Unauthenticated
	case d.ExpiresAt <= now.Unix():
		return Expired
	case ExpiresWithin(*d, now, window):
		return ExpiringSoon
	default:
		return Fresh
	}
}

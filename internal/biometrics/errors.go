package biometrics

import (
	"errors"
	"fmt"
)

// ErrorKind is the hardware error taxonomy shared by sensor drivers, the
// presentation gateway and the caller-facing callbacks.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindHardwareUnavailable
	KindUnableToProcess
	KindTimeout
	KindCanceled
	KindLockout
	KindLockoutPermanent
	KindUserCanceled
	KindNoEligibleAuthenticator
	KindVendor

	// KindPausedRejected is a gateway-only hint: a soft rejection that pauses
	// the prompt instead of ending the session. It is never delivered to the
	// caller's error callback.
	KindPausedRejected
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindHardwareUnavailable:
		return "hardware-unavailable"
	case KindUnableToProcess:
		return "unable-to-process"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	case KindLockout:
		return "lockout"
	case KindLockoutPermanent:
		return "lockout-permanent"
	case KindUserCanceled:
		return "user-canceled"
	case KindNoEligibleAuthenticator:
		return "no-eligible-authenticator"
	case KindVendor:
		return "vendor"
	case KindPausedRejected:
		return "paused-rejected"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// IsLockout reports whether the kind belongs to the lockout class, which
// permits the device-credential fallback.
func (k ErrorKind) IsLockout() bool {
	return k == KindLockout || k == KindLockoutPermanent
}

// IsCancel reports whether the kind is an operation-canceled completion.
func (k ErrorKind) IsCancel() bool {
	return k == KindCanceled
}

var (
	// ErrNoEligibleAuthenticator is the fail-fast precondition violation: a
	// session must never be constructed when neither a biometric sensor nor
	// the device credential is eligible.
	ErrNoEligibleAuthenticator = errors.New("no eligible authenticator")

	// ErrInvalidSensorState flags a programming error in the cookie
	// protocol, e.g. starting a sensor whose cookie was never returned.
	ErrInvalidSensorState = errors.New("invalid sensor state")

	// ErrSessionActive is returned when a new authentication request arrives
	// while another session is still in flight.
	ErrSessionActive = errors.New("authentication session already active")
)

// DriverError wraps a transport failure talking to a sensor driver. Driver
// calls are fire-and-forget: a DriverError never changes session state by
// itself, the driver is expected to follow up with an error callback.
type DriverError struct {
	SensorID int32
	Op       string
	Err      error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("sensor %d: %s: %v", e.SensorID, e.Op, e.Err)
}

func (e *DriverError) Unwrap() error {
	return e.Err
}

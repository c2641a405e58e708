package biometrics

import "fmt"

// SensorHandle adapts one physical or virtual sensor for the lifetime of a
// single session. It is exclusively owned and driven by that session; a new
// session always constructs fresh handles.
type SensorHandle struct {
	id       int32
	modality Modality
	strength Strength
	driver   SensorDriver

	state                SensorState
	cookie               uint32
	cookieReturned       bool
	confirmationRequired bool
}

// NewSensorHandle builds a handle around one eligible sensor.
func NewSensorHandle(id int32, modality Modality, strength Strength, driver SensorDriver) *SensorHandle {
	return &SensorHandle{
		id:       id,
		modality: modality,
		strength: strength,
		driver:   driver,
		state:    SensorUnknown,
	}
}

func (h *SensorHandle) ID() int32 {
	return h.id
}

func (h *SensorHandle) Modality() Modality {
	return h.modality
}

// Strong reports whether this sensor may produce a token usable for
// cryptographic key release.
func (h *SensorHandle) Strong() bool {
	return h.strength&StrengthStrong != 0
}

// ConfirmationRequired reports whether this sensor's successes must be
// gated behind explicit user confirmation.
func (h *SensorHandle) ConfirmationRequired() bool {
	return h.confirmationRequired
}

// CurrentState returns the handle's position in the start protocol.
func (h *SensorHandle) CurrentState() SensorState {
	return h.state
}

// Cookie returns the cookie assigned by the last PrepareToStart, or zero.
func (h *SensorHandle) Cookie() uint32 {
	return h.cookie
}

// ResetToUnknown discards any assigned cookie and returns the handle to its
// initial state.
func (h *SensorHandle) ResetToUnknown() {
	h.state = SensorUnknown
	h.cookie = 0
	h.cookieReturned = false
}

// PrepareToStart assigns a fresh cookie and asks the driver to get ready.
// The driver acknowledges asynchronously by echoing the cookie back through
// the registry. A transport failure is returned for logging but does not
// change the handle's state: the driver is expected to follow up with an
// error callback.
func (h *SensorHandle) PrepareToStart(cookie uint32, requireConfirmation bool, sessionToken string, operationID uint64, userID int32, callerPkg string) error {
	if cookie == 0 {
		return fmt.Errorf("%w: sensor %d: zero cookie", ErrInvalidSensorState, h.id)
	}
	h.cookie = cookie
	h.cookieReturned = false
	h.confirmationRequired = requireConfirmation && h.modality.SupportsConfirmation()
	h.state = SensorWaitingForCookie

	if err := h.driver.PrepareToStart(sessionToken, cookie, h.confirmationRequired, operationID, userID, callerPkg); err != nil {
		return &DriverError{SensorID: h.id, Op: "prepare", Err: err}
	}
	return nil
}

// MarkCookieReturned consumes the handle's cookie if it matches. A cookie is
// consumed at most once: a second delivery of the same cookie reports false
// and causes no transition.
func (h *SensorHandle) MarkCookieReturned(cookie uint32) bool {
	if h.state != SensorWaitingForCookie || h.cookie == 0 || h.cookie != cookie || h.cookieReturned {
		return false
	}
	h.cookieReturned = true
	return true
}

// OwnsCookie reports whether the cookie was issued to this handle in the
// current round, returned or not.
func (h *SensorHandle) OwnsCookie(cookie uint32) bool {
	return cookie != 0 && h.cookie == cookie
}

// Start moves the handle to authenticating. Starting a handle whose cookie
// was never returned, or starting twice, is a programming error in the
// cookie protocol, not a retryable condition.
func (h *SensorHandle) Start() error {
	if h.state != SensorWaitingForCookie || !h.cookieReturned {
		return fmt.Errorf("%w: sensor %d: start in state %s (cookie returned: %t)",
			ErrInvalidSensorState, h.id, h.state, h.cookieReturned)
	}
	h.state = SensorAuthenticating
	if err := h.driver.Start(h.cookie); err != nil {
		return &DriverError{SensorID: h.id, Op: "start", Err: err}
	}
	return nil
}

// Cancel asks the driver to stop, best-effort. An authenticating handle
// stays authenticating until the driver's cancel-class error callback
// arrives; that callback is what completes the drain. A handle still behind
// the cookie barrier is stopped immediately.
func (h *SensorHandle) Cancel() error {
	if h.state != SensorAuthenticating {
		h.state = SensorStopped
	}
	if err := h.driver.Cancel(); err != nil {
		return &DriverError{SensorID: h.id, Op: "cancel", Err: err}
	}
	return nil
}

// markStopped records that the driver reported a terminal condition for
// this sensor.
func (h *SensorHandle) markStopped() {
	h.state = SensorStopped
}

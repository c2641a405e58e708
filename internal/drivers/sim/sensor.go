// Package sim is an in-process sensor driver with scriptable outcomes,
// used by the demo daemon and integration-style tests. It honors the
// driver transport contract: every call returns immediately and all
// results are delivered asynchronously, never from inside the call.
package sim

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/argusauth/argus/internal/biometrics"
)

// Events is the callback surface the driver reports into. Satisfied by
// *registry.Registry.
type Events interface {
	OnCookieReceived(cookie uint32)
	OnErrorReceived(sensorID int32, cookie uint32, kind biometrics.ErrorKind, vendorCode int32)
	OnAcquired(sensorID int32, info biometrics.AcquiredInfo, vendorMessage string)
	OnAuthenticationSucceeded(sensorID int32, strong bool, token []byte)
	OnAuthenticationRejected()
	OnAuthenticationTimedOut(sensorID int32, cookie uint32, kind biometrics.ErrorKind, vendorCode int32)
}

// Outcome scripts what the sensor does once started.
type Outcome string

const (
	OutcomeSucceed Outcome = "succeed"
	OutcomeReject  Outcome = "reject"
	OutcomeLockout Outcome = "lockout"
	OutcomeTimeout Outcome = "timeout"
)

// Sensor simulates one biometric sensor.
type Sensor struct {
	id      int32
	strong  bool
	outcome Outcome
	latency time.Duration

	mu       sync.Mutex
	events   Events
	cookie   uint32
	canceled bool
}

// New builds a sensor. Latency is applied before every asynchronous
// delivery; zero means one scheduler hop.
func New(id int32, strong bool, outcome Outcome, latency time.Duration) *Sensor {
	return &Sensor{id: id, strong: strong, outcome: outcome, latency: latency}
}

// Bind connects the driver to its callback surface. Must happen before the
// first PrepareToStart.
func (s *Sensor) Bind(events Events) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = events
}

func (s *Sensor) PrepareToStart(_ string, cookie uint32, _ bool, _ uint64, _ int32, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.events == nil {
		return fmt.Errorf("sim sensor %d: not bound", s.id)
	}
	s.cookie = cookie
	s.canceled = false

	events := s.events
	go func() {
		s.sleep()
		events.OnCookieReceived(cookie)
	}()
	return nil
}

func (s *Sensor) Start(cookie uint32) error {
	s.mu.Lock()
	events := s.events
	outcome := s.outcome
	s.mu.Unlock()
	if events == nil {
		return fmt.Errorf("sim sensor %d: not bound", s.id)
	}

	go func() {
		s.sleep()
		if s.isCanceled() {
			return
		}
		switch outcome {
		case OutcomeReject:
			events.OnAcquired(s.id, biometrics.AcquiredInsufficient, "")
			events.OnAuthenticationRejected()
		case OutcomeLockout:
			events.OnErrorReceived(s.id, cookie, biometrics.KindLockout, 0)
		case OutcomeTimeout:
			events.OnAuthenticationTimedOut(s.id, cookie, biometrics.KindTimeout, 0)
		default:
			events.OnAcquired(s.id, biometrics.AcquiredGood, "")
			events.OnAuthenticationSucceeded(s.id, s.strong, newHardwareToken())
		}
	}()
	return nil
}

func (s *Sensor) Cancel() error {
	s.mu.Lock()
	s.canceled = true
	events := s.events
	cookie := s.cookie
	s.mu.Unlock()
	if events == nil {
		return nil
	}

	go func() {
		s.sleep()
		events.OnErrorReceived(s.id, cookie, biometrics.KindCanceled, 0)
	}()
	return nil
}

func (s *Sensor) isCanceled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canceled
}

func (s *Sensor) sleep() {
	if s.latency > 0 {
		time.Sleep(s.latency)
	}
}

func newHardwareToken() []byte {
	token := make([]byte, 32)
	if _, err := rand.Read(token); err != nil {
		return nil
	}
	return token
}

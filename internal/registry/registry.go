// Package registry owns the current authentication session: it computes
// eligibility, constructs sessions, fans asynchronous driver and gateway
// callbacks into them, and tears them down on any terminal condition.
package registry

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/argusauth/argus/internal/biometrics"
)

// Config wires the registry's collaborators.
type Config struct {
	Sensors     []biometrics.SensorSpec
	Enrollments biometrics.EnrollmentState
	Gateway     biometrics.PresentationGateway
	Recorder    biometrics.Recorder
	Cookies     biometrics.CookieSource
	Logger      *slog.Logger

	// SinkFor scopes an outcome sink to one session token. Nil means
	// committed proofs are dropped (telemetry-only deployments).
	SinkFor func(sessionToken string) biometrics.OutcomeSink
}

// AuthRequest is one caller's authentication request.
type AuthRequest struct {
	SessionToken        string
	OperationID         uint64
	UserID              int32
	CallerPkg           string
	Prompt              biometrics.PromptInfo
	Allowed             biometrics.Strength
	RequireConfirmation bool
}

// Registry tracks at most one in-flight session. A second Authenticate
// while one is running is rejected with ErrSessionActive; callers cancel
// the old transaction first.
type Registry struct {
	mu      sync.Mutex
	current *biometrics.Session

	sensors     []biometrics.SensorSpec
	enrollments biometrics.EnrollmentState
	gateway     biometrics.PresentationGateway
	sinkFor     func(sessionToken string) biometrics.OutcomeSink
	recorder    biometrics.Recorder
	cookies     biometrics.CookieSource
	log         *slog.Logger
}

// New builds a registry.
func New(cfg Config) (*Registry, error) {
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("new registry: gateway is nil")
	}
	if cfg.Enrollments == nil {
		return nil, fmt.Errorf("new registry: enrollment state is nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Registry{
		sensors:     cfg.Sensors,
		enrollments: cfg.Enrollments,
		gateway:     cfg.Gateway,
		sinkFor:     cfg.SinkFor,
		recorder:    cfg.Recorder,
		cookies:     cfg.Cookies,
		log:         cfg.Logger,
	}, nil
}

// Authenticate starts a new authentication transaction and returns its
// session token. Fails fast, before any session exists, when neither a
// biometric sensor nor the device credential is eligible.
func (r *Registry) Authenticate(req AuthRequest, client biometrics.ClientCallback) (string, error) {
	eligibility, err := biometrics.ComputeEligibility(biometrics.EligibilityRequest{
		UserID:              req.UserID,
		Allowed:             req.Allowed,
		RequireConfirmation: req.RequireConfirmation,
	}, r.sensors, r.enrollments)
	if err != nil {
		return "", fmt.Errorf("authenticate: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil {
		return "", fmt.Errorf("authenticate: %w", biometrics.ErrSessionActive)
	}

	if req.SessionToken == "" {
		req.SessionToken = uuid.NewString()
	}
	var sink biometrics.OutcomeSink
	if r.sinkFor != nil {
		sink = r.sinkFor(req.SessionToken)
	}

	session, err := biometrics.NewSession(biometrics.SessionConfig{
		Token:       req.SessionToken,
		OperationID: req.OperationID,
		UserID:      req.UserID,
		CallerPkg:   req.CallerPkg,
		Prompt:      req.Prompt,
		Allowed:     req.Allowed,
		Eligibility: eligibility,
		Gateway:     r.gateway,
		Sink:        sink,
		Client:      client,
		Recorder:    r.recorder,
		Cookies:     r.cookies,
		Logger:      r.log,
	})
	if err != nil {
		return "", fmt.Errorf("authenticate: %w", err)
	}

	if err := session.GoToInitialState(); err != nil {
		return "", fmt.Errorf("authenticate: %w", err)
	}
	r.current = session
	r.log.Info("authentication session started",
		slog.String("session", session.Token()),
		slog.String("caller", req.CallerPkg),
		slog.Bool("crypto_bound", session.CryptoBound()))
	return session.Token(), nil
}

// CancelAuthentication cancels the in-flight session, if any.
func (r *Registry) CancelAuthentication(force bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return
	}
	if r.current.OnCancel(force) {
		r.clearLocked("canceled")
	}
}

// OnClientDied is the disposal hook invoked by the transport layer when the
// caller's channel is detected as closed.
func (r *Registry) OnClientDied() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return
	}
	if r.current.OnClientDied() {
		r.clearLocked("client died")
	}
}

// OnCookieReceived forwards a sensor's ready acknowledgement.
func (r *Registry) OnCookieReceived(cookie uint32) {
	if s := r.session(); s != nil {
		s.OnCookieReceived(cookie)
	}
}

// OnErrorReceived forwards a driver error and clears the session when it
// reports itself finished.
func (r *Registry) OnErrorReceived(sensorID int32, cookie uint32, kind biometrics.ErrorKind, vendorCode int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return
	}
	if r.current.OnErrorReceived(sensorID, cookie, kind, vendorCode) {
		r.clearLocked(kind.String())
	}
}

// OnAcquired forwards an acquisition hint.
func (r *Registry) OnAcquired(sensorID int32, info biometrics.AcquiredInfo, vendorMessage string) {
	if s := r.session(); s != nil {
		s.OnAcquired(sensorID, info, vendorMessage)
	}
}

// OnAuthenticationSucceeded forwards a hardware match.
func (r *Registry) OnAuthenticationSucceeded(sensorID int32, strong bool, token []byte) {
	if s := r.session(); s != nil {
		s.OnAuthenticationSucceeded(sensorID, strong, token)
	}
}

// OnAuthenticationRejected forwards a soft failure.
func (r *Registry) OnAuthenticationRejected() {
	if s := r.session(); s != nil {
		s.OnAuthenticationRejected()
	}
}

// OnAuthenticationTimedOut forwards a driver cool-down.
func (r *Registry) OnAuthenticationTimedOut(sensorID int32, cookie uint32, kind biometrics.ErrorKind, vendorCode int32) {
	if s := r.session(); s != nil {
		s.OnAuthenticationTimedOut(sensorID, cookie, kind, vendorCode)
	}
}

// OnTryAgainPressed forwards the prompt's try-again gesture.
func (r *Registry) OnTryAgainPressed() {
	if s := r.session(); s != nil {
		s.OnTryAgainPressed()
	}
}

// OnDeviceCredentialPressed forwards the prompt's credential opt-out.
func (r *Registry) OnDeviceCredentialPressed() {
	if s := r.session(); s != nil {
		s.OnDeviceCredentialPressed()
	}
}

// OnDialogDismissed concludes the transaction and destroys the session.
func (r *Registry) OnDialogDismissed(reason biometrics.DismissReason, credentialProof []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return
	}
	r.current.OnDialogDismissed(reason, credentialProof)
	r.clearLocked(reason.String())
}

// CurrentState returns the in-flight session's state, or false when idle.
func (r *Registry) CurrentState() (biometrics.SessionState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return 0, false
	}
	return r.current.State(), true
}

func (r *Registry) session() *biometrics.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *Registry) clearLocked(disposition string) {
	r.log.Info("authentication session finished",
		slog.String("session", r.current.Token()),
		slog.String("disposition", disposition))
	r.current = nil
}

package biometrics

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"
)

// SessionConfig carries everything a session needs at construction time.
type SessionConfig struct {
	// Token identifies the session. Issued by the orchestrator when empty.
	Token string

	// OperationID is the caller's cryptographic operation binding; zero
	// means no binding was requested.
	OperationID uint64

	UserID    int32
	CallerPkg string
	Prompt    PromptInfo

	// Allowed is the caller's authenticator strength mask. The session
	// keeps a mutable copy so lockout fallback can strip biometric bits.
	Allowed Strength

	Eligibility EligibilityInfo

	Gateway  PresentationGateway
	Sink     OutcomeSink
	Client   ClientCallback
	Recorder Recorder
	Cookies  CookieSource

	Clock  clock
	Logger *slog.Logger
}

// Session drives one authentication transaction from request to outcome.
// It is the single writer of all per-session state: every transition runs
// under one exclusive section, entered both from caller-initiated calls and
// from asynchronous sensor/gateway callbacks. Exactly one terminal result
// is ever delivered to the client.
type Session struct {
	mu sync.Mutex

	token       string
	operationID uint64
	userID      int32
	callerPkg   string
	prompt      PromptInfo

	state       SessionState
	eligibility EligibilityInfo
	allowed     Strength
	sensors     []*SensorHandle

	// Escrow: held state pending a later, user-gated commit decision. The
	// token is non-nil only in PendingConfirm and AuthenticatedPendingUI.
	escrowedToken      []byte
	escrowedErrorKind  ErrorKind
	escrowedVendorCode int32

	startedAt       time.Time
	authenticatedAt time.Time

	terminated bool

	gateway  PresentationGateway
	sink     OutcomeSink
	client   ClientCallback
	recorder Recorder
	cookies  CookieSource
	clk      clock
	log      *slog.Logger
}

// NewSession validates the eligibility snapshot and builds the session and
// its sensor handles. A request with neither a biometric sensor nor the
// credential eligible is a caller/policy bug and fails fast here, before
// any session exists.
func NewSession(cfg SessionConfig) (*Session, error) {
	if !cfg.Eligibility.HasSensors() && !cfg.Eligibility.CredentialAllowed() {
		return nil, fmt.Errorf("new session: %w", ErrNoEligibleAuthenticator)
	}
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("new session: gateway is nil")
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("new session: client callback is nil")
	}
	if cfg.Token == "" {
		cfg.Token = uuid.NewString()
	}
	if cfg.Cookies == nil {
		cfg.Cookies = NewRandomCookieSource()
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Sink == nil {
		cfg.Sink = nopSink{}
	}

	s := &Session{
		token:       cfg.Token,
		operationID: cfg.OperationID,
		userID:      cfg.UserID,
		callerPkg:   cfg.CallerPkg,
		prompt:      cfg.Prompt,
		state:       StateIdle,
		eligibility: cfg.Eligibility,
		allowed:     cfg.Allowed,
		gateway:     cfg.Gateway,
		sink:        cfg.Sink,
		client:      cfg.Client,
		recorder:    cfg.Recorder,
		cookies:     cfg.Cookies,
		clk:         cfg.Clock,
		log:         cfg.Logger.With(slog.String("session", cfg.Token)),
	}
	for _, spec := range cfg.Eligibility.Sensors() {
		s.sensors = append(s.sensors, NewSensorHandle(spec.ID, spec.Modality, spec.Strength, spec.Driver))
	}
	return s, nil
}

// Token returns the session's identifying token.
func (s *Session) Token() string {
	return s.token
}

// State returns the current session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CryptoBound reports whether the caller requested cryptographic binding.
// Affects telemetry tagging only.
func (s *Session) CryptoBound() bool {
	return s.operationID != 0
}

// GoToInitialState drives the session out of Idle. Credential-only
// eligibility goes straight to the credential UI; otherwise every eligible
// sensor is armed behind the cookie barrier.
func (s *Session) GoToInitialState() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return fmt.Errorf("go to initial state: session in state %s", s.state)
	}

	if !s.eligibility.HasSensors() {
		if !s.eligibility.CredentialAllowed() {
			return fmt.Errorf("go to initial state: %w", ErrNoEligibleAuthenticator)
		}
		s.showCredentialLocked()
		return nil
	}

	s.armSensorsLocked()
	s.state = StateCalled
	return nil
}

// armSensorsLocked assigns a fresh, unique, non-zero cookie to every handle
// and asks each driver to prepare. Transport failures are logged only: the
// driver follows up with an asynchronous error callback.
func (s *Session) armSensorsLocked() {
	issued := make(map[uint32]struct{}, len(s.sensors))
	for _, h := range s.sensors {
		var cookie uint32
		for {
			cookie = s.cookies.NextCookie()
			if cookie == 0 {
				continue
			}
			if _, dup := issued[cookie]; !dup {
				break
			}
		}
		issued[cookie] = struct{}{}

		if err := h.PrepareToStart(cookie, s.eligibility.ConfirmationRequested(), s.token, s.operationID, s.userID, s.callerPkg); err != nil {
			s.log.Error("prepare sensor", slog.Int("sensor", int(h.ID())), slog.Any("error", err))
		}
	}
}

// OnCookieReceived consumes one echoed cookie. When the count of handles
// still waiting reaches zero the barrier opens: sensors start and, unless
// the session is resuming from a pause, the biometric prompt is shown.
func (s *Session) OnCookieReceived(cookie uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated {
		return
	}
	if s.state != StateCalled && s.state != StatePausedResuming {
		s.log.Debug("cookie in unexpected state", slog.String("state", s.state.String()))
		return
	}

	matched := false
	for _, h := range s.sensors {
		if h.MarkCookieReturned(cookie) {
			matched = true
			break
		}
	}
	if !matched {
		s.log.Debug("stale cookie ignored")
		return
	}

	waiting := 0
	for _, h := range s.sensors {
		if h.CurrentState() == SensorWaitingForCookie && !h.cookieReturned {
			waiting++
		}
	}
	if waiting > 0 {
		return
	}

	s.startedAt = s.clk.Now()
	for _, h := range s.sensors {
		if err := h.Start(); err != nil {
			if errors.Is(err, ErrInvalidSensorState) {
				s.log.Error("sensor start protocol violation", slog.Any("error", err))
				continue
			}
			s.log.Warn("start sensor", slog.Int("sensor", int(h.ID())), slog.Any("error", err))
		}
	}

	resuming := s.state == StatePausedResuming
	s.state = StateStarted
	if resuming {
		// Prompt is already visible from the paused round.
		return
	}
	if err := s.gateway.ShowBiometric(s.prompt, s.participatingModalities(), s.anyConfirmationRequired(), s.userID, s.callerPkg, s.operationID); err != nil {
		s.log.Error("show biometric prompt", slog.Any("error", err))
	}
}

// OnErrorReceived handles an asynchronous driver error. An unknown cookie
// means a stale or already-terminated callback and is defined as a no-op,
// which is what makes late and duplicate driver callbacks safe. Returns
// whether the session finished.
func (s *Session) OnErrorReceived(sensorID int32, cookie uint32, kind ErrorKind, vendorCode int32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated {
		return false
	}

	handle := s.findByCookie(cookie)
	if handle == nil {
		s.log.Debug("error with unknown cookie ignored",
			slog.Int("sensor", int(sensorID)), slog.String("kind", kind.String()))
		return false
	}
	handle.markStopped()

	switch s.state {
	case StateCalled:
		if s.eligibility.CredentialAllowed() {
			s.allowed = s.allowed.StripBiometric()
			s.showCredentialLocked()
			return false
		}
		s.sendErrorAndFinishLocked(handle.Modality(), kind, vendorCode, true)
		return true

	case StateStarted:
		switch {
		case kind.IsLockout() && s.eligibility.CredentialAllowed():
			// The UI owns the transition animation into the credential view.
			s.allowed = s.allowed.StripBiometric()
			s.showCredentialLocked()
			if err := s.gateway.ReportError(handle.Modality(), kind, vendorCode); err != nil {
				s.log.Error("report error to gateway", slog.Any("error", err))
			}
			return false
		case kind.IsCancel():
			s.sendErrorAndFinishLocked(handle.Modality(), kind, vendorCode, true)
			return true
		default:
			s.escrowedErrorKind = kind
			s.escrowedVendorCode = vendorCode
			s.state = StateErrorPendingUI
			if err := s.gateway.ReportError(handle.Modality(), kind, vendorCode); err != nil {
				s.log.Error("report error to gateway", slog.Any("error", err))
			}
			return false
		}

	case StatePaused, StatePausedResuming:
		// Only a cancel-class error from an external preemption is expected
		// here; deliver it directly.
		s.sendErrorAndFinishLocked(handle.Modality(), kind, vendorCode, true)
		return true

	case StateShowingCredential:
		// Already past the biometric phase; the credential UI owns the
		// transaction.
		return false

	case StateClientDiedCancelling:
		if s.anySensorActive() {
			return false
		}
		s.hideLocked()
		s.terminated = true
		return true

	default:
		s.log.Warn("driver error in unexpected state",
			slog.String("state", s.state.String()), slog.String("kind", kind.String()))
		return false
	}
}

// OnAcquired forwards an acquisition hint to the prompt. Purely
// informational, no state change.
func (s *Session) OnAcquired(sensorID int32, info AcquiredInfo, vendorMessage string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated {
		return
	}
	handle := s.findByID(sensorID)
	if handle == nil {
		return
	}
	message := vendorMessage
	if info != AcquiredVendor {
		message = helpMessage(handle.Modality(), info)
	}
	if message == "" {
		return
	}
	if err := s.gateway.ReportHelp(handle.Modality(), message); err != nil {
		s.log.Error("report help to gateway", slog.Any("error", err))
	}
}

// OnAuthenticationSucceeded handles a hardware match. The token is escrowed
// only for strong modalities and is released to the sink only after the
// confirmation policy is satisfied.
func (s *Session) OnAuthenticationSucceeded(sensorID int32, strong bool, token []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated {
		return
	}
	if s.state != StateStarted {
		s.log.Debug("hardware success in unexpected state", slog.String("state", s.state.String()))
		return
	}

	if strong {
		s.escrowedToken = append([]byte(nil), token...)
	} else if len(token) > 0 {
		s.log.Warn("dropping auth token from non-strong sensor", slog.Int("sensor", int(sensorID)))
	}

	if err := s.gateway.ReportHardwareAuthenticated(); err != nil {
		s.log.Error("report hardware authenticated", slog.Any("error", err))
	}

	if !s.anyConfirmationRequired() {
		s.state = StateAuthenticatedPendingUI
		return
	}
	s.authenticatedAt = s.clk.Now()
	s.state = StatePendingConfirm
}

// OnAuthenticationRejected handles a soft failure (e.g. face not
// recognized). The session stays alive; the caller is told so it can update
// retry counters.
func (s *Session) OnAuthenticationRejected() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated || s.state != StateStarted {
		return
	}

	if err := s.gateway.ReportError(s.participatingModalities(), KindPausedRejected, 0); err != nil {
		s.log.Error("report rejection to gateway", slog.Any("error", err))
	}
	if s.anyPausable() {
		s.state = StatePaused
	}
	s.client.OnAuthFailed()
}

// OnAuthenticationTimedOut handles a driver-enforced cool-down, distinct
// from a rejection. The session pauses behind a try-again affordance.
func (s *Session) OnAuthenticationTimedOut(sensorID int32, cookie uint32, kind ErrorKind, vendorCode int32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated || s.state != StateStarted {
		return
	}
	handle := s.findByCookie(cookie)
	if handle == nil {
		return
	}
	if err := s.gateway.ReportError(handle.Modality(), kind, vendorCode); err != nil {
		s.log.Error("report timeout to gateway", slog.Any("error", err))
	}
	s.state = StatePaused
}

// OnTryAgainPressed re-arms every sensor behind a fresh cookie barrier.
// Only valid while paused; the prompt stays visible through the resume.
func (s *Session) OnTryAgainPressed() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated {
		return
	}
	if s.state != StatePaused {
		s.log.Warn("try-again in unexpected state", slog.String("state", s.state.String()))
		return
	}
	for _, h := range s.sensors {
		h.ResetToUnknown()
	}
	s.armSensorsLocked()
	s.state = StatePausedResuming
}

// OnDeviceCredentialPressed is the user's explicit opt-out of the biometric
// phase: cancel the sensors best-effort and hand the transaction to the
// credential UI without waiting.
func (s *Session) OnDeviceCredentialPressed() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated {
		return
	}
	if !s.eligibility.CredentialAllowed() {
		s.log.Warn("credential pressed but credential not eligible")
		return
	}
	s.cancelSensorsLocked()
	s.showCredentialLocked()
}

// OnDialogDismissed concludes the transaction from the presentation
// gateway. The telemetry record is emitted first, then exactly one result
// reaches the caller.
func (s *Session) OnDialogDismissed(reason DismissReason, credentialProof []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated {
		return
	}

	s.recordOutcomeLocked(reason)

	switch reason {
	case DismissedCredentialConfirmed:
		if len(credentialProof) > 0 {
			if err := s.sink.CommitAuthToken(credentialProof); err != nil {
				s.log.Error("commit credential proof", slog.Any("error", err))
			}
		}
		s.commitEscrowedTokenLocked()
		s.client.OnAuthSucceeded(AuthTypeCredential)

	case DismissedBiometricConfirmed, DismissedConfirmNotRequired:
		s.commitEscrowedTokenLocked()
		s.client.OnAuthSucceeded(AuthTypeBiometric)

	case DismissedNegative:
		s.client.OnDialogDismissed(reason)
		s.cancelSensorsLocked()

	case DismissedUserCancel:
		s.client.OnError(s.participatingModalities(), KindUserCanceled, 0)
		s.cancelSensorsLocked()

	case DismissedError, DismissedServerRequested:
		s.client.OnError(s.participatingModalities(), s.escrowedErrorKind, s.escrowedVendorCode)

	default:
		s.log.Warn("unknown dismissal reason", slog.String("reason", reason.String()))
	}

	s.clearEscrowLocked()
	s.terminated = true
}

// OnCancel handles a cancellation from the caller or from policy. While
// sensors are running and force is not set, cancellation is cooperative:
// the sensors are asked to stop and the session ends through their natural
// error callbacks, so a cancellation racing a hardware success can never
// report success after the fact. Returns whether the session finished.
func (s *Session) OnCancel(force bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated {
		return true
	}
	if s.state == StateStarted && !force && s.anySensorActive() {
		s.cancelSensorsLocked()
		return false
	}
	s.sendErrorAndFinishLocked(s.participatingModalities(), KindCanceled, 0, true)
	return true
}

// OnClientDied handles the caller's channel going away. No result needs
// delivering; running sensors are drained through their cancel callbacks.
// Returns whether the session finished.
func (s *Session) OnClientDied() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated {
		return true
	}
	if s.state == StateStarted && s.anySensorActive() {
		s.state = StateClientDiedCancelling
		s.cancelSensorsLocked()
		return false
	}
	s.hideLocked()
	s.clearEscrowLocked()
	s.terminated = true
	return true
}

func (s *Session) findByCookie(cookie uint32) *SensorHandle {
	for _, h := range s.sensors {
		if h.OwnsCookie(cookie) {
			return h
		}
	}
	return nil
}

func (s *Session) findByID(id int32) *SensorHandle {
	for _, h := range s.sensors {
		if h.ID() == id {
			return h
		}
	}
	return nil
}

func (s *Session) anyConfirmationRequired() bool {
	for _, h := range s.sensors {
		if h.ConfirmationRequired() {
			return true
		}
	}
	return false
}

func (s *Session) anyPausable() bool {
	for _, h := range s.sensors {
		if h.Modality().Pausable() {
			return true
		}
	}
	return false
}

func (s *Session) anySensorActive() bool {
	for _, h := range s.sensors {
		if h.CurrentState() == SensorAuthenticating {
			return true
		}
	}
	return false
}

func (s *Session) participatingModalities() Modality {
	var m Modality
	for _, h := range s.sensors {
		m |= h.Modality()
	}
	return m
}

func (s *Session) cancelSensorsLocked() {
	for _, h := range s.sensors {
		if h.CurrentState() != SensorAuthenticating && h.CurrentState() != SensorWaitingForCookie {
			continue
		}
		if err := h.Cancel(); err != nil {
			s.log.Warn("cancel sensor", slog.Int("sensor", int(h.ID())), slog.Any("error", err))
		}
	}
}

func (s *Session) showCredentialLocked() {
	s.state = StateShowingCredential
	if err := s.gateway.ShowCredential(s.prompt, s.userID, s.callerPkg, s.operationID); err != nil {
		s.log.Error("show credential prompt", slog.Any("error", err))
	}
	s.client.OnSystemEvent(EventCredentialShown)
}

func (s *Session) hideLocked() {
	if err := s.gateway.Hide(); err != nil {
		s.log.Error("hide prompt", slog.Any("error", err))
	}
}

// sendErrorAndFinishLocked is the single path by which a driver error
// reaches the caller. Marks the session terminated before touching the
// client channel so no second completion path can race it.
func (s *Session) sendErrorAndFinishLocked(modality Modality, kind ErrorKind, vendorCode int32, hide bool) {
	s.terminated = true
	s.clearEscrowLocked()
	if hide {
		s.hideLocked()
	}
	s.client.OnError(modality, kind, vendorCode)
}

func (s *Session) commitEscrowedTokenLocked() {
	if s.escrowedToken == nil {
		return
	}
	if err := s.sink.CommitAuthToken(s.escrowedToken); err != nil {
		s.log.Error("commit auth token", slog.Any("error", err))
	}
}

func (s *Session) clearEscrowLocked() {
	if s.escrowedToken != nil {
		memguard.WipeBytes(s.escrowedToken)
		s.escrowedToken = nil
	}
	s.escrowedErrorKind = KindNone
	s.escrowedVendorCode = 0
}

func (s *Session) recordOutcomeLocked(reason DismissReason) {
	now := s.clk.Now()
	event := OutcomeEvent{
		SessionToken: s.token,
		Reason:       reason,
		Modality:     s.participatingModalities(),
		CryptoBound:  s.CryptoBound(),
		At:           now,
	}
	if !s.authenticatedAt.IsZero() {
		event.ConfirmLatency = now.Sub(s.authenticatedAt)
	}
	if !s.startedAt.IsZero() {
		event.TotalLatency = now.Sub(s.startedAt)
	}
	s.recorder.RecordOutcome(event)
}

type nopSink struct{}

func (nopSink) CommitAuthToken([]byte) error { return nil }

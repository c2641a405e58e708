package biometrics

import "time"

// PromptInfo carries the caller-supplied text shown by the presentation
// gateway. The session treats it as opaque.
type PromptInfo struct {
	Title          string
	Subtitle       string
	Description    string
	NegativeButton string
}

// SensorDriver is the narrow transport contract to one sensor driver. Every
// call is fire-and-forget: results arrive later through the owning
// registry's callback surface, never as return values, and implementations
// must not invoke callbacks synchronously from inside these methods.
type SensorDriver interface {
	PrepareToStart(sessionToken string, cookie uint32, requireConfirmation bool, operationID uint64, userID int32, callerPkg string) error
	Start(cookie uint32) error
	Cancel() error
}

// PresentationGateway shows and hides the authentication UI and relays
// sensor feedback to the user. Failures are logged by the session and never
// block local state cleanup.
type PresentationGateway interface {
	ShowBiometric(prompt PromptInfo, modality Modality, requireConfirmation bool, userID int32, callerPkg string, operationID uint64) error
	ShowCredential(prompt PromptInfo, userID int32, callerPkg string, operationID uint64) error
	Hide() error
	ReportHelp(modality Modality, message string) error
	ReportError(modality Modality, kind ErrorKind, vendorCode int32) error
	ReportHardwareAuthenticated() error
}

// OutcomeSink durably records a successful strong-authentication proof.
type OutcomeSink interface {
	CommitAuthToken(token []byte) error
}

// ClientCallback is the original caller's result channel. The session is
// the single writer: exactly one terminal notification is ever delivered.
type ClientCallback interface {
	OnAuthSucceeded(authType AuthType)
	OnAuthFailed()
	OnError(modality Modality, kind ErrorKind, vendorCode int32)
	OnDialogDismissed(reason DismissReason)
	OnSystemEvent(event SystemEvent)
}

// OutcomeEvent is the structured telemetry record emitted once per session,
// just before the terminal result is dispatched.
type OutcomeEvent struct {
	SessionToken   string
	Reason         DismissReason
	Modality       Modality
	CryptoBound    bool
	ConfirmLatency time.Duration
	TotalLatency   time.Duration
	At             time.Time
}

// Recorder receives outcome telemetry. Implementations must not block.
type Recorder interface {
	RecordOutcome(event OutcomeEvent)
}

type nopRecorder struct{}

func (nopRecorder) RecordOutcome(OutcomeEvent) {}

type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// AcquiredInfo classifies an acquisition hint from a sensor.
type AcquiredInfo int

const (
	AcquiredGood AcquiredInfo = iota
	AcquiredPartial
	AcquiredInsufficient
	AcquiredSensorDirty
	AcquiredTooFast
	AcquiredVendor
)

// helpMessage maps an acquisition hint to a human-readable string for the
// prompt. Vendor hints carry their own message.
func helpMessage(modality Modality, info AcquiredInfo) string {
	switch info {
	case AcquiredGood:
		return ""
	case AcquiredPartial:
		if modality == ModalityFingerprint {
			return "Press firmly on the sensor"
		}
		return "Move closer to the sensor"
	case AcquiredInsufficient:
		if modality == ModalityFace {
			return "Face not recognized, adjust position"
		}
		return "Couldn't read sensor, try again"
	case AcquiredSensorDirty:
		return "Clean the sensor and try again"
	case AcquiredTooFast:
		return "Moved too fast, try again"
	default:
		return ""
	}
}

package biometrics

import "fmt"

// SessionState is the orchestrator's position in the authentication flow.
type SessionState int

const (
	// StateIdle is the zero state before GoToInitialState.
	StateIdle SessionState = iota

	// StateCalled means every eligible sensor has been asked to prepare and
	// the session is waiting on the cookie barrier.
	StateCalled

	// StateStarted means all cookies came back, sensors are authenticating
	// and the biometric prompt is visible.
	StateStarted

	// StatePaused means a pausable modality failed softly or timed out; the
	// prompt shows a try-again affordance.
	StatePaused

	// StatePausedResuming means try-again was pressed and the session is
	// back behind the cookie barrier, prompt still visible.
	StatePausedResuming

	// StatePendingConfirm means hardware matched but the user still has to
	// confirm; the token is escrowed.
	StatePendingConfirm

	// StateAuthenticatedPendingUI means hardware matched, no confirmation
	// required, waiting for the gateway's dismissal callback.
	StateAuthenticatedPendingUI

	// StateErrorPendingUI means a hard error was handed to the gateway and
	// the session is waiting for its dismissal callback.
	StateErrorPendingUI

	// StateShowingCredential means the biometric phase is over and the
	// device-credential UI owns the transaction.
	StateShowingCredential

	// StateClientDiedCancelling means the caller's channel died while
	// sensors were running; the session is draining their cancellations.
	StateClientDiedCancelling
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCalled:
		return "called"
	case StateStarted:
		return "started"
	case StatePaused:
		return "paused"
	case StatePausedResuming:
		return "paused-resuming"
	case StatePendingConfirm:
		return "pending-confirm"
	case StateAuthenticatedPendingUI:
		return "authenticated-pending-ui"
	case StateErrorPendingUI:
		return "error-pending-ui"
	case StateShowingCredential:
		return "showing-credential"
	case StateClientDiedCancelling:
		return "client-died-cancelling"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// SensorState is a handle's position in the per-sensor start protocol.
type SensorState int

const (
	SensorUnknown SensorState = iota
	SensorWaitingForCookie
	SensorAuthenticating
	SensorStopped
)

func (s SensorState) String() string {
	switch s {
	case SensorUnknown:
		return "unknown"
	case SensorWaitingForCookie:
		return "waiting-for-cookie"
	case SensorAuthenticating:
		return "authenticating"
	case SensorStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// DismissReason tells the session why the presentation gateway dismissed
// the prompt.
type DismissReason int

const (
	DismissedBiometricConfirmed DismissReason = iota + 1
	DismissedConfirmNotRequired
	DismissedCredentialConfirmed
	DismissedNegative
	DismissedUserCancel
	DismissedError
	DismissedServerRequested
)

func (r DismissReason) String() string {
	switch r {
	case DismissedBiometricConfirmed:
		return "biometric-confirmed"
	case DismissedConfirmNotRequired:
		return "confirm-not-required"
	case DismissedCredentialConfirmed:
		return "credential-confirmed"
	case DismissedNegative:
		return "negative-button"
	case DismissedUserCancel:
		return "user-cancel"
	case DismissedError:
		return "error"
	case DismissedServerRequested:
		return "server-requested"
	default:
		return fmt.Sprintf("unknown(%d)", int(r))
	}
}

// SystemEvent is an out-of-band notice to the caller about the prompt.
type SystemEvent int

const (
	// EventCredentialShown fires when the session hands the transaction to
	// the device-credential UI.
	EventCredentialShown SystemEvent = iota + 1
)

package biometrics

import "fmt"

// SensorSpec describes one sensor known to the service.
type SensorSpec struct {
	ID       int32
	Modality Modality
	Strength Strength
	Driver   SensorDriver
}

// EligibilityInfo is the immutable per-session snapshot of which sensors
// may participate and whether the device credential is an acceptable
// fallback. Computed once, read-only thereafter.
type EligibilityInfo struct {
	sensors               []SensorSpec
	credentialAllowed     bool
	confirmationRequested bool
}

// Sensors returns the eligible sensor list in registration order.
func (e EligibilityInfo) Sensors() []SensorSpec {
	return e.sensors
}

// HasSensors reports whether any biometric sensor is eligible.
func (e EligibilityInfo) HasSensors() bool {
	return len(e.sensors) > 0
}

// CredentialAllowed reports whether the device credential may conclude the
// transaction.
func (e EligibilityInfo) CredentialAllowed() bool {
	return e.credentialAllowed
}

// ConfirmationRequested reports whether the caller asked for an explicit
// confirmation step on modalities that support one.
func (e EligibilityInfo) ConfirmationRequested() bool {
	return e.confirmationRequested
}

// EnrollmentState reports which modalities a user has enrolled with a given
// sensor. Satisfied by *storage.EnrollmentRepository via a thin adapter.
type EnrollmentState interface {
	Enrolled(userID int32, sensorID int32) (bool, error)
}

// EligibilityRequest is the caller's side of the eligibility computation.
type EligibilityRequest struct {
	UserID              int32
	Allowed             Strength
	RequireConfirmation bool
}

// ComputeEligibility filters the registered sensors down to those matching
// the requested authenticator strength and the user's enrollments, and
// decides whether the credential fallback is on the table. Pure and
// one-shot: the result never changes for the session's lifetime.
func ComputeEligibility(req EligibilityRequest, sensors []SensorSpec, enrollments EnrollmentState) (EligibilityInfo, error) {
	info := EligibilityInfo{
		credentialAllowed:     req.Allowed.AllowsCredential(),
		confirmationRequested: req.RequireConfirmation,
	}
	if !req.Allowed.AllowsBiometric() {
		return info, nil
	}

	for _, spec := range sensors {
		if spec.Driver == nil {
			return EligibilityInfo{}, fmt.Errorf("compute eligibility: sensor %d has no driver", spec.ID)
		}
		if !strengthAcceptable(req.Allowed, spec.Strength) {
			continue
		}
		enrolled, err := enrollments.Enrolled(req.UserID, spec.ID)
		if err != nil {
			return EligibilityInfo{}, fmt.Errorf("compute eligibility: sensor %d: %w", spec.ID, err)
		}
		if !enrolled {
			continue
		}
		info.sensors = append(info.sensors, spec)
	}
	return info, nil
}

// strengthAcceptable reports whether a sensor of the given strength
// satisfies the caller's mask. A strong sensor satisfies a weak request;
// the reverse does not hold.
func strengthAcceptable(allowed Strength, sensor Strength) bool {
	switch {
	case sensor&StrengthStrong != 0:
		return allowed&(StrengthStrong|StrengthWeak|StrengthConvenience) != 0
	case sensor&StrengthWeak != 0:
		return allowed&(StrengthWeak|StrengthConvenience) != 0
	case sensor&StrengthConvenience != 0:
		return allowed&StrengthConvenience != 0
	default:
		return false
	}
}

// NewEligibilityInfo assembles a snapshot directly from its parts. Used by
// tests and by registries that precompute eligibility elsewhere.
func NewEligibilityInfo(sensors []SensorSpec, credentialAllowed, confirmationRequested bool) EligibilityInfo {
	return EligibilityInfo{
		sensors:               sensors,
		credentialAllowed:     credentialAllowed,
		confirmationRequested: confirmationRequested,
	}
}

package biometrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeEnrollments struct {
	enrolled map[int32]bool
	err      error
}

func (f *fakeEnrollments) Enrolled(_ int32, sensorID int32) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.enrolled[sensorID], nil
}

func registeredSensors() []SensorSpec {
	return []SensorSpec{
		{ID: 1, Modality: ModalityFace, Strength: StrengthStrong, Driver: &fakeDriver{}},
		{ID: 2, Modality: ModalityFingerprint, Strength: StrengthWeak, Driver: &fakeDriver{}},
		{ID: 3, Modality: ModalityIris, Strength: StrengthConvenience, Driver: &fakeDriver{}},
	}
}

func TestComputeEligibilityFiltersByEnrollment(t *testing.T) {
	t.Parallel()

	enrollments := &fakeEnrollments{enrolled: map[int32]bool{1: true}}
	info, err := ComputeEligibility(EligibilityRequest{
		UserID:  10,
		Allowed: StrengthStrong | StrengthWeak,
	}, registeredSensors(), enrollments)
	require.NoError(t, err)

	require.Len(t, info.Sensors(), 1)
	require.Equal(t, int32(1), info.Sensors()[0].ID)
	require.False(t, info.CredentialAllowed())
}

func TestComputeEligibilityStrengthMask(t *testing.T) {
	t.Parallel()

	enrollments := &fakeEnrollments{enrolled: map[int32]bool{1: true, 2: true, 3: true}}

	strongOnly, err := ComputeEligibility(EligibilityRequest{Allowed: StrengthStrong}, registeredSensors(), enrollments)
	require.NoError(t, err)
	require.Len(t, strongOnly.Sensors(), 1)

	weak, err := ComputeEligibility(EligibilityRequest{Allowed: StrengthWeak}, registeredSensors(), enrollments)
	require.NoError(t, err)
	// A strong sensor satisfies a weak request; the convenience sensor does not.
	require.Len(t, weak.Sensors(), 2)

	convenience, err := ComputeEligibility(EligibilityRequest{Allowed: StrengthConvenience}, registeredSensors(), enrollments)
	require.NoError(t, err)
	require.Len(t, convenience.Sensors(), 3)
}

func TestComputeEligibilityCredentialOnly(t *testing.T) {
	t.Parallel()

	info, err := ComputeEligibility(EligibilityRequest{
		Allowed: StrengthCredential,
	}, registeredSensors(), &fakeEnrollments{})
	require.NoError(t, err)

	require.False(t, info.HasSensors())
	require.True(t, info.CredentialAllowed())
}

func TestComputeEligibilityPropagatesLookupError(t *testing.T) {
	t.Parallel()

	lookupErr := errors.New("enrollment store down")
	_, err := ComputeEligibility(EligibilityRequest{Allowed: StrengthStrong},
		registeredSensors(), &fakeEnrollments{err: lookupErr})
	require.ErrorIs(t, err, lookupErr)
}

func TestComputeEligibilityRejectsDriverlessSensor(t *testing.T) {
	t.Parallel()

	sensors := []SensorSpec{{ID: 9, Modality: ModalityFace, Strength: StrengthStrong}}
	_, err := ComputeEligibility(EligibilityRequest{Allowed: StrengthStrong}, sensors, &fakeEnrollments{})
	require.Error(t, err)
}

package storage

import "context"

// EnrollmentState adapts the enrollment repository to the orchestrator's
// eligibility lookup.
type EnrollmentState struct {
	repo EnrollmentRepository
}

func NewEnrollmentState(repo EnrollmentRepository) *EnrollmentState {
	return &EnrollmentState{repo: repo}
}

func (s *EnrollmentState) Enrolled(userID, sensorID int32) (bool, error) {
	return s.repo.Exists(context.Background(), userID, sensorID)
}

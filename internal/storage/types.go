package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("storage: not found")
	ErrSchemaTooNew = errors.New("storage: schema version newer than code")
)

// AuthToken is one durably committed authentication proof. The blob column
// is sealed at rest; Token carries plaintext only in memory.
type AuthToken struct {
	ID           string
	SessionToken string
	AuthType     string
	Token        []byte
	CreatedAt    time.Time
}

// Enrollment records that a user has a template enrolled with one sensor.
type Enrollment struct {
	ID         string
	UserID     int32
	SensorID   int32
	Modality   string
	EnrolledAt time.Time
}

// OutcomeRecord is one hash-chained telemetry event: the terminal
// disposition and latency figures of a finished session.
type OutcomeRecord struct {
	ID               string
	SessionToken     string
	Reason           string
	Modality         string
	CryptoBound      bool
	ConfirmLatencyMS int64
	TotalLatencyMS   int64
	PrevHash         string
	EventHash        string
	CreatedAt        time.Time
}

type OutcomeFilter struct {
	Reason string
	Since  *time.Time
	Limit  int
}

type TokenRepository interface {
	Insert(ctx context.Context, token *AuthToken) error
	Get(ctx context.Context, id string) (*AuthToken, error)
	List(ctx context.Context, sessionToken string) ([]AuthToken, error)
}

type EnrollmentRepository interface {
	Upsert(ctx context.Context, enrollment *Enrollment) error
	Exists(ctx context.Context, userID, sensorID int32) (bool, error)
	ListForUser(ctx context.Context, userID int32) ([]Enrollment, error)
	Delete(ctx context.Context, userID, sensorID int32) error
}

type OutcomeRepository interface {
	AppendWithTip(ctx context.Context, record *OutcomeRecord, tip string) error
	ChainTip(ctx context.Context) (string, error)
	List(ctx context.Context, filter OutcomeFilter) ([]OutcomeRecord, error)
}

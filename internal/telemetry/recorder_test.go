package telemetry

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/argusauth/argus/internal/biometrics"
	"github.com/argusauth/argus/internal/crypto"
	"github.com/argusauth/argus/internal/storage"
)

func newTestService(t *testing.T) (*Service, *storage.Store) {
	t.Helper()

	cipher, err := crypto.NewTokenCipher([]byte("root"), []byte("salt"))
	require.NoError(t, err)
	t.Cleanup(cipher.Destroy)

	store, err := storage.Open(t.TempDir()+"/telemetry.db", cipher)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })

	service, err := NewService(store.Outcomes, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return service, store
}

func sampleEvent(session string, reason biometrics.DismissReason) biometrics.OutcomeEvent {
	return biometrics.OutcomeEvent{
		SessionToken:   session,
		Reason:         reason,
		Modality:       biometrics.ModalityFace,
		CryptoBound:    true,
		ConfirmLatency: 250 * time.Millisecond,
		TotalLatency:   3 * time.Second,
		At:             time.Now().UTC(),
	}
}

func TestRecordedChainVerifies(t *testing.T) {
	t.Parallel()

	service, _ := newTestService(t)
	service.RecordOutcome(sampleEvent("sess-1", biometrics.DismissedBiometricConfirmed))
	service.RecordOutcome(sampleEvent("sess-2", biometrics.DismissedUserCancel))
	service.RecordOutcome(sampleEvent("sess-3", biometrics.DismissedError))

	result, err := service.Verify(context.Background())
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Equal(t, 3, result.EventCount)
	require.Empty(t, result.BrokenAt)
}

func TestChainSurvivesServiceRestart(t *testing.T) {
	t.Parallel()

	service, store := newTestService(t)
	service.RecordOutcome(sampleEvent("sess-1", biometrics.DismissedBiometricConfirmed))

	// A fresh service resumes from the persisted tip.
	resumed, err := NewService(store.Outcomes, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	resumed.RecordOutcome(sampleEvent("sess-2", biometrics.DismissedUserCancel))

	result, err := resumed.Verify(context.Background())
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Equal(t, 2, result.EventCount)
}

func TestVerifyDetectsTamperedPayload(t *testing.T) {
	t.Parallel()

	service, store := newTestService(t)
	service.RecordOutcome(sampleEvent("sess-1", biometrics.DismissedBiometricConfirmed))
	service.RecordOutcome(sampleEvent("sess-2", biometrics.DismissedUserCancel))

	records, err := store.Outcomes.List(context.Background(), storage.OutcomeFilter{})
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Append a row behind the service's back that does not extend the chain.
	tampered := records[0]
	tampered.ID = "tampered"
	tampered.Reason = "confirm_not_required"
	tampered.CreatedAt = records[1].CreatedAt.Add(time.Second)
	require.NoError(t, store.Outcomes.AppendWithTip(context.Background(), &tampered, tampered.EventHash))

	result, err := service.Verify(context.Background())
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.NotEmpty(t, result.BrokenAt)
}

func TestRecordOutcomeLatenciesPersisted(t *testing.T) {
	t.Parallel()

	service, store := newTestService(t)
	service.RecordOutcome(sampleEvent("sess-1", biometrics.DismissedBiometricConfirmed))

	records, err := store.Outcomes.List(context.Background(), storage.OutcomeFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, int64(250), records[0].ConfirmLatencyMS)
	require.Equal(t, int64(3000), records[0].TotalLatencyMS)
	require.True(t, records[0].CryptoBound)
	require.Equal(t, "sess-1", records[0].SessionToken)
}

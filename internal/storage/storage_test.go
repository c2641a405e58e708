package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/argusauth/argus/internal/crypto"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	cipher, err := crypto.NewTokenCipher([]byte("test-root-key-material"), []byte("test-salt"))
	require.NoError(t, err)
	t.Cleanup(cipher.Destroy)

	store, err := Open(filepath.Join(t.TempDir(), "argus.db"), cipher)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	return store
}

func TestTokenRoundTripSealsAtRest(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	entry := &AuthToken{
		SessionToken: "sess-1",
		AuthType:     "biometric",
		Token:        []byte("hardware-auth-token"),
	}
	require.NoError(t, store.Tokens.Insert(ctx, entry))
	require.NotEmpty(t, entry.ID)
	require.False(t, entry.CreatedAt.IsZero())

	got, err := store.Tokens.Get(ctx, entry.ID)
	require.NoError(t, err)
	require.Equal(t, []byte("hardware-auth-token"), got.Token)
	require.Equal(t, "sess-1", got.SessionToken)
	require.Equal(t, "biometric", got.AuthType)

	// The stored column never carries plaintext.
	var sealed []byte
	err = store.db.QueryRow(`SELECT token_ciphertext FROM auth_tokens WHERE id = ?`, entry.ID).Scan(&sealed)
	require.NoError(t, err)
	require.NotContains(t, string(sealed), "hardware-auth-token")
}

func TestTokenGetUnknownIDReturnsNotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, err := store.Tokens.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTokenInsertRejectsEmptyToken(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	err := store.Tokens.Insert(context.Background(), &AuthToken{SessionToken: "sess-1"})
	require.Error(t, err)
}

func TestTokenListScopedToSession(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	for _, session := range []string{"sess-a", "sess-a", "sess-b"} {
		require.NoError(t, store.Tokens.Insert(ctx, &AuthToken{
			SessionToken: session,
			AuthType:     "biometric",
			Token:        []byte("proof"),
		}))
	}

	tokens, err := store.Tokens.List(ctx, "sess-a")
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	for _, token := range tokens {
		require.Equal(t, "sess-a", token.SessionToken)
	}
}

func TestTokenSinkCommitsForItsSession(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	sink := NewTokenSink(store.Tokens, "sess-sink", "credential")

	require.NoError(t, sink.CommitAuthToken([]byte("pin-proof")))

	tokens, err := store.Tokens.List(context.Background(), "sess-sink")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	require.Equal(t, "credential", tokens[0].AuthType)
}

func TestEnrollmentUpsertExistsDelete(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	enrollment := &Enrollment{UserID: 10, SensorID: 1, Modality: "face"}
	require.NoError(t, store.Enrollments.Upsert(ctx, enrollment))

	ok, err := store.Enrollments.Exists(ctx, 10, 1)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.Enrollments.Exists(ctx, 10, 2)
	require.NoError(t, err)
	require.False(t, ok)

	// Upsert is idempotent per (user, sensor).
	require.NoError(t, store.Enrollments.Upsert(ctx, &Enrollment{UserID: 10, SensorID: 1, Modality: "face"}))
	list, err := store.Enrollments.ListForUser(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, store.Enrollments.Delete(ctx, 10, 1))
	ok, err = store.Enrollments.Exists(ctx, 10, 1)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEnrollmentStateAdapter(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Enrollments.Upsert(ctx, &Enrollment{UserID: 7, SensorID: 3, Modality: "fingerprint"}))

	state := NewEnrollmentState(store.Enrollments)
	ok, err := state.Enrolled(7, 3)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = state.Enrolled(7, 4)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOutcomeChainTipAdvancesWithEachAppend(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	tip, err := store.Outcomes.ChainTip(ctx)
	require.NoError(t, err)
	require.Empty(t, tip)

	first := &OutcomeRecord{
		SessionToken: "sess-1",
		Reason:       "confirm_not_required",
		Modality:     "face",
		PrevHash:     "",
		EventHash:    "hash-1",
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, store.Outcomes.AppendWithTip(ctx, first, first.EventHash))

	tip, err = store.Outcomes.ChainTip(ctx)
	require.NoError(t, err)
	require.Equal(t, "hash-1", tip)

	second := &OutcomeRecord{
		SessionToken: "sess-2",
		Reason:       "user_cancel",
		Modality:     "face",
		PrevHash:     tip,
		EventHash:    "hash-2",
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, store.Outcomes.AppendWithTip(ctx, second, second.EventHash))

	tip, err = store.Outcomes.ChainTip(ctx)
	require.NoError(t, err)
	require.Equal(t, "hash-2", tip)

	records, err := store.Outcomes.List(ctx, OutcomeFilter{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "hash-1", records[1].PrevHash)
}

func TestOutcomeListFilters(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	tip := ""
	for i, reason := range []string{"user_cancel", "confirm_not_required", "user_cancel"} {
		record := &OutcomeRecord{
			SessionToken: "sess",
			Reason:       reason,
			Modality:     "fingerprint",
			PrevHash:     tip,
			EventHash:    string(rune('a' + i)),
			CreatedAt:    time.Now().UTC(),
		}
		require.NoError(t, store.Outcomes.AppendWithTip(ctx, record, record.EventHash))
		tip = record.EventHash
	}

	records, err := store.Outcomes.List(ctx, OutcomeFilter{Reason: "user_cancel"})
	require.NoError(t, err)
	require.Len(t, records, 2)

	records, err = store.Outcomes.List(ctx, OutcomeFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestReopenPreservesData(t *testing.T) {
	t.Parallel()

	cipher, err := crypto.NewTokenCipher([]byte("root"), []byte("salt"))
	require.NoError(t, err)
	t.Cleanup(cipher.Destroy)

	path := filepath.Join(t.TempDir(), "argus.db")
	store, err := Open(path, cipher)
	require.NoError(t, err)

	entry := &AuthToken{SessionToken: "sess", AuthType: "biometric", Token: []byte("proof")}
	require.NoError(t, store.Tokens.Insert(context.Background(), entry))
	require.NoError(t, store.Close())

	reopened, err := Open(path, cipher)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, reopened.Close()) })

	got, err := reopened.Tokens.Get(context.Background(), entry.ID)
	require.NoError(t, err)
	require.Equal(t, []byte("proof"), got.Token)
}

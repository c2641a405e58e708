// Package telemetry records per-session outcome and latency events into a
// hash-chained log, so after-the-fact tampering with the authentication
// history is detectable.
package telemetry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/argusauth/argus/internal/biometrics"
	"github.com/argusauth/argus/internal/storage"
)

// Service chains outcome events into the store and mirrors them to the
// structured log. Implements biometrics.Recorder.
type Service struct {
	repo storage.OutcomeRepository
	log  *slog.Logger

	mu       sync.Mutex
	chainTip string
}

// NewService loads the persisted chain tip so new events extend the
// existing chain.
func NewService(repo storage.OutcomeRepository, logger *slog.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("new telemetry service: repository is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	tip, err := repo.ChainTip(context.Background())
	if err != nil {
		return nil, fmt.Errorf("new telemetry service: read chain tip: %w", err)
	}
	return &Service{repo: repo, log: logger, chainTip: tip}, nil
}

// RecordOutcome appends one event. A storage failure is logged, never
// surfaced: telemetry must not block or fail an authentication outcome.
func (s *Service) RecordOutcome(event biometrics.OutcomeEvent) {
	record := &storage.OutcomeRecord{
		SessionToken:     event.SessionToken,
		Reason:           event.Reason.String(),
		Modality:         event.Modality.String(),
		CryptoBound:      event.CryptoBound,
		ConfirmLatencyMS: event.ConfirmLatency.Milliseconds(),
		TotalLatencyMS:   event.TotalLatency.Milliseconds(),
		CreatedAt:        event.At,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := canonicalPayload(record)
	if err != nil {
		s.log.Error("canonicalize outcome event", slog.Any("error", err))
		return
	}
	record.PrevHash = s.chainTip
	record.EventHash = chainHashHex(s.chainTip, payload)

	if err := s.repo.AppendWithTip(context.Background(), record, record.EventHash); err != nil {
		s.log.Error("append outcome event", slog.Any("error", err))
		return
	}
	s.chainTip = record.EventHash

	s.log.Info("authentication outcome",
		slog.String("session", event.SessionToken),
		slog.String("reason", event.Reason.String()),
		slog.String("modality", event.Modality.String()),
		slog.Bool("crypto_bound", event.CryptoBound),
		slog.Int64("confirm_latency_ms", record.ConfirmLatencyMS),
		slog.Int64("total_latency_ms", record.TotalLatencyMS))
}

// VerifyResult is the outcome of a chain walk.
type VerifyResult struct {
	Valid      bool
	EventCount int
	BrokenAt   string
}

// Verify recomputes the chain from the start and reports the first break.
func (s *Service) Verify(ctx context.Context) (*VerifyResult, error) {
	records, err := s.repo.List(ctx, storage.OutcomeFilter{})
	if err != nil {
		return nil, fmt.Errorf("verify outcome chain: %w", err)
	}

	prev := ""
	for _, record := range records {
		payload, err := canonicalPayload(&record)
		if err != nil {
			return nil, fmt.Errorf("verify outcome chain: record %s: %w", record.ID, err)
		}
		if record.PrevHash != prev || record.EventHash != chainHashHex(prev, payload) {
			return &VerifyResult{Valid: false, EventCount: len(records), BrokenAt: record.ID}, nil
		}
		prev = record.EventHash
	}
	return &VerifyResult{Valid: true, EventCount: len(records)}, nil
}

type chainPayload struct {
	SessionToken     string `json:"session_token"`
	Reason           string `json:"reason"`
	Modality         string `json:"modality"`
	CryptoBound      bool   `json:"crypto_bound"`
	ConfirmLatencyMS int64  `json:"confirm_latency_ms"`
	TotalLatencyMS   int64  `json:"total_latency_ms"`
}

func canonicalPayload(record *storage.OutcomeRecord) ([]byte, error) {
	return json.Marshal(chainPayload{
		SessionToken:     record.SessionToken,
		Reason:           record.Reason,
		Modality:         record.Modality,
		CryptoBound:      record.CryptoBound,
		ConfirmLatencyMS: record.ConfirmLatencyMS,
		TotalLatencyMS:   record.TotalLatencyMS,
	})
}

func chainHashHex(prev string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(prev))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

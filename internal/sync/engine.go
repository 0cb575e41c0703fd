package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/rmonterroso/fieldledger-backend/pkg/db/models"
	"github.com/rmonterroso/fieldledger-backend/pkg/enums"
	"github.com/rmonterroso/fieldledger-backend/pkg/logger"
	"github.com/rmonterroso/fieldledger-backend/pkg/metrics"
)

// Outcome is the server's verdict on one submission.
type Outcome string

const (
	// OutcomeAccepted means the event was appended.
	OutcomeAccepted Outcome = "accepted"
	// OutcomeConflict means the client uuid was already recorded; the
	// earlier delivery stands and this copy must not be resubmitted.
	OutcomeConflict Outcome = "conflict"
)

// Store is the slice of the local outbox the engine drains.
type Store interface {
	ListUnsynced(ctx context.Context) ([]models.OutboxEntry, error)
	Attachments(ctx context.Context, clientUUID uuid.UUID) ([]models.OutboxAttachment, error)
	MarkSynced(ctx context.Context, clientUUID uuid.UUID) error
	MarkError(ctx context.Context, clientUUID uuid.UUID, message string) error
	Remove(ctx context.Context, clientUUID uuid.UUID) error
}

// Server is the remote ledger as the engine sees it.
type Server interface {
	UploadAttachment(ctx context.Context, attachment models.OutboxAttachment) (string, error)
	SubmitEvent(ctx context.Context, entry models.OutboxEntry) (Outcome, error)
}

// Result reports one drain pass.
type Result struct {
	Synced        int      `json:"synced"`
	Errors        int      `json:"errors"`
	ErrorMessages []string `json:"error_messages,omitempty"`
}

// Engine drains the outbox strictly sequentially. One in-flight submission at
// a time is what preserves per-device causal order; parallelism here would
// reorder a device's history.
type Engine struct {
	store   Store
	server  Server
	logg    *logger.Logger
	metrics *metrics.SyncMetrics
}

func NewEngine(store Store, server Server, logg *logger.Logger, m *metrics.SyncMetrics) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("outbox store required")
	}
	if server == nil {
		return nil, fmt.Errorf("server client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Engine{store: store, server: server, logg: logg, metrics: m}, nil
}

// Sync drains every unsynced entry once, oldest first. Per entry: upload
// attachments, then submit the event with its client uuid as the idempotency
// key. A failed entry is recorded and skipped, never fatal to the pass. A
// canceled context stops between entries, leaving the rest untouched.
func (e *Engine) Sync(ctx context.Context, trigger string) (Result, error) {
	started := time.Now()
	defer func() {
		e.metrics.ObservePass(trigger, time.Since(started))
	}()

	entries, err := e.store.ListUnsynced(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("listing unsynced entries: %w", err)
	}

	var result Result
	var bookkeeping error
	for _, entry := range entries {
		if ctx.Err() != nil {
			// Interrupted mid-pass: everything not yet confirmed stays
			// exactly as it was.
			return result, multierr.Append(bookkeeping, ctx.Err())
		}

		entryCtx := e.logg.WithFields(ctx, map[string]any{
			"client_uuid": entry.ClientUUID.String(),
			"event_type":  entry.EventType,
		})

		outcome, err := e.syncEntry(entryCtx, entry)
		if err != nil {
			result.Errors++
			result.ErrorMessages = append(result.ErrorMessages, fmt.Sprintf("%s: %v", entry.ClientUUID, err))
			e.metrics.IncEntry("error")
			if markErr := e.store.MarkError(ctx, entry.ClientUUID, err.Error()); markErr != nil {
				bookkeeping = multierr.Append(bookkeeping, markErr)
			}
			e.logg.Warn(entryCtx, "entry failed, staying queued")
			continue
		}

		result.Synced++
		e.metrics.IncEntry(string(outcome))
	}

	e.logg.Info(e.logg.WithFields(ctx, map[string]any{
		"synced": result.Synced,
		"errors": result.Errors,
	}), "sync pass finished")
	return result, bookkeeping
}

// syncEntry pushes one entry through the attachment-then-event sequence.
// Nothing is confirmed locally until the server has acknowledged the event:
// an upload that succeeds ahead of a failed submission leaves the entry
// queued, attachments included, for a clean retry of the whole unit.
func (e *Engine) syncEntry(ctx context.Context, entry models.OutboxEntry) (Outcome, error) {
	attachments, err := e.store.Attachments(ctx, entry.ClientUUID)
	if err != nil {
		return "", fmt.Errorf("loading attachments: %w", err)
	}

	var references []string
	for _, attachment := range attachments {
		reference, err := e.server.UploadAttachment(ctx, attachment)
		if err != nil {
			return "", fmt.Errorf("uploading %s: %w", attachment.FileName, err)
		}
		references = append(references, reference)
	}

	if len(references) > 0 {
		merged, err := mergeReceiptReference(entry.EventType, entry.Payload, references[0])
		if err != nil {
			return "", err
		}
		entry.Payload = merged
	}

	outcome, err := e.server.SubmitEvent(ctx, entry)
	if err != nil {
		return "", err
	}

	switch outcome {
	case OutcomeAccepted:
		if err := e.store.MarkSynced(ctx, entry.ClientUUID); err != nil {
			return "", fmt.Errorf("marking synced: %w", err)
		}
	case OutcomeConflict:
		// Confirmed at-least-once delivery that landed twice.
		if err := e.store.Remove(ctx, entry.ClientUUID); err != nil {
			return "", fmt.Errorf("removing confirmed duplicate: %w", err)
		}
		e.logg.Info(ctx, "entry already delivered, removed")
	default:
		return "", fmt.Errorf("unknown submit outcome %q", outcome)
	}
	return outcome, nil
}

// receiptKinds are the payloads that carry a receipt_photo_url field.
var receiptKinds = map[enums.EventType]struct{}{
	enums.EventMaterialAdded:     {},
	enums.EventExpenseLogged:     {},
	enums.EventSubcontractorCost: {},
}

// mergeReceiptReference writes the uploaded reference into the payload for
// kinds that expect one; other kinds keep their payload untouched and the
// attachment stays reachable by client uuid.
func mergeReceiptReference(eventType string, payload json.RawMessage, reference string) (json.RawMessage, error) {
	if _, ok := receiptKinds[enums.EventType(eventType)]; !ok {
		return payload, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("merging attachment reference: %w", err)
	}
	fields["receipt_photo_url"] = reference
	return json.Marshal(fields)
}

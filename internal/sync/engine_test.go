package sync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rmonterroso/fieldledger-backend/pkg/db/models"
	"github.com/rmonterroso/fieldledger-backend/pkg/logger"
)

type fakeStore struct {
	entries     []models.OutboxEntry
	attachments map[uuid.UUID][]models.OutboxAttachment
	synced      []uuid.UUID
	removed     []uuid.UUID
	errored     map[uuid.UUID]string
}

func newFakeStore(entries ...models.OutboxEntry) *fakeStore {
	return &fakeStore{
		entries:     entries,
		attachments: map[uuid.UUID][]models.OutboxAttachment{},
		errored:     map[uuid.UUID]string{},
	}
}

func (f *fakeStore) ListUnsynced(_ context.Context) ([]models.OutboxEntry, error) {
	return f.entries, nil
}

func (f *fakeStore) Attachments(_ context.Context, clientUUID uuid.UUID) ([]models.OutboxAttachment, error) {
	return f.attachments[clientUUID], nil
}

func (f *fakeStore) MarkSynced(_ context.Context, clientUUID uuid.UUID) error {
	f.synced = append(f.synced, clientUUID)
	delete(f.attachments, clientUUID)
	return nil
}

func (f *fakeStore) MarkError(_ context.Context, clientUUID uuid.UUID, message string) error {
	f.errored[clientUUID] = message
	return nil
}

func (f *fakeStore) Remove(_ context.Context, clientUUID uuid.UUID) error {
	f.removed = append(f.removed, clientUUID)
	delete(f.attachments, clientUUID)
	return nil
}

type fakeServer struct {
	submitted   []uuid.UUID
	uploaded    []string
	outcomes    map[uuid.UUID]Outcome
	submitErrs  map[uuid.UUID]error
	uploadErrs  map[string]error
	lastPayload map[uuid.UUID]json.RawMessage
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		outcomes:    map[uuid.UUID]Outcome{},
		submitErrs:  map[uuid.UUID]error{},
		uploadErrs:  map[string]error{},
		lastPayload: map[uuid.UUID]json.RawMessage{},
	}
}

func (f *fakeServer) UploadAttachment(_ context.Context, attachment models.OutboxAttachment) (string, error) {
	if err := f.uploadErrs[attachment.FileName]; err != nil {
		return "", err
	}
	f.uploaded = append(f.uploaded, attachment.FileName)
	return "/api/v1/attachments/" + attachment.FileName, nil
}

func (f *fakeServer) SubmitEvent(_ context.Context, entry models.OutboxEntry) (Outcome, error) {
	if err := f.submitErrs[entry.ClientUUID]; err != nil {
		return "", err
	}
	f.submitted = append(f.submitted, entry.ClientUUID)
	f.lastPayload[entry.ClientUUID] = entry.Payload
	if outcome, ok := f.outcomes[entry.ClientUUID]; ok {
		return outcome, nil
	}
	return OutcomeAccepted, nil
}

func newTestEngine(t *testing.T, store Store, server Server) *Engine {
	t.Helper()
	engine, err := NewEngine(store, server, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}), nil)
	if err != nil {
		t.Fatalf("building engine: %v", err)
	}
	return engine
}

func entryAt(seq int, at time.Time) models.OutboxEntry {
	return models.OutboxEntry{
		ID:         uint(seq),
		ClientUUID: uuid.New(),
		EventType:  "EXPENSE_LOGGED",
		Payload:    json.RawMessage(`{"category":"fuel","amount":10,"payment_method":"cash"}`),
		CreatedBy:  uuid.New(),
		DeviceID:   "device-a1",
		CreatedAt:  at,
	}
}

func TestSyncSubmitsSequentiallyInStoreOrder(t *testing.T) {
	base := time.Now().UTC()
	first := entryAt(1, base)
	second := entryAt(2, base.Add(time.Minute))
	third := entryAt(3, base.Add(2*time.Minute))

	store := newFakeStore(first, second, third)
	server := newFakeServer()
	engine := newTestEngine(t, store, server)

	result, err := engine.Sync(context.Background(), "manual")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if result.Synced != 3 || result.Errors != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	want := []uuid.UUID{first.ClientUUID, second.ClientUUID, third.ClientUUID}
	for i, id := range want {
		if server.submitted[i] != id {
			t.Fatalf("submission %d out of order", i)
		}
	}
}

func TestSyncConflictRemovesAndCountsSynced(t *testing.T) {
	entry := entryAt(1, time.Now().UTC())
	store := newFakeStore(entry)
	server := newFakeServer()
	server.outcomes[entry.ClientUUID] = OutcomeConflict
	engine := newTestEngine(t, store, server)

	result, err := engine.Sync(context.Background(), "manual")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if result.Synced != 1 || result.Errors != 0 {
		t.Fatalf("conflict must count as synced, got %+v", result)
	}
	if len(store.removed) != 1 || store.removed[0] != entry.ClientUUID {
		t.Fatal("conflicted entry must be removed, not resubmitted")
	}
	if len(store.synced) != 0 {
		t.Fatal("conflicted entry must not be marked synced")
	}
}

func TestSyncOneFailureDoesNotAbortThePass(t *testing.T) {
	base := time.Now().UTC()
	failing := entryAt(1, base)
	healthy := entryAt(2, base.Add(time.Minute))

	store := newFakeStore(failing, healthy)
	server := newFakeServer()
	server.submitErrs[failing.ClientUUID] = errors.New("server returned 503")
	engine := newTestEngine(t, store, server)

	result, err := engine.Sync(context.Background(), "manual")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if result.Synced != 1 || result.Errors != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(result.ErrorMessages) != 1 {
		t.Fatalf("expected one error message, got %v", result.ErrorMessages)
	}
	if store.errored[failing.ClientUUID] == "" {
		t.Fatal("failure must be recorded on the entry")
	}
	if len(store.synced) != 1 || store.synced[0] != healthy.ClientUUID {
		t.Fatal("healthy entry must still drain")
	}
}

func TestSyncAttachmentFailureLeavesWholeEntryQueued(t *testing.T) {
	entry := entryAt(1, time.Now().UTC())
	store := newFakeStore(entry)
	store.attachments[entry.ClientUUID] = []models.OutboxAttachment{
		{ClientUUID: entry.ClientUUID, FileName: "receipt.jpg", Data: []byte("x")},
	}
	server := newFakeServer()
	server.uploadErrs["receipt.jpg"] = errors.New("storage unavailable")
	engine := newTestEngine(t, store, server)

	result, err := engine.Sync(context.Background(), "manual")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if result.Errors != 1 || result.Synced != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(server.submitted) != 0 {
		t.Fatal("event must not be submitted when its attachment upload failed")
	}
	if len(store.attachments[entry.ClientUUID]) != 1 {
		t.Fatal("attachments must survive for the retry")
	}
}

func TestSyncNoPartialStateWhenSubmitFailsAfterUpload(t *testing.T) {
	entry := entryAt(1, time.Now().UTC())
	store := newFakeStore(entry)
	store.attachments[entry.ClientUUID] = []models.OutboxAttachment{
		{ClientUUID: entry.ClientUUID, FileName: "receipt.jpg", Data: []byte("x")},
	}
	server := newFakeServer()
	server.submitErrs[entry.ClientUUID] = errors.New("server returned 500")
	engine := newTestEngine(t, store, server)

	if _, err := engine.Sync(context.Background(), "manual"); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(server.uploaded) != 1 {
		t.Fatal("upload should have happened first")
	}
	if len(store.synced) != 0 {
		t.Fatal("entry must not be marked synced after a failed submission")
	}
	if len(store.attachments[entry.ClientUUID]) != 1 {
		t.Fatal("attachment must not be purged after a failed submission")
	}
}

func TestSyncMergesReceiptReference(t *testing.T) {
	entry := entryAt(1, time.Now().UTC())
	store := newFakeStore(entry)
	store.attachments[entry.ClientUUID] = []models.OutboxAttachment{
		{ClientUUID: entry.ClientUUID, FileName: "receipt.jpg", Data: []byte("x")},
	}
	server := newFakeServer()
	engine := newTestEngine(t, store, server)

	if _, err := engine.Sync(context.Background(), "manual"); err != nil {
		t.Fatalf("sync: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(server.lastPayload[entry.ClientUUID], &payload); err != nil {
		t.Fatalf("decoding submitted payload: %v", err)
	}
	if payload["receipt_photo_url"] != "/api/v1/attachments/receipt.jpg" {
		t.Fatalf("reference not merged, got %v", payload["receipt_photo_url"])
	}
}

func TestSyncCancellationLeavesRemainingEntriesUntouched(t *testing.T) {
	base := time.Now().UTC()
	var entries []models.OutboxEntry
	for i := 0; i < 5; i++ {
		entries = append(entries, entryAt(i+1, base.Add(time.Duration(i)*time.Minute)))
	}
	store := newFakeStore(entries...)
	server := newFakeServer()
	engine := newTestEngine(t, store, server)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := engine.Sync(ctx, "manual")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result.Synced != 0 {
		t.Fatalf("canceled pass confirmed entries: %+v", result)
	}
	if len(store.synced) != 0 || len(store.removed) != 0 {
		t.Fatal("canceled pass mutated the store")
	}
	for _, entry := range entries {
		if _, marked := store.errored[entry.ClientUUID]; marked {
			t.Fatal("cancellation must not be recorded as an entry failure")
		}
	}
	if len(server.submitted) != 0 {
		t.Fatal("canceled pass still reached the server")
	}
}

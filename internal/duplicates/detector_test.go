package duplicates

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rmonterroso/fieldledger-backend/pkg/db/models"
	"github.com/rmonterroso/fieldledger-backend/pkg/enums"
	"github.com/rmonterroso/fieldledger-backend/pkg/logger"
)

type fakeLedger struct {
	events []models.Event
	flags  map[uuid.UUID]bool
}

func newFakeLedger(events ...models.Event) *fakeLedger {
	return &fakeLedger{events: events, flags: map[uuid.UUID]bool{}}
}

func (f *fakeLedger) ListByProjectDay(_ context.Context, projectID *uuid.UUID, from, to time.Time) ([]models.Event, error) {
	var out []models.Event
	for _, ev := range f.events {
		if projectID != nil && (ev.ProjectID == nil || *ev.ProjectID != *projectID) {
			continue
		}
		if ev.CreatedAt.Before(from) || !ev.CreatedAt.Before(to) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (f *fakeLedger) SetDuplicateFlag(_ context.Context, id uuid.UUID, flagged bool) error {
	f.flags[id] = flagged
	for i := range f.events {
		if f.events[i].ID == id {
			f.events[i].DuplicateFlag = flagged
		}
	}
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func expensePayload(amount string) json.RawMessage {
	return json.RawMessage(`{"category":"fuel","amount":` + amount + `,"payment_method":"cash"}`)
}

func ledgerEvent(projectID uuid.UUID, eventType enums.EventType, payload json.RawMessage, at time.Time) models.Event {
	return models.Event{
		ID:         uuid.New(),
		ClientUUID: uuid.New(),
		EventType:  eventType,
		ProjectID:  &projectID,
		Payload:    payload,
		CreatedBy:  uuid.New(),
		CreatedAt:  at,
	}
}

func TestFindMatchSameDaySameTypeEqualPayload(t *testing.T) {
	loc, err := time.LoadLocation("America/Guatemala")
	if err != nil {
		t.Fatalf("loading location: %v", err)
	}
	project := uuid.New()
	morning := time.Date(2026, 3, 10, 8, 0, 0, 0, loc)

	existing := ledgerEvent(project, enums.EventExpenseLogged, expensePayload("120.75"), morning)
	repo := newFakeLedger(existing)
	detector := NewDetector(repo, loc, testLogger())

	candidate := ledgerEvent(project, enums.EventExpenseLogged, expensePayload("120.75"), morning.Add(3*time.Hour))
	matches, err := detector.FindMatches(context.Background(), candidate)
	if err != nil {
		t.Fatalf("find matches: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != existing.ID {
		t.Fatalf("expected match with existing event, got %+v", matches)
	}
}

func TestFindMatchesReturnsEarliestFirst(t *testing.T) {
	loc, _ := time.LoadLocation("America/Guatemala")
	project := uuid.New()
	morning := time.Date(2026, 3, 10, 8, 0, 0, 0, loc)

	later := ledgerEvent(project, enums.EventExpenseLogged, expensePayload("120.75"), morning.Add(2*time.Hour))
	earliest := ledgerEvent(project, enums.EventExpenseLogged, expensePayload("120.75"), morning)
	detector := NewDetector(newFakeLedger(later, earliest), loc, testLogger())

	candidate := ledgerEvent(project, enums.EventExpenseLogged, expensePayload("120.75"), morning.Add(3*time.Hour))
	matches, err := detector.FindMatches(context.Background(), candidate)
	if err != nil {
		t.Fatalf("find matches: %v", err)
	}
	if len(matches) != 2 || matches[0].ID != earliest.ID {
		t.Fatalf("expected earliest first, got %+v", matches)
	}
}

func TestFindMatchIgnoresOtherDaysTypesAndHidden(t *testing.T) {
	loc, _ := time.LoadLocation("America/Guatemala")
	project := uuid.New()
	morning := time.Date(2026, 3, 10, 8, 0, 0, 0, loc)

	previousDay := ledgerEvent(project, enums.EventExpenseLogged, expensePayload("120.75"), morning.Add(-24*time.Hour))
	otherType := ledgerEvent(project, enums.EventSubcontractorCost, json.RawMessage(`{"subcontractor_name":"x","amount":120.75,"payment_method":"cash"}`), morning)
	hidden := ledgerEvent(project, enums.EventExpenseLogged, expensePayload("120.75"), morning)
	hidden.Hidden = true
	differentAmount := ledgerEvent(project, enums.EventExpenseLogged, expensePayload("99"), morning)

	detector := NewDetector(newFakeLedger(previousDay, otherType, hidden, differentAmount), loc, testLogger())

	candidate := ledgerEvent(project, enums.EventExpenseLogged, expensePayload("120.75"), morning.Add(time.Hour))
	matches, err := detector.FindMatches(context.Background(), candidate)
	if err != nil {
		t.Fatalf("find matches: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no match, got %+v", matches)
	}
}

func TestFindMatchUsesLedgerDayNotUTCDay(t *testing.T) {
	loc, _ := time.LoadLocation("America/Guatemala")
	project := uuid.New()
	// 20:00 local on March 10 is 02:00 UTC March 11. Both captures are the
	// same local day even though their UTC dates differ.
	evening := time.Date(2026, 3, 10, 20, 0, 0, 0, loc)
	afternoon := time.Date(2026, 3, 10, 14, 0, 0, 0, loc)

	existing := ledgerEvent(project, enums.EventExpenseLogged, expensePayload("50"), afternoon)
	detector := NewDetector(newFakeLedger(existing), loc, testLogger())

	candidate := ledgerEvent(project, enums.EventExpenseLogged, expensePayload("50"), evening)
	matches, err := detector.FindMatches(context.Background(), candidate)
	if err != nil {
		t.Fatalf("find matches: %v", err)
	}
	if len(matches) != 1 {
		t.Fatal("expected same local-day capture to match")
	}
}

func TestSweepFlagsLaterMembersKeepsEarliest(t *testing.T) {
	loc, _ := time.LoadLocation("America/Guatemala")
	project := uuid.New()
	morning := time.Date(2026, 3, 10, 8, 0, 0, 0, loc)

	payload := json.RawMessage(`{"source":"purchase","vendor":"V","payment_method":"cash","items":[{"item_id":"cable-12","quantity":4}]}`)
	reordered := json.RawMessage(`{"source":"purchase","vendor":"V","payment_method":"cash","items":[{"item_id":"cable-12","quantity":4}]}`)

	earliest := ledgerEvent(project, enums.EventMaterialAdded, payload, morning)
	second := ledgerEvent(project, enums.EventMaterialAdded, reordered, morning.Add(time.Hour))
	third := ledgerEvent(project, enums.EventMaterialAdded, payload, morning.Add(2*time.Hour))
	unrelated := ledgerEvent(project, enums.EventExpenseLogged, expensePayload("10"), morning)

	repo := newFakeLedger(earliest, second, third, unrelated)
	detector := NewDetector(repo, loc, testLogger())

	changed, err := detector.Sweep(context.Background(), &project, morning)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if changed != 2 {
		t.Fatalf("expected 2 flag changes, got %d", changed)
	}
	if repo.flags[earliest.ID] {
		t.Fatal("earliest member must stay canonical")
	}
	if !repo.flags[second.ID] || !repo.flags[third.ID] {
		t.Fatal("later members must be flagged")
	}
	if _, flagged := repo.flags[unrelated.ID]; flagged {
		t.Fatal("non-colliding event was touched")
	}

	// Second pass converges with no further changes.
	changed, err = detector.Sweep(context.Background(), &project, morning)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if changed != 0 {
		t.Fatalf("sweep is not idempotent: %d changes on second pass", changed)
	}
}

func TestSweepReassignsFlagsRegardlessOfArrivalOrder(t *testing.T) {
	loc, _ := time.LoadLocation("America/Guatemala")
	project := uuid.New()
	noon := time.Date(2026, 3, 10, 12, 0, 0, 0, loc)

	// The earliest capture synced last and was mistakenly flagged while its
	// later twin was not. The sweep must invert that to canonical-first.
	earliest := ledgerEvent(project, enums.EventExpenseLogged, expensePayload("120.75"), noon)
	earliest.DuplicateFlag = true
	later := ledgerEvent(project, enums.EventExpenseLogged, expensePayload("120.75"), noon.Add(2*time.Hour))

	repo := newFakeLedger(earliest, later)
	detector := NewDetector(repo, loc, testLogger())

	changed, err := detector.Sweep(context.Background(), &project, noon)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if changed != 2 {
		t.Fatalf("expected both flags to change, got %d", changed)
	}
	if repo.flags[earliest.ID] {
		t.Fatal("earliest capture must end up canonical")
	}
	if !repo.flags[later.ID] {
		t.Fatal("later capture must end up flagged")
	}
}

func TestSweepUnflagsWhenCollisionDissolves(t *testing.T) {
	loc, _ := time.LoadLocation("America/Guatemala")
	project := uuid.New()
	morning := time.Date(2026, 3, 10, 8, 0, 0, 0, loc)

	// Previously flagged as a duplicate, but its twin has since been hidden
	// by an admin; the flag should clear on the next pass.
	solo := ledgerEvent(project, enums.EventExpenseLogged, expensePayload("75"), morning)
	solo.DuplicateFlag = true

	repo := newFakeLedger(solo)
	detector := NewDetector(repo, loc, testLogger())

	changed, err := detector.Sweep(context.Background(), &project, morning)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if changed != 1 {
		t.Fatalf("expected 1 change, got %d", changed)
	}
	if repo.flags[solo.ID] {
		t.Fatal("stale duplicate flag was not cleared")
	}
}

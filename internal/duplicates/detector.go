package duplicates

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rmonterroso/fieldledger-backend/pkg/db/models"
	"github.com/rmonterroso/fieldledger-backend/pkg/enums"
	"github.com/rmonterroso/fieldledger-backend/pkg/logger"
	"github.com/rmonterroso/fieldledger-backend/pkg/timeutil"
)

// LedgerReader lists candidate events for a project on one civil day.
type LedgerReader interface {
	ListByProjectDay(ctx context.Context, projectID *uuid.UUID, from, to time.Time) ([]models.Event, error)
}

// Flagger persists duplicate annotations. Flagging never rejects or deletes;
// the ledger stays append-only.
type Flagger interface {
	SetDuplicateFlag(ctx context.Context, id uuid.UUID, flagged bool) error
}

type Repository interface {
	LedgerReader
	Flagger
}

// Detector groups same-day, same-type events by match key and keeps the
// earliest of each group canonical.
type Detector struct {
	repo Repository
	loc  *time.Location
	logg *logger.Logger
}

func NewDetector(repo Repository, loc *time.Location, logg *logger.Logger) *Detector {
	return &Detector{repo: repo, loc: loc, logg: logg}
}

// FindMatches is the advisory pre-check run before accepting a new event: it
// returns the same-day, same-type events with an equal match key, earliest
// first. The window is the candidate's own civil day in the ledger timezone.
// Advisory means advisory: callers surface the matches, they do not block.
func (d *Detector) FindMatches(ctx context.Context, candidate models.Event) ([]models.Event, error) {
	key, err := MatchKey(candidate.EventType, candidate.Payload)
	if err != nil {
		return nil, err
	}

	from, to := timeutil.DayBounds(candidate.CreatedAt, d.loc)
	rows, err := d.repo.ListByProjectDay(ctx, candidate.ProjectID, from, to)
	if err != nil {
		return nil, err
	}

	var matches []models.Event
	for _, row := range rows {
		if row.Hidden || row.EventType != candidate.EventType || row.ID == candidate.ID {
			continue
		}
		rowKey, err := MatchKey(row.EventType, row.Payload)
		if err != nil {
			// One undecodable historic payload must not block new captures.
			d.logg.Warn(d.logg.WithField(ctx, "event_id", row.ID.String()), "skipping event with unreadable payload")
			continue
		}
		if rowKey == key {
			matches = append(matches, row)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return earlier(matches[i], matches[j]) })
	return matches, nil
}

// Sweep re-derives duplicate flags for every event of a project on the given
// day. The earliest member of each colliding group is canonical; everyone
// else gets flagged. Safe to run repeatedly: flags converge to the same
// state on every pass. Returns how many rows changed.
func (d *Detector) Sweep(ctx context.Context, projectID *uuid.UUID, day time.Time) (int, error) {
	from, to := timeutil.DayBounds(day, d.loc)
	rows, err := d.repo.ListByProjectDay(ctx, projectID, from, to)
	if err != nil {
		return 0, err
	}

	type groupID struct {
		eventType enums.EventType
		key       string
	}
	groups := make(map[groupID][]models.Event)
	for _, row := range rows {
		if row.Hidden {
			continue
		}
		key, err := MatchKey(row.EventType, row.Payload)
		if err != nil {
			d.logg.Warn(d.logg.WithField(ctx, "event_id", row.ID.String()), "skipping event with unreadable payload")
			continue
		}
		id := groupID{eventType: row.EventType, key: key}
		groups[id] = append(groups[id], row)
	}

	changed := 0
	for _, members := range groups {
		sort.Slice(members, func(i, j int) bool { return earlier(members[i], members[j]) })
		for i, member := range members {
			wantFlag := i > 0
			if member.DuplicateFlag == wantFlag {
				continue
			}
			if err := d.repo.SetDuplicateFlag(ctx, member.ID, wantFlag); err != nil {
				return changed, err
			}
			changed++
		}
	}
	return changed, nil
}

// earlier orders events by capture time, falling back to id so the canonical
// pick is stable when two captures share a timestamp.
func earlier(a, b models.Event) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}

package actors

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"jobtracker/aggregate"
	"jobtracker/apperr"
	"jobtracker/application"
)

// Statuses is the closed set of labels stress actors write; oracles flag anything else.
var Statuses = []string{"pending", "reviewing", "interview", "accepted", "rejected"}

// World is the seeded universe actors draw identifiers from, plus the record
// ids created so far.
type World struct {
	AuthorID   string
	PostingIDs []string
	UserIDs    []string

	mu      sync.Mutex
	created []string
}

func (w *World) remember(id string) {
	w.mu.Lock()
	w.created = append(w.created, id)
	w.mu.Unlock()
}

func (w *World) pickCreated() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.created) == 0 {
		return "", false
	}
	return w.created[rand.Intn(len(w.created))], true
}

// Created returns how many records actors have created.
func (w *World) Created() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.created)
}

// tolerated reports failures expected while chaos kills backends: store
// unavailability, alone or wrapped by the aggregation engine. Persistence
// errors such as constraint violations are bugs.
func tolerated(err error) bool {
	switch apperr.CodeOf(err) {
	case apperr.CodeInfrastructure, apperr.CodeAggregation:
		return apperr.Is(err, apperr.CodeInfrastructure) && !apperr.Is(err, apperr.CodeInvalidIdentifier)
	}
	return false
}

// Creator inserts applications for random (posting, candidate) pairs,
// including duplicates of pairs that already exist.
func Creator(ctx context.Context, svc *application.Service, w *World, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		info, _ := json.Marshal(map[string]any{"source": "stress", "n": rand.Intn(1000)})
		rec, err := svc.Create(ctx, application.CreateParams{
			PostingID:     w.PostingIDs[rand.Intn(len(w.PostingIDs))],
			CandidateID:   w.UserIDs[rand.Intn(len(w.UserIDs))],
			Status:        application.Status(Statuses[0]),
			CandidateInfo: info,
		})
		switch {
		case err == nil:
			w.remember(rec.ID)
		case ctx.Err() != nil:
			return ctx.Err()
		case !tolerated(err):
			return fmt.Errorf("creator: %w", err)
		}
		time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
	}
}

// Updater moves random existing records to a random status and replaces
// their candidate info.
func Updater(ctx context.Context, svc *application.Service, w *World, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		id, ok := w.pickCreated()
		if !ok {
			time.Sleep(20 * time.Millisecond)
			continue
		}
		status := Statuses[rand.Intn(len(Statuses))]
		info, _ := json.Marshal(map[string]any{"reviewedAt": time.Now().UTC().Format(time.RFC3339Nano)})
		res, err := svc.UpdateByID(ctx, id, application.UpdateParams{
			Status:        application.Status(status),
			CandidateInfo: info,
		})
		switch {
		case err == nil:
			if res.ID != id || string(res.Status) != status {
				return fmt.Errorf("updater: result %+v does not echo request for %s", res, id)
			}
		case ctx.Err() != nil:
			return ctx.Err()
		case !tolerated(err):
			return fmt.Errorf("updater: %w", err)
		}
		time.Sleep(time.Duration(15+rand.Intn(30)) * time.Millisecond)
	}
}

// Aggregator repeatedly builds the author view and checks its shape: every
// seeded posting appears once, in order, and every applicant resolves because
// actors only use seeded users.
func Aggregator(ctx context.Context, engine *aggregate.Engine, w *World, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		view, err := engine.ByAuthor(ctx, w.AuthorID)
		switch {
		case err == nil:
			if err := checkView(view, w); err != nil {
				return err
			}
		case ctx.Err() != nil:
			return ctx.Err()
		case !tolerated(err):
			return fmt.Errorf("aggregator: %w", err)
		}
		time.Sleep(time.Duration(30+rand.Intn(50)) * time.Millisecond)
	}
}

func checkView(view []aggregate.EnrichedPosting, w *World) error {
	if len(view) != len(w.PostingIDs) {
		return fmt.Errorf("aggregator: got %d postings, want %d", len(view), len(w.PostingIDs))
	}
	for i, p := range view {
		if p.ID != w.PostingIDs[i] {
			return fmt.Errorf("aggregator: posting %d is %s, want %s", i, p.ID, w.PostingIDs[i])
		}
		if p.AuthorID != w.AuthorID {
			return fmt.Errorf("aggregator: posting %s has author %s", p.ID, p.AuthorID)
		}
		for j, a := range p.Applicants {
			if a == nil {
				return fmt.Errorf("aggregator: posting %s applicant %d unresolved", p.ID, j)
			}
		}
	}
	return nil
}

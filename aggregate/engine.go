// Package aggregate builds the per-author view joining postings to their
// applicants. The store has no native join, so the engine issues a fixed
// number of batched reads and stitches the result together in memory.
package aggregate

import (
	"context"
	"time"

	"jobtracker/apperr"
	"jobtracker/application"
	"jobtracker/ident"
	"jobtracker/posting"
	"jobtracker/profile"
)

// EnrichedPosting is a posting with its applicant count and the resolved
// profile of every applicant, in application order. A nil entry stands for a
// candidate whose user record no longer exists.
type EnrichedPosting struct {
	posting.Posting
	ApplicantCount int                `json:"applicantCount"`
	Applicants     []*profile.Profile `json:"applicants"`
}

type PostingLister interface {
	ListByAuthor(ctx context.Context, authorID string) ([]posting.Posting, error)
}

type ApplicationReader interface {
	CountByPostings(ctx context.Context, postingIDs []string) (map[string]int, error)
	FindByPostings(ctx context.Context, postingIDs []string) ([]application.Record, error)
}

type ProfileReader interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]profile.Profile, error)
}

// Observer receives one call per completed aggregation.
type Observer interface {
	ObserveAggregation(elapsed time.Duration, postings, applicants int, err error)
}

type Engine struct {
	postings     PostingLister
	applications ApplicationReader
	profiles     ProfileReader
	observer     Observer
	now          func() time.Time
}

func NewEngine(postings PostingLister, applications ApplicationReader, profiles ProfileReader) *Engine {
	return &Engine{
		postings:     postings,
		applications: applications,
		profiles:     profiles,
		now:          time.Now,
	}
}

// WithObserver attaches a metrics sink.
func (e *Engine) WithObserver(o Observer) *Engine {
	e.observer = o
	return e
}

const opByAuthor = "aggregate: by author"

// ByAuthor returns every posting of authorID, each enriched with
// applicantCount and applicants. Any store failure aborts the whole call.
func (e *Engine) ByAuthor(ctx context.Context, authorID string) (out []EnrichedPosting, err error) {
	canonical, err := ident.Parse(authorID)
	if err != nil {
		return nil, apperr.New(apperr.CodeInvalidIdentifier, opByAuthor, err)
	}

	start := e.now()
	applicantTotal := 0
	defer func() {
		if e.observer != nil {
			e.observer.ObserveAggregation(e.now().Sub(start), len(out), applicantTotal, err)
		}
	}()

	postings, err := e.postings.ListByAuthor(ctx, canonical)
	if err != nil {
		return nil, apperr.New(apperr.CodeAggregation, opByAuthor, err)
	}
	if len(postings) == 0 {
		return []EnrichedPosting{}, nil
	}

	postingIDs := make([]string, len(postings))
	for i, p := range postings {
		postingIDs[i] = p.ID
	}

	counts, err := e.applications.CountByPostings(ctx, postingIDs)
	if err != nil {
		return nil, apperr.New(apperr.CodeAggregation, opByAuthor, err)
	}
	records, err := e.applications.FindByPostings(ctx, postingIDs)
	if err != nil {
		return nil, apperr.New(apperr.CodeAggregation, opByAuthor, err)
	}

	byPosting := make(map[string][]application.Record, len(postings))
	candidateIDs := make([]string, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		byPosting[rec.PostingID] = append(byPosting[rec.PostingID], rec)
		if _, ok := seen[rec.CandidateID]; !ok {
			seen[rec.CandidateID] = struct{}{}
			candidateIDs = append(candidateIDs, rec.CandidateID)
		}
	}

	profiles, err := e.profiles.GetByIDs(ctx, candidateIDs)
	if err != nil {
		return nil, apperr.New(apperr.CodeAggregation, opByAuthor, err)
	}

	result := make([]EnrichedPosting, 0, len(postings))
	for _, p := range postings {
		result = append(result, enrich(p, counts[p.ID], byPosting[p.ID], profiles))
		applicantTotal += len(byPosting[p.ID])
	}
	return result, nil
}

func enrich(p posting.Posting, count int, records []application.Record, profiles map[string]profile.Profile) EnrichedPosting {
	applicants := make([]*profile.Profile, 0, len(records))
	for _, rec := range records {
		resolved, ok := profiles[rec.CandidateID]
		if !ok {
			applicants = append(applicants, nil)
			continue
		}
		applicants = append(applicants, &resolved)
	}
	return EnrichedPosting{
		Posting:        p,
		ApplicantCount: count,
		Applicants:     applicants,
	}
}

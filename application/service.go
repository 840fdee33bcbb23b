package application

import (
	"context"

	"jobtracker/apperr"
	"jobtracker/ident"
)

// Service creates, updates and reads application-status records.
type Service struct {
	repo Repository
}

// NewService builds a Service on top of the given record store.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create validates both identifiers and inserts a new record.
func (s *Service) Create(ctx context.Context, params CreateParams) (Record, error) {
	postingID, candidateID, err := parsePair("application: create", params.PostingID, params.CandidateID)
	if err != nil {
		return Record{}, err
	}

	return s.repo.Insert(ctx, Record{
		PostingID:     postingID,
		CandidateID:   candidateID,
		Status:        params.Status,
		CandidateInfo: params.CandidateInfo,
	})
}

// UpdateByID sets status and candidate info on the record with the given id.
// A well-formed id that matches nothing still succeeds.
func (s *Service) UpdateByID(ctx context.Context, id string, params UpdateParams) (UpdateResult, error) {
	canonical, err := ident.Parse(id)
	if err != nil {
		return UpdateResult{}, apperr.New(apperr.CodeInvalidIdentifier, "application: update", err)
	}

	fields := UpdateFields{Status: params.Status, CandidateInfo: params.CandidateInfo}
	if err := s.repo.UpdateByID(ctx, canonical, fields); err != nil {
		return UpdateResult{}, err
	}

	return UpdateResult{
		ID:            id,
		Status:        params.Status,
		CandidateInfo: params.CandidateInfo,
	}, nil
}

// Find returns every record for the (posting, candidate) pair. An empty result
// is not an error.
func (s *Service) Find(ctx context.Context, postingID, candidateID string) ([]Record, error) {
	p, c, err := parsePair("application: find", postingID, candidateID)
	if err != nil {
		return nil, err
	}
	return s.repo.FindByPostingAndCandidate(ctx, p, c)
}

// GetByID returns a single record or a not-found error.
func (s *Service) GetByID(ctx context.Context, id string) (Record, error) {
	canonical, err := ident.Parse(id)
	if err != nil {
		return Record{}, apperr.New(apperr.CodeInvalidIdentifier, "application: get by id", err)
	}
	return s.repo.FindByID(ctx, canonical)
}

// ListByPosting returns a posting's records together with the stored count.
func (s *Service) ListByPosting(ctx context.Context, postingID string) (ListResult, error) {
	canonical, err := ident.Parse(postingID)
	if err != nil {
		return ListResult{}, apperr.New(apperr.CodeInvalidIdentifier, "application: list by posting", err)
	}

	total, err := s.repo.CountByPosting(ctx, canonical)
	if err != nil {
		return ListResult{}, err
	}
	items, err := s.repo.FindByPosting(ctx, canonical)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Items: items, Total: total}, nil
}

func parsePair(op, postingID, candidateID string) (string, string, error) {
	p, err := ident.Parse(postingID)
	if err != nil {
		return "", "", apperr.New(apperr.CodeInvalidIdentifier, op, err)
	}
	c, err := ident.Parse(candidateID)
	if err != nil {
		return "", "", apperr.New(apperr.CodeInvalidIdentifier, op, err)
	}
	return p, c, nil
}

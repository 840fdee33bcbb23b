package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobtracker/apperr"
	"jobtracker/ident"
)

const (
	postingP1   = "00000000000000000000000000000a01"
	candidateU1 = "00000000000000000000000000000b01"
)

func TestService_CreateThenFind(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateParams{
		PostingID:     postingP1,
		CandidateID:   candidateU1,
		Status:        "pending",
		CandidateInfo: json.RawMessage(`{"resume":"cv.pdf"}`),
	})
	require.NoError(t, err)
	require.True(t, ident.Valid(created.ID), "assigned id %q must be valid", created.ID)
	assert.Equal(t, Status("pending"), created.Status)

	found, err := svc.Find(ctx, postingP1, candidateU1)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, created.ID, found[0].ID)
	assert.Equal(t, Status("pending"), found[0].Status)
	assert.Equal(t, `{"resume":"cv.pdf"}`, string(found[0].CandidateInfo))
}

func TestService_CreateAllowsDuplicatePairs(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.Create(ctx, CreateParams{PostingID: postingP1, CandidateID: candidateU1, Status: "pending"})
		require.NoError(t, err)
	}

	found, err := svc.Find(ctx, postingP1, candidateU1)
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.NotEqual(t, found[0].ID, found[1].ID)
}

func TestService_CreateCanonicalizesIdentifiers(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	created, err := svc.Create(context.Background(), CreateParams{
		PostingID:   "00000000000000000000000000000A01",
		CandidateID: candidateU1,
		Status:      "pending",
	})
	require.NoError(t, err)
	assert.Equal(t, postingP1, created.PostingID)
}

func TestService_CreateNotAcknowledged(t *testing.T) {
	repo := newFakeRepository()
	repo.insertErr = apperr.New(apperr.CodePersistence, "application: insert", ErrNotAcknowledged)
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), CreateParams{PostingID: postingP1, CandidateID: candidateU1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotAcknowledged)
	assert.Equal(t, apperr.CodePersistence, apperr.CodeOf(err))
}

func TestService_UpdateChangesOnlyStatusAndInfo(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateParams{PostingID: postingP1, CandidateID: candidateU1, Status: "pending"})
	require.NoError(t, err)

	info := json.RawMessage(`{"note":"strong"}`)
	res, err := svc.UpdateByID(ctx, created.ID, UpdateParams{Status: "accepted", CandidateInfo: info})
	require.NoError(t, err)
	assert.Equal(t, UpdateResult{ID: created.ID, Status: "accepted", CandidateInfo: info}, res)

	got, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, Status("accepted"), got.Status)
	assert.Equal(t, `{"note":"strong"}`, string(got.CandidateInfo))
	assert.Equal(t, postingP1, got.PostingID)
	assert.Equal(t, candidateU1, got.CandidateID)
}

func TestService_UpdateMissingRecordSucceeds(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	missing := ident.New()

	res, err := svc.UpdateByID(context.Background(), missing, UpdateParams{Status: "accepted"})
	require.NoError(t, err)
	assert.Equal(t, missing, res.ID)
	assert.Equal(t, 1, repo.calls("UpdateByID"))
}

func TestService_GetByIDNotFound(t *testing.T) {
	svc := NewService(newFakeRepository())

	_, err := svc.GetByID(context.Background(), ident.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestService_FindEmptyIsSuccess(t *testing.T) {
	svc := NewService(newFakeRepository())

	found, err := svc.Find(context.Background(), postingP1, candidateU1)
	require.NoError(t, err)
	assert.NotNil(t, found)
	assert.Empty(t, found)
}

func TestService_ListByPosting(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, CreateParams{PostingID: postingP1, CandidateID: ident.New(), Status: "pending"})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, CreateParams{PostingID: ident.New(), CandidateID: candidateU1, Status: "pending"})
	require.NoError(t, err)

	res, err := svc.ListByPosting(ctx, postingP1)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Len(t, res.Items, 3)
}

func TestService_StoreFailurePropagates(t *testing.T) {
	repo := newFakeRepository()
	repo.findErr = apperr.FromStore("application: find by posting and candidate", context.DeadlineExceeded)
	svc := NewService(repo)

	_, err := svc.Find(context.Background(), postingP1, candidateU1)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInfrastructure, apperr.CodeOf(err))
}

func TestService_MalformedIdentifiersSkipStore(t *testing.T) {
	malformed := []string{"", "P1", "U1", "zz000000000000000000000000000000", "000000000000000000000000000000000"}

	for _, bad := range malformed {
		t.Run(fmt.Sprintf("%q", bad), func(t *testing.T) {
			repo := newFakeRepository()
			svc := NewService(repo)
			ctx := context.Background()

			_, err := svc.Create(ctx, CreateParams{PostingID: bad, CandidateID: candidateU1})
			assertInvalid(t, err)
			_, err = svc.Create(ctx, CreateParams{PostingID: postingP1, CandidateID: bad})
			assertInvalid(t, err)
			_, err = svc.UpdateByID(ctx, bad, UpdateParams{Status: "accepted"})
			assertInvalid(t, err)
			_, err = svc.Find(ctx, bad, candidateU1)
			assertInvalid(t, err)
			_, err = svc.Find(ctx, postingP1, bad)
			assertInvalid(t, err)
			_, err = svc.GetByID(ctx, bad)
			assertInvalid(t, err)
			_, err = svc.ListByPosting(ctx, bad)
			assertInvalid(t, err)

			assert.Zero(t, repo.totalCalls(), "store must not be touched for malformed ids")
		})
	}
}

func assertInvalid(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidIdentifier, apperr.CodeOf(err))
	assert.True(t, errors.Is(err, ident.ErrMalformed))
}

type fakeRepository struct {
	mu        sync.Mutex
	records   []Record
	counts    map[string]int
	insertErr error
	findErr   error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{counts: make(map[string]int)}
}

func (f *fakeRepository) track(op string) {
	f.counts[op]++
}

func (f *fakeRepository) calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[op]
}

func (f *fakeRepository) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.counts {
		total += n
	}
	return total
}

func (f *fakeRepository) FindByPostingAndCandidate(_ context.Context, postingID, candidateID string) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.track("FindByPostingAndCandidate")
	if f.findErr != nil {
		return nil, f.findErr
	}
	out := []Record{}
	for _, rec := range f.records {
		if rec.PostingID == postingID && rec.CandidateID == candidateID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeRepository) FindByPosting(_ context.Context, postingID string) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.track("FindByPosting")
	out := []Record{}
	for _, rec := range f.records {
		if rec.PostingID == postingID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeRepository) CountByPosting(_ context.Context, postingID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.track("CountByPosting")
	n := 0
	for _, rec := range f.records {
		if rec.PostingID == postingID {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepository) FindByID(_ context.Context, id string) (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.track("FindByID")
	for _, rec := range f.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return Record{}, apperr.New(apperr.CodeNotFound, "application: find by id", ErrNotFound)
}

func (f *fakeRepository) Insert(_ context.Context, rec Record) (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.track("Insert")
	if f.insertErr != nil {
		return Record{}, f.insertErr
	}
	now := time.Now().UTC()
	rec.ID = ident.New()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	f.records = append(f.records, rec)
	return rec, nil
}

func (f *fakeRepository) UpdateByID(_ context.Context, id string, fields UpdateFields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.track("UpdateByID")
	for i := range f.records {
		if f.records[i].ID == id {
			f.records[i].Status = fields.Status
			f.records[i].CandidateInfo = fields.CandidateInfo
			f.records[i].UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

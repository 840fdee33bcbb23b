package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobtracker/apperr"
	"jobtracker/application"
	"jobtracker/posting"
	"jobtracker/profile"
)

const (
	authorA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaa01"
	postP1  = "0000000000000000000000000000cc01"
	postP2  = "0000000000000000000000000000cc02"
	userU1  = "0000000000000000000000000000bb01"
	userU2  = "0000000000000000000000000000bb02"
	userU3  = "0000000000000000000000000000bb03"
)

func TestEngine_ByAuthorCountsAndOrder(t *testing.T) {
	postings := &fakePostings{items: []posting.Posting{
		{ID: postP1, AuthorID: authorA, Title: "Backend engineer"},
		{ID: postP2, AuthorID: authorA, Title: "Data engineer"},
	}}
	apps := &fakeApplications{records: []application.Record{
		{ID: "r1", PostingID: postP1, CandidateID: userU1, Status: "pending"},
		{ID: "r2", PostingID: postP1, CandidateID: userU2, Status: "pending"},
		{ID: "r3", PostingID: postP1, CandidateID: userU3, Status: "accepted"},
	}}
	profiles := &fakeProfiles{items: map[string]profile.Profile{
		userU1: {ID: userU1, FullName: "Ada"},
		userU2: {ID: userU2, FullName: "Grace"},
		userU3: {ID: userU3, FullName: "Linus"},
	}}

	engine := NewEngine(postings, apps, profiles)
	got, err := engine.ByAuthor(context.Background(), authorA)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, postP1, got[0].ID)
	assert.Equal(t, 3, got[0].ApplicantCount)
	require.Len(t, got[0].Applicants, 3)
	assert.Equal(t, "Ada", got[0].Applicants[0].FullName)
	assert.Equal(t, "Grace", got[0].Applicants[1].FullName)
	assert.Equal(t, "Linus", got[0].Applicants[2].FullName)

	assert.Equal(t, postP2, got[1].ID)
	assert.Equal(t, 0, got[1].ApplicantCount)
	assert.NotNil(t, got[1].Applicants)
	assert.Len(t, got[1].Applicants, 0)

	assert.Equal(t, 1, postings.calls)
	assert.Equal(t, 1, apps.countCalls)
	assert.Equal(t, 1, apps.findCalls)
	assert.Equal(t, 1, profiles.calls)
	assert.ElementsMatch(t, []string{userU1, userU2, userU3}, profiles.lastIDs)
}

func TestEngine_MissingCandidateYieldsPlaceholder(t *testing.T) {
	postings := &fakePostings{items: []posting.Posting{{ID: postP1, AuthorID: authorA}}}
	apps := &fakeApplications{records: []application.Record{
		{ID: "r1", PostingID: postP1, CandidateID: userU1},
		{ID: "r2", PostingID: postP1, CandidateID: userU2},
	}}
	profiles := &fakeProfiles{items: map[string]profile.Profile{userU2: {ID: userU2, FullName: "Grace"}}}

	got, err := NewEngine(postings, apps, profiles).ByAuthor(context.Background(), authorA)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Len(t, got[0].Applicants, 2)
	assert.Nil(t, got[0].Applicants[0])
	assert.Equal(t, "Grace", got[0].Applicants[1].FullName)
	assert.Equal(t, 2, got[0].ApplicantCount)

	payload, err := json.Marshal(got[0])
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	applicants := decoded["applicants"].([]any)
	assert.Nil(t, applicants[0])
	assert.EqualValues(t, 2, decoded["applicantCount"])
	assert.Equal(t, postP1, decoded["id"])
}

func TestEngine_RepeatedCandidateResolvedOnce(t *testing.T) {
	postings := &fakePostings{items: []posting.Posting{{ID: postP1}, {ID: postP2}}}
	apps := &fakeApplications{records: []application.Record{
		{ID: "r1", PostingID: postP1, CandidateID: userU1},
		{ID: "r2", PostingID: postP2, CandidateID: userU1},
		{ID: "r3", PostingID: postP2, CandidateID: userU1},
	}}
	profiles := &fakeProfiles{items: map[string]profile.Profile{userU1: {ID: userU1}}}

	got, err := NewEngine(postings, apps, profiles).ByAuthor(context.Background(), authorA)
	require.NoError(t, err)
	assert.Equal(t, []string{userU1}, profiles.lastIDs)
	assert.Len(t, got[0].Applicants, 1)
	assert.Len(t, got[1].Applicants, 2)
}

func TestEngine_NoPostings(t *testing.T) {
	apps := &fakeApplications{}
	profiles := &fakeProfiles{}

	got, err := NewEngine(&fakePostings{}, apps, profiles).ByAuthor(context.Background(), authorA)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Zero(t, apps.countCalls+apps.findCalls+profiles.calls)
}

func TestEngine_InvalidAuthorSkipsStore(t *testing.T) {
	postings := &fakePostings{}
	apps := &fakeApplications{}
	profiles := &fakeProfiles{}

	for _, bad := range []string{"", "author", authorA + "0"} {
		_, err := NewEngine(postings, apps, profiles).ByAuthor(context.Background(), bad)
		require.Error(t, err)
		assert.Equal(t, apperr.CodeInvalidIdentifier, apperr.CodeOf(err))
	}
	assert.Zero(t, postings.calls+apps.countCalls+apps.findCalls+profiles.calls)
}

func TestEngine_StoreErrorsAbort(t *testing.T) {
	storeDown := apperr.FromStore("store", context.DeadlineExceeded)

	cases := []struct {
		name     string
		postings *fakePostings
		apps     *fakeApplications
		profiles *fakeProfiles
	}{
		{"postings", &fakePostings{err: storeDown}, &fakeApplications{}, &fakeProfiles{}},
		{"counts", &fakePostings{items: []posting.Posting{{ID: postP1}}}, &fakeApplications{countErr: storeDown}, &fakeProfiles{}},
		{"records", &fakePostings{items: []posting.Posting{{ID: postP1}}}, &fakeApplications{findErr: storeDown}, &fakeProfiles{}},
		{"profiles", &fakePostings{items: []posting.Posting{{ID: postP1}}}, &fakeApplications{records: []application.Record{{PostingID: postP1, CandidateID: userU1}}}, &fakeProfiles{err: storeDown}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NewEngine(tc.postings, tc.apps, tc.profiles).ByAuthor(context.Background(), authorA)
			require.Error(t, err)
			assert.Nil(t, got, "partial results must not be returned")
			assert.Equal(t, apperr.CodeAggregation, apperr.CodeOf(err))
			assert.True(t, apperr.Is(err, apperr.CodeInfrastructure))
			assert.True(t, errors.Is(err, context.DeadlineExceeded))
		})
	}
}

func TestEngine_ReportsToObserver(t *testing.T) {
	postings := &fakePostings{items: []posting.Posting{{ID: postP1}, {ID: postP2}}}
	apps := &fakeApplications{records: []application.Record{
		{PostingID: postP1, CandidateID: userU1},
		{PostingID: postP2, CandidateID: userU2},
	}}
	obs := &recordingObserver{}

	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	engine := NewEngine(postings, apps, &fakeProfiles{}).WithObserver(obs)
	engine.now = func() time.Time {
		clock = clock.Add(10 * time.Millisecond)
		return clock
	}

	_, err := engine.ByAuthor(context.Background(), authorA)
	require.NoError(t, err)
	require.Equal(t, 1, obs.calls)
	assert.Equal(t, 2, obs.postings)
	assert.Equal(t, 2, obs.applicants)
	assert.Equal(t, 10*time.Millisecond, obs.elapsed)
	assert.NoError(t, obs.err)
}

type fakePostings struct {
	items []posting.Posting
	err   error
	calls int
}

func (f *fakePostings) ListByAuthor(_ context.Context, _ string) ([]posting.Posting, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

type fakeApplications struct {
	records    []application.Record
	countErr   error
	findErr    error
	countCalls int
	findCalls  int
}

func (f *fakeApplications) CountByPostings(_ context.Context, ids []string) (map[string]int, error) {
	f.countCalls++
	if f.countErr != nil {
		return nil, f.countErr
	}
	counts := make(map[string]int, len(ids))
	for _, id := range ids {
		counts[id] = 0
	}
	for _, rec := range f.records {
		if _, ok := counts[rec.PostingID]; ok {
			counts[rec.PostingID]++
		}
	}
	return counts, nil
}

func (f *fakeApplications) FindByPostings(_ context.Context, ids []string) ([]application.Record, error) {
	f.findCalls++
	if f.findErr != nil {
		return nil, f.findErr
	}
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	out := []application.Record{}
	for _, rec := range f.records {
		if _, ok := wanted[rec.PostingID]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

type fakeProfiles struct {
	items   map[string]profile.Profile
	err     error
	calls   int
	lastIDs []string
}

func (f *fakeProfiles) GetByIDs(_ context.Context, ids []string) (map[string]profile.Profile, error) {
	f.calls++
	f.lastIDs = append([]string(nil), ids...)
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]profile.Profile, len(ids))
	for _, id := range ids {
		if p, ok := f.items[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type recordingObserver struct {
	calls      int
	elapsed    time.Duration
	postings   int
	applicants int
	err        error
}

func (r *recordingObserver) ObserveAggregation(elapsed time.Duration, postings, applicants int, err error) {
	r.calls++
	r.elapsed = elapsed
	r.postings = postings
	r.applicants = applicants
	r.err = err
}

package lifecycle

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Ritabrata777/CivicLens/geo"
	"github.com/Ritabrata777/CivicLens/models"
	"github.com/Ritabrata777/CivicLens/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	citizen = models.CallerIdentity{ID: "user-1", Role: models.RoleUser}
	admin   = models.CallerIdentity{ID: "admin-1", Role: models.RoleAdmin}
)

type stubGeocoder struct {
	coords *geo.Coordinates
	err    error
	calls  int
}

func (g *stubGeocoder) Resolve(ctx context.Context, address string) (*geo.Coordinates, error) {
	g.calls++
	return g.coords, g.err
}

func newTestEngine(t *testing.T, geocoder geo.Geocoder, finder DuplicateFinder) (*Engine, store.Store) {
	t.Helper()
	s, err := store.NewBoltStore(filepath.Join(t.TempDir(), "civiclens.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(context.Background()) })
	return NewEngine(s, geocoder, finder), s
}

func createIssue(t *testing.T, e *Engine) *models.Issue {
	t.Helper()
	res, err := e.Create(context.Background(), CreateInput{
		Title:       "Overflowing garbage bins",
		Description: "Bins at the corner of 5th and Main have not been emptied for a week.",
		Category:    models.GarbageDumping,
		Address:     "5th and Main",
	}, citizen)
	require.NoError(t, err)
	return res.Issue
}

func TestCreateStartsPendingWithFirstEvent(t *testing.T) {
	e, s := newTestEngine(t, nil, nil)
	ctx := context.Background()

	issue := createIssue(t, e)
	assert.Equal(t, models.Pending, issue.Status)
	assert.Equal(t, citizen.ID, issue.SubmittedBy)
	assert.Regexp(t, `^ISSUE-[0-9A-F]{8}$`, issue.ID)

	events, err := s.EventsForIssue(ctx, issue.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.Pending, events[0].Status)
	assert.Equal(t, "Issue submitted.", events[0].Notes)
}

func TestCreateResolvesOtherCategory(t *testing.T) {
	e, _ := newTestEngine(t, nil, nil)

	res, err := e.Create(context.Background(), CreateInput{
		Title:         "Stray dogs near the school",
		Description:   "A pack of stray dogs has been gathering near the school gate.",
		Category:      models.Other,
		OtherCategory: "Animal Control",
	}, citizen)
	require.NoError(t, err)
	assert.Equal(t, models.IssueCategory("Animal Control"), res.Issue.Category)
}

func TestCreateGeocodesWhenCoordinatesMissing(t *testing.T) {
	g := &stubGeocoder{coords: &geo.Coordinates{Lat: 22.57, Lng: 88.36}}
	e, _ := newTestEngine(t, g, nil)

	issue := createIssue(t, e)
	require.NotNil(t, issue.Latitude)
	require.NotNil(t, issue.Longitude)
	assert.Equal(t, 22.57, *issue.Latitude)
	assert.Equal(t, 88.36, *issue.Longitude)
	assert.Equal(t, 1, g.calls)
}

func TestCreateSkipsGeocodingWhenCoordinatesProvided(t *testing.T) {
	g := &stubGeocoder{coords: &geo.Coordinates{Lat: 1, Lng: 1}}
	e, _ := newTestEngine(t, g, nil)

	lat, lng := 10.0, 20.0
	res, err := e.Create(context.Background(), CreateInput{
		Title:       "Pothole on the bypass",
		Description: "Large pothole on the bypass causing traffic to swerve dangerously.",
		Category:    models.Pothole,
		Address:     "Bypass Road",
		Latitude:    &lat,
		Longitude:   &lng,
	}, citizen)
	require.NoError(t, err)
	assert.Equal(t, 10.0, *res.Issue.Latitude)
	assert.Equal(t, 0, g.calls)
}

func TestCreateSurvivesGeocoderFailure(t *testing.T) {
	g := &stubGeocoder{err: errors.New("upstream down")}
	e, _ := newTestEngine(t, g, nil)

	issue := createIssue(t, e)
	assert.Nil(t, issue.Latitude)
	assert.Nil(t, issue.Longitude)
}

func TestCreateNotesDuplicates(t *testing.T) {
	finder := func(ctx context.Context, issueID string) (int, error) { return 2, nil }
	e, _ := newTestEngine(t, nil, finder)

	res, err := e.Create(context.Background(), CreateInput{
		Title:       "Drainage blocked after rains",
		Description: "Water is standing on the street because the drain is completely blocked.",
		Category:    models.DrainageIssue,
	}, citizen)
	require.NoError(t, err)
	assert.Contains(t, res.Note, "2 existing report(s)")
}

func TestCreateSurvivesDuplicateFinderFailure(t *testing.T) {
	finder := func(ctx context.Context, issueID string) (int, error) { return 0, errors.New("script crashed") }
	e, s := newTestEngine(t, nil, finder)

	res, err := e.Create(context.Background(), CreateInput{
		Title:       "Streetlight flickering all night",
		Description: "The lamp outside house 42 flickers constantly and keeps residents awake.",
		Category:    models.StreetlightFailure,
	}, citizen)
	require.NoError(t, err)
	assert.Empty(t, res.Note)

	// the issue committed before enrichment ran
	_, err = s.GetIssue(context.Background(), res.Issue.ID)
	assert.NoError(t, err)
}

func TestTransitionRequiresAdmin(t *testing.T) {
	e, _ := newTestEngine(t, nil, nil)
	issue := createIssue(t, e)

	_, err := e.Transition(context.Background(), issue.ID, TransitionInput{Target: models.Seen}, citizen)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from models.IssueStatus
		to   models.IssueStatus
		ok   bool
	}{
		{models.Pending, models.Seen, true},
		{models.Pending, models.Rejected, true},
		{models.Pending, models.Accepted, false},
		{models.Pending, models.Resolved, false},
		{models.Seen, models.Accepted, true},
		{models.Seen, models.Rejected, true},
		{models.Seen, models.Pending, false},
		{models.Accepted, models.InProgress, true},
		{models.Accepted, models.Rejected, false},
		{models.InProgress, models.Resolved, true},
		{models.InProgress, models.Seen, false},
		{models.Resolved, models.InProgress, false},
		{models.Rejected, models.Seen, false},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.ok, canTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
	for _, status := range []models.IssueStatus{
		models.Pending, models.Seen, models.Accepted, models.InProgress, models.Resolved, models.Rejected,
	} {
		assert.Truef(t, canTransition(status, status), "%s -> itself", status)
	}
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	e, _ := newTestEngine(t, nil, nil)
	issue := createIssue(t, e)

	_, err := e.Transition(context.Background(), issue.ID, TransitionInput{Target: "Escalated"}, admin)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionMissingIssue(t *testing.T) {
	e, _ := newTestEngine(t, nil, nil)

	_, err := e.Transition(context.Background(), "ISSUE-MISSING", TransitionInput{Target: models.Seen}, admin)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRejectRequiresReason(t *testing.T) {
	e, _ := newTestEngine(t, nil, nil)
	ctx := context.Background()
	issue := createIssue(t, e)

	_, err := e.Transition(ctx, issue.ID, TransitionInput{Target: models.Rejected, Notes: "   "}, admin)
	assert.ErrorIs(t, err, ErrMissingReason)

	res, err := e.Transition(ctx, issue.ID, TransitionInput{Target: models.Rejected, Notes: "Duplicate of an existing report."}, admin)
	require.NoError(t, err)
	assert.Equal(t, models.Rejected, res.Issue.Status)
}

func TestResolveRequiresEvidence(t *testing.T) {
	e, s := newTestEngine(t, nil, nil)
	ctx := context.Background()
	issue := createIssue(t, e)

	for _, status := range []models.IssueStatus{models.Seen, models.Accepted, models.InProgress} {
		_, err := e.Transition(ctx, issue.ID, TransitionInput{Target: status}, admin)
		require.NoError(t, err)
	}

	_, err := e.Transition(ctx, issue.ID, TransitionInput{Target: models.Resolved}, admin)
	assert.ErrorIs(t, err, ErrMissingEvidence)

	res, err := e.Transition(ctx, issue.ID, TransitionInput{
		Target:        models.Resolved,
		EvidenceImage: "https://example.com/fixed.jpg",
	}, admin)
	require.NoError(t, err)
	assert.Equal(t, models.Resolved, res.Issue.Status)
	assert.Empty(t, res.Warnings)

	has, err := s.HasResolutionEvidence(ctx, issue.ID)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestResolveAcceptsPriorEvidence(t *testing.T) {
	e, s := newTestEngine(t, nil, nil)
	ctx := context.Background()
	issue := createIssue(t, e)

	for _, status := range []models.IssueStatus{models.Seen, models.Accepted, models.InProgress} {
		_, err := e.Transition(ctx, issue.ID, TransitionInput{Target: status}, admin)
		require.NoError(t, err)
	}
	require.NoError(t, s.InsertResolutionEvidence(ctx, models.ResolutionEvidence{
		IssueID:       issue.ID,
		AdminID:       admin.ID,
		ProofImageURL: "https://example.com/earlier.jpg",
	}))

	res, err := e.Transition(ctx, issue.ID, TransitionInput{Target: models.Resolved}, admin)
	require.NoError(t, err)
	assert.Equal(t, models.Resolved, res.Issue.Status)
}

func TestRepeatedTransitionAppendsEvent(t *testing.T) {
	e, s := newTestEngine(t, nil, nil)
	ctx := context.Background()
	issue := createIssue(t, e)

	_, err := e.Transition(ctx, issue.ID, TransitionInput{Target: models.Seen}, admin)
	require.NoError(t, err)
	_, err = e.Transition(ctx, issue.ID, TransitionInput{Target: models.Seen}, admin)
	require.NoError(t, err)

	got, err := s.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Seen, got.Status)

	events, err := s.EventsForIssue(ctx, issue.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, got.Status, events[len(events)-1].Status)
}

func TestTransitionRecordsBlockchainReceipt(t *testing.T) {
	e, s := newTestEngine(t, nil, nil)
	ctx := context.Background()
	issue := createIssue(t, e)

	res, err := e.Transition(ctx, issue.ID, TransitionInput{Target: models.Seen, TxHash: "0xdeadbeef"}, admin)
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)

	records, err := s.BlockchainRecordsForIssue(ctx, issue.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "0xdeadbeef", records[0].TxHash)
	assert.Equal(t, models.Seen, records[0].Status)
	assert.Equal(t, "https://sepolia.etherscan.io/tx/0xdeadbeef", records[0].ExplorerURL)
}

func TestBlockchainFailureWarnsButCommits(t *testing.T) {
	e, s := newTestEngine(t, nil, nil)
	ctx := context.Background()
	issue := createIssue(t, e)

	// pre-insert a record for (issue, Seen) so the engine's insert collides
	require.NoError(t, s.InsertBlockchainRecord(ctx, models.BlockchainRecord{
		IssueID: issue.ID, TxHash: "0xfirst", AdminID: admin.ID, Status: models.Seen,
	}))

	res, err := e.Transition(ctx, issue.ID, TransitionInput{Target: models.Seen, TxHash: "0xsecond"}, admin)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "blockchain record not stored")

	got, err := s.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Seen, got.Status)
}

func TestUpvoteIsIdempotent(t *testing.T) {
	e, s := newTestEngine(t, nil, nil)
	ctx := context.Background()
	issue := createIssue(t, e)

	require.NoError(t, e.Upvote(ctx, issue.ID, "user-2"))
	assert.ErrorIs(t, e.Upvote(ctx, issue.ID, "user-2"), store.ErrAlreadyUpvoted)
	require.NoError(t, e.Upvote(ctx, issue.ID, "user-3"))

	got, err := s.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Upvotes)
}

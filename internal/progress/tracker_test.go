package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/codetrail/learngate/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCourseAPI struct {
	mu      sync.Mutex
	records map[string][]*domain.ProgressModel
	nextID  int

	listErr      error
	createErr    error
	mutateErr    error
	ackOnlyReply bool

	listCalls   int
	createCalls int
	mutateCalls int
}

func (f *fakeCourseAPI) ListProgress(ctx context.Context, credential string) ([]*domain.ProgressModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]*domain.ProgressModel{}, f.records[credential]...), nil
}

func (f *fakeCourseAPI) CreateProgress(ctx context.Context, credential string, courseID int) (*domain.ProgressModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	record := &domain.ProgressModel{
		ID:     f.nextID,
		Course: &domain.CourseModel{ID: courseID},
	}
	if f.records == nil {
		f.records = make(map[string][]*domain.ProgressModel)
	}
	f.records[credential] = append(f.records[credential], record)
	return record, nil
}

func (f *fakeCourseAPI) CompleteLesson(ctx context.Context, credential string, progressID, lessonID int) (*domain.ProgressModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutateCalls++
	if f.mutateErr != nil {
		return nil, f.mutateErr
	}
	for _, record := range f.records[credential] {
		if record.ID == progressID {
			if !record.HasLesson(lessonID) {
				record.CompletedLessons = append(record.CompletedLessons, &domain.LessonModel{ID: lessonID})
			}
			if f.ackOnlyReply {
				return &domain.ProgressModel{}, nil
			}
			return record, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCourseAPI) CompleteAssignment(ctx context.Context, credential string, progressID, assignmentID int) (*domain.ProgressModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutateCalls++
	if f.mutateErr != nil {
		return nil, f.mutateErr
	}
	for _, record := range f.records[credential] {
		if record.ID == progressID {
			if !record.HasAssignment(assignmentID) {
				record.CompletedAssignments = append(record.CompletedAssignments, &domain.AssignmentModel{ID: assignmentID})
			}
			if f.ackOnlyReply {
				return &domain.ProgressModel{}, nil
			}
			return record, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCourseAPI) calls() (list, create, mutate int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls, f.createCalls, f.mutateCalls
}

type fakeInvalidator struct {
	mu        sync.Mutex
	discarded []string
}

func (f *fakeInvalidator) Discard(ctx context.Context, sid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discarded = append(f.discarded, sid)
	return nil
}

func newTestTracker(api *fakeCourseAPI) (*Tracker, *fakeInvalidator) {
	invalidator := &fakeInvalidator{}
	return NewTracker(api, invalidator, time.Hour, zap.NewNop()), invalidator
}

func testSession() *domain.SessionModel {
	return &domain.SessionModel{ID: "sid-1", Credential: "token-1"}
}

func TestEnsure_CreatesRecordWhenAbsent(t *testing.T) {
	api := &fakeCourseAPI{}
	tracker, _ := newTestTracker(api)

	record, err := tracker.Ensure(context.Background(), testSession(), 7)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, 7, record.CourseID())
	assert.NotZero(t, record.ID)

	_, create, _ := api.calls()
	assert.Equal(t, 1, create)
}

func TestEnsure_ReusesExistingRecord(t *testing.T) {
	api := &fakeCourseAPI{
		nextID: 41,
		records: map[string][]*domain.ProgressModel{
			"token-1": {{ID: 41, Course: &domain.CourseModel{ID: 7}}},
		},
	}
	tracker, _ := newTestTracker(api)

	record, err := tracker.Ensure(context.Background(), testSession(), 7)
	require.NoError(t, err)
	assert.Equal(t, 41, record.ID)

	_, create, _ := api.calls()
	assert.Equal(t, 0, create)
}

func TestEnsure_SecondCallSkipsNetwork(t *testing.T) {
	api := &fakeCourseAPI{}
	tracker, _ := newTestTracker(api)
	sess := testSession()

	first, err := tracker.Ensure(context.Background(), sess, 7)
	require.NoError(t, err)
	listBefore, createBefore, _ := api.calls()

	second, err := tracker.Ensure(context.Background(), sess, 7)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	listAfter, createAfter, _ := api.calls()
	assert.Equal(t, listBefore, listAfter)
	assert.Equal(t, createBefore, createAfter)
}

func TestEnsure_ConcurrentCallersCreateOnce(t *testing.T) {
	api := &fakeCourseAPI{}
	tracker, _ := newTestTracker(api)
	sess := testSession()

	var wg sync.WaitGroup
	ids := make([]int, 32)
	for i := 0; i < len(ids); i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			record, err := tracker.Ensure(context.Background(), sess, 7)
			if err != nil {
				t.Error(err)
				return
			}
			ids[n] = record.ID
		}(i)
	}
	wg.Wait()

	_, create, _ := api.calls()
	assert.Equal(t, 1, create, "racing callers must coalesce on a single create")
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestResolve_NoRecordIsNotAnError(t *testing.T) {
	api := &fakeCourseAPI{
		records: map[string][]*domain.ProgressModel{
			"token-1": {{ID: 3, Course: &domain.CourseModel{ID: 1}}},
		},
	}
	tracker, _ := newTestTracker(api)

	record, err := tracker.Resolve(context.Background(), testSession(), 99)
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestResolve_DedupesCompletionSets(t *testing.T) {
	api := &fakeCourseAPI{
		records: map[string][]*domain.ProgressModel{
			"token-1": {{
				ID:     3,
				Course: &domain.CourseModel{ID: 1},
				CompletedLessons: []*domain.LessonModel{
					{ID: 10}, {ID: 11}, {ID: 10},
				},
				CompletedAssignments: []*domain.AssignmentModel{
					{ID: 20}, {ID: 20},
				},
			}},
		},
	}
	tracker, _ := newTestTracker(api)

	record, err := tracker.Resolve(context.Background(), testSession(), 1)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Len(t, record.CompletedLessons, 2)
	assert.Len(t, record.CompletedAssignments, 1)
}

func TestCompleteLesson_IsIdempotent(t *testing.T) {
	api := &fakeCourseAPI{}
	tracker, _ := newTestTracker(api)
	sess := testSession()

	first, err := tracker.CompleteLesson(context.Background(), sess, 7, 10)
	require.NoError(t, err)
	assert.True(t, first.HasLesson(10))

	second, err := tracker.CompleteLesson(context.Background(), sess, 7, 10)
	require.NoError(t, err)
	assert.True(t, second.HasLesson(10))
	assert.Len(t, second.CompletedLessons, 1)

	_, create, _ := api.calls()
	assert.Equal(t, 1, create)
}

func TestCompleteAssignment_SetsAreIndependent(t *testing.T) {
	api := &fakeCourseAPI{}
	tracker, _ := newTestTracker(api)
	sess := testSession()

	record, err := tracker.CompleteAssignment(context.Background(), sess, 7, 20)
	require.NoError(t, err)
	assert.True(t, record.HasAssignment(20))
	assert.False(t, record.HasLesson(20))
	assert.Empty(t, record.CompletedLessons)
}

func TestCompleteLesson_RetryAfterMutationFailureSkipsCreate(t *testing.T) {
	api := &fakeCourseAPI{}
	tracker, _ := newTestTracker(api)
	sess := testSession()

	api.mutateErr = domain.NewTransportError("progress.complete_lesson", 500, nil)
	_, err := tracker.CompleteLesson(context.Background(), sess, 7, 10)
	require.Error(t, err)

	_, create, _ := api.calls()
	require.Equal(t, 1, create, "the record was created before the mutation failed")

	api.mutateErr = nil
	record, err := tracker.CompleteLesson(context.Background(), sess, 7, 10)
	require.NoError(t, err)
	assert.True(t, record.HasLesson(10))

	_, create, _ = api.calls()
	assert.Equal(t, 1, create, "the retry must reuse the cached identifier")
}

func TestEnsure_CreateFailureCachesNothing(t *testing.T) {
	api := &fakeCourseAPI{createErr: domain.NewTransportError("progress.create", 500, nil)}
	tracker, _ := newTestTracker(api)
	sess := testSession()

	_, err := tracker.Ensure(context.Background(), sess, 7)
	require.Error(t, err)

	api.createErr = nil
	record, err := tracker.Ensure(context.Background(), sess, 7)
	require.NoError(t, err)
	assert.NotZero(t, record.ID)

	_, create, _ := api.calls()
	assert.Equal(t, 2, create, "a failed create must be retried from scratch")
}

func TestTracker_UnauthenticatedSessionNeverTouchesNetwork(t *testing.T) {
	api := &fakeCourseAPI{}
	tracker, _ := newTestTracker(api)
	ctx := context.Background()

	for _, sess := range []*domain.SessionModel{nil, {ID: "sid-1"}} {
		_, err := tracker.List(ctx, sess)
		assert.Equal(t, domain.ErrUnauthenticated, err)
		_, err = tracker.Resolve(ctx, sess, 7)
		assert.Equal(t, domain.ErrUnauthenticated, err)
		_, err = tracker.Ensure(ctx, sess, 7)
		assert.Equal(t, domain.ErrUnauthenticated, err)
		_, err = tracker.CompleteLesson(ctx, sess, 7, 10)
		assert.Equal(t, domain.ErrUnauthenticated, err)
		_, err = tracker.CompleteAssignment(ctx, sess, 7, 20)
		assert.Equal(t, domain.ErrUnauthenticated, err)
	}

	list, create, mutate := api.calls()
	assert.Zero(t, list)
	assert.Zero(t, create)
	assert.Zero(t, mutate)
}

func TestTracker_RejectedCredentialDiscardsSessionButKeepsCache(t *testing.T) {
	api := &fakeCourseAPI{}
	tracker, invalidator := newTestTracker(api)
	sess := testSession()

	_, err := tracker.Ensure(context.Background(), sess, 7)
	require.NoError(t, err)

	api.mutateErr = domain.ErrUnauthenticated
	_, err = tracker.CompleteLesson(context.Background(), sess, 7, 10)
	require.Equal(t, domain.ErrUnauthenticated, err)
	assert.Equal(t, []string{"sid-1"}, invalidator.discarded)

	// after re-login the same session still maps to the same record
	api.mutateErr = nil
	record, err := tracker.CompleteLesson(context.Background(), sess, 7, 10)
	require.NoError(t, err)
	assert.True(t, record.HasLesson(10))

	_, create, _ := api.calls()
	assert.Equal(t, 1, create)
}

func TestCompleteLesson_AckOnlyReplyFallsBackToResolve(t *testing.T) {
	api := &fakeCourseAPI{ackOnlyReply: true}
	tracker, _ := newTestTracker(api)
	sess := testSession()

	record, err := tracker.CompleteLesson(context.Background(), sess, 7, 10)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.NotZero(t, record.ID)
	assert.True(t, record.HasLesson(10))
}

func TestTracker_EvictsStaleIdentifiers(t *testing.T) {
	api := &fakeCourseAPI{}
	invalidator := &fakeInvalidator{}
	tracker := NewTracker(api, invalidator, 10*time.Millisecond, zap.NewNop())
	sess := testSession()

	record, err := tracker.Ensure(context.Background(), sess, 7)
	require.NoError(t, err)
	listBefore, _, _ := api.calls()

	time.Sleep(30 * time.Millisecond)

	again, err := tracker.Ensure(context.Background(), sess, 7)
	require.NoError(t, err)
	assert.Equal(t, record.ID, again.ID)

	listAfter, create, _ := api.calls()
	assert.Greater(t, listAfter, listBefore, "an evicted identifier must be re-resolved")
	assert.Equal(t, 1, create)
}

func TestEnsure_CacheHitCarriesIdentifierOnly(t *testing.T) {
	api := &fakeCourseAPI{}
	tracker, _ := newTestTracker(api)
	sess := testSession()

	_, err := tracker.CompleteLesson(context.Background(), sess, 7, 10)
	require.NoError(t, err)

	record, err := tracker.Ensure(context.Background(), sess, 7)
	require.NoError(t, err)
	assert.NotZero(t, record.ID)
	assert.Equal(t, 7, record.CourseID())
	assert.Empty(t, record.CompletedLessons)
	assert.Empty(t, record.CompletedAssignments)
}

func TestTracker_SessionsAreIsolated(t *testing.T) {
	api := &fakeCourseAPI{}
	tracker, _ := newTestTracker(api)

	alice := &domain.SessionModel{ID: "sid-alice", Credential: "token-alice"}
	bob := &domain.SessionModel{ID: "sid-bob", Credential: "token-bob"}

	first, err := tracker.Ensure(context.Background(), alice, 7)
	require.NoError(t, err)
	second, err := tracker.Ensure(context.Background(), bob, 7)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID, "identifiers are cached per session, not globally")
}

package progress

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/codetrail/learngate/internal/domain"
	"go.elastic.co/apm"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// API the slice of the course store the tracker drives. The store offers no
// upsert: records are created with CreateProgress and mutated afterwards.
type API interface {
	ListProgress(ctx context.Context, credential string) ([]*domain.ProgressModel, error)
	CreateProgress(ctx context.Context, credential string, courseID int) (*domain.ProgressModel, error)
	CompleteLesson(ctx context.Context, credential string, progressID, lessonID int) (*domain.ProgressModel, error)
	CompleteAssignment(ctx context.Context, credential string, progressID, assignmentID int) (*domain.ProgressModel, error)
}

// Tracker implements domain.ProgressTracker against the course API.
//
// The store holds at most one progress record per (learner, course) but
// cannot enforce it, so the tracker must never issue a second blind create.
// It keeps a per-(session, course) identifier cache written once on the
// first successful resolve-with-record or create; concurrent Ensure calls
// for the same course coalesce on a single in-flight lookup so only one of
// them can reach the create step. Cache entries not used within ttl are
// evicted, so identifiers of long-expired sessions do not pile up.
type Tracker struct {
	api      API
	sessions domain.CredentialInvalidator
	logger   *zap.Logger
	ttl      time.Duration

	group     singleflight.Group
	mu        sync.Mutex
	ids       map[string]cacheEntry
	lastSweep time.Time
}

type cacheEntry struct {
	progressID int
	touched    time.Time
}

var _ domain.ProgressTracker = &Tracker{}

// NewTracker create a progress tracker. sessions receives the discard call
// whenever the store rejects a credential. ttl bounds how long a cached
// identifier may sit unused, normally the session lifetime; zero disables
// eviction.
func NewTracker(api API, sessions domain.CredentialInvalidator, ttl time.Duration, logger *zap.Logger) *Tracker {
	return &Tracker{
		api:       api,
		sessions:  sessions,
		logger:    logger,
		ttl:       ttl,
		ids:       make(map[string]cacheEntry),
		lastSweep: time.Now(),
	}
}

func cacheKey(sid string, courseID int) string {
	return fmt.Sprintf("%s/%d", sid, courseID)
}

// List fetch every progress record the learner owns
func (t *Tracker) List(ctx context.Context, sess *domain.SessionModel) ([]*domain.ProgressModel, error) {
	if !sess.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	apmSpan, ctx := apm.StartSpan(ctx, "progress.Tracker.List", "service")
	defer apmSpan.End()

	records, err := t.api.ListProgress(ctx, sess.Credential)
	if err != nil {
		return nil, t.fail(ctx, sess, err)
	}
	for _, record := range records {
		dedupe(record)
		t.remember(sess.ID, record.CourseID(), record.ID)
	}
	return records, nil
}

// Resolve find the learner's progress record for a course. A learner who
// never interacted with the course has no record, which is a normal outcome:
// Resolve reports it as (nil, nil), not as an error.
func (t *Tracker) Resolve(ctx context.Context, sess *domain.SessionModel, courseID int) (*domain.ProgressModel, error) {
	if !sess.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	apmSpan, ctx := apm.StartSpan(ctx, "progress.Tracker.Resolve", "service")
	defer apmSpan.End()

	records, err := t.api.ListProgress(ctx, sess.Credential)
	if err != nil {
		return nil, t.fail(ctx, sess, err)
	}
	for _, record := range records {
		if record.CourseID() == courseID {
			dedupe(record)
			t.remember(sess.ID, courseID, record.ID)
			return record, nil
		}
	}
	return nil, nil
}

// Ensure resolve the record for a course, creating it when absent. The first
// successful call caches the identifier for the rest of the session; later
// calls return without a network write. Concurrent callers racing through an
// unresolved course await the first in-flight lookup instead of issuing
// their own create, which keeps the store at one record per course even
// without a server-side upsert.
//
// A cache hit returns a record carrying only the identifier and course
// reference, with empty completion sets; callers that need the completion
// state use Resolve.
func (t *Tracker) Ensure(ctx context.Context, sess *domain.SessionModel, courseID int) (*domain.ProgressModel, error) {
	if !sess.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	if id, ok := t.cached(sess.ID, courseID); ok {
		return &domain.ProgressModel{ID: id, Course: &domain.CourseModel{ID: courseID}}, nil
	}

	key := cacheKey(sess.ID, courseID)
	result, err, _ := t.group.Do(key, func() (interface{}, error) {
		// the winner of the race may have populated the cache by now
		if id, ok := t.cached(sess.ID, courseID); ok {
			return &domain.ProgressModel{ID: id, Course: &domain.CourseModel{ID: courseID}}, nil
		}
		record, err := t.Resolve(ctx, sess, courseID)
		if err != nil {
			return nil, err
		}
		if record != nil {
			return record, nil
		}
		created, err := t.api.CreateProgress(ctx, sess.Credential, courseID)
		if err != nil {
			// no identifier cached, a later Ensure retries from scratch
			return nil, t.fail(ctx, sess, err)
		}
		dedupe(created)
		t.remember(sess.ID, courseID, created.ID)
		t.logger.Debug("Created progress record",
			zap.Int("course.id", courseID),
			zap.Int("progress.id", created.ID),
		)
		return created, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.ProgressModel), nil
}

// CompleteLesson add a lesson to the record's completed-lesson set. The
// record is resolved or created strictly before the mutation is issued; a
// mutation failure after a fresh create leaves the cached identifier in
// place, so retrying the call repeats only the mutation step.
func (t *Tracker) CompleteLesson(ctx context.Context, sess *domain.SessionModel, courseID, lessonID int) (*domain.ProgressModel, error) {
	record, err := t.Ensure(ctx, sess, courseID)
	if err != nil {
		return nil, err
	}
	apmSpan, ctx := apm.StartSpan(ctx, "progress.Tracker.CompleteLesson", "service")
	defer apmSpan.End()

	updated, err := t.api.CompleteLesson(ctx, sess.Credential, record.ID, lessonID)
	if err != nil {
		return nil, t.fail(ctx, sess, err)
	}
	return t.settle(ctx, sess, courseID, record, updated)
}

// CompleteAssignment add an assignment to the record's completed-assignment
// set. Same contract as CompleteLesson; the two sets are independent and
// neither implies the other.
func (t *Tracker) CompleteAssignment(ctx context.Context, sess *domain.SessionModel, courseID, assignmentID int) (*domain.ProgressModel, error) {
	record, err := t.Ensure(ctx, sess, courseID)
	if err != nil {
		return nil, err
	}
	apmSpan, ctx := apm.StartSpan(ctx, "progress.Tracker.CompleteAssignment", "service")
	defer apmSpan.End()

	updated, err := t.api.CompleteAssignment(ctx, sess.Credential, record.ID, assignmentID)
	if err != nil {
		return nil, t.fail(ctx, sess, err)
	}
	return t.settle(ctx, sess, courseID, record, updated)
}

// settle pick the record to hand back after a completion call. The store
// usually echoes the updated record; on a bare acknowledgment fall back to a
// fresh resolve so the caller still observes the mutated state.
func (t *Tracker) settle(ctx context.Context, sess *domain.SessionModel, courseID int, known, updated *domain.ProgressModel) (*domain.ProgressModel, error) {
	if updated != nil && updated.ID != 0 {
		dedupe(updated)
		return updated, nil
	}
	record, err := t.Resolve(ctx, sess, courseID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return known, nil
	}
	return record, nil
}

// fail map a store rejection to the session context: a rejected credential
// is discarded so the next page load forces re-authentication. The cached
// identifiers stay put, they are valid again right after re-login.
func (t *Tracker) fail(ctx context.Context, sess *domain.SessionModel, err error) error {
	if err == domain.ErrUnauthenticated {
		if derr := t.sessions.Discard(ctx, sess.ID); derr != nil {
			t.logger.Warn("Failed to discard rejected credential",
				zap.String("session.id", sess.ID),
				zap.Error(derr),
			)
		}
	}
	return err
}

func (t *Tracker) cached(sid string, courseID int) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := cacheKey(sid, courseID)
	entry, ok := t.ids[key]
	if !ok || t.expired(entry) {
		return 0, false
	}
	entry.touched = time.Now()
	t.ids[key] = entry
	return entry.progressID, true
}

func (t *Tracker) remember(sid string, courseID, progressID int) {
	if progressID == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sweep()
	t.ids[cacheKey(sid, courseID)] = cacheEntry{progressID: progressID, touched: time.Now()}
}

// sweep evict identifiers that sat unused for a full ttl, at most once per ttl
func (t *Tracker) sweep() {
	if t.ttl <= 0 || time.Since(t.lastSweep) < t.ttl {
		return
	}
	t.lastSweep = time.Now()
	for key, entry := range t.ids {
		if t.expired(entry) {
			delete(t.ids, key)
		}
	}
}

func (t *Tracker) expired(entry cacheEntry) bool {
	return t.ttl > 0 && time.Since(entry.touched) > t.ttl
}

// dedupe enforce set semantics on the completion collections, whatever the
// store returned
func dedupe(record *domain.ProgressModel) {
	if record == nil {
		return
	}
	record.CompletedLessons = dedupeLessons(record.CompletedLessons)
	record.CompletedAssignments = dedupeAssignments(record.CompletedAssignments)
}

func dedupeLessons(lessons []*domain.LessonModel) []*domain.LessonModel {
	seen := make(map[int]bool, len(lessons))
	result := lessons[:0]
	for _, l := range lessons {
		if seen[l.ID] {
			continue
		}
		seen[l.ID] = true
		result = append(result, l)
	}
	return result
}

func dedupeAssignments(assignments []*domain.AssignmentModel) []*domain.AssignmentModel {
	seen := make(map[int]bool, len(assignments))
	result := assignments[:0]
	for _, a := range assignments {
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		result = append(result, a)
	}
	return result
}

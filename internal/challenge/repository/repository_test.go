package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"kitarekayasa/internal/common/cache"
	"kitarekayasa/internal/common/db"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type execCall struct {
	query string
	args  []interface{}
}

type fakeResult struct {
	lastID   int64
	affected int64
}

func (r fakeResult) LastInsertId() (int64, error) { return r.lastID, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.affected, nil }

type errRow struct{ err error }

func (r errRow) Scan(dest ...interface{}) error { return r.err }

// recordingDB records Exec calls and answers with a fixed result.
type recordingDB struct {
	calls  []execCall
	result fakeResult
	rowErr error
}

func (d *recordingDB) Query(ctx context.Context, query string, args ...interface{}) (db.Rows, error) {
	return nil, errors.New("query not supported")
}

func (d *recordingDB) QueryRow(ctx context.Context, query string, args ...interface{}) db.Row {
	return errRow{err: d.rowErr}
}

func (d *recordingDB) Exec(ctx context.Context, query string, args ...interface{}) (db.Result, error) {
	d.calls = append(d.calls, execCall{query: query, args: args})
	return d.result, nil
}

func (d *recordingDB) Transaction(ctx context.Context, fn func(tx db.Transaction) error) error {
	return fn(nil)
}

func (d *recordingDB) TransactionWithOptions(ctx context.Context, opts *db.TxOptions, fn func(tx db.Transaction) error) error {
	return fn(nil)
}

func (d *recordingDB) Ping(ctx context.Context) error { return nil }
func (d *recordingDB) Close() error                   { return nil }
func (d *recordingDB) Stats() db.Stats                { return db.Stats{} }

func newRedisCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc, err := cache.NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	if err != nil {
		t.Fatalf("redis cache: %v", err)
	}
	return rc, mr
}

func TestAssignSolverRequiresOpenRow(t *testing.T) {
	database := &recordingDB{result: fakeResult{affected: 0}}
	repo := NewChallengeRepository(db.NewStaticProvider(database), nil)

	err := repo.AssignSolver(context.Background(), nil, 7, 42)
	if !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}
	if len(database.calls) != 1 {
		t.Fatalf("expected one exec, got %d", len(database.calls))
	}
	call := database.calls[0]
	if !strings.Contains(call.query, "status = ?") || !strings.Contains(call.query, "solver_id IS NULL") {
		t.Fatalf("update should be conditional: %s", call.query)
	}
	if call.args[0] != "IN_PROGRESS" || call.args[3] != "OPEN" {
		t.Fatalf("unexpected args: %v", call.args)
	}

	database.result.affected = 1
	if err := repo.AssignSolver(context.Background(), nil, 7, 42); err != nil {
		t.Fatalf("assign failed: %v", err)
	}
}

func TestMarkDoneAndReviewAreConditional(t *testing.T) {
	database := &recordingDB{result: fakeResult{affected: 0}}
	provider := db.NewStaticProvider(database)

	if err := NewChallengeRepository(provider, nil).MarkDone(context.Background(), nil, 3); !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("MarkDone: expected ErrStatusConflict, got %v", err)
	}
	err := NewSubmissionRepository(provider).Review(context.Background(), nil, 9, SubmissionStatusApproved, time.Now())
	if !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("Review: expected ErrStatusConflict, got %v", err)
	}
	if err := NewProposalRepository(provider).Approve(context.Background(), nil, 5); !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("Approve: expected ErrStatusConflict, got %v", err)
	}
}

func TestRejectSiblingsKeepsApproved(t *testing.T) {
	database := &recordingDB{result: fakeResult{affected: 2}}
	repo := NewProposalRepository(db.NewStaticProvider(database))

	n, err := repo.RejectSiblings(context.Background(), nil, 11, 4)
	if err != nil {
		t.Fatalf("reject siblings failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("affected = %d, want 2", n)
	}
	call := database.calls[0]
	if !strings.Contains(call.query, "id <> ?") {
		t.Fatalf("approved proposal must be excluded: %s", call.query)
	}
	if call.args[0] != "REJECTED" || call.args[1] != int64(11) || call.args[2] != int64(4) || call.args[3] != "PENDING" {
		t.Fatalf("unexpected args: %v", call.args)
	}
}

func TestAddImagesKeepsOrder(t *testing.T) {
	database := &recordingDB{}
	repo := NewChallengeRepository(db.NewStaticProvider(database), nil)

	if err := repo.AddImages(context.Background(), nil, 8, []string{"a.png", "b.png"}); err != nil {
		t.Fatalf("add images failed: %v", err)
	}
	call := database.calls[0]
	want := []interface{}{int64(8), "a.png", 0, int64(8), "b.png", 1}
	if len(call.args) != len(want) {
		t.Fatalf("args = %v", call.args)
	}
	for i := range want {
		if call.args[i] != want[i] {
			t.Fatalf("arg %d = %v, want %v", i, call.args[i], want[i])
		}
	}

	if err := repo.AddImages(context.Background(), nil, 8, nil); err != nil {
		t.Fatalf("empty add images failed: %v", err)
	}
	if len(database.calls) != 1 {
		t.Fatalf("empty image list should not hit the database")
	}
}

func TestGetByIDServesFromCache(t *testing.T) {
	rc, mr := newRedisCache(t)
	database := &recordingDB{rowErr: errors.New("database should not be queried")}
	repo := NewChallengeRepository(db.NewStaticProvider(database), rc)

	cached := &Challenge{
		ID:           5,
		Title:        "Bracket",
		Status:       ChallengeStatusOpen,
		ChallengerID: 1,
		Images:       []Image{{ID: 1, ChallengeID: 5, Ref: "uploads/x.png"}},
	}
	if err := mr.Set(challengeDetailKey(5), marshalChallenge(cached)); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	got, err := repo.GetByID(context.Background(), nil, 5)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Title != "Bracket" || len(got.Images) != 1 {
		t.Fatalf("unexpected challenge: %+v", got)
	}

	if err := mr.Set(challengeDetailKey(6), cache.NullCacheValue); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	if _, err := repo.GetByID(context.Background(), nil, 6); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("expected ErrChallengeNotFound, got %v", err)
	}

	repo.InvalidateCache(context.Background(), 5)
	if mr.Exists(challengeDetailKey(5)) {
		t.Fatalf("cache entry should be removed")
	}
	if _, err := repo.GetByID(context.Background(), nil, 5); err == nil {
		t.Fatalf("expected database error after invalidation")
	}
}

func TestInvalidateCacheDropsCachedMiss(t *testing.T) {
	rc, mr := newRedisCache(t)
	database := &recordingDB{rowErr: sql.ErrNoRows}
	repo := NewChallengeRepository(db.NewStaticProvider(database), rc)
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, nil, 7); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("expected ErrChallengeNotFound, got %v", err)
	}
	if got, err := mr.Get(challengeDetailKey(7)); err != nil || got != cache.NullCacheValue {
		t.Fatalf("miss should be cached as null, got %q (%v)", got, err)
	}

	// The row appears; the cached miss must not outlive it.
	database.rowErr = errors.New("row now exists")
	repo.InvalidateCache(ctx, 7)
	if mr.Exists(challengeDetailKey(7)) {
		t.Fatal("cached miss should be removed")
	}
	if _, err := repo.GetByID(ctx, nil, 7); errors.Is(err, ErrChallengeNotFound) || err == nil {
		t.Fatalf("expected a database read after invalidation, got %v", err)
	}
}

func TestGetForUpdateRequiresTransaction(t *testing.T) {
	repo := NewChallengeRepository(db.NewStaticProvider(&recordingDB{}), nil)
	if _, err := repo.GetForUpdate(context.Background(), nil, 1); err == nil {
		t.Fatalf("expected error without transaction")
	}
}

func TestChallengeStatus(t *testing.T) {
	if !ChallengeStatusDone.Terminal() || !ChallengeStatusCompleted.Terminal() {
		t.Fatalf("DONE and COMPLETED are terminal")
	}
	if ChallengeStatusInProgress.Terminal() {
		t.Fatalf("IN_PROGRESS is not terminal")
	}
	if ChallengeStatus("CANCELLED").Valid() {
		t.Fatalf("unknown status should be invalid")
	}
}

// Package challengetest provides in-memory doubles for the challenge lifecycle.
package challengetest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"kitarekayasa/internal/challenge/repository"
	"kitarekayasa/internal/common/db"
)

var errNoSQL = errors.New("challengetest: raw SQL is not supported")

// Store keeps challenges, proposals and submissions in memory. Transactions run one at a
// time and restore the previous state when fn fails, so it behaves like a row-locked
// database with all-or-nothing commits.
type Store struct {
	txMu sync.Mutex

	mu          sync.Mutex
	now         func() time.Time
	nextID      map[string]int64
	challenges  map[int64]*repository.Challenge
	proposals   map[int64]*repository.Proposal
	submissions map[int64]*repository.Submission
	failures    map[string]error
	invalidated []int64
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		now:         time.Now,
		nextID:      make(map[string]int64),
		challenges:  make(map[int64]*repository.Challenge),
		proposals:   make(map[int64]*repository.Proposal),
		submissions: make(map[int64]*repository.Submission),
		failures:    make(map[string]error),
	}
}

// Operation names accepted by FailOn.
const (
	OpChallengeCreate    = "challenges.Create"
	OpChallengeImages    = "challenges.AddImages"
	OpChallengeForUpdate = "challenges.GetForUpdate"
	OpChallengeList      = "challenges.List"
	OpChallengeAssign    = "challenges.AssignSolver"
	OpChallengeDone      = "challenges.MarkDone"
	OpProposalCreate     = "proposals.Create"
	OpProposalApprove    = "proposals.Approve"
	OpProposalReject     = "proposals.RejectSiblings"
	OpSubmissionCreate   = "submissions.Create"
	OpSubmissionReview   = "submissions.Review"
)

// FailOn makes every later call of op return err. A nil err clears it.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// SetClock overrides the timestamps stamped on new rows.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Provider returns a db.Provider whose Transaction is serialized and rolls back on error.
func (s *Store) Provider() db.Provider {
	return db.NewStaticProvider(&database{store: s})
}

func (s *Store) Challenges() repository.ChallengeRepository { return challengeRepo{s} }

func (s *Store) Proposals() repository.ProposalRepository { return proposalRepo{s} }

func (s *Store) Submissions() repository.SubmissionRepository { return submissionRepo{s} }

// Challenge returns a copy of challenge id.
func (s *Store) Challenge(id int64) (repository.Challenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[id]
	if !ok {
		return repository.Challenge{}, false
	}
	return cloneChallenge(c), true
}

// Proposal returns a copy of proposal id.
func (s *Store) Proposal(id int64) (repository.Proposal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[id]
	if !ok {
		return repository.Proposal{}, false
	}
	return *p, true
}

// Submission returns a copy of submission id.
func (s *Store) Submission(id int64) (repository.Submission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok {
		return repository.Submission{}, false
	}
	return *sub, true
}

// AllChallenges returns copies of every challenge ordered by id.
func (s *Store) AllChallenges() []repository.Challenge {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]repository.Challenge, 0, len(s.challenges))
	for _, c := range s.challenges {
		out = append(out, cloneChallenge(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ProposalsOf returns copies of the proposals of a challenge ordered by id.
func (s *Store) ProposalsOf(challengeID int64) []repository.Proposal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proposalsOfLocked(challengeID, 0)
}

// SubmissionsOf returns copies of the submissions of a challenge ordered by id.
func (s *Store) SubmissionsOf(challengeID int64) []repository.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submissionsOfLocked(challengeID)
}

// Invalidated lists challenge ids whose cache entry was dropped, in call order.
func (s *Store) Invalidated() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.invalidated...)
}

// Seed inserts c as-is and returns its id. Zero fields get defaults.
func (s *Store) Seed(c repository.Challenge) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.Status == "" {
		c.Status = repository.ChallengeStatusOpen
	}
	if c.ID == 0 {
		c.ID = s.allocLocked("challenges")
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
		c.UpdatedAt = c.CreatedAt
	}
	stored := cloneChallenge(&c)
	s.challenges[c.ID] = &stored
	return c.ID
}

func (s *Store) failLocked(op string) error {
	return s.failures[op]
}

func (s *Store) allocLocked(table string) int64 {
	s.nextID[table]++
	return s.nextID[table]
}

func (s *Store) proposalsOfLocked(challengeID, authorID int64) []repository.Proposal {
	var out []repository.Proposal
	for _, p := range s.proposals {
		if p.ChallengeID != challengeID {
			continue
		}
		if authorID > 0 && p.AuthorID != authorID {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) submissionsOfLocked(challengeID int64) []repository.Submission {
	var out []repository.Submission
	for _, sub := range s.submissions {
		if sub.ChallengeID == challengeID {
			out = append(out, *sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type snapshot struct {
	nextID      map[string]int64
	challenges  map[int64]*repository.Challenge
	proposals   map[int64]*repository.Proposal
	submissions map[int64]*repository.Submission
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		nextID:      make(map[string]int64, len(s.nextID)),
		challenges:  make(map[int64]*repository.Challenge, len(s.challenges)),
		proposals:   make(map[int64]*repository.Proposal, len(s.proposals)),
		submissions: make(map[int64]*repository.Submission, len(s.submissions)),
	}
	for k, v := range s.nextID {
		snap.nextID[k] = v
	}
	for id, c := range s.challenges {
		clone := cloneChallenge(c)
		snap.challenges[id] = &clone
	}
	for id, p := range s.proposals {
		clone := *p
		snap.proposals[id] = &clone
	}
	for id, sub := range s.submissions {
		clone := *sub
		snap.submissions[id] = &clone
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID = snap.nextID
	s.challenges = snap.challenges
	s.proposals = snap.proposals
	s.submissions = snap.submissions
}

func cloneChallenge(c *repository.Challenge) repository.Challenge {
	clone := *c
	clone.Images = append([]repository.Image(nil), c.Images...)
	return clone
}

type database struct {
	store *Store
}

func (d *database) Query(ctx context.Context, query string, args ...interface{}) (db.Rows, error) {
	return nil, errNoSQL
}

func (d *database) QueryRow(ctx context.Context, query string, args ...interface{}) db.Row {
	return errRow{}
}

func (d *database) Exec(ctx context.Context, query string, args ...interface{}) (db.Result, error) {
	return nil, errNoSQL
}

func (d *database) Transaction(ctx context.Context, fn func(tx db.Transaction) error) error {
	return d.TransactionWithOptions(ctx, nil, fn)
}

func (d *database) TransactionWithOptions(ctx context.Context, opts *db.TxOptions, fn func(tx db.Transaction) error) error {
	d.store.txMu.Lock()
	defer d.store.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snap := d.store.snapshot()
	if err := fn(&transaction{}); err != nil {
		d.store.restore(snap)
		return err
	}
	return nil
}

func (d *database) Ping(ctx context.Context) error { return nil }
func (d *database) Close() error                   { return nil }
func (d *database) Stats() db.Stats                { return db.Stats{} }

type transaction struct{}

func (t *transaction) Query(ctx context.Context, query string, args ...interface{}) (db.Rows, error) {
	return nil, errNoSQL
}

func (t *transaction) QueryRow(ctx context.Context, query string, args ...interface{}) db.Row {
	return errRow{}
}

func (t *transaction) Exec(ctx context.Context, query string, args ...interface{}) (db.Result, error) {
	return nil, errNoSQL
}

func (t *transaction) Commit() error   { return nil }
func (t *transaction) Rollback() error { return nil }

type errRow struct{}

func (errRow) Scan(dest ...interface{}) error { return errNoSQL }

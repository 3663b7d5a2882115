package challengetest

import (
	"context"
	"errors"
	"sort"
	"time"

	"kitarekayasa/internal/challenge/repository"
	"kitarekayasa/internal/common/db"
)

type challengeRepo struct{ s *Store }

func (r challengeRepo) Create(ctx context.Context, tx db.Transaction, challenge *repository.Challenge) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failLocked(OpChallengeCreate); err != nil {
		return 0, err
	}
	if challenge == nil {
		return 0, errors.New("challenge is nil")
	}
	if challenge.Status == "" {
		challenge.Status = repository.ChallengeStatusOpen
	}
	challenge.ID = r.s.allocLocked("challenges")
	challenge.CreatedAt = r.s.now()
	challenge.UpdatedAt = challenge.CreatedAt
	stored := cloneChallenge(challenge)
	stored.Images = nil
	r.s.challenges[challenge.ID] = &stored
	return challenge.ID, nil
}

func (r challengeRepo) AddImages(ctx context.Context, tx db.Transaction, challengeID int64, refs []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failLocked(OpChallengeImages); err != nil {
		return err
	}
	c, ok := r.s.challenges[challengeID]
	if !ok {
		return errors.New("challenge_images: foreign key violation")
	}
	for i, ref := range refs {
		c.Images = append(c.Images, repository.Image{
			ID:          r.s.allocLocked("challenge_images"),
			ChallengeID: challengeID,
			Ref:         ref,
			Position:    i,
		})
	}
	return nil
}

func (r challengeRepo) GetByID(ctx context.Context, tx db.Transaction, challengeID int64) (*repository.Challenge, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.challenges[challengeID]
	if !ok {
		return nil, repository.ErrChallengeNotFound
	}
	clone := cloneChallenge(c)
	return &clone, nil
}

func (r challengeRepo) GetForUpdate(ctx context.Context, tx db.Transaction, challengeID int64) (*repository.Challenge, error) {
	if tx == nil {
		return nil, errors.New("GetForUpdate requires a transaction")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failLocked(OpChallengeForUpdate); err != nil {
		return nil, err
	}
	c, ok := r.s.challenges[challengeID]
	if !ok {
		return nil, repository.ErrChallengeNotFound
	}
	clone := cloneChallenge(c)
	clone.Images = nil
	return &clone, nil
}

func (r challengeRepo) List(ctx context.Context, tx db.Transaction, filter repository.ListFilter) ([]repository.Challenge, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failLocked(OpChallengeList); err != nil {
		return nil, 0, err
	}
	matched := make([]repository.Challenge, 0, len(r.s.challenges))
	for _, c := range r.s.challenges {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.Category != "" && c.Category != filter.Category {
			continue
		}
		if filter.ChallengerID > 0 && c.ChallengerID != filter.ChallengerID {
			continue
		}
		clone := cloneChallenge(c)
		clone.Images = nil
		matched = append(matched, clone)
	}
	// Newest first, like the SQL ORDER BY created_at DESC, id DESC.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	total := int64(len(matched))
	if filter.Offset >= len(matched) {
		return []repository.Challenge{}, total, nil
	}
	end := len(matched)
	if filter.Limit > 0 && filter.Offset+filter.Limit < end {
		end = filter.Offset + filter.Limit
	}
	return matched[filter.Offset:end], total, nil
}

func (r challengeRepo) AssignSolver(ctx context.Context, tx db.Transaction, challengeID, solverID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failLocked(OpChallengeAssign); err != nil {
		return err
	}
	c, ok := r.s.challenges[challengeID]
	if !ok || c.Status != repository.ChallengeStatusOpen || c.SolverID != 0 {
		return repository.ErrStatusConflict
	}
	c.Status = repository.ChallengeStatusInProgress
	c.SolverID = solverID
	c.UpdatedAt = r.s.now()
	return nil
}

func (r challengeRepo) MarkDone(ctx context.Context, tx db.Transaction, challengeID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failLocked(OpChallengeDone); err != nil {
		return err
	}
	c, ok := r.s.challenges[challengeID]
	if !ok || c.Status != repository.ChallengeStatusInProgress {
		return repository.ErrStatusConflict
	}
	c.Status = repository.ChallengeStatusDone
	c.UpdatedAt = r.s.now()
	return nil
}

func (r challengeRepo) InvalidateCache(ctx context.Context, challengeID int64) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.invalidated = append(r.s.invalidated, challengeID)
}

type proposalRepo struct{ s *Store }

func (r proposalRepo) Create(ctx context.Context, tx db.Transaction, proposal *repository.Proposal) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failLocked(OpProposalCreate); err != nil {
		return 0, err
	}
	if proposal == nil {
		return 0, errors.New("proposal is nil")
	}
	if _, ok := r.s.challenges[proposal.ChallengeID]; !ok {
		return 0, errors.New("proposals: foreign key violation")
	}
	if proposal.Status == "" {
		proposal.Status = repository.ProposalStatusPending
	}
	proposal.ID = r.s.allocLocked("proposals")
	proposal.CreatedAt = r.s.now()
	proposal.UpdatedAt = proposal.CreatedAt
	stored := *proposal
	r.s.proposals[proposal.ID] = &stored
	return proposal.ID, nil
}

func (r proposalRepo) GetByID(ctx context.Context, tx db.Transaction, proposalID int64) (*repository.Proposal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.proposals[proposalID]
	if !ok {
		return nil, repository.ErrProposalNotFound
	}
	clone := *p
	return &clone, nil
}

func (r proposalRepo) ListByChallenge(ctx context.Context, tx db.Transaction, challengeID, authorID int64) ([]repository.Proposal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.proposalsOfLocked(challengeID, authorID), nil
}

func (r proposalRepo) Approve(ctx context.Context, tx db.Transaction, proposalID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failLocked(OpProposalApprove); err != nil {
		return err
	}
	p, ok := r.s.proposals[proposalID]
	if !ok || p.Status != repository.ProposalStatusPending {
		return repository.ErrStatusConflict
	}
	p.Status = repository.ProposalStatusApproved
	p.UpdatedAt = r.s.now()
	return nil
}

func (r proposalRepo) RejectSiblings(ctx context.Context, tx db.Transaction, challengeID, keepID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failLocked(OpProposalReject); err != nil {
		return 0, err
	}
	var n int64
	for _, p := range r.s.proposals {
		if p.ChallengeID == challengeID && p.ID != keepID && p.Status == repository.ProposalStatusPending {
			p.Status = repository.ProposalStatusRejected
			p.UpdatedAt = r.s.now()
			n++
		}
	}
	return n, nil
}

type submissionRepo struct{ s *Store }

func (r submissionRepo) Create(ctx context.Context, tx db.Transaction, submission *repository.Submission) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failLocked(OpSubmissionCreate); err != nil {
		return 0, err
	}
	if submission == nil {
		return 0, errors.New("submission is nil")
	}
	if _, ok := r.s.challenges[submission.ChallengeID]; !ok {
		return 0, errors.New("submissions: foreign key violation")
	}
	if submission.Status == "" {
		submission.Status = repository.SubmissionStatusPending
	}
	submission.ID = r.s.allocLocked("submissions")
	submission.CreatedAt = r.s.now()
	stored := *submission
	r.s.submissions[submission.ID] = &stored
	return submission.ID, nil
}

func (r submissionRepo) GetByID(ctx context.Context, tx db.Transaction, submissionID int64) (*repository.Submission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.submissions[submissionID]
	if !ok {
		return nil, repository.ErrSubmissionNotFound
	}
	clone := *sub
	return &clone, nil
}

func (r submissionRepo) ListByChallenge(ctx context.Context, tx db.Transaction, challengeID int64) ([]repository.Submission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.submissionsOfLocked(challengeID), nil
}

func (r submissionRepo) Review(ctx context.Context, tx db.Transaction, submissionID int64, status repository.SubmissionStatus, reviewedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failLocked(OpSubmissionReview); err != nil {
		return err
	}
	sub, ok := r.s.submissions[submissionID]
	if !ok || sub.Status != repository.SubmissionStatusPending {
		return repository.ErrStatusConflict
	}
	at := reviewedAt
	sub.Status = status
	sub.ReviewedAt = &at
	return nil
}

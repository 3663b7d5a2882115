package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"kitarekayasa/internal/auth"
	"kitarekayasa/internal/challenge/model"
	"kitarekayasa/internal/challenge/repository"
	"kitarekayasa/internal/common/db"
	"kitarekayasa/internal/upload"
	pkgerrors "kitarekayasa/pkg/errors"
	"kitarekayasa/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

const (
	opCreateChallenge  = "create_challenge"
	opSubmitProposal   = "submit_proposal"
	opApproveProposal  = "approve_proposal"
	opSubmitWork       = "submit_work"
	opReviewSubmission = "review_submission"
)

// Uploader stores binary payloads and returns stable references.
type Uploader interface {
	Validate(kind upload.Kind, p upload.Payload) error
	Store(ctx context.Context, kind upload.Kind, scope string, p upload.Payload) (upload.Stored, error)
	Remove(ctx context.Context, refs ...string)
	URL(ctx context.Context, ref string) (string, error)
}

// Config holds lifecycle engine options.
type Config struct {
	// AllowLateProposals accepts proposals on challenges that are no longer OPEN.
	AllowLateProposals bool          `yaml:"allowLateProposals"`
	DefaultPageSize    int           `yaml:"defaultPageSize"`
	MaxPageSize        int           `yaml:"maxPageSize"`
	CacheTTL           time.Duration `yaml:"cacheTTL"`
	CacheEmptyTTL      time.Duration `yaml:"cacheEmptyTTL"`
	EventsTopic        string        `yaml:"eventsTopic"`
}

// Dependencies groups the collaborators of ChallengeService. Events and Metrics are optional.
type Dependencies struct {
	DB          db.Provider
	Challenges  repository.ChallengeRepository
	Proposals   repository.ProposalRepository
	Submissions repository.SubmissionRepository
	Uploads     Uploader
	Events      EventPublisher
	Metrics     *Metrics
}

// ChallengeService implements the challenge lifecycle.
type ChallengeService struct {
	dbProvider  db.Provider
	challenges  repository.ChallengeRepository
	proposals   repository.ProposalRepository
	submissions repository.SubmissionRepository
	uploads     Uploader
	events      EventPublisher
	metrics     *Metrics
	config      Config
	now         func() time.Time
}

// NewChallengeService creates a new ChallengeService.
func NewChallengeService(deps Dependencies, cfg Config) *ChallengeService {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = defaultPageSize
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = maxPageSize
	}
	return &ChallengeService{
		dbProvider:  deps.DB,
		challenges:  deps.Challenges,
		proposals:   deps.Proposals,
		submissions: deps.Submissions,
		uploads:     deps.Uploads,
		events:      deps.Events,
		metrics:     deps.Metrics,
		config:      cfg,
		now:         time.Now,
	}
}

// SetClock overrides the time source.
func (s *ChallengeService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateChallengeInput represents input for posting a challenge.
type CreateChallengeInput struct {
	Title       string
	Category    string
	Description string
	Reward      int64
	Deadline    time.Time
	Images      []upload.Payload
}

// SubmitProposalInput represents input for bidding on a challenge.
type SubmitProposalInput struct {
	ChallengeID int64
	Message     string
	File        *upload.Payload
}

// SubmitWorkInput represents input for delivering work.
type SubmitWorkInput struct {
	ChallengeID int64
	File        *upload.Payload
	Notes       string
}

// ReviewSubmissionInput represents the challenger's decision on a submission.
type ReviewSubmissionInput struct {
	SubmissionID int64
	Decision     string
}

// ListChallengesInput filters and pages ListChallenges.
type ListChallengesInput struct {
	Status       string
	Category     string
	ChallengerID int64
	Page         int
	PageSize     int
}

// ApproveResult is the state after a successful approval.
type ApproveResult struct {
	Proposal      repository.Proposal
	Challenge     repository.Challenge
	RejectedCount int64
}

// ReviewResult is the state after a successful review.
type ReviewResult struct {
	Submission      repository.Submission
	ChallengeStatus repository.ChallengeStatus
}

// ChallengePage is one page of ListChallenges.
type ChallengePage struct {
	Challenges []repository.Challenge
	Total      int64
	Page       int
	PageSize   int
}

// CreateChallenge stores the images and inserts an OPEN challenge owned by caller.
func (s *ChallengeService) CreateChallenge(ctx context.Context, caller auth.Caller, input CreateChallengeInput) (result *repository.Challenge, err error) {
	defer func() { s.metrics.observe(opCreateChallenge, err) }()

	if !caller.Authenticated() {
		return nil, pkgerrors.New(pkgerrors.Unauthorized)
	}
	if !caller.CanPostChallenges() {
		return nil, pkgerrors.New(pkgerrors.Forbidden).WithMessage("only UMUM or ADMIN users can post challenges")
	}
	challenge, err := s.validateChallenge(input)
	if err != nil {
		return nil, err
	}
	for _, image := range input.Images {
		if err := s.uploads.Validate(upload.KindImage, image); err != nil {
			return nil, err
		}
	}

	refs := make([]string, 0, len(input.Images))
	for _, image := range input.Images {
		stored, storeErr := s.uploads.Store(ctx, upload.KindImage, "challenges", image)
		if storeErr != nil {
			s.uploads.Remove(ctx, refs...)
			return nil, storeErr
		}
		refs = append(refs, stored.Ref)
	}

	challenge.ChallengerID = caller.ID
	challenge.Status = repository.ChallengeStatusOpen
	err = s.withTransaction(ctx, func(tx db.Transaction) error {
		id, createErr := s.challenges.Create(ctx, tx, challenge)
		if createErr != nil {
			return pkgerrors.Wrap(fmt.Errorf("create challenge failed: %w", createErr), pkgerrors.ChallengeCreateFailed)
		}
		if imgErr := s.challenges.AddImages(ctx, tx, id, refs); imgErr != nil {
			return pkgerrors.Wrap(fmt.Errorf("attach challenge images failed: %w", imgErr), pkgerrors.ChallengeCreateFailed)
		}
		return nil
	})
	if err != nil {
		s.uploads.Remove(ctx, refs...)
		return nil, err
	}
	s.challenges.InvalidateCache(ctx, challenge.ID)

	challenge.Images = make([]repository.Image, 0, len(refs))
	for i, ref := range refs {
		challenge.Images = append(challenge.Images, repository.Image{ChallengeID: challenge.ID, Ref: ref, Position: i})
	}

	logger.Info(ctx, "challenge created",
		zap.Int64("challenge_id", challenge.ID),
		zap.Int64("challenger_id", caller.ID),
		zap.Int("images", len(refs)),
	)
	s.publish(ctx, model.LifecycleEvent{
		EventType:       model.EventChallengeCreated,
		ChallengeID:     challenge.ID,
		ActorID:         caller.ID,
		SubjectID:       challenge.ID,
		ChallengeStatus: string(challenge.Status),
	})
	return challenge, nil
}

// SubmitProposal records a PENDING proposal by caller on a challenge.
func (s *ChallengeService) SubmitProposal(ctx context.Context, caller auth.Caller, input SubmitProposalInput) (result *repository.Proposal, err error) {
	defer func() { s.metrics.observe(opSubmitProposal, err) }()

	if !caller.Authenticated() {
		return nil, pkgerrors.New(pkgerrors.Unauthorized)
	}
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, pkgerrors.RequiredField("message")
	}
	if input.File != nil {
		if err := s.uploads.Validate(upload.KindAttachment, *input.File); err != nil {
			return nil, err
		}
	}

	challenge, err := s.getChallenge(ctx, nil, input.ChallengeID)
	if err != nil {
		return nil, err
	}
	if err := s.checkProposalAllowed(ctx, caller, challenge); err != nil {
		return nil, err
	}

	var fileRef string
	if input.File != nil {
		stored, storeErr := s.uploads.Store(ctx, upload.KindAttachment, fmt.Sprintf("proposals/%d", challenge.ID), *input.File)
		if storeErr != nil {
			return nil, storeErr
		}
		fileRef = stored.Ref
	}

	proposal := &repository.Proposal{
		ChallengeID: challenge.ID,
		AuthorID:    caller.ID,
		Message:     message,
		FileRef:     fileRef,
		Status:      repository.ProposalStatusPending,
	}
	var challengeStatus repository.ChallengeStatus
	err = s.withTransaction(ctx, func(tx db.Transaction) error {
		locked, lockErr := s.lockChallenge(ctx, tx, challenge.ID)
		if lockErr != nil {
			return lockErr
		}
		if allowErr := s.checkProposalAllowed(ctx, caller, locked); allowErr != nil {
			return allowErr
		}
		challengeStatus = locked.Status
		if _, createErr := s.proposals.Create(ctx, tx, proposal); createErr != nil {
			return pkgerrors.Wrap(fmt.Errorf("create proposal failed: %w", createErr), pkgerrors.DatabaseError)
		}
		return nil
	})
	if err != nil {
		s.uploads.Remove(ctx, fileRef)
		return nil, err
	}

	if challengeStatus != repository.ChallengeStatusOpen {
		logger.Warn(ctx, "late proposal accepted",
			zap.Int64("challenge_id", challenge.ID),
			zap.Int64("proposal_id", proposal.ID),
			zap.String("challenge_status", string(challengeStatus)),
		)
	} else {
		logger.Info(ctx, "proposal submitted",
			zap.Int64("challenge_id", challenge.ID),
			zap.Int64("proposal_id", proposal.ID),
		)
	}
	s.publish(ctx, model.LifecycleEvent{
		EventType:       model.EventProposalSubmitted,
		ChallengeID:     challenge.ID,
		ActorID:         caller.ID,
		SubjectID:       proposal.ID,
		ChallengeStatus: string(challengeStatus),
		SubjectStatus:   string(proposal.Status),
	})
	return proposal, nil
}

// ApproveProposal binds the proposal's author as solver, rejects every sibling proposal and
// moves the challenge to IN_PROGRESS, all in one transaction serialized on the challenge row.
func (s *ChallengeService) ApproveProposal(ctx context.Context, caller auth.Caller, proposalID int64) (result *ApproveResult, err error) {
	defer func() { s.metrics.observe(opApproveProposal, err) }()

	if !caller.Authenticated() {
		return nil, pkgerrors.New(pkgerrors.Unauthorized)
	}

	var out ApproveResult
	err = s.withTransaction(ctx, func(tx db.Transaction) error {
		proposal, getErr := s.proposals.GetByID(ctx, tx, proposalID)
		if getErr != nil {
			return mapRepoError(getErr, "get proposal")
		}
		challenge, lockErr := s.lockChallenge(ctx, tx, proposal.ChallengeID)
		if lockErr != nil {
			return lockErr
		}
		if challenge.ChallengerID != caller.ID {
			return pkgerrors.New(pkgerrors.NotChallenger)
		}
		if challenge.Status != repository.ChallengeStatusOpen {
			return pkgerrors.ConflictError(pkgerrors.ChallengeNotOpen, "")
		}
		if proposal.Status != repository.ProposalStatusPending {
			return pkgerrors.ConflictError(pkgerrors.ProposalNotPending, "")
		}

		if approveErr := s.proposals.Approve(ctx, tx, proposal.ID); approveErr != nil {
			if stderrors.Is(approveErr, repository.ErrStatusConflict) {
				return pkgerrors.ConflictError(pkgerrors.ProposalNotPending, "")
			}
			return pkgerrors.Wrap(fmt.Errorf("approve proposal failed: %w", approveErr), pkgerrors.DatabaseError)
		}
		rejected, rejectErr := s.proposals.RejectSiblings(ctx, tx, challenge.ID, proposal.ID)
		if rejectErr != nil {
			return pkgerrors.Wrap(fmt.Errorf("reject sibling proposals failed: %w", rejectErr), pkgerrors.DatabaseError)
		}
		if assignErr := s.challenges.AssignSolver(ctx, tx, challenge.ID, proposal.AuthorID); assignErr != nil {
			if stderrors.Is(assignErr, repository.ErrStatusConflict) {
				return pkgerrors.ConflictError(pkgerrors.ChallengeNotOpen, "")
			}
			return pkgerrors.Wrap(fmt.Errorf("assign solver failed: %w", assignErr), pkgerrors.DatabaseError)
		}

		proposal.Status = repository.ProposalStatusApproved
		challenge.Status = repository.ChallengeStatusInProgress
		challenge.SolverID = proposal.AuthorID
		out = ApproveResult{Proposal: *proposal, Challenge: *challenge, RejectedCount: rejected}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.challenges.InvalidateCache(ctx, out.Challenge.ID)
	logger.Info(ctx, "proposal approved",
		zap.Int64("challenge_id", out.Challenge.ID),
		zap.Int64("proposal_id", out.Proposal.ID),
		zap.Int64("solver_id", out.Challenge.SolverID),
		zap.Int64("rejected", out.RejectedCount),
	)
	s.publish(ctx, model.LifecycleEvent{
		EventType:       model.EventProposalApproved,
		ChallengeID:     out.Challenge.ID,
		ActorID:         caller.ID,
		SubjectID:       out.Proposal.ID,
		ChallengeStatus: string(out.Challenge.Status),
		SubjectStatus:   string(out.Proposal.Status),
		SolverID:        out.Challenge.SolverID,
		RejectedCount:   out.RejectedCount,
	})
	return &out, nil
}

// SubmitWork appends a PENDING submission by the bound solver.
func (s *ChallengeService) SubmitWork(ctx context.Context, caller auth.Caller, input SubmitWorkInput) (result *repository.Submission, err error) {
	defer func() { s.metrics.observe(opSubmitWork, err) }()

	if !caller.Authenticated() {
		return nil, pkgerrors.New(pkgerrors.Unauthorized)
	}
	if input.File == nil {
		return nil, pkgerrors.RequiredField("file")
	}
	if err := s.uploads.Validate(upload.KindAttachment, *input.File); err != nil {
		return nil, err
	}

	challenge, err := s.getChallenge(ctx, nil, input.ChallengeID)
	if err != nil {
		return nil, err
	}
	if err := checkSubmitAllowed(caller, challenge); err != nil {
		return nil, err
	}

	stored, err := s.uploads.Store(ctx, upload.KindAttachment, fmt.Sprintf("submissions/%d", challenge.ID), *input.File)
	if err != nil {
		return nil, err
	}

	submission := &repository.Submission{
		ChallengeID: challenge.ID,
		AuthorID:    caller.ID,
		FileRef:     stored.Ref,
		Notes:       strings.TrimSpace(input.Notes),
		Status:      repository.SubmissionStatusPending,
	}
	err = s.withTransaction(ctx, func(tx db.Transaction) error {
		locked, lockErr := s.lockChallenge(ctx, tx, challenge.ID)
		if lockErr != nil {
			return lockErr
		}
		if allowErr := checkSubmitAllowed(caller, locked); allowErr != nil {
			return allowErr
		}
		if _, createErr := s.submissions.Create(ctx, tx, submission); createErr != nil {
			return pkgerrors.Wrap(fmt.Errorf("create submission failed: %w", createErr), pkgerrors.DatabaseError)
		}
		return nil
	})
	if err != nil {
		s.uploads.Remove(ctx, stored.Ref)
		return nil, err
	}

	logger.Info(ctx, "work submitted",
		zap.Int64("challenge_id", challenge.ID),
		zap.Int64("submission_id", submission.ID),
	)
	s.publish(ctx, model.LifecycleEvent{
		EventType:       model.EventSubmissionCreated,
		ChallengeID:     challenge.ID,
		ActorID:         caller.ID,
		SubjectID:       submission.ID,
		ChallengeStatus: string(repository.ChallengeStatusInProgress),
		SubjectStatus:   string(submission.Status),
		SolverID:        caller.ID,
	})
	return submission, nil
}

// ReviewSubmission records the challenger's decision. APPROVED completes the challenge.
func (s *ChallengeService) ReviewSubmission(ctx context.Context, caller auth.Caller, input ReviewSubmissionInput) (result *ReviewResult, err error) {
	defer func() { s.metrics.observe(opReviewSubmission, err) }()

	if !caller.Authenticated() {
		return nil, pkgerrors.New(pkgerrors.Unauthorized)
	}
	decision, err := parseDecision(input.Decision)
	if err != nil {
		return nil, err
	}

	var out ReviewResult
	err = s.withTransaction(ctx, func(tx db.Transaction) error {
		submission, getErr := s.submissions.GetByID(ctx, tx, input.SubmissionID)
		if getErr != nil {
			return mapRepoError(getErr, "get submission")
		}
		challenge, lockErr := s.lockChallenge(ctx, tx, submission.ChallengeID)
		if lockErr != nil {
			return lockErr
		}
		if challenge.ChallengerID != caller.ID {
			return pkgerrors.New(pkgerrors.NotChallenger)
		}
		if challenge.Status != repository.ChallengeStatusInProgress {
			return pkgerrors.ConflictError(pkgerrors.SubmissionsClosed, "")
		}
		if submission.Status != repository.SubmissionStatusPending {
			return pkgerrors.ConflictError(pkgerrors.SubmissionAlreadyReviewed, "")
		}

		reviewedAt := s.now().UTC()
		if reviewErr := s.submissions.Review(ctx, tx, submission.ID, decision, reviewedAt); reviewErr != nil {
			if stderrors.Is(reviewErr, repository.ErrStatusConflict) {
				return pkgerrors.ConflictError(pkgerrors.SubmissionAlreadyReviewed, "")
			}
			return pkgerrors.Wrap(fmt.Errorf("review submission failed: %w", reviewErr), pkgerrors.DatabaseError)
		}
		status := repository.ChallengeStatusInProgress
		if decision == repository.SubmissionStatusApproved {
			if doneErr := s.challenges.MarkDone(ctx, tx, challenge.ID); doneErr != nil {
				if stderrors.Is(doneErr, repository.ErrStatusConflict) {
					return pkgerrors.ConflictError(pkgerrors.SubmissionsClosed, "")
				}
				return pkgerrors.Wrap(fmt.Errorf("complete challenge failed: %w", doneErr), pkgerrors.DatabaseError)
			}
			status = repository.ChallengeStatusDone
		}

		submission.Status = decision
		submission.ReviewedAt = &reviewedAt
		out = ReviewResult{Submission: *submission, ChallengeStatus: status}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.challenges.InvalidateCache(ctx, out.Submission.ChallengeID)
	logger.Info(ctx, "submission reviewed",
		zap.Int64("challenge_id", out.Submission.ChallengeID),
		zap.Int64("submission_id", out.Submission.ID),
		zap.String("decision", string(decision)),
	)
	s.publish(ctx, model.LifecycleEvent{
		EventType:       model.EventSubmissionReviewed,
		ChallengeID:     out.Submission.ChallengeID,
		ActorID:         caller.ID,
		SubjectID:       out.Submission.ID,
		ChallengeStatus: string(out.ChallengeStatus),
		SubjectStatus:   string(out.Submission.Status),
		SolverID:        out.Submission.AuthorID,
	})
	return &out, nil
}

// GetChallenge returns a challenge with its images.
func (s *ChallengeService) GetChallenge(ctx context.Context, challengeID int64) (*repository.Challenge, error) {
	return s.getChallenge(ctx, nil, challengeID)
}

// FileURL returns a download URL for a stored ref, or "" when it cannot be signed.
func (s *ChallengeService) FileURL(ctx context.Context, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := s.uploads.URL(ctx, ref)
	if err != nil {
		logger.Warn(ctx, "sign file url failed", zap.String("ref", ref), zap.Error(err))
		return ""
	}
	return u
}

// ListChallenges returns one page of challenges, newest first.
func (s *ChallengeService) ListChallenges(ctx context.Context, input ListChallengesInput) (ChallengePage, error) {
	filter := repository.ListFilter{
		Category:     strings.TrimSpace(input.Category),
		ChallengerID: input.ChallengerID,
	}
	if raw := strings.TrimSpace(input.Status); raw != "" {
		status := repository.ChallengeStatus(strings.ToUpper(raw))
		if !status.Valid() {
			return ChallengePage{}, pkgerrors.ValidationError("status", "unknown challenge status")
		}
		filter.Status = status
	}

	page := input.Page
	if page <= 0 {
		page = 1
	}
	pageSize := input.PageSize
	if pageSize <= 0 {
		pageSize = s.config.DefaultPageSize
	}
	if pageSize > s.config.MaxPageSize {
		pageSize = s.config.MaxPageSize
	}
	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize

	challenges, total, err := s.challenges.List(ctx, nil, filter)
	if err != nil {
		return ChallengePage{}, pkgerrors.Wrap(fmt.Errorf("list challenges failed: %w", err), pkgerrors.DatabaseError)
	}
	return ChallengePage{Challenges: challenges, Total: total, Page: page, PageSize: pageSize}, nil
}

// ListProposals returns every proposal to the challenger and only their own to anyone else.
func (s *ChallengeService) ListProposals(ctx context.Context, caller auth.Caller, challengeID int64) ([]repository.Proposal, error) {
	if !caller.Authenticated() {
		return nil, pkgerrors.New(pkgerrors.Unauthorized)
	}
	challenge, err := s.getChallenge(ctx, nil, challengeID)
	if err != nil {
		return nil, err
	}
	var authorID int64
	if challenge.ChallengerID != caller.ID {
		authorID = caller.ID
	}
	proposals, err := s.proposals.ListByChallenge(ctx, nil, challengeID, authorID)
	if err != nil {
		return nil, pkgerrors.Wrap(fmt.Errorf("list proposals failed: %w", err), pkgerrors.DatabaseError)
	}
	return proposals, nil
}

// ListSubmissions returns the submission history for the challenger or the bound solver.
func (s *ChallengeService) ListSubmissions(ctx context.Context, caller auth.Caller, challengeID int64) ([]repository.Submission, error) {
	if !caller.Authenticated() {
		return nil, pkgerrors.New(pkgerrors.Unauthorized)
	}
	challenge, err := s.getChallenge(ctx, nil, challengeID)
	if err != nil {
		return nil, err
	}
	if challenge.ChallengerID != caller.ID && (challenge.SolverID == 0 || challenge.SolverID != caller.ID) {
		return nil, pkgerrors.New(pkgerrors.Forbidden).WithMessage("only the challenger or the solver can view submissions")
	}
	submissions, err := s.submissions.ListByChallenge(ctx, nil, challengeID)
	if err != nil {
		return nil, pkgerrors.Wrap(fmt.Errorf("list submissions failed: %w", err), pkgerrors.DatabaseError)
	}
	return submissions, nil
}

func (s *ChallengeService) validateChallenge(input CreateChallengeInput) (*repository.Challenge, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.RequiredField("title")
	}
	category := strings.TrimSpace(input.Category)
	if category == "" {
		return nil, pkgerrors.RequiredField("category")
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, pkgerrors.RequiredField("description")
	}
	if input.Reward <= 0 {
		return nil, pkgerrors.ValidationError("reward", "must be a positive amount")
	}
	if input.Deadline.IsZero() {
		return nil, pkgerrors.RequiredField("deadline")
	}
	if !input.Deadline.After(s.now()) {
		return nil, pkgerrors.ValidationError("deadline", "must be in the future")
	}
	if len(input.Images) == 0 {
		return nil, pkgerrors.RequiredField("images")
	}
	return &repository.Challenge{
		Title:       title,
		Category:    category,
		Description: description,
		Reward:      input.Reward,
		Deadline:    input.Deadline.UTC(),
	}, nil
}

func (s *ChallengeService) checkProposalAllowed(ctx context.Context, caller auth.Caller, challenge *repository.Challenge) error {
	if challenge.ChallengerID == caller.ID {
		return pkgerrors.New(pkgerrors.Forbidden).WithMessage("challengers cannot bid on their own challenge")
	}
	if challenge.Status != repository.ChallengeStatusOpen && !s.config.AllowLateProposals {
		return pkgerrors.ConflictError(pkgerrors.ChallengeNotOpen, "")
	}
	return nil
}

func checkSubmitAllowed(caller auth.Caller, challenge *repository.Challenge) error {
	if challenge.SolverID == 0 || challenge.SolverID != caller.ID {
		return pkgerrors.New(pkgerrors.NotSolver)
	}
	if challenge.Status != repository.ChallengeStatusInProgress {
		return pkgerrors.ConflictError(pkgerrors.SubmissionsClosed, "")
	}
	return nil
}

func parseDecision(raw string) (repository.SubmissionStatus, error) {
	switch repository.SubmissionStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case repository.SubmissionStatusApproved:
		return repository.SubmissionStatusApproved, nil
	case repository.SubmissionStatusRevisionRequested:
		return repository.SubmissionStatusRevisionRequested, nil
	}
	return "", pkgerrors.New(pkgerrors.InvalidDecision).
		WithDetail("field", "decision").
		WithDetail("allowed", []string{string(repository.SubmissionStatusApproved), string(repository.SubmissionStatusRevisionRequested)})
}

func (s *ChallengeService) getChallenge(ctx context.Context, tx db.Transaction, challengeID int64) (*repository.Challenge, error) {
	challenge, err := s.challenges.GetByID(ctx, tx, challengeID)
	if err != nil {
		return nil, mapRepoError(err, "get challenge")
	}
	return challenge, nil
}

func (s *ChallengeService) lockChallenge(ctx context.Context, tx db.Transaction, challengeID int64) (*repository.Challenge, error) {
	challenge, err := s.challenges.GetForUpdate(ctx, tx, challengeID)
	if err != nil {
		return nil, mapRepoError(err, "lock challenge")
	}
	return challenge, nil
}

func (s *ChallengeService) publish(ctx context.Context, event model.LifecycleEvent) {
	if s.events == nil {
		return
	}
	event.OccurredAt = s.now().UTC()
	if err := s.events.Publish(ctx, event); err != nil {
		logger.Warn(ctx, "publish lifecycle event failed",
			zap.String("event_type", event.EventType),
			zap.Int64("challenge_id", event.ChallengeID),
			zap.Error(err),
		)
	}
}

func (s *ChallengeService) withTransaction(ctx context.Context, fn func(tx db.Transaction) error) error {
	database, err := db.CurrentDatabase(s.dbProvider)
	if err != nil {
		return fn(nil)
	}
	if err := database.Transaction(ctx, fn); err != nil {
		var coded *pkgerrors.Error
		if stderrors.As(err, &coded) {
			return err
		}
		return pkgerrors.Wrap(fmt.Errorf("transaction failed: %w", err), pkgerrors.TransactionFailed)
	}
	return nil
}

func mapRepoError(err error, action string) error {
	switch {
	case stderrors.Is(err, repository.ErrChallengeNotFound):
		return pkgerrors.New(pkgerrors.ChallengeNotFound)
	case stderrors.Is(err, repository.ErrProposalNotFound):
		return pkgerrors.New(pkgerrors.ProposalNotFound)
	case stderrors.Is(err, repository.ErrSubmissionNotFound):
		return pkgerrors.New(pkgerrors.SubmissionNotFound)
	}
	return pkgerrors.Wrap(fmt.Errorf("%s failed: %w", action, err), pkgerrors.DatabaseError)
}

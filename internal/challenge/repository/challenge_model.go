package repository

import "time"

// ChallengeStatus is the lifecycle state of a challenge.
type ChallengeStatus string

const (
	ChallengeStatusOpen       ChallengeStatus = "OPEN"
	ChallengeStatusInProgress ChallengeStatus = "IN_PROGRESS"
	ChallengeStatusDone       ChallengeStatus = "DONE"
	// ChallengeStatusCompleted is only ever read; new rows end at DONE.
	ChallengeStatusCompleted ChallengeStatus = "COMPLETED"
)

// Terminal reports whether no further transitions are possible.
func (s ChallengeStatus) Terminal() bool {
	return s == ChallengeStatusDone || s == ChallengeStatusCompleted
}

// Valid reports whether s is a known status.
func (s ChallengeStatus) Valid() bool {
	switch s {
	case ChallengeStatusOpen, ChallengeStatusInProgress, ChallengeStatusDone, ChallengeStatusCompleted:
		return true
	}
	return false
}

type ProposalStatus string

const (
	ProposalStatusPending  ProposalStatus = "PENDING"
	ProposalStatusApproved ProposalStatus = "APPROVED"
	ProposalStatusRejected ProposalStatus = "REJECTED"
)

type SubmissionStatus string

const (
	SubmissionStatusPending           SubmissionStatus = "PENDING"
	SubmissionStatusApproved          SubmissionStatus = "APPROVED"
	SubmissionStatusRevisionRequested SubmissionStatus = "REVISION_REQUESTED"
)

// Challenge represents a posted problem with a reward.
type Challenge struct {
	ID           int64
	Title        string
	Category     string
	Description  string
	Reward       int64
	Deadline     time.Time
	Status       ChallengeStatus
	ChallengerID int64
	// SolverID is zero until a proposal is approved.
	SolverID  int64
	Images    []Image
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Image is one ordered image reference of a challenge.
type Image struct {
	ID          int64
	ChallengeID int64
	Ref         string
	Position    int
}

// Proposal is a designer's bid on a challenge.
type Proposal struct {
	ID          int64
	ChallengeID int64
	AuthorID    int64
	Message     string
	FileRef     string
	Status      ProposalStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Submission is one delivered work product. Rows are never rewritten except for status.
type Submission struct {
	ID          int64
	ChallengeID int64
	AuthorID    int64
	FileRef     string
	Notes       string
	Status      SubmissionStatus
	CreatedAt   time.Time
	ReviewedAt  *time.Time
}

// ListFilter narrows ListChallenges. Zero fields are ignored.
type ListFilter struct {
	Status       ChallengeStatus
	Category     string
	ChallengerID int64
	Limit        int
	Offset       int
}

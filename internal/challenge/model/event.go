package model

import "time"

const (
	EventChallengeCreated   = "challenge.created"
	EventProposalSubmitted  = "proposal.submitted"
	EventProposalApproved   = "proposal.approved"
	EventSubmissionCreated  = "submission.created"
	EventSubmissionReviewed = "submission.reviewed"
)

// LifecycleEvent is published after a lifecycle transition commits.
type LifecycleEvent struct {
	EventType       string    `json:"event_type"`
	ChallengeID     int64     `json:"challenge_id"`
	ActorID         int64     `json:"actor_id"`
	SubjectID       int64     `json:"subject_id"`
	ChallengeStatus string    `json:"challenge_status"`
	SubjectStatus   string    `json:"subject_status,omitempty"`
	SolverID        int64     `json:"solver_id,omitempty"`
	RejectedCount   int64     `json:"rejected_count,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

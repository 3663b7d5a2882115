package controller

import (
	"context"
	"time"

	"kitarekayasa/internal/challenge/repository"
)

// ListChallengesQuery defines list query parameters.
type ListChallengesQuery struct {
	Status       string `form:"status"`
	Category     string `form:"category"`
	ChallengerID int64  `form:"challenger_id"`
	Page         int    `form:"page"`
	PageSize     int    `form:"page_size"`
}

// ReviewRequest defines review payload.
type ReviewRequest struct {
	Decision string `json:"decision" binding:"required"`
}

type ImageResponse struct {
	Ref      string `json:"ref"`
	URL      string `json:"url,omitempty"`
	Position int    `json:"position"`
}

type ChallengeResponse struct {
	ID           int64           `json:"id"`
	Title        string          `json:"title"`
	Category     string          `json:"category"`
	Description  string          `json:"description"`
	Reward       int64           `json:"reward"`
	Deadline     time.Time       `json:"deadline"`
	Status       string          `json:"status"`
	ChallengerID int64           `json:"challenger_id"`
	SolverID     *int64          `json:"solver_id"`
	Images       []ImageResponse `json:"images,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type ProposalResponse struct {
	ID          int64     `json:"id"`
	ChallengeID int64     `json:"challenge_id"`
	AuthorID    int64     `json:"author_id"`
	Message     string    `json:"message"`
	FileRef     string    `json:"file_ref,omitempty"`
	FileURL     string    `json:"file_url,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

type SubmissionResponse struct {
	ID          int64      `json:"id"`
	ChallengeID int64      `json:"challenge_id"`
	AuthorID    int64      `json:"author_id"`
	FileRef     string     `json:"file_ref"`
	FileURL     string     `json:"file_url,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
}

type ApproveResponse struct {
	Proposal      ProposalResponse  `json:"proposal"`
	Challenge     ChallengeResponse `json:"challenge"`
	RejectedCount int64             `json:"rejected_count"`
}

type ReviewResponse struct {
	Submission      SubmissionResponse `json:"submission"`
	ChallengeStatus string             `json:"challenge_status"`
}

// fileSigner turns stored refs into download URLs.
type fileSigner interface {
	FileURL(ctx context.Context, ref string) string
}

func toChallengeResponse(ctx context.Context, signer fileSigner, challenge repository.Challenge) ChallengeResponse {
	resp := ChallengeResponse{
		ID:           challenge.ID,
		Title:        challenge.Title,
		Category:     challenge.Category,
		Description:  challenge.Description,
		Reward:       challenge.Reward,
		Deadline:     challenge.Deadline.UTC(),
		Status:       string(challenge.Status),
		ChallengerID: challenge.ChallengerID,
		CreatedAt:    challenge.CreatedAt.UTC(),
	}
	if challenge.SolverID != 0 {
		solverID := challenge.SolverID
		resp.SolverID = &solverID
	}
	for _, image := range challenge.Images {
		resp.Images = append(resp.Images, ImageResponse{
			Ref:      image.Ref,
			URL:      signer.FileURL(ctx, image.Ref),
			Position: image.Position,
		})
	}
	return resp
}

func toProposalResponse(ctx context.Context, signer fileSigner, proposal repository.Proposal) ProposalResponse {
	return ProposalResponse{
		ID:          proposal.ID,
		ChallengeID: proposal.ChallengeID,
		AuthorID:    proposal.AuthorID,
		Message:     proposal.Message,
		FileRef:     proposal.FileRef,
		FileURL:     signer.FileURL(ctx, proposal.FileRef),
		Status:      string(proposal.Status),
		CreatedAt:   proposal.CreatedAt.UTC(),
	}
}

func toSubmissionResponse(ctx context.Context, signer fileSigner, submission repository.Submission) SubmissionResponse {
	return SubmissionResponse{
		ID:          submission.ID,
		ChallengeID: submission.ChallengeID,
		AuthorID:    submission.AuthorID,
		FileRef:     submission.FileRef,
		FileURL:     signer.FileURL(ctx, submission.FileRef),
		Notes:       submission.Notes,
		Status:      string(submission.Status),
		CreatedAt:   submission.CreatedAt.UTC(),
		ReviewedAt:  submission.ReviewedAt,
	}
}

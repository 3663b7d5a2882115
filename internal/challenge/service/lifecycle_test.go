package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"kitarekayasa/internal/challenge/challengetest"
	"kitarekayasa/internal/challenge/model"
	"kitarekayasa/internal/challenge/repository"
	"kitarekayasa/internal/challenge/service"
	pkgerrors "kitarekayasa/pkg/errors"
)

var errDiskFull = errors.New("disk full")

func TestApproveRejectsSiblings(t *testing.T) {
	h := newHarness(t, service.Config{})
	c := h.createChallenge(t)
	p1 := h.propose(t, solverB, c)
	p2 := h.propose(t, solverD, c)

	result, err := h.svc.ApproveProposal(context.Background(), challengerA, p1)
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if result.RejectedCount != 1 {
		t.Fatalf("rejected = %d, want 1", result.RejectedCount)
	}

	if got := h.proposal(t, p1).Status; got != repository.ProposalStatusApproved {
		t.Fatalf("P1 status = %s", got)
	}
	if got := h.proposal(t, p2).Status; got != repository.ProposalStatusRejected {
		t.Fatalf("P2 status = %s", got)
	}
	challenge := h.challenge(t, c)
	if challenge.Status != repository.ChallengeStatusInProgress {
		t.Fatalf("challenge status = %s", challenge.Status)
	}
	if challenge.SolverID != solverB.ID {
		t.Fatalf("solver = %d, want %d", challenge.SolverID, solverB.ID)
	}
	h.assertInvariants(t)

	invalidated := h.store.Invalidated()
	if len(invalidated) == 0 || invalidated[len(invalidated)-1] != c {
		t.Fatalf("challenge cache should be invalidated, got %v", invalidated)
	}
	last, err := h.events.Last()
	if err != nil {
		t.Fatal(err)
	}
	if last.EventType != model.EventProposalApproved || last.SolverID != solverB.ID || last.RejectedCount != 1 {
		t.Fatalf("unexpected event: %+v", last)
	}
}

func TestRevisionThenApprovalCompletesChallenge(t *testing.T) {
	h := newHarness(t, service.Config{})
	c := h.createChallenge(t)
	p1 := h.propose(t, solverB, c)
	if _, err := h.svc.ApproveProposal(context.Background(), challengerA, p1); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	s1 := h.submitWork(t, solverB, c, "v1.stl")
	if got := h.submission(t, s1).Status; got != repository.SubmissionStatusPending {
		t.Fatalf("S1 status = %s", got)
	}

	review, err := h.svc.ReviewSubmission(context.Background(), challengerA, service.ReviewSubmissionInput{
		SubmissionID: s1,
		Decision:     "REVISION_REQUESTED",
	})
	if err != nil {
		t.Fatalf("review failed: %v", err)
	}
	if review.ChallengeStatus != repository.ChallengeStatusInProgress {
		t.Fatalf("challenge status after revision = %s", review.ChallengeStatus)
	}
	before := h.submission(t, s1)
	if before.Status != repository.SubmissionStatusRevisionRequested || before.ReviewedAt == nil {
		t.Fatalf("S1 after review: %+v", before)
	}
	if got := h.challenge(t, c).Status; got != repository.ChallengeStatusInProgress {
		t.Fatalf("challenge status = %s", got)
	}

	s2 := h.submitWork(t, solverB, c, "v2.stl")
	if s2 == s1 {
		t.Fatalf("revision must append a new submission")
	}
	after := h.submission(t, s1)
	if after.Status != before.Status || after.FileRef != before.FileRef || after.Notes != before.Notes {
		t.Fatalf("S1 was modified by a later submission: %+v", after)
	}
	history := h.store.SubmissionsOf(c)
	if len(history) != 2 || history[0].ID != s1 || history[1].ID != s2 {
		t.Fatalf("unexpected history: %+v", history)
	}

	// Approving the revision completes the challenge.
	review, err = h.svc.ReviewSubmission(context.Background(), challengerA, service.ReviewSubmissionInput{
		SubmissionID: s2,
		Decision:     "APPROVED",
	})
	if err != nil {
		t.Fatalf("final review failed: %v", err)
	}
	if review.ChallengeStatus != repository.ChallengeStatusDone {
		t.Fatalf("challenge status = %s", review.ChallengeStatus)
	}
	if got := h.submission(t, s2).Status; got != repository.SubmissionStatusApproved {
		t.Fatalf("S2 status = %s", got)
	}
	challenge := h.challenge(t, c)
	if challenge.Status != repository.ChallengeStatusDone || challenge.SolverID != solverB.ID {
		t.Fatalf("challenge after completion: %+v", challenge)
	}
	h.assertInvariants(t)

	// DONE is terminal.
	_, err = h.svc.SubmitWork(context.Background(), solverB, service.SubmitWorkInput{ChallengeID: c, File: file("v3.stl", "late")})
	assertCode(t, err, pkgerrors.SubmissionsClosed)

	want := []string{
		model.EventChallengeCreated,
		model.EventProposalSubmitted,
		model.EventProposalApproved,
		model.EventSubmissionCreated,
		model.EventSubmissionReviewed,
		model.EventSubmissionCreated,
		model.EventSubmissionReviewed,
	}
	got := h.events.Types()
	if len(got) != len(want) {
		t.Fatalf("events = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestLateProposalRejectedByDefault(t *testing.T) {
	h := newHarness(t, service.Config{})
	c := h.createChallenge(t)
	p1 := h.propose(t, solverB, c)
	h.propose(t, solverD, c)
	if _, err := h.svc.ApproveProposal(context.Background(), challengerA, p1); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	_, err := h.svc.SubmitProposal(context.Background(), solverE, service.SubmitProposalInput{
		ChallengeID: c,
		Message:     "Still interested",
		File:        file("portfolio.pdf", "%PDF"),
	})
	assertCode(t, err, pkgerrors.ChallengeNotOpen)
	if pkgerrors.GetCode(err).HTTPStatus() != 409 {
		t.Fatalf("late proposal should be a conflict")
	}
	if len(h.store.ProposalsOf(c)) != 2 {
		t.Fatalf("late proposal must not be stored")
	}
	for _, ref := range h.uploads.Objects() {
		if strings.HasPrefix(ref, "uploads/proposals") {
			t.Fatalf("late proposal attachment should not be uploaded: %s", ref)
		}
	}
	h.assertInvariants(t)
}

func TestLateProposalAcceptedWhenAllowed(t *testing.T) {
	h := newHarness(t, service.Config{AllowLateProposals: true})
	c := h.createChallenge(t)
	p1 := h.propose(t, solverB, c)
	if _, err := h.svc.ApproveProposal(context.Background(), challengerA, p1); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	late, err := h.svc.SubmitProposal(context.Background(), solverE, service.SubmitProposalInput{
		ChallengeID: c,
		Message:     "Still interested",
	})
	if err != nil {
		t.Fatalf("late proposal should be accepted: %v", err)
	}
	if late.Status != repository.ProposalStatusPending {
		t.Fatalf("late proposal status = %s", late.Status)
	}

	// The late proposal can never be approved and never displaces the solver.
	_, err = h.svc.ApproveProposal(context.Background(), challengerA, late.ID)
	assertCode(t, err, pkgerrors.ChallengeNotOpen)
	challenge := h.challenge(t, c)
	if challenge.SolverID != solverB.ID || challenge.Status != repository.ChallengeStatusInProgress {
		t.Fatalf("challenge changed: %+v", challenge)
	}
	last, _ := h.events.Last()
	if last.EventType != model.EventProposalSubmitted || last.ChallengeStatus != string(repository.ChallengeStatusInProgress) {
		t.Fatalf("late proposal event: %+v", last)
	}
	h.assertInvariants(t)
}

func TestNonChallengerCannotApprove(t *testing.T) {
	h := newHarness(t, service.Config{})
	c := h.createChallenge(t)
	p1 := h.propose(t, solverB, c)
	p2 := h.propose(t, solverD, c)

	_, err := h.svc.ApproveProposal(context.Background(), outsiderF, p1)
	assertCode(t, err, pkgerrors.NotChallenger)
	if pkgerrors.GetCode(err).HTTPStatus() != 403 {
		t.Fatalf("non-challenger approval should be forbidden")
	}
	_, err = h.svc.ApproveProposal(context.Background(), solverB, p1)
	assertCode(t, err, pkgerrors.NotChallenger)
	_, err = h.svc.ApproveProposal(context.Background(), anonymous, p1)
	assertCode(t, err, pkgerrors.Unauthorized)

	if got := h.proposal(t, p1).Status; got != repository.ProposalStatusPending {
		t.Fatalf("P1 status = %s", got)
	}
	if got := h.proposal(t, p2).Status; got != repository.ProposalStatusPending {
		t.Fatalf("P2 status = %s", got)
	}
	challenge := h.challenge(t, c)
	if challenge.Status != repository.ChallengeStatusOpen || challenge.SolverID != 0 {
		t.Fatalf("challenge changed: %+v", challenge)
	}
	h.assertInvariants(t)
}

func TestApproveTwiceConflicts(t *testing.T) {
	h := newHarness(t, service.Config{})
	c := h.createChallenge(t)
	p1 := h.propose(t, solverB, c)
	p2 := h.propose(t, solverD, c)

	if _, err := h.svc.ApproveProposal(context.Background(), challengerA, p1); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	_, err := h.svc.ApproveProposal(context.Background(), challengerA, p1)
	assertCode(t, err, pkgerrors.ChallengeNotOpen)
	_, err = h.svc.ApproveProposal(context.Background(), challengerA, p2)
	assertCode(t, err, pkgerrors.ChallengeNotOpen)

	challenge := h.challenge(t, c)
	if challenge.SolverID != solverB.ID {
		t.Fatalf("solver reassigned to %d", challenge.SolverID)
	}
	if got := h.proposal(t, p2).Status; got != repository.ProposalStatusRejected {
		t.Fatalf("P2 status = %s", got)
	}
	h.assertInvariants(t)
}

func TestApproveProposalNotFound(t *testing.T) {
	h := newHarness(t, service.Config{})
	_, err := h.svc.ApproveProposal(context.Background(), challengerA, 404)
	assertCode(t, err, pkgerrors.ProposalNotFound)
}

func TestApproveRollsBackOnPartialFailure(t *testing.T) {
	failures := []struct {
		name string
		op   string
	}{
		{name: "after approving target", op: challengetest.OpProposalReject},
		{name: "after rejecting siblings", op: challengetest.OpChallengeAssign},
	}

	for _, tc := range failures {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, service.Config{})
			c := h.createChallenge(t)
			p1 := h.propose(t, solverB, c)
			p2 := h.propose(t, solverD, c)
			eventsBefore := len(h.events.Types())

			h.store.FailOn(tc.op, errDiskFull)
			_, err := h.svc.ApproveProposal(context.Background(), challengerA, p1)
			if err == nil {
				t.Fatalf("expected failure")
			}
			if pkgerrors.GetCode(err).HTTPStatus() != 500 {
				t.Fatalf("expected a storage error, got %v", err)
			}

			if got := h.proposal(t, p1).Status; got != repository.ProposalStatusPending {
				t.Fatalf("P1 status = %s, want PENDING", got)
			}
			if got := h.proposal(t, p2).Status; got != repository.ProposalStatusPending {
				t.Fatalf("P2 status = %s, want PENDING", got)
			}
			challenge := h.challenge(t, c)
			if challenge.Status != repository.ChallengeStatusOpen || challenge.SolverID != 0 {
				t.Fatalf("challenge partially updated: %+v", challenge)
			}
			if len(h.events.Types()) != eventsBefore {
				t.Fatalf("no event may be published for a rolled back approval")
			}
			h.assertInvariants(t)

			// Once storage recovers the same approval goes through.
			h.store.FailOn(tc.op, nil)
			if _, err := h.svc.ApproveProposal(context.Background(), challengerA, p1); err != nil {
				t.Fatalf("approve after recovery failed: %v", err)
			}
			h.assertInvariants(t)
		})
	}
}

func TestReviewRollsBackWhenCompletionFails(t *testing.T) {
	h := newHarness(t, service.Config{})
	c := h.createChallenge(t)
	p1 := h.propose(t, solverB, c)
	if _, err := h.svc.ApproveProposal(context.Background(), challengerA, p1); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	s1 := h.submitWork(t, solverB, c, "final.stl")

	h.store.FailOn(challengetest.OpChallengeDone, errDiskFull)
	_, err := h.svc.ReviewSubmission(context.Background(), challengerA, service.ReviewSubmissionInput{
		SubmissionID: s1,
		Decision:     "APPROVED",
	})
	assertCode(t, err, pkgerrors.DatabaseError)

	sub := h.submission(t, s1)
	if sub.Status != repository.SubmissionStatusPending || sub.ReviewedAt != nil {
		t.Fatalf("submission partially reviewed: %+v", sub)
	}
	if got := h.challenge(t, c).Status; got != repository.ChallengeStatusInProgress {
		t.Fatalf("challenge status = %s", got)
	}
}

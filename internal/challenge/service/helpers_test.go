package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"kitarekayasa/internal/auth"
	"kitarekayasa/internal/challenge/challengetest"
	"kitarekayasa/internal/challenge/repository"
	"kitarekayasa/internal/challenge/service"
	"kitarekayasa/internal/upload"
	pkgerrors "kitarekayasa/pkg/errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	challengerA = auth.Caller{ID: 1, Role: auth.RoleUmum}
	solverB     = auth.Caller{ID: 2, Role: auth.RoleDesainer}
	solverD     = auth.Caller{ID: 3, Role: auth.RoleDesainer}
	solverE     = auth.Caller{ID: 4, Role: auth.RoleDesainer}
	outsiderF   = auth.Caller{ID: 5, Role: auth.RoleUmum}
	anonymous   = auth.Caller{}
)

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type harness struct {
	store    *challengetest.Store
	uploads  *challengetest.Uploads
	events   *challengetest.Events
	registry *prometheus.Registry
	svc      *service.ChallengeService
}

func newHarness(t *testing.T, cfg service.Config) *harness {
	t.Helper()
	store := challengetest.NewStore()
	store.SetClock(func() time.Time { return fixedNow })
	uploads := challengetest.NewUploads()
	events := &challengetest.Events{}
	registry := prometheus.NewRegistry()

	svc := service.NewChallengeService(service.Dependencies{
		DB:          store.Provider(),
		Challenges:  store.Challenges(),
		Proposals:   store.Proposals(),
		Submissions: store.Submissions(),
		Uploads:     uploads,
		Events:      events,
		Metrics:     service.NewMetrics(registry),
	}, cfg)
	svc.SetClock(func() time.Time { return fixedNow })

	return &harness{store: store, uploads: uploads, events: events, registry: registry, svc: svc}
}

func file(name, content string) *upload.Payload {
	return &upload.Payload{
		Filename:    name,
		Size:        int64(len(content)),
		ContentType: "application/octet-stream",
		Body:        strings.NewReader(content),
	}
}

func validChallengeInput() service.CreateChallengeInput {
	return service.CreateChallengeInput{
		Title:       "Phone stand with cable routing",
		Category:    "product-design",
		Description: "Printable stand, PLA, no supports",
		Reward:      750000,
		Deadline:    fixedNow.Add(14 * 24 * time.Hour),
		Images:      []upload.Payload{*file("front.png", "png-1"), *file("side.jpg", "jpg-2")},
	}
}

func (h *harness) createChallenge(t *testing.T) int64 {
	t.Helper()
	challenge, err := h.svc.CreateChallenge(context.Background(), challengerA, validChallengeInput())
	if err != nil {
		t.Fatalf("create challenge failed: %v", err)
	}
	return challenge.ID
}

func (h *harness) propose(t *testing.T, caller auth.Caller, challengeID int64) int64 {
	t.Helper()
	proposal, err := h.svc.SubmitProposal(context.Background(), caller, service.SubmitProposalInput{
		ChallengeID: challengeID,
		Message:     "I can deliver STEP and STL within a week",
	})
	if err != nil {
		t.Fatalf("submit proposal failed: %v", err)
	}
	return proposal.ID
}

func (h *harness) submitWork(t *testing.T, caller auth.Caller, challengeID int64, name string) int64 {
	t.Helper()
	submission, err := h.svc.SubmitWork(context.Background(), caller, service.SubmitWorkInput{
		ChallengeID: challengeID,
		File:        file(name, "solid "+name),
		Notes:       "first pass",
	})
	if err != nil {
		t.Fatalf("submit work failed: %v", err)
	}
	return submission.ID
}

func (h *harness) challenge(t *testing.T, id int64) repository.Challenge {
	t.Helper()
	c, ok := h.store.Challenge(id)
	if !ok {
		t.Fatalf("challenge %d not found", id)
	}
	return c
}

func (h *harness) proposal(t *testing.T, id int64) repository.Proposal {
	t.Helper()
	p, ok := h.store.Proposal(id)
	if !ok {
		t.Fatalf("proposal %d not found", id)
	}
	return p
}

func (h *harness) submission(t *testing.T, id int64) repository.Submission {
	t.Helper()
	s, ok := h.store.Submission(id)
	if !ok {
		t.Fatalf("submission %d not found", id)
	}
	return s
}

// assertInvariants checks every challenge in the store: at most one APPROVED proposal, a
// solver exactly when the challenge left OPEN, and that solver authored the approved proposal.
func (h *harness) assertInvariants(t *testing.T) {
	t.Helper()
	for _, c := range h.store.AllChallenges() {
		var approved []repository.Proposal
		for _, p := range h.store.ProposalsOf(c.ID) {
			if p.Status == repository.ProposalStatusApproved {
				approved = append(approved, p)
			}
		}
		if len(approved) > 1 {
			t.Fatalf("challenge %d has %d approved proposals", c.ID, len(approved))
		}
		bound := c.Status == repository.ChallengeStatusInProgress || c.Status.Terminal()
		if bound != (c.SolverID != 0) {
			t.Fatalf("challenge %d: status %s with solver %d", c.ID, c.Status, c.SolverID)
		}
		if len(approved) == 1 && approved[0].AuthorID != c.SolverID {
			t.Fatalf("challenge %d: solver %d but approved author %d", c.ID, c.SolverID, approved[0].AuthorID)
		}
		if c.Status == repository.ChallengeStatusOpen && len(approved) != 0 {
			t.Fatalf("challenge %d is OPEN with an approved proposal", c.ID)
		}
	}
}

func assertCode(t *testing.T, err error, want pkgerrors.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v, got nil", want)
	}
	if got := pkgerrors.GetCode(err); got != want {
		t.Fatalf("expected code %v (%s), got %v: %v", want, want.Message(), got, err)
	}
}

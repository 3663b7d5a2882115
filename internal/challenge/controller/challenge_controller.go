package controller

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kitarekayasa/internal/auth"
	"kitarekayasa/internal/challenge/service"
	"kitarekayasa/internal/upload"
	pkgerrors "kitarekayasa/pkg/errors"
	"kitarekayasa/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// ChallengeController handles challenge lifecycle endpoints.
type ChallengeController struct {
	challengeService *service.ChallengeService
}

// NewChallengeController creates a new ChallengeController.
func NewChallengeController(challengeService *service.ChallengeService) *ChallengeController {
	return &ChallengeController{challengeService: challengeService}
}

// Create handles multipart challenge creation.
func (h *ChallengeController) Create(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.BadRequest(c, "Invalid multipart form")
		return
	}

	reward, err := parseOptionalInt(c.PostForm("reward"))
	if err != nil {
		response.Error(c, pkgerrors.ValidationError("reward", "must be an integer"))
		return
	}
	deadline, err := parseOptionalTime(c.PostForm("deadline"))
	if err != nil {
		response.Error(c, pkgerrors.ValidationError("deadline", "must be an RFC 3339 timestamp"))
		return
	}

	images, closers, err := openFiles(form.File["images"])
	defer closeAll(closers)
	if err != nil {
		response.BadRequest(c, "Invalid image upload")
		return
	}

	challenge, err := h.challengeService.CreateChallenge(c.Request.Context(), auth.CallerFrom(c), service.CreateChallengeInput{
		Title:       c.PostForm("title"),
		Category:    c.PostForm("category"),
		Description: c.PostForm("description"),
		Reward:      reward,
		Deadline:    deadline,
		Images:      images,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toChallengeResponse(c.Request.Context(), h.challengeService, *challenge))
}

// Get returns one challenge with its images.
func (h *ChallengeController) Get(c *gin.Context) {
	challengeID, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid challenge id")
		return
	}

	challenge, err := h.challengeService.GetChallenge(c.Request.Context(), challengeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toChallengeResponse(c.Request.Context(), h.challengeService, *challenge))
}

// List returns a page of challenges.
func (h *ChallengeController) List(c *gin.Context) {
	var query ListChallengesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	page, err := h.challengeService.ListChallenges(c.Request.Context(), service.ListChallengesInput{
		Status:       query.Status,
		Category:     query.Category,
		ChallengerID: query.ChallengerID,
		Page:         query.Page,
		PageSize:     query.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]ChallengeResponse, 0, len(page.Challenges))
	for _, challenge := range page.Challenges {
		items = append(items, toChallengeResponse(c.Request.Context(), h.challengeService, challenge))
	}
	response.SuccessWithPagination(c, items, page.Total, page.Page, page.PageSize)
}

// SubmitProposal handles a multipart bid on a challenge.
func (h *ChallengeController) SubmitProposal(c *gin.Context) {
	challengeID, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid challenge id")
		return
	}

	file, closer, err := optionalFile(c, "file")
	if closer != nil {
		defer closer.Close()
	}
	if err != nil {
		response.BadRequest(c, "Invalid file upload")
		return
	}

	proposal, err := h.challengeService.SubmitProposal(c.Request.Context(), auth.CallerFrom(c), service.SubmitProposalInput{
		ChallengeID: challengeID,
		Message:     c.PostForm("message"),
		File:        file,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toProposalResponse(c.Request.Context(), h.challengeService, *proposal))
}

// ListProposals returns the proposals the caller may see.
func (h *ChallengeController) ListProposals(c *gin.Context) {
	challengeID, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid challenge id")
		return
	}

	proposals, err := h.challengeService.ListProposals(c.Request.Context(), auth.CallerFrom(c), challengeID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]ProposalResponse, 0, len(proposals))
	for _, proposal := range proposals {
		items = append(items, toProposalResponse(c.Request.Context(), h.challengeService, proposal))
	}
	response.Success(c, items)
}

// ApproveProposal approves one proposal and binds its author as solver.
func (h *ChallengeController) ApproveProposal(c *gin.Context) {
	proposalID, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid proposal id")
		return
	}

	result, err := h.challengeService.ApproveProposal(c.Request.Context(), auth.CallerFrom(c), proposalID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, ApproveResponse{
		Proposal:      toProposalResponse(c.Request.Context(), h.challengeService, result.Proposal),
		Challenge:     toChallengeResponse(c.Request.Context(), h.challengeService, result.Challenge),
		RejectedCount: result.RejectedCount,
	})
}

// SubmitWork handles a multipart work delivery.
func (h *ChallengeController) SubmitWork(c *gin.Context) {
	challengeID, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid challenge id")
		return
	}

	file, closer, err := optionalFile(c, "file")
	if closer != nil {
		defer closer.Close()
	}
	if err != nil {
		response.BadRequest(c, "Invalid file upload")
		return
	}

	submission, err := h.challengeService.SubmitWork(c.Request.Context(), auth.CallerFrom(c), service.SubmitWorkInput{
		ChallengeID: challengeID,
		File:        file,
		Notes:       c.PostForm("notes"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toSubmissionResponse(c.Request.Context(), h.challengeService, *submission))
}

// ListSubmissions returns the submission history of a challenge.
func (h *ChallengeController) ListSubmissions(c *gin.Context) {
	challengeID, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid challenge id")
		return
	}

	submissions, err := h.challengeService.ListSubmissions(c.Request.Context(), auth.CallerFrom(c), challengeID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		items = append(items, toSubmissionResponse(c.Request.Context(), h.challengeService, submission))
	}
	response.Success(c, items)
}

// ReviewSubmission records the challenger's decision.
func (h *ChallengeController) ReviewSubmission(c *gin.Context) {
	submissionID, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "Invalid submission id")
		return
	}

	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, pkgerrors.RequiredField("decision"))
		return
	}

	result, err := h.challengeService.ReviewSubmission(c.Request.Context(), auth.CallerFrom(c), service.ReviewSubmissionInput{
		SubmissionID: submissionID,
		Decision:     req.Decision,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, ReviewResponse{
		Submission:      toSubmissionResponse(c.Request.Context(), h.challengeService, result.Submission),
		ChallengeStatus: string(result.ChallengeStatus),
	})
}

func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func parseOptionalInt(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func parseOptionalTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func optionalFile(c *gin.Context, field string) (*upload.Payload, io.Closer, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	payload, closer, err := upload.FromFileHeader(fh)
	if err != nil {
		return nil, nil, err
	}
	return &payload, closer, nil
}

func openFiles(headers []*multipart.FileHeader) ([]upload.Payload, []io.Closer, error) {
	payloads := make([]upload.Payload, 0, len(headers))
	closers := make([]io.Closer, 0, len(headers))
	for _, fh := range headers {
		payload, closer, err := upload.FromFileHeader(fh)
		if err != nil {
			return nil, closers, err
		}
		payloads = append(payloads, payload)
		closers = append(closers, closer)
	}
	return payloads, closers, nil
}

func closeAll(closers []io.Closer) {
	for _, closer := range closers {
		_ = closer.Close()
	}
}

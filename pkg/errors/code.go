package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: User & Auth module errors
// 12000-12999: Challenge module errors
// 13000-13999: Proposal module errors
// 14000-14999: Submission module errors
// 15000-15999: Upload errors
// 16000-16999: Permission errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Unauthorized        ErrorCode = 10004
	Forbidden           ErrorCode = 10005
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008
	Conflict            ErrorCode = 10009

	// Database errors (10100-10199)
	DatabaseError       ErrorCode = 10100
	RecordNotFound      ErrorCode = 10101
	RecordAlreadyExists ErrorCode = 10102
	TransactionFailed   ErrorCode = 10103

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	InvalidValue       ErrorCode = 10302
	RequiredFieldEmpty ErrorCode = 10303

	// ========== User & Auth Errors (11000-11999) ==========

	// Authentication (11000-11099)
	InvalidCredentials    ErrorCode = 11000
	UserNotFound          ErrorCode = 11001
	TokenExpired          ErrorCode = 11003
	TokenInvalid          ErrorCode = 11004
	TokenGenerationFailed ErrorCode = 11005

	// Registration (11100-11199)
	UsernameAlreadyExists ErrorCode = 11100
	EmailAlreadyExists    ErrorCode = 11101
	InvalidUsername       ErrorCode = 11102
	InvalidEmail          ErrorCode = 11103
	InvalidPassword       ErrorCode = 11104
	PasswordTooWeak       ErrorCode = 11105

	// ========== Challenge Errors (12000-12999) ==========

	ChallengeNotFound     ErrorCode = 12000
	ChallengeCreateFailed ErrorCode = 12001
	ChallengeNotOpen      ErrorCode = 12100
	NotChallenger         ErrorCode = 12200

	// ========== Proposal Errors (13000-13999) ==========

	ProposalNotFound   ErrorCode = 13000
	ProposalNotPending ErrorCode = 13100

	// ========== Submission Errors (14000-14999) ==========

	SubmissionNotFound        ErrorCode = 14000
	SubmissionsClosed         ErrorCode = 14100
	SubmissionAlreadyReviewed ErrorCode = 14101
	InvalidDecision           ErrorCode = 14102
	NotSolver                 ErrorCode = 14200

	// ========== Upload Errors (15000-15999) ==========

	UploadFailed       ErrorCode = 15000
	FileTooLarge       ErrorCode = 15100
	FileTypeNotAllowed ErrorCode = 15101

	// ========== Permission Errors (16000-16999) ==========

	PermissionDenied       ErrorCode = 16000
	InsufficientPermission ErrorCode = 16001
	InvalidRole            ErrorCode = 16003
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	Unauthorized:        "Unauthorized access",
	Forbidden:           "Access forbidden",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",
	Conflict:            "Operation conflicts with current state",

	// Database
	DatabaseError:       "Database operation failed",
	RecordNotFound:      "Record not found in database",
	RecordAlreadyExists: "Record already exists",
	TransactionFailed:   "Database transaction failed",

	// Cache
	CacheError: "Cache operation failed",

	// Validation
	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	InvalidValue:       "Invalid value",
	RequiredFieldEmpty: "Required field is empty",

	// User - Authentication
	InvalidCredentials:    "Invalid username or password",
	UserNotFound:          "User not found",
	TokenExpired:          "Token has expired",
	TokenInvalid:          "Invalid token",
	TokenGenerationFailed: "Failed to generate token",

	// User - Registration
	UsernameAlreadyExists: "Username already exists",
	EmailAlreadyExists:    "Email already exists",
	InvalidUsername:       "Invalid username format",
	InvalidEmail:          "Invalid email format",
	InvalidPassword:       "Invalid password format",
	PasswordTooWeak:       "Password is too weak",

	// Challenge
	ChallengeNotFound:     "Challenge not found",
	ChallengeCreateFailed: "Failed to create challenge",
	ChallengeNotOpen:      "Challenge no longer accepting proposals",
	NotChallenger:         "Only the challenger may perform this action",

	// Proposal
	ProposalNotFound:   "Proposal not found",
	ProposalNotPending: "Proposal has already been decided",

	// Submission
	SubmissionNotFound:        "Submission not found",
	SubmissionsClosed:         "Submissions closed",
	SubmissionAlreadyReviewed: "Submission already reviewed",
	InvalidDecision:           "Invalid review decision",
	NotSolver:                 "Only the assigned solver may submit work",

	// Upload
	UploadFailed:       "Failed to store uploaded file",
	FileTooLarge:       "Uploaded file is too large",
	FileTypeNotAllowed: "Uploaded file type is not allowed",

	// Permission
	PermissionDenied:       "Permission denied",
	InsufficientPermission: "Insufficient permission",
	InvalidRole:            "Invalid role",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c >= 11000 && c < 11100: // Authentication errors
		if c == UserNotFound {
			return 404
		}
		return 401
	case c == Unauthorized:
		return 401
	case c == Forbidden, c == NotChallenger, c == NotSolver, c == PermissionDenied, c == InsufficientPermission:
		return 403
	case c == NotFound, c == RecordNotFound, c == ChallengeNotFound, c == ProposalNotFound, c == SubmissionNotFound:
		return 404
	case c == Conflict, c == ChallengeNotOpen, c == ProposalNotPending, c == SubmissionsClosed, c == SubmissionAlreadyReviewed:
		return 409
	case c == UsernameAlreadyExists, c == EmailAlreadyExists, c == RecordAlreadyExists:
		return 409
	case c == TooManyRequests:
		return 429
	case c == ServiceUnavailable:
		return 503
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c >= 11100 && c < 11200, c == InvalidDecision, c == FileTooLarge, c == FileTypeNotAllowed, c == InvalidRole:
		return 400
	case c == InvalidParams:
		return 400
	default:
		return 500
	}
}

// IsClientError reports whether the code describes a caller mistake rather than a server fault.
func (c ErrorCode) IsClientError() bool {
	status := c.HTTPStatus()
	return status >= 400 && status < 500
}

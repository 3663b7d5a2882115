package errors_test

import (
	"errors"
	"fmt"
	"testing"

	. "kitarekayasa/pkg/errors"
)

func TestErrorCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code       ErrorCode
		wantStatus int
	}{
		{Success, 200},
		{InvalidParams, 400},
		{RequiredFieldEmpty, 400},
		{InvalidDecision, 400},
		{FileTooLarge, 400},
		{InvalidRole, 400},
		{Unauthorized, 401},
		{TokenInvalid, 401},
		{InvalidCredentials, 401},
		{Forbidden, 403},
		{NotChallenger, 403},
		{NotSolver, 403},
		{ChallengeNotFound, 404},
		{ProposalNotFound, 404},
		{SubmissionNotFound, 404},
		{UserNotFound, 404},
		{ChallengeNotOpen, 409},
		{SubmissionsClosed, 409},
		{SubmissionAlreadyReviewed, 409},
		{UsernameAlreadyExists, 409},
		{TooManyRequests, 429},
		{DatabaseError, 500},
		{UploadFailed, 500},
		{TransactionFailed, 500},
	}

	for _, tt := range tests {
		t.Run(tt.code.Message(), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.wantStatus {
				t.Errorf("HTTPStatus() = %v, want %v", got, tt.wantStatus)
			}
		})
	}
}

func TestErrorCode_Message(t *testing.T) {
	if got := ChallengeNotOpen.Message(); got != "Challenge no longer accepting proposals" {
		t.Errorf("Message() = %q", got)
	}
	if got := SubmissionsClosed.Message(); got != "Submissions closed" {
		t.Errorf("Message() = %q", got)
	}
	if got := ErrorCode(99999).Message(); got != "Unknown error" {
		t.Errorf("Message() = %q", got)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	wrapped := Wrap(cause, DatabaseError)

	if wrapped.Code != DatabaseError {
		t.Errorf("Code = %v, want %v", wrapped.Code, DatabaseError)
	}
	if !errors.Is(wrapped, cause) {
		t.Error("wrapped error should unwrap to its cause")
	}
	if Wrap(nil, DatabaseError) != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestGetCodeThroughFmtWrapping(t *testing.T) {
	inner := New(ChallengeNotOpen)
	outer := fmt.Errorf("approve proposal: %w", inner)

	if got := GetCode(outer); got != ChallengeNotOpen {
		t.Errorf("GetCode() = %v, want %v", got, ChallengeNotOpen)
	}
	if !Is(outer, ChallengeNotOpen) {
		t.Error("Is() should see codes through fmt wrapping")
	}
	if GetError(outer) != inner {
		t.Error("GetError() should return the wrapped Error")
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{name: "nil error", err: nil, want: Success},
		{name: "custom error", err: New(ProposalNotFound), want: ProposalNotFound},
		{name: "standard error", err: errors.New("boom"), want: InternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.want {
				t.Errorf("GetCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConstructors(t *testing.T) {
	t.Run("RequiredField", func(t *testing.T) {
		err := RequiredField("title")
		if err.Code != RequiredFieldEmpty {
			t.Errorf("Code = %v", err.Code)
		}
		if err.Details["field"] != "title" {
			t.Error("field detail not set")
		}
		if err.Error() != "title is required" {
			t.Errorf("Error() = %q", err.Error())
		}
	})

	t.Run("ConflictError", func(t *testing.T) {
		err := ConflictError(SubmissionsClosed, "")
		if err.Error() != SubmissionsClosed.Message() {
			t.Errorf("Error() = %q", err.Error())
		}
		err = ConflictError(ChallengeNotOpen, "challenge 7 is DONE")
		if err.Error() != "challenge 7 is DONE" {
			t.Errorf("Error() = %q", err.Error())
		}
	})

	t.Run("ValidationError", func(t *testing.T) {
		err := ValidationError("decision", "unsupported value")
		if err.Code != ValidationFailed || err.Details["reason"] != "unsupported value" {
			t.Errorf("unexpected error: %+v", err)
		}
	})

	t.Run("InternalError", func(t *testing.T) {
		if err := InternalError(nil); err.Code != InternalServerError || err.Err != nil {
			t.Errorf("unexpected error: %+v", err)
		}
		cause := errors.New("disk full")
		if err := InternalError(cause); !errors.Is(err, cause) {
			t.Error("cause not preserved")
		}
	})

	t.Run("IsClientError", func(t *testing.T) {
		if !NotSolver.IsClientError() {
			t.Error("NotSolver should be a client error")
		}
		if DatabaseError.IsClientError() {
			t.Error("DatabaseError should not be a client error")
		}
	})
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"kitarekayasa/internal/common/db"
)

type SubmissionRepository interface {
	Create(ctx context.Context, tx db.Transaction, submission *Submission) (int64, error)
	GetByID(ctx context.Context, tx db.Transaction, submissionID int64) (*Submission, error)
	// ListByChallenge returns the append log of a challenge, oldest first.
	ListByChallenge(ctx context.Context, tx db.Transaction, challengeID int64) ([]Submission, error)
	// Review sets the decision on a PENDING submission. ErrStatusConflict if it was already reviewed.
	Review(ctx context.Context, tx db.Transaction, submissionID int64, status SubmissionStatus, reviewedAt time.Time) error
}

type MySQLSubmissionRepository struct {
	dbProvider db.Provider
}

func NewSubmissionRepository(provider db.Provider) SubmissionRepository {
	return &MySQLSubmissionRepository{dbProvider: provider}
}

const submissionColumns = "id, challenge_id, author_id, file_ref, notes, status, created_at, reviewed_at"

func (r *MySQLSubmissionRepository) Create(ctx context.Context, tx db.Transaction, submission *Submission) (int64, error) {
	if submission == nil {
		return 0, errors.New("submission is nil")
	}
	if submission.Status == "" {
		submission.Status = SubmissionStatusPending
	}
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return 0, err
	}
	query := "INSERT INTO submissions (challenge_id, author_id, file_ref, notes, status) VALUES (?, ?, ?, ?, ?)"
	result, err := querier.Exec(ctx, query,
		submission.ChallengeID,
		submission.AuthorID,
		submission.FileRef,
		nullString(submission.Notes),
		string(submission.Status),
	)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	submission.ID = id
	return id, nil
}

func (r *MySQLSubmissionRepository) GetByID(ctx context.Context, tx db.Transaction, submissionID int64) (*Submission, error) {
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return nil, err
	}
	submission, err := scanSubmission(querier.QueryRow(ctx, "SELECT "+submissionColumns+" FROM submissions WHERE id = ?", submissionID))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	return submission, nil
}

func (r *MySQLSubmissionRepository) ListByChallenge(ctx context.Context, tx db.Transaction, challengeID int64) ([]Submission, error) {
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return nil, err
	}
	rows, err := querier.Query(ctx,
		"SELECT "+submissionColumns+" FROM submissions WHERE challenge_id = ? ORDER BY created_at ASC, id ASC",
		challengeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var submissions []Submission
	for rows.Next() {
		submission, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, *submission)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *MySQLSubmissionRepository) Review(ctx context.Context, tx db.Transaction, submissionID int64, status SubmissionStatus, reviewedAt time.Time) error {
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return err
	}
	at := reviewedAt.UTC()
	result, err := querier.Exec(ctx,
		"UPDATE submissions SET status = ?, reviewed_at = ? WHERE id = ? AND status = ?",
		string(status), nullTime(&at), submissionID, string(SubmissionStatusPending))
	if err != nil {
		return err
	}
	return expectOneRow(result.RowsAffected())
}

func scanSubmission(scanner db.Scanner) (*Submission, error) {
	var submission Submission
	var notes sql.NullString
	var status string
	var reviewedAt sql.NullTime
	if err := scanner.Scan(
		&submission.ID,
		&submission.ChallengeID,
		&submission.AuthorID,
		&submission.FileRef,
		&notes,
		&status,
		&submission.CreatedAt,
		&reviewedAt,
	); err != nil {
		return nil, err
	}
	submission.Notes = notes.String
	submission.Status = SubmissionStatus(status)
	if reviewedAt.Valid {
		t := reviewedAt.Time
		submission.ReviewedAt = &t
	}
	return &submission, nil
}

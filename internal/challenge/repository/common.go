package repository

import (
	"database/sql"
	"errors"
	"strconv"
	"time"
)

var (
	ErrChallengeNotFound  = errors.New("challenge not found")
	ErrProposalNotFound   = errors.New("proposal not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrStatusConflict means a conditional status update matched no row.
	ErrStatusConflict = errors.New("status changed concurrently")
)

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}

func fmtInt64(value int64) string {
	return strconv.FormatInt(value, 10)
}

func expectOneRow(affected int64, err error) error {
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrStatusConflict
	}
	return nil
}

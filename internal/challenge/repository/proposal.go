package repository

import (
	"context"
	"database/sql"
	"errors"

	"kitarekayasa/internal/common/db"
)

type ProposalRepository interface {
	Create(ctx context.Context, tx db.Transaction, proposal *Proposal) (int64, error)
	GetByID(ctx context.Context, tx db.Transaction, proposalID int64) (*Proposal, error)
	// ListByChallenge returns proposals in creation order; authorID > 0 restricts to one author.
	ListByChallenge(ctx context.Context, tx db.Transaction, challengeID, authorID int64) ([]Proposal, error)
	// Approve flips a PENDING proposal to APPROVED. ErrStatusConflict if it was not PENDING.
	Approve(ctx context.Context, tx db.Transaction, proposalID int64) error
	// RejectSiblings rejects every PENDING proposal of challengeID except keepID.
	RejectSiblings(ctx context.Context, tx db.Transaction, challengeID, keepID int64) (int64, error)
}

type MySQLProposalRepository struct {
	dbProvider db.Provider
}

func NewProposalRepository(provider db.Provider) ProposalRepository {
	return &MySQLProposalRepository{dbProvider: provider}
}

const proposalColumns = "id, challenge_id, author_id, message, file_ref, status, created_at, updated_at"

func (r *MySQLProposalRepository) Create(ctx context.Context, tx db.Transaction, proposal *Proposal) (int64, error) {
	if proposal == nil {
		return 0, errors.New("proposal is nil")
	}
	if proposal.Status == "" {
		proposal.Status = ProposalStatusPending
	}
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return 0, err
	}
	query := "INSERT INTO proposals (challenge_id, author_id, message, file_ref, status) VALUES (?, ?, ?, ?, ?)"
	result, err := querier.Exec(ctx, query,
		proposal.ChallengeID,
		proposal.AuthorID,
		proposal.Message,
		nullString(proposal.FileRef),
		string(proposal.Status),
	)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	proposal.ID = id
	return id, nil
}

func (r *MySQLProposalRepository) GetByID(ctx context.Context, tx db.Transaction, proposalID int64) (*Proposal, error) {
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return nil, err
	}
	proposal, err := scanProposal(querier.QueryRow(ctx, "SELECT "+proposalColumns+" FROM proposals WHERE id = ?", proposalID))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrProposalNotFound
		}
		return nil, err
	}
	return proposal, nil
}

func (r *MySQLProposalRepository) ListByChallenge(ctx context.Context, tx db.Transaction, challengeID, authorID int64) ([]Proposal, error) {
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return nil, err
	}
	query := "SELECT " + proposalColumns + " FROM proposals WHERE challenge_id = ?"
	args := []interface{}{challengeID}
	if authorID > 0 {
		query += " AND author_id = ?"
		args = append(args, authorID)
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := querier.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var proposals []Proposal
	for rows.Next() {
		proposal, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, *proposal)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return proposals, nil
}

func (r *MySQLProposalRepository) Approve(ctx context.Context, tx db.Transaction, proposalID int64) error {
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return err
	}
	result, err := querier.Exec(ctx,
		"UPDATE proposals SET status = ? WHERE id = ? AND status = ?",
		string(ProposalStatusApproved), proposalID, string(ProposalStatusPending))
	if err != nil {
		return err
	}
	return expectOneRow(result.RowsAffected())
}

func (r *MySQLProposalRepository) RejectSiblings(ctx context.Context, tx db.Transaction, challengeID, keepID int64) (int64, error) {
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return 0, err
	}
	result, err := querier.Exec(ctx,
		"UPDATE proposals SET status = ? WHERE challenge_id = ? AND id <> ? AND status = ?",
		string(ProposalStatusRejected), challengeID, keepID, string(ProposalStatusPending))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanProposal(scanner db.Scanner) (*Proposal, error) {
	var proposal Proposal
	var fileRef sql.NullString
	var status string
	if err := scanner.Scan(
		&proposal.ID,
		&proposal.ChallengeID,
		&proposal.AuthorID,
		&proposal.Message,
		&fileRef,
		&status,
		&proposal.CreatedAt,
		&proposal.UpdatedAt,
	); err != nil {
		return nil, err
	}
	proposal.FileRef = fileRef.String
	proposal.Status = ProposalStatus(status)
	return &proposal, nil
}

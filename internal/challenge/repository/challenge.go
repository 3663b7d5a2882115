package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"kitarekayasa/internal/common/cache"
	"kitarekayasa/internal/common/db"
)

const (
	defaultChallengeDetailTTL      = 10 * time.Minute
	defaultChallengeDetailEmptyTTL = 30 * time.Second
	challengeDetailKeyPrefix       = "challenge:detail:"
)

type ChallengeRepository interface {
	Create(ctx context.Context, tx db.Transaction, challenge *Challenge) (int64, error)
	AddImages(ctx context.Context, tx db.Transaction, challengeID int64, refs []string) error
	// GetByID returns the challenge with its images; reads outside a transaction go through the cache.
	GetByID(ctx context.Context, tx db.Transaction, challengeID int64) (*Challenge, error)
	// GetForUpdate locks the challenge row for the rest of tx.
	GetForUpdate(ctx context.Context, tx db.Transaction, challengeID int64) (*Challenge, error)
	List(ctx context.Context, tx db.Transaction, filter ListFilter) ([]Challenge, int64, error)
	// AssignSolver moves an OPEN challenge to IN_PROGRESS. ErrStatusConflict if it was not OPEN.
	AssignSolver(ctx context.Context, tx db.Transaction, challengeID, solverID int64) error
	// MarkDone moves an IN_PROGRESS challenge to DONE. ErrStatusConflict if it was not IN_PROGRESS.
	MarkDone(ctx context.Context, tx db.Transaction, challengeID int64) error
	InvalidateCache(ctx context.Context, challengeID int64)
}

type MySQLChallengeRepository struct {
	dbProvider db.Provider
	cache      cache.BasicOps
	ttl        time.Duration
	emptyTTL   time.Duration
}

func NewChallengeRepository(provider db.Provider, cacheClient cache.BasicOps) ChallengeRepository {
	return NewChallengeRepositoryWithTTL(provider, cacheClient, defaultChallengeDetailTTL, defaultChallengeDetailEmptyTTL)
}

func NewChallengeRepositoryWithTTL(provider db.Provider, cacheClient cache.BasicOps, ttl, emptyTTL time.Duration) ChallengeRepository {
	if ttl <= 0 {
		ttl = defaultChallengeDetailTTL
	}
	if emptyTTL <= 0 {
		emptyTTL = defaultChallengeDetailEmptyTTL
	}
	return &MySQLChallengeRepository{
		dbProvider: provider,
		cache:      cacheClient,
		ttl:        ttl,
		emptyTTL:   emptyTTL,
	}
}

const challengeColumns = "id, title, category, description, reward, deadline, status, challenger_id, solver_id, created_at, updated_at"

func (r *MySQLChallengeRepository) Create(ctx context.Context, tx db.Transaction, challenge *Challenge) (int64, error) {
	if challenge == nil {
		return 0, errors.New("challenge is nil")
	}
	if challenge.Status == "" {
		challenge.Status = ChallengeStatusOpen
	}

	query := `
		INSERT INTO challenges (title, category, description, reward, deadline, status, challenger_id, solver_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return 0, err
	}
	result, err := querier.Exec(ctx, query,
		challenge.Title,
		challenge.Category,
		challenge.Description,
		challenge.Reward,
		challenge.Deadline.UTC(),
		string(challenge.Status),
		challenge.ChallengerID,
		nullInt64(challenge.SolverID),
	)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	challenge.ID = id
	return id, nil
}

func (r *MySQLChallengeRepository) AddImages(ctx context.Context, tx db.Transaction, challengeID int64, refs []string) error {
	if len(refs) == 0 {
		return nil
	}
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return err
	}
	placeholders := make([]string, 0, len(refs))
	args := make([]interface{}, 0, len(refs)*3)
	for i, ref := range refs {
		placeholders = append(placeholders, "(?, ?, ?)")
		args = append(args, challengeID, ref, i)
	}
	query := "INSERT INTO challenge_images (challenge_id, image_ref, position) VALUES " + strings.Join(placeholders, ", ")
	_, err = querier.Exec(ctx, query, args...)
	return err
}

func (r *MySQLChallengeRepository) GetByID(ctx context.Context, tx db.Transaction, challengeID int64) (*Challenge, error) {
	if r.cache != nil && tx == nil {
		challenge, err := cache.GetWithCached[*Challenge](
			ctx,
			r.cache,
			challengeDetailKey(challengeID),
			cache.JitterTTL(r.ttl),
			cache.JitterTTL(r.emptyTTL),
			func(c *Challenge) bool { return c == nil },
			marshalChallenge,
			unmarshalChallenge,
			func(ctx context.Context) (*Challenge, error) {
				challenge, err := r.getDetailFromDB(ctx, nil, challengeID)
				if err != nil {
					if errors.Is(err, ErrChallengeNotFound) {
						return nil, nil
					}
					return nil, err
				}
				return challenge, nil
			},
		)
		if err != nil {
			return nil, err
		}
		if challenge == nil {
			return nil, ErrChallengeNotFound
		}
		return challenge, nil
	}
	return r.getDetailFromDB(ctx, tx, challengeID)
}

func (r *MySQLChallengeRepository) GetForUpdate(ctx context.Context, tx db.Transaction, challengeID int64) (*Challenge, error) {
	if tx == nil {
		return nil, errors.New("GetForUpdate requires a transaction")
	}
	row := tx.QueryRow(ctx, "SELECT "+challengeColumns+" FROM challenges WHERE id = ? FOR UPDATE", challengeID)
	challenge, err := scanChallenge(row)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrChallengeNotFound
		}
		return nil, err
	}
	return challenge, nil
}

func (r *MySQLChallengeRepository) List(ctx context.Context, tx db.Transaction, filter ListFilter) ([]Challenge, int64, error) {
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return nil, 0, err
	}

	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 5)
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.ChallengerID > 0 {
		conditions = append(conditions, "challenger_id = ?")
		args = append(args, filter.ChallengerID)
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := querier.QueryRow(ctx, "SELECT COUNT(*) FROM challenges"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + challengeColumns + " FROM challenges" + where + " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	rows, err := querier.Query(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	challenges := make([]Challenge, 0, filter.Limit)
	for rows.Next() {
		challenge, err := scanChallenge(rows)
		if err != nil {
			return nil, 0, err
		}
		challenges = append(challenges, *challenge)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return challenges, total, nil
}

func (r *MySQLChallengeRepository) AssignSolver(ctx context.Context, tx db.Transaction, challengeID, solverID int64) error {
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return err
	}
	query := "UPDATE challenges SET status = ?, solver_id = ? WHERE id = ? AND status = ? AND solver_id IS NULL"
	result, err := querier.Exec(ctx, query,
		string(ChallengeStatusInProgress), solverID, challengeID, string(ChallengeStatusOpen))
	if err != nil {
		return err
	}
	return expectOneRow(result.RowsAffected())
}

func (r *MySQLChallengeRepository) MarkDone(ctx context.Context, tx db.Transaction, challengeID int64) error {
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return err
	}
	query := "UPDATE challenges SET status = ? WHERE id = ? AND status = ?"
	result, err := querier.Exec(ctx, query,
		string(ChallengeStatusDone), challengeID, string(ChallengeStatusInProgress))
	if err != nil {
		return err
	}
	return expectOneRow(result.RowsAffected())
}

func (r *MySQLChallengeRepository) InvalidateCache(ctx context.Context, challengeID int64) {
	if r.cache == nil {
		return
	}
	_ = r.cache.Del(ctx, challengeDetailKey(challengeID))
}

func (r *MySQLChallengeRepository) getDetailFromDB(ctx context.Context, tx db.Transaction, challengeID int64) (*Challenge, error) {
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return nil, err
	}
	challenge, err := scanChallenge(querier.QueryRow(ctx, "SELECT "+challengeColumns+" FROM challenges WHERE id = ?", challengeID))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrChallengeNotFound
		}
		return nil, err
	}

	rows, err := querier.Query(ctx,
		"SELECT id, challenge_id, image_ref, position FROM challenge_images WHERE challenge_id = ? ORDER BY position ASC, id ASC",
		challengeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var image Image
		if err := rows.Scan(&image.ID, &image.ChallengeID, &image.Ref, &image.Position); err != nil {
			return nil, err
		}
		challenge.Images = append(challenge.Images, image)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return challenge, nil
}

func challengeDetailKey(challengeID int64) string {
	return challengeDetailKeyPrefix + fmtInt64(challengeID)
}

func marshalChallenge(challenge *Challenge) string {
	payload, err := json.Marshal(challenge)
	if err != nil {
		return ""
	}
	return string(payload)
}

func unmarshalChallenge(data string) (*Challenge, error) {
	if data == "" {
		return nil, nil
	}
	var challenge Challenge
	if err := json.Unmarshal([]byte(data), &challenge); err != nil {
		return nil, err
	}
	return &challenge, nil
}

func scanChallenge(scanner db.Scanner) (*Challenge, error) {
	var challenge Challenge
	var status string
	var solverID sql.NullInt64
	if err := scanner.Scan(
		&challenge.ID,
		&challenge.Title,
		&challenge.Category,
		&challenge.Description,
		&challenge.Reward,
		&challenge.Deadline,
		&status,
		&challenge.ChallengerID,
		&solverID,
		&challenge.CreatedAt,
		&challenge.UpdatedAt,
	); err != nil {
		return nil, err
	}
	challenge.Status = ChallengeStatus(status)
	if solverID.Valid {
		challenge.SolverID = solverID.Int64
	}
	return &challenge, nil
}

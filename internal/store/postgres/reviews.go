package postgres

import (
	"context"
	"database/sql"

	"lotmarket/internal/database/dberr"
	"lotmarket/internal/domain"
	"lotmarket/internal/policy"
)

const reviewColumns = `review_id, contract_id, reviewer_id, reviewed_user_id, rating, comment, created_at`

func scanReview(row rowScanner) (domain.Review, error) {
	var (
		r       domain.Review
		comment sql.NullString
	)
	err := row.Scan(&r.ReviewID, &r.ContractID, &r.ReviewerID, &r.ReviewedUserID, &r.Rating, &comment, &r.CreatedAt)
	if err != nil {
		return domain.Review{}, err
	}
	r.Comment = stringPtr(comment)
	return r, nil
}

func (s *Store) ListReviews(ctx context.Context, scope policy.Scope) ([]domain.Review, error) {
	where, args := scopeClause(scope, nil, "reviewer_id", "reviewed_user_id")
	rows, err := s.db.QueryContext(ctx, `SELECT `+reviewColumns+` FROM reviews`+where+` ORDER BY review_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]domain.Review, 0)
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

func (s *Store) GetReview(ctx context.Context, id int64) (domain.Review, error) {
	r, err := scanReview(s.db.QueryRowContext(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE review_id = $1`, id))
	if err != nil {
		return domain.Review{}, dberr.Translate(err)
	}
	return r, nil
}

func (s *Store) InsertReview(ctx context.Context, in domain.ReviewInput) (int64, error) {
	const q = `INSERT INTO reviews (contract_id, reviewer_id, reviewed_user_id, rating, comment)
	                VALUES ($1, $2, $3, $4, $5)
	             RETURNING review_id`
	return insertReturningID(ctx, s.db, q, in.ContractID, in.ReviewerID, in.ReviewedUserID, in.Rating, nullString(in.Comment))
}

func (s *Store) UpdateReview(ctx context.Context, id int64, in domain.ReviewInput) (int64, error) {
	const q = `UPDATE reviews
	              SET contract_id = $2, reviewer_id = $3, reviewed_user_id = $4, rating = $5, comment = $6
	            WHERE review_id = $1`
	return rowsAffected(s.db.ExecContext(ctx, q, id, in.ContractID, in.ReviewerID, in.ReviewedUserID,
		in.Rating, nullString(in.Comment)))
}

func (s *Store) DeleteReview(ctx context.Context, id int64) (int64, error) {
	return rowsAffected(s.db.ExecContext(ctx, `DELETE FROM reviews WHERE review_id = $1`, id))
}

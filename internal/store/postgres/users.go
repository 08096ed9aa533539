package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"lotmarket/internal/database/dberr"
	"lotmarket/internal/domain"
)

const userColumns = `user_id, username, email, password_hash, roles, is_provider, rating,
	company_id, language, created_at`

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u         domain.User
		roles     []byte
		rating    sql.NullInt16
		companyID sql.NullInt64
	)
	err := row.Scan(&u.UserID, &u.Username, &u.Email, &u.PasswordHash, &roles, &u.IsProvider,
		&rating, &companyID, &u.Language, &u.CreatedAt)
	if err != nil {
		return domain.User{}, err
	}
	if err := json.Unmarshal(roles, &u.Roles); err != nil {
		return domain.User{}, fmt.Errorf("decode roles of user %d: %w", u.UserID, err)
	}
	if rating.Valid {
		r := int(rating.Int16)
		u.Rating = &r
	}
	u.CompanyID = int64Ptr(companyID)
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

func (s *Store) GetUser(ctx context.Context, id int64) (domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1`, id))
	if err != nil {
		return domain.User{}, dberr.Translate(err)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return domain.User{}, dberr.Translate(err)
	}
	return u, nil
}

func (s *Store) InsertUser(ctx context.Context, u domain.User) (int64, error) {
	roles := u.Roles
	if len(roles) == 0 {
		roles = []domain.Role{domain.RoleUser}
	}
	encoded, err := json.Marshal(roles)
	if err != nil {
		return 0, err
	}
	var rating sql.NullInt16
	if u.Rating != nil {
		rating = sql.NullInt16{Int16: int16(*u.Rating), Valid: true}
	}
	const q = `INSERT INTO users (username, email, password_hash, roles, is_provider, rating, company_id, language)
	                VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	             RETURNING user_id`
	return insertReturningID(ctx, s.db, q, u.Username, u.Email, u.PasswordHash, string(encoded),
		u.IsProvider, rating, nullInt64(u.CompanyID), u.Language)
}

func (s *Store) UpdateUser(ctx context.Context, id int64, in domain.UserUpdate) (int64, error) {
	const q = `UPDATE users SET username = $2, email = $3, language = $4 WHERE user_id = $1`
	return rowsAffected(s.db.ExecContext(ctx, q, id, in.Username, in.Email, in.Language))
}

func (s *Store) DeleteUser(ctx context.Context, id int64) (int64, error) {
	return rowsAffected(s.db.ExecContext(ctx, `DELETE FROM users WHERE user_id = $1`, id))
}

func (s *Store) CompanyIDOf(ctx context.Context, userID int64) (int64, bool, error) {
	var companyID sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT company_id FROM users WHERE user_id = $1`, userID).Scan(&companyID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return companyID.Int64, companyID.Valid, nil
}

func (s *Store) ListFavoriteLots(ctx context.Context, userID int64) ([]domain.Lot, error) {
	return queryLots(ctx, s.db, `
		SELECT `+prefixed("l.", lotColumns)+`
		  FROM user_favorite_lots f
		  JOIN lots l ON l.lot_id = f.lot_id
		 WHERE f.user_id = $1
		 ORDER BY l.lot_id`, userID)
}

func (s *Store) AddFavoriteLot(ctx context.Context, userID, lotID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_favorite_lots (user_id, lot_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, userID, lotID)
	return dberr.Translate(err)
}

func (s *Store) RemoveFavoriteLot(ctx context.Context, userID, lotID int64) (int64, error) {
	return rowsAffected(s.db.ExecContext(ctx,
		`DELETE FROM user_favorite_lots WHERE user_id = $1 AND lot_id = $2`, userID, lotID))
}

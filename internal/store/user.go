package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/calebdunn/hearth/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := scanner.Scan(&u.ID, &u.Name, &u.Email, &u.PersonalPinHash,
		&u.ProfileType, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userCols = `id, name, email, personal_pin_hash, profile_type, created_at, updated_at`

func (s *UserStore) Create(ctx context.Context, name, email, personalPinHash, profileType string) (*model.User, error) {
	if profileType == "" {
		profileType = "standard"
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO users (name, email, personal_pin_hash, profile_type) VALUES (?, ?, ?, ?)`,
		name, email, personalPinHash, profileType)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) UpdatePersonalPin(ctx context.Context, id int64, personalPinHash string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET personal_pin_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		personalPinHash, id)
	if err != nil {
		return fmt.Errorf("update personal pin: %w", err)
	}
	return nil
}

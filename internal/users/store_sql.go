package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	dbx "github.com/mind-engage/testme/internal/db"
	"golang.org/x/crypto/bcrypt"
)

type Store struct {
	db   *sql.DB
	cost int
}

func NewStore(db *sql.DB) *Store { return &Store{db: db, cost: bcrypt.DefaultCost} }

// WithCost overrides the bcrypt cost (tests use bcrypt.MinCost).
func (s *Store) WithCost(cost int) *Store {
	s.cost = cost
	return s
}

const userCols = `id, username, email, is_staff, is_superuser, date_joined`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var (
		u     User
		email sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Username, &email, &u.IsStaff, &u.IsSuperuser, &u.DateJoined); err != nil {
		return User{}, err
	}
	if email.Valid {
		e := email.String
		u.Email = &e
	}
	return u, nil
}

func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

// conflict maps a unique violation on users onto the field it hit.
func conflict(err error) error {
	if !dbx.IsUniqueViolation(err) {
		return err
	}
	if strings.Contains(strings.ToLower(err.Error()), "email") {
		return ErrEmailInUse
	}
	return ErrUsernameUnavailable
}

func (s *Store) Create(ctx context.Context, nu NewUser) (User, error) {
	if err := Validate(nu); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(nu.Password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	u := User{
		Username:    nu.Username,
		Email:       normalizeEmail(nu.Email),
		IsStaff:     nu.IsStaff,
		IsSuperuser: nu.IsSuperuser,
		DateJoined:  time.Now().Unix(),
	}
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO users (username, email, password_hash, is_staff, is_superuser, date_joined)
		 VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		u.Username, nullString(u.Email), string(hash), u.IsStaff, u.IsSuperuser, u.DateJoined).Scan(&u.ID)
	if err != nil {
		return User{}, conflict(err)
	}
	return u, nil
}

func (s *Store) Get(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (s *Store) List(ctx context.Context, limit, offset int) ([]User, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = math.MaxInt32
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userCols+` FROM users ORDER BY id ASC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

func (s *Store) Update(ctx context.Context, id int64, up UserUpdate) (User, error) {
	if err := Validate(up); err != nil {
		return User{}, err
	}
	err := dbx.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		var one int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id=$1`, id).Scan(&one); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if up.Username != nil {
			if _, err := tx.ExecContext(ctx, `UPDATE users SET username=$1 WHERE id=$2`, *up.Username, id); err != nil {
				return conflict(err)
			}
		}
		if up.Email != nil {
			if _, err := tx.ExecContext(ctx, `UPDATE users SET email=$1 WHERE id=$2`, nullString(normalizeEmail(*up.Email)), id); err != nil {
				return conflict(err)
			}
		}
		if up.Password != nil {
			hash, err := bcrypt.GenerateFromPassword([]byte(*up.Password), s.cost)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `UPDATE users SET password_hash=$1 WHERE id=$2`, string(hash), id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return s.Get(ctx, id)
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Authenticate checks username and password; both failure modes return ErrInvalidCredentials.
func (s *Store) Authenticate(ctx context.Context, username, password string) (User, error) {
	var hash string
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+`, password_hash FROM users WHERE username=$1`, username)
	var (
		u     User
		email sql.NullString
	)
	err := row.Scan(&u.ID, &u.Username, &email, &u.IsStaff, &u.IsSuperuser, &u.DateJoined, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	if email.Valid {
		e := email.String
		u.Email = &e
	}
	return u, nil
}

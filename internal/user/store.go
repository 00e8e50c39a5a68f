package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// ErrNotFound is returned when no user matches the lookup.
var ErrNotFound = errors.New("user not found")

// Store provides database operations for users.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new user store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const userColumns = `u.id, u.name, u.email, u.password_hash, u.role, u.manager_id, m.name, u.created_at`

// scanUser scans a user row including the joined manager name.
func scanUser(scan func(dest ...any) error) (*User, error) {
	u := &User{}
	var role string
	err := scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.ManagerID, &u.ManagerName, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	parsed, ok := ParseRole(role)
	if !ok {
		// Unknown roles are kept verbatim; authorization denies them.
		parsed = Role(strings.ToLower(role))
	}
	u.Role = parsed
	return u, nil
}

// GetByEmail retrieves a user by email address, with the manager's name
// resolved when the user has one.
func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, err := scanUser(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT `+userColumns+`
			 FROM users u LEFT JOIN users m ON u.manager_id = m.id
			 WHERE u.email = $1`, email,
		).Scan(dest...)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return u, nil
}

// GetByID retrieves a user by primary key, with the manager's name resolved.
func (s *Store) GetByID(ctx context.Context, id int64) (*User, error) {
	u, err := scanUser(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT `+userColumns+`
			 FROM users u LEFT JOIN users m ON u.manager_id = m.id
			 WHERE u.id = $1`, id,
		).Scan(dest...)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("getting user by id: %w", err)
	}
	return u, nil
}

// IsSubordinate reports whether userID is a direct report of managerID.
// The check is not transitive: only manager_id = managerID counts.
func (s *Store) IsSubordinate(ctx context.Context, userID, managerID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND manager_id = $2)`,
		userID, managerID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking subordinate relation: %w", err)
	}
	return exists, nil
}

// ListSubordinateIDs returns the ids of all direct reports of managerID.
func (s *Store) ListSubordinateIDs(ctx context.Context, managerID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM users WHERE manager_id = $1 ORDER BY id`, managerID)
	if err != nil {
		return nil, fmt.Errorf("listing subordinates: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning subordinate id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Create inserts a new user with a bcrypt-hashed password. Used by seeding.
func (s *Store) Create(ctx context.Context, in CreateUserInput) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	u, err := scanUser(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`WITH inserted AS (
			   INSERT INTO users (name, email, password_hash, role, manager_id)
			   VALUES ($1, $2, $3, $4, $5)
			   ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name
			   RETURNING id, name, email, password_hash, role, manager_id, created_at
			 )
			 SELECT u.id, u.name, u.email, u.password_hash, u.role, u.manager_id, m.name, u.created_at
			 FROM inserted u LEFT JOIN users m ON u.manager_id = m.id`,
			in.Name, in.Email, string(hash), strings.ToUpper(string(in.Role)), in.ManagerID,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return u, nil
}

// CheckPassword verifies a plaintext password against the user's stored hash.
func CheckPassword(u *User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

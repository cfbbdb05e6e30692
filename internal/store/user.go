package store

import (
	"database/sql"
	"fmt"

	"github.com/whodeedit/whodeedit/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var worldIDVerifiedAt, lastLogin sql.NullTime

	err := scanner.Scan(
		&u.ID, &u.WalletAddress, &u.Name, &u.ProfileImage, &u.Role,
		&u.WorldIDVerified, &worldIDVerifiedAt, &u.WalletVerified,
		&u.IsBanned, &u.BannedReason, &lastLogin, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if worldIDVerifiedAt.Valid {
		u.WorldIDVerifiedAt = &worldIDVerifiedAt.Time
	}
	if lastLogin.Valid {
		u.LastLogin = &lastLogin.Time
	}
	return &u, nil
}

const userCols = `id, wallet_address, name, profile_image, role, world_id_verified, world_id_verified_at, wallet_verified, is_banned, banned_reason, last_login, created_at, updated_at`

// Create inserts a new user for a wallet address. First sign-in marks
// the wallet and World ID as verified and assigns the lister role.
func (s *UserStore) Create(walletAddress string) (*model.User, error) {
	result, err := s.db.Exec(
		`INSERT INTO users (wallet_address, role, world_id_verified, world_id_verified_at, wallet_verified, last_login)
		 VALUES (?, 'lister', 1, datetime('now'), 1, datetime('now'))`,
		walletAddress,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByWallet(walletAddress string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE wallet_address = ?`, walletAddress)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by wallet: %w", err)
	}
	return u, nil
}

// RecordSignIn refreshes verification flags and last_login for a
// returning wallet.
func (s *UserStore) RecordSignIn(id int64) (*model.User, error) {
	_, err := s.db.Exec(
		`UPDATE users SET world_id_verified = 1,
		        world_id_verified_at = datetime('now'),
		        wallet_verified = 1,
		        last_login = datetime('now'),
		        updated_at = datetime('now')
		 WHERE id = ?`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("record sign in: %w", err)
	}
	return s.GetByID(id)
}

// TouchLastLogin updates last_login without touching anything else.
func (s *UserStore) TouchLastLogin(id int64) error {
	_, err := s.db.Exec(`UPDATE users SET last_login = datetime('now') WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

// UpdateProfile sets the user-editable fields. Nil pointers leave the
// current value unchanged.
func (s *UserStore) UpdateProfile(id int64, name, profileImage *string) (*model.User, error) {
	if name != nil {
		if _, err := s.db.Exec(`UPDATE users SET name = ?, updated_at = datetime('now') WHERE id = ?`, *name, id); err != nil {
			return nil, fmt.Errorf("update name: %w", err)
		}
	}
	if profileImage != nil {
		if _, err := s.db.Exec(`UPDATE users SET profile_image = ?, updated_at = datetime('now') WHERE id = ?`, *profileImage, id); err != nil {
			return nil, fmt.Errorf("update profile image: %w", err)
		}
	}
	return s.GetByID(id)
}

// AppendActivity adds an entry to the user's activity log. Details is a
// JSON-encoded object, or empty.
func (s *UserStore) AppendActivity(userID int64, action, details string) error {
	_, err := s.db.Exec(
		`INSERT INTO activity_log (user_id, action, details) VALUES (?, ?, ?)`,
		userID, action, details,
	)
	if err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

// ListActivity returns the user's activity log, newest first.
func (s *UserStore) ListActivity(userID int64) ([]model.ActivityEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, action, details, created_at FROM activity_log WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var entries []model.ActivityEntry
	for rows.Next() {
		var e model.ActivityEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SetRole changes a user's role.
func (s *UserStore) SetRole(id int64, role string) error {
	_, err := s.db.Exec(`UPDATE users SET role = ?, updated_at = datetime('now') WHERE id = ?`, role, id)
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	return nil
}

package model

import "time"

// Roles a user can hold. Admin-level roles gate the verification routes.
const (
	RoleLister     = "lister"
	RoleAgent      = "agent"
	RoleBuyer      = "buyer"
	RoleRenter     = "renter"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

type User struct {
	ID                int64      `json:"id"`
	WalletAddress     string     `json:"wallet_address"`
	Name              string     `json:"name"`
	ProfileImage      string     `json:"profile_image"`
	Role              string     `json:"role"`
	WorldIDVerified   bool       `json:"world_id_verified"`
	WorldIDVerifiedAt *time.Time `json:"world_id_verified_at"`
	WalletVerified    bool       `json:"wallet_verified"`
	IsBanned          bool       `json:"is_banned"`
	BannedReason      string     `json:"banned_reason,omitempty"`
	LastLogin         *time.Time `json:"last_login"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// IsAdmin reports whether the user holds an admin-level role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperAdmin
}

// ActivityEntry is one row of a user's activity log. Details holds a
// free-form JSON object describing the action.
type ActivityEntry struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

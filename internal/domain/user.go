package domain

import "time"

// Role is the access level of a user.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether r may moderate content authored by others.
func (r Role) IsStaff() bool {
	return r == RoleModerator || r == RoleAdmin
}

// User is an account. A user created by a signup request stays pending
// (Confirmed == false) until the confirmation code is exchanged for a token.
type User struct {
	ID         int64      `json:"-" db:"id"`
	Username   string     `json:"username" db:"username"`
	Email      string     `json:"email" db:"email"`
	FirstName  string     `json:"first_name" db:"first_name"`
	LastName   string     `json:"last_name" db:"last_name"`
	Bio        string     `json:"bio" db:"bio"`
	Role       Role       `json:"role" db:"role"`
	Confirmed  bool       `json:"-" db:"confirmed"`
	LastLogin  *time.Time `json:"-" db:"last_login"`
	DateJoined time.Time  `json:"-" db:"date_joined"`
}

// SignupRequest is the body of POST /auth/signup/.
type SignupRequest struct {
	Username string `json:"username" validate:"required,max=150,username,notme"`
	Email    string `json:"email" validate:"required,email,max=254"`
}

// SignupResponse echoes the accepted signup data.
type SignupResponse struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// TokenRequest is the body of POST /auth/token/.
type TokenRequest struct {
	Username         string `json:"username" validate:"required,max=150"`
	ConfirmationCode string `json:"confirmation_code" validate:"required"`
}

// TokenResponse carries the issued access token.
type TokenResponse struct {
	Token string `json:"token"`
}

// CreateUserRequest is used by admins to create accounts directly.
type CreateUserRequest struct {
	Username  string `json:"username" validate:"required,max=150,username,notme"`
	Email     string `json:"email" validate:"required,email,max=254"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
	Bio       string `json:"bio"`
	Role      Role   `json:"role" validate:"omitempty,oneof=user moderator admin"`
}

// UpdateUserRequest is a partial update of a user profile.
type UpdateUserRequest struct {
	Username  *string `json:"username" validate:"omitempty,max=150,username,notme"`
	Email     *string `json:"email" validate:"omitempty,email,max=254"`
	FirstName *string `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name" validate:"omitempty,max=150"`
	Bio       *string `json:"bio"`
	Role      *Role   `json:"role" validate:"omitempty,oneof=user moderator admin"`
}

// Apply copies the set fields of req onto u.
func (req UpdateUserRequest) Apply(u *User) {
	if req.Username != nil {
		u.Username = *req.Username
	}
	if req.Email != nil {
		u.Email = *req.Email
	}
	if req.FirstName != nil {
		u.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		u.LastName = *req.LastName
	}
	if req.Bio != nil {
		u.Bio = *req.Bio
	}
	if req.Role != nil {
		u.Role = *req.Role
	}
}

package domain

import (
	"net/mail"
	"net/url"
	"strings"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const minPasswordLen = 6

type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	Bio          string     `json:"bio"`
	Avatar       string     `json:"avatar,omitempty"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// UserInfo is the public view of a User.
type UserInfo struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	Bio       string     `json:"bio"`
	Avatar    string     `json:"avatar,omitempty"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

type RegisterRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string    `json:"token"`
	User  *UserInfo `json:"user"`
}

// UpdateProfileRequest is a partial update; nil fields are left alone.
type UpdateProfileRequest struct {
	Name            *string `json:"name,omitempty"`
	Email           *string `json:"email,omitempty"`
	Bio             *string `json:"bio,omitempty"`
	Avatar          *string `json:"avatar,omitempty"`
	CurrentPassword string  `json:"currentPassword,omitempty"`
	NewPassword     string  `json:"newPassword,omitempty"`
}

func (r *RegisterRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r *RegisterRequest) Validate() error {
	errs := ValidationErrors{}
	validateName(errs, r.Name)
	validateEmail(errs, r.Email)
	if len(r.Password) < minPasswordLen {
		errs["password"] = "Password must be at least 6 characters"
	}
	if r.ConfirmPassword != "" && r.ConfirmPassword != r.Password {
		errs["confirmPassword"] = "Passwords do not match"
	}
	return errs.OrNil()
}

func (r *LoginRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r *LoginRequest) Validate() error {
	errs := ValidationErrors{}
	validateEmail(errs, r.Email)
	if r.Password == "" {
		errs["password"] = "Password is required"
	}
	return errs.OrNil()
}

func (r *UpdateProfileRequest) Normalize() {
	if r.Name != nil {
		*r.Name = strings.TrimSpace(*r.Name)
	}
	if r.Email != nil {
		*r.Email = strings.ToLower(strings.TrimSpace(*r.Email))
	}
	if r.Bio != nil {
		*r.Bio = strings.TrimSpace(*r.Bio)
	}
	if r.Avatar != nil {
		*r.Avatar = strings.TrimSpace(*r.Avatar)
	}
}

func (r *UpdateProfileRequest) Validate() error {
	errs := ValidationErrors{}
	if r.Name != nil {
		validateName(errs, *r.Name)
	}
	if r.Email != nil {
		validateEmail(errs, *r.Email)
	}
	if r.Bio != nil && len(*r.Bio) > 500 {
		errs["bio"] = "Bio cannot exceed 500 characters"
	}
	if r.Avatar != nil && *r.Avatar != "" {
		if u, err := url.Parse(*r.Avatar); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs["avatar"] = "Avatar must be an http(s) URL"
		}
	}
	if r.NewPassword != "" {
		if len(r.NewPassword) < minPasswordLen {
			errs["newPassword"] = "Password must be at least 6 characters"
		}
		if r.CurrentPassword == "" {
			errs["currentPassword"] = "Current password is required to set a new password"
		}
	}
	return errs.OrNil()
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// ToUserInfo converts User to UserInfo (without sensitive data)
func (u *User) ToUserInfo() *UserInfo {
	return &UserInfo{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		Bio:       u.Bio,
		Avatar:    u.Avatar,
		LastLogin: u.LastLogin,
		CreatedAt: u.CreatedAt,
	}
}

func validateName(errs ValidationErrors, name string) {
	n := len([]rune(name))
	switch {
	case n < 2:
		errs["name"] = "Name must be at least 2 characters"
	case n > 100:
		errs["name"] = "Name cannot exceed 100 characters"
	}
}

func validateEmail(errs ValidationErrors, email string) {
	if email == "" {
		errs["email"] = "Email is required"
		return
	}
	if !IsValidEmail(email) {
		errs["email"] = "Please provide a valid email"
	}
}

// IsValidEmail accepts a bare address with a dotted domain.
func IsValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	return at > 0 && strings.Contains(email[at+1:], ".")
}

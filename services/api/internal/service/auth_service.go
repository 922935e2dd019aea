package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/diagnosis/portfolio/pkg/auth"
	"github.com/diagnosis/portfolio/pkg/config"
	"github.com/diagnosis/portfolio/pkg/events"
	"github.com/diagnosis/portfolio/pkg/logger"
	"github.com/diagnosis/portfolio/services/api/internal/domain"
	"github.com/diagnosis/portfolio/services/api/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

type AuthService interface {
	Register(ctx context.Context, req *domain.RegisterRequest) (*domain.LoginResponse, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error)
	Me(ctx context.Context, userID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, req *domain.UpdateProfileRequest) (*domain.User, error)
	EnsureAdmin(ctx context.Context, admin config.AdminConfig) error
}

type authService struct {
	userRepo repository.UserRepository
	eventBus events.Publisher
	config   *config.Config
}

func NewAuthService(userRepo repository.UserRepository, eventBus events.Publisher, config *config.Config) AuthService {
	return &authService{
		userRepo: userRepo,
		eventBus: eventBus,
		config:   config,
	}
}

func (s *authService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.LoginResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrEmailTaken
	}

	passwordHash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.userRepo.Create(ctx, req.Name, req.Email, passwordHash, domain.RoleUser)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, domain.ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	logger.InfoContext(ctx, "User registered", "user_id", user.ID)
	publish(ctx, s.eventBus, events.UserRegistered, events.UserRegisteredEvent{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	})

	return s.issue(user)
}

func (s *authService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrInvalidCredentials
	}

	valid, legacy, err := verifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return nil, domain.ErrInvalidCredentials
	}

	if legacy {
		s.upgradeHash(ctx, user.ID, req.Password)
	}
	if err := s.userRepo.TouchLastLogin(ctx, user.ID); err != nil {
		logger.WarnContext(ctx, "Failed to record last login", "error", err, "user_id", user.ID)
	} else {
		now := time.Now()
		user.LastLogin = &now
	}

	return s.issue(user)
}

func (s *authService) Me(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrNotFound
	}
	return user, nil
}

func (s *authService) UpdateProfile(ctx context.Context, userID string, req *domain.UpdateProfileRequest) (*domain.User, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Email != nil && *req.Email != user.Email {
		other, err := s.userRepo.FindByEmail(ctx, *req.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
		if other != nil {
			return nil, domain.ErrEmailTaken
		}
	}

	var newHash *string
	if req.NewPassword != "" {
		valid, _, err := verifyPassword(req.CurrentPassword, user.PasswordHash)
		if err != nil {
			return nil, fmt.Errorf("failed to verify password: %w", err)
		}
		if !valid {
			return nil, domain.ErrWrongPassword
		}
		hash, err := argon2id.CreateHash(req.NewPassword, argon2id.DefaultParams)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		newHash = &hash
	}

	updated, err := s.userRepo.UpdateProfile(ctx, userID, req, newHash)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, domain.ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	if updated == nil {
		return nil, domain.ErrNotFound
	}
	return updated, nil
}

// EnsureAdmin guarantees an administrator exists. When none does and admin
// credentials are configured, the configured user is created, or promoted if
// the email is already registered.
func (s *authService) EnsureAdmin(ctx context.Context, admin config.AdminConfig) error {
	if admin.Email == "" || admin.Password == "" {
		logger.DebugContext(ctx, "Admin bootstrap skipped, no credentials configured")
		return nil
	}

	exists, err := s.userRepo.HasAdmin(ctx)
	if err != nil {
		return fmt.Errorf("failed to check for admin: %w", err)
	}
	if exists {
		return nil
	}

	email := strings.ToLower(strings.TrimSpace(admin.Email))
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find admin user: %w", err)
	}
	if user != nil {
		if err := s.userRepo.UpdateRole(ctx, user.ID, domain.RoleAdmin); err != nil {
			return fmt.Errorf("failed to promote admin: %w", err)
		}
		logger.InfoContext(ctx, "Promoted existing user to admin", "user_id", user.ID)
		return nil
	}

	hash, err := argon2id.CreateHash(admin.Password, argon2id.DefaultParams)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}
	name := admin.Name
	if name == "" {
		name = "Admin"
	}
	user, err = s.userRepo.Create(ctx, name, email, hash, domain.RoleAdmin)
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	logger.InfoContext(ctx, "Admin user created", "user_id", user.ID, "email", email)
	return nil
}

func (s *authService) issue(user *domain.User) (*domain.LoginResponse, error) {
	token, err := auth.NewAccessToken(user.ID, user.Email, user.Role, s.config.Auth.JWTSecret, s.config.Auth.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}
	return &domain.LoginResponse{Token: token, User: user.ToUserInfo()}, nil
}

func (s *authService) upgradeHash(ctx context.Context, userID, password string) {
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		logger.WarnContext(ctx, "Failed to rehash legacy password", "error", err)
		return
	}
	if _, err := s.userRepo.UpdateProfile(ctx, userID, &domain.UpdateProfileRequest{}, &hash); err != nil {
		logger.WarnContext(ctx, "Failed to store upgraded password hash", "error", err, "user_id", userID)
	}
}

// verifyPassword checks password against an argon2id hash, or a bcrypt hash
// carried over from the previous user store. legacy reports the latter.
func verifyPassword(password, hash string) (valid, legacy bool, err error) {
	if strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$") {
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, true, nil
		}
		return err == nil, true, err
	}
	valid, err = argon2id.ComparePasswordAndHash(password, hash)
	return valid, false, err
}

package services

import (
	"context"

	"shelfshare/internal/adapters/persistence/models"
	"shelfshare/internal/adapters/persistence/repositories"
	"shelfshare/internal/config"
	"shelfshare/internal/core/domain"
	"shelfshare/internal/pkg/jwt"
	"shelfshare/internal/pkg/password"
)

// AuthService handles registration and login. Kept as a thin collaborator
// surface: the lifecycle engine never reads ambient identity from it.
type AuthService struct {
	userRepo *repositories.UserRepository
	cfg      *config.Config
}

// NewAuthService creates a new auth service
func NewAuthService(userRepo *repositories.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		cfg:      cfg,
	}
}

// RegisterInput represents register input
type RegisterInput struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// Register creates a new user account
func (s *AuthService) Register(ctx context.Context, input *RegisterInput) (*models.User, error) {
	if existing, err := s.userRepo.GetByUsername(ctx, input.Username); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, domain.ErrUserAlreadyExists
	}

	if existing, err := s.userRepo.GetByEmail(ctx, input.Email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, domain.ErrUserAlreadyExists
	}

	hashed, err := password.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username: input.Username,
		Email:    input.Email,
		Password: hashed,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// LoginInput represents login input
type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginOutput carries the issued token and the user
type LoginOutput struct {
	AccessToken string               `json:"access_token"`
	User        *models.UserResponse `json:"user"`
}

// Login verifies credentials and issues an access token
func (s *AuthService) Login(ctx context.Context, input *LoginInput) (*LoginOutput, error) {
	user, err := s.userRepo.GetByUsername(ctx, input.Username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrInvalidCredentials
	}

	if !password.Verify(input.Password, user.Password) {
		return nil, domain.ErrInvalidCredentials
	}

	token, err := jwt.GenerateAccessToken(user.ID, user.Username, s.cfg.JWT)
	if err != nil {
		return nil, err
	}

	return &LoginOutput{
		AccessToken: token,
		User:        user.ToResponse(),
	}, nil
}

// GetProfile returns a user by ID
func (s *AuthService) GetProfile(ctx context.Context, userID uint) (*models.UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	return user.ToResponse(), nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"projectnest/internal/models"
	"projectnest/internal/utils"
)

const minPasswordLength = 8

// GitHubIdentity is what the OAuth callback learns about a GitHub account.
type GitHubIdentity struct {
	ID        string
	Login     string
	Email     string
	Name      string
	AvatarURL string
	HTMLURL   string
}

type AuthService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewAuthService(db *gorm.DB, log *zap.Logger) *AuthService {
	return &AuthService{db: db, log: log}
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Name != "" {
		return "", fmt.Errorf("%w: invalid email address", ErrInvalidInput)
	}
	return strings.ToLower(addr.Address), nil
}

// Register creates a password account.
func (s *AuthService) Register(ctx context.Context, email, username, password string) (*models.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	username = strings.TrimSpace(username)
	if !ValidUsername(username) {
		return nil, fmt.Errorf("%w: username must be 3-40 letters, digits, '_' or '-'", ErrInvalidInput)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}

	tx := s.db.WithContext(ctx)
	var taken int64
	if err := tx.Model(&models.User{}).Where("email = ? OR username = ?", email, username).Count(&taken).Error; err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}
	if taken > 0 {
		return nil, fmt.Errorf("%w: email or username already registered", ErrConflict)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := models.User{Username: username, Email: email, Password: hash}
	if err := tx.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.log.Info("user registered", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	return &user, nil
}

// Login checks credentials. identifier is an email or a username.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ? OR username = ?", strings.ToLower(identifier), identifier).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: wrong email or password", ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !utils.CheckPasswordHash(password, user.Password) {
		return nil, fmt.Errorf("%w: wrong email or password", ErrUnauthorized)
	}
	return &user, nil
}

// UserByID resolves the session user.
func (s *AuthService) UserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}

// SignInWithGitHub links the identity to an account by GitHub id, then by
// email, and creates a new account when neither matches.
func (s *AuthService) SignInWithGitHub(ctx context.Context, id GitHubIdentity) (*models.User, error) {
	if id.ID == "" {
		return nil, fmt.Errorf("%w: github identity without id", ErrInvalidInput)
	}
	tx := s.db.WithContext(ctx)

	var user models.User
	err := tx.Where("github_id = ?", id.ID).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find user by github id: %w", err)
	}

	email := ""
	if id.Email != "" {
		if e, err := normalizeEmail(id.Email); err == nil {
			email = e
		}
	}

	if email != "" {
		err := tx.Where("email = ?", email).First(&user).Error
		if err == nil {
			updates := map[string]any{"github_id": id.ID}
			if user.AvatarURL == "" && id.AvatarURL != "" {
				updates["avatar_url"] = id.AvatarURL
			}
			if user.GitHubURL == "" && id.HTMLURL != "" {
				updates["github_url"] = id.HTMLURL
			}
			if err := tx.Model(&user).Updates(updates).Error; err != nil {
				return nil, fmt.Errorf("link github account: %w", err)
			}
			s.log.Info("linked github account", zap.Uint("user_id", user.ID))
			return &user, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("find user by email: %w", err)
		}
	} else {
		// GitHub may hide the email; keep the unique column filled.
		email = fmt.Sprintf("github-%s@users.noreply.github.com", id.ID)
	}

	username, err := s.freeUsername(ctx, id.Login)
	if err != nil {
		return nil, err
	}
	user = models.User{
		Username:  username,
		Email:     email,
		FullName:  id.Name,
		AvatarURL: id.AvatarURL,
		GitHubURL: id.HTMLURL,
		GitHubID:  id.ID,
	}
	if err := tx.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create github user: %w", err)
	}
	s.log.Info("user registered via github", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	return &user, nil
}

// freeUsername returns login if it is valid and unused, otherwise login
// with a short random suffix.
func (s *AuthService) freeUsername(ctx context.Context, login string) (string, error) {
	base := strings.TrimSpace(login)
	if !ValidUsername(base) {
		base = "user"
	}
	if len(base) > 31 {
		base = base[:31]
	}
	candidate := base
	for range 5 {
		var n int64
		if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", candidate).Count(&n).Error; err != nil {
			return "", fmt.Errorf("check username: %w", err)
		}
		if n == 0 && ValidUsername(candidate) {
			return candidate, nil
		}
		candidate = base + "-" + uuid.NewString()[:8]
	}
	return "", fmt.Errorf("%w: could not find a free username for %q", ErrConflict, login)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"projectnest/internal/models"
	"projectnest/internal/utils"
)

const (
	maxBioLength      = 500
	maxFullNameLength = 100
	maxSkills         = 20
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,40}$`)

// Profile is the public view of a user.
type Profile struct {
	User     models.User      `json:"user"`
	Projects []models.Project `json:"projects"`
}

// ProfileInput carries the editable profile fields. Nil fields are left
// untouched.
type ProfileInput struct {
	Username   *string  `json:"username"`
	FullName   *string  `json:"full_name"`
	Bio        *string  `json:"bio"`
	Skills     []string `json:"skills"`
	GitHubURL  *string  `json:"github_url"`
	WebsiteURL *string  `json:"website_url"`
}

type ProfileService struct {
	db       *gorm.DB
	cache    *utils.QueryCache
	avatars  AvatarStore
	maxBytes int64
	log      *zap.Logger
}

func NewProfileService(db *gorm.DB, cache *utils.QueryCache, avatars AvatarStore, maxBytes int64, log *zap.Logger) *ProfileService {
	return &ProfileService{db: db, cache: cache, avatars: avatars, maxBytes: maxBytes, log: log}
}

// ValidUsername reports whether name can be used as a username.
func ValidUsername(name string) bool {
	return usernamePattern.MatchString(name)
}

func (s *ProfileService) Get(ctx context.Context, username string) (*Profile, error) {
	tx := s.db.WithContext(ctx)

	var user models.User
	if err := tx.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	var projects []models.Project
	err := tx.Preload("Category").Preload("Tags").
		Where("owner_id = ?", user.ID).
		Order("created_at DESC").
		Find(&projects).Error
	if err != nil {
		return nil, fmt.Errorf("list projects of %s: %w", username, err)
	}
	return &Profile{User: user, Projects: projects}, nil
}

func cleanURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q is not an http(s) URL", ErrInvalidInput, raw)
	}
	return u.String(), nil
}

// Update applies in to actor's profile and returns the stored user.
func (s *ProfileService) Update(ctx context.Context, actor *models.User, in ProfileInput) (*models.User, error) {
	updates := map[string]any{}

	if in.Username != nil {
		name := strings.TrimSpace(*in.Username)
		if !ValidUsername(name) {
			return nil, fmt.Errorf("%w: username must be 3-40 letters, digits, '_' or '-'", ErrInvalidInput)
		}
		if name != actor.Username {
			var n int64
			if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ? AND id <> ?", name, actor.ID).Count(&n).Error; err != nil {
				return nil, fmt.Errorf("check username: %w", err)
			}
			if n > 0 {
				return nil, fmt.Errorf("%w: username %q is taken", ErrConflict, name)
			}
			updates["username"] = name
		}
	}
	if in.FullName != nil {
		v := strings.TrimSpace(*in.FullName)
		if utf8.RuneCountInString(v) > maxFullNameLength {
			return nil, fmt.Errorf("%w: full name exceeds %d characters", ErrInvalidInput, maxFullNameLength)
		}
		updates["full_name"] = v
	}
	if in.Bio != nil {
		v := strings.TrimSpace(*in.Bio)
		if utf8.RuneCountInString(v) > maxBioLength {
			return nil, fmt.Errorf("%w: bio exceeds %d characters", ErrInvalidInput, maxBioLength)
		}
		updates["bio"] = v
	}
	if in.Skills != nil {
		skills := normalizeTags(in.Skills)
		if len(skills) > maxSkills {
			return nil, fmt.Errorf("%w: at most %d skills", ErrInvalidInput, maxSkills)
		}
		updates["skills"] = datatypes.NewJSONSlice(skills)
	}
	if in.GitHubURL != nil {
		v, err := cleanURL(*in.GitHubURL)
		if err != nil {
			return nil, err
		}
		updates["github_url"] = v
	}
	if in.WebsiteURL != nil {
		v, err := cleanURL(*in.WebsiteURL)
		if err != nil {
			return nil, err
		}
		updates["website_url"] = v
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.User{ID: actor.ID}).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update profile: %w", err)
		}
		// author summaries are embedded in cached threads and inboxes
		s.cache.Invalidate(commentKeyPrefix, conversationKeyPrefix, projectKeyPrefix)
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, actor.ID).Error; err != nil {
		return nil, fmt.Errorf("reload user: %w", err)
	}
	return &user, nil
}

// SetAvatar stores image through the avatar store and points the profile at
// it. The type is read from the bytes, not from what the client declared.
func (s *ProfileService) SetAvatar(ctx context.Context, actor *models.User, image []byte, filename string) (*models.User, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidInput)
	}
	if s.maxBytes > 0 && int64(len(image)) > s.maxBytes {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", ErrInvalidInput, s.maxBytes)
	}
	if kind := mimetype.Detect(image); !strings.HasPrefix(kind.String(), "image/") {
		return nil, fmt.Errorf("%w: %s is not an image", ErrInvalidInput, kind.String())
	}

	link, err := s.avatars.Upload(ctx, image, filename)
	if err != nil {
		s.log.Error("avatar upload failed", zap.Uint("user_id", actor.ID), zap.Error(err))
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.User{ID: actor.ID}).Update("avatar_url", link).Error; err != nil {
		return nil, fmt.Errorf("save avatar: %w", err)
	}
	s.cache.Invalidate(commentKeyPrefix, conversationKeyPrefix, projectKeyPrefix)

	user := *actor
	user.AvatarURL = link
	return &user, nil
}

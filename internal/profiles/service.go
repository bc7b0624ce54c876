// Package profiles manages the public identity record of each user.
package profiles

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dateloop/backend/internal/apperr"
	"github.com/dateloop/backend/internal/models"
	"github.com/dateloop/backend/internal/realtime"
)

// DefaultSearchLimit caps the number of search results.
const DefaultSearchLimit = 20

// MaxAvatarBytes bounds avatar uploads.
const MaxAvatarBytes = 5 << 20

var usernamePattern = regexp.MustCompile(`^[a-z0-9_.]{3,30}$`)

var avatarExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// Store captures profile persistence.
type Store interface {
	FindProfile(ctx context.Context, id string) (models.Profile, error)
	UpsertProfile(ctx context.Context, profile models.Profile) (models.Profile, error)
	SearchProfiles(ctx context.Context, prefix, excludeID string, limit int) ([]models.Profile, error)
	SetAvatarURL(ctx context.Context, id, url string, at time.Time) (models.Profile, error)
}

// AssetStorage persists uploaded images and returns their public location.
type AssetStorage interface {
	Save(ctx context.Context, key, contentType string, r io.Reader) (string, error)
}

// Input carries the editable profile fields.
type Input struct {
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Bio      string `json:"bio"`
}

// Service implements profile operations.
type Service struct {
	Store     Store
	Assets    AssetStorage
	Publisher realtime.Publisher
	NowFunc   func() time.Time
}

// Get loads one profile.
func (s Service) Get(ctx context.Context, profileID string) (models.Profile, error) {
	profile, err := s.Store.FindProfile(ctx, profileID)
	if err != nil {
		return models.Profile{}, fmt.Errorf("load profile: %w", err)
	}
	return profile, nil
}

// Save creates the actor's profile on first use and updates it afterwards.
func (s Service) Save(ctx context.Context, actorID string, input Input) (models.Profile, error) {
	input.Username = strings.ToLower(strings.TrimSpace(input.Username))
	input.FullName = strings.TrimSpace(input.FullName)
	input.Bio = strings.TrimSpace(input.Bio)

	if !usernamePattern.MatchString(input.Username) {
		return models.Profile{}, apperr.Invalid("username", "username must be 3-30 characters of a-z, 0-9, '_' or '.'")
	}

	now := s.now()
	saved, err := s.Store.UpsertProfile(ctx, models.Profile{
		ID:        actorID,
		Username:  input.Username,
		FullName:  input.FullName,
		Bio:       input.Bio,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return models.Profile{}, apperr.Invalid("username", "username is already taken")
		}
		return models.Profile{}, fmt.Errorf("save profile: %w", err)
	}

	s.notify(ctx, saved.ID)
	return saved, nil
}

// Search finds profiles whose username starts with query, excluding the viewer.
func (s Service) Search(ctx context.Context, viewerID, query string) ([]models.Profile, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return []models.Profile{}, nil
	}

	profiles, err := s.Store.SearchProfiles(ctx, query, viewerID, DefaultSearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search profiles: %w", err)
	}
	if profiles == nil {
		profiles = []models.Profile{}
	}
	return profiles, nil
}

// UploadAvatar stores an image and points the actor's profile at it.
func (s Service) UploadAvatar(ctx context.Context, actorID, contentType string, body io.Reader) (models.Profile, error) {
	if s.Assets == nil {
		return models.Profile{}, fmt.Errorf("upload avatar: %w", apperr.Transient("object storage", errors.New("not configured")))
	}

	ext, ok := avatarExtensions[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return models.Profile{}, apperr.Invalid("avatar", "avatar must be a jpeg, png or webp image")
	}

	// One byte past the limit tells an oversized upload from one that is exactly at it.
	image, err := io.ReadAll(io.LimitReader(body, MaxAvatarBytes+1))
	if err != nil {
		return models.Profile{}, fmt.Errorf("read avatar: %w", err)
	}
	if len(image) > MaxAvatarBytes {
		return models.Profile{}, apperr.Invalid("avatar", "avatar is too large")
	}
	if len(image) == 0 {
		return models.Profile{}, apperr.Invalid("avatar", "avatar is empty")
	}

	key := fmt.Sprintf("avatars/%s/%s.%s", actorID, uuid.NewString(), ext)
	url, err := s.Assets.Save(ctx, key, contentType, bytes.NewReader(image))
	if err != nil {
		return models.Profile{}, fmt.Errorf("upload avatar: %w", apperr.Transient("object storage", err))
	}

	profile, err := s.Store.SetAvatarURL(ctx, actorID, url, s.now())
	if err != nil {
		return models.Profile{}, fmt.Errorf("store avatar url: %w", err)
	}

	s.notify(ctx, profile.ID)
	return profile, nil
}

func (s Service) notify(ctx context.Context, profileID string) {
	realtime.Notify(ctx, s.Publisher, realtime.Change{
		Table:   realtime.TableProfiles,
		Op:      realtime.OpUpdate,
		RowID:   profileID,
		UserIDs: []string{profileID},
	})
}

func (s Service) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc()
	}
	return time.Now().UTC()
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/blog/internal/apperror"
	"github.com/sakif/blog/internal/auth"
	"github.com/sakif/blog/internal/form"
	"github.com/sakif/blog/internal/model"
	"github.com/sakif/blog/internal/repository"
	"github.com/sakif/blog/internal/storage"
)

const msgUsernameTaken = "A user with that username already exists."

// RegisterResult is what a successful sign-up returns: the new account, a
// flash notice, and where to send the user next.
type RegisterResult struct {
	User     *model.User `json:"user"`
	Notice   string      `json:"message"`
	Redirect string      `json:"redirect"`
}

// ProfileView is the requester's own account and profile.
type ProfileView struct {
	User     *model.User    `json:"user"`
	Profile  *model.Profile `json:"profile"`
	ImageURL string         `json:"imageUrl"`
}

// ProfileResult is returned after a successful profile update.
type ProfileResult struct {
	View     *ProfileView `json:"profile"`
	Notice   string       `json:"message"`
	Redirect string       `json:"redirect"`
}

// ImageUpload is a submitted profile picture.
type ImageUpload struct {
	File     form.File
	Size     int64
	Filename string
}

// ProfileUpdate is the combined profile form: account fields plus an
// optional new picture.
type ProfileUpdate struct {
	User  form.UserUpdate
	Image *ImageUpload
}

// AccountService handles sign-up and the requester's own profile.
type AccountService struct {
	users         repository.UserRepository
	profiles      repository.ProfileRepository
	passwords     *auth.PasswordService
	store         storage.Store
	maxImageBytes int64
	logger        *slog.Logger
}

func NewAccountService(
	users repository.UserRepository,
	profiles repository.ProfileRepository,
	passwords *auth.PasswordService,
	store storage.Store,
	maxImageBytes int64,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		users:         users,
		profiles:      profiles,
		passwords:     passwords,
		store:         store,
		maxImageBytes: maxImageBytes,
		logger:        logger,
	}
}

// Register creates an account (and its default profile) after validating the
// whole form. A taken username is reported on the username field.
func (s *AccountService) Register(ctx context.Context, in form.Registration) (*RegisterResult, error) {
	in.Normalize()
	errs := in.Validate()

	if _, bad := errs["username"]; !bad {
		taken, err := s.users.UsernameTaken(ctx, in.Username, "")
		if err != nil {
			return nil, fmt.Errorf("checking username: %w", err)
		}
		if taken {
			errs.Add("username", msgUsernameTaken)
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password1)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		// Lost a race with another sign-up for the same name.
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.ValidationFailed("username", msgUsernameTaken)
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("account created",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return &RegisterResult{
		User:     user,
		Notice:   fmt.Sprintf("Account created for %s!", user.Username),
		Redirect: "/login",
	}, nil
}

// ViewProfile returns the requester's user and profile.
func (s *AccountService) ViewProfile(ctx context.Context, requesterID string) (*ProfileView, error) {
	user, err := loadRequester(ctx, s.users, requesterID)
	if err != nil {
		return nil, err
	}

	profile, err := s.profiles.GetProfile(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("loading profile for %s: %w", user.ID, err)
	}

	return s.view(ctx, user, profile), nil
}

// UpdateProfile applies both halves of the profile form, or neither.
//
// Every field and the picture are validated before anything is written.
// The new picture is stored first, then user and profile rows are written in
// one transaction. If that fails the new picture is removed again. The
// replaced picture is deleted only after the commit, and the shared default
// picture never is.
func (s *AccountService) UpdateProfile(ctx context.Context, requesterID string, in ProfileUpdate) (*ProfileResult, error) {
	user, err := loadRequester(ctx, s.users, requesterID)
	if err != nil {
		return nil, err
	}
	profile, err := s.profiles.GetProfile(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("loading profile for %s: %w", user.ID, err)
	}
	if err := auth.Authorize(requesterID, profile); err != nil {
		return nil, err
	}

	// === VALIDATE EVERYTHING ===
	in.User.Normalize()
	errs := in.User.Validate()

	if in.User.Username != nil && *in.User.Username != user.Username {
		if _, bad := errs["username"]; !bad {
			taken, err := s.users.UsernameTaken(ctx, *in.User.Username, user.ID)
			if err != nil {
				return nil, fmt.Errorf("checking username: %w", err)
			}
			if taken {
				errs.Add("username", msgUsernameTaken)
			}
		}
	}

	var upload *form.Upload
	if in.Image != nil {
		switch {
		case s.maxImageBytes > 0 && in.Image.Size > s.maxImageBytes:
			errs.Add("image", fmt.Sprintf("Image too large. Maximum size is %d bytes.", s.maxImageBytes))
		default:
			up, err := form.CheckImage(in.Image.File, in.Image.Size)
			if err != nil {
				errs.Add("image", err.Error())
			}
			upload = up
		}
	}

	if err := errs.Err(); err != nil {
		return nil, err
	}

	// === WRITE ===
	updatedUser := *user
	if in.User.Username != nil {
		updatedUser.Username = *in.User.Username
	}
	if in.User.Email != nil {
		updatedUser.Email = *in.User.Email
	}
	updatedProfile := *profile
	oldImage := profile.Image

	newImage := ""
	if upload != nil {
		newImage = storage.NewKey(storage.ProfilePicsPrefix, upload.Ext)
		if err := s.store.Put(ctx, newImage, in.Image.File, upload.Size, upload.ContentType); err != nil {
			return nil, fmt.Errorf("storing profile image: %w", err)
		}
		updatedProfile.Image = newImage
	}

	if err := s.profiles.UpdateAccount(ctx, &updatedUser, &updatedProfile); err != nil {
		if newImage != "" {
			s.discard(ctx, newImage)
		}
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.ValidationFailed("username", msgUsernameTaken)
		}
		return nil, fmt.Errorf("updating account %s: %w", user.ID, err)
	}

	if newImage != "" && oldImage != model.DefaultProfileImage && oldImage != newImage {
		s.discard(ctx, oldImage)
	}

	s.logger.Info("profile updated",
		slog.String("userID", user.ID),
		slog.Bool("newImage", newImage != ""),
	)

	return &ProfileResult{
		View:     s.view(ctx, &updatedUser, &updatedProfile),
		Notice:   "Your account has been updated!",
		Redirect: "/profile",
	}, nil
}

func (s *AccountService) view(ctx context.Context, user *model.User, profile *model.Profile) *ProfileView {
	url, err := s.store.URL(ctx, profile.Image)
	if err != nil {
		s.logger.Warn("cannot resolve profile image URL",
			slog.String("image", profile.Image),
			slog.String("error", err.Error()),
		)
	}
	return &ProfileView{User: user, Profile: profile, ImageURL: url}
}

// discard deletes a stored file and only logs failures.
func (s *AccountService) discard(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to delete stored file",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

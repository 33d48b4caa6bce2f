package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"voicedesk-backend-go/internal/db"
	"voicedesk-backend-go/internal/models"
)

var (
	// ErrUserNotFound is returned when a user is not found.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidPassword is returned when the current password does not match.
	ErrInvalidPassword = errors.New("current password is incorrect")
	// ErrActiveSubscription blocks account deletion while a subscription still renews.
	ErrActiveSubscription = errors.New("subscription is still active")
	// ErrInvalidIdentity is returned when a token carries neither a usable subject nor an e-mail.
	ErrInvalidIdentity = errors.New("identity has no subject or email")
	// ErrEmailNotVerified is returned when an account would be matched or created by an unverified e-mail.
	ErrEmailNotVerified = errors.New("email address is not verified")
	// ErrIdentityConflict is returned when the e-mail belongs to an account bound to another login.
	ErrIdentityConflict = errors.New("account is linked to a different login")
)

const subscriptionStatusInactive = "inactive"

// userService implements the UserService interface.
type userService struct {
	userRepo db.UserRepository
	plans    *PlanCatalog
	audit    AuditService
	logger   *zap.Logger
}

// NewUserService creates a new UserService instance.
func NewUserService(userRepo db.UserRepository, plans *PlanCatalog, audit AuditService, logger *zap.Logger) UserService {
	return &userService{userRepo: userRepo, plans: plans, audit: audit, logger: logger}
}

// GetOrCreate resolves the caller's user. If the user doesn't exist, it creates a new one
// on the free plan. Returns the user and whether it was created.
func (s *userService) GetOrCreate(ctx context.Context, identity Identity) (*models.User, bool, error) {
	user, err := s.Resolve(ctx, identity)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}
	if identity.Email == "" {
		return nil, false, ErrInvalidIdentity
	}

	free := s.plans.Free()
	now := time.Now().UTC()
	newUser := &models.User{
		Email: identity.Email,
		Name:  identity.Name,
		Image: identity.Picture,
		Subscription: models.Subscription{
			Plan:   free.Name,
			Status: subscriptionStatusInactive,
		},
		Usage:         models.Usage{MinutesLimit: free.MinutesLimit},
		Notifications: models.DefaultNotificationSettings(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if oid, err := bson.ObjectIDFromHex(identity.Subject); err == nil {
		newUser.ID = oid
	} else {
		newUser.AuthSubject = identity.Subject
	}
	if err := s.userRepo.Create(ctx, newUser); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			// Lost a race with a concurrent initialize for the same login.
			existing, resolveErr := s.Resolve(ctx, identity)
			if resolveErr == nil {
				return existing, false, nil
			}
			if !errors.Is(resolveErr, ErrUserNotFound) {
				return nil, false, resolveErr
			}
		}
		return nil, false, fmt.Errorf("failed to create user '%s': %w", identity.Email, err)
	}

	s.logger.Info("User created", zap.String("userID", newUser.ID.Hex()), zap.String("email", newUser.Email))
	s.audit.Record(ctx, newUser.ID.Hex(), ActionUserCreated, "user", newUser.ID.Hex(), nil)
	return newUser, true, nil
}

// Resolve looks the caller up by ObjectID subject, then by the bound login
// subject, and finally by verified e-mail. An e-mail match binds the login
// subject to the account so later logins no longer depend on the e-mail.
func (s *userService) Resolve(ctx context.Context, identity Identity) (*models.User, error) {
	oid, oidErr := bson.ObjectIDFromHex(identity.Subject)
	if oidErr == nil {
		user, err := s.userRepo.GetByID(ctx, oid)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("failed to get user '%s': %w", identity.Subject, err)
		}
	}
	if identity.Subject != "" {
		user, err := s.userRepo.GetByAuthSubject(ctx, identity.Subject)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("failed to get user by subject '%s': %w", identity.Subject, err)
		}
	}
	if identity.Email == "" {
		return nil, fmt.Errorf("%w: subject '%s'", ErrUserNotFound, identity.Subject)
	}
	if !identity.EmailVerified {
		return nil, fmt.Errorf("%w: '%s'", ErrEmailNotVerified, identity.Email)
	}

	user, err := s.getByEmail(ctx, identity.Email)
	if err != nil {
		return nil, err
	}
	switch {
	case identity.Subject == "" || user.AuthSubject == identity.Subject:
		return user, nil
	case user.AuthSubject != "":
		s.logger.Warn("Login subject does not match the account bound to this e-mail",
			zap.String("userID", user.ID.Hex()), zap.String("subject", identity.Subject))
		return nil, fmt.Errorf("%w: user '%s'", ErrIdentityConflict, user.ID.Hex())
	case oidErr == nil:
		// Session subjects are our own ids and are never bound.
		return user, nil
	}
	return s.bindSubject(ctx, user, identity.Subject)
}

func (s *userService) bindSubject(ctx context.Context, user *models.User, subject string) (*models.User, error) {
	if err := s.userRepo.BindAuthSubject(ctx, user.ID, subject); err != nil {
		if !errors.Is(err, db.ErrDuplicate) {
			return nil, fmt.Errorf("failed to bind subject for user '%s': %w", user.ID.Hex(), err)
		}
		// Someone else bound first; only the same subject is accepted.
		fresh, getErr := s.userRepo.GetByID(ctx, user.ID)
		if getErr == nil && fresh.AuthSubject == subject {
			return fresh, nil
		}
		return nil, fmt.Errorf("%w: user '%s'", ErrIdentityConflict, user.ID.Hex())
	}
	user.AuthSubject = subject
	s.logger.Info("Login subject linked to user", zap.String("userID", user.ID.Hex()), zap.String("subject", subject))
	s.audit.Record(ctx, user.ID.Hex(), ActionIdentityLinked, "user", user.ID.Hex(), nil)
	return user, nil
}

func (s *userService) FindByRef(ctx context.Context, ref string) (*models.User, error) {
	ref = strings.TrimSpace(ref)
	if oid, err := bson.ObjectIDFromHex(ref); err == nil {
		user, err := s.userRepo.GetByID(ctx, oid)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return nil, fmt.Errorf("%w: user with ID '%s'", ErrUserNotFound, ref)
			}
			return nil, fmt.Errorf("failed to get user by ID '%s': %w", ref, err)
		}
		return user, nil
	}
	if !strings.Contains(ref, "@") {
		return nil, fmt.Errorf("%w: '%s' is neither an id nor an e-mail", ErrUserNotFound, ref)
	}
	return s.getByEmail(ctx, ref)
}

func (s *userService) getByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: user with e-mail '%s'", ErrUserNotFound, email)
		}
		return nil, fmt.Errorf("failed to get user by e-mail '%s': %w", email, err)
	}
	return user, nil
}

func (s *userService) UpdateProfile(ctx context.Context, user *models.User, req models.UpdateProfileRequest) (*models.User, error) {
	trimPtr(req.Name)
	trimPtr(req.Company)
	trimPtr(req.Phone)
	trimPtr(req.Timezone)
	if req.Timezone != nil && *req.Timezone != "" {
		if _, err := time.LoadLocation(*req.Timezone); err != nil {
			return nil, fmt.Errorf("%w: unknown timezone '%s'", ErrInvalidInput, *req.Timezone)
		}
	}
	updated, err := s.userRepo.UpdateProfile(ctx, user.ID, req)
	if err != nil {
		return nil, s.wrapUserErr(user, "update profile", err)
	}
	s.audit.Record(ctx, user.ID.Hex(), ActionProfileUpdate, "user", user.ID.Hex(), nil)
	return updated, nil
}

// UpdateNotifications only touches the flags present in req; the others keep their stored values.
func (s *userService) UpdateNotifications(ctx context.Context, user *models.User, req models.UpdateNotificationsRequest) (*models.User, error) {
	updated, err := s.userRepo.UpdateNotifications(ctx, user.ID, req)
	if err != nil {
		return nil, s.wrapUserErr(user, "update notifications", err)
	}
	s.audit.Record(ctx, user.ID.Hex(), ActionNotificationsUpdate, "user", user.ID.Hex(), nil)
	return updated, nil
}

func (s *userService) ChangePassword(ctx context.Context, user *models.User, req models.ChangePasswordRequest) error {
	if user.PasswordHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
			return ErrInvalidPassword
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return s.wrapUserErr(user, "update password", err)
	}
	s.audit.Record(ctx, user.ID.Hex(), ActionPasswordChange, "user", user.ID.Hex(), nil)
	return nil
}

// DeleteAccount removes the user document. A renewing subscription must be cancelled first.
func (s *userService) DeleteAccount(ctx context.Context, user *models.User) error {
	if isRenewing(user.Subscription) {
		return ErrActiveSubscription
	}
	if err := s.userRepo.Delete(ctx, user.ID); err != nil {
		return s.wrapUserErr(user, "delete", err)
	}
	s.logger.Info("User deleted", zap.String("userID", user.ID.Hex()))
	s.audit.Record(ctx, user.ID.Hex(), ActionAccountDelete, "user", user.ID.Hex(), nil)
	return nil
}

func (s *userService) wrapUserErr(user *models.User, op string, err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("%w: user with ID '%s'", ErrUserNotFound, user.ID.Hex())
	}
	return fmt.Errorf("failed to %s for user '%s': %w", op, user.ID.Hex(), err)
}

func isRenewing(sub models.Subscription) bool {
	switch sub.Status {
	case "active", "trialing", "past_due":
		return sub.ID != "" && !sub.CancelAtPeriodEnd
	}
	return false
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}

package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/threadlog/internal/apperr"
	"github.com/threadlog/internal/db"
	"github.com/threadlog/internal/logging"
)

var (
	ErrPasswordMismatch   = apperr.New(apperr.Validation, "Passwords do not match")
	ErrEmailTaken         = apperr.New(apperr.Conflict, "An account with this email already exists")
	ErrInvalidCredentials = apperr.New(apperr.Authorization, "Invalid email or password")
	ErrUnauthenticated    = apperr.New(apperr.Authorization, "You must be signed in")
)

// SignUpInput is the registration form.
type SignUpInput struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6,max=72"`
	ConfirmPassword string `json:"confirm_password"`
	FirstName       string `json:"first_name" validate:"required,max=100"`
	LastName        string `json:"last_name" validate:"required,max=100"`
}

// SessionUser is the signed-in user with their profile.
type SessionUser struct {
	ID      string      `json:"id"`
	Email   string      `json:"email"`
	Profile *db.Profile `json:"profile"`
}

// AuthService 处理注册、登录与会话查询。
type AuthService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewAuthService(gdb *gorm.DB, logger *zap.Logger) *AuthService {
	return &AuthService{db: gdb, logger: logging.Named(logger, "auth")}
}

// SignUp creates the account and its profile in one transaction.
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (*SessionUser, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	if in.Password != in.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&db.User{}).Where("email = ?", in.Email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := db.User{Email: in.Email, Password: string(hashed)}
	profile := db.Profile{FirstName: in.FirstName, LastName: in.LastName}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		profile.ID = user.ID
		return tx.Create(&profile).Error
	})
	if isDuplicateKey(err) {
		// 并发注册同一邮箱时由唯一索引兜底
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("user signed up", zap.String("user_id", user.ID))
	return &SessionUser{ID: user.ID, Email: user.Email, Profile: &profile}, nil
}

// isDuplicateKey recognizes unique-index violations from sqlite and postgres,
// which gorm passes through untranslated.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}

// SignIn checks email and password.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*SessionUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	var user db.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.withProfile(ctx, user)
}

// Session returns the user behind a session id, or nil when the user no longer exists.
func (s *AuthService) Session(ctx context.Context, userID string) (*SessionUser, error) {
	if userID == "" {
		return nil, nil
	}
	var user db.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return s.withProfile(ctx, user)
}

func (s *AuthService) withProfile(ctx context.Context, user db.User) (*SessionUser, error) {
	out := &SessionUser{ID: user.ID, Email: user.Email}
	var profile db.Profile
	err := s.db.WithContext(ctx).First(&profile, "id = ?", user.ID).Error
	switch {
	case err == nil:
		out.Profile = &profile
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, err
	}
	return out, nil
}

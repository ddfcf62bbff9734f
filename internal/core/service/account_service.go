package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const (
	useCaseRegister      = "account.register"
	useCaseLogin         = "account.login"
	useCaseFindUserID    = "account.find_id"
	useCaseResetPassword = "account.reset_password"
	useCaseProfile       = "account.profile"
	useCaseUpdateProfile = "account.update_profile"

	tempPasswordLen = 10
)

var errBadCredentials = fmt.Errorf("invalid id or password: %w", domain.ErrUnauthorized)

type RegisterInput struct {
	UserID   string
	Password string
	Name     string
	Tel      string
	Address  string
}

// ProfileUpdate carries the editable profile fields. An empty Password keeps the current one.
type ProfileUpdate struct {
	Password string
	Name     string
	Tel      string
	Address  string
}

type AccountService struct {
	repo port.AccountRepository
	opts options
}

func NewAccountService(repo port.AccountRepository, opts ...Option) *AccountService {
	return &AccountService{repo: repo, opts: newOptions(opts)}
}

func (s *AccountService) Register(ctx context.Context, in RegisterInput) (err error) {
	ctx, run := s.opts.begin(ctx, useCaseRegister, attribute.String("user.id", in.UserID))
	defer func() { run.end(err, zap.String("user_id", in.UserID)) }()

	in.UserID = strings.TrimSpace(in.UserID)
	in.Name = strings.TrimSpace(in.Name)
	in.Tel = strings.TrimSpace(in.Tel)
	in.Address = strings.TrimSpace(in.Address)
	if in.UserID == "" || in.Password == "" || in.Name == "" {
		return fmt.Errorf("userId, userPw and userName are required: %w", domain.ErrInvalidInput)
	}
	if in.Tel != "" && !domain.ValidTel(in.Tel) {
		return fmt.Errorf("tel %q: %w", in.Tel, domain.ErrInvalidInput)
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return err
	}
	return s.repo.CreateUser(ctx, domain.User{
		UserID:       in.UserID,
		PasswordHash: hash,
		Name:         in.Name,
		Tel:          in.Tel,
		Address:      in.Address,
	})
}

// Login checks the credentials and returns the account. Unknown ids and wrong
// passwords are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, userID, password string) (u *domain.User, err error) {
	userID = strings.TrimSpace(userID)
	ctx, run := s.opts.begin(ctx, useCaseLogin, attribute.String("user.id", userID))
	defer func() { run.end(err, zap.String("user_id", userID)) }()

	if userID == "" || password == "" {
		return nil, errBadCredentials
	}

	u, err = s.repo.GetUser(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, errBadCredentials
	}
	return u, nil
}

func (s *AccountService) FindUserID(ctx context.Context, name, tel string) (id string, err error) {
	ctx, run := s.opts.begin(ctx, useCaseFindUserID)
	defer func() { run.end(err) }()

	name, tel = strings.TrimSpace(name), strings.TrimSpace(tel)
	if name == "" || tel == "" {
		return "", fmt.Errorf("userName and userTel are required: %w", domain.ErrInvalidInput)
	}
	return s.repo.FindUserID(ctx, name, tel)
}

// ResetPassword replaces the password of the account matching id and name with a
// random temporary one and returns it in clear text.
func (s *AccountService) ResetPassword(ctx context.Context, userID, name string) (temp string, err error) {
	userID, name = strings.TrimSpace(userID), strings.TrimSpace(name)
	ctx, run := s.opts.begin(ctx, useCaseResetPassword, attribute.String("user.id", userID))
	defer func() { run.end(err, zap.String("user_id", userID)) }()

	if userID == "" || name == "" {
		return "", fmt.Errorf("userId and userName are required: %w", domain.ErrInvalidInput)
	}

	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if u.Name != name {
		return "", fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}

	temp = strings.ReplaceAll(uuid.NewString(), "-", "")[:tempPasswordLen]
	hash, err := s.hash(temp)
	if err != nil {
		return "", err
	}
	u.PasswordHash = hash
	if err := s.repo.UpdateUser(ctx, *u); err != nil {
		return "", err
	}
	return temp, nil
}

func (s *AccountService) Profile(ctx context.Context, userID string) (u *domain.User, err error) {
	ctx, run := s.opts.begin(ctx, useCaseProfile)
	defer func() { run.end(err, zap.String("user_id", userID)) }()

	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("not logged in: %w", domain.ErrUnauthorized)
	}
	return s.repo.GetUser(ctx, userID)
}

func (s *AccountService) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (err error) {
	ctx, run := s.opts.begin(ctx, useCaseUpdateProfile, attribute.String("user.id", userID))
	defer func() { run.end(err, zap.String("user_id", userID)) }()

	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("not logged in: %w", domain.ErrUnauthorized)
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Tel = strings.TrimSpace(in.Tel)
	in.Address = strings.TrimSpace(in.Address)
	if in.Name == "" {
		return fmt.Errorf("userName is required: %w", domain.ErrInvalidInput)
	}
	if !domain.ValidTel(in.Tel) {
		return fmt.Errorf("tel %q: %w", in.Tel, domain.ErrInvalidInput)
	}

	taken, err := s.repo.TelTaken(ctx, in.Tel, userID)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("tel %s already registered: %w", in.Tel, domain.ErrConflict)
	}

	u := domain.User{UserID: userID, Name: in.Name, Tel: in.Tel, Address: in.Address}
	if in.Password != "" {
		if u.PasswordHash, err = s.hash(in.Password); err != nil {
			return err
		}
	}
	return s.repo.UpdateUser(ctx, u)
}

func (s *AccountService) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.bcryptCost)
	if err != nil {
		// bcrypt rejects passwords longer than 72 bytes
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("password: %w", domain.ErrInvalidInput)
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

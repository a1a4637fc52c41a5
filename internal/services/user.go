package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/evently/apiserver/internal/notify"
	"github.com/evently/apiserver/internal/store"
	"github.com/evently/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	CountByEmail(ctx context.Context, email string) (int64, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id string) error
}

type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) (bool, error)
}

type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// Notifier receives lifecycle notifications after successful writes.
type Notifier interface {
	Notify(ctx context.Context, note notify.Notification)
}

// Registration is the input of Register.
type Registration struct {
	Username string
	Email    string
	Password string
	Role     types.Role
}

// UserUpdate is the input of Replace. An empty Role keeps the current one.
type UserUpdate struct {
	Username string
	Role     types.Role
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo     UserRepository
	hasher   PasswordHasher
	tokens   TokenIssuer
	notifier Notifier
}

func NewUserService(repo UserRepository, hasher PasswordHasher, tokens TokenIssuer, notifier Notifier) *UserService {
	return &UserService{repo: repo, hasher: hasher, tokens: tokens, notifier: notifier}
}

// Register creates an account. The email must not be in use.
func (s *UserService) Register(ctx context.Context, reg Registration) (types.User, error) {
	email := strings.TrimSpace(reg.Email)
	count, err := s.repo.CountByEmail(ctx, email)
	if err != nil {
		return types.User{}, fmt.Errorf("count users by email: %w", err)
	}
	if count > 0 {
		return types.User{}, fmt.Errorf("email %q already registered: %w", email, ErrConflict)
	}

	role := reg.Role
	if role == "" {
		role = types.RoleGuest
	}

	hash, err := s.hasher.Hash(reg.Password)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, types.User{
		Username:     strings.TrimSpace(reg.Username),
		Email:        email,
		Role:         role,
		PasswordHash: hash,
	})
	if err != nil {
		return types.User{}, fmt.Errorf("create user: %w", classify(err))
	}

	s.notify(ctx, notify.Notification{Kind: notify.KindUserRegistered, SubjectID: user.ID, ActorID: user.ID})
	return user, nil
}

// Login verifies credentials and issues an access token.
func (s *UserService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return "", fmt.Errorf("find user: %w", classify(err))
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return "", fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return "", ErrUnauthenticated
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

func (s *UserService) Get(ctx context.Context, id string) (types.User, error) {
	if !store.ValidID(id) {
		return types.User{}, ErrInvalidID
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, fmt.Errorf("get user %s: %w", id, classify(err))
	}
	return user, nil
}

// Replace overwrites the username and role of a user.
func (s *UserService) Replace(ctx context.Context, id string, update UserUpdate) (types.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return types.User{}, err
	}

	user.Username = strings.TrimSpace(update.Username)
	if update.Role != "" {
		user.Role = update.Role
	}

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return types.User{}, fmt.Errorf("update user %s: %w", id, classify(err))
	}
	return updated, nil
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	if !store.ValidID(id) {
		return ErrInvalidID
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete user %s: %w", id, classify(err))
	}
	return nil
}

func (s *UserService) notify(ctx context.Context, note notify.Notification) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, note)
	}
}

// Package auth manages operator accounts and their sessions; device
// sessions live in the session package.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ztlan/warden/internal/core/domain"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrRateLimitExceeded  = errors.New("rate limit exceeded")
	ErrInvalidSession     = errors.New("invalid session")
)

const maxLoginAttempts = 5

// Session represents an active operator session.
type Session struct {
	UserID    string
	Role      domain.Role
	ExpiresAt time.Time
}

// Service validates operator credentials and manages their sessions.
// Accounts are held in memory and seeded at startup.
type Service struct {
	mu            sync.RWMutex
	users         map[string]*domain.User
	sessions      map[string]Session
	loginAttempts map[string]int
	sessionTTL    time.Duration
}

// NewService creates the operator auth service.
func NewService() *Service {
	return &Service{
		users:         make(map[string]*domain.User),
		sessions:      make(map[string]Session),
		loginAttempts: make(map[string]int),
		sessionTTL:    24 * time.Hour,
	}
}

// SeedAdmin provisions the admin account when a password is configured.
func (s *Service) SeedAdmin(password string) error {
	if password == "" {
		return nil
	}
	return s.CreateUser(domain.User{Username: "admin", Role: domain.RoleAdmin}, password)
}

// Login validates credentials and returns a session token.
func (s *Service) Login(ctx context.Context, creds domain.Credentials) (string, error) {
	if err := s.checkRateLimit(creds.Username); err != nil {
		return "", err
	}

	s.mu.RLock()
	user, ok := s.users[creds.Username]
	s.mu.RUnlock()
	if !ok {
		s.incrementAttempts(creds.Username)
		return "", ErrInvalidCredentials // generic to avoid enumeration
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		s.incrementAttempts(creds.Username)
		return "", ErrInvalidCredentials
	}

	s.resetAttempts(creds.Username)
	return s.createSession(user), nil
}

// ValidateToken verifies a session token and returns the operator.
func (s *Service) ValidateToken(ctx context.Context, token string) (*domain.User, error) {
	s.mu.RLock()
	session, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidSession
	}
	if time.Now().After(session.ExpiresAt) {
		s.Logout(ctx, token)
		return nil, ErrTokenExpired
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ID == session.UserID {
			return u, nil
		}
	}
	return nil, ErrInvalidSession
}

// Logout invalidates a session token.
func (s *Service) Logout(ctx context.Context, token string) error {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	return nil
}

// CreateUser provisions an account with a hashed password.
func (s *Service) CreateUser(user domain.User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	user.CreatedAt = time.Now()
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.Username] = &user
	return nil
}

// Enabled reports whether any operator account exists; when none does,
// the operator API runs open (development mode).
func (s *Service) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users) > 0
}

// Private helpers

func (s *Service) checkRateLimit(username string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.loginAttempts[username] >= maxLoginAttempts {
		return ErrRateLimitExceeded
	}
	return nil
}

func (s *Service) incrementAttempts(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginAttempts[username]++
}

func (s *Service) resetAttempts(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.loginAttempts, username)
}

func (s *Service) createSession(user *domain.User) string {
	token := uuid.New().String()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = Session{
		UserID:    user.ID,
		Role:      user.Role,
		ExpiresAt: time.Now().Add(s.sessionTTL),
	}
	return token
}

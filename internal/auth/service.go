package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anonto42/minitwitter/backend/internal/apperror"
	"github.com/anonto42/minitwitter/backend/internal/models"
	"github.com/anonto42/minitwitter/backend/internal/repositories"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Identity is what an external identity provider vouches for.
type Identity struct {
	UID   string
	Email string
	Name  string
}

// IdentityVerifier checks an ID token issued by an external provider.
type IdentityVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*Identity, error)
}

// Service registers users and exchanges credentials for tokens.
type Service struct {
	users    repositories.UserRepository
	tokens   *TokenIssuer
	verifier IdentityVerifier
}

// NewService builds the auth service. verifier may be nil, in which case
// FirebaseLogin is rejected.
func NewService(users repositories.UserRepository, tokens *TokenIssuer, verifier IdentityVerifier) *Service {
	return &Service{users: users, tokens: tokens, verifier: verifier}
}

func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	now := time.Now().UTC()
	user := &models.User{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Username:  strings.TrimSpace(req.Username),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Password:  string(hashed),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicateUser) {
			return nil, apperror.ErrUserExists
		}
		return nil, apperror.Transient("register", err)
	}
	return user, nil
}

func (s *Service) Login(ctx context.Context, req models.LoginRequest) (models.TokenPair, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return models.TokenPair{}, apperror.ErrInvalidCredentials
		}
		return models.TokenPair{}, apperror.Transient("login", err)
	}
	if user.Password == "" || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		return models.TokenPair{}, apperror.ErrInvalidCredentials
	}
	return s.tokens.IssuePair(user.ID)
}

// Refresh trades a refresh token for a new access token.
func (s *Service) Refresh(ctx context.Context, refresh string) (string, error) {
	claims, err := s.tokens.Parse(refresh, TokenTypeRefresh)
	if err != nil {
		return "", apperror.ErrUnauthorized
	}
	exists, err := s.users.UserExists(ctx, claims.UserID)
	if err != nil {
		return "", apperror.Transient("refresh", err)
	}
	if !exists {
		return "", apperror.ErrUnauthorized
	}
	return s.tokens.IssueAccess(claims.UserID)
}

// FirebaseLogin verifies a Firebase ID token and returns local tokens for the
// linked account, linking by email or creating the account on first use.
func (s *Service) FirebaseLogin(ctx context.Context, idToken string) (models.TokenPair, *models.User, error) {
	if s.verifier == nil {
		return models.TokenPair{}, nil, apperror.ErrUnauthorized
	}
	identity, err := s.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		return models.TokenPair{}, nil, apperror.ErrUnauthorized
	}

	user, err := s.users.GetUserByFirebaseUID(ctx, identity.UID)
	switch {
	case err == nil:
	case errors.Is(err, repositories.ErrUserNotFound):
		user, err = s.linkOrCreate(ctx, identity)
		if err != nil {
			return models.TokenPair{}, nil, err
		}
	default:
		return models.TokenPair{}, nil, apperror.Transient("firebase login", err)
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return models.TokenPair{}, nil, err
	}
	return pair, user, nil
}

func (s *Service) linkOrCreate(ctx context.Context, identity *Identity) (*models.User, error) {
	if identity.Email == "" {
		return nil, apperror.Validation("Firebase account has no email address.")
	}
	user, err := s.users.GetUserByEmail(ctx, identity.Email)
	if err == nil {
		if err := s.users.SetFirebaseUID(ctx, user.ID, identity.UID); err != nil {
			return nil, apperror.Transient("link firebase account", err)
		}
		return user, nil
	}
	if !errors.Is(err, repositories.ErrUserNotFound) {
		return nil, apperror.Transient("firebase login", err)
	}

	uid := identity.UID
	now := time.Now().UTC()
	user = &models.User{
		ID:          uuid.Must(uuid.NewV7()).String(),
		Username:    usernameFor(identity),
		Email:       strings.ToLower(identity.Email),
		FirebaseUID: &uid,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicateUser) {
			return nil, apperror.ErrUserExists
		}
		return nil, apperror.Transient("firebase login", err)
	}
	return user, nil
}

// usernameFor derives a unique-enough handle from the display name or the
// email local part, suffixed with part of the Firebase UID.
func usernameFor(identity *Identity) string {
	base := strings.ToLower(strings.Join(strings.Fields(identity.Name), "_"))
	if base == "" {
		base, _, _ = strings.Cut(identity.Email, "@")
	}
	suffix := identity.UID
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	name := base + "_" + suffix
	if len(name) > 150 {
		name = name[:150]
	}
	return name
}

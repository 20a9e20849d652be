package services

import (
	"context"
	"fmt"
	"kuro/auth"
	"kuro/contract"
	"kuro/domain"
	"kuro/errors"
	"kuro/repositories"
	"kuro/store"
	"log/slog"
	"time"
)

type IAuthService interface {
	SignUp(ctx context.Context, email, password string) (Token, error)
	LogIn(ctx context.Context, email, password string) (Token, error)
	LogOut() error
	UpdateProfile(ctx context.Context, profile auth.ProfileRequest) error
}

type AuthService struct {
	log               *slog.Logger
	credentials       repositories.ICredentialRepository
	store             contract.ILiveStore
	session           *Session
	secret            []byte
	authTokenDuration time.Duration
}

type Token string

func (t Token) String() string {
	return string(t)
}

func NewAuthService(log *slog.Logger, credentials repositories.ICredentialRepository, store contract.ILiveStore,
	session *Session, secret []byte, authTokenDuration time.Duration) *AuthService {
	return &AuthService{
		log:               log,
		credentials:       credentials,
		store:             store,
		session:           session,
		secret:            secret,
		authTokenDuration: authTokenDuration,
	}
}

// SignUp creates the credential, then publishes the participant record users/{id}
// so that every other participant sees the newcomer.
func (s *AuthService) SignUp(ctx context.Context, email, password string) (Token, error) {
	// Validation runs before any expensive cryptographic operation
	if err := auth.ValidateRegister(auth.RegisterRequest{Email: email, Password: password}); err != nil {
		return "", fmt.Errorf("%w: %w", errors.ErrInvalidPassword, err)
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	userID, err := s.credentials.CreateUser(email, hashedPassword)
	if err != nil {
		return "", err
	}

	participant := domain.Participant{ID: userID, Email: email}
	if err = s.store.Write(ctx, domain.UserPath(userID), store.ParticipantDocument(participant)); err != nil {
		return "", fmt.Errorf("write participant %s: %w", userID, err)
	}

	token, err := auth.GenerateToken(s.secret, userID, email, s.authTokenDuration)
	if err != nil {
		return "", err
	}
	s.session.Start(userID, email, Token(token))
	s.log.Info("Participant signed up", "user", userID)
	return Token(token), nil
}

func (s *AuthService) LogIn(ctx context.Context, email, password string) (Token, error) {
	credential, err := s.credentials.GetUserByEmail(email)
	if err != nil {
		// Same error whatever the cause, no account enumeration
		return "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, credential.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	if err = s.touchPresence(ctx, credential); err != nil {
		s.log.Warn("Presence not updated", "user", credential.ID, "error", err)
	}

	token, err := auth.GenerateToken(s.secret, credential.ID, credential.Email, s.authTokenDuration)
	if err != nil {
		return "", err
	}
	s.session.Start(credential.ID, credential.Email, Token(token))
	s.log.Info("Participant logged in", "user", credential.ID)
	return Token(token), nil
}

// touchPresence rewrites lastOnline, recreating the participant record if it went missing.
func (s *AuthService) touchPresence(ctx context.Context, credential repositories.Credential) error {
	path := domain.UserPath(credential.ID)
	doc, found, err := s.store.Get(ctx, path)
	if err != nil {
		return err
	}
	if !found {
		doc = store.ParticipantDocument(domain.Participant{ID: credential.ID, Email: credential.Email})
	}
	return s.store.Write(ctx, path, store.TouchPresence(doc))
}

// LogOut ends the session, which tears down every subscription opened on its behalf.
func (s *AuthService) LogOut() error {
	if !s.session.End() {
		return errors.ErrNotLoggedIn
	}
	return nil
}

// UpdateProfile merges the non empty fields of profile into the current participant record.
func (s *AuthService) UpdateProfile(ctx context.Context, profile auth.ProfileRequest) error {
	userID, ok := s.session.CurrentUserID()
	if !ok {
		return errors.ErrNotLoggedIn
	}
	if err := auth.ValidateProfile(profile); err != nil {
		return err
	}

	path := domain.UserPath(userID)
	doc, found, err := s.store.Get(ctx, path)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", errors.ErrParticipantMissing, userID)
	}
	return s.store.Write(ctx, path, store.MergeProfile(doc, profile.DisplayName, profile.AvatarURL))
}

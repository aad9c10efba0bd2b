package services

import (
	"crypto/md5"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"phonebook/internal/models"
	"phonebook/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Service-level failures the handlers map to transport statuses.
var (
	// ErrInvalidCredentials covers both an unknown email and a wrong
	// password so that login responses carry no enumeration signal.
	ErrInvalidCredentials = errors.New("email or password is wrong")
	// ErrAlreadyVerified is returned when a verification resend is
	// requested for an account that already confirmed its address.
	ErrAlreadyVerified = errors.New("verification has already been passed")
	// ErrInvalidToken is the single error for every token failure:
	// malformed, bad signature or expired are indistinguishable by design.
	ErrInvalidToken = errors.New("invalid token")
)

// VerificationNotifier delivers a verification link for the given address.
// Implementations may send directly or enqueue for an async worker; either
// way the auth flow treats delivery as fire-and-forget.
type VerificationNotifier interface {
	NotifyVerification(email, token string) error
}

// AuthService handles business logic for accounts and authentication.
type AuthService struct {
	userRepo  repositories.UserRepository
	notifier  VerificationNotifier
	jwtSecret []byte
	tokenTTL  time.Duration
}

// NewAuthService creates a new AuthService. The secret and TTL come from the
// process-wide config so issuance and verification always share one key.
func NewAuthService(userRepo repositories.UserRepository, notifier VerificationNotifier, jwtSecret string, tokenTTL time.Duration) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &AuthService{
		userRepo:  userRepo,
		notifier:  notifier,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

// Signup registers a new account in the Unverified, LoggedOut state.
// The verification email is dispatched in the background; a delivery failure
// is logged and never rolls back the created record.
func (s *AuthService) Signup(email, password string) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	verificationToken := uuid.New().String()
	avatar := gravatarURL(email)
	user := &models.User{
		Email:             email,
		Password:          string(hashedPassword),
		Subscription:      models.SubscriptionStarter,
		AvatarURL:         &avatar,
		VerificationToken: &verificationToken,
	}

	// No existence pre-check: the unique index on email decides, which
	// also settles concurrent signups for the same address.
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		go func() {
			if err := s.notifier.NotifyVerification(user.Email, verificationToken); err != nil {
				log.Printf("Failed to send verification email to %s: %v", user.Email, err)
			}
		}()
	}

	return user, nil
}

// Login authenticates a user and returns a signed bearer token. The token is
// also persisted on the user record for bookkeeping.
func (s *AuthService) Login(email, password string) (string, *models.User, error) {
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"exp":     time.Now().Add(s.tokenTTL).Unix(),
		"iat":     time.Now().Unix(),
	})
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}

	user.Token = &tokenString
	if err := s.userRepo.Update(user); err != nil {
		return "", nil, fmt.Errorf("failed to store token: %w", err)
	}

	return tokenString, user, nil
}

// Logout clears the stored token of the given user. Token validity itself is
// stateless (signature + expiry), so a second logout with a still-unexpired
// token also succeeds.
func (s *AuthService) Logout(userID string) error {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return err
	}
	user.Token = nil
	if err := s.userRepo.Update(user); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}

// CurrentUser returns the account behind a resolved identity claim.
func (s *AuthService) CurrentUser(userID string) (*models.User, error) {
	return s.userRepo.GetByID(userID)
}

// VerifyEmail consumes a verification token: the account becomes verified
// and the token is nulled, so replaying it reports not-found.
func (s *AuthService) VerifyEmail(verificationToken string) error {
	user, err := s.userRepo.GetByVerificationToken(verificationToken)
	if err != nil {
		return err
	}
	user.Verify = true
	user.VerificationToken = nil
	if err := s.userRepo.Update(user); err != nil {
		return fmt.Errorf("failed to mark user verified: %w", err)
	}
	return nil
}

// ResendVerification issues a fresh verification token for an unverified
// account and dispatches a new email.
func (s *AuthService) ResendVerification(email string) error {
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return err
	}
	if user.Verify {
		return ErrAlreadyVerified
	}

	verificationToken := uuid.New().String()
	user.VerificationToken = &verificationToken
	if err := s.userRepo.Update(user); err != nil {
		return fmt.Errorf("failed to store verification token: %w", err)
	}

	if s.notifier != nil {
		go func() {
			if err := s.notifier.NotifyVerification(user.Email, verificationToken); err != nil {
				log.Printf("Failed to resend verification email to %s: %v", user.Email, err)
			}
		}()
	}
	return nil
}

// SetAvatarURL records the public URL of a freshly processed avatar.
func (s *AuthService) SetAvatarURL(userID, url string) error {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return err
	}
	user.AvatarURL = &url
	if err := s.userRepo.Update(user); err != nil {
		return fmt.Errorf("failed to store avatar URL: %w", err)
	}
	return nil
}

// ValidateToken parses and validates a bearer token, returning the user ID
// claim. Validation is purely cryptographic: the stored User.Token field is
// not consulted, so logout does not revoke still-unexpired tokens.
func (s *AuthService) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", ErrInvalidToken
	}
	return userID, nil
}

// gravatarURL builds the placeholder avatar for a fresh account from the
// email's md5, the addressing scheme gravatar defines.
func gravatarURL(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%x?s=250&d=identicon", sum)
}

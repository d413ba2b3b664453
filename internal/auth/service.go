package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/clawtask/backend/internal/models"
)

// ErrDuplicateUser is returned when registering a username or email that
// already exists.
var ErrDuplicateUser = errors.New("username or email already registered")

// ErrInvalidCredentials is returned for a failed login or a bad token.
var ErrInvalidCredentials = errors.New("invalid credentials")

const tokenTTL = 7 * 24 * time.Hour

// UserStore is the user repository surface auth needs.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type Service interface {
	Register(ctx context.Context, username, email, password string) (*models.User, string, error)
	Login(ctx context.Context, username, password string) (*models.User, string, error)
	ValidateToken(ctx context.Context, token string) (uuid.UUID, error)
}

type service struct {
	users  UserStore
	secret []byte
}

func NewService(users UserStore, secret string) *service {
	return &service{users: users, secret: []byte(secret)}
}

var _ Service = (*service)(nil)

type claims struct {
	jwt.RegisteredClaims
	Type string `json:"type"`
}

func (s *service) Register(ctx context.Context, username, email, password string) (*models.User, string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}
	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, "", ErrDuplicateUser
		}
		return nil, "", err
	}
	token, err := s.issueToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *service) Login(ctx context.Context, username, password string) (*models.User, string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, "", ErrInvalidCredentials
	}
	if user.PasswordHash == "" {
		return nil, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}
	token, err := s.issueToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *service) issueToken(userID uuid.UUID) (string, error) {
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Type: "user",
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.secret)
}

func (s *service) ValidateToken(ctx context.Context, token string) (uuid.UUID, error) {
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return uuid.Nil, ErrInvalidCredentials
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return uuid.Nil, ErrInvalidCredentials
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidCredentials
	}
	return id, nil
}

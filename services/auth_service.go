package services

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"supportdesk/config"
	"supportdesk/models"
	"supportdesk/storage"
)

// AuthService issues and validates attendant tokens. Identity enrichment
// beyond login lives in external systems; this is just enough to know who
// is acting as which attendant in which tenant.
type AuthService struct {
	store         storage.Store
	jwtSecret     []byte
	tokenExpiry   time.Duration
	refreshExpiry time.Duration
}

func NewAuthService(store storage.Store, cfg *config.AuthConfig) *AuthService {
	return &AuthService{
		store:         store,
		jwtSecret:     []byte(cfg.JWTSecret),
		tokenExpiry:   time.Duration(cfg.TokenExpiry) * time.Hour,
		refreshExpiry: time.Duration(cfg.RefreshExpiry) * time.Hour,
	}
}

type Claims struct {
	UserID   uint   `json:"user_id"`
	TenantID uint   `json:"tenant_id"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

func (s *AuthService) GenerateTokens(user *models.User) (*models.AuthResponse, error) {
	accessClaims := &Claims{
		UserID:   user.ID,
		TenantID: user.TenantID,
		Email:    user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}

	refreshClaims := &Claims{
		UserID:   user.ID,
		TenantID: user.TenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.refreshExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}

	return &models.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.tokenExpiry.Seconds()),
		User:         *user,
	}, nil
}

func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// Register creates the user and the attendant profile together so a fresh
// deployment can bootstrap its first console login.
func (s *AuthService) Register(ctx context.Context, tenantID uint, email, username, password string, maxConversations int) (*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		TenantID: tenantID,
		Email:    email,
		Username: username,
		Password: string(hashed),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	if maxConversations <= 0 {
		maxConversations = 3
	}
	attendant := &models.Attendant{
		TenantID:         tenantID,
		UserID:           user.ID,
		DisplayName:      username,
		Status:           models.AttendantOffline,
		MaxConversations: maxConversations,
	}
	if err := s.store.SaveAttendant(ctx, attendant); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidLogin
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidLogin
	}
	return user, nil
}

func (s *AuthService) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	return s.store.GetUser(ctx, userID)
}

func (s *AuthService) AttendantForUser(ctx context.Context, userID uint) (*models.Attendant, error) {
	a, err := s.store.GetAttendantByUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrAttendantNotFound
	}
	return a, err
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cacoblog/internal/config"
	"cacoblog/internal/gateway"
	"cacoblog/internal/models"
	"cacoblog/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var _ gateway.AuthService = (*authService)(nil)

type signUpRequest struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
	Username string `validate:"required,max=50"`
}

type signInRequest struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type authService struct {
	userRepo repository.UserRepository
	cfg      *config.Config
	validate *validator.Validate
	now      func() time.Time
}

func NewAuthService(userRepo repository.UserRepository, cfg *config.Config) gateway.AuthService {
	return &authService{
		userRepo: userRepo,
		cfg:      cfg,
		validate: validator.New(),
		now:      time.Now,
	}
}

// SignUp creates the account and signs it in.
func (s *authService) SignUp(ctx context.Context, email, password, username string) (*models.Session, error) {
	req := signUpRequest{
		Email:    strings.TrimSpace(email),
		Password: password,
		Username: strings.TrimSpace(username),
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrValidation, describeValidation(err))
	}

	user := &models.User{
		Email:    req.Email,
		Username: req.Username,
	}

	err := s.userRepo.CreateUser(ctx, user, req.Password)
	if err != nil {
		return nil, err
	}

	return s.issueSession(ctx, user)
}

func (s *authService) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	req := signInRequest{Email: strings.TrimSpace(email), Password: password}
	if err := s.validate.Struct(req); err != nil {
		return nil, models.ErrInvalidCredentials
	}

	user, err := s.userRepo.VerifyPassword(ctx, req.Email, req.Password)
	if err != nil {
		return nil, fmt.Errorf("ошибка аутентификации: %w", err)
	}

	return s.issueSession(ctx, user)
}

// Refresh rotates the refresh token and issues a new access token.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	user, err := s.userRepo.GetUserByRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("недействительный refresh token: %w", err)
	}

	return s.issueSession(ctx, user)
}

// SignOut revokes the stored refresh token.
func (s *authService) SignOut(ctx context.Context, userID string) error {
	err := s.userRepo.UpdateRefreshToken(ctx, userID, "", s.now())
	if err != nil {
		return fmt.Errorf("ошибка выхода из системы: %w", err)
	}
	return nil
}

func (s *authService) SessionFromToken(accessToken string) (*models.Session, error) {
	token, err := s.validateToken(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrNotAuthenticated, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: неверный формат claims", models.ErrNotAuthenticated)
	}

	userID, _ := claims["userId"].(string)
	if userID == "" {
		return nil, fmt.Errorf("%w: в токене нет userId", models.ErrNotAuthenticated)
	}

	email, _ := claims["email"].(string)
	username, _ := claims["username"].(string)

	session := &models.Session{
		UserID:      userID,
		Email:       email,
		Username:    username,
		AccessToken: accessToken,
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		session.ExpiresAt = exp.Time
	}

	return session, nil
}

func (s *authService) issueSession(ctx context.Context, user *models.User) (*models.Session, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.AccessTokenDuration)

	accessToken, err := s.generateAccessToken(user, now, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("ошибка генерации access token: %w", err)
	}

	refreshToken, refreshTokenExpiry := s.generateRefreshToken(now)

	err = s.userRepo.UpdateRefreshToken(ctx, user.UserID, refreshToken, refreshTokenExpiry)
	if err != nil {
		return nil, fmt.Errorf("ошибка сохранения refresh token: %w", err)
	}

	return &models.Session{
		UserID:       user.UserID,
		Email:        user.Email,
		Username:     user.Username,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *authService) generateAccessToken(user *models.User, issuedAt, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"userId":   user.UserID,
		"email":    user.Email,
		"username": user.Username,
		"exp":      expiresAt.Unix(),
		"iat":      issuedAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(s.cfg.JWTSecretKey))
	if err != nil {
		return "", fmt.Errorf("ошибка подписи токена: %w", err)
	}

	return tokenString, nil
}

func (s *authService) generateRefreshToken(now time.Time) (string, time.Time) {
	return uuid.New().String(), now.Add(s.cfg.RefreshTokenDuration)
}

func (s *authService) validateToken(tokenString string) (*jwt.Token, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неожиданный метод подписи: %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWTSecretKey), nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга токена: %w", err)
	}

	if !token.Valid {
		return nil, errors.New("недействительный токен")
	}

	return token, nil
}

func describeValidation(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}

	fields := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		fields = append(fields, fieldMessage(fe))
	}
	return strings.Join(fields, "; ")
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Field() {
	case "Email":
		return "укажите корректный email"
	case "Password":
		if fe.Tag() == "min" {
			return "пароль должен быть не короче " + fe.Param() + " символов"
		}
		return "укажите пароль"
	case "Username":
		if fe.Tag() == "max" {
			return "имя пользователя слишком длинное"
		}
		return "укажите имя пользователя"
	default:
		return fe.Field() + ": " + fe.Tag()
	}
}

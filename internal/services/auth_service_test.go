package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"tabiyaku/internal/models"
	"tabiyaku/internal/repositories"
	"tabiyaku/internal/services"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

const testJWTSecret = "test_jwt_secret"

func newAuthService(repo repositories.UserRepository) *services.AuthService {
	return services.NewAuthService(repo, services.TokenConfig{
		Secret: testJWTSecret,
		TTL:    time.Hour,
		Issuer: "tabiyaku-test",
	}, zap.NewNop())
}

func TestAuthService_RegisterUser(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(mockRepo)

	// Successful registration stores a bcrypt hash, never the plaintext.
	mockRepo.On("GetByUsername", ctx, "testuser").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("Create", ctx, mock.AnythingOfType("*models.User")).Run(func(args mock.Arguments) {
		u := args.Get(1).(*models.User)
		u.ID = "user-123"
		assert.NotEqual(t, "password123", u.Password)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("password123")))
	}).Return(nil).Once()

	user, err := authService.RegisterUser(ctx, "testuser", "password123")
	require.NoError(t, err)
	assert.Equal(t, "user-123", user.ID)
	assert.Equal(t, "testuser", user.Username)
	mockRepo.AssertExpectations(t)

	// Username already taken.
	mockRepo.On("GetByUsername", ctx, "testuser").Return(&models.User{ID: "1"}, nil).Once()
	_, err = authService.RegisterUser(ctx, "testuser", "password123")
	assert.ErrorIs(t, err, services.ErrDuplicateUser)
	mockRepo.AssertExpectations(t)

	// Lost race: the insert itself reports the duplicate.
	mockRepo.On("GetByUsername", ctx, "racer").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("Create", ctx, mock.AnythingOfType("*models.User")).Return(repositories.ErrDuplicate).Once()
	_, err = authService.RegisterUser(ctx, "racer", "password123")
	assert.ErrorIs(t, err, services.ErrDuplicateUser)
	mockRepo.AssertExpectations(t)

	// Storage failure during the lookup is not reported as a duplicate.
	mockRepo.On("GetByUsername", ctx, "broken").Return(nil, errors.New("db down")).Once()
	_, err = authService.RegisterUser(ctx, "broken", "password123")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, services.ErrDuplicateUser)
}

func TestAuthService_LoginUser(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(mockRepo)

	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	user := &models.User{
		ID:       "user-123",
		Username: "testuser",
		Password: string(hashedPassword),
	}

	mockRepo.On("GetByUsername", ctx, user.Username).Return(user, nil).Once()
	token, err := authService.LoginUser(ctx, "testuser", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	parsed := &services.Claims{}
	_, err = jwt.ParseWithClaims(token, parsed, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(testJWTSecret), nil
	})
	require.NoError(t, err)
	assert.Equal(t, user.ID, parsed.Subject)
	assert.Equal(t, user.Username, parsed.Username)
	assert.Equal(t, "tabiyaku-test", parsed.Issuer)
	assert.Greater(t, parsed.ExpiresAt, parsed.IssuedAt)

	// Wrong password and unknown user fail identically.
	mockRepo.On("GetByUsername", ctx, user.Username).Return(user, nil).Once()
	_, wrongPassword := authService.LoginUser(ctx, "testuser", "wrongpassword")

	mockRepo.On("GetByUsername", ctx, "nobody").Return(nil, repositories.ErrNotFound).Once()
	_, unknownUser := authService.LoginUser(ctx, "nobody", "password123")

	assert.ErrorIs(t, wrongPassword, services.ErrInvalidCredentials)
	assert.ErrorIs(t, unknownUser, services.ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())

	// Storage failure during the lookup is a server fault, not bad credentials.
	mockRepo.On("GetByUsername", ctx, "broken").Return(nil, errors.New("db down")).Once()
	_, err = authService.LoginUser(ctx, "broken", "password123")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, services.ErrInvalidCredentials)
	assert.ErrorContains(t, err, "db down")
	mockRepo.AssertExpectations(t)
}

func TestAuthService_ValidateToken(t *testing.T) {
	authService := newAuthService(new(MockUserRepository))

	sign := func(claims jwt.Claims, secret string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}

	valid := sign(services.Claims{
		Username:       "testuser",
		StandardClaims: jwt.StandardClaims{Subject: "user-123", ExpiresAt: time.Now().Add(time.Hour).Unix()},
	}, testJWTSecret)
	claims, err := authService.ValidateToken(valid)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, "testuser", claims.Username)

	_, err = authService.ValidateToken("invalid.token.string")
	assert.ErrorIs(t, err, services.ErrInvalidToken)

	wrongSecret := sign(services.Claims{
		StandardClaims: jwt.StandardClaims{Subject: "user-123", ExpiresAt: time.Now().Add(time.Hour).Unix()},
	}, "another_secret")
	_, err = authService.ValidateToken(wrongSecret)
	assert.ErrorIs(t, err, services.ErrInvalidToken)

	expired := sign(services.Claims{
		StandardClaims: jwt.StandardClaims{Subject: "user-123", ExpiresAt: time.Now().Add(-time.Hour).Unix()},
	}, testJWTSecret)
	_, err = authService.ValidateToken(expired)
	assert.ErrorIs(t, err, services.ErrInvalidToken)

	noSubject := sign(services.Claims{
		StandardClaims: jwt.StandardClaims{ExpiresAt: time.Now().Add(time.Hour).Unix()},
	}, testJWTSecret)
	_, err = authService.ValidateToken(noSubject)
	assert.ErrorIs(t, err, services.ErrInvalidToken)
}

func TestAuthService_CurrentUser(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(mockRepo)

	mockRepo.On("GetByID", ctx, "user-123").Return(&models.User{ID: "user-123", Username: "testuser"}, nil).Once()
	user, err := authService.CurrentUser(ctx, "user-123")
	require.NoError(t, err)
	assert.Equal(t, "testuser", user.Username)

	mockRepo.On("GetByID", ctx, "gone").Return(nil, repositories.ErrNotFound).Once()
	_, err = authService.CurrentUser(ctx, "gone")
	assert.ErrorIs(t, err, services.ErrUnauthorized)
	mockRepo.AssertExpectations(t)
}

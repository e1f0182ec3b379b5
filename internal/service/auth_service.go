package service

import (
	"context"
	"errors"
	"strings"

	"github.com/inkpost/internal/db"
	"github.com/inkpost/internal/security"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 6

// SignupInput 注册所需字段
type SignupInput struct {
	Name     string
	Email    string
	Password string
}

// LoginResult carries the authenticated user and a signed bearer token.
type LoginResult struct {
	User  *db.User
	Token string
}

// AuthService checks credentials and issues tokens. It holds no session state.
type AuthService struct {
	db     *gorm.DB
	tokens *security.Tokens
}

// NewAuthService creates an AuthService instance.
func NewAuthService(gdb *gorm.DB, tokens *security.Tokens) *AuthService {
	return &AuthService{db: gdb, tokens: tokens}
}

// Signup registers a user with a bcrypt hashed password.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*db.User, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	switch {
	case name == "":
		return nil, ErrNameRequired
	case email == "":
		return nil, ErrEmailRequired
	case len(input.Password) < minPasswordLength:
		return nil, ErrPasswordTooShort
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := db.User{Name: name, Email: email, Password: string(hashed)}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return &user, nil
}

// Login verifies the password and signs a token for the user.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	var user db.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: &user, Token: token}, nil
}

// User loads an account by id.
func (s *AuthService) User(ctx context.Context, id string) (*db.User, error) {
	var user db.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return &user, nil
}

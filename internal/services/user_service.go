package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/freshpress/laundromat-backend/internal/auth"
	"github.com/freshpress/laundromat-backend/internal/models"
	repo "github.com/freshpress/laundromat-backend/internal/repository"
)

type UserService struct {
	users   repo.Users
	wallets repo.Wallets
	tm      *auth.TokenManager
}

func NewUserService(users repo.Users, wallets repo.Wallets, tm *auth.TokenManager) *UserService {
	return &UserService{users: users, wallets: wallets, tm: tm}
}

func (s *UserService) Register(ctx context.Context, fullName, email, phone, password string) (models.User, error) {
	u := models.User{
		FullName: strings.TrimSpace(fullName),
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Phone:    strings.TrimSpace(phone),
		Role:     "user",
	}
	if err := u.Validate(); err != nil {
		return models.User{}, err
	}
	if len(password) < 6 {
		return models.User{}, errors.New("password must be at least 6 characters")
	}

	if _, err := s.users.GetByEmail(ctx, u.Email); err == nil {
		return models.User{}, ErrEmailTaken
	} else if !errors.Is(err, repo.ErrNotFound) {
		return models.User{}, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}
	u.PasswordHash = hash

	u, err = s.users.Create(ctx, u)
	if err != nil {
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	// Every customer gets an empty wallet up front.
	if _, err := s.wallets.GetOrCreate(ctx, u.ID); err != nil {
		return models.User{}, fmt.Errorf("create wallet: %w", err)
	}
	return u, nil
}

func (s *UserService) Login(ctx context.Context, email, password string) (auth.TokenPair, models.User, error) {
	u, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repo.ErrNotFound) {
		return auth.TokenPair{}, models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return auth.TokenPair{}, models.User{}, err
	}
	if err := auth.VerifyPassword(password, u.PasswordHash); err != nil {
		return auth.TokenPair{}, models.User{}, ErrInvalidCredentials
	}
	pair, err := s.tm.GeneratePair(u.ID, u.Role)
	if err != nil {
		return auth.TokenPair{}, models.User{}, err
	}
	return pair, u, nil
}

func (s *UserService) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	claims, isRefresh, err := s.tm.ParseAny(refreshToken)
	if err != nil || !isRefresh {
		return auth.TokenPair{}, ErrInvalidCredentials
	}
	return s.tm.GeneratePair(claims.UserID, claims.Role)
}

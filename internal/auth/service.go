// Package auth はパスワードポリシー、パスワードハッシュ、アクセストークン、アカウント管理を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/repository"
)

// RegisterSuccessMessage は登録成功時に返すメッセージ。
const RegisterSuccessMessage = "User registered successfully"

// Service はユーザー登録と認証のビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	hasher   PasswordHasher
	now      func() time.Time
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, hasher PasswordHasher) *Service {
	return &Service{
		userRepo: userRepo,
		hasher:   hasher,
		now:      time.Now,
	}
}

// Register は新しいユーザーを登録する。
// 既存ユーザーの確認をパスワード検証より先に行うため、両方に該当する場合は重複エラーを返す。
// いずれかに該当した場合、ユーザーは作成されない。
func (s *Service) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	exists, err := s.userRepo.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if exists {
		return nil, model.NewUserAlreadyExistsError()
	}

	if !IsValidPassword(password) {
		return nil, model.NewWeakPasswordError()
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &model.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// 存在確認と作成の間に同じユーザー名/メールアドレスが登録された場合
		if errors.Is(err, repository.ErrDuplicateUser) {
			return nil, model.NewUserAlreadyExistsError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return user, nil
}

// Authenticate はユーザー名またはメールアドレスとパスワードでユーザーを認証する。
// ユーザーが存在しない場合とパスワードが一致しない場合はどちらもnil, nilを返す。
func (s *Service) Authenticate(ctx context.Context, usernameOrEmail, password string) (*model.User, error) {
	user, err := s.userRepo.FindByUsernameOrEmail(ctx, usernameOrEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, nil
	}

	if !s.hasher.Verify(user.PasswordHash, password) {
		slog.Info("password verification failed", slog.String("user_id", user.ID))
		return nil, nil
	}

	return user, nil
}

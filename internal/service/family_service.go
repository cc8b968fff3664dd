package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"vigil-backend/internal/domain"
	"vigil-backend/internal/repository"

	"go.uber.org/zap"
)

// FamilyService 家庭成员
type FamilyService struct {
	store  repository.Store
	logger *zap.Logger
}

// NewFamilyService 创建家庭成员服务
func NewFamilyService(store repository.Store, logger *zap.Logger) *FamilyService {
	return &FamilyService{store: store, logger: logger}
}

// ListMembers 按 email 升序；家庭不存在时返回空列表
func (s *FamilyService) ListMembers(ctx context.Context, familyID string) ([]*domain.User, error) {
	var members []*domain.User
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		members, err = tx.Families().ListMembers(ctx, familyID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list family members: %w", err)
	}
	if members == nil {
		members = []*domain.User{}
	}
	return members, nil
}

// JoinFamily 登记成员；email 已存在时改绑到该家庭，name 为空保留原值
func (s *FamilyService) JoinFamily(ctx context.Context, familyID, email, name string) (*domain.User, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return nil, validationf("Invalid member email")
	}
	user := &domain.User{
		Email:    strings.ToLower(addr.Address),
		Name:     strings.TrimSpace(name),
		FamilyID: familyID,
	}

	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		if err := tx.Families().EnsureFamily(ctx, familyID); err != nil {
			return err
		}
		return tx.Families().UpsertMember(ctx, user)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to join family: %w", err)
	}

	s.logger.Info("Family member registered",
		zap.String("family_id", familyID),
		zap.String("email", user.Email),
	)
	return user, nil
}

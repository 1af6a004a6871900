package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/cppla/queridometro/models"
	"github.com/cppla/queridometro/usecase"
)

// UserStore keeps roster credentials.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) LookupUser(ctx context.Context, name string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, usecase.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return &user, nil
}

// CreateUser inserts a new credential row.
func (s *UserStore) CreateUser(ctx context.Context, name, hash string) error {
	err := s.db.WithContext(ctx).Create(&models.User{Name: name, PasswordHash: hash, CredentialVersion: 1}).Error
	if err != nil {
		if isDuplicate(err) {
			return usecase.ErrAlreadyRegistered
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// SetInitialCredential creates the row on first access, or fills an empty
// credential left by a reset. An existing password is never overwritten.
func (s *UserStore) SetInitialCredential(ctx context.Context, name, hash string) error {
	err := s.CreateUser(ctx, name, hash)
	if err == nil || !errors.Is(err, usecase.ErrAlreadyRegistered) {
		return err
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("name = ? AND (password_hash = '' OR password_hash IS NULL)", name).
		Updates(credentialUpdate(hash))
	if res.Error != nil {
		return fmt.Errorf("set credential: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return usecase.ErrAlreadyRegistered
	}
	return nil
}

func (s *UserStore) UpdateCredential(ctx context.Context, name, hash string) error {
	if _, err := s.LookupUser(ctx, name); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("name = ?", name).Updates(credentialUpdate(hash)).Error; err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	return nil
}

// credentialUpdate replaces the hash and bumps the version in one statement.
func credentialUpdate(hash string) map[string]interface{} {
	return map[string]interface{}{
		"password_hash":      hash,
		"credential_version": gorm.Expr("credential_version + 1"),
	}
}

func (s *UserStore) ClearCredential(ctx context.Context, name string) error {
	return s.UpdateCredential(ctx, name, "")
}

func (s *UserStore) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("password_hash <> ''").Count(&n).Error
	return n, err
}

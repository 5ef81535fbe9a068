package token

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/sellerbridge/sellerbridge/internal/apperrors"
	"github.com/sellerbridge/sellerbridge/internal/database"
	"github.com/sellerbridge/sellerbridge/internal/models"
	"github.com/sellerbridge/sellerbridge/internal/supplier"
	"github.com/sellerbridge/sellerbridge/internal/utils"
	"gorm.io/gorm"
)

// storage is the persistence surface of the token store, split out from
// the gorm layer so the lifecycle can run against an in-memory double.
type storage interface {
	Account(accountID uint) (*models.SupplierAccount, error)
	NewestValidToken(accountID uint, now time.Time) (*models.SupplierToken, error)
	ReplaceToken(tok *models.SupplierToken) error
	DeleteTokens(accountID uint) error
	BumpUsage(accountID uint, success bool)
}

// Store manages the supplier token lifecycle: cached-if-unexpired,
// refreshed through the supplier auth endpoint otherwise. At most one
// refresh is in flight per account (per-account mutex).
type Store struct {
	store  storage
	auth   supplier.Authenticator
	ttl    time.Duration
	encKey string

	locks sync.Map // account ID -> *sync.Mutex
}

// NewStore creates a token store backed by the database
func NewStore(db *database.DB, auth supplier.Authenticator, ttl time.Duration, encKey string) *Store {
	if ttl == 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Store{
		store:  &gormStorage{db: db},
		auth:   auth,
		ttl:    ttl,
		encKey: encKey,
	}
}

func (s *Store) lockFor(accountID uint) *sync.Mutex {
	actual, _ := s.locks.LoadOrStore(accountID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// GetValidToken returns a cached token if unexpired, otherwise performs a
// login call and persists the replacement with expiry = now + TTL. Every
// call updates the account's usage counters.
func (s *Store) GetValidToken(ctx context.Context, accountID uint) (*models.SupplierToken, error) {
	if tok := s.cachedToken(accountID); tok != nil {
		s.RecordUsage(accountID, true)
		return tok, nil
	}

	mu := s.lockFor(accountID)
	mu.Lock()
	defer mu.Unlock()

	// Another caller may have refreshed while we waited for the lock
	if tok := s.cachedToken(accountID); tok != nil {
		s.RecordUsage(accountID, true)
		return tok, nil
	}

	return s.refresh(ctx, accountID)
}

// cachedToken returns the newest unexpired token for the account, or nil
func (s *Store) cachedToken(accountID uint) *models.SupplierToken {
	tok, err := s.store.NewestValidToken(accountID, time.Now().UTC())
	if err != nil {
		return nil
	}
	return tok
}

// refresh performs the login call and replaces the stored token
func (s *Store) refresh(ctx context.Context, accountID uint) (*models.SupplierToken, error) {
	account, err := s.store.Account(accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.AuthenticationFailed{
				Account: "",
				Err:     errors.New("supplier account not found"),
			}
		}
		return nil, err
	}

	password, err := utils.DecryptCredential(s.encKey, account.PasswordEncrypted)
	if err != nil {
		s.RecordUsage(accountID, false)
		return nil, &apperrors.AuthenticationFailed{Account: account.Username, Err: err}
	}

	value, err := s.auth.Authenticate(ctx, account.Username, password)
	if err != nil {
		s.RecordUsage(accountID, false)
		var authErr *apperrors.AuthenticationFailed
		if errors.As(err, &authErr) {
			return nil, err
		}
		return nil, &apperrors.AuthenticationFailed{Account: account.Username, Err: err}
	}

	now := time.Now().UTC()
	tok := &models.SupplierToken{
		AccountID: accountID,
		Value:     value,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.ReplaceToken(tok); err != nil {
		return nil, err
	}

	s.RecordUsage(accountID, true)
	log.Printf("🔑 Refreshed supplier token for account %d (expires %s)", accountID, tok.ExpiresAt.Format(time.RFC3339))
	return tok, nil
}

// RecordUsage bumps the account usage counters for one outbound API call
func (s *Store) RecordUsage(accountID uint, success bool) {
	s.store.BumpUsage(accountID, success)
}

// Invalidate drops all stored tokens for an account, forcing the next
// call to re-authenticate. Used when the supplier rejects a token that
// has not yet reached its expiry.
func (s *Store) Invalidate(accountID uint) error {
	return s.store.DeleteTokens(accountID)
}

type gormStorage struct {
	db *database.DB
}

func (g *gormStorage) Account(accountID uint) (*models.SupplierAccount, error) {
	var account models.SupplierAccount
	if err := g.db.First(&account, accountID).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (g *gormStorage) NewestValidToken(accountID uint, now time.Time) (*models.SupplierToken, error) {
	var tok models.SupplierToken
	err := g.db.
		Where("account_id = ? AND expires_at > ?", accountID, now).
		Order("issued_at DESC").
		First(&tok).Error
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

// ReplaceToken swaps the stored token atomically. An expired token is
// replaced, never reused.
func (g *gormStorage) ReplaceToken(tok *models.SupplierToken) error {
	return g.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", tok.AccountID).Delete(&models.SupplierToken{}).Error; err != nil {
			return err
		}
		return tx.Create(tok).Error
	})
}

func (g *gormStorage) DeleteTokens(accountID uint) error {
	return g.db.Where("account_id = ?", accountID).Delete(&models.SupplierToken{}).Error
}

func (g *gormStorage) BumpUsage(accountID uint, success bool) {
	updates := map[string]interface{}{
		"total_requests": gorm.Expr("total_requests + 1"),
		"last_used_at":   time.Now().UTC(),
	}
	if success {
		updates["successful_requests"] = gorm.Expr("successful_requests + 1")
	} else {
		updates["failed_requests"] = gorm.Expr("failed_requests + 1")
	}

	if err := g.db.Model(&models.SupplierAccount{}).
		Where("id = ?", accountID).
		Updates(updates).Error; err != nil {
		log.Printf("Failed to update usage counters for account %d: %v", accountID, err)
	}
}

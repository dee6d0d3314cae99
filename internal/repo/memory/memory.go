// Package memory provides in-memory implementations of the repo interfaces.
// They back unit and handler tests. A single mutex per store gives the same
// serialization guarantees the Postgres repos get from row locks.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/easylink/server/internal/model"
	"github.com/easylink/server/internal/repo"
)

// AccountStore is an in-memory repo.AccountRepo.
type AccountStore struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]model.Account
	idByEmail map[string]uuid.UUID
}

// NewAccountStore creates an empty account store.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		byID:      map[uuid.UUID]model.Account{},
		idByEmail: map[string]uuid.UUID{},
	}
}

var _ repo.AccountRepo = (*AccountStore)(nil)

func (s *AccountStore) Create(ctx context.Context, acc model.Account) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.idByEmail[acc.Email]; exists {
		return model.Account{}, repo.ErrDuplicate
	}
	acc.ID = uuid.New()
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now()
	}
	s.byID[acc.ID] = acc
	s.idByEmail[acc.Email] = acc.ID
	return acc, nil
}

func (s *AccountStore) GetByID(ctx context.Context, id uuid.UUID) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.byID[id]
	if !ok {
		return model.Account{}, repo.ErrNotFound
	}
	return acc, nil
}

func (s *AccountStore) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.idByEmail[email]
	if !ok {
		return model.Account{}, repo.ErrNotFound
	}
	return s.byID[id], nil
}

func (s *AccountStore) ConsumeVerificationToken(ctx context.Context, token string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, acc := range s.byID {
		if acc.EmailVerified || acc.VerificationToken == nil || *acc.VerificationToken != token {
			continue
		}
		if acc.VerificationExpiresAt == nil || !acc.VerificationExpiresAt.After(now) {
			return repo.ErrNotFound
		}
		acc.EmailVerified = true
		acc.VerificationToken = nil
		acc.VerificationExpiresAt = nil
		s.byID[id] = acc
		return nil
	}
	return repo.ErrNotFound
}

func (s *AccountStore) RecordLoginFailure(ctx context.Context, id uuid.UUID, threshold int, lockUntil time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.byID[id]
	if !ok {
		return 0, repo.ErrNotFound
	}
	acc.FailedAttempts++
	if acc.FailedAttempts >= threshold {
		until := lockUntil
		acc.LockUntil = &until
	}
	s.byID[id] = acc
	return acc.FailedAttempts, nil
}

func (s *AccountStore) RecordLoginSuccess(ctx context.Context, id uuid.UUID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.byID[id]
	if !ok {
		return repo.ErrNotFound
	}
	acc.FailedAttempts = 0
	acc.LockUntil = nil
	at := now
	acc.LastLoginAt = &at
	s.byID[id] = acc
	return nil
}

// ChallengeStore is an in-memory repo.ChallengeRepo.
type ChallengeStore struct {
	mu   sync.Mutex
	byID map[uuid.UUID]model.TwoFactorChallenge
}

// NewChallengeStore creates an empty challenge store.
func NewChallengeStore() *ChallengeStore {
	return &ChallengeStore{byID: map[uuid.UUID]model.TwoFactorChallenge{}}
}

var _ repo.ChallengeRepo = (*ChallengeStore)(nil)

func (s *ChallengeStore) Create(ctx context.Context, ch model.TwoFactorChallenge) (model.TwoFactorChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch.ID = uuid.New()
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = time.Now()
	}
	s.byID[ch.ID] = ch
	return ch, nil
}

func (s *ChallengeStore) GetByID(ctx context.Context, id uuid.UUID) (model.TwoFactorChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.byID[id]
	if !ok {
		return model.TwoFactorChallenge{}, repo.ErrNotFound
	}
	return ch, nil
}

func (s *ChallengeStore) IncrementAttempt(ctx context.Context, id uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.byID[id]
	if !ok {
		return 0, repo.ErrNotFound
	}
	ch.Attempts++
	s.byID[id] = ch
	return ch.Attempts, nil
}

func (s *ChallengeStore) MarkUsed(ctx context.Context, id uuid.UUID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.byID[id]
	if !ok || ch.UsedAt != nil {
		return repo.ErrNotFound
	}
	at := now
	ch.UsedAt = &at
	s.byID[id] = ch
	return nil
}

// RefreshStore is an in-memory repo.RefreshRepo.
type RefreshStore struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]model.RefreshSession
	idByHash map[string]uuid.UUID
}

// NewRefreshStore creates an empty refresh session store.
func NewRefreshStore() *RefreshStore {
	return &RefreshStore{
		byID:     map[uuid.UUID]model.RefreshSession{},
		idByHash: map[string]uuid.UUID{},
	}
}

var _ repo.RefreshRepo = (*RefreshStore)(nil)

func (s *RefreshStore) Create(ctx context.Context, sess model.RefreshSession) (model.RefreshSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess.ID = uuid.New()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}
	s.byID[sess.ID] = sess
	s.idByHash[sess.TokenHash] = sess.ID
	return sess, nil
}

func (s *RefreshStore) ConsumeByHash(ctx context.Context, tokenHash string, now time.Time) (model.RefreshSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.idByHash[tokenHash]
	if !ok {
		return model.RefreshSession{}, repo.ErrNotFound
	}
	sess := s.byID[id]
	if sess.RevokedAt != nil {
		return model.RefreshSession{}, repo.ErrNotFound
	}
	if now.After(sess.ExpiresAt) {
		at := now
		sess.RevokedAt = &at
		s.byID[id] = sess
		return model.RefreshSession{}, repo.ErrNotFound
	}
	return sess, nil
}

func (s *RefreshStore) RevokeByHash(ctx context.Context, tokenHash string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.idByHash[tokenHash]
	if !ok {
		return nil
	}
	sess := s.byID[id]
	if sess.RevokedAt == nil {
		at := now
		sess.RevokedAt = &at
		s.byID[id] = sess
	}
	return nil
}

func (s *RefreshStore) RevokeAllForAccount(ctx context.Context, accountID uuid.UUID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range s.byID {
		if sess.AccountID == accountID && sess.RevokedAt == nil {
			at := now
			sess.RevokedAt = &at
			s.byID[id] = sess
		}
	}
	return nil
}

// NotificationStore is an in-memory repo.NotificationRepo.
type NotificationStore struct {
	mu   sync.Mutex
	byID map[uuid.UUID]model.Notification
}

// NewNotificationStore creates an empty notification store.
func NewNotificationStore() *NotificationStore {
	return &NotificationStore{byID: map[uuid.UUID]model.Notification{}}
}

var _ repo.NotificationRepo = (*NotificationStore)(nil)

func (s *NotificationStore) Create(ctx context.Context, n model.Notification) (model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n.ID = uuid.New()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	s.byID[n.ID] = n
	return n, nil
}

func (s *NotificationStore) ListForAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	var out []model.Notification
	for _, n := range s.byID {
		if n.AccountID == accountID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *NotificationStore) MarkRead(ctx context.Context, id, accountID uuid.UUID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.byID[id]
	if !ok || n.AccountID != accountID || n.ReadAt != nil {
		return repo.ErrNotFound
	}
	at := now
	n.ReadAt = &at
	s.byID[id] = n
	return nil
}

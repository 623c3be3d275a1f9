package usecase

import (
	"context"
	"time"

	"github.com/arklim/authcore/internal/core/domain"
	"github.com/arklim/authcore/internal/core/port"
	"github.com/arklim/authcore/internal/repository"
)

type testClock struct {
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type stubPrincipalRepo struct {
	principals map[string]*domain.Principal
	clock      *testClock
	failErr    error
}

func newStubPrincipalRepo(clock *testClock) *stubPrincipalRepo {
	return &stubPrincipalRepo{
		principals: make(map[string]*domain.Principal),
		clock:      clock,
	}
}

func (r *stubPrincipalRepo) add(p domain.Principal) {
	clone := p
	r.principals[p.ID] = &clone
}

func (r *stubPrincipalRepo) GetByIdentifier(_ context.Context, identifier string) (*domain.Principal, error) {
	if r.failErr != nil {
		return nil, r.failErr
	}
	for _, p := range r.principals {
		if p.Identifier == identifier {
			clone := *p
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubPrincipalRepo) GetByID(_ context.Context, id string) (*domain.Principal, error) {
	if r.failErr != nil {
		return nil, r.failErr
	}
	p, ok := r.principals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (r *stubPrincipalRepo) RecordFailure(_ context.Context, id string, threshold uint, lockFor time.Duration) (port.FailureOutcome, error) {
	if r.failErr != nil {
		return port.FailureOutcome{}, r.failErr
	}
	p, ok := r.principals[id]
	if !ok {
		return port.FailureOutcome{}, repository.ErrNotFound
	}
	p.FailedAttempts++
	if p.FailedAttempts >= threshold {
		lockedUntil := r.clock.Now().Add(lockFor)
		p.LockedUntil = &lockedUntil
	}
	outcome := port.FailureOutcome{
		FailedAttempts: p.FailedAttempts,
		Locked:         p.FailedAttempts >= threshold,
	}
	if p.LockedUntil != nil {
		lockedUntil := *p.LockedUntil
		outcome.LockedUntil = &lockedUntil
	}
	return outcome, nil
}

func (r *stubPrincipalRepo) ResetFailures(_ context.Context, id string) error {
	p, ok := r.principals[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.FailedAttempts = 0
	p.LockedUntil = nil
	return nil
}

func (r *stubPrincipalRepo) ClearExpiredLock(_ context.Context, id string, now time.Time) error {
	p, ok := r.principals[id]
	if !ok {
		return repository.ErrNotFound
	}
	if p.LockedUntil != nil && !p.LockedUntil.After(now) {
		p.FailedAttempts = 0
		p.LockedUntil = nil
	}
	return nil
}

func (r *stubPrincipalRepo) BumpTokenEpoch(_ context.Context, id string) (uint64, error) {
	p, ok := r.principals[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	p.TokenEpoch++
	return p.TokenEpoch, nil
}

func (r *stubPrincipalRepo) GetTokenEpoch(_ context.Context, id string) (uint64, error) {
	p, ok := r.principals[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return p.TokenEpoch, nil
}

func (r *stubPrincipalRepo) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	p, ok := r.principals[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.LastLogin = &at
	return nil
}

var _ port.PrincipalRepository = (*stubPrincipalRepo)(nil)

type stubAuditRepo struct {
	attempts []domain.LoginAttempt
	failErr  error
}

func (r *stubAuditRepo) RecordAttempt(_ context.Context, attempt domain.LoginAttempt) error {
	if r.failErr != nil {
		return r.failErr
	}
	r.attempts = append(r.attempts, attempt)
	return nil
}

func (r *stubAuditRepo) ListByPrincipal(_ context.Context, principalID string, limit int) ([]domain.LoginAttempt, error) {
	result := make([]domain.LoginAttempt, 0)
	for _, attempt := range r.attempts {
		if attempt.PrincipalID != nil && *attempt.PrincipalID == principalID {
			result = append(result, attempt)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

var _ port.AuditRepository = (*stubAuditRepo)(nil)

type stubRevocationStore struct {
	revoked map[string]time.Time
	clock   *testClock
	failErr error
}

func newStubRevocationStore(clock *testClock) *stubRevocationStore {
	return &stubRevocationStore{
		revoked: make(map[string]time.Time),
		clock:   clock,
	}
}

func (s *stubRevocationStore) Revoke(_ context.Context, tokenID, _ string, expiresAt time.Time) error {
	if s.failErr != nil {
		return s.failErr
	}
	if !expiresAt.After(s.clock.Now()) {
		return nil
	}
	s.revoked[tokenID] = expiresAt
	return nil
}

func (s *stubRevocationStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	if s.failErr != nil {
		return false, s.failErr
	}
	expiresAt, ok := s.revoked[tokenID]
	if !ok {
		return false, nil
	}
	if !expiresAt.After(s.clock.Now()) {
		delete(s.revoked, tokenID)
		return false, nil
	}
	return true, nil
}

var _ port.RevocationStore = (*stubRevocationStore)(nil)

type stubEpochCache struct {
	epochs  map[string]uint64
	failErr error
}

func newStubEpochCache() *stubEpochCache {
	return &stubEpochCache{epochs: make(map[string]uint64)}
}

func (c *stubEpochCache) GetEpoch(_ context.Context, principalID string) (uint64, error) {
	if c.failErr != nil {
		return 0, c.failErr
	}
	epoch, ok := c.epochs[principalID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return epoch, nil
}

func (c *stubEpochCache) SetEpoch(_ context.Context, principalID string, epoch uint64, _ time.Duration) error {
	if c.failErr != nil {
		return c.failErr
	}
	c.epochs[principalID] = epoch
	return nil
}

func (c *stubEpochCache) DeleteEpoch(_ context.Context, principalID string) error {
	if c.failErr != nil {
		return c.failErr
	}
	delete(c.epochs, principalID)
	return nil
}

var _ port.EpochCache = (*stubEpochCache)(nil)

// stubRateLimitStore applies the sliding-window rules in memory.
type stubRateLimitStore struct {
	entries map[string][]time.Time
	failErr error
}

func newStubRateLimitStore() *stubRateLimitStore {
	return &stubRateLimitStore{entries: make(map[string][]time.Time)}
}

func (s *stubRateLimitStore) TryAcquire(_ context.Context, key string, limit int, window time.Duration, at time.Time) (port.AdmissionResult, error) {
	if s.failErr != nil {
		return port.AdmissionResult{}, s.failErr
	}

	cutoff := at.Add(-window)
	live := make([]time.Time, 0)
	for _, entry := range s.entries[key] {
		if entry.After(cutoff) {
			live = append(live, entry)
		}
	}

	if len(live) >= limit {
		retryAfter := live[0].Add(window).Sub(at)
		s.entries[key] = live
		return port.AdmissionResult{Allowed: false, RetryAfter: retryAfter}, nil
	}

	live = append(live, at)
	s.entries[key] = live
	return port.AdmissionResult{Allowed: true, Remaining: limit - len(live)}, nil
}

var _ port.RateLimitStore = (*stubRateLimitStore)(nil)

type stubBackupCodeRepo struct {
	codes   map[string]*domain.BackupCode
	failErr error
}

func newStubBackupCodeRepo() *stubBackupCodeRepo {
	return &stubBackupCodeRepo{codes: make(map[string]*domain.BackupCode)}
}

func (r *stubBackupCodeRepo) Store(_ context.Context, principalID string, codes []domain.BackupCode) error {
	if r.failErr != nil {
		return r.failErr
	}
	for id, code := range r.codes {
		if code.PrincipalID == principalID {
			delete(r.codes, id)
		}
	}
	for _, code := range codes {
		clone := code
		r.codes[code.ID] = &clone
	}
	return nil
}

func (r *stubBackupCodeRepo) ListUnused(_ context.Context, principalID string) ([]domain.BackupCode, error) {
	if r.failErr != nil {
		return nil, r.failErr
	}
	result := make([]domain.BackupCode, 0)
	for _, code := range r.codes {
		if code.PrincipalID == principalID && !code.IsUsed() {
			result = append(result, *code)
		}
	}
	return result, nil
}

func (r *stubBackupCodeRepo) Consume(_ context.Context, codeID string, at time.Time) (bool, error) {
	if r.failErr != nil {
		return false, r.failErr
	}
	code, ok := r.codes[codeID]
	if !ok || code.UsedAt != nil {
		return false, nil
	}
	code.UsedAt = &at
	return true, nil
}

var _ port.BackupCodeRepository = (*stubBackupCodeRepo)(nil)

type stubAPIKeyRepo struct {
	keys    map[string]*domain.APIKey
	failErr error
}

func newStubAPIKeyRepo() *stubAPIKeyRepo {
	return &stubAPIKeyRepo{keys: make(map[string]*domain.APIKey)}
}

func (r *stubAPIKeyRepo) GetByHash(_ context.Context, keyHash string) (*domain.APIKey, error) {
	if r.failErr != nil {
		return nil, r.failErr
	}
	for _, key := range r.keys {
		if key.KeyHash == keyHash {
			clone := *key
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubAPIKeyRepo) Create(_ context.Context, key domain.APIKey) error {
	clone := key
	r.keys[key.ID] = &clone
	return nil
}

func (r *stubAPIKeyRepo) Revoke(_ context.Context, id string, at time.Time) error {
	key, ok := r.keys[id]
	if !ok || key.RevokedAt != nil {
		return repository.ErrNotFound
	}
	key.RevokedAt = &at
	return nil
}

func (r *stubAPIKeyRepo) TouchLastUsed(_ context.Context, id string, at time.Time) error {
	key, ok := r.keys[id]
	if !ok {
		return repository.ErrNotFound
	}
	key.LastUsedAt = &at
	return nil
}

var _ port.APIKeyRepository = (*stubAPIKeyRepo)(nil)

type stubEventPublisher struct {
	loginAttempts []domain.LoginAttemptEvent
	revocations   []domain.TokenRevokedEvent
	epochBumps    []domain.EpochBumpedEvent
}

func (p *stubEventPublisher) PublishLoginAttempt(_ context.Context, event domain.LoginAttemptEvent) error {
	p.loginAttempts = append(p.loginAttempts, event)
	return nil
}

func (p *stubEventPublisher) PublishTokenRevoked(_ context.Context, event domain.TokenRevokedEvent) error {
	p.revocations = append(p.revocations, event)
	return nil
}

func (p *stubEventPublisher) PublishEpochBumped(_ context.Context, event domain.EpochBumpedEvent) error {
	p.epochBumps = append(p.epochBumps, event)
	return nil
}

var _ port.EventPublisher = (*stubEventPublisher)(nil)

// stubFailureJournal mirrors the transactional journal: when the audit write
// would fail, the counter stays untouched.
type stubFailureJournal struct {
	principals *stubPrincipalRepo
	audit      *stubAuditRepo
}

func (j *stubFailureJournal) RecordFailureAttempt(ctx context.Context, principalID string, threshold uint, lockFor time.Duration, attempt domain.LoginAttempt) (port.FailureOutcome, error) {
	if j.audit.failErr != nil {
		return port.FailureOutcome{}, j.audit.failErr
	}

	outcome, err := j.principals.RecordFailure(ctx, principalID, threshold, lockFor)
	if err != nil {
		return port.FailureOutcome{}, err
	}
	if err := j.audit.RecordAttempt(ctx, attempt); err != nil {
		return port.FailureOutcome{}, err
	}
	return outcome, nil
}

var _ port.FailureJournal = (*stubFailureJournal)(nil)

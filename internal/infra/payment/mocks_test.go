//go:build !integration

package payment

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"qarzdaftari/internal/domain"
	"qarzdaftari/internal/domain/model"
	"qarzdaftari/internal/domain/ports/repository"
)

func testLogger() *zerolog.Logger {
	l := zerolog.New(nil)
	return &l
}

// memUserRepo serves the prepare-phase existence checks.
type memUserRepo struct {
	mu    sync.RWMutex
	store map[string]*model.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{store: make(map[string]*model.User)}
}

func (m *memUserRepo) put(u *model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.store[u.ID] = &cp
}

func (m *memUserRepo) FindByID(ctx context.Context, _ repository.Tx, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.store[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) ApplyPlan(ctx context.Context, _ repository.Tx, userID string, up model.PlanUpdate) error {
	return nil
}

func (m *memUserRepo) ExpirePlans(ctx context.Context, _ repository.Tx, now time.Time) (int, error) {
	return 0, nil
}

// reconcileCall records one Complete invocation.
type reconcileCall struct {
	Provider     model.ProviderName
	ExternalID   string
	MerchantTxID string
	Amount       int64
}

// mockReconcile simulates the ledger: the first Complete for an external id
// is new, repeats return the stored record.
type mockReconcile struct {
	mu    sync.Mutex
	calls []reconcileCall
	seen  map[string]*model.PaymentTransaction
	err   error
}

func newMockReconcile() *mockReconcile {
	return &mockReconcile{seen: make(map[string]*model.PaymentTransaction)}
}

func (m *mockReconcile) Complete(ctx context.Context, provider model.ProviderName, externalID, merchantTxID string, amount int64, payload []byte) (*model.PaymentTransaction, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, reconcileCall{Provider: provider, ExternalID: externalID, MerchantTxID: merchantTxID, Amount: amount})
	if m.err != nil {
		return nil, false, m.err
	}
	key := string(provider) + "|" + externalID
	if rec, ok := m.seen[key]; ok {
		return rec, false, nil
	}
	txid, err := model.ParseTransactionID(merchantTxID)
	if err != nil {
		return nil, false, domain.ErrMalformedIdentifier
	}
	now := time.Now()
	rec := &model.PaymentTransaction{
		ID:         model.NewPaymentID(),
		UserID:     txid.UserID,
		Provider:   provider,
		Amount:     amount,
		Status:     model.PaymentStatusCompleted,
		ExternalID: externalID,
		CreatedAt:  now,
	}
	m.seen[key] = rec
	return rec, true, nil
}

func (m *mockReconcile) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockReconcile) lastCall() reconcileCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[len(m.calls)-1]
}

// memPaymeTxRepo is the in-memory Payme state store.
type memPaymeTxRepo struct {
	mu    sync.RWMutex
	store map[string]*model.PaymeTransaction
}

func newMemPaymeTxRepo() *memPaymeTxRepo {
	return &memPaymeTxRepo{store: make(map[string]*model.PaymeTransaction)}
}

func (m *memPaymeTxRepo) Save(ctx context.Context, _ repository.Tx, t *model.PaymeTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.store[t.PaymeID] = &cp
	return nil
}

func (m *memPaymeTxRepo) FindByPaymeID(ctx context.Context, _ repository.Tx, paymeID string) (*model.PaymeTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.store[paymeID]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memPaymeTxRepo) ListByPeriod(ctx context.Context, _ repository.Tx, from, to time.Time) ([]*model.PaymeTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.PaymeTransaction
	for _, t := range m.store {
		if t.CreateTime >= from.UnixMilli() && t.CreateTime <= to.UnixMilli() {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

// busyLocker always reports the key as held.
type busyLocker struct{}

func (busyLocker) TryLock(ctx context.Context, key string) (string, error) {
	return "", domain.ErrAlreadyProcessed
}

func (busyLocker) Unlock(ctx context.Context, key, token string) error { return nil }

// recordingLocker grants every claim and remembers the keys it saw.
type recordingLocker struct {
	mu   sync.Mutex
	keys []string
}

func (l *recordingLocker) TryLock(ctx context.Context, key string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	return "tok", nil
}

func (l *recordingLocker) Unlock(ctx context.Context, key, token string) error { return nil }

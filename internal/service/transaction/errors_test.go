package transaction_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/txledger/internal/cache"
	memcache "github.com/tinoosan/txledger/internal/cache/memory"
	"github.com/tinoosan/txledger/internal/errs"
	"github.com/tinoosan/txledger/internal/ledger"
	"github.com/tinoosan/txledger/internal/service/transaction"
	"github.com/tinoosan/txledger/internal/storage/memory"
)

type mockStore struct{ mock.Mock }

func (m *mockStore) Get(ctx context.Context, id string) (ledger.Transaction, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(ledger.Transaction), args.Error(1)
}

func (m *mockStore) ListAll(ctx context.Context) ([]ledger.Transaction, error) {
	args := m.Called(ctx)
	txs, _ := args.Get(0).([]ledger.Transaction)
	return txs, args.Error(1)
}

func (m *mockStore) ListByUser(ctx context.Context, userID string) ([]ledger.Transaction, error) {
	args := m.Called(ctx, userID)
	txs, _ := args.Get(0).([]ledger.Transaction)
	return txs, args.Error(1)
}

func (m *mockStore) Put(ctx context.Context, tx ledger.Transaction) error {
	return m.Called(ctx, tx).Error(0)
}

func (m *mockStore) Insert(ctx context.Context, tx ledger.Transaction) error {
	return m.Called(ctx, tx).Error(0)
}

func (m *mockStore) Modify(ctx context.Context, id string, fn func(*ledger.Transaction) error) (ledger.Transaction, error) {
	args := m.Called(ctx, id, fn)
	return args.Get(0).(ledger.Transaction), args.Error(1)
}

func (m *mockStore) Delete(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// countingCache records invalidations on top of the in-process cache.
type countingCache struct {
	cache.Cache
	invalidations int
}

func (c *countingCache) InvalidateAll(ctx context.Context) error {
	c.invalidations++
	return c.Cache.InvalidateAll(ctx)
}

var errBackend = errors.New("backend unavailable")

func TestStoreFailuresPropagate(t *testing.T) {
	ctx := context.Background()
	st := new(mockStore)
	cc := &countingCache{Cache: memcache.New()}
	svc := transaction.New(st, transaction.WithLogger(quiet), transaction.WithCache(cc))

	st.On("Get", mock.Anything, "t1").Return(ledger.Transaction{}, errBackend).Twice()
	st.On("ListByUser", mock.Anything, "u1").Return(nil, errBackend)
	st.On("ListAll", mock.Anything).Return(nil, errBackend)
	st.On("Insert", mock.Anything, mock.Anything).Return(errBackend)
	st.On("Modify", mock.Anything, "t1", mock.Anything).Return(ledger.Transaction{}, errBackend)
	st.On("Delete", mock.Anything, "t1").Return(false, errBackend)

	for i := 0; i < 2; i++ {
		_, err := svc.GetByID(ctx, "t1")
		require.ErrorIs(t, err, errBackend)
		assert.NotErrorIs(t, err, errs.ErrNotFound)
	}
	_, err := svc.GetByUser(ctx, "u1")
	require.ErrorIs(t, err, errBackend)
	_, err = svc.ListPaged(ctx, 0, 10)
	require.ErrorIs(t, err, errBackend)
	_, err = svc.Create(ctx, input("t1", "u1", "1", "DEPOSIT"))
	require.ErrorIs(t, err, errBackend)
	_, err = svc.Update(ctx, "t1", input("t1", "u1", "1", "DEPOSIT"))
	require.ErrorIs(t, err, errBackend)
	require.ErrorIs(t, svc.Delete(ctx, "t1"), errBackend)

	st.AssertExpectations(t)
	// Failed reads are not cached, so both GetByID calls reached the store.
	st.AssertNumberOfCalls(t, "Get", 2)
	assert.Zero(t, cc.invalidations, "failed mutations must not invalidate")
}

func TestNotFoundIsNotCached(t *testing.T) {
	ctx := context.Background()
	st := new(mockStore)
	svc := transaction.New(st, transaction.WithLogger(quiet), transaction.WithCache(memcache.New()))

	stored := ledger.Transaction{ID: "t1", UserID: "u1", Type: ledger.TypeIncome, CreatedAt: time.Unix(0, 0).UTC()}
	st.On("Get", mock.Anything, "t1").Return(ledger.Transaction{}, errs.ErrNotFound).Once()
	st.On("Get", mock.Anything, "t1").Return(stored, nil).Once()

	_, err := svc.GetByID(ctx, "t1")
	require.ErrorIs(t, err, errs.ErrNotFound)

	got, err := svc.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Income", got.TypeName)

	// Third call is a cache hit.
	_, err = svc.GetByID(ctx, "t1")
	require.NoError(t, err)
	st.AssertNumberOfCalls(t, "Get", 2)
}

func TestValidationNeverTouchesStore(t *testing.T) {
	ctx := context.Background()
	st := new(mockStore)
	svc := transaction.New(st, transaction.WithLogger(quiet))

	_, err := svc.Create(ctx, input("", "u1", "1", "DEPOSIT"))
	require.ErrorIs(t, err, errs.ErrInvalid)
	_, err = svc.Update(ctx, "t1", input("t1", "u1", "1", "LOAN"))
	require.ErrorIs(t, err, errs.ErrInvalid)
	_, err = svc.ListPaged(ctx, 0, 0)
	require.ErrorIs(t, err, errs.ErrInvalid)

	var fe *errs.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "size", fe.Field)

	st.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	st.AssertNotCalled(t, "Modify", mock.Anything, mock.Anything, mock.Anything)
	st.AssertNotCalled(t, "ListAll", mock.Anything)
}

func TestMutationsInvalidateOnce(t *testing.T) {
	ctx := context.Background()
	cc := &countingCache{Cache: memcache.New()}
	svc := transaction.New(memory.New(), transaction.WithLogger(quiet), transaction.WithCache(cc))

	_, err := svc.Create(ctx, input("t1", "u1", "1", "DEPOSIT"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, input("t1", "u1", "1", "DEPOSIT"))
	require.ErrorIs(t, err, errs.ErrDuplicate)
	_, err = svc.Update(ctx, "t1", input("t1", "u1", "2", "DEPOSIT"))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "t1"))
	require.ErrorIs(t, svc.Delete(ctx, "t1"), errs.ErrNotFound)

	assert.Equal(t, 3, cc.invalidations)
}

// brokenCache fails every call.
type brokenCache struct{}

func (brokenCache) Ticket(context.Context) (cache.Ticket, error) { return 0, errBackend }
func (brokenCache) Lookup(context.Context, cache.Key) (cache.Entry, bool, error) {
	return cache.Entry{}, false, errBackend
}
func (brokenCache) Store(context.Context, cache.Ticket, cache.Key, cache.Entry) error { return errBackend }
func (brokenCache) InvalidateAll(context.Context) error { return errBackend }

func TestCacheFailuresDegradeToStore(t *testing.T) {
	ctx := context.Background()
	svc := transaction.New(memory.New(), transaction.WithLogger(quiet), transaction.WithCache(brokenCache{}))

	_, err := svc.Create(ctx, input("t1", "u1", "1", "DEPOSIT"))
	require.NoError(t, err)

	got, err := svc.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)

	list, err := svc.GetByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	page, err := svc.ListPaged(ctx, 0, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalElements)

	_, err = svc.Update(ctx, "t1", input("t1", "u2", "1", "DEPOSIT"))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "t1"))
}

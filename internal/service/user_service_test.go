package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/billtx/internal/models"
	"github.com/mmynk/billtx/internal/storage"
	"github.com/mmynk/billtx/internal/storage/sqlite"
	"github.com/mmynk/billtx/internal/txn"
	"github.com/mmynk/billtx/internal/validation"
)

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

type sequentialNames struct {
	n int
}

func (g *sequentialNames) Name() string {
	g.n++
	return fmt.Sprintf("User %d", g.n)
}

type testEnv struct {
	svc   *UserService
	store *sqlite.SQLiteStore
	user  *models.User
}

func setupTestService(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewUserService(
		store,
		txn.NewManager(store, logger),
		validation.New(func() time.Time { return fixedNow }),
		logger,
		WithNameGenerator(&sequentialNames{}),
	)

	users, err := svc.AddUsers(context.Background(), "12345678900")
	require.NoError(t, err)
	require.Len(t, users, 1)

	return &testEnv{svc: svc, store: store, user: users[0]}
}

func (e *testEnv) total(t *testing.T) decimal.Decimal {
	t.Helper()
	total, err := e.svc.TotalAmount(context.Background())
	require.NoError(t, err)
	return total
}

func (e *testEnv) billCount(t *testing.T) int {
	t.Helper()
	bills, err := e.store.FindAllBills(context.Background())
	require.NoError(t, err)
	return len(bills)
}

func yesterday(v int64) models.BillInput {
	return models.BillInput{Type: models.BillTypeFood, Value: decimal.NewFromInt(v), Date: fixedNow.AddDate(0, 0, -1)}
}

func tomorrow(v int64) models.BillInput {
	return models.BillInput{Type: models.BillTypeFood, Value: decimal.NewFromInt(v), Date: fixedNow.AddDate(0, 0, 1)}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAddBill_IncreasesTotal(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	before := env.total(t)

	food, err := env.svc.AddBill(ctx, env.user.ID, models.BillTypeFood, dec("50.00"))
	require.NoError(t, err)
	_, err = env.svc.AddBill(ctx, env.user.ID, models.BillTypeRent, dec("1000.00"))
	require.NoError(t, err)

	assert.True(t, env.total(t).Sub(before).Equal(dec("1050.00")))
	assert.NotZero(t, food.ID)
	assert.Equal(t, models.Day(fixedNow), food.Date)
}

func TestAddBill_UnknownUser(t *testing.T) {
	env := setupTestService(t)

	_, err := env.svc.AddBill(context.Background(), 999, models.BillTypeFood, dec("1"))

	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, 0, env.billCount(t))
}

func TestAddUsers(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	users, err := env.svc.AddUsers(ctx, "111", "222", "333")
	require.NoError(t, err)
	require.Len(t, users, 3)

	all, err := env.svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	for i, u := range users {
		assert.NotZero(t, u.ID)
		assert.Equal(t, fmt.Sprintf("User %d", i+2), u.Name)
		assert.Empty(t, u.Bills)
	}
	assert.Equal(t, "222", users[1].Document)
}

// failingStore fails the nth SaveUser call.
type failingStore struct {
	*sqlite.SQLiteStore
	failAt int
	calls  int
}

var errSaveFailed = errors.New("disk full")

func (s *failingStore) SaveUser(ctx context.Context, user *models.User) error {
	s.calls++
	if s.calls == s.failAt {
		return errSaveFailed
	}
	return s.SQLiteStore.SaveUser(ctx, user)
}

func TestAddUsers_AllOrNothing(t *testing.T) {
	inner, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer inner.Close()

	store := &failingStore{SQLiteStore: inner, failAt: 3}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewUserService(store, txn.NewManager(store, logger), validation.New(nil), logger,
		WithNameGenerator(&sequentialNames{}))

	users, err := svc.AddUsers(context.Background(), "111", "222", "333", "444")

	assert.ErrorIs(t, err, errSaveFailed)
	assert.Nil(t, users)
	assert.Equal(t, 3, store.calls)

	all, err := svc.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestAddUsers_ReadOnlyCallerWritesNothing(t *testing.T) {
	env := setupTestService(t)
	manager := txn.NewManager(env.store, nil)

	err := manager.Run(context.Background(), txn.Options{ReadOnly: true}, func(ctx context.Context) error {
		_, err := env.svc.AddUsers(ctx, "111", "222")
		return err
	})

	assert.ErrorIs(t, err, txn.ErrReadOnly)
	all, err := env.svc.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestAddUsers_DefaultNameGenerator(t *testing.T) {
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer store.Close()

	svc := NewUserService(store, txn.NewManager(store, nil), validation.New(nil), nil)
	users, err := svc.AddUsers(context.Background(), "999")
	require.NoError(t, err)
	assert.NotEmpty(t, users[0].Name)
}

func TestGetUser_DecoratesWithoutPersisting(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	first, err := env.svc.GetUser(ctx, env.user.ID)
	require.NoError(t, err)
	second, err := env.svc.GetUser(ctx, env.user.ID)
	require.NoError(t, err)

	assert.Equal(t, models.TitlePrefix+env.user.Name, first.Name)
	assert.Equal(t, first.Name, second.Name)

	stored, err := env.store.FindUser(ctx, env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, env.user.Name, stored.Name)
}

func TestGetUser_NotFound(t *testing.T) {
	env := setupTestService(t)

	_, err := env.svc.GetUser(context.Background(), 404)

	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAddBills_PropagateModesRollBack(t *testing.T) {
	batches := map[string][]models.BillInput{
		"invalid last":   {yesterday(10), yesterday(20), tomorrow(30)},
		"invalid first":  {tomorrow(30), yesterday(10)},
		"invalid middle": {yesterday(10), tomorrow(30), yesterday(20)},
		"all invalid":    {tomorrow(1), tomorrow(2)},
	}

	for _, mode := range []ValidationMode{ModePropagate, ModePropagateRollbackAny} {
		for name, bills := range batches {
			t.Run(mode.String()+"/"+name, func(t *testing.T) {
				env := setupTestService(t)
				before := env.total(t)

				err := env.svc.AddBills(context.Background(), env.user.ID, bills, mode)

				require.Error(t, err)
				assert.ErrorIs(t, err, validation.ErrValidationFailed)
				var verr *validation.ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, "Date", verr.Field)

				assert.Equal(t, 0, env.billCount(t))
				assert.True(t, env.total(t).Equal(before))
			})
		}
	}
}

func TestAddBills_PanicModeRollsBack(t *testing.T) {
	env := setupTestService(t)
	before := env.total(t)

	assert.Panics(t, func() {
		_ = env.svc.AddBills(context.Background(), env.user.ID, []models.BillInput{yesterday(10), tomorrow(20)}, ModePanic)
	})

	assert.Equal(t, 0, env.billCount(t))
	assert.True(t, env.total(t).Equal(before))
}

func TestAddBills_AllValidCommits(t *testing.T) {
	for mode := range validationModeNames {
		t.Run(mode.String(), func(t *testing.T) {
			env := setupTestService(t)

			err := env.svc.AddBills(context.Background(), env.user.ID, []models.BillInput{yesterday(10), yesterday(5)}, mode)

			require.NoError(t, err)
			assert.Equal(t, 2, env.billCount(t))
			assert.True(t, env.total(t).Equal(dec("15")))
		})
	}
}

func TestAddBills_CatchModesKeepValidBills(t *testing.T) {
	for _, mode := range []ValidationMode{ModeCatch, ModeCatchRemote} {
		t.Run(mode.String(), func(t *testing.T) {
			env := setupTestService(t)
			before := env.total(t)

			err := env.svc.AddBills(context.Background(), env.user.ID, []models.BillInput{yesterday(10), tomorrow(20)}, mode)

			require.NoError(t, err)
			assert.True(t, env.total(t).Sub(before).Equal(dec("10")))
		})

		t.Run(mode.String()+"/mixed positions", func(t *testing.T) {
			env := setupTestService(t)
			bills := []models.BillInput{tomorrow(1), yesterday(2), tomorrow(4), tomorrow(8), yesterday(16), tomorrow(32)}

			err := env.svc.AddBills(context.Background(), env.user.ID, bills, mode)

			require.NoError(t, err)
			assert.Equal(t, 2, env.billCount(t))
			assert.True(t, env.total(t).Equal(dec("18")))
		})
	}
}

func TestAddBills_OnlyDateIsValidated(t *testing.T) {
	pastBills := func() []models.BillInput {
		return []models.BillInput{
			yesterday(10),
			yesterday(0),
			{Type: models.BillTypeOther, Value: decimal.NewFromInt(-5), Date: fixedNow.AddDate(0, 0, -2)},
			{Type: models.BillTypeRent, Value: decimal.Zero, Date: fixedNow},
		}
	}

	for _, mode := range []ValidationMode{ModePropagate, ModePropagateRollbackAny, ModePanic, ModeCatch, ModeCatchRemote} {
		t.Run(mode.String(), func(t *testing.T) {
			env := setupTestService(t)

			err := env.svc.AddBills(context.Background(), env.user.ID, pastBills(), mode)

			require.NoError(t, err)
			assert.Equal(t, 4, env.billCount(t))
			assert.True(t, env.total(t).Equal(dec("5")))
		})
	}

	t.Run("catch drops only the future bill", func(t *testing.T) {
		env := setupTestService(t)
		bills := append(pastBills(), tomorrow(100))

		err := env.svc.AddBills(context.Background(), env.user.ID, bills, ModeCatch)

		require.NoError(t, err)
		assert.Equal(t, 4, env.billCount(t))
	})
}

func TestAddBills_UnknownUser(t *testing.T) {
	env := setupTestService(t)

	err := env.svc.AddBills(context.Background(), 777, []models.BillInput{yesterday(1)}, ModeCatch)

	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAddBills_InvalidMode(t *testing.T) {
	env := setupTestService(t)

	err := env.svc.AddBills(context.Background(), env.user.ID, []models.BillInput{yesterday(1)}, ValidationMode(42))

	assert.ErrorIs(t, err, ErrInvalidMode)
	assert.Equal(t, 0, env.billCount(t))
}

func TestAddBillsThenFail_DirectRollsBackEverything(t *testing.T) {
	env := setupTestService(t)
	before := env.total(t)

	err := env.svc.AddBillsThenFail(context.Background(), env.user.ID, []models.BillInput{yesterday(10), yesterday(20), tomorrow(30)}, NestedDirect)

	assert.ErrorIs(t, err, ErrUnexpectedFailure)
	assert.Equal(t, 0, env.billCount(t))
	assert.True(t, env.total(t).Equal(before))
}

func TestAddBillsThenFail_ManagedKeepsEveryBill(t *testing.T) {
	env := setupTestService(t)
	before := env.total(t)

	err := env.svc.AddBillsThenFail(context.Background(), env.user.ID, []models.BillInput{yesterday(10), yesterday(20), tomorrow(30)}, NestedManaged)

	assert.ErrorIs(t, err, ErrUnexpectedFailure)
	assert.Equal(t, 3, env.billCount(t))
	assert.True(t, env.total(t).Sub(before).Equal(dec("60")))
}

func TestAddBillsThenFail_InvalidMode(t *testing.T) {
	env := setupTestService(t)

	err := env.svc.AddBillsThenFail(context.Background(), env.user.ID, nil, NestedMode(9))

	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestCreateBill_IndependentOfCallerBoundary(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	errAbort := errors.New("abort")

	err := env.svc.tx.Run(ctx, txn.Options{Name: "caller"}, func(ctx context.Context) error {
		if _, err := env.svc.CreateBill(ctx, yesterday(42), env.user); err != nil {
			return err
		}
		return errAbort
	})

	assert.ErrorIs(t, err, errAbort)
	assert.Equal(t, 1, env.billCount(t))
}

func TestTotalAmount_ExcludesRolledBackBills(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	others, err := env.svc.AddUsers(ctx, "A", "B")
	require.NoError(t, err)

	_, err = env.svc.AddBill(ctx, env.user.ID, models.BillTypeRent, dec("700.25"))
	require.NoError(t, err)
	require.NoError(t, env.svc.AddBills(ctx, others[0].ID, []models.BillInput{yesterday(3)}, ModePropagate))
	require.Error(t, env.svc.AddBills(ctx, others[1].ID, []models.BillInput{yesterday(100), tomorrow(1)}, ModePropagate))
	require.Error(t, env.svc.AddBillsThenFail(ctx, others[1].ID, []models.BillInput{yesterday(1000)}, NestedDirect))
	require.Error(t, env.svc.AddBillsThenFail(ctx, others[1].ID, []models.BillInput{yesterday(4)}, NestedManaged))

	assert.True(t, env.total(t).Equal(dec("707.25")))
}

func TestParseModes(t *testing.T) {
	for mode, name := range validationModeNames {
		got, err := ParseValidationMode(name)
		require.NoError(t, err)
		assert.Equal(t, mode, got)
	}
	_, err := ParseValidationMode("nope")
	assert.ErrorIs(t, err, ErrInvalidMode)

	nested, err := ParseNestedMode("Managed")
	require.NoError(t, err)
	assert.Equal(t, NestedManaged, nested)
	_, err = ParseNestedMode("proxy")
	assert.ErrorIs(t, err, ErrInvalidMode)
}

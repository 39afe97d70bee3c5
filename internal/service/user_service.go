// Package service implements the user and bill operations, each under an
// explicit transaction boundary.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"

	"github.com/mmynk/billtx/internal/calculator"
	"github.com/mmynk/billtx/internal/models"
	"github.com/mmynk/billtx/internal/storage"
	"github.com/mmynk/billtx/internal/txn"
	"github.com/mmynk/billtx/internal/validation"
)

var (
	// ErrUnexpectedFailure is returned by AddBillsThenFail after its work is done.
	ErrUnexpectedFailure = errors.New("unexpected failure")
	// ErrInvalidMode is returned for an unknown ValidationMode or NestedMode.
	ErrInvalidMode = errors.New("invalid mode")
)

// NameGenerator produces display names for new users.
type NameGenerator interface {
	Name() string
}

// Option configures a UserService.
type Option func(*UserService)

// WithNameGenerator replaces the fake-name generator used by AddUsers.
func WithNameGenerator(g NameGenerator) Option {
	return func(s *UserService) {
		s.names = g
	}
}

// UserService runs user and bill operations against a store.
type UserService struct {
	store     storage.Store
	tx        *txn.Manager
	validator *validation.Validator
	remote    *validation.Service
	names     NameGenerator
	logger    *slog.Logger
}

// NewUserService creates a UserService. Boundaries are opened with tx, which
// must be built on the same store.
func NewUserService(store storage.Store, tx *txn.Manager, validator *validation.Validator, logger *slog.Logger, opts ...Option) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &UserService{
		store:     store,
		tx:        tx,
		validator: validator,
		remote:    validation.NewService(validator, logger),
		names:     gofakeit.New(0),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TotalAmount sums the value of every bill of every user.
func (s *UserService) TotalAmount(ctx context.Context) (decimal.Decimal, error) {
	s.logger.Info("TotalAmount started")

	total := decimal.Zero
	err := s.tx.Run(ctx, txn.Options{Name: "total_amount", ReadOnly: true}, func(ctx context.Context) error {
		users, err := s.store.FindAllUsers(ctx)
		if err != nil {
			return err
		}
		s.logger.Info("TotalAmount users loaded", "total_users", len(users))
		total = calculator.TotalAmount(users)
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	s.logger.Info("TotalAmount finished", "total_amount", total.StringFixed(2))
	return total, nil
}

// GetUser returns the user with its name prefixed by models.TitlePrefix.
// The prefix is presentation only and never saved.
func (s *UserService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	s.logger.Info("GetUser", "user_id", id)

	var user *models.User
	err := s.tx.Run(ctx, txn.Options{Name: "get_user", ReadOnly: true}, func(ctx context.Context) error {
		u, err := s.store.FindUser(ctx, id)
		if err != nil {
			return err
		}
		user = u.Titled()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsers returns every user with its bills.
func (s *UserService) ListUsers(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	err := s.tx.Run(ctx, txn.Options{Name: "list_users", ReadOnly: true}, func(ctx context.Context) error {
		var err error
		users, err = s.store.FindAllUsers(ctx)
		return err
	})
	return users, err
}

// AddBill appends one bill dated today to the user.
func (s *UserService) AddBill(ctx context.Context, userID int64, billType models.BillType, value decimal.Decimal) (*models.Bill, error) {
	s.logger.Info("AddBill", "user_id", userID, "type", billType, "value", value.String())

	var bill *models.Bill
	err := s.tx.Run(ctx, txn.Options{Name: "add_bill"}, func(ctx context.Context) error {
		user, err := s.store.FindUser(ctx, userID)
		if err != nil {
			return err
		}
		bill = models.NewBill(models.BillInput{
			Type:  billType,
			Value: value,
			Date:  s.validator.Today(),
		}, user.ID)
		return s.store.SaveBill(ctx, bill)
	})
	if err != nil {
		return nil, err
	}
	return bill, nil
}

// AddUsers creates one user per document, each with a generated name and
// no bills. Either every user is created or none is.
func (s *UserService) AddUsers(ctx context.Context, documents ...string) ([]*models.User, error) {
	s.logger.Info("AddUsers", "count", len(documents))

	users := make([]*models.User, 0, len(documents))
	err := s.tx.Run(ctx, txn.Options{Name: "add_users"}, func(ctx context.Context) error {
		for _, doc := range documents {
			user := &models.User{Name: s.names.Name(), Document: doc}
			if err := s.store.SaveUser(ctx, user); err != nil {
				return fmt.Errorf("failed to add user %q: %w", doc, err)
			}
			users = append(users, user)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// AddBills validates and appends bills to a user in one boundary.
// mode decides what a bill that fails validation does to the batch; see
// ValidationMode. With ModePanic the validation panic propagates after the
// boundary has rolled back.
func (s *UserService) AddBills(ctx context.Context, userID int64, bills []models.BillInput, mode ValidationMode) error {
	s.logger.Info("AddBills", "user_id", userID, "count", len(bills), "mode", mode)

	opts := txn.Options{Name: "add_bills_" + mode.String()}

	var work func(ctx context.Context) error
	switch mode {
	case ModePropagate:
		work = func(ctx context.Context) error {
			return s.addBillsChecked(ctx, userID, bills)
		}
	case ModePropagateRollbackAny:
		opts.Rollback = txn.RollbackOnAny
		work = func(ctx context.Context) error {
			return s.addBillsChecked(ctx, userID, bills)
		}
	case ModePanic:
		work = func(ctx context.Context) error {
			return s.addBillsPanicking(ctx, userID, bills)
		}
	case ModeCatch:
		work = func(ctx context.Context) error {
			return s.addBillsCatching(ctx, userID, bills, s.validator.MustValidate)
		}
	case ModeCatchRemote:
		work = func(ctx context.Context) error {
			return s.addBillsCatching(ctx, userID, bills, s.remote.ValidateBill)
		}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidMode, mode)
	}

	return s.tx.Run(ctx, opts, work)
}

func (s *UserService) addBillsChecked(ctx context.Context, userID int64, bills []models.BillInput) error {
	user, err := s.store.FindUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, in := range bills {
		if err := s.validator.Validate(in); err != nil {
			return err
		}
		if err := s.store.SaveBill(ctx, models.NewBill(in, user.ID)); err != nil {
			return err
		}
	}
	return nil
}

func (s *UserService) addBillsPanicking(ctx context.Context, userID int64, bills []models.BillInput) error {
	user, err := s.store.FindUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, in := range bills {
		s.validator.MustValidate(in)
		if err := s.store.SaveBill(ctx, models.NewBill(in, user.ID)); err != nil {
			return err
		}
	}
	return nil
}

func (s *UserService) addBillsCatching(ctx context.Context, userID int64, bills []models.BillInput, validate func(models.BillInput)) error {
	user, err := s.store.FindUser(ctx, userID)
	if err != nil {
		return err
	}
	for i, in := range bills {
		if err := recoverValidation(validate, in); err != nil {
			s.logger.Error("Bill is invalid, skipping", "user_id", userID, "index", i, "error", err)
			continue
		}
		if err := s.store.SaveBill(ctx, models.NewBill(in, user.ID)); err != nil {
			return err
		}
	}
	return nil
}

// recoverValidation turns a validation panic from validate into an error.
// Any other panic is re-raised.
func recoverValidation(validate func(models.BillInput), in models.BillInput) (err error) {
	defer func() {
		if p := recover(); p != nil {
			if e, ok := p.(error); ok && errors.Is(e, validation.ErrValidationFailed) {
				err = e
				return
			}
			panic(p)
		}
	}()
	validate(in)
	return nil
}

// AddBillsThenFail writes every bill and then fails with ErrUnexpectedFailure.
//
// With NestedManaged each bill goes through CreateBill and commits in its own
// boundary, so the bills survive the failure. With NestedDirect the same work
// is called as a plain function; it runs in this call's boundary and is rolled
// back with it.
func (s *UserService) AddBillsThenFail(ctx context.Context, userID int64, bills []models.BillInput, mode NestedMode) error {
	s.logger.Info("AddBillsThenFail", "user_id", userID, "count", len(bills), "mode", mode)

	if mode != NestedDirect && mode != NestedManaged {
		return fmt.Errorf("%w: %s", ErrInvalidMode, mode)
	}

	return s.tx.Run(ctx, txn.Options{Name: "add_bills_then_fail_" + mode.String()}, func(ctx context.Context) error {
		user, err := s.store.FindUser(ctx, userID)
		if err != nil {
			return err
		}
		for _, in := range bills {
			if mode == NestedManaged {
				_, err = s.CreateBill(ctx, in, user)
			} else {
				_, err = s.createBill(ctx, in, user)
			}
			if err != nil {
				return err
			}
		}
		return ErrUnexpectedFailure
	})
}

// CreateBill saves one bill for user in a new boundary, independent of any
// boundary already open in ctx.
func (s *UserService) CreateBill(ctx context.Context, in models.BillInput, user *models.User) (*models.Bill, error) {
	var bill *models.Bill
	err := s.tx.Run(ctx, txn.Options{Name: "create_bill", Propagation: txn.RequiresNew}, func(ctx context.Context) error {
		var err error
		bill, err = s.createBill(ctx, in, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return bill, nil
}

func (s *UserService) createBill(ctx context.Context, in models.BillInput, user *models.User) (*models.Bill, error) {
	bill := models.NewBill(in, user.ID)
	if err := s.store.SaveBill(ctx, bill); err != nil {
		return nil, err
	}
	return bill, nil
}

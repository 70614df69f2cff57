package checkout

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lukasortiz/taskpay-backend/internal/ledger"
	"github.com/lukasortiz/taskpay-backend/pkg/db/models"
	"github.com/lukasortiz/taskpay-backend/pkg/enums"
	pkgerrors "github.com/lukasortiz/taskpay-backend/pkg/errors"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type fixture struct {
	db       *gorm.DB
	svc      Service
	order    models.Order
	listing  models.ServiceListing
	provider models.Provider
	company  models.Company
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Order{},
		&models.Company{},
		&models.Provider{},
		&models.ServiceListing{},
		&models.Payment{},
		&models.Escrow{},
		&models.Booking{},
		&models.BookingAssignment{},
		&models.Invoice{},
		&models.FinanceEvent{},
	))

	regionID := uuid.New()

	company := models.Company{ID: uuid.New(), Name: "Brightside Cleaning", Verified: true}
	require.NoError(t, db.Create(&company).Error)

	provider := models.Provider{ID: uuid.New(), CompanyID: company.ID, RegionID: regionID, Active: true}
	require.NoError(t, db.Create(&provider).Error)

	listing := models.ServiceListing{ID: uuid.New(), ProviderID: provider.ID, Title: "Deep clean", Active: true}
	require.NoError(t, db.Create(&listing).Error)

	order := models.Order{ID: uuid.New(), BuyerID: uuid.New(), ServiceID: listing.ID, RegionID: regionID, Currency: "EUR"}
	require.NoError(t, db.Create(&order).Error)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(db))
	require.NoError(t, err)

	svc, err := NewService(gormTxRunner{db: db}, NewRepository(db), ledgerSvc, DefaultRateTable())
	require.NoError(t, err)

	return &fixture{
		db:       db,
		svc:      svc,
		order:    order,
		listing:  listing,
		provider: provider,
		company:  company,
	}
}

func (f *fixture) input() CheckoutInput {
	return CheckoutInput{
		OrderID:   f.order.ID,
		BuyerID:   f.order.BuyerID,
		ServiceID: f.listing.ID,
		Amount:    decimal.RequireFromString("100.00"),
		Currency:  "EUR",
		Source:    "web",
	}
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(model).Count(&count).Error)
	return count
}

func TestCreateCheckoutBuildsFullStack(t *testing.T) {
	f := setupFixture(t)

	payment, err := f.svc.CreateCheckout(context.Background(), f.input())
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPending, payment.Status)
	require.Equal(t, "100.00", payment.Amount.StringFixed(2))
	require.NotEmpty(t, payment.Fingerprint)

	var escrow models.Escrow
	require.NoError(t, f.db.First(&escrow, "order_id = ?", f.order.ID).Error)
	require.Equal(t, enums.EscrowStatusPending, escrow.Status)
	require.Equal(t, "100.00", escrow.Amount.StringFixed(2))

	var booking models.Booking
	require.NoError(t, f.db.First(&booking, "order_id = ?", f.order.ID).Error)
	require.Equal(t, enums.BookingStatusAwaitingAssignment, booking.Status)
	require.Equal(t, "100.00", booking.BaseAmount.StringFixed(2))
	require.Equal(t, "10.00", booking.CommissionAmount.StringFixed(2))
	require.Equal(t, "20.00", booking.TaxAmount.StringFixed(2))
	require.Equal(t, "130.00", booking.TotalAmount.StringFixed(2))

	var invoice models.Invoice
	require.NoError(t, f.db.First(&invoice, "order_id = ?", f.order.ID).Error)
	require.Equal(t, enums.InvoiceStatusIssued, invoice.Status)
	require.Equal(t, "130.00", invoice.AmountDue.StringFixed(2))
	require.Equal(t, "0.00", invoice.AmountPaid.StringFixed(2))

	var assignments []models.BookingAssignment
	require.NoError(t, f.db.Find(&assignments, "booking_id = ?", booking.ID).Error)
	require.Len(t, assignments, 1)
	require.Equal(t, f.provider.ID, assignments[0].ProviderID)
	require.Equal(t, enums.AssignmentRoleLead, assignments[0].Role)

	var events []models.FinanceEvent
	require.NoError(t, f.db.Order("created_at ASC").Find(&events, "order_id = ?", f.order.ID).Error)
	require.Len(t, events, 2)
	require.Equal(t, enums.FinanceEventCheckoutCreated, events[0].EventType)
	require.Equal(t, enums.FinanceEventAssignmentsCreated, events[1].EventType)
}

func TestCreateCheckoutReplayReturnsExistingPayment(t *testing.T) {
	f := setupFixture(t)

	first, err := f.svc.CreateCheckout(context.Background(), f.input())
	require.NoError(t, err)

	second, err := f.svc.CreateCheckout(context.Background(), f.input())
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	require.EqualValues(t, 1, countRows(t, f.db, &models.Payment{}))
	require.EqualValues(t, 1, countRows(t, f.db, &models.Escrow{}))
	require.EqualValues(t, 1, countRows(t, f.db, &models.Booking{}))
	require.EqualValues(t, 1, countRows(t, f.db, &models.Invoice{}))
}

func TestCreateCheckoutDifferentSourceCreatesNewPayment(t *testing.T) {
	f := setupFixture(t)

	first, err := f.svc.CreateCheckout(context.Background(), f.input())
	require.NoError(t, err)

	altered := f.input()
	altered.Source = "mobile"
	second, err := f.svc.CreateCheckout(context.Background(), altered)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	require.EqualValues(t, 2, countRows(t, f.db, &models.Payment{}))
	// Escrow, booking and invoice stay singular per order.
	require.EqualValues(t, 1, countRows(t, f.db, &models.Escrow{}))
	require.EqualValues(t, 1, countRows(t, f.db, &models.Booking{}))
	require.EqualValues(t, 1, countRows(t, f.db, &models.Invoice{}))
}

func TestCreateCheckoutValidationLeavesNoTrace(t *testing.T) {
	f := setupFixture(t)

	input := f.input()
	input.Source = ""
	_, err := f.svc.CreateCheckout(context.Background(), input)
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	input = f.input()
	input.Amount = decimal.RequireFromString("-5")
	_, err = f.svc.CreateCheckout(context.Background(), input)
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	require.EqualValues(t, 0, countRows(t, f.db, &models.Payment{}))
	require.EqualValues(t, 0, countRows(t, f.db, &models.Escrow{}))
}

func TestCreateCheckoutRejectsForeignBuyer(t *testing.T) {
	f := setupFixture(t)

	input := f.input()
	input.BuyerID = uuid.New()
	_, err := f.svc.CreateCheckout(context.Background(), input)
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())
	require.EqualValues(t, 0, countRows(t, f.db, &models.Payment{}))
}

func TestCreateCheckoutRejectsCurrencyMismatch(t *testing.T) {
	f := setupFixture(t)

	input := f.input()
	input.Currency = "USD"
	_, err := f.svc.CreateCheckout(context.Background(), input)
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestCreateCheckoutRejectsInactiveListing(t *testing.T) {
	f := setupFixture(t)

	require.NoError(t, f.db.Model(&models.ServiceListing{}).Where("id = ?", f.listing.ID).Update("active", false).Error)

	_, err := f.svc.CreateCheckout(context.Background(), f.input())
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodePrecondition, pkgerrors.As(err).Code())
	require.EqualValues(t, 0, countRows(t, f.db, &models.Payment{}))
}

func TestCreateCheckoutRejectsUnverifiedCompany(t *testing.T) {
	f := setupFixture(t)

	require.NoError(t, f.db.Model(&models.Company{}).Where("id = ?", f.company.ID).Update("verified", false).Error)

	_, err := f.svc.CreateCheckout(context.Background(), f.input())
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodePrecondition, pkgerrors.As(err).Code())
}

// racingRepository simulates a concurrent checkout that claims the
// fingerprint index between the fast-path lookup and the insert. Once the
// insert has lost, lookups resolve to the winner's payment.
type racingRepository struct {
	Repository
	winner  *models.Payment
	tripped bool
}

func (r *racingRepository) WithTx(tx *gorm.DB) Repository {
	return &racingTxRepository{Repository: r.Repository.WithTx(tx), parent: r}
}

func (r *racingRepository) FindPaymentByFingerprint(ctx context.Context, print string) (*models.Payment, error) {
	if r.tripped {
		return r.winner, nil
	}
	return r.Repository.FindPaymentByFingerprint(ctx, print)
}

type racingTxRepository struct {
	Repository
	parent *racingRepository
}

func (r *racingTxRepository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	winner := *payment
	winner.ID = uuid.New()
	r.parent.winner = &winner
	r.parent.tripped = true
	return &pgconn.PgError{Code: "23505", ConstraintName: "ux_payments_fingerprint"}
}

func TestCreateCheckoutFingerprintRaceReturnsWinner(t *testing.T) {
	f := setupFixture(t)

	repo := &racingRepository{Repository: NewRepository(f.db)}
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(f.db))
	require.NoError(t, err)
	svc, err := NewService(gormTxRunner{db: f.db}, repo, ledgerSvc, DefaultRateTable())
	require.NoError(t, err)

	payment, err := svc.CreateCheckout(context.Background(), f.input())
	require.NoError(t, err)
	require.True(t, repo.tripped)
	require.Equal(t, repo.winner.ID, payment.ID)

	// The loser's transaction rolled back before any side effects landed.
	require.EqualValues(t, 0, countRows(t, f.db, &models.Escrow{}))
	require.EqualValues(t, 0, countRows(t, f.db, &models.FinanceEvent{}))
}

func TestCreateCheckoutUnknownOrder(t *testing.T) {
	f := setupFixture(t)

	input := f.input()
	input.OrderID = uuid.New()
	_, err := f.svc.CreateCheckout(context.Background(), input)
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

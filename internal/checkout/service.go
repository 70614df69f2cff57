package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lukasortiz/taskpay-backend/internal/fingerprint"
	"github.com/lukasortiz/taskpay-backend/internal/ledger"
	"github.com/lukasortiz/taskpay-backend/pkg/db"
	"github.com/lukasortiz/taskpay-backend/pkg/db/models"
	"github.com/lukasortiz/taskpay-backend/pkg/enums"
	pkgerrors "github.com/lukasortiz/taskpay-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service executes checkout orchestration.
type Service interface {
	CreateCheckout(ctx context.Context, input CheckoutInput) (*models.Payment, error)
}

// CheckoutInput captures one checkout intent.
type CheckoutInput struct {
	OrderID   uuid.UUID
	BuyerID   uuid.UUID
	ServiceID uuid.UUID
	Amount    decimal.Decimal
	Currency  string
	Source    string
	Metadata  json.RawMessage
}

type service struct {
	tx        txRunner
	repo      Repository
	ledgerSvc ledger.Service
	rates     RateTable
	now       func() time.Time
}

// NewService builds the checkout service.
func NewService(tx txRunner, repo Repository, ledgerSvc ledger.Service, rates RateTable) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &service{
		tx:        tx,
		repo:      repo,
		ledgerSvc: ledgerSvc,
		rates:     rates,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) CreateCheckout(ctx context.Context, input CheckoutInput) (*models.Payment, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	print := fingerprint.Compute(fingerprint.Input{
		OrderID:  input.OrderID,
		BuyerID:  input.BuyerID,
		Source:   input.Source,
		Amount:   input.Amount,
		Currency: input.Currency,
	})

	// Fast path: a retry of an already-accepted checkout returns the existing
	// payment with no side effects.
	existing, err := s.repo.FindPaymentByFingerprint(ctx, print)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	var payment *models.Payment
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ledgerSvc := s.ledgerSvc.WithTx(tx)

		order, err := repo.FindOrderByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return err
		}
		if order.BuyerID != input.BuyerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to buyer")
		}
		if order.Currency != input.Currency {
			return pkgerrors.New(pkgerrors.CodeValidation, "currency does not match order currency")
		}

		listing, err := repo.FindServiceListingByID(ctx, input.ServiceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "service listing not found")
			}
			return err
		}
		if !listing.Active {
			return pkgerrors.New(pkgerrors.CodePrecondition, "service listing is inactive")
		}

		provider, err := repo.FindProviderByID(ctx, listing.ProviderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodePrecondition, "service has no provider")
			}
			return err
		}
		if !provider.Active {
			return pkgerrors.New(pkgerrors.CodePrecondition, "provider is inactive")
		}

		company, err := repo.FindCompanyByID(ctx, provider.CompanyID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodePrecondition, "provider has no company")
			}
			return err
		}
		if !company.Verified {
			return pkgerrors.New(pkgerrors.CodePrecondition, "provider company is not verified")
		}

		payment = &models.Payment{
			OrderID:     input.OrderID,
			BuyerID:     input.BuyerID,
			Source:      input.Source,
			Amount:      input.Amount,
			Currency:    input.Currency,
			Fingerprint: print,
			Status:      enums.PaymentStatusPending,
			Metadata:    input.Metadata,
		}
		if err := repo.CreatePayment(ctx, payment); err != nil {
			return err
		}

		if err := s.ensureEscrow(ctx, repo, input); err != nil {
			return err
		}

		rates := s.rates.For(order.RegionID)
		booking, created, err := s.ensureBooking(ctx, repo, input, rates)
		if err != nil {
			return err
		}
		if err := s.ensureInvoice(ctx, repo, input, booking, rates); err != nil {
			return err
		}

		if err := s.recordEvent(ctx, ledgerSvc, enums.FinanceEventCheckoutCreated, input.OrderID, payment, map[string]any{
			"amount":   input.Amount.StringFixed(2),
			"currency": input.Currency,
			"source":   input.Source,
		}); err != nil {
			return err
		}

		if created {
			if err := s.assignCandidates(ctx, repo, ledgerSvc, order, booking, payment); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// A racing duplicate insert lost to the unique index; the winner's
		// payment is the canonical result.
		if db.IsUniqueViolation(err, "ux_payments_fingerprint") {
			winner, findErr := s.repo.FindPaymentByFingerprint(ctx, print)
			if findErr != nil {
				return nil, findErr
			}
			if winner != nil {
				return winner, nil
			}
		}
		return nil, err
	}
	return payment, nil
}

func validateInput(input CheckoutInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.BuyerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if input.ServiceID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "service id required")
	}
	if !input.Amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if len(input.Currency) != 3 {
		return pkgerrors.New(pkgerrors.CodeValidation, "currency must be a 3-letter code")
	}
	if input.Source == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "source required")
	}
	return nil
}

func (s *service) ensureEscrow(ctx context.Context, repo Repository, input CheckoutInput) error {
	escrow, err := repo.FindEscrowByOrderID(ctx, input.OrderID)
	if err != nil {
		return err
	}
	if escrow == nil {
		return repo.CreateEscrow(ctx, &models.Escrow{
			OrderID:  input.OrderID,
			Status:   enums.EscrowStatusPending,
			Amount:   input.Amount,
			Currency: input.Currency,
		})
	}
	// Reconcile a pre-existing escrow with the latest intent amounts.
	if !escrow.Amount.Equal(input.Amount) || escrow.Currency != input.Currency {
		escrow.Amount = input.Amount
		escrow.Currency = input.Currency
		return repo.SaveEscrow(ctx, escrow)
	}
	return nil
}

func (s *service) ensureBooking(ctx context.Context, repo Repository, input CheckoutInput, rates Rates) (*models.Booking, bool, error) {
	booking, err := repo.FindBookingByOrderID(ctx, input.OrderID)
	if err != nil {
		return nil, false, err
	}
	if booking != nil {
		return booking, false, nil
	}

	totals := ComputeTotals(input.Amount, rates)
	booking = &models.Booking{
		OrderID:          input.OrderID,
		Status:           enums.BookingStatusAwaitingAssignment,
		BaseAmount:       totals.Base,
		CommissionAmount: totals.Commission,
		TaxAmount:        totals.Tax,
		TotalAmount:      totals.Total,
		Currency:         input.Currency,
		SLAExpiresAt:     s.now().Add(rates.SLA),
	}
	if err := repo.CreateBooking(ctx, booking); err != nil {
		return nil, false, err
	}
	return booking, true, nil
}

func (s *service) ensureInvoice(ctx context.Context, repo Repository, input CheckoutInput, booking *models.Booking, rates Rates) error {
	invoice, err := repo.FindInvoiceByOrderID(ctx, input.OrderID)
	if err != nil {
		return err
	}
	if invoice != nil {
		return nil
	}
	return repo.CreateInvoice(ctx, &models.Invoice{
		OrderID:    input.OrderID,
		Status:     enums.InvoiceStatusIssued,
		AmountDue:  booking.TotalAmount,
		AmountPaid: decimal.Zero,
		Currency:   input.Currency,
		DueAt:      s.now().Add(rates.InvoiceDue),
	})
}

func (s *service) assignCandidates(ctx context.Context, repo Repository, ledgerSvc ledger.Service, order *models.Order, booking *models.Booking, payment *models.Payment) error {
	candidates, err := repo.ListCandidateProviders(ctx, order.RegionID, candidateLimit)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return nil
	}

	assignments := make([]models.BookingAssignment, 0, len(candidates))
	for i, candidate := range candidates {
		role := enums.AssignmentRoleSupport
		if i == 0 {
			role = enums.AssignmentRoleLead
		}
		assignments = append(assignments, models.BookingAssignment{
			BookingID:  booking.ID,
			ProviderID: candidate.ID,
			Role:       role,
		})
	}
	if err := repo.CreateAssignments(ctx, assignments); err != nil {
		return err
	}

	return s.recordEvent(ctx, ledgerSvc, enums.FinanceEventAssignmentsCreated, order.ID, payment, map[string]any{
		"booking_id": booking.ID.String(),
		"candidates": len(assignments),
	})
}

func (s *service) recordEvent(ctx context.Context, ledgerSvc ledger.Service, eventType enums.FinanceEventType, orderID uuid.UUID, payment *models.Payment, snapshot map[string]any) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	input := ledger.RecordEventInput{
		Type:     eventType,
		OrderID:  &orderID,
		Snapshot: raw,
	}
	if payment != nil {
		input.PaymentID = &payment.ID
	}
	_, err = ledgerSvc.RecordEvent(ctx, input)
	return err
}

package service

import (
	"context"
	"fmt"

	"lukechampine.com/uint128"

	"github.com/josh-kwaku/retail-bank/internal/domain"
	"github.com/josh-kwaku/retail-bank/internal/logging"
)

type LoanService struct {
	ledger  loanLedger
	pricing loanPricing
}

func NewLoanService(l loanLedger, p loanPricing) *LoanService {
	return &LoanService{ledger: l, pricing: p}
}

// CreateLoanAccount opens a loan against debtorID and pays the principal
// into the debtor's account. The same linked batch books the principal
// from loan control into the retail clearing account. The loan's debit
// order carries the monthly installment.
func (s *LoanService) CreateLoanAccount(ctx context.Context, debtorID uint128.Uint128, amountCents uint64) (uint128.Uint128, error) {
	if _, err := s.requireAccount(ctx, debtorID, domain.AccountTypeTransactional); err != nil {
		return uint128.Zero, fmt.Errorf("CreateLoanAccount: %w", err)
	}
	if amountCents == 0 {
		return uint128.Zero, fmt.Errorf("CreateLoanAccount: %w", &domain.InvalidLoanAmountError{Amount: amountCents})
	}

	installment := s.pricing.Installment(amountCents)

	id, err := generateAccountNumber(loanNumberBase, loanNumberSpan)
	if err != nil {
		return uint128.Zero, fmt.Errorf("CreateLoanAccount: %w", err)
	}

	loan := &domain.Account{
		ID:   id,
		Type: domain.AccountTypeLoan,
		DebitOrder: &domain.DebitOrder{
			DebitAccountID: debtorID,
			Amount:         installment,
		},
	}
	if err := s.ledger.CreateAccount(ctx, loan); err != nil {
		return uint128.Zero, fmt.Errorf("CreateLoanAccount: %w", err)
	}

	principal := uint128.From64(amountCents)
	_, err = s.ledger.TransferLinked(ctx, []domain.Transfer{
		{
			DebitAccountID:  id,
			CreditAccountID: debtorID,
			Amount:          principal,
			Type:            domain.TransferTypeTransfer,
		},
		{
			DebitAccountID:  domain.LoanControlAccountID,
			CreditAccountID: domain.BankRetail.AccountID(),
			Amount:          principal,
			Type:            domain.TransferTypeTransfer,
		},
	})
	if err != nil {
		return uint128.Zero, fmt.Errorf("CreateLoanAccount: disburse: %w", err)
	}

	logging.FromContext(ctx).Info("loan account created",
		"loan_id", id.String(),
		"debtor_id", debtorID.String(),
		"principal_cents", amountCents,
		"installment_cents", installment,
	)
	return id, nil
}

// PayInstallment collects one installment from the debtor. A debtor who
// cannot cover the full amount due has the loan written off to bad debts
// and closed; partial payments are not taken.
func (s *LoanService) PayInstallment(ctx context.Context, loanID uint128.Uint128) error {
	loan, err := s.requireAccount(ctx, loanID, domain.AccountTypeLoan)
	if err != nil {
		return fmt.Errorf("PayInstallment: %w", err)
	}
	if loan.DebitOrder == nil {
		return nil
	}

	outstanding := loan.Outstanding()
	if outstanding.IsZero() {
		return nil
	}

	debtor, err := s.ledger.GetAccount(ctx, loan.DebitOrder.DebitAccountID)
	if err != nil {
		return fmt.Errorf("PayInstallment: %w", err)
	}
	if debtor == nil {
		return fmt.Errorf("PayInstallment: %w", &domain.AccountNotFoundError{AccountID: loan.DebitOrder.DebitAccountID})
	}

	log := logging.FromContext(ctx).With("loan_id", loanID.String(), "debtor_id", debtor.ID.String())
	split := s.pricing.SplitInstallment(outstanding, loan.DebitOrder.Amount)

	if debtor.Available().Cmp(split.Due) < 0 {
		if _, _, err := s.ledger.BalanceAndCloseCredit(ctx, domain.BadDebtsAccountID, loanID); err != nil {
			return fmt.Errorf("PayInstallment: write off: %w", err)
		}
		log.Warn("loan written off",
			"amount_due", split.Due.String(),
			"available", debtor.Available().String(),
			"outstanding", outstanding.String(),
		)
		return nil
	}

	_, err = s.ledger.TransferLinked(ctx, []domain.Transfer{
		{
			DebitAccountID:  debtor.ID,
			CreditAccountID: loanID,
			Amount:          split.Principal,
			Type:            domain.TransferTypeTransfer,
		},
		{
			DebitAccountID:  debtor.ID,
			CreditAccountID: domain.InterestIncomeAccountID,
			Amount:          split.Interest,
			Type:            domain.TransferTypeTransfer,
		},
	})
	if err != nil {
		return fmt.Errorf("PayInstallment: %w", err)
	}

	log.Info("installment collected",
		"principal", split.Principal.String(),
		"interest", split.Interest.String(),
	)
	return nil
}

// ProcessInterest capitalises a month of interest onto loans that have no
// debit order, and reports whether an interest transfer was posted.
//
// It only acts on loans without a debit order. Every loan opened through
// CreateLoanAccount carries one and pays its interest inside PayInstallment,
// so for those this is a no-op returning false.
func (s *LoanService) ProcessInterest(ctx context.Context, loanID uint128.Uint128) (bool, error) {
	loan, err := s.requireAccount(ctx, loanID, domain.AccountTypeLoan)
	if err != nil {
		return false, fmt.Errorf("ProcessInterest: %w", err)
	}
	if loan.DebitOrder != nil || loan.Closed {
		return false, nil
	}

	interest := s.pricing.MonthlyInterest(loan.Outstanding())
	if interest.IsZero() {
		return false, nil
	}

	_, err = s.ledger.Transfer(ctx, domain.Transfer{
		DebitAccountID:  loanID,
		CreditAccountID: domain.InterestIncomeAccountID,
		Amount:          interest,
		Type:            domain.TransferTypeTransfer,
	})
	if err != nil {
		return false, fmt.Errorf("ProcessInterest: %w", err)
	}

	logging.FromContext(ctx).Info("interest accrued", "loan_id", loanID.String(), "interest", interest.String())
	return true, nil
}

func (s *LoanService) requireAccount(ctx context.Context, id uint128.Uint128, want domain.AccountType) (*domain.Account, error) {
	account, err := s.ledger.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, &domain.AccountNotFoundError{AccountID: id}
	}
	if account.Type != want {
		return nil, &domain.InvalidAccountError{Got: account.Type, Expected: want}
	}
	return account, nil
}

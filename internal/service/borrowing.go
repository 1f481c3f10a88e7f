package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/libtrack/borrowing-service/internal/errs"
	"github.com/libtrack/borrowing-service/internal/model"
	"github.com/libtrack/borrowing-service/pkg/auth"
	"github.com/libtrack/borrowing-service/pkg/kafka"
)

// CreateBorrowing decrements the book inventory, opens the borrowing
// and its companion PENDING payment (daily fee x max term) in one
// transaction, then emits a notification after commit. A borrower with
// any PENDING payment is rejected up front.
func (s *Service) CreateBorrowing(ctx context.Context, user auth.User, req model.CreateBorrowingRequest) (model.CreateBorrowingResponse, error) {
	pending, err := s.repo.HasPendingPayments(ctx, user.ID)
	if err != nil {
		return model.CreateBorrowingResponse{}, err
	}
	if pending {
		return model.CreateBorrowingResponse{}, errs.ErrPendingPayment
	}

	today := s.today()
	draft := model.Borrowing{
		BorrowDate:         model.Date{Time: today},
		ExpectedReturnDate: model.Date{Time: today.AddDate(0, 0, model.MaxTerm)},
		UserID:             user.ID,
		UserEmail:          user.Email,
		BookID:             req.BookID,
	}

	var borrowedBook model.Book
	borrowing, payment, err := s.repo.CreateBorrowing(ctx, draft, func(ctx context.Context, book model.Book) (model.Payment, error) {
		borrowedBook = book
		amount := round2(book.DailyFee * model.MaxTerm)
		session, err := s.provider.CreateSession(ctx, book.Title, cents(amount))
		if err != nil {
			return model.Payment{}, err
		}
		return model.Payment{
			Status:     model.PaymentStatusPending,
			Type:       model.PaymentTypePayment,
			SessionURL: session.URL,
			SessionID:  session.ID,
			MoneyToPay: amount,
		}, nil
	})
	if err != nil {
		return model.CreateBorrowingResponse{}, err
	}

	s.notify(fmt.Sprintf(
		"New borrowing:\nUser: %s\nBook: %s\nPlease, return until: %s",
		user.Email, borrowedBook.Title, borrowing.ExpectedReturnDate.Format(time.DateOnly)))

	return model.CreateBorrowingResponse{
		Borrowing:  borrowing,
		SessionURL: payment.SessionURL,
		MoneyToPay: payment.MoneyToPay,
	}, nil
}

// ReturnBorrowing performs the one-shot Active->Returned transition and
// restores the inventory. A late return gets a FINE payment of
// daily fee x days overdue x the fine multiplier, created in the same
// transaction; whether the original payment was ever paid does not
// matter.
func (s *Service) ReturnBorrowing(ctx context.Context, user auth.User, borrowingID int, req model.ReturnBorrowingRequest) (model.ReturnBorrowingResponse, error) {
	actual := req.ActualReturnDate.Time
	if actual.Before(s.today()) {
		return model.ReturnBorrowingResponse{}, errs.ErrInvalidReturnDate
	}

	var scope *int
	if !user.IsStaff() {
		scope = &user.ID
	}

	var finedBook model.Book
	borrowing, fine, err := s.repo.ReturnBorrowing(ctx, borrowingID, scope, actual, func(ctx context.Context, book model.Book, daysOverdue int) (model.Payment, error) {
		finedBook = book
		amount := round2(book.DailyFee * float64(daysOverdue) * model.FineMultiplier)
		session, err := s.provider.CreateSession(ctx, book.Title+" (overdue fine)", cents(amount))
		if err != nil {
			return model.Payment{}, err
		}
		return model.Payment{
			Status:     model.PaymentStatusPending,
			Type:       model.PaymentTypeFine,
			SessionURL: session.URL,
			SessionID:  session.ID,
			MoneyToPay: amount,
		}, nil
	})
	if err != nil {
		return model.ReturnBorrowingResponse{}, err
	}

	if fine != nil {
		s.notify(fmt.Sprintf(
			"Overdue return:\nUser: %s\nBook: %s\nFine: %.2f",
			borrowing.UserEmail, finedBook.Title, fine.MoneyToPay))
	}

	return model.ReturnBorrowingResponse{
		Borrowing: borrowing,
		Fine:      fine,
	}, nil
}

// ListBorrowings scopes non-staff callers to their own records; the
// user_id filter is honored for staff only.
func (s *Service) ListBorrowings(ctx context.Context, user auth.User, f model.BorrowingFilter) ([]model.Borrowing, error) {
	if !user.IsStaff() {
		f.UserID = &user.ID
	}
	return s.repo.ListBorrowings(ctx, f)
}

func (s *Service) GetBorrowing(ctx context.Context, user auth.User, id int) (model.Borrowing, error) {
	var scope *int
	if !user.IsStaff() {
		scope = &user.ID
	}
	return s.repo.GetBorrowing(ctx, id, scope)
}

// notify enqueues a post-commit notification event; failures are
// logged and dropped, the owning operation already committed.
func (s *Service) notify(text string) {
	if err := s.enqueuer.Enqueue(kafka.NotifyTopic, kafka.EventNotify{Text: text}); err != nil {
		s.log.Warn("notify enqueue", zap.Error(err))
	}
}

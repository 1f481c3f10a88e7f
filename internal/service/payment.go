package service

import (
	"context"

	"github.com/libtrack/borrowing-service/internal/checkout"
	"github.com/libtrack/borrowing-service/internal/model"
	"github.com/libtrack/borrowing-service/pkg/auth"
)

const (
	paidMessage    = "payment is successful"
	pendingMessage = "payment is not completed yet, try again later"

	// CancelNotice is a non-completion notice, not an error: the remote
	// session stays payable for 24 hours.
	CancelNotice = "payment can be finished later: the checkout session stays available for 24 hours"
)

func (s *Service) ListPayments(ctx context.Context, user auth.User) ([]model.Payment, error) {
	var scope *int
	if !user.IsStaff() {
		scope = &user.ID
	}
	return s.repo.ListPayments(ctx, scope)
}

func (s *Service) GetPayment(ctx context.Context, user auth.User, id int) (model.Payment, error) {
	var scope *int
	if !user.IsStaff() {
		scope = &user.ID
	}
	return s.repo.GetPayment(ctx, id, scope)
}

// SuccessPayment confirms a checkout session: if the remote status is
// complete the local payment goes PENDING->PAID with its type kept. An
// incomplete session is not an error, the caller retries later.
func (s *Service) SuccessPayment(ctx context.Context, sessionID string) (model.SuccessPaymentResponse, error) {
	payment, err := s.repo.GetPaymentBySession(ctx, sessionID)
	if err != nil {
		return model.SuccessPaymentResponse{}, err
	}

	status, err := s.provider.RetrieveSession(ctx, sessionID)
	if err != nil {
		return model.SuccessPaymentResponse{}, err
	}
	if status != checkout.StatusComplete {
		return model.SuccessPaymentResponse{
			Message: pendingMessage,
			Payment: payment,
		}, nil
	}

	paid, err := s.repo.MarkPaymentPaid(ctx, sessionID)
	if err != nil {
		return model.SuccessPaymentResponse{}, err
	}
	return model.SuccessPaymentResponse{
		Message: paidMessage,
		Payment: paid,
	}, nil
}

func (s *Service) CancelPayment() string {
	return CancelNotice
}

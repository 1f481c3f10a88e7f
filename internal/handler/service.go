package handler

import (
	"context"

	"github.com/libtrack/borrowing-service/internal/model"
	"github.com/libtrack/borrowing-service/internal/service"
	"github.com/libtrack/borrowing-service/pkg/auth"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go -package=mocks

var (
	_ CatalogService   = (*service.Service)(nil)
	_ BorrowingService = (*service.Service)(nil)
	_ PaymentService   = (*service.Service)(nil)
)

type CatalogService interface {
	CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error)
	UpdateBook(ctx context.Context, id int, req model.UpdateBookRequest) (model.Book, error)
	DeleteBook(ctx context.Context, id int) error
	ListBooks(ctx context.Context) ([]model.Book, error)
	GetBook(ctx context.Context, id int) (model.Book, error)
}

type BorrowingService interface {
	CreateBorrowing(ctx context.Context, user auth.User, req model.CreateBorrowingRequest) (model.CreateBorrowingResponse, error)
	ReturnBorrowing(ctx context.Context, user auth.User, borrowingID int, req model.ReturnBorrowingRequest) (model.ReturnBorrowingResponse, error)
	ListBorrowings(ctx context.Context, user auth.User, f model.BorrowingFilter) ([]model.Borrowing, error)
	GetBorrowing(ctx context.Context, user auth.User, id int) (model.Borrowing, error)
}

type PaymentService interface {
	ListPayments(ctx context.Context, user auth.User) ([]model.Payment, error)
	GetPayment(ctx context.Context, user auth.User, id int) (model.Payment, error)
	SuccessPayment(ctx context.Context, sessionID string) (model.SuccessPaymentResponse, error)
	CancelPayment() string
}

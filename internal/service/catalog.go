package service

import (
	"context"

	"github.com/libtrack/borrowing-service/internal/model"
)

func (s *Service) CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error) {
	return s.repo.CreateBook(ctx, req)
}

func (s *Service) UpdateBook(ctx context.Context, id int, req model.UpdateBookRequest) (model.Book, error) {
	return s.repo.UpdateBook(ctx, id, req)
}

// DeleteBook removes the book; dependent borrowings go with it
// (cascade).
func (s *Service) DeleteBook(ctx context.Context, id int) error {
	return s.repo.DeleteBook(ctx, id)
}

func (s *Service) ListBooks(ctx context.Context) ([]model.Book, error) {
	return s.repo.ListBooks(ctx)
}

func (s *Service) GetBook(ctx context.Context, id int) (model.Book, error) {
	return s.repo.GetBook(ctx, id)
}

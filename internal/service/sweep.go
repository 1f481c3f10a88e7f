package service

import (
	"context"
	"fmt"
	"time"
)

// SweepOverdue scans for active borrowings past their expected return
// date and emits one notification per offender. It only reads state,
// so it runs concurrently with normal traffic; a borrowing returned
// mid-sweep may still be reported once.
func (s *Service) SweepOverdue(ctx context.Context) (int, error) {
	overdue, err := s.repo.ListOverdue(ctx, s.today())
	if err != nil {
		return 0, err
	}

	for _, b := range overdue {
		s.notify(fmt.Sprintf(
			"Overdue borrowing:\nUser %s didn't return the book\nBook: %s\nShould have been returned by %s",
			b.UserEmail, b.BookTitle, b.ExpectedReturnDate.Format(time.DateOnly)))
	}

	return len(overdue), nil
}

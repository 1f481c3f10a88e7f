package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/libtrack/borrowing-service/internal/errs"
	"github.com/libtrack/borrowing-service/internal/model"
)

//go:generate go run github.com/golang/mock/mockgen -source=repository.go -destination=mocks/mock.go -package=mocks

// PaymentFn produces the payment draft for a freshly inserted
// borrowing: the caller computes the amount and obtains the checkout
// session. It runs inside the borrowing transaction so a provider
// failure rolls the whole creation back.
type PaymentFn func(ctx context.Context, book model.Book) (model.Payment, error)

// FineFn produces the fine draft for an overdue return, same
// transactional contract as PaymentFn.
type FineFn func(ctx context.Context, book model.Book, daysOverdue int) (model.Payment, error)

type Repository interface {
	CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error)
	UpdateBook(ctx context.Context, id int, req model.UpdateBookRequest) (model.Book, error)
	DeleteBook(ctx context.Context, id int) error
	ListBooks(ctx context.Context) ([]model.Book, error)
	GetBook(ctx context.Context, id int) (model.Book, error)

	ListBorrowings(ctx context.Context, f model.BorrowingFilter) ([]model.Borrowing, error)
	GetBorrowing(ctx context.Context, id int, userID *int) (model.Borrowing, error)
	HasPendingPayments(ctx context.Context, userID int) (bool, error)
	CreateBorrowing(ctx context.Context, b model.Borrowing, newPayment PaymentFn) (model.Borrowing, model.Payment, error)
	ReturnBorrowing(ctx context.Context, id int, userID *int, actualReturn time.Time, newFine FineFn) (model.Borrowing, *model.Payment, error)
	ListOverdue(ctx context.Context, today time.Time) ([]model.OverdueBorrowing, error)

	ListPayments(ctx context.Context, userID *int) ([]model.Payment, error)
	GetPayment(ctx context.Context, id int, userID *int) (model.Payment, error)
	GetPaymentBySession(ctx context.Context, sessionID string) (model.Payment, error)
	MarkPaymentPaid(ctx context.Context, sessionID string) (model.Payment, error)
}

type repository struct {
	db  *pgxpool.Pool
	log *zap.Logger
}

func NewRepository(db *pgxpool.Pool, log *zap.Logger) (*repository, error) {
	return &repository{
		db:  db,
		log: log.Named("repo"),
	}, nil
}

const (
	booksTableName      = `books`
	borrowingsTableName = `borrowings`
	paymentsTableName   = `payments`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var (
	bookColumns      = []string{"id", "title", "author", "cover", "inventory", "daily_fee"}
	borrowingColumns = []string{"id", "borrow_date", "expected_return_date", "actual_return_date", "user_id", "user_email", "book_id"}
	paymentColumns   = []string{"id", "status", "type", "borrowing_id", "session_url", "session_id", "money_to_pay"}
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func (r *repository) CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error) {
	query, args, err := qb.Insert(booksTableName).
		Columns("title", "author", "cover", "inventory", "daily_fee").
		Values(req.Title, req.Author, req.Cover, req.Inventory, req.DailyFee).
		Suffix("returning " + columns(bookColumns)).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return model.Book{}, err
	}
	defer rows.Close()

	book, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Book])
	if err != nil {
		if isUniqueViolation(err) {
			return model.Book{}, errs.ErrDuplicateTitle
		}
		r.log.Error("CreateBook", zap.String("q", query), zap.Any("args", args))
		return model.Book{}, err
	}
	return book, nil
}

func (r *repository) UpdateBook(ctx context.Context, id int, req model.UpdateBookRequest) (model.Book, error) {
	q := qb.Update(booksTableName).Where(sq.Eq{"id": id})
	if req.Title != nil {
		q = q.Set("title", *req.Title)
	}
	if req.Author != nil {
		q = q.Set("author", *req.Author)
	}
	if req.Cover != nil {
		q = q.Set("cover", *req.Cover)
	}
	if req.Inventory != nil {
		q = q.Set("inventory", *req.Inventory)
	}
	if req.DailyFee != nil {
		q = q.Set("daily_fee", *req.DailyFee)
	}

	query, args, err := q.Suffix("returning " + columns(bookColumns)).ToSql()
	if err != nil {
		return model.Book{}, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return model.Book{}, err
	}
	defer rows.Close()

	book, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Book])
	if err != nil {
		if isUniqueViolation(err) {
			return model.Book{}, errs.ErrDuplicateTitle
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Book{}, errs.ErrNotFound
		}
		return model.Book{}, err
	}
	return book, nil
}

func (r *repository) DeleteBook(ctx context.Context, id int) error {
	query, args, err := qb.Delete(booksTableName).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *repository) ListBooks(ctx context.Context) ([]model.Book, error) {
	query, args, err := qb.Select(bookColumns...).
		From(booksTableName).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, pgx.RowToStructByName[model.Book])
}

func (r *repository) GetBook(ctx context.Context, id int) (model.Book, error) {
	query, args, err := qb.Select(bookColumns...).
		From(booksTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return model.Book{}, err
	}
	defer rows.Close()

	book, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Book])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, errs.ErrNotFound
		}
		return model.Book{}, err
	}
	return book, nil
}

func (r *repository) ListBorrowings(ctx context.Context, f model.BorrowingFilter) ([]model.Borrowing, error) {
	q := qb.Select(borrowingColumns...).
		From(borrowingsTableName).
		OrderBy("id")

	if f.UserID != nil {
		q = q.Where(sq.Eq{"user_id": *f.UserID})
	}
	if f.IsActive != nil {
		if *f.IsActive {
			q = q.Where(sq.Eq{"actual_return_date": nil})
		} else {
			q = q.Where(sq.NotEq{"actual_return_date": nil})
		}
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	r.log.Debug("ListBorrowings", zap.String("query", query), zap.Any("args", args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, pgx.RowToStructByName[model.Borrowing])
}

func (r *repository) GetBorrowing(ctx context.Context, id int, userID *int) (model.Borrowing, error) {
	q := qb.Select(borrowingColumns...).
		From(borrowingsTableName).
		Where(sq.Eq{"id": id})
	if userID != nil {
		q = q.Where(sq.Eq{"user_id": *userID})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return model.Borrowing{}, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return model.Borrowing{}, err
	}
	defer rows.Close()

	b, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Borrowing])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Borrowing{}, errs.ErrNotFound
		}
		return model.Borrowing{}, err
	}
	return b, nil
}

func (r *repository) HasPendingPayments(ctx context.Context, userID int) (bool, error) {
	q := `
	select exists(
		select 1 from payments p
		join borrowings b on b.id = p.borrowing_id
		where b.user_id = @user_id and p.status = @status
	)`
	args := pgx.NamedArgs{
		"user_id": userID,
		"status":  model.PaymentStatusPending,
	}
	var exists bool
	if err := r.db.QueryRow(ctx, q, args).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// CreateBorrowing atomically locks the book, decrements its inventory,
// inserts the borrowing row and the companion PENDING payment obtained
// from newPayment. Any failure, the provider call included, rolls the
// whole unit back.
func (r *repository) CreateBorrowing(ctx context.Context, b model.Borrowing, newPayment PaymentFn) (model.Borrowing, model.Payment, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.Borrowing{}, model.Payment{}, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	book, err := r.lockBook(ctx, tx, b.BookID)
	if err != nil {
		return model.Borrowing{}, model.Payment{}, err
	}
	if book.Inventory < 1 {
		return model.Borrowing{}, model.Payment{}, errs.ErrOutOfStock
	}

	if _, err := tx.Exec(ctx,
		`update books set inventory = inventory - 1 where id = $1`, book.ID); err != nil {
		return model.Borrowing{}, model.Payment{}, err
	}

	query, args, err := qb.Insert(borrowingsTableName).
		Columns("borrow_date", "expected_return_date", "user_id", "user_email", "book_id").
		Values(b.BorrowDate, b.ExpectedReturnDate, b.UserID, b.UserEmail, b.BookID).
		Suffix("returning " + columns(borrowingColumns)).
		ToSql()
	if err != nil {
		return model.Borrowing{}, model.Payment{}, err
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return model.Borrowing{}, model.Payment{}, err
	}
	borrowing, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Borrowing])
	if err != nil {
		return model.Borrowing{}, model.Payment{}, err
	}

	draft, err := newPayment(ctx, book)
	if err != nil {
		return model.Borrowing{}, model.Payment{}, errors.Wrap(err, "checkout session")
	}
	payment, err := r.insertPayment(ctx, tx, borrowing.ID, draft)
	if err != nil {
		return model.Borrowing{}, model.Payment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Borrowing{}, model.Payment{}, err
	}
	return borrowing, payment, nil
}

// ReturnBorrowing performs the one-shot Active->Returned transition:
// the UPDATE is guarded by actual_return_date IS NULL, a second attempt
// matches no row and reports ErrAlreadyReturned. Inventory restore and
// the optional fine insert ride the same transaction.
func (r *repository) ReturnBorrowing(ctx context.Context, id int, userID *int, actualReturn time.Time, newFine FineFn) (model.Borrowing, *model.Payment, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.Borrowing{}, nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	q := qb.Select(borrowingColumns...).
		From(borrowingsTableName).
		Where(sq.Eq{"id": id}).
		Suffix("for update")
	if userID != nil {
		q = q.Where(sq.Eq{"user_id": *userID})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return model.Borrowing{}, nil, err
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return model.Borrowing{}, nil, err
	}
	borrowing, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Borrowing])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Borrowing{}, nil, errs.ErrNotFound
		}
		return model.Borrowing{}, nil, err
	}

	tag, err := tx.Exec(ctx,
		`update borrowings set actual_return_date = $1 where id = $2 and actual_return_date is null`,
		actualReturn, borrowing.ID)
	if err != nil {
		return model.Borrowing{}, nil, err
	}
	if tag.RowsAffected() == 0 {
		return model.Borrowing{}, nil, errs.ErrAlreadyReturned
	}
	borrowing.ActualReturnDate = &model.Date{Time: actualReturn}

	book, err := r.lockBook(ctx, tx, borrowing.BookID)
	if err != nil {
		return model.Borrowing{}, nil, err
	}
	if _, err := tx.Exec(ctx,
		`update books set inventory = inventory + 1 where id = $1`, book.ID); err != nil {
		return model.Borrowing{}, nil, err
	}

	var fine *model.Payment
	if days := daysBetween(borrowing.ExpectedReturnDate.Time, actualReturn); days > 0 {
		draft, err := newFine(ctx, book, days)
		if err != nil {
			return model.Borrowing{}, nil, errors.Wrap(err, "checkout session")
		}
		p, err := r.insertPayment(ctx, tx, borrowing.ID, draft)
		if err != nil {
			return model.Borrowing{}, nil, err
		}
		fine = &p
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Borrowing{}, nil, err
	}
	return borrowing, fine, nil
}

func (r *repository) ListOverdue(ctx context.Context, today time.Time) ([]model.OverdueBorrowing, error) {
	query, args, err := qb.Select("b.id", "b.user_email", "bk.title", "b.expected_return_date").
		From(borrowingsTableName + " b").
		Join(booksTableName + " bk on bk.id = b.book_id").
		Where(sq.Lt{"b.expected_return_date": today}).
		Where(sq.Eq{"b.actual_return_date": nil}).
		OrderBy("b.expected_return_date").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, pgx.RowToStructByName[model.OverdueBorrowing])
}

func (r *repository) ListPayments(ctx context.Context, userID *int) ([]model.Payment, error) {
	q := qb.Select(prefixed("p", paymentColumns)...).
		From(paymentsTableName + " p").
		OrderBy("p.id")
	if userID != nil {
		q = q.Join(borrowingsTableName + " b on b.id = p.borrowing_id").
			Where(sq.Eq{"b.user_id": *userID})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, pgx.RowToStructByName[model.Payment])
}

func (r *repository) GetPayment(ctx context.Context, id int, userID *int) (model.Payment, error) {
	q := qb.Select(prefixed("p", paymentColumns)...).
		From(paymentsTableName + " p").
		Where(sq.Eq{"p.id": id})
	if userID != nil {
		q = q.Join(borrowingsTableName + " b on b.id = p.borrowing_id").
			Where(sq.Eq{"b.user_id": *userID})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return model.Payment{}, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return model.Payment{}, err
	}
	defer rows.Close()

	p, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Payment])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Payment{}, errs.ErrNotFound
		}
		return model.Payment{}, err
	}
	return p, nil
}

func (r *repository) GetPaymentBySession(ctx context.Context, sessionID string) (model.Payment, error) {
	query, args, err := qb.Select(paymentColumns...).
		From(paymentsTableName).
		Where(sq.Eq{"session_id": sessionID}).
		ToSql()
	if err != nil {
		return model.Payment{}, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return model.Payment{}, err
	}
	defer rows.Close()

	p, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Payment])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Payment{}, errs.ErrNotFound
		}
		return model.Payment{}, err
	}
	return p, nil
}

// MarkPaymentPaid transitions PENDING->PAID keeping the payment type
// as-is.
func (r *repository) MarkPaymentPaid(ctx context.Context, sessionID string) (model.Payment, error) {
	q := `
	update payments set status = @paid
	where session_id = @session_id
	returning ` + columns(paymentColumns)
	args := pgx.NamedArgs{
		"paid":       model.PaymentStatusPaid,
		"session_id": sessionID,
	}

	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return model.Payment{}, err
	}
	defer rows.Close()

	p, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Payment])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Payment{}, errs.ErrNotFound
		}
		return model.Payment{}, err
	}
	return p, nil
}

func (r *repository) lockBook(ctx context.Context, tx pgx.Tx, id int) (model.Book, error) {
	query, args, err := qb.Select(bookColumns...).
		From(booksTableName).
		Where(sq.Eq{"id": id}).
		Suffix("for update").
		ToSql()
	if err != nil {
		return model.Book{}, err
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return model.Book{}, err
	}
	book, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Book])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Book{}, errs.ErrNotFound
		}
		return model.Book{}, err
	}
	return book, nil
}

func (r *repository) insertPayment(ctx context.Context, tx pgx.Tx, borrowingID int, draft model.Payment) (model.Payment, error) {
	query, args, err := qb.Insert(paymentsTableName).
		Columns("status", "type", "borrowing_id", "session_url", "session_id", "money_to_pay").
		Values(draft.Status, draft.Type, borrowingID, draft.SessionURL, draft.SessionID, draft.MoneyToPay).
		Suffix("returning " + columns(paymentColumns)).
		ToSql()
	if err != nil {
		return model.Payment{}, err
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return model.Payment{}, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Payment])
}

func columns(cc []string) string {
	return strings.Join(cc, ", ")
}

func prefixed(alias string, cc []string) []string {
	out := make([]string, 0, len(cc))
	for _, c := range cc {
		out = append(out, alias+"."+c)
	}
	return out
}

// daysBetween counts whole days from a to b on calendar dates.
func daysBetween(a, b time.Time) int {
	a = time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	b = time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

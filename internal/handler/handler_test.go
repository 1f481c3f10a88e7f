package handler_test

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/libtrack/borrowing-service/internal/errs"
	"github.com/libtrack/borrowing-service/internal/handler"
	"github.com/libtrack/borrowing-service/internal/model"
	"github.com/libtrack/borrowing-service/pkg/auth"

	service_mocks "github.com/libtrack/borrowing-service/internal/handler/mocks"
)

type mockServices struct {
	catalog   *service_mocks.MockCatalogService
	borrowing *service_mocks.MockBorrowingService
	payment   *service_mocks.MockPaymentService
}

func newTestRouter(t *testing.T) (*echo.Echo, mockServices) {
	t.Helper()
	c := gomock.NewController(t)
	t.Cleanup(c.Finish)

	svc := mockServices{
		catalog:   service_mocks.NewMockCatalogService(c),
		borrowing: service_mocks.NewMockBorrowingService(c),
		payment:   service_mocks.NewMockPaymentService(c),
	}
	h := handler.New(svc.catalog, svc.borrowing, svc.payment, zap.NewExample().Named("test"))
	return h.NewRouter(), svc
}

func authHeaders(r *http.Request, user auth.User) {
	r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	r.Header.Set(auth.XUserIDHeader, strconv.Itoa(user.ID))
	r.Header.Set(auth.XUserNameHeader, user.Email)
	r.Header.Set(auth.XUserRoleHeader, user.Role)
}

func date(s string) model.Date {
	t, _ := time.Parse(time.DateOnly, s)
	return model.Date{Time: t}
}

var (
	member = auth.User{ID: 7, Email: "reader@example.com", Role: auth.RoleMember}
	staff  = auth.User{ID: 1, Email: "admin@example.com", Role: auth.RoleStaff}
)

func TestHandler_CreateBorrowing(t *testing.T) {
	t.Parallel()
	type mockBehavior func(m mockServices)

	borrowing := model.Borrowing{
		ID:                 1,
		BorrowDate:         date("2026-08-28"),
		ExpectedReturnDate: date("2026-09-11"),
		UserID:             member.ID,
		UserEmail:          member.Email,
		BookID:             3,
	}

	tests := []struct {
		name         string
		body         string
		mockBehavior mockBehavior
		expectedCode int
		expectedBody string
	}{
		{
			name: "ok",
			body: `{"bookId":3}`,
			mockBehavior: func(m mockServices) {
				m.borrowing.EXPECT().
					CreateBorrowing(gomock.Any(), member, model.CreateBorrowingRequest{BookID: 3}).
					Return(model.CreateBorrowingResponse{
						Borrowing:  borrowing,
						SessionURL: "https://checkout.stripe.com/pay/cs_1",
						MoneyToPay: 7,
					}, nil)
			},
			expectedCode: http.StatusCreated,
			expectedBody: `{"borrowing":{"id":1,"borrowDate":"2026-08-28","expectedReturnDate":"2026-09-11","actualReturnDate":null,"userId":7,"userEmail":"reader@example.com","bookId":3},"sessionUrl":"https://checkout.stripe.com/pay/cs_1","moneyToPay":7}`,
		},
		{
			name: "err. out of stock",
			body: `{"bookId":3}`,
			mockBehavior: func(m mockServices) {
				m.borrowing.EXPECT().
					CreateBorrowing(gomock.Any(), member, model.CreateBorrowingRequest{BookID: 3}).
					Return(model.CreateBorrowingResponse{}, errs.ErrOutOfStock)
			},
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"message":"book is out of stock"}`,
		},
		{
			name: "err. pending payment",
			body: `{"bookId":3}`,
			mockBehavior: func(m mockServices) {
				m.borrowing.EXPECT().
					CreateBorrowing(gomock.Any(), member, model.CreateBorrowingRequest{BookID: 3}).
					Return(model.CreateBorrowingResponse{}, errs.ErrPendingPayment)
			},
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"message":"pay your pending payments before borrowing a new book"}`,
		},
		{
			name: "err. book not found",
			body: `{"bookId":777}`,
			mockBehavior: func(m mockServices) {
				m.borrowing.EXPECT().
					CreateBorrowing(gomock.Any(), member, model.CreateBorrowingRequest{BookID: 777}).
					Return(model.CreateBorrowingResponse{}, errs.ErrNotFound)
			},
			expectedCode: http.StatusNotFound,
			expectedBody: `{"message":"not found"}`,
		},
		{
			name:         "err. bookId required",
			body:         `{}`,
			mockBehavior: func(m mockServices) {},
			expectedCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, m := newTestRouter(t)
			tt.mockBehavior(m)

			r := httptest.NewRequest(http.MethodPost, "/api/v1/borrowings", strings.NewReader(tt.body))
			authHeaders(r, member)
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)

			require.Equal(t, tt.expectedCode, w.Code)
			if tt.expectedBody != "" {
				require.Equal(t, tt.expectedBody, strings.Trim(w.Body.String(), "\n"))
			}
		})
	}
}

func TestHandler_ReturnBorrowing(t *testing.T) {
	t.Parallel()
	type mockBehavior func(m mockServices)

	returnDate := date("2026-09-12")
	returned := model.Borrowing{
		ID:                 1,
		BorrowDate:         date("2026-08-28"),
		ExpectedReturnDate: date("2026-09-11"),
		ActualReturnDate:   &returnDate,
		UserID:             member.ID,
		UserEmail:          member.Email,
		BookID:             3,
	}
	fine := model.Payment{
		ID:          9,
		Status:      model.PaymentStatusPending,
		Type:        model.PaymentTypeFine,
		BorrowingID: 1,
		SessionURL:  "https://checkout.stripe.com/pay/cs_9",
		SessionID:   "cs_9",
		MoneyToPay:  1,
	}

	tests := []struct {
		name         string
		body         string
		mockBehavior mockBehavior
		expectedCode int
		expectedBody string
	}{
		{
			name: "ok with fine",
			body: `{"actualReturnDate":"2026-09-12"}`,
			mockBehavior: func(m mockServices) {
				m.borrowing.EXPECT().
					ReturnBorrowing(gomock.Any(), member, 1, model.ReturnBorrowingRequest{ActualReturnDate: returnDate}).
					Return(model.ReturnBorrowingResponse{Borrowing: returned, Fine: &fine}, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"borrowing":{"id":1,"borrowDate":"2026-08-28","expectedReturnDate":"2026-09-11","actualReturnDate":"2026-09-12","userId":7,"userEmail":"reader@example.com","bookId":3},"fine":{"id":9,"status":"PENDING","type":"FINE","borrowingId":1,"sessionUrl":"https://checkout.stripe.com/pay/cs_9","sessionId":"cs_9","moneyToPay":1}}`,
		},
		{
			name: "err. already returned",
			body: `{"actualReturnDate":"2026-09-12"}`,
			mockBehavior: func(m mockServices) {
				m.borrowing.EXPECT().
					ReturnBorrowing(gomock.Any(), member, 1, gomock.Any()).
					Return(model.ReturnBorrowingResponse{}, errs.ErrAlreadyReturned)
			},
			expectedCode: http.StatusConflict,
			expectedBody: `{"message":"borrowing is already returned"}`,
		},
		{
			name: "err. return date in the past",
			body: `{"actualReturnDate":"2020-01-01"}`,
			mockBehavior: func(m mockServices) {
				m.borrowing.EXPECT().
					ReturnBorrowing(gomock.Any(), member, 1, gomock.Any()).
					Return(model.ReturnBorrowingResponse{}, errs.ErrInvalidReturnDate)
			},
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"message":"actual return date must not be in the past"}`,
		},
		{
			name: "err. not found",
			body: `{"actualReturnDate":"2026-09-12"}`,
			mockBehavior: func(m mockServices) {
				m.borrowing.EXPECT().
					ReturnBorrowing(gomock.Any(), member, 1, gomock.Any()).
					Return(model.ReturnBorrowingResponse{}, errs.ErrNotFound)
			},
			expectedCode: http.StatusNotFound,
			expectedBody: `{"message":"not found"}`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, m := newTestRouter(t)
			tt.mockBehavior(m)

			r := httptest.NewRequest(http.MethodPut, "/api/v1/borrowings/1/return_book", strings.NewReader(tt.body))
			authHeaders(r, member)
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)

			require.Equal(t, tt.expectedCode, w.Code)
			if tt.expectedBody != "" {
				require.Equal(t, tt.expectedBody, strings.Trim(w.Body.String(), "\n"))
			}
		})
	}
}

func TestHandler_GetBorrowings(t *testing.T) {
	t.Parallel()
	type mockBehavior func(m mockServices)

	userID, isActive := 2, true

	tests := []struct {
		name         string
		query        string
		user         auth.User
		mockBehavior mockBehavior
		expectedCode int
		expectedBody string
	}{
		{
			name:  "filters forwarded",
			query: "?user_id=2&is_active=true",
			user:  staff,
			mockBehavior: func(m mockServices) {
				m.borrowing.EXPECT().
					ListBorrowings(gomock.Any(), staff, model.BorrowingFilter{UserID: &userID, IsActive: &isActive}).
					Return([]model.Borrowing{}, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: `[]`,
		},
		{
			name:         "err. bad is_active",
			query:        "?is_active=maybe",
			user:         staff,
			mockBehavior: func(m mockServices) {},
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"message":"is_active must be a boolean"}`,
		},
		{
			name:         "err. bad user_id",
			query:        "?user_id=abc",
			user:         staff,
			mockBehavior: func(m mockServices) {},
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"message":"user_id must be an integer"}`,
		},
		{
			name:  "member list",
			query: "",
			user:  member,
			mockBehavior: func(m mockServices) {
				m.borrowing.EXPECT().
					ListBorrowings(gomock.Any(), member, model.BorrowingFilter{}).
					Return([]model.Borrowing{
						{
							ID:                 1,
							BorrowDate:         date("2026-08-28"),
							ExpectedReturnDate: date("2026-09-11"),
							UserID:             member.ID,
							UserEmail:          member.Email,
							BookID:             3,
						},
					}, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: `[{"id":1,"borrowDate":"2026-08-28","expectedReturnDate":"2026-09-11","actualReturnDate":null,"userId":7,"userEmail":"reader@example.com","bookId":3}]`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, m := newTestRouter(t)
			tt.mockBehavior(m)

			r := httptest.NewRequest(http.MethodGet, "/api/v1/borrowings"+tt.query, http.NoBody)
			authHeaders(r, tt.user)
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)

			require.Equal(t, tt.expectedCode, w.Code)
			require.Equal(t, tt.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_CreateBook(t *testing.T) {
	t.Parallel()
	type mockBehavior func(m mockServices)

	tests := []struct {
		name         string
		body         string
		user         auth.User
		mockBehavior mockBehavior
		expectedCode int
		expectedBody string
	}{
		{
			name: "ok",
			body: `{"title":"Dune","author":"Frank Herbert","cover":"HARD","inventory":3,"dailyFee":0.5}`,
			user: staff,
			mockBehavior: func(m mockServices) {
				m.catalog.EXPECT().
					CreateBook(gomock.Any(), model.CreateBookRequest{
						Title: "Dune", Author: "Frank Herbert", Cover: model.CoverHard, Inventory: 3, DailyFee: 0.5,
					}).
					Return(model.Book{
						ID: 1, Title: "Dune", Author: "Frank Herbert", Cover: model.CoverHard, Inventory: 3, DailyFee: 0.5,
					}, nil)
			},
			expectedCode: http.StatusCreated,
			expectedBody: `{"id":1,"title":"Dune","author":"Frank Herbert","cover":"HARD","inventory":3,"dailyFee":0.5}`,
		},
		{
			name: "err. duplicate title",
			body: `{"title":"Dune","author":"Frank Herbert","cover":"HARD","inventory":3,"dailyFee":0.5}`,
			user: staff,
			mockBehavior: func(m mockServices) {
				m.catalog.EXPECT().
					CreateBook(gomock.Any(), gomock.Any()).
					Return(model.Book{}, errs.ErrDuplicateTitle)
			},
			expectedCode: http.StatusConflict,
			expectedBody: `{"message":"book with this title already exists"}`,
		},
		{
			name:         "err. member forbidden",
			body:         `{"title":"Dune","author":"Frank Herbert","cover":"HARD","inventory":3,"dailyFee":0.5}`,
			user:         member,
			mockBehavior: func(m mockServices) {},
			expectedCode: http.StatusForbidden,
			expectedBody: `{"message":"permission denied"}`,
		},
		{
			name:         "err. bad cover",
			body:         `{"title":"Dune","author":"Frank Herbert","cover":"LEATHER","inventory":3,"dailyFee":0.5}`,
			user:         staff,
			mockBehavior: func(m mockServices) {},
			expectedCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, m := newTestRouter(t)
			tt.mockBehavior(m)

			r := httptest.NewRequest(http.MethodPost, "/api/v1/books", strings.NewReader(tt.body))
			authHeaders(r, tt.user)
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)

			require.Equal(t, tt.expectedCode, w.Code)
			if tt.expectedBody != "" {
				require.Equal(t, tt.expectedBody, strings.Trim(w.Body.String(), "\n"))
			}
		})
	}
}

func TestHandler_GetBooks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		mockBehavior func(m mockServices)
		expectedCode int
		expectedBody string
	}{
		{
			name: "ok",
			mockBehavior: func(m mockServices) {
				m.catalog.EXPECT().
					ListBooks(gomock.Any()).
					Return([]model.Book{
						{ID: 1, Title: "Dune", Author: "Frank Herbert", Cover: model.CoverHard, Inventory: 3, DailyFee: 0.5},
					}, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: `[{"id":1,"title":"Dune","author":"Frank Herbert","cover":"HARD","inventory":3,"dailyFee":0.5}]`,
		},
		{
			name: "err. internal",
			mockBehavior: func(m mockServices) {
				m.catalog.EXPECT().
					ListBooks(gomock.Any()).
					Return(nil, errors.New("db internal"))
			},
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"message":"db internal"}`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, m := newTestRouter(t)
			tt.mockBehavior(m)

			r := httptest.NewRequest(http.MethodGet, "/api/v1/books", http.NoBody)
			authHeaders(r, member)
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)

			require.Equal(t, tt.expectedCode, w.Code)
			require.Equal(t, tt.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_SuccessPayment(t *testing.T) {
	t.Parallel()

	paid := model.Payment{
		ID:          5,
		Status:      model.PaymentStatusPaid,
		Type:        model.PaymentTypePayment,
		BorrowingID: 1,
		SessionURL:  "https://checkout.stripe.com/pay/cs_1",
		SessionID:   "cs_1",
		MoneyToPay:  7,
	}

	tests := []struct {
		name         string
		query        string
		mockBehavior func(m mockServices)
		expectedCode int
		expectedBody string
	}{
		{
			name:  "ok",
			query: "?session_id=cs_1",
			mockBehavior: func(m mockServices) {
				m.payment.EXPECT().
					SuccessPayment(gomock.Any(), "cs_1").
					Return(model.SuccessPaymentResponse{Message: "payment successful, thank you", Payment: paid}, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"message":"payment successful, thank you","payment":{"id":5,"status":"PAID","type":"PAYMENT","borrowingId":1,"sessionUrl":"https://checkout.stripe.com/pay/cs_1","sessionId":"cs_1","moneyToPay":7}}`,
		},
		{
			name:         "err. empty session_id",
			query:        "",
			mockBehavior: func(m mockServices) {},
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"message":"session_id is empty"}`,
		},
		{
			name:  "err. unknown session",
			query: "?session_id=cs_unknown",
			mockBehavior: func(m mockServices) {
				m.payment.EXPECT().
					SuccessPayment(gomock.Any(), "cs_unknown").
					Return(model.SuccessPaymentResponse{}, errs.ErrNotFound)
			},
			expectedCode: http.StatusNotFound,
			expectedBody: `{"message":"not found"}`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, m := newTestRouter(t)
			tt.mockBehavior(m)

			r := httptest.NewRequest(http.MethodGet, "/api/v1/payments/success"+tt.query, http.NoBody)
			authHeaders(r, member)
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)

			require.Equal(t, tt.expectedCode, w.Code)
			require.Equal(t, tt.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_CancelPayment(t *testing.T) {
	t.Parallel()
	e, m := newTestRouter(t)
	m.payment.EXPECT().
		CancelPayment().
		Return("payment can be paid later, the session is active for 24h")

	r := httptest.NewRequest(http.MethodGet, "/api/v1/payments/cancel", http.NoBody)
	authHeaders(r, member)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, `{"message":"payment can be paid later, the session is active for 24h"}`, strings.Trim(w.Body.String(), "\n"))
}

func TestHandler_Unauthenticated(t *testing.T) {
	t.Parallel()
	e, _ := newTestRouter(t)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/books", http.NoBody)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/libtrack/borrowing-service/internal/errs"
	"github.com/libtrack/borrowing-service/internal/model"
	"github.com/libtrack/borrowing-service/pkg/auth"
	md "github.com/libtrack/borrowing-service/pkg/middleware"
	"github.com/libtrack/borrowing-service/pkg/validate"
)

type Handler struct {
	catalogSvc   CatalogService
	borrowingSvc BorrowingService
	paymentSvc   PaymentService
	log          *zap.Logger
}

func New(catalog CatalogService, borrowing BorrowingService, payment PaymentService, log *zap.Logger) *Handler {
	return &Handler{
		catalogSvc:   catalog,
		borrowingSvc: borrowing,
		paymentSvc:   payment,
		log:          log,
	}
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
	}))

	base := e.Group("", md.NewRateLimiter(baseRPS))
	base.GET("/manage/health", h.Health)

	e.Validator = validate.NewCustomValidator()
	api := e.Group("/api/v1",
		middleware.RequestLoggerWithConfig(md.RequestLoggerConfig()),
		middleware.RequestID(),
		md.NewRateLimiter(apiRPS),
	)

	api = api.Group("", md.AuthContext)

	api.GET("/books", h.GetBooks)
	api.GET("/books/:id", h.GetBook)
	api.POST("/books", h.CreateBook, staffOnly)
	api.PUT("/books/:id", h.UpdateBook, staffOnly)
	api.DELETE("/books/:id", h.DeleteBook, staffOnly)

	api.GET("/borrowings", h.GetBorrowings)
	api.GET("/borrowings/:id", h.GetBorrowing)
	api.POST("/borrowings", h.CreateBorrowing)
	api.PUT("/borrowings/:id/return_book", h.ReturnBorrowing)

	api.GET("/payments", h.GetPayments)
	api.GET("/payments/success", h.SuccessPayment)
	api.GET("/payments/cancel", h.CancelPayment)
	api.GET("/payments/:id", h.GetPayment)

	return e
}

func staffOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := auth.GetUser(c.Request().Context())
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		if !user.IsStaff() {
			return echo.NewHTTPError(http.StatusForbidden, errs.ErrPermissionDenied.Error())
		}
		return next(c)
	}
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (h *Handler) GetBooks(c echo.Context) error {
	books, err := h.catalogSvc.ListBooks(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, books)
}

func (h *Handler) GetBook(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	book, err := h.catalogSvc.GetBook(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, book)
}

func (h *Handler) CreateBook(c echo.Context) error {
	var req model.CreateBookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	book, err := h.catalogSvc.CreateBook(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, errs.ErrDuplicateTitle) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, book)
}

func (h *Handler) UpdateBook(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var req model.UpdateBookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	book, err := h.catalogSvc.UpdateBook(c.Request().Context(), id, req)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, errs.ErrDuplicateTitle):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, book)
}

func (h *Handler) DeleteBook(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.catalogSvc.DeleteBook(c.Request().Context(), id); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetBorrowings(c echo.Context) error {
	ctx := c.Request().Context()
	user, err := auth.GetUser(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}

	var f model.BorrowingFilter
	if raw := c.QueryParam("is_active"); raw != "" {
		isActive, err := strconv.ParseBool(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "is_active must be a boolean")
		}
		f.IsActive = &isActive
	}
	if raw := c.QueryParam("user_id"); raw != "" {
		userID, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "user_id must be an integer")
		}
		f.UserID = &userID
	}

	borrowings, err := h.borrowingSvc.ListBorrowings(ctx, user, f)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, borrowings)
}

func (h *Handler) GetBorrowing(c echo.Context) error {
	ctx := c.Request().Context()
	user, err := auth.GetUser(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	id, err := pathID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	borrowing, err := h.borrowingSvc.GetBorrowing(ctx, user, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, borrowing)
}

func (h *Handler) CreateBorrowing(c echo.Context) error {
	ctx := c.Request().Context()
	user, err := auth.GetUser(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	var req model.CreateBorrowingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	resp, err := h.borrowingSvc.CreateBorrowing(ctx, user, req)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrOutOfStock), errors.Is(err, errs.ErrPendingPayment):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, errs.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *Handler) ReturnBorrowing(c echo.Context) error {
	ctx := c.Request().Context()
	user, err := auth.GetUser(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	id, err := pathID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var req model.ReturnBorrowingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	resp, err := h.borrowingSvc.ReturnBorrowing(ctx, user, id, req)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrInvalidReturnDate):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, errs.ErrAlreadyReturned):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, errs.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetPayments(c echo.Context) error {
	ctx := c.Request().Context()
	user, err := auth.GetUser(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	payments, err := h.paymentSvc.ListPayments(ctx, user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, payments)
}

func (h *Handler) GetPayment(c echo.Context) error {
	ctx := c.Request().Context()
	user, err := auth.GetUser(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	id, err := pathID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	payment, err := h.paymentSvc.GetPayment(ctx, user, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, payment)
}

func (h *Handler) SuccessPayment(c echo.Context) error {
	sessionID := c.QueryParam("session_id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id is empty")
	}
	resp, err := h.paymentSvc.SuccessPayment(c.Request().Context(), sessionID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) CancelPayment(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"message": h.paymentSvc.CancelPayment(),
	})
}

func pathID(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

package middleware

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"github.com/libtrack/borrowing-service/pkg/auth"
	"github.com/libtrack/borrowing-service/pkg/logger"
)

// AuthContext trusts the X-User-* headers set by the gateway and puts
// the caller identity into the request context.
func AuthContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		rawID := req.Header.Get(auth.XUserIDHeader)
		userID, err := strconv.Atoi(rawID)
		if err != nil || userID <= 0 {
			return echo.NewHTTPError(http.StatusUnauthorized, "user-id is empty")
		}
		email := req.Header.Get(auth.XUserNameHeader)
		if email == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "user-name is empty")
		}
		role := req.Header.Get(auth.XUserRoleHeader)
		if role == "" {
			role = auth.RoleMember
		}
		ctx := auth.SetAuthContext(req.Context(), auth.User{
			ID:    userID,
			Email: email,
			Role:  role,
		})
		c.SetRequest(req.WithContext(ctx))
		return next(c)
	}
}

func NewRateLimiter(rps rate.Limit) echo.MiddlewareFunc {
	return middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rps))
}

func RequestLoggerConfig() middleware.RequestLoggerConfig {
	cfg := logger.Log{LogLevel: zapcore.DebugLevel, Sink: ""}
	log := logger.NewLogger(cfg, "echo")
	c := middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		HandleError:  true,
		LogError:     true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := zapcore.InfoLevel
			if v.Error != nil {
				level = zapcore.ErrorLevel
			}
			log.Log(level, "request",
				zap.String("URI", v.URI),
				zap.String("Method", v.Method),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.Error(v.Error),
				zap.String("request_id", v.RequestID),
			)
			return nil
		},
	}
	return c
}

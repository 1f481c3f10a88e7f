package auth

import (
	"context"

	"github.com/pkg/errors"
)

// Identity is established upstream (API gateway does the actual
// authentication) and forwarded to the service via trusted headers.
const (
	XUserIDHeader   = "X-User-Id"
	XUserNameHeader = "X-User-Name"
	XUserRoleHeader = "X-User-Role"

	RoleStaff  = "staff"
	RoleMember = "member"
)

type ctxKey int

const (
	userKey ctxKey = iota + 1
)

type User struct {
	ID    int
	Email string
	Role  string
}

func (u User) IsStaff() bool {
	return u.Role == RoleStaff
}

var ErrNoAuth = errors.New("no auth context")

func SetAuthContext(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func GetUser(ctx context.Context) (User, error) {
	user, ok := ctx.Value(userKey).(User)
	if !ok {
		return User{}, ErrNoAuth
	}
	return user, nil
}

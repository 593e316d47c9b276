package middleware

// identity.go holds the helpers shared by the middleware files for
// reading the principal that JWTAuth stored in the Echo context.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// subjectID converts a decoded "sub" claim into a user id.  JSON numbers
// decode as float64; string subjects are accepted as well.
func subjectID(v interface{}) (uint64, bool) {
	switch t := v.(type) {
	case float64:
		if t <= 0 || t != float64(uint64(t)) {
			return 0, false
		}
		return uint64(t), true
	case string:
		n, err := strconv.ParseUint(t, 10, 64)
		if err != nil || n == 0 {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// currentUserID returns the authenticated user id as a string, or "anon"
// on public routes.
func currentUserID(c echo.Context) string {
	if id, ok := c.Get("user_id").(uint64); ok && id != 0 {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}

package handler

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"
)

// getUserID extracts the authenticated user's id from the context, where
// the JWT middleware stored the token's subject claim.  Numeric JSON
// claims arrive as float64.
func getUserID(c echo.Context) (uint64, error) {
	switch v := c.Get("user_id").(type) {
	case float64:
		return uint64(v), nil
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, errors.New("invalid user id claim")
		}
		return n, nil
	default:
		return 0, errors.New("missing user id claim")
	}
}

package handler

import (
	"errors"
	"fmt"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/session-auth-api/internal/apperr"
)

// bindValid decodes the request body into req and runs its validation rules.
// Failures are BadRequest with one detail per field.
func bindValid(c echo.Context, req validation.Validatable) error {
	if err := c.Bind(req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	err := req.Validate()
	if err == nil {
		return nil
	}
	var fields validation.Errors
	if !errors.As(err, &fields) {
		return apperr.BadRequest(err.Error())
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	details := make([]string, 0, len(names))
	for _, name := range names {
		details = append(details, fmt.Sprintf("%s: %v", name, fields[name]))
	}
	return apperr.BadRequest("validation failed").WithDetails(details...)
}

// maxBytes limits the encoded length of a string, which Length does not:
// it counts runes.
func maxBytes(n int) validation.RuleFunc {
	return func(value interface{}) error {
		if s, ok := value.(string); ok && len(s) > n {
			return fmt.Errorf("must be at most %d bytes long", n)
		}
		return nil
	}
}

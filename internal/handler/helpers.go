package handler

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

func parseIDParam(c *fiber.Ctx, name string) (uint, error) {
	value, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}

// validationDetails flattens a validator error into one line per failed
// field, without leaking struct internals to the caller.
func validationDetails(err error) []string {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return []string{err.Error()}
	}

	details := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		details = append(details, fmt.Sprintf("%s failed on the %s rule", fe.Field(), fe.Tag()))
	}
	return details
}

// authenticatedUserID reads the user identity bound by the JWT middleware.
func authenticatedUserID(c *fiber.Ctx) uint {
	if value := c.Locals("user_id"); value != nil {
		if id, ok := value.(uint); ok {
			return id
		}
	}
	return 0
}

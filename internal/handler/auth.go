package handler

import (
	"crypto/subtle"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/keyauth"
)

var errUnauthorized = errors.New("unauthorized")

// BearerAuth accepts only requests carrying "Authorization: Bearer <secret>".
// An empty secret rejects everything.
func BearerAuth(secret string) fiber.Handler {
	expected := []byte(secret)

	return keyauth.New(keyauth.Config{
		KeyLookup:  "header:" + fiber.HeaderAuthorization,
		AuthScheme: "Bearer",
		Validator: func(_ *fiber.Ctx, key string) (bool, error) {
			if len(expected) > 0 && subtle.ConstantTimeCompare([]byte(key), expected) == 1 {
				return true, nil
			}
			return false, errUnauthorized
		},
		ErrorHandler: func(_ *fiber.Ctx, _ error) error {
			return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized")
		},
	})
}

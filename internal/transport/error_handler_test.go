package transport

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestErrorHandlerRendersJSONAndLogsBySeverity(t *testing.T) {
	t.Parallel()

	core, recorded := observer.New(zapcore.DebugLevel)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.New(core))})
	app.Get("/missing", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "campaign not found")
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	testCases := []struct {
		path      string
		wantCode  int
		wantBody  string
		wantLevel zapcore.Level
	}{
		{path: "/missing", wantCode: fiber.StatusNotFound, wantBody: `{"error":"campaign not found"}`, wantLevel: zapcore.WarnLevel},
		{path: "/boom", wantCode: fiber.StatusInternalServerError, wantBody: `{"error":"boom"}`, wantLevel: zapcore.ErrorLevel},
	}

	for i, tc := range testCases {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, tc.path, nil))
		if err != nil {
			t.Fatalf("app.Test() error = %v", err)
		}
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode != tc.wantCode {
			t.Fatalf("%s status = %d, want %d", tc.path, resp.StatusCode, tc.wantCode)
		}
		if string(body) != tc.wantBody {
			t.Fatalf("%s body = %s, want %s", tc.path, body, tc.wantBody)
		}
		if got := recorded.All()[i].Level; got != tc.wantLevel {
			t.Fatalf("%s log level = %s, want %s", tc.path, got, tc.wantLevel)
		}
	}
}

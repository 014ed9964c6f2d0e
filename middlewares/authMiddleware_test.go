package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Utsav173/expense-tracker-sub003/utils"
	"github.com/gin-gonic/gin"
)

func runRequireAdmin(t *testing.T, setup func(r *http.Request) *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(http.MethodPost, "/internal/ops/recurring/run", nil)
	c.Request = setup(req)
	RequireAdmin()(c)
	return w
}

func TestRequireAdmin(t *testing.T) {
	t.Run("anonymous request is forbidden", func(t *testing.T) {
		w := runRequireAdmin(t, func(r *http.Request) *http.Request { return r })
		if w.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", w.Code)
		}
	})

	t.Run("non-admin user is forbidden", func(t *testing.T) {
		w := runRequireAdmin(t, func(r *http.Request) *http.Request {
			return r.WithContext(utils.SetIsAdminInContext(r.Context(), false))
		})
		if w.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", w.Code)
		}
	})

	t.Run("admin passes through", func(t *testing.T) {
		w := runRequireAdmin(t, func(r *http.Request) *http.Request {
			return r.WithContext(utils.SetIsAdminInContext(r.Context(), true))
		})
		if w.Code == http.StatusForbidden {
			t.Fatalf("status = %d, want pass-through", w.Code)
		}
	})
}

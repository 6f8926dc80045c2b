package middlewares

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hookrelay/hookrelay/pkg/http/response"
	"github.com/stretchr/testify/assert"
)

var errKnown = errors.New("known")

func TestRecovery(t *testing.T) {
	recovery := NewRecovery(func(err error, w http.ResponseWriter) bool {
		if errors.Is(err, errKnown) {
			response.JSON(w, 400, map[string]string{"message": err.Error()})
			return true
		}
		return false
	})

	t.Run("unknown panic yields 500", func(t *testing.T) {
		h := recovery.Handle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, 500, rec.Code)
		assert.JSONEq(t, `{"message":"internal error"}`, rec.Body.String())
	})

	t.Run("customized error", func(t *testing.T) {
		h := recovery.Handle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic(errKnown)
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, 400, rec.Code)
		assert.JSONEq(t, `{"message":"known"}`, rec.Body.String())
	})

	t.Run("no panic", func(t *testing.T) {
		h := recovery.Handle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			response.Text(w, 200, "ok")
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, 200, rec.Code)
		assert.Equal(t, "ok", rec.Body.String())
	})
}

package handlers

import (
	"database/sql/driver"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pratamalabs/domaindesk/internal/logger"
	"github.com/pratamalabs/domaindesk/internal/repository"
)

var domainColumns = []string{
	"id", "registrar_id", "name", "owner", "registered_on",
	"is_expired", "is_locked", "auto_renew", "whois_guard", "is_premium", "uses_own_dns",
	"expiry_date", "name_server1", "name_server2", "blocked",
	"description", "category", "is_used", "is_defense", "is_link_alt", "group_id",
	"active", "created_at", "updated_at",
}

func domainRow(id int64, name string) []driver.Value {
	now := time.Now()
	return []driver.Value{
		id, nil, name, nil, nil,
		false, false, false, nil, nil, nil,
		now.AddDate(1, 0, 0), nil, nil, false,
		nil, nil, false, false, false, nil,
		true, now, now,
	}
}

func setupDomainRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	handler := NewDomainHandler(
		repository.NewDomainRepository(db, logger.NewNopLogger()),
		logger.NewNopLogger(),
	)

	router := gin.New()
	router.GET("/domains", handler.List)
	router.GET("/domains/used-names", handler.UsedNames)
	router.POST("/domains/mark-used", handler.MarkUsed)
	router.GET("/domains/:id", handler.Get)
	router.PUT("/domains/:id", handler.Update)
	router.DELETE("/domains/:id", handler.Delete)
	return router, mock
}

func TestDomainHandler_List(t *testing.T) {
	router, mock := setupDomainRouter(t)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("SELECT (.+) FROM domains").
		WillReturnRows(sqlmock.NewRows(domainColumns).
			AddRow(domainRow(1, "a.com")...).
			AddRow(domainRow(2, "b.com")...))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/domains?page=1&limit=10", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":2`)
	assert.Contains(t, w.Body.String(), "a.com")
}

func TestDomainHandler_Get(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		router, mock := setupDomainRouter(t)

		mock.ExpectQuery("SELECT (.+) FROM domains WHERE id").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(domainColumns).AddRow(domainRow(1, "a.com")...))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/domains/1", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "a.com")
	})

	t.Run("not found", func(t *testing.T) {
		router, mock := setupDomainRouter(t)

		mock.ExpectQuery("SELECT (.+) FROM domains WHERE id").
			WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows(domainColumns))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/domains/9", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		router, _ := setupDomainRouter(t)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/domains/abc", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDomainHandler_Update(t *testing.T) {
	t.Run("updates user fields", func(t *testing.T) {
		router, mock := setupDomainRouter(t)

		mock.ExpectQuery("SELECT (.+) FROM domains WHERE id").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(domainColumns).AddRow(domainRow(1, "a.com")...))
		mock.ExpectExec("UPDATE domains").
			WillReturnResult(sqlmock.NewResult(0, 1))

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/domains/1",
			strings.NewReader(`{"description":"landing page","category":"LP","is_used":true}`))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "landing page")
		assert.Contains(t, w.Body.String(), `"is_used":true`)
	})

	t.Run("rejects unknown category", func(t *testing.T) {
		router, _ := setupDomainRouter(t)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/domains/1",
			strings.NewReader(`{"category":"SPORTS"}`))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid category")
	})
}

func TestDomainHandler_Delete(t *testing.T) {
	router, mock := setupDomainRouter(t)

	mock.ExpectExec("DELETE FROM domains").
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/domains/3", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDomainHandler_UsedNames(t *testing.T) {
	router, mock := setupDomainRouter(t)

	mock.ExpectQuery("SELECT name FROM domains WHERE is_used").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("a.com").AddRow("b.com"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/domains/used-names", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":2`)
}

func TestDomainHandler_MarkUsed(t *testing.T) {
	t.Run("json body", func(t *testing.T) {
		router, mock := setupDomainRouter(t)

		mock.ExpectQuery("SELECT COUNT").
			WithArgs(pq.Array([]string{"a.com", "b.com"})).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
		mock.ExpectExec("UPDATE domains SET is_used = TRUE").
			WillReturnResult(sqlmock.NewResult(0, 2))

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/domains/mark-used",
			strings.NewReader(`{"names":["a.com","b.com"]}`))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"matched":2`)
	})

	t.Run("plain text body", func(t *testing.T) {
		router, mock := setupDomainRouter(t)

		mock.ExpectQuery("SELECT COUNT").
			WithArgs(pq.Array([]string{"a.com", "b.com"})).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
		mock.ExpectExec("UPDATE domains SET is_used = TRUE").
			WillReturnResult(sqlmock.NewResult(0, 1))

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/domains/mark-used",
			strings.NewReader("a.com\n\nb.com\n"))
		req.Header.Set("Content-Type", "text/plain")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"updated":1`)
	})

	t.Run("empty list rejected", func(t *testing.T) {
		router, _ := setupDomainRouter(t)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/domains/mark-used",
			strings.NewReader(`{"names":[]}`))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

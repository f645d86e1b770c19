package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-pkgz/lgr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrey/invoice-pipeline/internal/pipeline"
)

func TestServer_Health_OK(t *testing.T) {
	s := NewServer(pipeline.New(nil, nil, nil, nil, pipeline.DefaultConfig(), nil), lgr.NoOp, Config{Host: "127.0.0.1", Port: 0}, nil)
	handler := s.SetupRoutes()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Health_ReportsCheckFailure(t *testing.T) {
	checkErr := assertionError("db unreachable")
	s := NewServer(pipeline.New(nil, nil, nil, nil, pipeline.DefaultConfig(), nil), lgr.NoOp, Config{}, func() error { return checkErr })
	handler := s.SetupRoutes()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_UnknownRoute_404(t *testing.T) {
	s := NewServer(pipeline.New(nil, nil, nil, nil, pipeline.DefaultConfig(), nil), lgr.NoOp, Config{}, nil)
	handler := s.SetupRoutes()

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

type assertionError string

func (e assertionError) Error() string { return string(e) }

package server_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartgenie/chartgenie/internal/config"
	"github.com/chartgenie/chartgenie/pkg/models"
	"github.com/chartgenie/chartgenie/pkg/server"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	dir := t.TempDir()
	cfg.DataDir = dir
	cfg.Storage.LocalPath = filepath.Join(dir, "uploads")
	cfg.Providers = nil
	return cfg
}

func TestNewWithConfig_MemoryAndLocal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := server.NewWithConfig(ctx, testConfig(t))
	require.NoError(t, err)
	srv.Start(ctx)
	defer func() { assert.NoError(t, srv.Close(context.Background())) }()

	assert.Equal(t, "local", srv.Blobs.Kind())
	assert.Nil(t, srv.Models)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewReasoner(t *testing.T) {
	cfg := testConfig(t)
	r, mr := server.NewReasoner(cfg)
	assert.Nil(t, r)
	assert.Nil(t, mr)

	cfg.Providers = []models.Provider{{Name: "groq", Kind: models.ProviderGroq, Model: "m", APIKey: "k"}}
	r, mr = server.NewReasoner(cfg)
	require.NotNil(t, r)
	assert.Equal(t, []string{"groq"}, mr.Providers())
}

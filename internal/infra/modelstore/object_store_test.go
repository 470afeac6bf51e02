package modelstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeEndpoint(t *testing.T) {
	require.Equal(t, "acct.r2.cloudflarestorage.com", sanitizeEndpoint("https://acct.r2.cloudflarestorage.com/bucket"))
	require.Equal(t, "localhost:9000", sanitizeEndpoint(" http://localhost:9000 "))
	require.Equal(t, "", sanitizeEndpoint(""))
}

func TestConfigEnabled(t *testing.T) {
	require.False(t, Config{}.Enabled())
	require.False(t, Config{Endpoint: "localhost:9000", Bucket: "models"}.Enabled())
	require.True(t, Config{Endpoint: "localhost:9000", Bucket: "models", Key: "severity.onnx"}.Enabled())
}

func TestEnsureLocalKeepsExistingFile(t *testing.T) {
	store, err := NewObjectStore(Config{Endpoint: "http://127.0.0.1:1", Bucket: "models", Key: "severity.onnx"}, nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "severity.onnx")
	require.NoError(t, os.WriteFile(path, []byte("onnx"), 0o600))

	require.NoError(t, store.EnsureLocal(context.Background(), path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "onnx", string(data))
}

//go:build integration

package minio

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/hupe1980/blobcache/blobstore"
	"github.com/hupe1980/blobcache/codec"
	"github.com/hupe1980/blobcache/testutil"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	minioUser     = "minioadmin"
	minioPassword = "minioadmin"
)

var (
	minioOnce sync.Once
	minioAddr string
	minioErr  error
)

// getMinio returns the shared MinIO address, starting the container if needed.
func getMinio(tb testing.TB) string {
	tb.Helper()

	if os.Getenv("SKIP_DOCKER_TESTS") == "1" {
		tb.Skip("SKIP_DOCKER_TESTS is set")
	}

	minioOnce.Do(func() {
		minioAddr, minioErr = startMinioContainer(context.Background())
	})
	if minioErr != nil {
		tb.Fatalf("start minio container: %v", minioErr)
	}
	return minioAddr
}

func startMinioContainer(ctx context.Context) (string, error) {
	req := testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		Cmd:          []string{"server", "/data"},
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     minioUser,
			"MINIO_ROOT_PASSWORD": minioPassword,
		},
		WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("start minio container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve minio host: %w", err)
	}
	port, err := container.MappedPort(ctx, "9000/tcp")
	if err != nil {
		return "", fmt.Errorf("resolve minio port: %w", err)
	}
	return fmt.Sprintf("%s:%s", host, port.Port()), nil
}

func TestEngine_Integration(t *testing.T) {
	addr := getMinio(t)

	n := 0
	testutil.RunEngineSuite(t, func(t *testing.T) blobstore.Engine {
		n++
		e, err := New(addr, minioUser, minioPassword, false, fmt.Sprintf("suite-%d", n), WithCodec(codec.Zstd{}))
		require.NoError(t, err)
		require.NoError(t, e.Probe(context.Background()))
		return e
	})
}

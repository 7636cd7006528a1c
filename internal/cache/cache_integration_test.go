//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestRedisIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	defer func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	}()

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	c, err := NewRedis(ctx, url, time.Second)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.SetScenarios(ctx, []byte(`[]`)))
	got, err := c.Scenarios(ctx)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))

	assert.Eventually(t, func() bool {
		_, err := c.Scenarios(ctx)
		return err == ErrMiss
	}, 5*time.Second, 100*time.Millisecond)
}

package persistence

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldops/msp-workflow/internal/config"
)

func TestNewRedisDisabled(t *testing.T) {
	r := NewRedis(config.RedisConfig{Enabled: false}, zap.NewNop())
	assert.False(t, r.Available())
	assert.Error(t, r.Ping(context.Background()))
	r.Close()
}

func TestNewRedisConnects(t *testing.T) {
	srv := miniredis.RunT(t)
	r := NewRedis(config.RedisConfig{Enabled: true, Addr: srv.Addr()}, zap.NewNop())
	t.Cleanup(r.Close)

	require.True(t, r.Available())
	assert.NoError(t, r.Ping(context.Background()))

	srv.Close()
	assert.Error(t, r.Ping(context.Background()))
}

func TestPostgresWithoutDSN(t *testing.T) {
	pg, err := NewPostgres(context.Background(), config.PostgresConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, pg.PoolHandle())
	assert.Error(t, pg.Ping(context.Background()))
	_, ok := pg.Stats()
	assert.False(t, ok)
	pg.Close()
}

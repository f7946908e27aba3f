package database

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisConfig_Addr(t *testing.T) {
	assert.Equal(t, "cache:6379", RedisConfig{Host: "cache", Port: 6379}.Addr())
	assert.Equal(t, "[::1]:6380", RedisConfig{Host: "::1", Port: 6380}.Addr())
}

func TestNewRedisClient_Connects(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("secret")

	host, port := splitAddr(t, mr)
	client, err := NewRedisClient(context.Background(), RedisConfig{Host: host, Port: port, Password: "secret", DB: 2}, discardLogger())
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	mr.Select(2)
	assert.True(t, mr.Exists("k"))
}

func TestNewRedisClient_GivesUpWhenCanceled(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port := splitAddr(t, mr)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewRedisClient(ctx, RedisConfig{Host: host, Port: port}, nil)
	require.Error(t, err)
}

func splitAddr(t *testing.T, mr *miniredis.Miniredis) (string, int) {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return mr.Host(), port
}

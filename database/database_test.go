package database

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0", zap.NewNop())
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNewRedisClient_Errors(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not a url", zap.NewNop())
	assert.ErrorContains(t, err, "invalid Redis URL")

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = NewRedisClient(context.Background(), "redis://"+addr, zap.NewNop())
	assert.ErrorContains(t, err, "failed to connect to Redis")
}

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Connect(ctx, "mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=200", "zapShiftDB", zap.NewNop())
	assert.Error(t, err)
}

func TestConnect_InvalidURI(t *testing.T) {
	_, err := Connect(context.Background(), "http://not-mongo", "zapShiftDB", zap.NewNop())
	assert.ErrorContains(t, err, "failed to connect to MongoDB")
}

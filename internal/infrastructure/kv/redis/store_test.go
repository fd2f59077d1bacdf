package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/rueidis/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/kirillkom/permit-query-assistant/internal/core/ports"
)

func TestGetHit(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)
	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "permitqa:k")).
		Return(mock.Result(mock.RedisString("\x01\x02")))

	got, err := NewStoreWithClient(c, 0).Get(context.Background(), "permitqa:k")
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, got)
}

func TestGetMissMapsToKeyNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)
	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "missing")).
		Return(mock.Result(mock.RedisNil()))

	_, err := NewStoreWithClient(c, 0).Get(context.Background(), "missing")
	require.ErrorIs(t, err, ports.ErrKeyNotFound)
}

func TestGetTransportError(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)
	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "k")).
		Return(mock.ErrorResult(errors.New("connection reset")))

	_, err := NewStoreWithClient(c, 0).Get(context.Background(), "k")
	require.Error(t, err)
	require.NotErrorIs(t, err, ports.ErrKeyNotFound)
}

func TestSetWithTTL(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)
	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "k", "v", "EX", "3600")).
		Return(mock.Result(mock.RedisString("OK")))

	require.NoError(t, NewStoreWithClient(c, time.Hour).Set(context.Background(), "k", []byte("v")))
}

func TestSetWithoutTTL(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)
	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "k", "v")).
		Return(mock.Result(mock.RedisString("OK")))

	require.NoError(t, NewStoreWithClient(c, 0).Set(context.Background(), "k", []byte("v")))
}

func TestPing(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)
	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	require.NoError(t, NewStoreWithClient(c, 0).Ping(context.Background()))
}

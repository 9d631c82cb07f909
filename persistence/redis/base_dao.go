package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	rd "github.com/go-redis/redis/v9"
	"github.com/mohitkumar/dagforge/logger"
	"github.com/mohitkumar/dagforge/persistence"
	"go.uber.org/zap"
)

type Config struct {
	Addrs     []string
	Namespace string
}

type baseDao struct {
	redisClient rd.UniversalClient
	namespace   string
}

func newBaseDao(conf Config) *baseDao {
	redisClient := rd.NewUniversalClient(&rd.UniversalOptions{
		Addrs: conf.Addrs,
	})
	return &baseDao{
		redisClient: redisClient,
		namespace:   conf.Namespace,
	}
}

func (bs *baseDao) getNamespaceKey(args ...string) string {
	return fmt.Sprintf("%s:%s", bs.namespace, strings.Join(args, ":"))
}

// storageError logs err and hides it behind a StorageLayerError. rd.Nil is
// turned into notFound when one is given.
func storageError(msg string, err error, notFound error, fields ...zap.Field) error {
	if notFound != nil && errors.Is(err, rd.Nil) {
		return notFound
	}
	logger.Error(msg, append(fields, zap.Error(err))...)
	return persistence.StorageLayerError{Message: err.Error()}
}

func (bs *baseDao) hashValues(ctx context.Context, key string, fields []string) ([]string, error) {
	if len(fields) == 0 {
		return []string{}, nil
	}
	vals, err := bs.redisClient.HMGet(ctx, key, fields...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (bs *baseDao) Ping(ctx context.Context) error {
	return bs.redisClient.Ping(ctx).Err()
}

func (bs *baseDao) Close() error {
	return bs.redisClient.Close()
}

package redis

import (
	"github.com/mohitkumar/dagforge/persistence"
)

var _ persistence.Storage = new(redisStorage)

type redisStorage struct {
	*baseDao
	*redisWorkflowDao
	*redisTaskDao
	*redisJobRunDao
}

func NewRedisStorage(conf Config) *redisStorage {
	base := newBaseDao(conf)
	return &redisStorage{
		baseDao:          base,
		redisWorkflowDao: newRedisWorkflowDao(base),
		redisTaskDao:     newRedisTaskDao(base),
		redisJobRunDao:   newRedisJobRunDao(base),
	}
}

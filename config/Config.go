package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mohitkumar/dagforge/compiler"
)

type StorageType string

const STORAGE_TYPE_REDIS StorageType = "redis"
const STORAGE_TYPE_INMEM StorageType = "memory"
const STORAGE_TYPE_POSTGRES StorageType = "postgres"

type Config struct {
	RedisConfig    RedisStorageConfig
	PostgresConfig PostgresStorageConfig
	EngineConfig   EngineConfig
	ArtifactConfig ArtifactConfig
	HttpPort       int         `validate:"min=0,max=65535"`
	StorageType    StorageType `validate:"oneof=redis memory postgres"`
	// UnpauseAttempts bounds how often a freshly deployed pipeline is looked
	// up before giving up.
	UnpauseAttempts  int           `validate:"min=1"`
	UnpauseDelay     time.Duration `validate:"min=0"`
	PipelineCacheTTL time.Duration
	LogLevel         string
	LogFormat        string `validate:"oneof=json console"`
}

type RedisStorageConfig struct {
	Addrs     []string
	Namespace string
}

type PostgresStorageConfig struct {
	URL string
}

type EngineConfig struct {
	URL         string `validate:"required,url"`
	Username    string
	Password    string
	Timeout     time.Duration
	SyncTimeout time.Duration
}

type ArtifactConfig struct {
	Dir    string `validate:"required"`
	Format compiler.Format
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	switch c.StorageType {
	case STORAGE_TYPE_REDIS:
		if len(c.RedisConfig.Addrs) == 0 || c.RedisConfig.Addrs[0] == "" {
			return fmt.Errorf("invalid configuration: redis storage needs at least one address")
		}
	case STORAGE_TYPE_POSTGRES:
		if c.PostgresConfig.URL == "" {
			return fmt.Errorf("invalid configuration: postgres storage needs a connection url")
		}
	}
	if _, err := compiler.NewRenderer(c.ArtifactConfig.Format); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

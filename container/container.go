package container

import (
	"context"
	"fmt"

	"github.com/mohitkumar/dagforge/admission"
	"github.com/mohitkumar/dagforge/cache"
	"github.com/mohitkumar/dagforge/compiler"
	"github.com/mohitkumar/dagforge/config"
	"github.com/mohitkumar/dagforge/engine"
	"github.com/mohitkumar/dagforge/persistence"
	"github.com/mohitkumar/dagforge/persistence/memory"
	pg "github.com/mohitkumar/dagforge/persistence/postgres"
	rd "github.com/mohitkumar/dagforge/persistence/redis"
	"github.com/mohitkumar/dagforge/statussync"
	"github.com/spf13/afero"
)

type DIContiner struct {
	initialized  bool
	fs           afero.Fs
	storage      persistence.Storage
	engineClient engine.Client
	compiler     *compiler.Compiler
	bridge       *admission.Bridge
	synchronizer *statussync.Synchronizer
	pauseCache   *cache.PauseStateCache
}

func (p *DIContiner) setInitialized() {
	p.initialized = true
}

// NewDiContainer builds a container writing artifacts to fs. A nil fs means
// the local disk.
func NewDiContainer(fs afero.Fs) *DIContiner {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &DIContiner{
		initialized: false,
		fs:          fs,
	}
}

// Init connects the storage and engine selected by conf. Clients that were
// already set are kept.
func (d *DIContiner) Init(ctx context.Context, conf config.Config) error {
	if d.storage == nil {
		switch conf.StorageType {
		case config.STORAGE_TYPE_REDIS:
			d.storage = rd.NewRedisStorage(rd.Config{
				Addrs:     conf.RedisConfig.Addrs,
				Namespace: conf.RedisConfig.Namespace,
			})
		case config.STORAGE_TYPE_POSTGRES:
			s, err := pg.NewPostgresStorage(ctx, pg.Config{URL: conf.PostgresConfig.URL})
			if err != nil {
				return err
			}
			d.storage = s
		case config.STORAGE_TYPE_INMEM:
			d.storage = memory.NewMemoryStorage()
		default:
			return fmt.Errorf("unknown storage type %q", conf.StorageType)
		}
	}

	if d.engineClient == nil {
		d.engineClient = engine.NewRestClient(engine.Config{
			BaseURL:  conf.EngineConfig.URL,
			Username: conf.EngineConfig.Username,
			Password: conf.EngineConfig.Password,
			Timeout:  conf.EngineConfig.Timeout,
		})
	}

	comp, err := compiler.NewCompiler(conf.ArtifactConfig.Format, d.fs, conf.ArtifactConfig.Dir)
	if err != nil {
		return err
	}
	d.compiler = comp
	d.bridge = admission.NewBridge(d.engineClient, admission.NewRetryPolicy(conf.UnpauseAttempts, conf.UnpauseDelay, nil))
	d.synchronizer = statussync.NewSynchronizer(d.engineClient, d.storage, conf.EngineConfig.SyncTimeout)
	d.pauseCache = cache.NewPauseStateCache(conf.PipelineCacheTTL)
	d.setInitialized()
	return nil
}

// WithStorage replaces the storage Init would otherwise open.
func (d *DIContiner) WithStorage(s persistence.Storage) *DIContiner {
	d.storage = s
	return d
}

// WithEngineClient replaces the REST engine client.
func (d *DIContiner) WithEngineClient(c engine.Client) *DIContiner {
	d.engineClient = c
	return d
}

func (d *DIContiner) GetStorage() persistence.Storage {
	if !d.initialized {
		panic("persistence not initalized")
	}
	return d.storage
}

func (d *DIContiner) GetEngineClient() engine.Client {
	if !d.initialized {
		panic("engine client not initalized")
	}
	return d.engineClient
}

func (d *DIContiner) GetCompiler() *compiler.Compiler {
	if !d.initialized {
		panic("compiler not initalized")
	}
	return d.compiler
}

func (d *DIContiner) GetBridge() *admission.Bridge {
	if !d.initialized {
		panic("admission bridge not initalized")
	}
	return d.bridge
}

func (d *DIContiner) GetSynchronizer() *statussync.Synchronizer {
	if !d.initialized {
		panic("synchronizer not initalized")
	}
	return d.synchronizer
}

func (d *DIContiner) GetPauseStateCache() *cache.PauseStateCache {
	if !d.initialized {
		panic("cache not initalized")
	}
	return d.pauseCache
}

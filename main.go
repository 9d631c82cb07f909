package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mohitkumar/dagforge/agent"
	"github.com/mohitkumar/dagforge/compiler"
	"github.com/mohitkumar/dagforge/config"
	"github.com/mohitkumar/dagforge/engine"
	"github.com/mohitkumar/dagforge/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opencensus.io/stats/view"
)

type cfg struct {
	config.Config
}
type cli struct {
	cfg cfg
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("config-file", "", "Path to config file.")
	cmd.Flags().Int("http-port", 8000, "http port for rest endpoints")
	cmd.Flags().String("storage-impl", "memory", "implementation of underline storage: memory, redis or postgres")
	cmd.Flags().String("redis-addr", "localhost:6379", "comma separated list of redis host:port")
	cmd.Flags().String("namespace", "dagforge", "namespace used in redis storage")
	cmd.Flags().String("postgres-url", "", "postgres connection url")
	cmd.Flags().String("engine-url", "http://localhost:8080/api/v1", "base url of the engine REST api")
	cmd.Flags().String("engine-username", "admin", "engine basic auth user")
	cmd.Flags().String("engine-password", "admin", "engine basic auth password")
	cmd.Flags().Duration("engine-timeout", engine.DEFAULT_TIMEOUT, "timeout of engine REST calls")
	cmd.Flags().Duration("sync-timeout", 10*time.Second, "timeout of a single run status refresh")
	cmd.Flags().String("artifact-dir", "./dags", "directory the engine scans for pipeline artifacts")
	cmd.Flags().String("artifact-format", string(compiler.FORMAT_PYTHON), "artifact format: python or yaml")
	cmd.Flags().Int("unpause-attempts", 5, "pipeline lookups before giving up on unpause")
	cmd.Flags().Duration("unpause-delay", 10*time.Second, "wait between unpause lookups")
	cmd.Flags().Duration("pipeline-cache-ttl", 30*time.Second, "how long engine pause state is cached, 0 disables")
	cmd.Flags().String("log-level", "info", "log level")
	cmd.Flags().String("log-format", "json", "log format: json or console")
	return viper.BindPFlags(cmd.Flags())
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	var err error

	configFile, err := cmd.Flags().GetString("config-file")
	if err != nil {
		return err
	}
	viper.SetConfigFile(configFile)
	viper.SetEnvPrefix("DAGFORGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err = viper.ReadInConfig(); err != nil {
		// it's ok if config file doesn't exist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configFile != "" {
			return err
		}
	}

	c.cfg.HttpPort = viper.GetInt("http-port")
	c.cfg.StorageType = config.StorageType(viper.GetString("storage-impl"))
	c.cfg.RedisConfig.Addrs = strings.Split(viper.GetString("redis-addr"), ",")
	c.cfg.RedisConfig.Namespace = viper.GetString("namespace")
	c.cfg.PostgresConfig.URL = viper.GetString("postgres-url")
	c.cfg.EngineConfig.URL = viper.GetString("engine-url")
	c.cfg.EngineConfig.Username = viper.GetString("engine-username")
	c.cfg.EngineConfig.Password = viper.GetString("engine-password")
	c.cfg.EngineConfig.Timeout = viper.GetDuration("engine-timeout")
	c.cfg.EngineConfig.SyncTimeout = viper.GetDuration("sync-timeout")
	c.cfg.ArtifactConfig.Dir = viper.GetString("artifact-dir")
	c.cfg.ArtifactConfig.Format = compiler.Format(viper.GetString("artifact-format"))
	c.cfg.UnpauseAttempts = viper.GetInt("unpause-attempts")
	c.cfg.UnpauseDelay = viper.GetDuration("unpause-delay")
	c.cfg.PipelineCacheTTL = viper.GetDuration("pipeline-cache-ttl")
	c.cfg.LogLevel = viper.GetString("log-level")
	c.cfg.LogFormat = viper.GetString("log-format")
	if err = c.cfg.Validate(); err != nil {
		return err
	}
	return logger.Init(c.cfg.LogLevel, c.cfg.LogFormat)
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	if err := view.Register(engine.Views...); err != nil {
		return err
	}
	agent, err := agent.New(c.cfg.Config)
	if err != nil {
		return err
	}
	if err = agent.Start(); err != nil {
		return err
	}
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
	case <-agent.Done():
	}
	return agent.Shutdown()
}

func main() {
	cli := &cli{}

	cmd := &cobra.Command{
		Use:     "dagforge",
		Short:   "Defines workflows, compiles them into pipeline artifacts and drives them on the engine",
		PreRunE: cli.setupConfig,
		RunE:    cli.run,
	}

	if err := setupFlags(cmd); err != nil {
		log.Fatal(err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

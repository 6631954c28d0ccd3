package cmd

import (
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/reytech/scprs-intel/internal/logger"
	"github.com/reytech/scprs-intel/internal/matching"
	"github.com/reytech/scprs-intel/internal/pricefeed"
	"github.com/reytech/scprs-intel/internal/pull"
	"github.com/reytech/scprs-intel/internal/recommend"
	"github.com/reytech/scprs-intel/internal/store"
)

const app = "scprs-intel"

type Config struct {
	Database string        `mapstructure:"database"`
	Company  string        `mapstructure:"company"`
	Portal   *PortalConfig `mapstructure:"portal"`
	Serve    *ServeConfig  `mapstructure:"serve"`
}

type PortalConfig struct {
	BaseURL      string `mapstructure:"base-url"`
	UserAgent    string `mapstructure:"user-agent"`
	TermDelayMS  int    `mapstructure:"term-delay-ms"`
	LookbackDays int    `mapstructure:"lookback-days"`
}

type ServeConfig struct {
	Listen string `mapstructure:"listen"`
	Cron   string `mapstructure:"cron"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "scprs-intel pulls state procurement awards and turns them into sales intelligence",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("database", "SCPRS_INTEL_DB"); err != nil {
		log.Fatalf("binding SCPRS_INTEL_DB environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is scprs-intel.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	viper.SetDefault("database", app+".db")
	viper.SetDefault("company", "reytech")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	err := viper.ReadInConfig()
	if err == nil {
		return
	}
	// Every key has a default, so a missing config file is fine. An
	// explicitly given one is not.
	if _, notFound := err.(viper.ConfigFileNotFoundError); notFound && cfgFile == "" {
		return
	}
	log.Fatal(err)
}

func getConfig() (*Config, error) {
	config := &Config{}
	err := viper.Unmarshal(config)
	if err != nil {
		return config, err
	}

	return config, nil
}

// pipeline bundles the wired components every command works from.
type pipeline struct {
	config      *Config
	logger      *zap.Logger
	store       *store.Store
	feed        *pricefeed.Feed
	runner      *pull.Runner
	matcher     *matching.Engine
	recommender *recommend.Engine
}

func newPipeline() *pipeline {
	zlog, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		zlog.Fatal("getting a config", zap.Error(err))
	}

	db, err := store.Open(config.Database)
	if err != nil {
		zlog.Fatal("opening the database",
			zap.Error(err),
			zap.String("database", config.Database),
		)
	}

	var baseURL, userAgent string
	if p := config.Portal; p != nil {
		baseURL = p.BaseURL
		userAgent = p.UserAgent
	}

	feed := pricefeed.New(db, zlog)
	runner := pull.New(db, feed, zlog, pull.NewScraperFactory(zlog, baseURL, userAgent))
	if p := config.Portal; p != nil {
		if p.TermDelayMS > 0 {
			runner.TermDelay = time.Duration(p.TermDelayMS) * time.Millisecond
		}
		if p.LookbackDays > 0 {
			runner.Lookback = time.Duration(p.LookbackDays) * 24 * time.Hour
		}
	}

	return &pipeline{
		config:      config,
		logger:      zlog,
		store:       db,
		feed:        feed,
		runner:      runner,
		matcher:     matching.New(db, feed, zlog, config.Company),
		recommender: recommend.New(db, zlog),
	}
}

func (p *pipeline) close() {
	if err := p.store.Close(); err != nil {
		p.logger.Warn("closing the database", zap.Error(err))
	}
}

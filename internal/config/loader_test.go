package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/flightrisk/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars(t)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 16)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 1)
				convey.So(cfg.ScorerTimeoutMS, convey.ShouldEqual, 10_000)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			clearConfigEnvVars(t)
			t.Setenv("FLIGHTRISK_ADDR", ":8080")
			t.Setenv("FLIGHTRISK_QUEUE_SIZE", "64")
			t.Setenv("FLIGHTRISK_WORKER_COUNT", "4")
			t.Setenv("FLIGHTRISK_LOOKBACK_DAYS", "30")
			t.Setenv("FLIGHTRISK_SCORER_TIMEOUT_MS", "2500")
			t.Setenv("FLIGHTRISK_MAX_CONCURRENCY", "8")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
				convey.So(cfg.LookbackDays, convey.ShouldEqual, 30)
				convey.So(cfg.ScorerTimeoutMS, convey.ShouldEqual, 2500)
				convey.So(cfg.MaxConcurrency, convey.ShouldEqual, 8)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			clearConfigEnvVars(t)
			t.Setenv("FLIGHTRISK_CONFIG", writeConfigFile(t, `
addr: ":9090"
source_kind: sqlite
source_path: /var/lib/flightrisk/hr.db
scorer_kind: http
scorer_url: http://scorer.local/score
refresh_interval_ms: 60000
`))

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should merge the file with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.SourceKind, convey.ShouldEqual, config.SourceSQLite)
				convey.So(cfg.SourcePath, convey.ShouldEqual, "/var/lib/flightrisk/hr.db")
				convey.So(cfg.ScorerKind, convey.ShouldEqual, config.ScorerHTTP)
				convey.So(cfg.RefreshIntervalMS, convey.ShouldEqual, 60000)
				convey.So(cfg.QueueSize, convey.ShouldEqual, 16)
			})
		})

		convey.Convey("When both a file and environment variables are set", func() {
			clearConfigEnvVars(t)
			t.Setenv("FLIGHTRISK_CONFIG", writeConfigFile(t, "addr: \":9090\"\nworker_count: 3\nqueue_size: 32\n"))
			t.Setenv("FLIGHTRISK_WORKER_COUNT", "6")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should win", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 6)
				convey.So(cfg.QueueSize, convey.ShouldEqual, 32)
			})
		})

		convey.Convey("When the YAML file is invalid", func() {
			clearConfigEnvVars(t)
			t.Setenv("FLIGHTRISK_CONFIG", writeConfigFile(t, `invalid: yaml: content: [`))

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the file does not exist", func() {
			clearConfigEnvVars(t)
			t.Setenv("FLIGHTRISK_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a numeric variable is not a number", func() {
			clearConfigEnvVars(t)
			t.Setenv("FLIGHTRISK_QUEUE_SIZE", "plenty")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When a loaded value fails validation", func() {
			clearConfigEnvVars(t)
			t.Setenv("FLIGHTRISK_MIN_EVALUATIONS", "1")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "min_evaluations")
			})
		})
	})
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flightrisk.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearConfigEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"FLIGHTRISK_CONFIG", "FLIGHTRISK_ADDR", "FLIGHTRISK_LOG_LEVEL",
		"FLIGHTRISK_QUEUE_SIZE", "FLIGHTRISK_WORKER_COUNT", "FLIGHTRISK_LOOKBACK_DAYS",
		"FLIGHTRISK_MIN_EVALUATIONS", "FLIGHTRISK_RECENT_SCORES", "FLIGHTRISK_SCORER_KIND",
		"FLIGHTRISK_SCORER_URL", "FLIGHTRISK_SCORER_TOKEN", "FLIGHTRISK_SCORER_TIMEOUT_MS",
		"FLIGHTRISK_MAX_CONCURRENCY", "FLIGHTRISK_SOURCE_KIND", "FLIGHTRISK_SOURCE_PATH",
		"FLIGHTRISK_REFRESH_INTERVAL_MS", "FLIGHTRISK_DEMO_PEOPLE",
	} {
		if _, ok := os.LookupEnv(key); ok {
			t.Setenv(key, "")
			_ = os.Unsetenv(key)
		}
	}
}

package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/ecoledger/internal/config"
	"github.com/okian/ecoledger/pkg/logger"
	"github.com/okian/ecoledger/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		ctx := context.Background()

		convey.Convey("When loading configuration from the environment", func() {
			t.Setenv("ECOLEDGER_DOTENV", filepath.Join(t.TempDir(), "missing.env"))
			t.Setenv("ECOLEDGER_ADDR", ":8080")
			t.Setenv("ECOLEDGER_MINT__QUEUE_SIZE", "64")
			t.Setenv("ECOLEDGER_MINT__WORKER_COUNT", "4")

			convey.Convey("Then overrides are applied", func() {
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Mint.QueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.Mint.WorkerCount, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When building the service from defaults", func() {
			cfg := config.New(ctx)
			cfg.JournalPath = filepath.Join(t.TempDir(), "journal.db")
			svc, err := newService(ctx, cfg, logger.Get())
			convey.So(err, convey.ShouldBeNil)
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			defer func() { _ = svc.Stop(ctx) }()

			convey.Convey("Then the journal is wired and minting is off", func() {
				stats := svc.GetStats()
				convey.So(stats["journal"], convey.ShouldEqual, true)
				convey.So(stats["minting"], convey.ShouldEqual, false)
			})

			convey.Convey("Then the router serves the API and the docs", func() {
				h := newHandler(ctx, svc)

				body := `{"user_id":"alice","action":"carbon_offset","action_value":2,"location":"Berlin"}`
				req := httptest.NewRequest(http.MethodPost, "/api/rewards", strings.NewReader(body))
				req.Header.Set("Content-Type", "application/json")
				w := httptest.NewRecorder()
				h.ServeHTTP(w, req)
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(w.Body.String(), convey.ShouldContainSubstring, `"ecoPoints":200`)

				for _, path := range []string{"/api/rewards/leaderboard", "/api/rewards/badges", "/openapi.yaml", "/api-docs", "/healthz", "/stats"} {
					w := httptest.NewRecorder()
					h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
					convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				}
			})
		})

		convey.Convey("When minting is configured", func() {
			mc := config.New(ctx).Mint
			mc.EngineURL = "http://engine.local:3005"
			mc.EcoPointsContract = "0x00000000000000000000000000000000000000a1"
			mc.BadgeContract = "0x00000000000000000000000000000000000000b2"

			convey.Convey("Then a minting option is produced", func() {
				opt, err := mintOptions(mc)
				convey.So(err, convey.ShouldBeNil)
				convey.So(opt, convey.ShouldNotBeNil)
			})

			convey.Convey("Then a bad contract address is rejected", func() {
				mc.BadgeContract = "not-an-address"
				_, err := mintOptions(mc)
				convey.So(err, convey.ShouldNotBeNil)
			})

			convey.Convey("Then a bad engine url is rejected", func() {
				mc.EngineURL = "engine"
				_, err := mintOptions(mc)
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When no engine is configured", func() {
			opt, err := mintOptions(config.New(ctx).Mint)
			convey.So(err, convey.ShouldBeNil)
			convey.So(opt, convey.ShouldBeNil)
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the metrics updaters", t, func() {
		convey.Convey("When system metrics are refreshed", func() {
			updateSystemMetrics()

			convey.Convey("Then the goroutine gauge is populated", func() {
				n, err := testutil.GatherAndCount(metrics.GetRegistry(), "ecoledger_rewards_system_goroutines")
				convey.So(err, convey.ShouldBeNil)
				convey.So(n, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the updater's context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			convey.Convey("Then both loops return", func() {
				convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
			})
		})
	})
}

package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"

	"github.com/okian/ecoledger/internal/adapters/http/api"
	service "github.com/okian/ecoledger/internal/app"
	"github.com/okian/ecoledger/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

func TestRootCommand(t *testing.T) {
	Convey("Given the action-sim command", t, func() {
		cmd := newRootCmd()

		Convey("Then flags carry their defaults", func() {
			users, err := cmd.Flags().GetInt("users")
			So(err, ShouldBeNil)
			So(users, ShouldEqual, defaultUsers)
			regions, err := cmd.Flags().GetStringSlice("regions")
			So(err, ShouldBeNil)
			So(regions, ShouldContain, "Berlin")
		})

		Convey("When run against a live service", func() {
			svc := service.New()
			So(svc.Start(context.Background()), ShouldBeNil)
			r := api.NewRouter()
			api.NewServer(svc, svc).Register(context.Background(), r)
			srv := httptest.NewServer(r)
			defer srv.Close()
			defer func() { _ = svc.Stop(context.Background()) }()

			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetErr(&out)
			cmd.SetArgs([]string{"--url", srv.URL, "--users", "10", "--actions", "60", "--regions", "Berlin,Lisbon", "--seed", "3", "--workers", "4"})

			Convey("Then it reports success", func() {
				So(cmd.ExecuteContext(context.Background()), ShouldBeNil)
				So(out.String(), ShouldStartWith, "ok: ")
			})
		})

		Convey("When a multiplier is not a number", func() {
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs([]string{"--multiplier", "recycling=lots"})

			Convey("Then it fails before contacting the service", func() {
				err := cmd.Execute()
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "multiplier recycling")
			})
		})

		Convey("When the arguments are inconsistent", func() {
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs([]string{"--users", "10", "--actions", "2"})

			Convey("Then it fails", func() {
				So(cmd.Execute(), ShouldNotBeNil)
			})
		})
	})
}

func TestParseMultipliers(t *testing.T) {
	Convey("Given kind=value overrides", t, func() {
		got, err := parseMultipliers(map[string]string{"recycling": "40", "beach_cleanup": "12.5"})

		Convey("Then they parse into floats", func() {
			So(err, ShouldBeNil)
			So(got, ShouldResemble, map[string]float64{"recycling": 40, "beach_cleanup": 12.5})
		})
	})
}

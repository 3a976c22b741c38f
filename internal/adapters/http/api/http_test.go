package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/okian/ecoledger/internal/adapters/http/api"
	service "github.com/okian/ecoledger/internal/app"
	"github.com/okian/ecoledger/internal/domain/types"
	"github.com/okian/ecoledger/pkg/logger"
	"github.com/okian/ecoledger/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

// failingDeps returns err from every operation.
type failingDeps struct {
	err error
}

func (f *failingDeps) TrackAction(context.Context, types.TrackActionRequest) (*types.TrackActionResponse, error) {
	return nil, f.err
}

func (f *failingDeps) UserRewards(context.Context, string) (*types.UserRewardsResponse, error) {
	return nil, f.err
}

func (f *failingDeps) Leaderboard(context.Context, string, string, int) (*types.LeaderboardResponse, error) {
	return nil, f.err
}

func (f *failingDeps) Badges() types.BadgesResponse { return types.BadgesResponse{} }

func newRouter(deps api.Dependencies, stats api.StatsProvider) chi.Router {
	r := api.NewRouter()
	api.NewServer(deps, stats).Register(context.Background(), r)
	return r
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](w *httptest.ResponseRecorder) T {
	var v T
	So(json.Unmarshal(w.Body.Bytes(), &v), ShouldBeNil)
	return v
}

func TestRewardsAPI(t *testing.T) {
	Convey("Given the API over a running service", t, func() {
		svc := service.New()
		So(svc.Start(context.Background()), ShouldBeNil)
		Reset(func() { _ = svc.Stop(context.Background()) })
		router := newRouter(svc, svc)

		Convey("When an action is posted", func() {
			w := do(router, http.MethodPost, "/api/rewards",
				`{"user_id":"alice","action":"carbon_offset","action_value":2.5,"location":"Paris"}`)

			Convey("Then the reward is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
				resp := decode[types.TrackActionResponse](w)
				So(resp.PointsEarned, ShouldEqual, 250)
				So(resp.NewBadges, ShouldResemble, []string{"First Step", "Carbon Saver"})
				So(*resp.Leaderboard.RegionalRank, ShouldEqual, 1)
				So(w.Body.String(), ShouldNotContainSubstring, "wallet_tx")
			})

			Convey("Then the user can be read from both endpoints", func() {
				byPath := do(router, http.MethodGet, "/api/rewards/users/alice", "")
				byQuery := do(router, http.MethodGet, "/api/rewards?user_id=alice", "")
				So(byPath.Code, ShouldEqual, http.StatusOK)
				So(byQuery.Code, ShouldEqual, http.StatusOK)
				So(byQuery.Body.String(), ShouldEqual, byPath.Body.String())
				user := decode[types.UserRewardsResponse](byPath)
				So(user.EcoPoints, ShouldEqual, 250)
				So(user.Badges, ShouldHaveLength, 2)
			})

			Convey("Then the leaderboards list the user", func() {
				global := do(router, http.MethodGet, "/api/rewards/leaderboard?limit=5", "")
				regional := do(router, http.MethodGet, "/api/rewards?type=regional&location=paris", "")
				So(global.Code, ShouldEqual, http.StatusOK)
				So(regional.Code, ShouldEqual, http.StatusOK)
				lb := decode[types.LeaderboardResponse](regional)
				So(lb.Type, ShouldEqual, "regional")
				So(lb.Leaderboard, ShouldHaveLength, 1)
				So(lb.Leaderboard[0].UserID, ShouldEqual, "alice")
			})
		})

		Convey("When the same action_id is posted twice", func() {
			body := `{"user_id":"bob","action":"recycling","action_id":"r-1"}`
			first := do(router, http.MethodPost, "/api/rewards", body)
			second := do(router, http.MethodPost, "/api/rewards", body)

			Convey("Then the retry is acknowledged as a duplicate", func() {
				So(first.Code, ShouldEqual, http.StatusOK)
				So(second.Code, ShouldEqual, http.StatusOK)
				dup := decode[types.DuplicateResponse](second)
				So(dup, ShouldResemble, types.DuplicateResponse{Status: "duplicate", Duplicate: true, UserID: "bob", ActionID: "r-1"})
			})
		})

		Convey("When requests are invalid", func() {
			missing := do(router, http.MethodPost, "/api/rewards", `{"action":"recycling"}`)
			malformed := do(router, http.MethodPost, "/api/rewards", `{"user_id":`)
			noParams := do(router, http.MethodGet, "/api/rewards", "")
			noLocation := do(router, http.MethodGet, "/api/rewards/leaderboard?type=regional", "")
			badLimit := do(router, http.MethodGet, "/api/rewards/leaderboard?limit=abc", "")

			Convey("Then 400 with an error code is returned", func() {
				for _, w := range []*httptest.ResponseRecorder{missing, malformed, noParams, noLocation, badLimit} {
					So(w.Code, ShouldEqual, http.StatusBadRequest)
					e := decode[types.ErrorResponse](w)
					So(e.Code, ShouldNotBeEmpty)
					So(e.Message, ShouldNotBeEmpty)
				}
				So(decode[types.ErrorResponse](missing).Code, ShouldEqual, "validation_error")
			})
		})

		Convey("When unknown users or regions are requested", func() {
			user := do(router, http.MethodGet, "/api/rewards/users/ghost", "")
			region := do(router, http.MethodGet, "/api/rewards/leaderboard?type=regional&location=Atlantis", "")

			Convey("Then 404 is returned", func() {
				So(user.Code, ShouldEqual, http.StatusNotFound)
				So(region.Code, ShouldEqual, http.StatusNotFound)
				So(decode[types.ErrorResponse](user).Code, ShouldEqual, "not_found")
			})
		})

		Convey("When user ids need escaping in the path", func() {
			for _, id := range []string{"team/alpha", "50%off", "a b"} {
				w := do(router, http.MethodPost, "/api/rewards", `{"user_id":"`+id+`","action":"recycling"}`)
				So(w.Code, ShouldEqual, http.StatusOK)
			}

			Convey("Then the escaped path reaches the stored user", func() {
				for path, id := range map[string]string{
					"/api/rewards/users/team%2Falpha": "team/alpha",
					"/api/rewards/users/50%25off":     "50%off",
					"/api/rewards/users/a%20b":        "a b",
				} {
					w := do(router, http.MethodGet, path, "")
					So(w.Code, ShouldEqual, http.StatusOK)
					So(decode[types.UserRewardsResponse](w).UserID, ShouldEqual, id)
				}
			})

			Convey("Then a broken escape is a bad request", func() {
				req := httptest.NewRequest(http.MethodGet, "/api/rewards/users/x", nil)
				req.URL.RawPath = "/api/rewards/users/%zz"
				w := httptest.NewRecorder()
				router.ServeHTTP(w, req)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode[types.ErrorResponse](w).Code, ShouldEqual, "bad_request")
			})
		})

		Convey("When the badge catalogue is requested", func() {
			w := do(router, http.MethodGet, "/api/rewards/badges", "")

			Convey("Then every badge is listed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[types.BadgesResponse](w).Badges, ShouldHaveLength, 11)
			})
		})

		Convey("When stats and metrics are requested", func() {
			stats := do(router, http.MethodGet, "/stats", "")
			health := do(router, http.MethodGet, "/healthz", "")

			Convey("Then both respond", func() {
				So(stats.Code, ShouldEqual, http.StatusOK)
				So(decode[map[string]interface{}](stats)["started"], ShouldEqual, true)
				So(health.Code, ShouldEqual, http.StatusOK)
				So(health.Body.String(), ShouldContainSubstring, "ecoledger_rewards")
			})
		})
	})
}

func TestRewardsAPI_ErrorMapping(t *testing.T) {
	Convey("Given dependencies that fail", t, func() {
		stats := &mockStatsProvider{stats: map[string]interface{}{}}

		Convey("When the service is not started", func() {
			router := newRouter(&failingDeps{err: service.ErrNotStarted}, stats)
			w := do(router, http.MethodGet, "/api/rewards/users/alice", "")

			Convey("Then 503 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})

		Convey("When an unexpected error occurs", func() {
			router := newRouter(&failingDeps{err: errors.New("disk on fire")}, stats)
			w := do(router, http.MethodPost, "/api/rewards", `{"user_id":"u","action":"recycling"}`)

			Convey("Then 500 is returned without leaking the cause", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				e := decode[types.ErrorResponse](w)
				So(e.Code, ShouldEqual, "internal_error")
				So(e.Message, ShouldNotContainSubstring, "disk on fire")
			})
		})
	})
}

func TestOpError(t *testing.T) {
	Convey("Given wrapped API errors", t, func() {
		cause := errors.New("boom")

		Convey("Then kind and cause are both visible to errors.Is", func() {
			err := api.WrapKind("api.op", api.ErrBadRequest, cause)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: boom")
		})

		Convey("Then nil causes stay nil", func() {
			So(api.WrapKind("api.op", api.ErrBadRequest, nil), ShouldBeNil)
			So(api.Wrap("api.op", nil), ShouldBeNil)
		})

		Convey("Then kinds without a cause format cleanly", func() {
			So(api.NewKind("api.op", api.ErrNotFound).Error(), ShouldEqual, "api.op: not found")
			So(api.Wrap("api.op", cause).Error(), ShouldEqual, "api.op: boom")
		})
	})
}

func TestInstrument(t *testing.T) {
	Convey("Given an instrumented route with a path parameter", t, func() {
		r := api.NewRouter()
		r.With(api.Instrument).Get("/things/{id}", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		Convey("When two different ids are requested", func() {
			do(r, http.MethodGet, "/things/a", "")
			do(r, http.MethodGet, "/things/b", "")

			Convey("Then both share the route pattern label", func() {
				n, err := testutil.GatherAndCount(metrics.GetRegistry(), "ecoledger_rewards_errors_by_endpoint_total")
				So(err, ShouldBeNil)
				So(n, ShouldBeGreaterThanOrEqualTo, 1)

				families, err := metrics.GetRegistry().Gather()
				So(err, ShouldBeNil)
				var hits float64
				for _, f := range families {
					if f.GetName() != "ecoledger_rewards_http_requests_total" {
						continue
					}
					for _, m := range f.GetMetric() {
						for _, l := range m.GetLabel() {
							if l.GetName() == "endpoint" && l.GetValue() == "/things/{id}" {
								hits += m.GetCounter().GetValue()
							}
						}
					}
				}
				So(hits, ShouldEqual, 2)
			})
		})
	})
}

package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/versus/internal/adapters/http/api"
	"github.com/okian/versus/internal/adapters/repository"
	service "github.com/okian/versus/internal/app"
	"github.com/okian/versus/internal/domain/model"
	"github.com/okian/versus/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type testServer struct {
	svc *service.Service
	mux *http.ServeMux
}

func newTestServer(t *testing.T, profiles ...model.Profile) *testServer {
	t.Helper()
	ctx := context.Background()
	svc := service.New(service.WithSamplerSeed(11))
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, p := range profiles {
		if _, err := svc.CreateProfile(ctx, p); err != nil {
			t.Fatalf("create %s: %v", p.ID, err)
		}
	}
	mux := http.NewServeMux()
	api.NewServer(svc, svc, 50).Register(ctx, mux)
	return &testServer{svc: svc, mux: mux}
}

func (s *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func decode(rec *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	So(json.Unmarshal(rec.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func profile(id, name string) model.Profile {
	return model.Profile{ID: id, Name: name, Title: "Engineer", Company: "Acme", Location: "Paris", Major: "Computer Science", IsStudent: id == "a"}
}

func TestPairAndVoteRoutes(t *testing.T) {
	Convey("Given a server with two profiles", t, func() {
		srv := newTestServer(t, profile("a", "Ada"), profile("b", "Bob"))

		rec := srv.do(http.MethodGet, "/pair", "")
		So(rec.Code, ShouldEqual, http.StatusOK)
		pair := decode(rec)
		sessionID := pair["session_id"].(string)
		left := pair["left"].(map[string]any)["id"].(string)
		right := pair["right"].(map[string]any)["id"].(string)

		Convey("Then the pair carries a session and two distinct profiles", func() {
			So(sessionID, ShouldNotBeEmpty)
			So(left, ShouldNotEqual, right)
			So(pair["left"].(map[string]any)["rating"], ShouldEqual, 1500.0)
		})

		Convey("When the left profile is voted for", func() {
			rec := srv.do(http.MethodPost, "/votes",
				`{"session_id":"`+sessionID+`","left_id":"`+left+`","right_id":"`+right+`","outcome":"left","vote_id":"v-1"}`)

			Convey("Then the vote is applied and the rating changes are returned", func() {
				So(rec.Code, ShouldEqual, http.StatusCreated)
				body := decode(rec)
				So(body["status"], ShouldEqual, "applied")
				So(body["left"].(map[string]any)["after"], ShouldEqual, 1516.0)
				So(body["right"].(map[string]any)["delta"], ShouldEqual, -16.0)
				So(body["prediction"].(map[string]any)["favoured"], ShouldEqual, "draw")
			})

			Convey("And resubmitting the vote id is acknowledged as a duplicate", func() {
				rec := srv.do(http.MethodPost, "/votes",
					`{"session_id":"`+sessionID+`","left_id":"`+left+`","right_id":"`+right+`","outcome":"left","vote_id":"v-1"}`)
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(decode(rec)["duplicate"], ShouldEqual, true)
			})

			Convey("And the session history lists it with names", func() {
				rec := srv.do(http.MethodGet, "/votes?session_id="+sessionID, "")
				So(rec.Code, ShouldEqual, http.StatusOK)
				var history []map[string]any
				So(json.Unmarshal(rec.Body.Bytes(), &history), ShouldBeNil)
				So(len(history), ShouldEqual, 1)
				So(history[0]["vote_id"], ShouldEqual, "v-1")
				So(history[0]["left_name"], ShouldBeIn, "Ada", "Bob")
			})

			Convey("And the leaderboard puts the winner first", func() {
				rec := srv.do(http.MethodGet, "/leaderboard?limit=2", "")
				So(rec.Code, ShouldEqual, http.StatusOK)
				var entries []map[string]any
				So(json.Unmarshal(rec.Body.Bytes(), &entries), ShouldBeNil)
				So(entries[0]["profile_id"], ShouldEqual, left)
				So(entries[0]["rank"], ShouldEqual, 1.0)
			})
		})

		Convey("When the vote names another pair", func() {
			rec := srv.do(http.MethodPost, "/votes",
				`{"session_id":"`+sessionID+`","left_id":"`+left+`","right_id":"zzz","outcome":"left"}`)

			Convey("Then it is a conflict and no rating changes", func() {
				So(rec.Code, ShouldEqual, http.StatusConflict)
				So(decode(rec)["code"], ShouldEqual, "pair_mismatch")

				rec := srv.do(http.MethodGet, "/profiles/"+left, "")
				So(decode(rec)["rating"], ShouldEqual, 1500.0)
			})
		})

		Convey("When the outcome is unknown", func() {
			rec := srv.do(http.MethodPost, "/votes",
				`{"session_id":"`+sessionID+`","left_id":"`+left+`","right_id":"`+right+`","outcome":"sideways"}`)

			Convey("Then it is rejected as an invalid outcome", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(rec)["code"], ShouldEqual, "invalid_outcome")
			})
		})

		Convey("When required fields are missing", func() {
			rec := srv.do(http.MethodPost, "/votes", `{"session_id":"`+sessionID+`","outcome":"left"}`)

			Convey("Then it is a bad request", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(rec)["code"], ShouldEqual, "bad_request")
			})
		})

		Convey("When both sides name the same profile", func() {
			rec := srv.do(http.MethodPost, "/votes",
				`{"session_id":"`+sessionID+`","left_id":"`+left+`","right_id":"`+left+`","outcome":"draw"}`)

			Convey("Then it is a bad request", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When history is requested without a session", func() {
			rec := srv.do(http.MethodGet, "/votes", "")

			Convey("Then it is a bad request", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When votes is called with an unsupported method", func() {
			rec := srv.do(http.MethodDelete, "/votes", "")

			Convey("Then it is not allowed", func() {
				So(rec.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})

		Reset(srv.svc.Stop)
	})

	Convey("Given a server with a single profile", t, func() {
		srv := newTestServer(t, profile("a", "Ada"))

		Convey("Then no pair can be served", func() {
			rec := srv.do(http.MethodGet, "/pair", "")
			So(rec.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(decode(rec)["code"], ShouldEqual, "insufficient_pool")
		})

		Reset(srv.svc.Stop)
	})
}

func TestLeaderboardAndRankRoutes(t *testing.T) {
	Convey("Given a server with three profiles", t, func() {
		srv := newTestServer(t, profile("a", "Ada"), profile("b", "Bob"), profile("c", "Cy"))

		Convey("Then the default leaderboard lists every profile with a shared rank", func() {
			rec := srv.do(http.MethodGet, "/leaderboard", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			var entries []map[string]any
			So(json.Unmarshal(rec.Body.Bytes(), &entries), ShouldBeNil)
			So(len(entries), ShouldEqual, 3)
			for _, e := range entries {
				So(e["rank"], ShouldEqual, 1.0)
			}
		})

		Convey("Then invalid limits are rejected", func() {
			So(srv.do(http.MethodGet, "/leaderboard?limit=0", "").Code, ShouldEqual, http.StatusBadRequest)
			So(srv.do(http.MethodGet, "/leaderboard?limit=abc", "").Code, ShouldEqual, http.StatusBadRequest)

			rec := srv.do(http.MethodGet, "/leaderboard?limit=51", "")
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(rec)["code"], ShouldEqual, "limit_exceeded")
		})

		Convey("Then a known profile has a rank", func() {
			rec := srv.do(http.MethodGet, "/rank/b", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			body := decode(rec)
			So(body["profile_id"], ShouldEqual, "b")
			So(body["name"], ShouldEqual, "Bob")
		})

		Convey("Then an unknown profile is not found", func() {
			So(srv.do(http.MethodGet, "/rank/nobody", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then a missing id is a bad request", func() {
			So(srv.do(http.MethodGet, "/rank/", "").Code, ShouldEqual, http.StatusBadRequest)
			So(srv.do(http.MethodGet, "/rank/a/b", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Reset(srv.svc.Stop)
	})
}

func TestProfileRoutes(t *testing.T) {
	Convey("Given a server with a student and an alumnus", t, func() {
		srv := newTestServer(t, profile("a", "Ada"), profile("b", "Bob"))

		Convey("When listing students", func() {
			rec := srv.do(http.MethodGet, "/profiles?filter=students", "")

			Convey("Then only the student is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				body := decode(rec)
				So(body["total"], ShouldEqual, 1.0)
				So(body["page"], ShouldEqual, 1.0)
				So(body["profiles"].([]any)[0].(map[string]any)["id"], ShouldEqual, "a")
			})
		})

		Convey("When listing by name", func() {
			rec := srv.do(http.MethodGet, "/profiles?sort=name&limit=1&page=2", "")

			Convey("Then paging applies after sorting", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				body := decode(rec)
				So(body["total_pages"], ShouldEqual, 2.0)
				So(body["profiles"].([]any)[0].(map[string]any)["name"], ShouldEqual, "Bob")
			})
		})

		Convey("When the page is far past the end", func() {
			rec := srv.do(http.MethodGet, "/profiles?page=100000000000000000&limit=100", "")

			Convey("Then an empty page is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				body := decode(rec)
				So(body["total"], ShouldEqual, 2.0)
				So(body["profiles"], ShouldBeEmpty)
			})
		})

		Convey("When the sort is unknown", func() {
			rec := srv.do(http.MethodGet, "/profiles?sort=height", "")

			Convey("Then it is a bad request", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When a profile is created", func() {
			rec := srv.do(http.MethodPost, "/profiles", `{"id":"c","name":"Cy","linkedin_url":"https://www.linkedin.com/in/cy"}`)

			Convey("Then it enters the pool at the initial rating", func() {
				So(rec.Code, ShouldEqual, http.StatusCreated)
				body := decode(rec)
				So(body["id"], ShouldEqual, "c")
				So(body["rating"], ShouldEqual, 1500.0)

				So(srv.do(http.MethodGet, "/profiles/c", "").Code, ShouldEqual, http.StatusOK)
			})

			Convey("And creating it again conflicts", func() {
				rec := srv.do(http.MethodPost, "/profiles", `{"id":"c","name":"Cy"}`)
				So(rec.Code, ShouldEqual, http.StatusConflict)
			})
		})

		Convey("When a client tries to set a rating", func() {
			rec := srv.do(http.MethodPost, "/profiles", `{"name":"Cheater","rating":3000}`)

			Convey("Then the request is rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the name is missing", func() {
			rec := srv.do(http.MethodPost, "/profiles", `{"title":"CTO"}`)

			Convey("Then the request is rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When an unknown profile is requested", func() {
			rec := srv.do(http.MethodGet, "/profiles/ghost", "")

			Convey("Then it is not found", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
				So(decode(rec)["code"], ShouldEqual, "not_found")
			})
		})

		Reset(srv.svc.Stop)
	})
}

func TestHealthAndStatsRoutes(t *testing.T) {
	Convey("Given a running server", t, func() {
		srv := newTestServer(t, profile("a", "Ada"))

		Convey("Then /healthz serves metrics", func() {
			rec := srv.do(http.MethodGet, "/healthz", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then /stats reports the service state", func() {
			rec := srv.do(http.MethodGet, "/stats", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			body := decode(rec)
			So(body["started"], ShouldEqual, true)
			So(body["totalProfiles"], ShouldEqual, 1.0)
		})

		Convey("Then /stats rejects writes", func() {
			So(srv.do(http.MethodPost, "/stats", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Reset(srv.svc.Stop)
	})
}

func TestErrorHelpers(t *testing.T) {
	Convey("Given wrapped API errors", t, func() {
		cause := repository.ErrNotFound
		wrapped := api.WrapKind("api.test", api.ErrBadRequest, cause)

		Convey("Then both the kind and the cause match", func() {
			So(errors.Is(wrapped, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(wrapped, repository.ErrNotFound), ShouldBeTrue)
			So(wrapped.Error(), ShouldStartWith, "api.test: ")
		})

		Convey("Then Wrap keeps nil as nil", func() {
			So(api.Wrap("api.test", nil), ShouldBeNil)
		})

		Convey("Then NewKind carries only the kind", func() {
			err := api.NewKind("api.test", api.ErrLimitExceeded)
			So(errors.Is(err, api.ErrLimitExceeded), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.test: limit exceeded")
		})
	})
}

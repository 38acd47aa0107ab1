package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/flickrank/internal/adapters/http/api"
	service "github.com/okian/flickrank/internal/app"
	"github.com/okian/flickrank/internal/domain/model"
	"github.com/okian/flickrank/internal/domain/session"
	"github.com/okian/flickrank/internal/domain/types"
	"github.com/okian/flickrank/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// failingDeps returns err from every call.
type failingDeps struct{ err error }

func (f failingDeps) StartSession(context.Context, string, string, string) (session.Event, error) {
	return session.Event{}, f.err
}
func (f failingDeps) Submit(context.Context, string, int, string) (session.Event, error) {
	return session.Event{}, f.err
}
func (f failingDeps) Abort(context.Context, string) error { return f.err }
func (f failingDeps) Snapshot(context.Context, string) (session.Snapshot, error) {
	return session.Snapshot{}, f.err
}
func (f failingDeps) PutItem(context.Context, string, string, float64, int) (types.Entry, error) {
	return types.Entry{}, f.err
}
func (f failingDeps) Items(context.Context, string, int) ([]types.Entry, error) { return nil, f.err }
func (f failingDeps) Stats(context.Context, string) (types.CorpusStats, error) {
	return types.CorpusStats{}, f.err
}

type staticStats map[string]any

func (s staticStats) GetStats(context.Context) map[string]any { return s }

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func errorCode(w *httptest.ResponseRecorder) string {
	var e struct {
		Code string `json:"code"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &e)
	return e.Code
}

func TestServer_ErrorMapping(t *testing.T) {
	Convey("Given a server whose dependencies fail", t, func() {
		cases := []struct {
			err    error
			status int
			code   string
		}{
			{fmt.Errorf("x: %w", model.ErrCorpusTooSmall), http.StatusUnprocessableEntity, "rate_more_items"},
			{fmt.Errorf("x: %w", model.ErrInvalidSessionInput), http.StatusUnprocessableEntity, "invalid_input"},
			{fmt.Errorf("x: %w", service.ErrSessionNotFound), http.StatusNotFound, "not_found"},
			{fmt.Errorf("x: %w", model.ErrOutcomeRejected), http.StatusConflict, "outcome_rejected"},
			{fmt.Errorf("x: %w", model.ErrInvalidRatingInput), http.StatusUnprocessableEntity, "invalid_rating"},
			{service.ErrNotStarted, http.StatusServiceUnavailable, "unavailable"},
			{errors.New("disk on fire"), http.StatusInternalServerError, "internal"},
		}

		for _, c := range cases {
			h := api.NewServer(failingDeps{err: c.err}, staticStats{}).Routes()

			Convey("When the error is "+c.code, func() {
				w := do(h, http.MethodPost, "/v1/sessions/abc/outcome", `{"round":1,"outcome":"a_wins"}`)

				Convey("Then it maps to its status and code", func() {
					So(w.Code, ShouldEqual, c.status)
					So(errorCode(w), ShouldEqual, c.code)
				})
			})
		}
	})
}

func TestServer_BadRequests(t *testing.T) {
	Convey("Given a server", t, func() {
		h := api.NewServer(failingDeps{err: errors.New("unreachable")}, staticStats{"started": true}).Routes()

		Convey("When the body is not JSON", func() {
			w := do(h, http.MethodPost, "/v1/sessions", `not json`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(w), ShouldEqual, "bad_request")
		})

		Convey("When the body has unknown fields", func() {
			w := do(h, http.MethodPost, "/v1/sessions", `{"category":"movie","item_id":"x","sentiment":"LOVED","extra":1}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a required field is missing", func() {
			w := do(h, http.MethodPost, "/v1/sessions", `{"category":"movie","sentiment":"LOVED"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, "item_id")
		})

		Convey("When the round is not positive", func() {
			w := do(h, http.MethodPost, "/v1/sessions/abc/outcome", `{"round":0,"outcome":"a_wins"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the limit is invalid", func() {
			w := do(h, http.MethodGet, "/v1/categories/movie/items?limit=-3", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a seeded item has no rating", func() {
			w := do(h, http.MethodPut, "/v1/categories/movie/items/m1", `{"comparisons_played":2}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the route is unknown", func() {
			w := do(h, http.MethodGet, "/v2/nothing", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When probing health, stats and metrics", func() {
			So(do(h, http.MethodGet, "/healthz", "").Code, ShouldEqual, http.StatusOK)

			stats := do(h, http.MethodGet, "/stats", "")
			So(stats.Code, ShouldEqual, http.StatusOK)
			So(stats.Body.String(), ShouldContainSubstring, `"started":true`)

			metrics := do(h, http.MethodGet, "/metrics", "")
			So(metrics.Code, ShouldEqual, http.StatusOK)
			So(metrics.Body.String(), ShouldContainSubstring, "flickrank_")

			So(do(h, http.MethodGet, "/openapi.yaml", "").Code, ShouldEqual, http.StatusOK)
		})
	})
}

func TestServer_RoundTrip(t *testing.T) {
	Convey("Given a server over a running service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithRandSeed(3), service.WithReaperSchedule(""))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)
		h := api.NewServer(svc, svc).Routes()

		Convey("When the category is too small", func() {
			w := do(h, http.MethodPost, "/v1/sessions", `{"category":"movie","item_id":"new","sentiment":"LOVED"}`)

			Convey("Then the client is asked to rate more items", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(errorCode(w), ShouldEqual, "rate_more_items")
			})
		})

		Convey("When items are seeded and a session is played through", func() {
			for i, r := range []string{"9.0", "7.5", "6.0", "4.5", "2.0"} {
				w := do(h, http.MethodPut, fmt.Sprintf("/v1/categories/movie/items/m%d", i), `{"rating":`+r+`,"comparisons_played":3}`)
				So(w.Code, ShouldEqual, http.StatusOK)
			}

			w := do(h, http.MethodPost, "/v1/sessions", `{"category":"movie","item_id":"new","sentiment":"liked"}`)
			So(w.Code, ShouldEqual, http.StatusCreated)

			var started struct {
				SessionID string        `json:"session_id"`
				Event     session.Event `json:"event"`
			}
			So(json.Unmarshal(w.Body.Bytes(), &started), ShouldBeNil)
			So(started.SessionID, ShouldNotBeEmpty)
			So(started.Event.Kind, ShouldEqual, session.EventPresentComparison)
			So(started.Event.Opponent, ShouldNotBeNil)

			ev := started.Event
			for i := 0; i < 10 && ev.Kind == session.EventPresentComparison; i++ {
				body := fmt.Sprintf(`{"round":%d,"outcome":"too_tough"}`, ev.Round)
				w = do(h, http.MethodPost, "/v1/sessions/"+started.SessionID+"/outcome", body)
				So(w.Code, ShouldEqual, http.StatusOK)
				var resp struct {
					Event session.Event `json:"event"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
				ev = resp.Event
			}

			Convey("Then the session completes with a result", func() {
				So(ev.Kind, ShouldEqual, session.EventCompleted)
				So(ev.Result, ShouldNotBeNil)

				snap := do(h, http.MethodGet, "/v1/sessions/"+started.SessionID, "")
				So(snap.Code, ShouldEqual, http.StatusOK)
				So(snap.Body.String(), ShouldContainSubstring, `"state":"complete"`)
			})

			Convey("And the new item is listed", func() {
				list := do(h, http.MethodGet, "/v1/categories/movie/items", "")
				So(list.Code, ShouldEqual, http.StatusOK)
				So(list.Body.String(), ShouldContainSubstring, `"item_id":"new"`)

				st := do(h, http.MethodGet, "/v1/categories/movie/stats", "")
				So(st.Code, ShouldEqual, http.StatusOK)
				So(st.Body.String(), ShouldContainSubstring, `"count":6`)
			})

			Convey("And replaying the last round conflicts", func() {
				body := fmt.Sprintf(`{"round":%d,"outcome":"a_wins"}`, ev.Round)
				w := do(h, http.MethodPost, "/v1/sessions/"+started.SessionID+"/outcome", body)
				So(w.Code, ShouldEqual, http.StatusConflict)
			})

			Convey("And aborting a completed session conflicts", func() {
				w := do(h, http.MethodDelete, "/v1/sessions/"+started.SessionID, "")
				So(w.Code, ShouldEqual, http.StatusConflict)
			})
		})

		Convey("When a running session is aborted", func() {
			for i := 0; i < 3; i++ {
				do(h, http.MethodPut, fmt.Sprintf("/v1/categories/tv/items/t%d", i), fmt.Sprintf(`{"rating":%d}`, 3+i*2))
			}
			w := do(h, http.MethodPost, "/v1/sessions", `{"category":"tv","item_id":"pilot","sentiment":"DISLIKED"}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			var started struct {
				SessionID string `json:"session_id"`
			}
			_ = json.Unmarshal(w.Body.Bytes(), &started)

			Convey("Then it returns 204 and the session is gone", func() {
				So(do(h, http.MethodDelete, "/v1/sessions/"+started.SessionID, "").Code, ShouldEqual, http.StatusNoContent)
				So(do(h, http.MethodGet, "/v1/sessions/"+started.SessionID, "").Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

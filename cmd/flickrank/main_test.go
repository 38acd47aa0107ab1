package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/flickrank/internal/adapters/http/api"
	"github.com/okian/flickrank/internal/config"
	"github.com/okian/flickrank/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestNewService(t *testing.T) {
	convey.Convey("Given a config selecting the sqlite store", t, func() {
		_ = logger.Init()
		ctx := context.Background()

		_ = os.Setenv("FLICKRANK_STORAGE_DRIVER", "sqlite")
		_ = os.Setenv("FLICKRANK_SQLITE_PATH", filepath.Join(t.TempDir(), "main.db"))
		defer func() {
			_ = os.Unsetenv("FLICKRANK_STORAGE_DRIVER")
			_ = os.Unsetenv("FLICKRANK_SQLITE_PATH")
		}()

		cfg, err := config.Load(ctx)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("When the service is built and started", func() {
			svc, err := newService(ctx, cfg, logger.Get())
			convey.So(err, convey.ShouldBeNil)
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			defer svc.Stop(ctx)

			h := api.NewServer(svc, svc).Routes()

			convey.Convey("Then the API serves seeded items", func() {
				req := httptest.NewRequest(http.MethodPut, "/v1/categories/movie/items/m1", strings.NewReader(`{"rating":7}`))
				w := httptest.NewRecorder()
				h.ServeHTTP(w, req)
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)

				req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
				w = httptest.NewRecorder()
				h.ServeHTTP(w, req)
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			})
		})
	})

	convey.Convey("Given an unknown storage driver", t, func() {
		cfg := config.New()
		cfg.StorageDriver = "redis"

		convey.Convey("Then building the service fails", func() {
			_, err := newService(context.Background(), cfg, logger.Nop())
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

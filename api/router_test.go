package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ddevcap/movie-catalog/api"
	"github.com/ddevcap/movie-catalog/config"
	"github.com/ddevcap/movie-catalog/omdb"
	"github.com/ddevcap/movie-catalog/store"
)

type noSource struct{}

func (noSource) Search(context.Context, string, int) ([]omdb.SearchResult, bool) { return nil, false }
func (noSource) Details(context.Context, string) (*omdb.Details, bool)           { return nil, false }

var _ = Describe("Router", func() {
	var (
		h    http.Handler
		stop func()
	)

	serve := func(req *http.Request) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	BeforeEach(func() {
		h, stop = api.NewRouter(db, config.Config{
			LoginMaxAttempts: 3,
			LoginWindow:      time.Minute,
			LoginBanDuration: time.Minute,
			SessionTTL:       time.Hour,
		}, noSource{})
		DeferCleanup(stop)
	})

	It("serves the movie list", func() {
		_, err := db.CreateMovie(context.Background(), store.NewMovie{Title: "Heat", Year: "1995", IMDbID: "tt0113277"})
		Expect(err).NotTo(HaveOccurred())

		w := serve(httptest.NewRequest(http.MethodGet, "/api/v1/movies", nil))
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring("tt0113277"))
		Expect(w.Header().Get("X-Request-ID")).NotTo(BeEmpty())
	})

	It("runs the register, login and delete flow", func() {
		m, err := db.CreateMovie(context.Background(), store.NewMovie{Title: "Heat", Year: "1995", IMDbID: "tt0113277"})
		Expect(err).NotTo(HaveOccurred())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/users", strings.NewReader(`{"username":"alice","password":"correctpass1"}`))
		req.Header.Set("Content-Type", "application/json")
		Expect(serve(req).Code).To(Equal(http.StatusCreated))

		form := url.Values{"username": {"alice"}, "password": {"correctpass1"}}
		req = httptest.NewRequest(http.MethodPost, "/api/v1/token", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := serve(req)
		Expect(w.Code).To(Equal(http.StatusOK))
		var tok struct {
			AccessToken string `json:"access_token"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &tok)).To(Succeed())

		path := fmt.Sprintf("/api/v1/movies/%d", m.ID)
		Expect(serve(httptest.NewRequest(http.MethodDelete, path, nil)).Code).To(Equal(http.StatusUnauthorized))

		req = httptest.NewRequest(http.MethodDelete, path, nil)
		req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
		Expect(serve(req).Code).To(Equal(http.StatusNoContent))
	})

	It("bans an address after repeated failed logins", func() {
		form := url.Values{"username": {"ghost"}, "password": {"wrongpass"}}
		login := func() int {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/token", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			return serve(req).Code
		}
		for i := 0; i < 3; i++ {
			Expect(login()).To(Equal(http.StatusUnauthorized))
		}
		Expect(login()).To(Equal(http.StatusTooManyRequests))
	})

	It("answers the liveness and readiness checks", func() {
		Expect(serve(httptest.NewRequest(http.MethodGet, "/health", nil)).Code).To(Equal(http.StatusOK))
		Expect(serve(httptest.NewRequest(http.MethodGet, "/ready", nil)).Code).To(Equal(http.StatusOK))
	})

	It("exposes prometheus metrics", func() {
		w := serve(httptest.NewRequest(http.MethodGet, "/metrics", nil))
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring("go_goroutines"))
	})

	It("returns a JSON 404 for unknown routes", func() {
		w := serve(httptest.NewRequest(http.MethodGet, "/nope", nil))
		Expect(w.Code).To(Equal(http.StatusNotFound))
		Expect(w.Body.String()).To(ContainSubstring("endpoint not found"))
	})

	preflight := func(origin string) *http.Request {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/movies", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", "GET")
		return req
	}

	It("answers CORS preflight requests from any origin by default", func() {
		w := serve(preflight("http://frontend.test"))
		Expect(w.Code).To(Equal(http.StatusNoContent))
		Expect(w.Header().Get("Access-Control-Allow-Origin")).To(Equal("*"))
		Expect(w.Header().Get("Access-Control-Allow-Credentials")).To(BeEmpty())
	})

	Context("with CORS_ORIGINS set", func() {
		BeforeEach(func() {
			h, stop = api.NewRouter(db, config.Config{
				CORSOrigins: []string{" http://frontend.test/ "},
			}, noSource{})
			DeferCleanup(stop)
		})

		It("echoes a listed origin and allows credentials", func() {
			w := serve(preflight("http://frontend.test"))
			Expect(w.Code).To(Equal(http.StatusNoContent))
			Expect(w.Header().Get("Access-Control-Allow-Origin")).To(Equal("http://frontend.test"))
			Expect(w.Header().Get("Access-Control-Allow-Credentials")).To(Equal("true"))
		})

		It("refuses an origin that is not listed", func() {
			w := serve(preflight("http://elsewhere.test"))
			Expect(w.Code).To(Equal(http.StatusForbidden))
			Expect(w.Header().Get("Access-Control-Allow-Origin")).To(BeEmpty())
		})
	})
})

package omdb_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ddevcap/movie-catalog/config"
	"github.com/ddevcap/movie-catalog/omdb"
)

const matrixDetails = `{"Title":"The Matrix","Year":"1999","imdbID":"tt0133093","Plot":"A hacker learns the truth.","Poster":"N/A","Response":"True"}`

var _ = Describe("Client", func() {
	var (
		ctx     context.Context
		srv     *httptest.Server
		handler http.HandlerFunc
		calls   atomic.Int32
		lastReq atomic.Pointer[http.Request]
		client  *omdb.Client
	)

	newClient := func(timeout time.Duration) *omdb.Client {
		c := omdb.NewClient(config.Config{
			OMDBAPIKey:   "secret",
			OMDBBaseURL:  srv.URL,
			OMDBTimeout:  timeout,
			OMDBCacheTTL: time.Minute,
		})
		DeferCleanup(c.Close)
		return c
	}

	BeforeEach(func() {
		ctx = context.Background()
		calls.Store(0)
		handler = func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"Response":"False","Error":"Movie not found!"}`))
		}
		srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			lastReq.Store(r)
			handler(w, r)
		}))
		DeferCleanup(srv.Close)
		client = newClient(2 * time.Second)
	})

	Describe("Search", func() {
		It("sends the search parameters and returns the matches", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"Search":[{"Title":"The Matrix","Year":"1999","imdbID":"tt0133093","Type":"movie","Poster":"N/A"}],"totalResults":"1","Response":"True"}`))
			}

			results, ok := client.Search(ctx, "matrix", 2)
			Expect(ok).To(BeTrue())
			Expect(results).To(HaveLen(1))
			Expect(results[0].IMDbID).To(Equal("tt0133093"))

			q := lastReq.Load().URL.Query()
			Expect(q.Get("apikey")).To(Equal("secret"))
			Expect(q.Get("s")).To(Equal("matrix"))
			Expect(q.Get("type")).To(Equal("movie"))
			Expect(q.Get("page")).To(Equal("2"))
		})

		It("reports a Response False answer as absent", func() {
			results, ok := client.Search(ctx, "zzzz", 1)
			Expect(ok).To(BeFalse())
			Expect(results).To(BeNil())
		})

		It("reports a non-2xx status as absent", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"Response":"False","Error":"Invalid API key!"}`))
			}
			_, ok := client.Search(ctx, "matrix", 1)
			Expect(ok).To(BeFalse())
		})

		It("reports an undecodable body as absent", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html>oops</html>`))
			}
			_, ok := client.Search(ctx, "matrix", 1)
			Expect(ok).To(BeFalse())
		})

		It("reports a call that exceeds the timeout as absent", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			}
			slow := newClient(50 * time.Millisecond)

			start := time.Now()
			_, ok := slow.Search(ctx, "matrix", 1)
			Expect(ok).To(BeFalse())
			Expect(time.Since(start)).To(BeNumerically("<", time.Second))
		})

		It("reports an unreachable server as absent", func() {
			c := omdb.NewClient(config.Config{OMDBBaseURL: "http://127.0.0.1:1", OMDBTimeout: time.Second})
			defer c.Close()
			_, ok := c.Search(ctx, "matrix", 1)
			Expect(ok).To(BeFalse())
		})
	})

	Describe("Details", func() {
		It("requests the full plot and maps N/A to nil", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(matrixDetails))
			}

			d, ok := client.Details(ctx, "tt0133093")
			Expect(ok).To(BeTrue())
			Expect(d.Title).To(Equal("The Matrix"))
			Expect(d.Year).To(Equal("1999"))
			Expect(d.Plot).To(HaveValue(Equal("A hacker learns the truth.")))
			Expect(d.Poster).To(BeNil())

			q := lastReq.Load().URL.Query()
			Expect(q.Get("i")).To(Equal("tt0133093"))
			Expect(q.Get("plot")).To(Equal("full"))

			nm := d.NewMovie()
			Expect(nm.IMDbID).To(Equal("tt0133093"))
			Expect(nm.Poster).To(BeNil())
		})

		It("serves repeated lookups from the cache", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(matrixDetails))
			}

			_, ok := client.Details(ctx, "tt0133093")
			Expect(ok).To(BeTrue())
			_, ok = client.Details(ctx, "tt0133093")
			Expect(ok).To(BeTrue())
			Expect(calls.Load()).To(Equal(int32(1)))
		})

		It("does not cache absent lookups", func() {
			_, ok := client.Details(ctx, "tt0000000")
			Expect(ok).To(BeFalse())
			_, ok = client.Details(ctx, "tt0000000")
			Expect(ok).To(BeFalse())
			Expect(calls.Load()).To(Equal(int32(2)))
		})
	})
})

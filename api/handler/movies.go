package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ddevcap/movie-catalog/omdb"
	"github.com/ddevcap/movie-catalog/store"
)

// MetadataSource resolves movies against OMDB. *omdb.Client implements it.
type MetadataSource interface {
	Search(ctx context.Context, term string, page int) ([]omdb.SearchResult, bool)
	Details(ctx context.Context, imdbID string) (*omdb.Details, bool)
}

// MoviesHandler serves the movie catalog.
type MoviesHandler struct {
	db     *store.Store
	source MetadataSource
}

func NewMoviesHandler(db *store.Store, source MetadataSource) *MoviesHandler {
	return &MoviesHandler{db: db, source: source}
}

type movieResponse struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	Year      string    `json:"year"`
	IMDbID    string    `json:"imdb_id"`
	Plot      *string   `json:"plot"`
	Poster    *string   `json:"poster"`
	CreatedAt time.Time `json:"created_at"`
}

func toMovieResponse(m *store.Movie) movieResponse {
	return movieResponse{
		ID:        m.ID,
		Title:     m.Title,
		Year:      m.Year,
		IMDbID:    m.IMDbID,
		Plot:      m.Plot,
		Poster:    m.Poster,
		CreatedAt: m.CreatedAt,
	}
}

type listMoviesQuery struct {
	Skip  int `form:"skip,default=0"   binding:"min=0"`
	Limit int `form:"limit,default=10" binding:"min=1,max=100"`
}

type movieListResponse struct {
	Items []movieResponse `json:"items"`
	Total int             `json:"total"`
	Skip  int             `json:"skip"`
	Limit int             `json:"limit"`
}

// ListMovies handles GET /movies?skip=&limit=.
func (h *MoviesHandler) ListMovies(c *gin.Context) {
	var q listMoviesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	total, err := h.db.CountMovies(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count movies"})
		return
	}
	movies, err := h.db.ListMovies(ctx, q.Skip, q.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list movies"})
		return
	}

	items := make([]movieResponse, len(movies))
	for i, m := range movies {
		items[i] = toMovieResponse(m)
	}
	c.JSON(http.StatusOK, movieListResponse{Items: items, Total: total, Skip: q.Skip, Limit: q.Limit})
}

// GetMovie handles GET /movies/:id.
func (h *MoviesHandler) GetMovie(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid movie ID"})
		return
	}

	m, err := h.db.GetMovie(c.Request.Context(), id)
	if err != nil {
		h.lookupFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, toMovieResponse(m))
}

// GetMovieByTitle handles GET /movies/title/:title. The first movie whose
// title contains the parameter, ignoring case, is returned.
func (h *MoviesHandler) GetMovieByTitle(c *gin.Context) {
	title := strings.TrimSpace(c.Param("title"))
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	m, err := h.db.FindMovieByTitle(c.Request.Context(), title)
	if err != nil {
		h.lookupFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, toMovieResponse(m))
}

func (h *MoviesHandler) lookupFailed(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Movie not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get movie"})
}

type createMovieRequest struct {
	IMDbID string `json:"imdb_id"`
	Title  string `json:"title"`
}

// CreateMovie handles POST /movies. The movie is resolved on OMDB, by IMDb id
// when one is given and otherwise by the first search hit for the title, and
// stored with its full details.
func (h *MoviesHandler) CreateMovie(c *gin.Context) {
	var req createMovieRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.IMDbID = strings.TrimSpace(req.IMDbID)
	req.Title = strings.TrimSpace(req.Title)
	if req.IMDbID == "" && req.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "imdb_id or title is required"})
		return
	}

	ctx := c.Request.Context()
	details, ok := h.resolve(ctx, req)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Movie not found in OMDB"})
		return
	}

	m, err := h.db.CreateMovie(ctx, details.NewMovie())
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "Movie already exists"})
			return
		}
		slog.Error("create movie failed", "error", err, "imdb_id", details.IMDbID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create movie"})
		return
	}
	c.JSON(http.StatusCreated, toMovieResponse(m))
}

func (h *MoviesHandler) resolve(ctx context.Context, req createMovieRequest) (*omdb.Details, bool) {
	imdbID := req.IMDbID
	if imdbID == "" {
		hits, ok := h.source.Search(ctx, req.Title, 1)
		if !ok || len(hits) == 0 || hits[0].IMDbID == "" {
			return nil, false
		}
		imdbID = hits[0].IMDbID
	}
	return h.source.Details(ctx, imdbID)
}

// DeleteMovie handles DELETE /movies/:id. Requires authentication.
func (h *MoviesHandler) DeleteMovie(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid movie ID"})
		return
	}

	if err := h.db.DeleteMovie(c.Request.Context(), id); err != nil {
		h.lookupFailed(c, err)
		return
	}
	if u := userFromCtx(c); u != nil {
		slog.Info("movie deleted", "id", id, "by", u.Username)
	}
	c.Status(http.StatusNoContent)
}

package handlers

import (
	"embed"
	"errors"
	"html/template"
	"log"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/image-posts/internal/models"
	"github.com/example/image-posts/internal/repository"
	"github.com/example/image-posts/internal/search"
	"github.com/example/image-posts/internal/service"
)

// MediaPrefix is the URL path stored covers are served under.
const MediaPrefix = "/media"

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses the embedded HTML pages.
func Templates() *template.Template {
	return template.Must(template.New("").Funcs(template.FuncMap{
		"mediaURL": MediaURL,
	}).ParseFS(templateFS, "templates/*.html"))
}

// MediaURL maps a stored cover path to the URL it is served at.
func MediaURL(cover string) string {
	return path.Join(MediaPrefix, cover)
}

type formValues struct {
	Title string
}

type pageData struct {
	Title  string
	Posts  []models.Post
	Form   formValues
	Errors map[string]string
	Error  string
}

type postJSON struct {
	ID         uint      `json:"id"`
	Title      string    `json:"title"`
	Cover      string    `json:"cover"`
	CoverURL   string    `json:"cover_url"`
	UploadedOn time.Time `json:"uploaded_on"`
}

type PostHandler struct {
	service *service.PostService
}

func NewPostHandler(svc *service.PostService) *PostHandler {
	return &PostHandler{service: svc}
}

// Home renders every post.
func (h *PostHandler) Home(c *gin.Context) {
	posts, err := h.service.ListPosts(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.HTML(http.StatusOK, "home.html", pageData{Title: "Posts", Posts: posts})
}

// NewPostForm renders an empty submission form.
func (h *PostHandler) NewPostForm(c *gin.Context) {
	c.HTML(http.StatusOK, "post.html", pageData{Title: "New post"})
}

// CreatePost accepts a multipart title + cover and redirects to the listing on success.
func (h *PostHandler) CreatePost(c *gin.Context) {
	title := c.PostForm("title")
	in := service.CreatePostInput{Title: title}

	fh, err := c.FormFile("cover")
	if err == nil {
		f, openErr := fh.Open()
		if openErr != nil {
			h.renderError(c, openErr)
			return
		}
		defer f.Close()
		in.CoverName, in.CoverSize, in.Cover = fh.Filename, fh.Size, f
	}

	_, err = h.service.CreatePost(c.Request.Context(), in)
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.HTML(http.StatusBadRequest, "post.html", pageData{
			Title:  "New post",
			Form:   formValues{Title: title},
			Errors: verr.Fields,
		})
	case err != nil:
		h.renderError(c, err)
	default:
		c.Redirect(http.StatusFound, "/")
	}
}

// ListPostsJSON is the machine-readable twin of Home.
func (h *PostHandler) ListPostsJSON(c *gin.Context) {
	posts, err := h.service.ListPosts(c.Request.Context())
	if err != nil {
		log.Printf("list posts: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	out := make([]postJSON, 0, len(posts))
	for _, p := range posts {
		out = append(out, toJSON(p))
	}
	c.JSON(http.StatusOK, out)
}

func (h *PostHandler) GetPostJSON(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	post, err := h.service.GetPost(c.Request.Context(), uint(id))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		log.Printf("get post %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, toJSON(*post))
}

func toJSON(p models.Post) postJSON {
	return postJSON{ID: p.ID, Title: p.Title, Cover: p.Cover, CoverURL: MediaURL(p.Cover), UploadedOn: p.UploadedOn}
}

func (h *PostHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}
	hits, err := h.service.SearchPosts(c.Request.Context(), q)
	if errors.Is(err, search.ErrDisabled) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		log.Printf("search %q: %v", q, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, hits)
}

// Health pings the database and reports the post count. Failures are logged;
// the response only says the database is unavailable.
func (h *PostHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()
	err := h.service.Ping(ctx)
	var n int64
	if err == nil {
		n, err = h.service.CountPosts(ctx)
	}
	if err != nil {
		log.Printf("health check: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "db_ok": false, "error": "database unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "db_ok": true, "posts_count": n})
}

func (h *PostHandler) renderError(c *gin.Context, err error) {
	log.Printf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	c.HTML(http.StatusInternalServerError, "error.html", pageData{Title: "Error", Error: "500 Internal Server Error"})
}

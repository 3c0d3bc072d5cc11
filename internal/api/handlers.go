package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	imagepkg "github.com/youruser/cardapp/internal/image"
	"github.com/youruser/cardapp/internal/storage"
	"github.com/youruser/cardapp/internal/textlayout"
	"github.com/youruser/cardapp/internal/util"
)

// Error kinds reported in the "kind" field of failure responses.
const (
	KindBadRequest      = "bad_request"
	KindEmptyTitle      = "empty_title"
	KindDecode          = "decode_error"
	KindFetch           = "fetch_error"
	KindInvalidGeometry = "invalid_geometry"
	KindTemplate        = "template_error"
	KindUpload          = "upload_error"
	KindInternal        = "internal_error"
)

// Handler carries what the card endpoint needs. Everything is built once at
// startup; each request renders independently.
type Handler struct {
	Template      imagepkg.Template
	OutputFormat  string
	Fetcher       *util.Fetcher
	Uploader      storage.Uploader
	MaxImageBytes int64
}

type requestError struct {
	status int
	kind   string
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, kind: KindBadRequest, msg: fmt.Sprintf(format, args...)}
}

// cardRequest is the photo and title a request supplies, however it was sent.
type cardRequest struct {
	imagepkg.Card
	Upload bool
}

// health
func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// qr endpoint returns a PNG of a QR for "text" query param
func qrHandler(c *gin.Context) {
	text := c.Query("text")
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required", "kind": KindBadRequest})
		return
	}
	size := 400
	if sizeStr := c.Query("size"); sizeStr != "" {
		if v, err := strconv.Atoi(sizeStr); err == nil && v > 0 && v <= 2048 {
			size = v
		}
	}
	b, err := imagepkg.GenerateQRPNG(text, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "kind": KindInternal})
		return
	}
	c.Data(http.StatusOK, "image/png", b)
}

// generateImage accepts either JSON {image_url, title, link, upload} or a
// multipart form with an image file, and answers with the card bytes or,
// when upload is requested, {"url": ...}.
func (h *Handler) generateImage(c *gin.Context) {
	req, err := h.readRequest(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	img, err := h.Template.Render(req.Card)
	if err != nil {
		h.fail(c, err)
		return
	}
	body, contentType, err := imagepkg.EncodeImage(img, h.OutputFormat)
	if err != nil {
		h.fail(c, err)
		return
	}

	if !req.Upload {
		c.Data(http.StatusOK, contentType, body)
		return
	}

	if !storage.Enabled(h.Uploader) {
		h.fail(c, &requestError{status: http.StatusBadRequest, kind: KindUpload, msg: storage.ErrDisabled.Error()})
		return
	}
	key := storage.NewKey(h.OutputFormat)
	url, err := h.Uploader.Upload(c.Request.Context(), key, body, contentType)
	if err != nil {
		logrus.WithError(err).WithField("key", key).Error("Failed to upload card")
		h.fail(c, &requestError{status: http.StatusBadGateway, kind: KindUpload, msg: "failed to upload image"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *Handler) readRequest(c *gin.Context) (*cardRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))
	var (
		req *cardRequest
		err error
	)
	switch mediaType {
	case "application/json":
		req, err = h.readJSON(c)
	case "multipart/form-data":
		req, err = h.readMultipart(c)
	default:
		return nil, &requestError{
			status: http.StatusUnsupportedMediaType,
			kind:   KindBadRequest,
			msg:    "body must be JSON or multipart/form-data",
		}
	}
	if err != nil {
		return nil, err
	}
	if up, ok := parseBool(c.Query("upload")); ok {
		req.Upload = up
	}
	return req, nil
}

func (h *Handler) readJSON(c *gin.Context) (*cardRequest, error) {
	var body struct {
		ImageURL string `json:"image_url"`
		Title    string `json:"title"`
		Link     string `json:"link"`
		Upload   bool   `json:"upload"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		return nil, badRequest("invalid JSON body: %v", err)
	}
	if body.ImageURL == "" || body.Title == "" {
		return nil, badRequest("image_url and title are required")
	}

	photo, err := imagepkg.DownloadImage(c.Request.Context(), h.Fetcher, body.ImageURL)
	if err != nil {
		return nil, err
	}
	return &cardRequest{
		Card:   imagepkg.Card{Photo: photo, Title: body.Title, Link: body.Link},
		Upload: body.Upload,
	}, nil
}

func (h *Handler) readMultipart(c *gin.Context) (*cardRequest, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		if fh, err = c.FormFile("file"); err != nil {
			return nil, badRequest("image file is required")
		}
	}
	if h.MaxImageBytes > 0 && fh.Size > h.MaxImageBytes {
		return nil, badRequest("image exceeds %d bytes", h.MaxImageBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, badRequest("cannot read image: %v", err)
	}
	defer f.Close()
	photo, err := io.ReadAll(f)
	if err != nil {
		return nil, badRequest("cannot read image: %v", err)
	}

	title := c.PostForm("title")
	if title == "" {
		return nil, badRequest("title is required")
	}
	upload, _ := parseBool(c.PostForm("upload"))
	return &cardRequest{
		Card:   imagepkg.Card{Photo: photo, Title: title, Link: c.PostForm("link")},
		Upload: upload,
	}, nil
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, kind := classify(err)
	entry := logrus.WithError(err).WithFields(logrus.Fields{"kind": kind, "status": status})
	if status >= 500 {
		entry.Error("Failed to generate image")
	} else {
		entry.Warn("Rejected image request")
	}
	c.JSON(status, gin.H{"error": err.Error(), "kind": kind})
}

func classify(err error) (int, string) {
	var re *requestError
	switch {
	case errors.As(err, &re):
		return re.status, re.kind
	case errors.Is(err, textlayout.ErrEmptyTitle):
		return http.StatusBadRequest, KindEmptyTitle
	case errors.Is(err, imagepkg.ErrDecode):
		return http.StatusUnprocessableEntity, KindDecode
	case errors.Is(err, util.ErrFetch):
		return http.StatusBadGateway, KindFetch
	case errors.Is(err, imagepkg.ErrInvalidGeometry):
		return http.StatusInternalServerError, KindInvalidGeometry
	case errors.Is(err, imagepkg.ErrTemplate):
		return http.StatusInternalServerError, KindTemplate
	}
	return http.StatusInternalServerError, KindInternal
}

func parseBool(s string) (bool, bool) {
	if s = strings.TrimSpace(s); s == "" {
		return false, false
	}
	b, err := strconv.ParseBool(s)
	return b, err == nil
}

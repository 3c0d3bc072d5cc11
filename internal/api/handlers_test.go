package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"

	imagepkg "github.com/youruser/cardapp/internal/image"
	"github.com/youruser/cardapp/internal/storage"
	"github.com/youruser/cardapp/internal/textlayout"
	"github.com/youruser/cardapp/internal/util"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeUploader struct {
	keys []string
	err  error
}

func (f *fakeUploader) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	return "https://cdn.example.com/" + key, nil
}

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, imaging.New(w, h, c)); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	path := filepath.Join(t.TempDir(), "template.png")
	if err := imaging.Save(imaging.New(270, 340, color.NRGBA{R: 30, G: 30, B: 30, A: 255}), path); err != nil {
		t.Fatal(err)
	}
	return &Handler{
		Template: imagepkg.Template{
			BackgroundPath: path,
			Photo:          imagepkg.Region{Width: 270, Height: 211},
			Policy:         imagepkg.Cover,
			Text:           textlayout.Box{X: 15, Y: 218, Width: 240, Height: 80},
			TextColor:      color.White,
			Layout:         textlayout.Options{MaxFontSize: 40, MinFontSize: 10, MaxLines: 4, LineSpacing: 0.25},
		},
		OutputFormat:  "png",
		Fetcher:       util.NewFetcher(2*time.Second, 1<<20),
		Uploader:      storage.Disabled{},
		MaxImageBytes: 1 << 20,
	}
}

func photoServer(t *testing.T) *httptest.Server {
	t.Helper()
	photo := pngBytes(t, 100, 60, color.NRGBA{R: 255, A: 255})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/photo.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(photo)
		case "/text":
			w.Write([]byte("not an image"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func postForm(t *testing.T, r http.Handler, fields map[string]string, fileField string, file []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, "photo.png")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(file)
	}
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/generate-image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	if resp.Error == "" {
		t.Error("error message is empty")
	}
	return resp.Kind
}

func decodePNG(t *testing.T, b []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("response is not a PNG: %v", err)
	}
	return img
}

func TestGenerateImageFromURL(t *testing.T) {
	srv := photoServer(t)
	r := NewRouter(newTestHandler(t))

	for _, path := range []string{"/generate-image", "/api/generate-image"} {
		rec := postJSON(t, r, path, map[string]any{"image_url": srv.URL + "/photo.png", "title": "Hola Mundo"})
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d: %s", path, rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
			t.Errorf("Content-Type = %q", ct)
		}
		img := decodePNG(t, rec.Body.Bytes())
		if img.Bounds().Dx() != 270 || img.Bounds().Dy() != 340 {
			t.Errorf("bounds = %v, want template size", img.Bounds())
		}
		c := color.NRGBAModel.Convert(img.At(135, 100)).(color.NRGBA)
		if c.R < 250 || c.G > 5 {
			t.Errorf("photo pixel = %v, want red", c)
		}
	}
}

func TestGenerateImageFromUpload(t *testing.T) {
	r := NewRouter(newTestHandler(t))
	photo := pngBytes(t, 50, 200, color.NRGBA{B: 255, A: 255})

	for _, field := range []string{"image", "file"} {
		rec := postForm(t, r, map[string]string{"title": "Una noticia importante"}, field, photo)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d: %s", field, rec.Code, rec.Body.String())
		}
		decodePNG(t, rec.Body.Bytes())
	}
}

func TestGenerateImageUploadsToStorage(t *testing.T) {
	h := newTestHandler(t)
	up := &fakeUploader{}
	h.Uploader = up
	r := NewRouter(h)
	srv := photoServer(t)

	rec := postJSON(t, r, "/api/generate-image", map[string]any{
		"image_url": srv.URL + "/photo.png",
		"title":     "Hola Mundo",
		"upload":    true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(up.keys) != 1 || !strings.HasSuffix(up.keys[0], ".png") {
		t.Fatalf("keys = %v", up.keys)
	}
	if resp.URL != "https://cdn.example.com/"+up.keys[0] {
		t.Errorf("url = %q", resp.URL)
	}

	// query flag on a multipart request
	req := postForm(t, r, map[string]string{"title": "x", "upload": "true"}, "image", pngBytes(t, 10, 10, color.White))
	if req.Code != http.StatusOK || len(up.keys) != 2 {
		t.Errorf("multipart upload: status %d, keys %v", req.Code, up.keys)
	}
}

func TestGenerateImageErrors(t *testing.T) {
	srv := photoServer(t)

	cases := []struct {
		name   string
		setup  func(h *Handler)
		send   func(t *testing.T, r http.Handler) *httptest.ResponseRecorder
		status int
		kind   string
	}{
		{
			name: "missing title",
			send: func(t *testing.T, r http.Handler) *httptest.ResponseRecorder {
				return postJSON(t, r, "/api/generate-image", map[string]any{"image_url": srv.URL + "/photo.png"})
			},
			status: http.StatusBadRequest, kind: KindBadRequest,
		},
		{
			name: "whitespace title",
			send: func(t *testing.T, r http.Handler) *httptest.ResponseRecorder {
				return postJSON(t, r, "/api/generate-image", map[string]any{"image_url": srv.URL + "/photo.png", "title": "   "})
			},
			status: http.StatusBadRequest, kind: KindEmptyTitle,
		},
		{
			name: "photo not found",
			send: func(t *testing.T, r http.Handler) *httptest.ResponseRecorder {
				return postJSON(t, r, "/api/generate-image", map[string]any{"image_url": srv.URL + "/gone.png", "title": "x"})
			},
			status: http.StatusBadGateway, kind: KindFetch,
		},
		{
			name: "url is not an image",
			send: func(t *testing.T, r http.Handler) *httptest.ResponseRecorder {
				return postJSON(t, r, "/api/generate-image", map[string]any{"image_url": srv.URL + "/text", "title": "x"})
			},
			status: http.StatusUnprocessableEntity, kind: KindDecode,
		},
		{
			name: "uploaded file is not an image",
			send: func(t *testing.T, r http.Handler) *httptest.ResponseRecorder {
				return postForm(t, r, map[string]string{"title": "x"}, "image", []byte("garbage"))
			},
			status: http.StatusUnprocessableEntity, kind: KindDecode,
		},
		{
			name: "multipart without file",
			send: func(t *testing.T, r http.Handler) *httptest.ResponseRecorder {
				return postForm(t, r, map[string]string{"title": "x"}, "", nil)
			},
			status: http.StatusBadRequest, kind: KindBadRequest,
		},
		{
			name: "plain text body",
			send: func(t *testing.T, r http.Handler) *httptest.ResponseRecorder {
				req := httptest.NewRequest(http.MethodPost, "/api/generate-image", strings.NewReader("hi"))
				req.Header.Set("Content-Type", "text/plain")
				rec := httptest.NewRecorder()
				r.ServeHTTP(rec, req)
				return rec
			},
			status: http.StatusUnsupportedMediaType, kind: KindBadRequest,
		},
		{
			name: "upload without storage",
			send: func(t *testing.T, r http.Handler) *httptest.ResponseRecorder {
				return postJSON(t, r, "/api/generate-image?upload=1", map[string]any{"image_url": srv.URL + "/photo.png", "title": "x"})
			},
			status: http.StatusBadRequest, kind: KindUpload,
		},
		{
			name:  "storage failure",
			setup: func(h *Handler) { h.Uploader = &fakeUploader{err: errors.New("bucket gone")} },
			send: func(t *testing.T, r http.Handler) *httptest.ResponseRecorder {
				return postJSON(t, r, "/api/generate-image", map[string]any{"image_url": srv.URL + "/photo.png", "title": "x", "upload": true})
			},
			status: http.StatusBadGateway, kind: KindUpload,
		},
		{
			name:  "missing template",
			setup: func(h *Handler) { h.Template.BackgroundPath = "/nonexistent/template.png" },
			send: func(t *testing.T, r http.Handler) *httptest.ResponseRecorder {
				return postJSON(t, r, "/api/generate-image", map[string]any{"image_url": srv.URL + "/photo.png", "title": "x"})
			},
			status: http.StatusInternalServerError, kind: KindTemplate,
		},
		{
			name:  "misconfigured region",
			setup: func(h *Handler) { h.Template.Photo = imagepkg.Region{Width: 0, Height: 10} },
			send: func(t *testing.T, r http.Handler) *httptest.ResponseRecorder {
				return postJSON(t, r, "/api/generate-image", map[string]any{"image_url": srv.URL + "/photo.png", "title": "x"})
			},
			status: http.StatusInternalServerError, kind: KindInvalidGeometry,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(t)
			if tc.setup != nil {
				tc.setup(h)
			}
			rec := tc.send(t, NewRouter(h))
			if rec.Code != tc.status {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tc.status, rec.Body.String())
			}
			if kind := errorKind(t, rec); kind != tc.kind {
				t.Errorf("kind = %q, want %q", kind, tc.kind)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	r := NewRouter(newTestHandler(t))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("health: %d %s", rec.Code, rec.Body.String())
	}
}

func TestQR(t *testing.T) {
	r := NewRouter(newTestHandler(t))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/qr?text=hello&size=120", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if img := decodePNG(t, rec.Body.Bytes()); img.Bounds().Dx() != 120 {
		t.Errorf("width = %d, want 120", img.Bounds().Dx())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/qr", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing text: status %d", rec.Code)
	}
}

package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tigerpop/marketplace/internal/storage"
)

// maxUploadBytes caps a single image upload at 10 MiB.
const maxUploadBytes = 10 << 20

// UploadHandler accepts multipart image uploads and stores them in the
// object store, returning public URLs for use in listing payloads.
type UploadHandler struct {
	Store *storage.ImageStore
}

func NewUploadHandler(s *storage.ImageStore) *UploadHandler {
	return &UploadHandler{Store: s}
}

// Upload reads every file in the multipart "images" field (falling back
// to "file" for single uploads) and returns the stored URLs in order.
func (h *UploadHandler) Upload(c echo.Context) error {
	if _, ok := currentUser(c); !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "multipart form required"})
	}
	files := form.File["images"]
	if len(files) == 0 {
		files = form.File["file"]
	}
	if len(files) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no files submitted"})
	}

	urls := make([]string, 0, len(files))
	for _, fh := range files {
		if fh.Size > maxUploadBytes {
			return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "file too large"})
		}
		ct := fh.Header.Get("Content-Type")
		if !strings.HasPrefix(ct, "image/") {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "only image uploads are accepted"})
		}

		src, err := fh.Open()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "read upload failed"})
		}
		data, err := io.ReadAll(io.LimitReader(src, maxUploadBytes+1))
		src.Close()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "read upload failed"})
		}
		if len(data) > maxUploadBytes {
			return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "file too large"})
		}

		url, err := h.Store.Upload(c.Request().Context(), fh.Filename, ct, data)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store upload failed"})
		}
		urls = append(urls, url)
	}

	return c.JSON(http.StatusCreated, echo.Map{"urls": urls})
}

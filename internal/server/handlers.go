package server

import (
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/shpitdev/company-enricher/internal/enrich"
	"github.com/shpitdev/company-enricher/pkg/pipeline/redact"
)

func (s *Server) health(c echo.Context) error {
	s.logger.Debug("health check requested")
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// upload saves the multipart field "file" under UploadDir/<uuid>/, runs the pipeline
// on it, and removes the upload. The enriched output stays next to it.
func (s *Server) upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Missing multipart field 'file'")
	}
	if !strings.HasSuffix(fh.Filename, ".csv") {
		return echo.NewHTTPError(http.StatusBadRequest, "Only CSV files are allowed")
	}
	name := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(fh.Filename, `\`, "/")))
	if name == "/" || name == "." {
		return echo.NewHTTPError(http.StatusBadRequest, "Only CSV files are allowed")
	}

	dir := filepath.Join(s.uploadDir, uuid.NewString())
	path := filepath.Join(dir, name)
	if err := save(fh, dir, path); err != nil {
		s.logger.Error("error saving file", "path", path, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Could not save the file")
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove upload", "path", path, "error", err)
		}
	}()

	res, err := s.runner.Run(c.Request().Context(), path)
	if err != nil {
		detail := redact.Secrets(err.Error())
		s.logger.Error("error processing file", "error_type", enrich.KindOf(err).String(), "error", detail)
		return echo.NewHTTPError(http.StatusInternalServerError, detail)
	}
	return c.JSON(http.StatusOK, map[string]any{"result": res})
}

func save(fh *multipart.FileHeader, dir, path string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer func() {
		_ = src.Close()
	}()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		return err
	}
	return dst.Close()
}

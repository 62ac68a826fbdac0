package server

import (
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pdfebc/pdfebc-web/internal/compression"
	"github.com/pdfebc/pdfebc-web/internal/engine/sinks"
	"github.com/pdfebc/pdfebc-web/internal/runner"
	"github.com/pdfebc/pdfebc-web/internal/staging"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const uploadField = "upload"

func (s *Server) index(c echo.Context) error {
	p, err := s.sessionPage(sessionID(c))
	if err != nil {
		return err
	}
	p.Flash = popFlash(c)
	return c.Render(http.StatusOK, "index.html", p)
}

func (s *Server) about(c echo.Context) error {
	return c.Render(http.StatusOK, "about.html", page{
		Title:          "About",
		WebRepository:  webRepository,
		CoreRepository: coreRepository,
	})
}

func (s *Server) healthz(c echo.Context) error {
	if s.health != nil {
		if err := s.health(c.Request().Context()); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			return c.String(http.StatusServiceUnavailable, "unhealthy")
		}
	}
	return c.String(http.StatusOK, "ok")
}

func (s *Server) upload(c echo.Context) error {
	id := sessionID(c)

	form, err := c.MultipartForm()
	if err != nil {
		return s.renderError(c, http.StatusBadRequest, "No file selected!")
	}

	files := lo.Filter(form.File[uploadField], func(fh *multipart.FileHeader, _ int) bool {
		return fh.Filename != ""
	})
	if len(files) == 0 {
		return s.renderError(c, http.StatusBadRequest, "No file selected!")
	}

	for _, fh := range files {
		if !strings.EqualFold(filepath.Ext(fh.Filename), compression.DefaultExtension) {
			return s.renderError(c, http.StatusBadRequest, fmt.Sprintf("%s is not a PDF file", fh.Filename))
		}
	}

	if s.store.IsProcessing(id) {
		return s.renderError(c, http.StatusConflict, "Your files are being compressed, please wait.")
	}

	saved := make([]string, 0, len(files))
	taken := make(map[string]bool, len(files))
	for _, fh := range files {
		name := staging.UniqueName(staging.UploadName(fh.Filename, compression.DefaultExtension), taken)
		taken[name] = true

		stored, err := s.saveUpload(id, name, fh)
		if err != nil {
			if errors.Is(err, staging.ErrInvalidFilename) {
				return s.renderError(c, http.StatusBadRequest, fmt.Sprintf("%s is not a valid file name", fh.Filename))
			}
			return fmt.Errorf("failed to store upload %s: %w", fh.Filename, err)
		}
		saved = append(saved, stored)
	}

	s.logger.Info("stored uploads", zap.String("session_id", id), zap.Strings("files", saved))
	setFlash(c, fmt.Sprintf("Uploaded %d file(s)", len(saved)))
	return c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) saveUpload(id, name string, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	return s.store.Save(id, name, f)
}

// compress runs the whole batch while the client waits and streams the archive back.
func (s *Server) compress(c echo.Context) error {
	ctx := c.Request().Context()
	id := sessionID(c)

	download, err := s.workflow.CompressToArchive(ctx, id, func(msg string) error {
		s.logger.Debug(msg, zap.String("session_id", id))
		return nil
	})
	switch {
	case errors.Is(err, runner.ErrNothingStaged):
		return s.renderError(c, http.StatusBadRequest, "There are no files to compress.")
	case errors.Is(err, staging.ErrAlreadyProcessing):
		return s.renderError(c, http.StatusConflict, "Your files are already being compressed.")
	case err != nil:
		s.logger.Error("compression failed", zap.String("session_id", id), zap.Error(err))
		return s.renderError(c, http.StatusInternalServerError, "Compression failed, your files were kept.")
	}
	defer download.Release()

	f, err := s.store.Fs().Open(download.Path)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	name := filepath.Base(download.Path)
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, archiveContentType(name))
	res.Header().Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	res.WriteHeader(http.StatusOK)

	sink := sinks.NewStreamSink(res)
	if err := sink.Write(ctx, name, f); err != nil {
		return err
	}
	if err := sink.Close(ctx); err != nil {
		return err
	}

	if err := download.Finish(); err != nil {
		s.logger.Warn("failed to delete session directory", zap.String("session_id", id), zap.Error(err))
	}
	s.logger.Info("sent archive", zap.String("session_id", id), zap.Int64("bytes", sink.Written()))
	return nil
}

// compressEmail queues the batch for a worker and moves the browser to a fresh session.
func (s *Server) compressEmail(c echo.Context) error {
	ctx := c.Request().Context()
	id := sessionID(c)

	if s.dispatcher == nil || !s.workflow.CanDeliver() {
		return s.renderError(c, http.StatusConflict, "Delivery is not configured on this server.")
	}

	staged, err := s.workflow.Staged(id)
	if err != nil {
		return err
	}
	if len(staged) == 0 {
		return s.renderError(c, http.StatusConflict, "There are no files to compress.")
	}
	if s.store.IsProcessing(id) {
		return s.renderError(c, http.StatusConflict, "Your files are already being compressed.")
	}

	if err := s.dispatcher.Submit(ctx, runner.CompressAndDeliverTask, id); err != nil {
		s.logger.Error("failed to queue compression", zap.String("session_id", id), zap.Error(err))
		return s.renderError(c, http.StatusInternalServerError, "Could not queue your files, please try again.")
	}

	rotateSession(c)
	return c.Render(http.StatusAccepted, "queued.html", page{Title: "Queued", Count: len(staged)})
}

func (s *Server) clear(c echo.Context) error {
	id := sessionID(c)

	if s.store.IsProcessing(id) {
		return s.renderError(c, http.StatusConflict, "Your files are being compressed, please wait.")
	}

	if err := s.store.Delete(id); err != nil && !errors.Is(err, staging.ErrNotFound) {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	setFlash(c, "Cleared uploaded files")
	return c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) sessionPage(id string) (page, error) {
	files, err := s.workflow.Staged(id)
	if err != nil {
		return page{}, fmt.Errorf("failed to list uploads: %w", err)
	}

	return page{
		Files:      files,
		Processing: s.store.IsProcessing(id),
		CanDeliver: s.dispatcher != nil && s.workflow.CanDeliver(),
		HasArchive: s.store.HasArchive(id),
	}, nil
}

// renderError re-renders the index page with an inline error.
func (s *Server) renderError(c echo.Context, code int, msg string) error {
	p, err := s.sessionPage(sessionID(c))
	if err != nil {
		return err
	}
	p.Error = msg
	return c.Render(code, "index.html", p)
}

func archiveContentType(name string) string {
	switch {
	case strings.HasSuffix(name, ".tgz"), strings.HasSuffix(name, ".gz"):
		return "application/gzip"
	case strings.HasSuffix(name, ".zst"):
		return "application/zstd"
	case strings.HasSuffix(name, ".tar"):
		return "application/x-tar"
	default:
		return echo.MIMEOctetStream
	}
}

package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/unified-tts/domain/entities"
	"github.com/satriahrh/unified-tts/internal/auth"
)

const outputsPrefix = "/outputs/"

// Handler serves the login flow, the synthesis form and its JSON API
type Handler struct {
	guard    *auth.Guard
	sessions *auth.SessionIssuer
	synth    Synthesizer
	opts     Options
	logger   *zap.Logger
}

// NewHandler creates a new handler
func NewHandler(guard *auth.Guard, sessions *auth.SessionIssuer, synth Synthesizer, opts Options, logger *zap.Logger) *Handler {
	return &Handler{
		guard:    guard,
		sessions: sessions,
		synth:    synth,
		opts:     opts,
		logger:   logger,
	}
}

// InitRoutes initializes all routes and the HTML renderer
func InitRoutes(e *echo.Echo, h *Handler) error {
	renderer, err := NewRenderer()
	if err != nil {
		return err
	}
	e.Renderer = renderer

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "unified-tts",
		})
	})

	e.GET("/login", h.loginForm)
	e.POST("/login", h.login)
	e.POST("/logout", h.logout)

	// Browser pages
	e.GET("/", h.index, h.requirePageSession)
	e.POST("/synthesize", h.synthesizePage, h.requirePageSession)

	// API v1 routes
	v1 := e.Group("/api/v1", h.requireAPISession())
	v1.GET("/engines", h.listEngines)
	v1.POST("/synthesize", h.synthesizeAPI)

	e.GET(outputsPrefix+":name", h.serveOutput, h.requireAPISession())

	return nil
}

func (h *Handler) loginForm(c echo.Context) error {
	if !h.guard.Enabled() || h.sessionUser(c) != "" {
		return c.Redirect(http.StatusSeeOther, "/")
	}
	return c.Render(http.StatusOK, "login.html", loginPage{Message: h.opts.AuthMessage})
}

func (h *Handler) login(c echo.Context) error {
	if !h.guard.Enabled() {
		return c.Redirect(http.StatusSeeOther, "/")
	}

	username := c.FormValue("username")
	password := c.FormValue("password")

	if !h.guard.Verify(username, password) {
		return c.Render(http.StatusUnauthorized, "login.html", loginPage{
			Message:  h.opts.AuthMessage,
			Username: username,
			Error:    "Invalid username or password",
		})
	}

	token, expiresAt, err := h.sessions.Issue(username)
	if err != nil {
		h.logger.Error("Failed to issue session token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to start session",
		})
	}

	h.setSessionCookie(c, token, expiresAt)
	return c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) logout(c echo.Context) error {
	h.clearSessionCookie(c)
	return c.Redirect(http.StatusSeeOther, "/login")
}

func (h *Handler) index(c echo.Context) error {
	page := h.newPage(c, entities.NewSynthesisRequest(entities.EngineF5TTS))
	return c.Render(http.StatusOK, "index.html", page)
}

func (h *Handler) synthesizePage(c echo.Context) error {
	req, cleanup, err := h.bindSynthesisRequest(c)
	defer cleanup()

	page := h.newPage(c, req)
	if err != nil {
		page.Error = err.Error()
		return c.Render(http.StatusBadRequest, "index.html", page)
	}

	result, err := h.synth.Synthesize(c.Request().Context(), req)
	if err != nil {
		page.Error = err.Error()
		return c.Render(synthesisErrorStatus(err), "index.html", page)
	}

	page.Result = newSynthesisResponse(result)
	return c.Render(http.StatusOK, "index.html", page)
}

func (h *Handler) listEngines(c echo.Context) error {
	return c.JSON(http.StatusOK, EnginesResponse{Engines: h.synth.Engines()})
}

func (h *Handler) synthesizeAPI(c echo.Context) error {
	req, cleanup, err := h.bindSynthesisRequest(c)
	defer cleanup()

	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
	}

	result, err := h.synth.Synthesize(c.Request().Context(), req)
	if err != nil {
		status := synthesisErrorStatus(err)
		code := "synthesis_failed"
		if status == http.StatusBadRequest {
			code = "invalid_request"
		}
		return c.JSON(status, ErrorResponse{
			Error:   code,
			Message: err.Error(),
		})
	}

	h.logger.Info("Synthesis served",
		zap.String("user", currentUser(c)),
		zap.String("engine", string(result.Engine)),
		zap.String("file", result.FileName))

	return c.JSON(http.StatusOK, newSynthesisResponse(result))
}

func (h *Handler) serveOutput(c echo.Context) error {
	name, err := url.PathUnescape(c.Param("name"))
	if err != nil || !isPlainFileName(name) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_name",
			Message: "Invalid output file name",
		})
	}

	path := filepath.Join(h.synth.OutputDir(), name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Output not found",
		})
	}

	return c.File(path)
}

func (h *Handler) newPage(c echo.Context, req entities.SynthesisRequest) indexPage {
	page := newIndexPage(req)
	page.AuthEnabled = h.guard.Enabled()
	page.Username = currentUser(c)
	page.Engines = h.synth.Engines()
	return page
}

// bindSynthesisRequest reads the multipart synthesis form. Uploaded audio is
// staged in the upload directory; the returned cleanup removes it and is
// always safe to call.
func (h *Handler) bindSynthesisRequest(c echo.Context) (entities.SynthesisRequest, func(), error) {
	var staged []string
	cleanup := func() {
		for _, path := range staged {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				h.logger.Warn("Failed to remove upload", zap.String("path", path), zap.Error(err))
			}
		}
	}

	engine := entities.EngineF5TTS
	if raw := c.FormValue("engine"); raw != "" {
		parsed, err := entities.ParseEngineID(raw)
		if err != nil {
			return entities.NewSynthesisRequest(engine), cleanup, err
		}
		engine = parsed
	}

	req := entities.NewSynthesisRequest(engine)
	req.RefText = c.FormValue("ref_text")
	req.GenText = c.FormValue("gen_text")

	var err error
	if req.F5.RemoveSilence, err = formBool(c, "remove_silence", req.F5.RemoveSilence); err != nil {
		return req, cleanup, err
	}
	if req.F5.Speed, err = formFloat(c, "speed", req.F5.Speed); err != nil {
		return req, cleanup, err
	}
	if req.F5.NFESteps, err = formInt(c, "nfe_steps", req.F5.NFESteps); err != nil {
		return req, cleanup, err
	}
	if req.Index.EmoAlpha, err = formFloat(c, "emo_alpha", req.Index.EmoAlpha); err != nil {
		return req, cleanup, err
	}
	for i, label := range entities.EmotionLabels {
		if req.Index.Emotion[i], err = formFloat(c, "emo_"+label, req.Index.Emotion[i]); err != nil {
			return req, cleanup, err
		}
	}

	if req.RefAudio, err = h.stageUpload(c, "ref_audio"); err != nil {
		return req, cleanup, err
	}
	if req.RefAudio != "" {
		staged = append(staged, req.RefAudio)
	}

	if req.Index.EmoAudio, err = h.stageUpload(c, "emo_audio"); err != nil {
		return req, cleanup, err
	}
	if req.Index.EmoAudio != "" {
		staged = append(staged, req.Index.EmoAudio)
	}

	return req, cleanup, nil
}

// stageUpload copies an uploaded file to the upload directory under a fresh
// name. A missing field yields "".
func (h *Handler) stageUpload(c echo.Context, field string) (string, error) {
	header, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", nil
		}
		return "", fmt.Errorf("read %s: %w", field, err)
	}

	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", field, err)
	}
	defer src.Close()

	path := filepath.Join(h.synth.UploadDir(), uuid.NewString()+uploadExt(header))
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("stage %s: %w", field, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("stage %s: %w", field, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("stage %s: %w", field, err)
	}

	return path, nil
}

func uploadExt(header *multipart.FileHeader) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(header.Filename)))
	if len(ext) < 2 || len(ext) > 6 {
		return ".wav"
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ".wav"
		}
	}
	return ext
}

func formBool(c echo.Context, name string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(c.FormValue(name))
	if raw == "" {
		return fallback, nil
	}
	if raw == "on" {
		return true, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback, fmt.Errorf("%w: %s must be a boolean, got %q", entities.ErrInvalidParameter, name, raw)
	}
	return v, nil
}

func formFloat(c echo.Context, name string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(c.FormValue(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback, fmt.Errorf("%w: %s must be a number, got %q", entities.ErrInvalidParameter, name, raw)
	}
	return v, nil
}

func formInt(c echo.Context, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(c.FormValue(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback, fmt.Errorf("%w: %s must be an integer, got %q", entities.ErrInvalidParameter, name, raw)
	}
	return v, nil
}

func isPlainFileName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}

// synthesisErrorStatus maps request problems to 400 and engine failures to 502.
func synthesisErrorStatus(err error) int {
	switch {
	case errors.Is(err, entities.ErrUnknownEngine),
		errors.Is(err, entities.ErrMissingRefAudio),
		errors.Is(err, entities.ErrEmptyText),
		errors.Is(err, entities.ErrInvalidParameter):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func newSynthesisResponse(result *entities.SynthesisResult) *SynthesisResponse {
	return &SynthesisResponse{
		File:    result.FileName,
		URL:     outputsPrefix + url.PathEscape(result.FileName),
		Engine:  result.Engine,
		Info:    result.Info,
		Emotion: result.Emotion,
	}
}

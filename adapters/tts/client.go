package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/unified-tts/domain/entities"
)

const (
	defaultTimeout = 5 * time.Minute // Inference on CPU can be slow
	healthTimeout  = 10 * time.Second
	inferPath      = "/infer"
	healthPath     = "/health"
	maxErrorBody   = 4096
)

// RuntimeOptions are hints forwarded to the inference servers
type RuntimeOptions struct {
	UseCPU       bool
	UseFP16      bool
	UseDeepSpeed bool
}

// Device returns the torch device name the engine should use.
func (r RuntimeOptions) Device() string {
	if r.UseCPU {
		return "cpu"
	}
	return "cuda"
}

// engineClient talks to an HTTP inference server wrapping one engine.
// The server exposes GET /health and POST /infer; /infer takes a multipart
// form with a "params" JSON field plus audio files and answers with WAV bytes.
type engineClient struct {
	name       string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func newEngineClient(name, baseURL string, timeout time.Duration, logger *zap.Logger) *engineClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &engineClient{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func validateEngineURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s URL is required", name)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s URL %q: %w", name, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s URL must be http or https, got %q", name, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s URL has no host: %q", name, raw)
	}

	return nil
}

// checkHealth fails with entities.ErrEngineUnavailable unless the server answers 200.
func (c *engineClient) checkHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %s health check: %v", entities.ErrEngineUnavailable, c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: %s health check returned %d: %s",
			entities.ErrEngineUnavailable, c.name, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	c.logger.Debug("Engine is healthy", zap.String("engine", c.name), zap.String("url", c.baseURL))
	return nil
}

// infer posts params and files to the server and writes the returned audio to outputPath.
// files maps form field names to local paths; empty paths are skipped.
func (c *engineClient) infer(ctx context.Context, params interface{}, files map[string]string, outputPath string) error {
	body, contentType, err := buildInferForm(params, files)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+inferPath, body)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "audio/wav")

	start := time.Now()
	c.logger.Debug("Sending inference request", zap.String("engine", c.name), zap.String("url", httpReq.URL.String()))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to execute %s request: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Error("Engine returned error",
			zap.String("engine", c.name),
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(errorBody)))
		return fmt.Errorf("%s returned error %d: %s", c.name, resp.StatusCode, strings.TrimSpace(string(errorBody)))
	}

	written, err := writeFileAtomic(outputPath, resp.Body)
	if err != nil {
		return err
	}
	if written == 0 {
		os.Remove(outputPath)
		return fmt.Errorf("%s returned empty audio", c.name)
	}

	c.logger.Info("Received audio from engine",
		zap.String("engine", c.name),
		zap.Int64("bytes", written),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("output", outputPath))

	return nil
}

func buildInferForm(params interface{}, files map[string]string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal params: %w", err)
	}
	if err := writer.WriteField("params", string(paramsJSON)); err != nil {
		return nil, "", fmt.Errorf("write params: %w", err)
	}

	for field, path := range files {
		if path == "" {
			continue
		}
		if err := attachFile(writer, field, path); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

func attachFile(writer *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", field, err)
	}
	defer f.Close()

	part, err := writer.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}

	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("write %s: %w", field, err)
	}

	return nil
}

// writeFileAtomic streams r into path via a temporary file in the same directory.
func writeFileAtomic(path string, r io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("write output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close output file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("rename output file: %w", err)
	}

	return n, nil
}

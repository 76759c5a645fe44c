package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"smartscan/internal/database"
	"smartscan/internal/handlers"
	"smartscan/internal/parser"
)

// Client represents an HTTP client for the SmartScan API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return NewClientWithTimeout(baseURL, 60*time.Second)
}

// NewClientWithTimeout creates a new API client with a custom timeout
func NewClientWithTimeout(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// APIError represents an error from the API
type APIError struct {
	Code   int    `json:"-"`
	Detail string `json:"detail"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Code, e.Detail)
}

// doRequest performs an HTTP request and handles errors
func (c *Client) doRequest(method, path string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	contentType := ""
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
		contentType = "application/json"
	}

	return c.send(method, path, contentType, reqBody)
}

func (c *Client) send(method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	// Handle API errors
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()

		apiErr := APIError{Code: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Detail == "" {
			apiErr.Detail = resp.Status
		}
		return nil, &apiErr
	}

	return resp, nil
}

func decode[T any](resp *http.Response) (*T, error) {
	defer resp.Body.Close()

	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &v, nil
}

// HealthCheck checks if the API server is healthy
func (c *Client) HealthCheck() error {
	resp, err := c.doRequest("GET", "/api/health", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

// UploadScan sends a photo of a container door to the server
func (c *Client) UploadScan(path string) (*handlers.UploadResponse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filepath.Base(path)))
	header.Set("Content-Type", imageContentType(path, data))

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}

	resp, err := c.send("POST", "/api/scan", writer.FormDataContentType(), &body)
	if err != nil {
		return nil, err
	}
	return decode[handlers.UploadResponse](resp)
}

// imageContentType prefers the extension and falls back to sniffing the bytes
func imageContentType(path string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}

// ScanText runs the extraction core on the server against already-recognized text
func (c *Client) ScanText(text string) (*parser.ProcessResult, error) {
	resp, err := c.doRequest("POST", "/api/scan/text", handlers.TextRequest{Text: text})
	if err != nil {
		return nil, err
	}
	return decode[parser.ProcessResult](resp)
}

// Validate asks the server to repair and check a single container ID
func (c *Client) Validate(containerID string) (*handlers.ValidateResponse, error) {
	resp, err := c.doRequest("POST", "/api/validate", handlers.ValidateRequest{ContainerID: containerID})
	if err != nil {
		return nil, err
	}
	return decode[handlers.ValidateResponse](resp)
}

// ListScans returns the most recent scans; limit <= 0 uses the server default
func (c *Client) ListScans(limit int) (*handlers.ScanListResponse, error) {
	path := "/api/scans"
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}

	resp, err := c.doRequest("GET", path, nil)
	if err != nil {
		return nil, err
	}
	return decode[handlers.ScanListResponse](resp)
}

// GetScan returns a specific scan by ID
func (c *Client) GetScan(id int) (*database.Scan, error) {
	resp, err := c.doRequest("GET", "/api/scans/"+strconv.Itoa(id), nil)
	if err != nil {
		return nil, err
	}
	return decode[database.Scan](resp)
}

// Stats returns scan and cache statistics
func (c *Client) Stats() (*handlers.StatsResponse, error) {
	resp, err := c.doRequest("GET", "/api/stats", nil)
	if err != nil {
		return nil, err
	}
	return decode[handlers.StatsResponse](resp)
}

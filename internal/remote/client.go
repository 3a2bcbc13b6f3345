// Package remote implements the HTTP client used to talk to the external
// exercise service: loading exercise pages and uploading submissions for
// grading. Responses are parsed into a normalized result so that callers
// never inspect the wire payload themselves.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultTimeout = 15 * time.Second

// maxBodyBytes caps how much of a service response is read into memory.
const maxBodyBytes = 4 << 20

// PageError wraps any transport or HTTP-level failure when contacting the
// exercise service. Callers record it as a service failure event instead of
// letting it propagate to the page layer.
type PageError struct {
	URL string
	Err error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("exercise service request to %s failed: %v", e.URL, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}

// Grading result kinds.
const (
	// GradingSynchronous means the service graded the submission inline and
	// the result carries final points and feedback.
	GradingSynchronous = "synchronous"
	// GradingAsyncAccepted means the service only acknowledged receipt and
	// will deliver the grade later through the grading callback endpoint.
	GradingAsyncAccepted = "async_accepted"
)

// GradingResult is the tagged outcome of a submission upload.
type GradingResult struct {
	Kind      string
	Points    int
	MaxPoints int
	Feedback  string
	Errors    []string
	Raw       json.RawMessage
}

// ExercisePage is the exercise description document served by the service.
type ExercisePage struct {
	Content      string
	LastModified string
}

// FileUpload is one file attached to a graded submission.
type FileUpload struct {
	FieldName string
	FileName  string
	Content   io.Reader
}

// Client performs bounded-timeout HTTP requests against the exercise service.
type Client struct {
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient builds a remote page client. A non-positive timeout falls back to
// the default.
func NewClient(timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "remote_client").Logger(),
	}
}

// BuildServiceURL appends the grading callback parameters to an exercise
// service URL: the asynchronous callback URL, the synchronous post-back URL
// and the exercise max points.
func BuildServiceURL(serviceURL, submissionURL, postURL string, maxPoints int) (string, error) {
	parsed, err := url.Parse(serviceURL)
	if err != nil {
		return "", fmt.Errorf("invalid service url: %w", err)
	}

	query := parsed.Query()
	query.Set("submission_url", submissionURL)
	query.Set("post_url", postURL)
	query.Set("max_points", strconv.Itoa(maxPoints))
	parsed.RawQuery = query.Encode()

	return parsed.String(), nil
}

// LoadExercisePage fetches the exercise description from the service.
func (c *Client) LoadExercisePage(ctx context.Context, serviceURL string) (ExercisePage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serviceURL, nil)
	if err != nil {
		return ExercisePage{}, &PageError{URL: serviceURL, Err: err}
	}

	body, header, err := c.do(req)
	if err != nil {
		return ExercisePage{}, err
	}

	page := ExercisePage{LastModified: header.Get("Last-Modified")}

	if isJSON(header.Get("Content-Type")) {
		var payload struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return ExercisePage{}, &PageError{URL: serviceURL, Err: fmt.Errorf("malformed page payload: %w", err)}
		}
		page.Content = payload.Content
		return page, nil
	}

	page.Content = string(body)
	return page, nil
}

// GradeSubmission uploads the submission form data (and optional files) to
// the service and parses the grading response.
func (c *Client) GradeSubmission(ctx context.Context, serviceURL string, form url.Values, files ...FileUpload) (GradingResult, error) {
	var req *http.Request
	var err error

	if len(files) == 0 {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, serviceURL,
			strings.NewReader(form.Encode()))
		if err != nil {
			return GradingResult{}, &PageError{URL: serviceURL, Err: err}
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		body := &strings.Builder{}
		writer := multipart.NewWriter(body)
		for key, values := range form {
			for _, value := range values {
				if err := writer.WriteField(key, value); err != nil {
					return GradingResult{}, &PageError{URL: serviceURL, Err: err}
				}
			}
		}
		for _, file := range files {
			part, err := writer.CreateFormFile(file.FieldName, file.FileName)
			if err != nil {
				return GradingResult{}, &PageError{URL: serviceURL, Err: err}
			}
			if _, err := io.Copy(part, file.Content); err != nil {
				return GradingResult{}, &PageError{URL: serviceURL, Err: err}
			}
		}
		if err := writer.Close(); err != nil {
			return GradingResult{}, &PageError{URL: serviceURL, Err: err}
		}

		req, err = http.NewRequestWithContext(ctx, http.MethodPost, serviceURL,
			strings.NewReader(body.String()))
		if err != nil {
			return GradingResult{}, &PageError{URL: serviceURL, Err: err}
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())
	}

	body, _, err := c.do(req)
	if err != nil {
		return GradingResult{}, err
	}

	result, err := ParseGradingPayload(body)
	if err != nil {
		return GradingResult{}, &PageError{URL: serviceURL, Err: err}
	}

	return result, nil
}

// FetchJSON retrieves a JSON document from the service, authenticating with
// the course API key when one is set. Used for course configuration import.
func (c *Client) FetchJSON(ctx context.Context, rawURL, apiKey string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &PageError{URL: rawURL, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "key="+apiKey)
	}

	body, _, err := c.do(req)
	if err != nil {
		return nil, err
	}

	return body, nil
}

// ParseGradingPayload normalizes a grading response body into a tagged
// result. The wire schema is owned by the external service, so missing and
// extra fields are tolerated: a payload without final points is treated as an
// asynchronous acknowledgment.
func ParseGradingPayload(body []byte) (GradingResult, error) {
	var payload struct {
		Points    *int     `json:"points"`
		MaxPoints *int     `json:"max_points"`
		Feedback  string   `json:"feedback"`
		Wait      bool     `json:"wait"`
		Errors    []string `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return GradingResult{}, fmt.Errorf("malformed grading payload: %w", err)
	}

	result := GradingResult{
		Feedback: payload.Feedback,
		Errors:   payload.Errors,
		Raw:      json.RawMessage(body),
	}

	if payload.Wait || payload.Points == nil {
		result.Kind = GradingAsyncAccepted
		return result, nil
	}

	result.Kind = GradingSynchronous
	result.Points = *payload.Points
	if payload.MaxPoints != nil {
		result.MaxPoints = *payload.MaxPoints
	}

	return result, nil
}

func (c *Client) do(req *http.Request) ([]byte, http.Header, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", req.URL.String()).Msg("exercise service request failed")
		return nil, nil, &PageError{URL: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, &PageError{URL: req.URL.String(), Err: err}
	}

	if resp.StatusCode >= 400 {
		err := fmt.Errorf("unexpected status %d", resp.StatusCode)
		c.logger.Warn().Int("status", resp.StatusCode).Str("url", req.URL.String()).Msg("exercise service returned an error status")
		return nil, nil, &PageError{URL: req.URL.String(), Err: err}
	}

	c.logger.Debug().
		Str("url", req.URL.String()).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("exercise service request completed")

	return body, resp.Header, nil
}

func isJSON(contentType string) bool {
	return strings.Contains(contentType, "application/json")
}

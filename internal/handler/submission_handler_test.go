package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/astra-lms/astra-api/internal/dto"
	"github.com/astra-lms/astra-api/internal/service"
)

type fakeGradingService struct {
	submitExerciseID uint
	submitPayload    dto.SubmissionCreateRequest
	submitFile       *multipart.FileHeader
	submitResult     dto.SubmissionResponse
	submitErr        error

	callbackHash   string
	callbackBody   []byte
	callbackResult dto.SubmissionResponse
	callbackErr    error

	regradeID     uint
	regradeResult dto.SubmissionResponse
	regradeErr    error

	listExerciseID  uint
	listSubmitterID uint
	listResult      []dto.SubmissionResponse
	listErr         error

	resyncExerciseID uint
	resyncRoundID    uint
	resyncErr        error
}

func (f *fakeGradingService) Submit(_ context.Context, exerciseID uint, payload dto.SubmissionCreateRequest, file *multipart.FileHeader) (dto.SubmissionResponse, error) {
	f.submitExerciseID = exerciseID
	f.submitPayload = payload
	f.submitFile = file
	return f.submitResult, f.submitErr
}

func (f *fakeGradingService) HandleCallback(_ context.Context, hash string, body []byte) (dto.SubmissionResponse, error) {
	f.callbackHash = hash
	f.callbackBody = body
	return f.callbackResult, f.callbackErr
}

func (f *fakeGradingService) Regrade(_ context.Context, submissionID uint) (dto.SubmissionResponse, error) {
	f.regradeID = submissionID
	return f.regradeResult, f.regradeErr
}

func (f *fakeGradingService) ListSubmissions(_ context.Context, exerciseID, submitterID uint) ([]dto.SubmissionResponse, error) {
	f.listExerciseID = exerciseID
	f.listSubmitterID = submitterID
	return f.listResult, f.listErr
}

func (f *fakeGradingService) ResyncExercise(_ context.Context, exerciseID uint) error {
	f.resyncExerciseID = exerciseID
	return f.resyncErr
}

func (f *fakeGradingService) ResyncRound(_ context.Context, roundID uint) error {
	f.resyncRoundID = roundID
	return f.resyncErr
}

func passthrough(c *fiber.Ctx) error {
	return c.Next()
}

type submissionEnvelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    dto.SubmissionResponse `json:"data"`
}

func newSubmissionApp(fake *fakeGradingService) *fiber.App {
	app := fiber.New()
	h := NewSubmissionHandler(fake, zerolog.Nop())
	h.RegisterExerciseScoped(app.Group("/exercises"), passthrough, passthrough)
	h.RegisterRoundScoped(app.Group("/rounds"), passthrough)
	h.Register(app.Group("/submissions"), passthrough, passthrough)
	return app
}

func multipartBody(t *testing.T, fields map[string]string, fileName string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if fileName != "" {
		part, err := writer.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write([]byte("print('hello')\n"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return buf, writer.FormDataContentType()
}

func TestSubmitGradedSynchronously(t *testing.T) {
	fake := &fakeGradingService{
		submitResult: dto.SubmissionResponse{ID: 42, Status: "ready", Grade: 80},
	}
	app := newSubmissionApp(fake)

	body, contentType := multipartBody(t, map[string]string{
		"submitter_id": "7",
		"answer":       "x = 1",
		"language":     "python",
	}, "")
	req := httptest.NewRequest(http.MethodPost, "/exercises/5/submissions", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var envelope submissionEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.True(t, envelope.Success)
	require.Equal(t, uint(42), envelope.Data.ID)
	require.Equal(t, 80, envelope.Data.Grade)

	require.Equal(t, uint(5), fake.submitExerciseID)
	require.Equal(t, uint(7), fake.submitPayload.SubmitterID)
	require.Equal(t, "x = 1", fake.submitPayload.Answer["answer"])
	require.Equal(t, "python", fake.submitPayload.Answer["language"])
	// submitter_id is routing data, not part of the answer.
	require.NotContains(t, fake.submitPayload.Answer, "submitter_id")
	require.Nil(t, fake.submitFile)
}

func TestSubmitAsyncReturnsAccepted(t *testing.T) {
	fake := &fakeGradingService{
		submitResult: dto.SubmissionResponse{ID: 43, Status: "waiting"},
	}
	app := newSubmissionApp(fake)

	body, contentType := multipartBody(t, map[string]string{
		"submitter_id": "7",
		"answer":       "x = 1",
	}, "")
	req := httptest.NewRequest(http.MethodPost, "/exercises/5/submissions", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestSubmitForwardsUploadedFile(t *testing.T) {
	fake := &fakeGradingService{
		submitResult: dto.SubmissionResponse{ID: 44, Status: "ready"},
	}
	app := newSubmissionApp(fake)

	body, contentType := multipartBody(t, map[string]string{"submitter_id": "7"}, "solution.py")
	req := httptest.NewRequest(http.MethodPost, "/exercises/5/submissions", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotNil(t, fake.submitFile)
	require.Equal(t, "solution.py", fake.submitFile.Filename)
}

func TestSubmitAcceptsURLEncodedForm(t *testing.T) {
	fake := &fakeGradingService{
		submitResult: dto.SubmissionResponse{ID: 45, Status: "ready"},
	}
	app := newSubmissionApp(fake)

	form := "submitter_id=7&answer=x+%3D+1"
	req := httptest.NewRequest(http.MethodPost, "/exercises/5/submissions", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "x = 1", fake.submitPayload.Answer["answer"])
}

func TestSubmitMissingSubmitterID(t *testing.T) {
	fake := &fakeGradingService{}
	app := newSubmissionApp(fake)

	body, contentType := multipartBody(t, map[string]string{"answer": "x = 1"}, "")
	req := httptest.NewRequest(http.MethodPost, "/exercises/5/submissions", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitPolicyViolationMapsToForbidden(t *testing.T) {
	fake := &fakeGradingService{
		submitErr: &service.PolicyViolation{Reason: "submission limit reached"},
	}
	app := newSubmissionApp(fake)

	body, contentType := multipartBody(t, map[string]string{"submitter_id": "7"}, "")
	req := httptest.NewRequest(http.MethodPost, "/exercises/5/submissions", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(payload), "submission limit reached")
}

func TestSubmitServiceOutageMapsToBadGateway(t *testing.T) {
	fake := &fakeGradingService{submitErr: service.ErrServiceUnavailable}
	app := newSubmissionApp(fake)

	body, contentType := multipartBody(t, map[string]string{"submitter_id": "7"}, "")
	req := httptest.NewRequest(http.MethodPost, "/exercises/5/submissions", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestSubmitUnknownExercise(t *testing.T) {
	fake := &fakeGradingService{submitErr: service.ErrExerciseNotFound}
	app := newSubmissionApp(fake)

	body, contentType := multipartBody(t, map[string]string{"submitter_id": "7"}, "")
	req := httptest.NewRequest(http.MethodPost, "/exercises/999/submissions", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListSubmissionsFiltersBySubmitter(t *testing.T) {
	fake := &fakeGradingService{
		listResult: []dto.SubmissionResponse{{ID: 1}, {ID: 2}},
	}
	app := newSubmissionApp(fake)

	req := httptest.NewRequest(http.MethodGet, "/exercises/5/submissions?submitter_id=7", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, uint(5), fake.listExerciseID)
	require.Equal(t, uint(7), fake.listSubmitterID)
}

func TestGradeCallbackDeliversBody(t *testing.T) {
	fake := &fakeGradingService{
		callbackResult: dto.SubmissionResponse{ID: 42, Status: "ready", Grade: 70},
	}
	app := newSubmissionApp(fake)

	form := "points=70&max_points=100"
	req := httptest.NewRequest(http.MethodPost, "/submissions/abc123/grade", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "abc123", fake.callbackHash)
	require.Equal(t, form, string(fake.callbackBody))
}

func TestGradeCallbackDuplicateIsConflict(t *testing.T) {
	fake := &fakeGradingService{callbackErr: service.ErrSubmissionNotWaiting}
	app := newSubmissionApp(fake)

	req := httptest.NewRequest(http.MethodPost, "/submissions/abc123/grade", strings.NewReader("points=70"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestGradeCallbackUnknownHash(t *testing.T) {
	fake := &fakeGradingService{callbackErr: service.ErrSubmissionNotFound}
	app := newSubmissionApp(fake)

	req := httptest.NewRequest(http.MethodPost, "/submissions/nope/grade", strings.NewReader("points=70"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResyncRoutes(t *testing.T) {
	fake := &fakeGradingService{}
	app := newSubmissionApp(fake)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/exercises/5/resync", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, uint(5), fake.resyncExerciseID)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/rounds/3/resync", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, uint(3), fake.resyncRoundID)
}

func TestRegradeQueuesSubmission(t *testing.T) {
	fake := &fakeGradingService{
		regradeResult: dto.SubmissionResponse{ID: 42, Status: "waiting"},
	}
	app := newSubmissionApp(fake)

	req := httptest.NewRequest(http.MethodPost, "/submissions/42/regrade", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, uint(42), fake.regradeID)
}

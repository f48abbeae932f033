package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fidlab/quadmatch/internal/match"
	"github.com/fidlab/quadmatch/internal/pipeline"
	"github.com/fidlab/quadmatch/internal/quad"
	"github.com/fidlab/quadmatch/internal/spatial"
)

func TestServer_HealthHandler(t *testing.T) {
	server := newMockServer(&mockMatcher{})

	tests := []struct {
		name           string
		method         string
		expectedStatus int
		checkResponse  bool
	}{
		{
			name:           "GET request success",
			method:         "GET",
			expectedStatus: http.StatusOK,
			checkResponse:  true,
		},
		{
			name:           "POST request not allowed",
			method:         "POST",
			expectedStatus: http.StatusMethodNotAllowed,
			checkResponse:  false,
		},
		{
			name:           "PUT request not allowed",
			method:         "PUT",
			expectedStatus: http.StatusMethodNotAllowed,
			checkResponse:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/healthz", nil)
			w := httptest.NewRecorder()

			server.healthHandler(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.checkResponse {
				var response HealthResponse
				err := json.Unmarshal(w.Body.Bytes(), &response)
				require.NoError(t, err)

				assert.Equal(t, "healthy", response.Status)
				assert.NotEmpty(t, response.Time)
				assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestServer_ConfigHandler(t *testing.T) {
	cfg := pipeline.DefaultConfig()
	cfg.Params.MinSize = 42
	cfg.Tolerance = 0.02
	server := newMockServer(&mockMatcher{cfg: cfg})

	t.Run("GET returns effective config", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/config", nil)
		w := httptest.NewRecorder()

		server.configHandler(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response ConfigResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		require.NoError(t, err)

		assert.InDelta(t, 42.0, response.Params.MinSize, 1e-12)
		assert.InDelta(t, 0.02, response.Tolerance, 1e-12)
		assert.Equal(t, cfg.Options.MinInliers, response.Options.MinInliers)
	})

	t.Run("POST not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/config", nil)
		w := httptest.NewRecorder()

		server.configHandler(w, req)

		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func matchRequestBody(t *testing.T, tolerance float64) *bytes.Buffer {
	t.Helper()
	req := MatchRequest{
		Ref: Frame{Width: 256, Height: 256, Points: []FramePoint{
			{X: 10, Y: 20}, {X: 200, Y: 40}, {X: 90, Y: 180}, {X: 150, Y: 220},
		}},
		Other: Frame{Width: 256, Height: 256, Points: []FramePoint{
			{X: 14, Y: 18}, {X: 204, Y: 38}, {X: 94, Y: 178}, {X: 154, Y: 218},
		}},
		Tolerance: tolerance,
	}
	data, err := json.Marshal(req)
	require.NoError(t, err)
	return bytes.NewBuffer(data)
}

func TestServer_MatchHandler(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		body           func(t *testing.T) *bytes.Buffer
		matcherErr     error
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "successful match",
			method:         "POST",
			body:           func(t *testing.T) *bytes.Buffer { t.Helper(); return matchRequestBody(t, 0) },
			expectedStatus: http.StatusOK,
		},
		{
			name:           "GET not allowed",
			method:         "GET",
			body:           func(t *testing.T) *bytes.Buffer { t.Helper(); return bytes.NewBufferString("") },
			expectedStatus: http.StatusMethodNotAllowed,
		},
		{
			name:           "invalid JSON",
			method:         "POST",
			body:           func(t *testing.T) *bytes.Buffer { t.Helper(); return bytes.NewBufferString("{not json") },
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Invalid match request",
		},
		{
			name:   "empty reference frame",
			method: "POST",
			body: func(t *testing.T) *bytes.Buffer {
				t.Helper()
				return bytes.NewBufferString(`{"ref":{"points":[]},"other":{"points":[{"x":1,"y":2}]}}`)
			},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "ref frame has no points",
		},
		{
			name:           "no match found",
			method:         "POST",
			body:           func(t *testing.T) *bytes.Buffer { t.Helper(); return matchRequestBody(t, 0) },
			matcherErr:     fmt.Errorf("probing exhausted: %w", match.ErrNoMatchFound),
			expectedStatus: http.StatusNotFound,
			expectedError:  "no match found",
		},
		{
			name:           "too few points",
			method:         "POST",
			body:           func(t *testing.T) *bytes.Buffer { t.Helper(); return matchRequestBody(t, 0) },
			matcherErr:     fmt.Errorf("reference set has 2 points: %w", spatial.ErrInsufficientPoints),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "internal failure",
			method:         "POST",
			body:           func(t *testing.T) *bytes.Buffer { t.Helper(); return matchRequestBody(t, 0) },
			matcherErr:     errors.New("index exploded"),
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "index exploded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockMatcher{result: strongResult(), err: tt.matcherErr}
			server := newMockServer(mock)

			req := httptest.NewRequest(tt.method, "/v1/match", tt.body(t))
			w := httptest.NewRecorder()

			server.matchHandler(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.method != "POST" {
				return
			}

			var response MatchResponse
			err := json.Unmarshal(w.Body.Bytes(), &response)
			require.NoError(t, err)

			if tt.expectedStatus == http.StatusOK {
				assert.True(t, response.Success)
				require.NotNil(t, response.Result)
				assert.InDelta(t, 21.7, response.Result.Ratio, 1e-9)
				assert.Equal(t, "strong", response.Grade)
			} else {
				assert.False(t, response.Success)
				assert.Contains(t, response.Error, tt.expectedError)
			}
		})
	}
}

func TestServer_MatchHandler_TolerancePassthrough(t *testing.T) {
	mock := &mockMatcher{result: strongResult()}
	server := newMockServer(mock)

	req := httptest.NewRequest(http.MethodPost, "/v1/match", matchRequestBody(t, 0.025))
	w := httptest.NewRecorder()

	server.matchHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 0.025, mock.lastTolerance, 1e-12)
}

func TestMatchStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"no match", fmt.Errorf("wrap: %w", match.ErrNoMatchFound), http.StatusNotFound},
		{"insufficient points", fmt.Errorf("wrap: %w", spatial.ErrInsufficientPoints), http.StatusBadRequest},
		{"invalid configuration", fmt.Errorf("wrap: %w", quad.ErrInvalidConfiguration), http.StatusBadRequest},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, matchStatusCode(tt.err))
		})
	}
}

func TestServer_WriteErrorResponse(t *testing.T) {
	server := newMockServer(&mockMatcher{})

	tests := []struct {
		name       string
		message    string
		statusCode int
	}{
		{
			name:       "bad request error",
			message:    "Invalid input",
			statusCode: http.StatusBadRequest,
		},
		{
			name:       "internal server error",
			message:    "Something went wrong",
			statusCode: http.StatusInternalServerError,
		},
		{
			name:       "not found error",
			message:    "No alignment",
			statusCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			server.writeErrorResponse(w, tt.message, tt.statusCode)

			assert.Equal(t, tt.statusCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var response MatchResponse
			err := json.Unmarshal(w.Body.Bytes(), &response)
			require.NoError(t, err)

			assert.False(t, response.Success)
			assert.Equal(t, tt.message, response.Error)
		})
	}
}

// Benchmark tests.
func BenchmarkServer_HealthHandler(b *testing.B) {
	server := newMockServer(&mockMatcher{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	b.ResetTimer()
	for range b.N {
		w := httptest.NewRecorder()
		server.healthHandler(w, req)
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	"askdocs-ai/internal/answer"
	"askdocs-ai/internal/rag"
	rag_mocks "askdocs-ai/internal/rag/mocks"
	"askdocs-ai/internal/service"
)

func testAskDefaults() AskDefaults {
	return AskDefaults{
		UseExternalFallback: true,
		ConfidenceThreshold: 0.7,
		MaxSources:          3,
	}
}

func postAsk(handler *AskHandler, body, rawQuery string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if rawQuery != "" {
		req.URL.RawQuery = rawQuery
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestAskHandler_Answer(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	engine := rag_mocks.NewMockEngine(ctrl)
	handler := NewAskHandler(engine, testAskDefaults())

	var gotReq rag.AnswerRequest
	engine.EXPECT().
		Answer(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req rag.AnswerRequest) (rag.AnswerResponse, error) {
			gotReq = req
			return rag.AnswerResponse{
				Answer:     "Widgets are configured in the settings file.",
				Confidence: 0.82,
				Strategy:   answer.StrategyLocalOnly,
				Sources: []answer.Source{
					{Type: answer.SourceLocal, Content: "Widgets are configured in the settings file.", Confidence: 0.82},
				},
				ProcessingTimeMS: 12,
			}, nil
		})

	w := postAsk(handler, `{"document_id":"doc-1","question":"How are widgets configured?"}`, "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	if gotReq.DocumentID != "doc-1" || gotReq.Question != "How are widgets configured?" {
		t.Errorf("engine request = %+v, want decoded body fields", gotReq)
	}
	// Absent options fields fall back to the server defaults.
	if !gotReq.Options.UseExternalFallback {
		t.Error("UseExternalFallback should default to the configured value")
	}
	if gotReq.Options.ConfidenceThreshold != 0.7 {
		t.Errorf("ConfidenceThreshold = %v, want default 0.7", gotReq.Options.ConfidenceThreshold)
	}
	if gotReq.Options.MaxSources != 3 {
		t.Errorf("MaxSources = %d, want default 3", gotReq.Options.MaxSources)
	}

	var resp rag.AnswerResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Answer != "Widgets are configured in the settings file." {
		t.Errorf("Answer = %q", resp.Answer)
	}
	if resp.Strategy != answer.StrategyLocalOnly {
		t.Errorf("Strategy = %q, want local_only", resp.Strategy)
	}
	if len(resp.Sources) != 1 {
		t.Errorf("Sources = %d, want 1", len(resp.Sources))
	}
}

func TestAskHandler_OptionsOverrideDefaults(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	engine := rag_mocks.NewMockEngine(ctrl)
	handler := NewAskHandler(engine, testAskDefaults())

	var gotReq rag.AnswerRequest
	engine.EXPECT().
		Answer(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req rag.AnswerRequest) (rag.AnswerResponse, error) {
			gotReq = req
			return rag.AnswerResponse{Answer: "ok"}, nil
		})

	body := `{
		"document_id": "doc-1",
		"question": "How are widgets configured?",
		"options": {"use_external_fallback": false, "max_sources": 2}
	}`
	w := postAsk(handler, body, "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	// Explicit false beats the default true.
	if gotReq.Options.UseExternalFallback {
		t.Error("explicit use_external_fallback=false should override the default")
	}
	if gotReq.Options.MaxSources != 2 {
		t.Errorf("MaxSources = %d, want 2", gotReq.Options.MaxSources)
	}
	// Fields absent from the options object keep their defaults.
	if gotReq.Options.ConfidenceThreshold != 0.7 {
		t.Errorf("ConfidenceThreshold = %v, want default 0.7", gotReq.Options.ConfidenceThreshold)
	}
}

func TestAskHandler_DebugParam(t *testing.T) {
	tests := []struct {
		name        string
		rawQuery    string
		body        string
		expectDebug bool
	}{
		{
			name:        "debug enabled via true",
			rawQuery:    "debug=true",
			body:        `{"document_id":"doc-1","question":"What is this?"}`,
			expectDebug: true,
		},
		{
			name:        "debug enabled via 1",
			rawQuery:    "debug=1",
			body:        `{"document_id":"doc-1","question":"What is this?"}`,
			expectDebug: true,
		},
		{
			name:        "debug disabled",
			rawQuery:    "debug=false",
			body:        `{"document_id":"doc-1","question":"What is this?"}`,
			expectDebug: false,
		},
		{
			name:        "debug not specified",
			rawQuery:    "",
			body:        `{"document_id":"doc-1","question":"What is this?"}`,
			expectDebug: false,
		},
		{
			name:        "debug from request body",
			rawQuery:    "",
			body:        `{"document_id":"doc-1","question":"What is this?","debug":true}`,
			expectDebug: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			engine := rag_mocks.NewMockEngine(ctrl)
			handler := NewAskHandler(engine, AskDefaults{})

			var gotReq rag.AnswerRequest
			engine.EXPECT().
				Answer(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, req rag.AnswerRequest) (rag.AnswerResponse, error) {
					gotReq = req
					return rag.AnswerResponse{Answer: "ok"}, nil
				})

			w := postAsk(handler, tt.body, tt.rawQuery)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			if gotReq.Debug != tt.expectDebug {
				t.Errorf("engine saw Debug = %v, want %v", gotReq.Debug, tt.expectDebug)
			}
		})
	}
}

func TestAskHandler_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: `{`},
		{name: "empty body", body: `{}`},
		{name: "missing question", body: `{"document_id":"doc-1"}`},
		{name: "blank question", body: `{"document_id":"doc-1","question":"   "}`},
		{name: "missing document_id", body: `{"question":"What is this?"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			// No expectations: the engine must not be called.
			engine := rag_mocks.NewMockEngine(ctrl)
			handler := NewAskHandler(engine, AskDefaults{})

			w := postAsk(handler, tt.body, "")

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode error response: %v", err)
			}
			if resp.Error == "" {
				t.Error("error response should carry a message")
			}
		})
	}
}

func TestAskHandler_MethodNotAllowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	handler := NewAskHandler(rag_mocks.NewMockEngine(ctrl), AskDefaults{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ask", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestAskHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		engineErr  error
		wantStatus int
	}{
		{
			name:       "invalid input",
			engineErr:  fmt.Errorf("%w: question is too long", service.ErrInvalidInput),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "document not found",
			engineErr:  fmt.Errorf("%w: document doc-1", service.ErrNotFound),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "external service down",
			engineErr:  fmt.Errorf("%w: failed to generate answer", service.ErrExternalService),
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "unexpected error",
			engineErr:  errors.New("unexpected"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			engine := rag_mocks.NewMockEngine(ctrl)
			engine.EXPECT().
				Answer(gomock.Any(), gomock.Any()).
				Return(rag.AnswerResponse{}, tt.engineErr)
			handler := NewAskHandler(engine, AskDefaults{})

			w := postAsk(handler, `{"document_id":"doc-1","question":"What is this?"}`, "")

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

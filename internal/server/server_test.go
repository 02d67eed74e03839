package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbegin/rhythmkit-go/internal/config"
	"github.com/cbegin/rhythmkit-go/internal/ensemble"
	"github.com/cbegin/rhythmkit-go/internal/notation"
	"github.com/cbegin/rhythmkit-go/internal/pattern"
	"github.com/cbegin/rhythmkit-go/internal/share"
)

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return SetupRouter(Deps{
		Config:    config.Default(),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		ShareBase: "https://example.test/rhythm",
	})
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := do(t, setupTestRouter(), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}

func TestGeneratePatternOverlaysDefaults(t *testing.T) {
	w := do(t, setupTestRouter(), http.MethodPost, "/api/patterns", map[string]any{
		"timeSignature": "3/4",
		"measureCount":  2,
		"allowedValues": []string{"quarter", "half"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp PatternResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Pattern)
	assert.Len(t, resp.Pattern.Measures, 2)
	assert.Equal(t, "3/4", resp.Pattern.Signature.String())
	for _, m := range resp.Pattern.Measures {
		assert.Equal(t, resp.Pattern.Signature.Capacity(), m.Sum())
	}
	assert.Equal(t, pattern.DefaultSettings().Tempo, resp.Pattern.Settings.Tempo)
	assert.NotEmpty(t, resp.Text)
	assert.NotEmpty(t, resp.Tokens)
	assert.Contains(t, resp.Share, "ts=")
}

func TestGeneratePatternRejectsBadSettings(t *testing.T) {
	router := setupTestRouter()
	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"tempo out of range", map[string]any{"tempo": 500}, http.StatusBadRequest},
		{"denominator not a power of two", map[string]any{"timeSignature": "4/5"}, http.StatusBadRequest},
		{"zero numerator", map[string]any{"timeSignature": "0/4"}, http.StatusBadRequest},
		{"odd sixteenths without sixteenth notes", map[string]any{"timeSignature": "11/16", "allowedValues": []string{"quarter", "eighth"}}, http.StatusUnprocessableEntity},
		{"measures that cannot be filled", map[string]any{"timeSignature": "3/4", "allowedValues": []string{"half"}}, http.StatusUnprocessableEntity},
		{"malformed body", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body any
			if tt.body != nil {
				body = tt.body
			}
			w := do(t, router, http.MethodPost, "/api/patterns", body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestGenerateEnsemble(t *testing.T) {
	router := setupTestRouter()
	w := do(t, router, http.MethodPost, "/api/ensembles", map[string]any{
		"mode":      "layered",
		"partCount": 3,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var e ensemble.Ensemble
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	assert.Equal(t, pattern.Layered, e.Mode)
	assert.Len(t, e.Parts, 3)

	w = do(t, router, http.MethodPost, "/api/ensembles", map[string]any{"mode": "single"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodPost, "/api/ensembles", map[string]any{"mode": "layered", "partCount": 7})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBuildWorksheet(t *testing.T) {
	w := do(t, setupTestRouter(), http.MethodPost, "/api/worksheets", map[string]any{
		"worksheet": map[string]any{"format": "standard", "variants": 2, "title": "Week 3"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var doc notation.Document
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "Week 3", doc.Title)
	assert.Len(t, doc.Exercises, 2)

	w = do(t, setupTestRouter(), http.MethodPost, "/api/worksheets", map[string]any{
		"worksheet": map[string]any{"format": "standard", "variants": 5},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPresets(t *testing.T) {
	router := setupTestRouter()
	w := do(t, router, http.MethodGet, "/api/presets/beginner", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var s pattern.Settings
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	assert.Equal(t, pattern.Sparse, s.Density)
	assert.Zero(t, s.SyncopationPercent)

	w = do(t, router, http.MethodGet, "/api/presets/impossible", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodGet, "/api/presets", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "intermediate")
}

func TestShareEncodeThenDecode(t *testing.T) {
	router := setupTestRouter()
	w := do(t, router, http.MethodPost, "/api/share/encode", map[string]any{"tempo": 96, "swingPercent": 40})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var enc ShareResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &enc))
	assert.Contains(t, enc.URL, "https://example.test/rhythm?")
	require.NotEmpty(t, enc.Token)

	w = do(t, router, http.MethodGet, "/api/share/decode?"+enc.Query, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var fromQuery ShareResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fromQuery))
	assert.Equal(t, 96, fromQuery.Settings.Tempo)
	assert.Equal(t, 40, fromQuery.Settings.SwingPercent)

	w = do(t, router, http.MethodGet, "/api/share/decode?token="+enc.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var fromToken ShareResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fromToken))
	assert.Equal(t, enc.Query, fromToken.Query)
}

func TestShareDecodeRejectsGarbage(t *testing.T) {
	w := do(t, setupTestRouter(), http.MethodGet, "/api/share/decode?token=!!!", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	_, err := share.DecodeToken("!!!")
	assert.ErrorIs(t, err, share.ErrMalformed)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(io.ErrUnexpectedEOF))
	assert.Equal(t, http.StatusBadRequest, statusFor(pattern.ErrInvalidSettings))
}

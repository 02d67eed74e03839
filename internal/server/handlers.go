package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cbegin/rhythmkit-go/internal/ensemble"
	"github.com/cbegin/rhythmkit-go/internal/notation"
	"github.com/cbegin/rhythmkit-go/internal/pattern"
	"github.com/cbegin/rhythmkit-go/internal/share"
	"github.com/cbegin/rhythmkit-go/internal/timing"
	"github.com/cbegin/rhythmkit-go/internal/worksheet"
)

type handler struct {
	deps Deps
}

func newHandler(deps Deps) *handler {
	return &handler{deps: deps}
}

type PatternResponse struct {
	Pattern *pattern.Pattern       `json:"pattern"`
	Text    string                 `json:"text"`
	Tokens  []notation.RenderToken `json:"tokens"`
	Share   string                 `json:"share"`
}

type EnsembleRequest struct {
	Settings  *pattern.Settings    `json:"settings"`
	Mode      pattern.EnsembleMode `json:"mode" binding:"required"`
	PartCount int                  `json:"partCount"`
}

type WorksheetRequest struct {
	Rhythm    *pattern.Settings           `json:"rhythm"`
	Worksheet *notation.WorksheetSettings `json:"worksheet"`
}

type ShareResponse struct {
	Settings pattern.Settings `json:"settings"`
	Query    string           `json:"query"`
	Token    string           `json:"token"`
	URL      string           `json:"url,omitempty"`
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"soundOptions": pattern.SoundOptions(),
		"tempo": gin.H{
			"min": h.deps.Config.Tempo.MinBPM,
			"max": h.deps.Config.Tempo.MaxBPM,
		},
	})
}

// defaults is the base every request body is decoded over.
func (h *handler) defaults() pattern.Settings {
	return h.deps.Config.Rhythm.Clone()
}

// validate checks s against the configured tempo range.
func (h *handler) validate(s pattern.Settings) error {
	return s.ValidateWithin(h.deps.Config.Tempo.Bounds())
}

func (h *handler) generatePattern(c *gin.Context) {
	s := h.defaults()
	if err := c.ShouldBindJSON(&s); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.validate(s); err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}
	p, err := h.deps.Patterns.GenerateSettings(s)
	if err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}
	tokens, err := notation.ToRenderTokensWith(p, s.CountingSystem)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, PatternResponse{
		Pattern: notation.Annotate(p, s.CountingSystem),
		Text:    pattern.FormatText(p),
		Tokens:  tokens,
		Share:   share.Encode(s),
	})
}

func (h *handler) generateEnsemble(c *gin.Context) {
	base := h.defaults()
	req := EnsembleRequest{Settings: &base, PartCount: base.PartCount}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.validate(base); err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}
	e, err := h.deps.Ensembles.Generate(base, req.Mode, req.PartCount)
	if err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *handler) buildWorksheet(c *gin.Context) {
	rs := h.defaults()
	ws := notation.DefaultWorksheetSettings()
	req := WorksheetRequest{Rhythm: &rs, Worksheet: &ws}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.validate(rs); err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}
	// Builders own a non-shared random source, so each request gets one.
	doc, err := worksheet.NewBuilder(h.deps.Patterns, nil).Build(rs, ws)
	if err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *handler) listPresets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"presets": pattern.PresetNames()})
}

func (h *handler) getPreset(c *gin.Context) {
	s, err := pattern.ApplyPreset(h.defaults(), c.Param("name"))
	if err != nil {
		abortWithError(c, http.StatusNotFound, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *handler) encodeShare(c *gin.Context) {
	s := h.defaults()
	if err := c.ShouldBindJSON(&s); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.validate(s); err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}
	resp, err := h.shareResponse(s)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// decodeShare accepts either a compact token (?token=...) or the long query
// form produced by encodeShare.
func (h *handler) decodeShare(c *gin.Context) {
	var s pattern.Settings
	var err error
	if token := c.Query("token"); token != "" {
		s, err = share.DecodeToken(token)
	} else {
		s, err = share.DecodeValues(c.Request.URL.Query())
	}
	if err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}
	resp, err := h.shareResponse(s)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) shareResponse(s pattern.Settings) (ShareResponse, error) {
	token, err := share.EncodeToken(s)
	if err != nil {
		return ShareResponse{}, err
	}
	resp := ShareResponse{Settings: s, Query: share.Encode(s), Token: token}
	if h.deps.ShareBase != "" {
		resp.URL = share.ShareURL(h.deps.ShareBase, s)
	}
	return resp, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pattern.ErrUnsatisfiableMeasure):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pattern.ErrInvalidSettings),
		errors.Is(err, timing.ErrInvalidTempo),
		errors.Is(err, timing.ErrInvalidTimeSignature),
		errors.Is(err, share.ErrMalformed),
		errors.Is(err, ensemble.ErrSingleMode),
		errors.Is(err, ensemble.ErrUnknownMode),
		errors.Is(err, ensemble.ErrPartCount):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

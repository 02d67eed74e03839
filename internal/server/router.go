// Package server exposes the generators and codecs over HTTP.
package server

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/cbegin/rhythmkit-go/internal/config"
	"github.com/cbegin/rhythmkit-go/internal/ensemble"
	"github.com/cbegin/rhythmkit-go/internal/pattern"
)

// Deps are the collaborators the handlers share. Zero fields get defaults.
type Deps struct {
	Config    *config.Config
	Patterns  *pattern.Generator
	Ensembles *ensemble.Generator
	Logger    *slog.Logger
	// ShareBase is the page URL share links are built on.
	ShareBase string
}

func SetupRouter(deps Deps) *gin.Engine {
	if deps.Config == nil {
		deps.Config = config.Default()
	}
	if deps.Patterns == nil {
		deps.Patterns = pattern.NewGenerator()
	}
	if deps.Ensembles == nil {
		deps.Ensembles = ensemble.NewGenerator(deps.Patterns)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogging(deps.Logger))

	h := newHandler(deps)
	router.GET("/health", h.health)

	api := router.Group("/api")
	{
		api.POST("/patterns", h.generatePattern)
		api.POST("/ensembles", h.generateEnsemble)
		api.POST("/worksheets", h.buildWorksheet)

		api.GET("/presets", h.listPresets)
		api.GET("/presets/:name", h.getPreset)

		api.POST("/share/encode", h.encodeShare)
		api.GET("/share/decode", h.decodeShare)
	}
	return router
}

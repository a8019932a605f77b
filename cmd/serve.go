package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iksnae/ellipsis-codec/internal"
	"github.com/iksnae/ellipsis-codec/internal/codec"
	"github.com/spf13/cobra"
)

var (
	serveAddr string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the import and export API over HTTP",
	Long: `Start an HTTP server exposing the codecs.

Endpoints:
  POST /api/import            multipart upload, field "file"
  POST /api/export/:format    JSON body {story, narrative, primary_character_id}
  GET  /healthz`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := openService()
		if err != nil {
			return err
		}
		defer cleanup()

		addr := serveAddr
		if addr == "" {
			addr = cfg.HTTPAddr
		}
		if !verbose {
			gin.SetMode(gin.ReleaseMode)
		}
		srv := &http.Server{
			Addr:    addr,
			Handler: newRouter(svc),
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			internal.LogInfo("Listening on %s", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		internal.LogInfo("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

// exportBody is the request body of the export endpoint.
type exportBody struct {
	Story              *internal.Story     `json:"story"`
	Narrative          *internal.Narrative `json:"narrative"`
	PrimaryCharacterID string              `json:"primary_character_id"`
}

type apiHandler struct {
	svc *codec.Service
}

func newRouter(svc *codec.Service) *gin.Engine {
	h := &apiHandler{svc: svc}
	router := gin.New()
	router.Use(gin.Recovery())
	router.MaxMultipartMemory = 32 << 20

	router.GET("/healthz", h.health)
	api := router.Group("/api")
	{
		api.POST("/import", h.importFile)
		api.POST("/export/:format", h.exportStory)
	}
	return router
}

func (h *apiHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version})
}

func (h *apiHandler) importFile(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing upload field \"file\""})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return
	}
	defer f.Close()

	skip, _ := strconv.ParseBool(c.Query("skip_images"))
	res, err := h.svc.Import(c.Request.Context(), file.Filename, f, codec.ImportOptions{SkipImages: skip})
	if err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"format":               res.Format.String(),
		"primary_character_id": res.PrimaryCharacterID,
		"has_portrait":         res.Portrait != nil,
		"has_background":       res.Background != nil,
		"story":                res.Story,
	})
}

func (h *apiHandler) exportStory(c *gin.Context) {
	format, err := codec.ParseFormat(c.Param("format"))
	if err != nil {
		writeAPIError(c, err)
		return
	}
	var body exportBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	res, err := h.svc.Export(c.Request.Context(), format, body.Story, body.Narrative, body.PrimaryCharacterID)
	if err != nil {
		writeAPIError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	c.Data(http.StatusOK, res.MediaType, res.Data)
}

// apiStatus maps a codec error to an HTTP status.
func apiStatus(err error) int {
	var (
		formatErr  *internal.FormatError
		parseErr   *internal.ParseError
		missingErr *internal.MissingAssetError
	)
	switch {
	case errors.As(err, &missingErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &formatErr), errors.As(err, &parseErr), errors.Is(err, codec.ErrNoPrimaryCharacter):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeAPIError(c *gin.Context, err error) {
	status := apiStatus(err)
	if status == http.StatusInternalServerError {
		internal.LogError("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides CODEC_HTTP_ADDR)")
}

package handlers

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"doorprize/internal/importer"
	"doorprize/internal/selection"
	"doorprize/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
)

// maxUploadSize bounds the candidates CSV accepted by the upload form.
const maxUploadSize = 10 << 20

// HTTPHandler holds the dependencies for the HTTP handlers, like the lottery service.
type HTTPHandler struct {
	service   *services.LotteryService
	templates *template.Template
}

// NewHTTPHandler creates a new HTTPHandler.
func NewHTTPHandler(service *services.LotteryService, templates *template.Template) *HTTPHandler {
	return &HTTPHandler{
		service:   service,
		templates: templates,
	}
}

// ParseTemplates loads the page and partial templates matching pattern from
// fsys together with the helper functions they use.
func ParseTemplates(fsys fs.FS, pattern string) (*template.Template, error) {
	funcs := template.FuncMap{
		"inc":    func(i int) int { return i + 1 },
		"weight": selection.Weight,
		"clock": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Local().Format("15:04:05")
		},
	}
	return template.New("").Funcs(funcs).ParseFS(fsys, pattern)
}

// renderPage is a helper to perform a two-step template rendering.
// It first executes the content template into a buffer, then executes the main
// layout template, passing the rendered content as a variable.
func (h *HTTPHandler) renderPage(c *gin.Context, pageData gin.H, contentTmpl string) {
	buf := new(bytes.Buffer)
	if err := h.templates.ExecuteTemplate(buf, contentTmpl, pageData); err != nil {
		logger.Errorf("Error executing content template %s: %v", contentTmpl, err)
		c.String(http.StatusInternalServerError, "Template rendering error")
		return
	}

	pageData["PageContent"] = template.HTML(buf.String())

	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(c.Writer, "layout.html", pageData); err != nil {
		logger.Errorf("Error executing layout template: %v", err)
		c.String(http.StatusInternalServerError, "Template rendering error")
	}
}

// renderPartial renders a single HTMX fragment.
func (h *HTTPHandler) renderPartial(c *gin.Context, name string, data any) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(c.Writer, name, data); err != nil {
		logger.Errorf("Error executing template %s: %v", name, err)
		c.String(http.StatusInternalServerError, "Template error")
	}
}

// renderError returns err as a simple paragraph for HTMX to swap in.
func renderError(c *gin.Context, status int, err error) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(status, `<p class="error">%s</p>`, template.HTMLEscapeString(err.Error()))
}

// RegisterPublicRoutes registers the routes that stay open when operator auth
// is enabled.
func (h *HTTPHandler) RegisterPublicRoutes(router gin.IRoutes) {
	router.GET("/health", h.Health)
	router.GET("/draw/state", h.GetDrawState)
}

// RegisterRoutes registers the operator routes.
func (h *HTTPHandler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/", h.ShowIndex)
	router.GET("/draw/stage", h.GetStagePartial)
	router.POST("/draw", h.PerformDraw)
	router.POST("/settings", h.UpdateSettings)
	router.GET("/candidates", h.ShowCandidatesPage)
	router.POST("/candidates/upload", h.UploadCandidatesCSV)
	router.POST("/candidates/clear", h.ClearCandidates)
	router.GET("/winners/list", h.GetWinnerListPartial)
	router.POST("/winners/clear", h.ClearWinners)
	router.GET("/winners/export.csv", h.ExportWinnersCSV)
}

func (h *HTTPHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
}

func (h *HTTPHandler) stageData() gin.H {
	return gin.H{
		"State":    h.service.State(),
		"Settings": h.service.Settings(),
	}
}

func (h *HTTPHandler) winnerListData() gin.H {
	return gin.H{
		"Winners":  h.service.Winners(),
		"Settings": h.service.Settings(),
	}
}

func (h *HTTPHandler) candidateListData() gin.H {
	won := map[string]bool{}
	for _, w := range h.service.Winners() {
		won[w.ID] = true
	}
	return gin.H{
		"Candidates": h.service.Candidates(),
		"Won":        won,
		"Settings":   h.service.Settings(),
	}
}

// ShowIndex renders the draw screen.
func (h *HTTPHandler) ShowIndex(c *gin.Context) {
	settings := h.service.Settings()
	data := gin.H{
		"title":    settings.Title,
		"Settings": settings,
		"State":    h.service.State(),
		"Winners":  h.service.Winners(),
	}
	h.renderPage(c, data, "index.html")
}

// ShowCandidatesPage renders the import form and the candidate pool.
func (h *HTTPHandler) ShowCandidatesPage(c *gin.Context) {
	data := h.candidateListData()
	data["title"] = "Peserta"
	h.renderPage(c, data, "candidates.html")
}

// UploadCandidatesCSV replaces the candidate pool with the uploaded file.
func (h *HTTPHandler) UploadCandidatesCSV(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)
	file, _, err := c.Request.FormFile("candidatesCSV")
	if err != nil {
		renderError(c, http.StatusBadRequest, fmt.Errorf("error retrieving file: %w", err))
		return
	}
	defer file.Close()

	res, err := importer.Parse(file)
	if err != nil {
		logger.Warningf("Rejected candidates upload: %v", err)
		renderError(c, http.StatusBadRequest, err)
		return
	}
	for _, w := range res.Warnings {
		logger.Warningf("Candidates upload: %v", w)
	}

	if err := h.service.ImportCandidates(c.Request.Context(), res.Candidates); err != nil {
		logger.Errorf("Failed to import candidates: %v", err)
		renderError(c, http.StatusInternalServerError, err)
		return
	}

	data := h.candidateListData()
	data["Warnings"] = res.Warnings
	data["Imported"] = len(res.Candidates)
	h.renderPartial(c, "candidate_list_container.html", data)
}

// ClearCandidates empties the pool once the operator has confirmed.
func (h *HTTPHandler) ClearCandidates(c *gin.Context) {
	if err := h.service.ClearCandidates(c.Request.Context(), confirmed(c)); err != nil {
		renderError(c, statusFor(err), err)
		return
	}
	h.renderPartial(c, "candidate_list_container.html", h.candidateListData())
}

// ClearWinners empties the winners history once the operator has confirmed.
func (h *HTTPHandler) ClearWinners(c *gin.Context) {
	if err := h.service.ClearWinners(c.Request.Context(), confirmed(c)); err != nil {
		renderError(c, statusFor(err), err)
		return
	}
	h.renderPartial(c, "winner_list.html", h.winnerListData())
}

// UpdateSettings changes the title and the score visibility.
func (h *HTTPHandler) UpdateSettings(c *gin.Context) {
	if title := strings.TrimSpace(c.PostForm("title")); title != "" {
		h.service.SetTitle(title)
	}
	show, _ := strconv.ParseBool(c.PostForm("showScore"))
	if c.PostForm("showScore") == "on" {
		show = true
	}
	h.service.SetShowScore(show)
	h.renderPartial(c, "stage.html", h.stageData())
}

// PerformDraw starts a draw; the countdown then runs on the server.
func (h *HTTPHandler) PerformDraw(c *gin.Context) {
	if err := h.service.StartDraw(); err != nil {
		// The stage stays; the paragraph goes to the message slot instead.
		c.Header("HX-Retarget", "#draw-message")
		c.Header("HX-Reswap", "innerHTML")
		renderError(c, http.StatusOK, err)
		return
	}
	h.renderPartial(c, "stage.html", h.stageData())
}

func (h *HTTPHandler) GetStagePartial(c *gin.Context) {
	h.renderPartial(c, "stage.html", h.stageData())
}

func (h *HTTPHandler) GetWinnerListPartial(c *gin.Context) {
	h.renderPartial(c, "winner_list.html", h.winnerListData())
}

// GetDrawState returns the draw state as JSON for displays without a socket.
func (h *HTTPHandler) GetDrawState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"state":    h.service.State(),
		"settings": h.service.Settings(),
	})
}

// ExportWinnersCSV handles the request to download the winners as a CSV file.
func (h *HTTPHandler) ExportWinnersCSV(c *gin.Context) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment;filename=winners.csv")

	// Add BOM to ensure UTF-8 compatibility in Excel
	c.Writer.Write([]byte("\xef\xbb\xbf"))

	w := csv.NewWriter(c.Writer)

	header := []string{"No", "Name", "Email", "Phone", "Institution", "Institution Type", "Total Score", "Drawn At"}
	if err := w.Write(header); err != nil {
		logger.Errorf("Error writing CSV header: %v", err)
		c.String(http.StatusInternalServerError, "Error writing CSV")
		return
	}

	for i, winner := range h.service.Winners() {
		row := []string{
			strconv.Itoa(i + 1),
			winner.Name,
			winner.Email,
			winner.Phone,
			winner.Institution,
			winner.InstitutionType,
			winner.TotalScore.String(),
			winner.DrawnAt.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			logger.Errorf("Error writing CSV row: %v", err)
			c.String(http.StatusInternalServerError, "Error writing CSV")
			return
		}
	}

	w.Flush()

	if err := w.Error(); err != nil {
		logger.Errorf("Error flushing CSV writer: %v", err)
		c.String(http.StatusInternalServerError, "Error writing CSV")
	}
}

func confirmed(c *gin.Context) bool {
	ok, _ := strconv.ParseBool(c.PostForm("confirm"))
	return ok
}

func statusFor(err error) int {
	if errors.Is(err, services.ErrConfirmationRequired) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// RequestLogger logs every request except Socket.IO polling and static assets.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/socket.io") || strings.HasPrefix(path, "/assets") {
			return
		}
		logger.Infof("%s %s %d %s", c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

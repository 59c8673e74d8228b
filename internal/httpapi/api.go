package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ElSpaniard97/imbedded-csrma-ai-agent/internal/config"
	"github.com/ElSpaniard97/imbedded-csrma-ai-agent/internal/domain"
	"github.com/ElSpaniard97/imbedded-csrma-ai-agent/internal/prompt"
	"github.com/ElSpaniard97/imbedded-csrma-ai-agent/internal/providers"
	"github.com/ElSpaniard97/imbedded-csrma-ai-agent/internal/service"
	"github.com/ElSpaniard97/imbedded-csrma-ai-agent/internal/store"
)

const ownerKey = "owner"

// maxSelectedScripts bounds how many attachment ids a chat turn may resolve;
// extras are ignored rather than rejected.
const maxSelectedScripts = 3

type API struct {
	cfg      config.Config
	auth     *service.Auth
	settings *store.Settings
	scripts  *store.Scripts
	registry *providers.Registry
	logger   *slog.Logger
}

func (api *API) login(c *gin.Context) {
	var payload struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		api.validationError(c, "username and password are required")
		return
	}

	token, err := api.auth.Login(payload.Username, payload.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "invalid_credentials"})
			return
		}
		api.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "token": token})
}

func (api *API) logout(c *gin.Context) {
	if token := bearerToken(c); token != "" {
		api.auth.Logout(token)
	}
	c.Status(http.StatusNoContent)
}

// requireSession resolves the bearer token to an owner and aborts with 401
// when it cannot. Expiry is reported distinctly so the client can prompt a
// clean re-login.
func (api *API) requireSession(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "not_authenticated"})
		return
	}

	owner, err := api.auth.Verify(token)
	if err != nil {
		if errors.Is(err, service.ErrSessionExpired) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "session_expired"})
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "not_authenticated"})
		return
	}

	c.Set(ownerKey, owner)
	c.Next()
}

func (api *API) getSettings(c *gin.Context) {
	doc, err := api.settings.Get(c.GetString(ownerKey))
	if err != nil {
		api.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (api *API) putSettings(c *gin.Context) {
	var input domain.SettingsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		api.validationError(c, "invalid settings payload")
		return
	}

	doc, err := api.settings.Put(c.GetString(ownerKey), input)
	if err != nil {
		api.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (api *API) uploadScript(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		api.validationError(c, "file is required")
		return
	}
	if file.Size > int64(api.cfg.ScriptMaxBytes) {
		api.validationError(c, "file too large")
		return
	}

	f, err := file.Open()
	if err != nil {
		api.handleError(c, err)
		return
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		api.handleError(c, err)
		return
	}

	script, err := api.scripts.Upload(
		c.GetString(ownerKey),
		content,
		file.Filename,
		c.PostForm("name"),
		c.PostForm("language"),
		splitTags(c.PostForm("tags")),
	)
	if err != nil {
		api.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, script)
}

func (api *API) listScripts(c *gin.Context) {
	scripts, err := api.scripts.List(c.GetString(ownerKey))
	if err != nil {
		api.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, scripts)
}

func (api *API) getScript(c *gin.Context) {
	script, content, err := api.scripts.Get(c.GetString(ownerKey), c.Param("id"))
	if err != nil {
		api.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"script": script, "content": content})
}

func (api *API) deleteScript(c *gin.Context) {
	if err := api.scripts.Delete(c.GetString(ownerKey), c.Param("id")); err != nil {
		api.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// chat assembles one provider request from the submitted message, the
// client-held history and any selected scripts, forwards it and returns the
// reply. Store state is only read here; nothing is persisted.
func (api *API) chat(c *gin.Context) {
	owner := c.GetString(ownerKey)

	message := c.PostForm("message")
	if strings.TrimSpace(message) == "" {
		api.validationError(c, "message is required")
		return
	}

	history := parseHistory(c.PostForm("history"))
	selected := parseScriptIDs(c.PostForm("script_ids"))

	attachments := make([]prompt.ScriptContent, 0, maxSelectedScripts)
	for _, id := range selected {
		if len(attachments) == maxSelectedScripts {
			break
		}
		script, content, err := api.scripts.Get(owner, id)
		if errors.Is(err, store.ErrScriptNotFound) {
			// Unknown or foreign ids are advisory; partial context is fine.
			continue
		}
		if err != nil {
			api.handleError(c, err)
			return
		}
		attachments = append(attachments, prompt.ScriptContent{Script: script, Content: content})
	}

	imageName := ""
	hasImage := false
	if file, err := c.FormFile("image"); err == nil {
		imageName = file.Filename
		hasImage = true
	}

	assembled := prompt.Assemble(prompt.AssembleRequest{
		Message:   message,
		History:   history,
		Scripts:   attachments,
		ImageName: imageName,
		HasImage:  hasImage,
	})

	client, ok := api.registry.Client(api.cfg.Provider)
	if !ok {
		api.handleError(c, service.ErrMisconfigured)
		return
	}
	if api.cfg.Provider == "openai" && api.cfg.OpenAIAPIKey == "" {
		api.handleError(c, service.ErrMisconfigured)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), api.cfg.ProviderTimeout)
	defer cancel()

	text, err := client.Complete(ctx, providers.Request{
		Model:        api.cfg.OpenAIModel,
		Instructions: assembled.Instructions,
		History:      assembled.History,
		UserContent:  assembled.UserContent,
	})
	if err != nil {
		api.logger.Warn("provider call failed", slog.Any("error", err))
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": "upstream_failure"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "text": text})
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// parseHistory tolerates a missing or malformed transcript; the assembler
// filters turn shape itself.
func parseHistory(raw string) []domain.Turn {
	if raw == "" {
		return nil
	}
	var turns []domain.Turn
	if err := json.Unmarshal([]byte(raw), &turns); err != nil {
		return nil
	}
	return turns
}

// parseScriptIDs accepts a JSON array or a comma-separated list.
func parseScriptIDs(raw string) []string {
	if raw == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err == nil {
		return ids
	}
	ids = nil
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

func (api *API) handleError(c *gin.Context, err error) {
	var validation *store.ValidationError
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "validation_error", "message": validation.Reason})
	case errors.Is(err, store.ErrScriptNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "not_found"})
	case errors.Is(err, service.ErrMisconfigured):
		api.logger.Error("server misconfigured", slog.Any("error", err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "server_misconfigured"})
	default:
		api.logger.Error("request failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "internal_error"})
	}
}

func (api *API) validationError(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "validation_error", "message": msg})
}

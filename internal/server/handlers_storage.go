package server

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"ragchat/internal/core"
	"ragchat/internal/documents"
	"ragchat/internal/keystore"
	"ragchat/internal/providerstore"
)

// SaveKeys handles POST /api/save-keys. Omitted keys are kept, empty strings
// delete the stored key.
func (h *Handler) SaveKeys(c echo.Context) error {
	var keys keystore.Keys
	if err := c.Bind(&keys); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body", err))
	}
	if err := h.deps.Keys.Save(keys); err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, statusMessage("API keys saved to "+h.deps.Keys.Path()))
}

// LoadKeys handles GET /api/load-keys. Unset keys are null.
func (h *Handler) LoadKeys(c echo.Context) error {
	keys, err := h.deps.Keys.Load()
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, keys)
}

// LoadProviders handles GET /api/load-providers
func (h *Handler) LoadProviders(c echo.Context) error {
	list, err := h.deps.Providers.Load()
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// SaveProviders handles POST /api/save-providers. The body replaces the
// whole stored list.
func (h *Handler) SaveProviders(c echo.Context) error {
	var list []providerstore.CustomProvider
	if err := c.Bind(&list); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body, expected a JSON array", err))
	}
	if err := h.deps.Providers.Save(list); err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "success"})
}

// Upload handles POST /api/upload (multipart: file, space_id, chat_id,
// add_to_space).
func (h *Handler) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return handleError(c, core.NewInvalidRequestError("file is required", err))
	}
	scope := documents.Scope{
		SpaceID:    c.FormValue("space_id"),
		ChatID:     c.FormValue("chat_id"),
		AddToSpace: formBool(c.FormValue("add_to_space")),
	}

	f, err := fh.Open()
	if err != nil {
		return handleError(c, core.NewInternalError("failed to read upload", err))
	}
	defer f.Close()

	paths, err := h.deps.Documents.Save(scope, fh.Filename, f)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "success", "saved_paths": paths})
}

// Documents handles GET /api/documents?space_id=&chat_id=
func (h *Handler) Documents(c echo.Context) error {
	listing, err := h.deps.Documents.List(c.QueryParam("space_id"), c.QueryParam("chat_id"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, listing)
}

// DeleteSpace handles DELETE /api/spaces/:space_id. A missing space is not
// an error.
func (h *Handler) DeleteSpace(c echo.Context) error {
	spaceID := c.Param("space_id")
	found, err := h.deps.Documents.DeleteSpace(spaceID)
	if err != nil {
		return handleError(c, err)
	}
	if !found {
		return c.JSON(http.StatusOK, statusMessage("Space folder not found, but deletion considered successful"))
	}
	return c.JSON(http.StatusOK, statusMessage(fmt.Sprintf("Space %s deleted", spaceID)))
}

// DeleteChat handles DELETE /api/chats/:chat_id?space_id=
func (h *Handler) DeleteChat(c echo.Context) error {
	chatID := c.Param("chat_id")
	found, err := h.deps.Documents.DeleteChat(c.QueryParam("space_id"), chatID)
	if err != nil {
		return handleError(c, err)
	}
	if !found {
		return c.JSON(http.StatusOK, statusMessage("Chat folder not found, but deletion considered successful"))
	}
	return c.JSON(http.StatusOK, statusMessage(fmt.Sprintf("Chat %s deleted", chatID)))
}

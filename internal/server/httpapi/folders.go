package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/server/services"
	"github.com/gin-gonic/gin"
)

type folderRequest struct {
	Name string `json:"name"`
}

func (h *Handler) createFolder(c *gin.Context) {
	var req folderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, common.NewValidationError("invalid JSON body"))
		return
	}
	folder, err := h.folders.Create(c.Request.Context(), req.Name, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, folder)
}

func (h *Handler) listFolders(c *gin.Context) {
	folders, err := h.folders.List(c.Request.Context(), actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"folders": nonNil(folders)})
}

func (h *Handler) getFolder(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	view, err := h.folders.Get(c.Request.Context(), id, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) renameFolder(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	var req folderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, common.NewValidationError("invalid JSON body"))
		return
	}
	folder, err := h.folders.Rename(c.Request.Context(), id, req.Name, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, folder)
}

// deleteFolder requires ?policy=detach or ?policy=cascade.
func (h *Handler) deleteFolder(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	policy, err := services.ParseDeletePolicy(c.Query("policy"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.folders.Delete(c.Request.Context(), id, actor(c), policy); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type membershipRequest struct {
	AddFileIDs    []int64 `json:"addFileIds"`
	RemoveFileIDs []int64 `json:"removeFileIds"`
}

func (h *Handler) updateMembership(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	var req membershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, common.NewValidationError("invalid JSON body"))
		return
	}
	view, err := h.folders.UpdateMembership(c.Request.Context(), id, req.AddFileIDs, req.RemoveFileIDs, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

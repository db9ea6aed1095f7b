package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/server/services"
	"github.com/gin-gonic/gin"
)

// maxFieldBytes bounds a text field of the upload form.
const maxFieldBytes = 4 << 10

func idParam(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, common.NewValidationError(fmt.Sprintf("%s must be a positive integer", name))
	}
	return id, nil
}

// uploadFile streams a multipart/form-data body into the upload pipeline.
// The optional folderId and name fields must come before the file part;
// the file part is handed to storage without being buffered.
func (h *Handler) uploadFile(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	mr, err := c.Request.MultipartReader()
	if err != nil {
		h.fail(c, common.NewValidationError("expected a multipart/form-data body"))
		return
	}

	req := &services.UploadRequest{}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.fail(c, fmt.Errorf("%w: %w", common.ErrStreamError, err))
			return
		}

		switch part.FormName() {
		case "file":
			req.File = part
			req.FileName = part.FileName()
			req.ContentType = part.Header.Get("Content-Type")
		case "folderId", "name":
			b, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
			if err != nil {
				h.fail(c, fmt.Errorf("%w: %w", common.ErrStreamError, err))
				return
			}
			if len(b) > maxFieldBytes {
				h.fail(c, common.NewValidationError(part.FormName()+" is too long"))
				return
			}
			if part.FormName() == "folderId" {
				req.FolderID, req.HasFolderID = string(b), true
			} else {
				req.Name, req.HasName = string(b), true
			}
		}
		if req.File != nil {
			break
		}
	}

	file, err := h.uploads.Upload(c.Request.Context(), req, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, file)
}

func (h *Handler) listLooseFiles(c *gin.Context) {
	files, err := h.files.ListLoose(c.Request.Context(), actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": nonNil(files)})
}

func (h *Handler) getFile(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	file, err := h.files.Get(c.Request.Context(), id, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}

func (h *Handler) downloadFile(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	u, err := h.files.DownloadURL(c.Request.Context(), id, actor(c), h.downloadTTL)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, u)
}

type renameRequest struct {
	Name string `json:"name"`
}

func (h *Handler) renameFile(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, common.NewValidationError("invalid JSON body"))
		return
	}
	file, err := h.files.Rename(c.Request.Context(), id, req.Name, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}

type moveRequest struct {
	// FolderID null makes the file loose.
	FolderID *int64 `json:"folderId"`
}

func (h *Handler) moveFile(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, common.NewValidationError("invalid JSON body"))
		return
	}
	file, err := h.files.Move(c.Request.Context(), id, req.FolderID, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}

func (h *Handler) deleteFile(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.files.Delete(c.Request.Context(), id, actor(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

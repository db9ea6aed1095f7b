package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
	"github.com/gin-gonic/gin"
)

type issueShareRequest struct {
	DurationDays float64 `json:"durationDays"`
}

type shareResponse struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// sharedFileResponse and sharedFolderResponse are the public view of a
// shared folder. Owner ids and storage keys stay private.
type sharedFileResponse struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	MimeType  string    `json:"mimeType"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}

type sharedFolderResponse struct {
	Name      string               `json:"name"`
	Files     []sharedFileResponse `json:"files"`
	ExpiresAt time.Time            `json:"expiresAt"`
}

func newSharedFolderResponse(shared *models.SharedFolder) sharedFolderResponse {
	resp := sharedFolderResponse{
		Name:      shared.Name,
		Files:     make([]sharedFileResponse, 0, len(shared.Files)),
		ExpiresAt: shared.ExpiresAt,
	}
	for _, f := range shared.Files {
		resp.Files = append(resp.Files, sharedFileResponse{
			Name:      f.Name,
			Size:      f.Size,
			MimeType:  f.MimeType,
			URL:       f.URL,
			CreatedAt: f.CreatedAt,
		})
	}
	return resp
}

func shareURL(c *gin.Context, token string) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + "/share/" + token
}

func (h *Handler) issueShare(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	var req issueShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, common.NewValidationError("invalid JSON body"))
		return
	}
	share, err := h.shares.Issue(c.Request.Context(), id, actor(c), req.DurationDays)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, shareResponse{
		Token:     share.Token,
		URL:       shareURL(c, share.Token),
		ExpiresAt: share.ExpiresAt,
	})
}

func (h *Handler) listShares(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	shares, err := h.shares.List(c.Request.Context(), id, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shares": nonNil(shares)})
}

func (h *Handler) revokeShare(c *gin.Context) {
	if err := h.shares.Revoke(c.Request.Context(), c.Param("token"), actor(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// resolveShare is public: the token is the only credential.
func (h *Handler) resolveShare(c *gin.Context) {
	shared, err := h.shares.Resolve(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newSharedFolderResponse(shared))
}

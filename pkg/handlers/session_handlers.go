package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetCookies returns the live session cookies as name→value.
func (h *HandlerService) GetCookies(c *gin.Context) {
	cookies := h.client.CookiesForRequests(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"count":   len(cookies),
		"cookies": cookies,
	})
}

// GetSession reports session state, handle and cookie file.
func (h *HandlerService) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.client.Status())
}

// RestartSession forces a new browser session.
func (h *HandlerService) RestartSession(c *gin.Context) {
	handle, err := h.client.Restart(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"restarted": true,
		"handle":    handle,
	})
}

// SaveCookies persists the live cookies to the cookie file.
func (h *HandlerService) SaveCookies(c *gin.Context) {
	if err := h.client.SaveSessionCookies(c.Request.Context()); err != nil {
		HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"saved":        true,
		"cookies_file": h.client.Status().CookiesFile,
	})
}

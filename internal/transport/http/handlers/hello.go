package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// HelloHandler serves the demo greeting endpoint.
type HelloHandler struct{}

// NewHelloHandler constructs HelloHandler.
func NewHelloHandler() *HelloHandler {
	return &HelloHandler{}
}

// RegisterRoutes binds the greeting route.
func (h *HelloHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/hello/:name", h.greet)
}

func (h *HelloHandler) greet(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "name is required"))
		return
	}

	c.JSON(http.StatusOK, HelloResponse{
		Message: fmt.Sprintf("Hello, %s!", name),
	})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	authgin "github.com/PaulFidika/tenantauth/adapters/gin"
)

// HandleMeGET returns the caller's verified identity. Mount behind AuthRequired.
func HandleMeGET() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := authgin.IdentityFromGin(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
			return
		}
		c.JSON(http.StatusOK, id)
	}
}

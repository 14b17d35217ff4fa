package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	authgin "github.com/PaulFidika/tenantauth/adapters/gin"
)

// HandleTenantWhoamiGET reports the tenant name resolved from the path.
func HandleTenantWhoamiGET() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := authgin.TenantFromGin(c)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"message": "tenant name not provided"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"tenant_name": id.String()})
	}
}

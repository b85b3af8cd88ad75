package routes

import (
	"github.com/Ritabrata777/CivicLens/controllers"
	"github.com/Ritabrata777/CivicLens/middlewares"

	"github.com/gin-gonic/gin"
)

// VerifyRoutes sets up the external-analysis routes
func VerifyRoutes(r *gin.Engine, vc *controllers.VerifyController) {
	group := r.Group("/api/verify", middlewares.AuthMiddleware())
	{
		group.POST("/voter", vc.VerifyVoterID)
		group.POST("/traffic", vc.DetectTrafficViolation)
		group.GET("/duplicates/:id", vc.CheckDuplicates)
	}
}

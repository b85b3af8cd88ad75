package routes

import (
	"github.com/Ritabrata777/CivicLens/controllers"
	"github.com/Ritabrata777/CivicLens/middlewares"

	"github.com/gin-gonic/gin"
)

// IssueRoutes sets up the issue routes. createLimiter is optional and applied
// only to submission.
func IssueRoutes(r *gin.Engine, issues *controllers.IssueController, createLimiter gin.HandlerFunc) {
	group := r.Group("/api/issue", middlewares.AuthMiddleware())
	{
		createHandlers := []gin.HandlerFunc{}
		if createLimiter != nil {
			createHandlers = append(createHandlers, createLimiter)
		}
		createHandlers = append(createHandlers, issues.CreateIssue)

		group.POST("/create", createHandlers...)
		group.GET("", issues.GetAllIssues)
		group.GET("/mine", issues.GetMyIssues)
		group.GET("/notifications", issues.GetNotifications)
		group.GET("/:id", issues.GetIssue)
		group.POST("/:id/status", issues.UpdateIssueStatus)
		group.POST("/:id/upvote", issues.UpvoteIssue)
	}
}

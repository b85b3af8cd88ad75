package controllers

import (
	"errors"
	"net/http"

	"github.com/Ritabrata777/CivicLens/lifecycle"
	"github.com/Ritabrata777/CivicLens/middlewares"
	"github.com/Ritabrata777/CivicLens/models"
	"github.com/Ritabrata777/CivicLens/store"

	"github.com/gin-gonic/gin"
)

type IssueController struct {
	Engine *lifecycle.Engine
	Store  store.Store
}

func NewIssueController(engine *lifecycle.Engine, s store.Store) *IssueController {
	return &IssueController{Engine: engine, Store: s}
}

// statusFor maps the typed failures of the lifecycle engine and the store
// onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, lifecycle.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, lifecycle.ErrMissingReason), errors.Is(err, lifecycle.ErrMissingEvidence):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrAlreadyUpvoted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// CreateIssue handles the creation of a new issue
func (ic *IssueController) CreateIssue(c *gin.Context) {
	caller, ok := middlewares.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var input struct {
		Title         string   `json:"title" binding:"required,min=5,max=200"`
		Description   string   `json:"description" binding:"required,min=20,max=1000"`
		Category      string   `json:"category" binding:"required"`
		OtherCategory string   `json:"otherCategory,omitempty"`
		Location      string   `json:"location" binding:"required,max=200"`
		IsUrgent      bool     `json:"isUrgent,omitempty"`
		ImageURL      *string  `json:"imageUrl,omitempty"`
		Latitude      *float64 `json:"latitude,omitempty"`
		Longitude     *float64 `json:"longitude,omitempty"`
		LicensePlate  string   `json:"licensePlate,omitempty"`
		ViolationType string   `json:"violationType,omitempty"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	category := models.IssueCategory(input.Category)
	if !models.IsKnownCategory(category) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category"})
		return
	}
	if category == models.Other && len(input.OtherCategory) < 4 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please specify the category"})
		return
	}

	result, err := ic.Engine.Create(c.Request.Context(), lifecycle.CreateInput{
		Title:         input.Title,
		Description:   input.Description,
		Category:      category,
		OtherCategory: input.OtherCategory,
		Address:       input.Location,
		Latitude:      input.Latitude,
		Longitude:     input.Longitude,
		IsUrgent:      input.IsUrgent,
		ImageURL:      input.ImageURL,
		LicensePlate:  input.LicensePlate,
		ViolationType: input.ViolationType,
	}, caller)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": "Failed to create issue"})
		return
	}

	response := gin.H{"issue": result.Issue}
	if result.Note != "" {
		response["note"] = result.Note
	}
	c.JSON(http.StatusCreated, response)
}

// GetIssue retrieves an issue with its history and blockchain records
func (ic *IssueController) GetIssue(c *gin.Context) {
	ctx := c.Request.Context()
	issueID := c.Param("id")

	issue, err := ic.Store.GetIssue(ctx, issueID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issue"})
		}
		return
	}

	events, err := ic.Store.EventsForIssue(ctx, issueID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issue history"})
		return
	}

	records, err := ic.Store.BlockchainRecordsForIssue(ctx, issueID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve blockchain records"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"issue":             issue,
		"updates":           events,
		"blockchainRecords": records,
	})
}

// GetAllIssues retrieves all issues, newest first
func (ic *IssueController) GetAllIssues(c *gin.Context) {
	issues, err := ic.Store.ListIssues(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issues"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"issues": issues})
}

// GetMyIssues retrieves all issues created by the caller
func (ic *IssueController) GetMyIssues(c *gin.Context) {
	caller, ok := middlewares.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	issues, err := ic.Store.ListIssuesByUser(c.Request.Context(), caller.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issues"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"issues": issues})
}

// UpdateIssueStatus moves an issue through its lifecycle (admin only)
func (ic *IssueController) UpdateIssueStatus(c *gin.Context) {
	caller, ok := middlewares.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var input struct {
		Status        string `json:"status" binding:"required"`
		Notes         string `json:"notes,omitempty"`
		TxHash        string `json:"txHash,omitempty"`
		EvidenceImage string `json:"evidenceImage,omitempty"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := ic.Engine.Transition(c.Request.Context(), c.Param("id"), lifecycle.TransitionInput{
		Target:        models.IssueStatus(input.Status),
		Notes:         input.Notes,
		TxHash:        input.TxHash,
		EvidenceImage: input.EvidenceImage,
	}, caller)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	response := gin.H{
		"message": "Status updated to " + string(result.Issue.Status),
		"issue":   result.Issue,
	}
	if len(result.Warnings) > 0 {
		response["warnings"] = result.Warnings
	}
	c.JSON(http.StatusOK, response)
}

// UpvoteIssue records the caller's support for an issue
func (ic *IssueController) UpvoteIssue(c *gin.Context) {
	caller, ok := middlewares.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	ctx := c.Request.Context()
	issueID := c.Param("id")

	if err := ic.Engine.Upvote(ctx, issueID, caller.ID); err != nil {
		if errors.Is(err, store.ErrAlreadyUpvoted) {
			c.JSON(http.StatusConflict, gin.H{"error": "You have already upvoted this issue."})
			return
		}
		c.JSON(statusFor(err), gin.H{"error": "Failed to upvote"})
		return
	}

	issue, err := ic.Store.GetIssue(ctx, issueID)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"message": "Upvoted!"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Upvoted!", "upvotes": issue.Upvotes})
}

// GetNotifications returns the caller's activity feed
func (ic *IssueController) GetNotifications(c *gin.Context) {
	caller, ok := middlewares.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	notifications, err := ic.Engine.NotificationsFor(c.Request.Context(), caller.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

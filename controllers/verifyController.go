package controllers

import (
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"

	"github.com/Ritabrata777/CivicLens/verify"

	"github.com/gin-gonic/gin"
)

type VerifyController struct {
	Orchestrator *verify.Orchestrator
	// TrafficStrict surfaces traffic-analysis failures as hard errors
	// instead of soft notes.
	TrafficStrict bool
}

func NewVerifyController(o *verify.Orchestrator, trafficStrict bool) *VerifyController {
	return &VerifyController{Orchestrator: o, TrafficStrict: trafficStrict}
}

func readFormFile(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// verifyStatusFor maps orchestrator failures onto HTTP status codes.
func verifyStatusFor(err error) int {
	var processErr *verify.ProcessError
	var businessErr *verify.BusinessError
	switch {
	case errors.Is(err, verify.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &businessErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &processErr), errors.Is(err, verify.ErrUnparseable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// VerifyVoterID checks an uploaded identity document against a claimed number
func (vc *VerifyController) VerifyVoterID(c *gin.Context) {
	voterID := c.PostForm("voterId")
	if voterID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing voterId"})
		return
	}

	frontHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing image"})
		return
	}
	front, err := readFormFile(frontHeader)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read image"})
		return
	}

	var back []byte
	if backHeader, err := c.FormFile("imageBack"); err == nil {
		back, err = readFormFile(backHeader)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read back image"})
			return
		}
	}

	result, err := vc.Orchestrator.VerifyIdentity(c.Request.Context(), front, back, voterID)
	if err != nil {
		log.Printf("identity verification failed: %v", err)
		c.JSON(verifyStatusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// DetectTrafficViolation analyzes an uploaded photo for traffic violations
func (vc *VerifyController) DetectTrafficViolation(c *gin.Context) {
	imageHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image uploaded."})
		return
	}
	image, err := readFormFile(imageHeader)
	if err != nil || len(image) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read image"})
		return
	}

	result, err := vc.Orchestrator.DetectTrafficViolation(c.Request.Context(), image)
	if err != nil {
		log.Printf("traffic violation detection failed: %v", err)
		if vc.TrafficStrict {
			c.JSON(verifyStatusFor(err), gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Traffic analysis unavailable."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}

// CheckDuplicates ranks existing issues resembling the given one. Failures
// are downgraded to an empty match list with a note: duplicate detection is
// advisory, never a hard dependency.
func (vc *VerifyController) CheckDuplicates(c *gin.Context) {
	matches, err := vc.Orchestrator.DetectDuplicates(c.Request.Context(), c.Param("id"))
	if err != nil {
		log.Printf("duplicate detection failed for %s: %v", c.Param("id"), err)
		c.JSON(http.StatusOK, gin.H{"matches": []verify.DuplicateMatch{}, "note": "Duplicate detection unavailable."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches})
}

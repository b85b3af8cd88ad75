package models

import (
	"time"
)

// IssueCategory enum
type IssueCategory string

const (
	Pothole            IssueCategory = "Pothole"
	StreetlightFailure IssueCategory = "Streetlight Failure"
	DrainageIssue      IssueCategory = "Drainage Issue"
	GarbageDumping     IssueCategory = "Garbage Dumping"
	TrafficViolation   IssueCategory = "Traffic Violation"
	Other              IssueCategory = "Other"
)

// Categories lists the selectable categories. "Other" carries a free-text
// category supplied by the submitter.
var Categories = []IssueCategory{
	Pothole, StreetlightFailure, DrainageIssue, GarbageDumping, TrafficViolation, Other,
}

func IsKnownCategory(c IssueCategory) bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// IssueStatus enum
type IssueStatus string

const (
	Pending    IssueStatus = "Pending"
	Seen       IssueStatus = "Seen"
	Accepted   IssueStatus = "Accepted"
	InProgress IssueStatus = "In Progress"
	Resolved   IssueStatus = "Resolved"
	Rejected   IssueStatus = "Rejected"
)

func IsKnownStatus(s IssueStatus) bool {
	switch s {
	case Pending, Seen, Accepted, InProgress, Resolved, Rejected:
		return true
	}
	return false
}

// Issue represents a civic issue reported by a user.
// The status field always mirrors the most recent IssueStatusEvent.
type Issue struct {
	ID            string        `bson:"_id" json:"id"`
	Title         string        `bson:"title" json:"title"`
	Description   string        `bson:"description" json:"description"`
	Category      IssueCategory `bson:"category" json:"category"`
	Status        IssueStatus   `bson:"status" json:"status"`
	Address       string        `bson:"address" json:"address"`
	Latitude      *float64      `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude     *float64      `bson:"longitude,omitempty" json:"longitude,omitempty"`
	ImageURL      *string       `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	SubmittedBy   string        `bson:"submittedBy" json:"submittedBy"`
	SubmittedAt   time.Time     `bson:"submittedAt" json:"submittedAt"`
	Upvotes       int64         `bson:"upvotes" json:"upvotes"`
	IsUrgent      bool          `bson:"isUrgent" json:"isUrgent"`
	LicensePlate  string        `bson:"licensePlate,omitempty" json:"licensePlate,omitempty"`
	ViolationType string        `bson:"violationType,omitempty" json:"violationType,omitempty"`
}

// IssueStatusEvent is one append-only history record per status change.
// The first event of every issue is Pending, written by the submitter.
type IssueStatusEvent struct {
	IssueID   string      `bson:"issue" json:"issueId"`
	Status    IssueStatus `bson:"status" json:"status"`
	Timestamp time.Time   `bson:"timestamp" json:"timestamp"`
	UpdatedBy string      `bson:"updatedBy" json:"updatedBy"`
	Notes     string      `bson:"notes,omitempty" json:"notes,omitempty"`
}

// BlockchainRecord anchors a status change to an on-chain transaction.
// At most one record exists per (issue, status).
type BlockchainRecord struct {
	IssueID     string      `bson:"issue" json:"issueId"`
	TxHash      string      `bson:"txHash" json:"txHash"`
	AdminID     string      `bson:"adminId" json:"adminId"`
	Status      IssueStatus `bson:"status" json:"status"`
	Timestamp   time.Time   `bson:"timestamp" json:"timestamp"`
	ExplorerURL string      `bson:"explorerUrl" json:"explorerUrl"`
}

// ResolutionEvidence is the proof image an admin supplies before an issue
// may reach Resolved.
type ResolutionEvidence struct {
	IssueID       string    `bson:"issue" json:"issueId"`
	AdminID       string    `bson:"adminId" json:"adminId"`
	ProofImageURL string    `bson:"proofImageUrl" json:"proofImageUrl"`
	Notes         string    `bson:"notes,omitempty" json:"notes,omitempty"`
	Timestamp     time.Time `bson:"timestamp" json:"timestamp"`
}

// Notification is a derived read-model entry, never persisted.
type Notification struct {
	IssueID   string      `json:"issueId"`
	Title     string      `json:"title"`
	Status    IssueStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
}

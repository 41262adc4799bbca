package transport

import (
	"time"

	"github.com/google/uuid"
)

// Enum values
type Classification string

const (
	ClassificationCold Classification = "Cold"
	ClassificationWarm Classification = "Warm"
	ClassificationHot  Classification = "Hot"
	ClassificationVoid Classification = "Void"
)

type VoidReason string

const (
	VoidReasonNotInterested  VoidReason = "Not_Interested"
	VoidReasonBudgetMismatch VoidReason = "Budget_Mismatch"
	VoidReasonUnreachable    VoidReason = "Unreachable"
	VoidReasonDuplicate      VoidReason = "Duplicate"
	VoidReasonOther          VoidReason = "Other"
)

type LeadStatus string

const (
	LeadStatusNew         LeadStatus = "New"
	LeadStatusContacted   LeadStatus = "Contacted"
	LeadStatusQualified   LeadStatus = "Qualified"
	LeadStatusShortlisted LeadStatus = "Shortlisted"
	LeadStatusSiteVisit   LeadStatus = "Site_Visit"
	LeadStatusNegotiation LeadStatus = "Negotiation"
	LeadStatusBooked      LeadStatus = "Booked"
	LeadStatusLost        LeadStatus = "Lost"
	LeadStatusConverted   LeadStatus = "Converted"
)

const leadStatusOneOf = "oneof=New Contacted Qualified Shortlisted Site_Visit Negotiation Booked Lost Converted"

// Request DTOs

type IdentityBlock struct {
	FullName string `json:"fullName" validate:"required,min=1,max=150"`
	Phone    string `json:"phone" validate:"required,min=5,max=20"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
}

type QualificationBlock struct {
	Classification *Classification `json:"classification,omitempty" validate:"omitempty,oneof=Cold Warm Hot Void"`
	VoidReason     *VoidReason     `json:"voidReason,omitempty" validate:"omitempty,oneof=Not_Interested Budget_Mismatch Unreachable Duplicate Other"`
	VoidReasonNote *string         `json:"voidReasonNote,omitempty" validate:"omitempty,max=500"`
	Source         *string         `json:"source,omitempty" validate:"omitempty,max=100"`
	BudgetMin      *int64          `json:"budgetMin,omitempty" validate:"omitempty,min=0"`
	BudgetMax      *int64          `json:"budgetMax,omitempty" validate:"omitempty,min=0"`
}

type SystemCreateBlock struct {
	LeadStatus    *LeadStatus  `json:"leadStatus,omitempty" validate:"omitempty,oneof=New Contacted Qualified Shortlisted Site_Visit Negotiation Booked Lost Converted"`
	AssignedAgent OptionalUUID `json:"assignedAgent,omitempty" validate:"-"`
}

type CreateLeadRequest struct {
	Identity      IdentityBlock       `json:"identity" validate:"required"`
	Qualification *QualificationBlock `json:"qualification,omitempty"`
	System        *SystemCreateBlock  `json:"system,omitempty"`
	// Profile holds the long tail of buyer-preference attributes. It is
	// persisted as-is and never schema-validated.
	Profile map[string]interface{} `json:"profile,omitempty"`
}

type UpdateIdentityBlock struct {
	FullName *string `json:"fullName,omitempty" validate:"omitempty,min=1,max=150"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,min=5,max=20"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
}

type UpdateSystemBlock struct {
	LeadStatus      *LeadStatus  `json:"leadStatus,omitempty" validate:"omitempty,oneof=New Contacted Qualified Shortlisted Site_Visit Negotiation Booked Lost Converted"`
	AssignedAgent   OptionalUUID `json:"assignedAgent,omitempty" validate:"-"`
	LastContactedAt *time.Time   `json:"lastContactedAt,omitempty"`
}

type UpdateLeadRequest struct {
	Identity      *UpdateIdentityBlock   `json:"identity,omitempty"`
	Qualification *QualificationBlock    `json:"qualification,omitempty"`
	System        *UpdateSystemBlock     `json:"system,omitempty"`
	Profile       map[string]interface{} `json:"profile,omitempty"`
}

type AssignLeadRequest struct {
	AgentID        string  `json:"agentId" validate:"required"`
	ReassignReason *string `json:"reassignReason,omitempty" validate:"omitempty,max=500"`
}

type ListLeadsRequest struct {
	Search         string          `form:"search" validate:"max=100"`
	Status         *LeadStatus     `form:"status" validate:"omitempty,oneof=New Contacted Qualified Shortlisted Site_Visit Negotiation Booked Lost Converted"`
	Classification *Classification `form:"classification" validate:"omitempty,oneof=Cold Warm Hot Void"`
	Page           int             `form:"page" validate:"min=0"`
	Limit          int             `form:"limit" validate:"min=0,max=100"`
}

// Response DTOs

type IdentityResponse struct {
	FullName string  `json:"fullName"`
	Phone    string  `json:"phone"`
	Email    *string `json:"email,omitempty"`
}

type QualificationResponse struct {
	Classification Classification `json:"classification"`
	VoidReason     *VoidReason    `json:"voidReason,omitempty"`
	VoidReasonNote *string        `json:"voidReasonNote,omitempty"`
	Source         *string        `json:"source,omitempty"`
	BudgetMin      *int64         `json:"budgetMin,omitempty"`
	BudgetMax      *int64         `json:"budgetMax,omitempty"`
}

type AssignmentEntry struct {
	ID        uuid.UUID  `json:"id"`
	FromAgent *uuid.UUID `json:"fromAgent,omitempty"`
	ToAgent   uuid.UUID  `json:"toAgent"`
	AssignedBy *uuid.UUID `json:"assignedBy,omitempty"`
	Reason    string     `json:"reason"`
	Timestamp time.Time  `json:"timestamp"`
}

type SystemResponse struct {
	LeadStatus        LeadStatus        `json:"leadStatus"`
	AssignedAgent     *uuid.UUID        `json:"assignedAgent"`
	AssignmentHistory []AssignmentEntry `json:"assignmentHistory,omitempty"`
	PriorityScore     int               `json:"priorityScore"`
	InvestmentScore   int               `json:"investmentScore"`
}

type LeadResponse struct {
	ID              uuid.UUID              `json:"id"`
	Identity        IdentityResponse       `json:"identity"`
	Qualification   QualificationResponse  `json:"qualification"`
	System          SystemResponse         `json:"system"`
	Profile         map[string]interface{} `json:"profile,omitempty"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
	LastContactedAt *time.Time             `json:"lastContactedAt,omitempty"`
	ConvertedAt     *time.Time             `json:"convertedAt,omitempty"`
}

type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

type LeadListResponse struct {
	Data       []LeadResponse `json:"data"`
	Pagination Pagination     `json:"pagination"`
}

type DuplicateCheckResponse struct {
	IsDuplicate  bool          `json:"isDuplicate"`
	ExistingLead *LeadResponse `json:"existingLead,omitempty"`
}

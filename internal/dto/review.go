package dto

import "encoding/json"

// SubmitReviewRequest is the student's answer to a review request. Rating is
// kept raw so non-numeric input can be told apart from a missing value.
type SubmitReviewRequest struct {
	ReviewRequestID string          `json:"reviewRequestId"`
	Rating          json.RawMessage `json:"rating" swaggertype:"integer"`
	Comment         *string         `json:"comment,omitempty"`
}

// IssueReviewRequestsRequest asks a set of students to review a course.
type IssueReviewRequestsRequest struct {
	TutorID    string   `json:"tutorId"`
	CourseID   string   `json:"courseId"`
	StudentIDs []string `json:"studentIds"`
	Message    *string  `json:"message,omitempty"`
}

// DecideReviewRequest carries a tutor's moderation decision.
type DecideReviewRequest struct {
	Status string `json:"status" validate:"required,oneof=accepted rejected"`
}

// ReviewListQuery filters the public review listing.
type ReviewListQuery struct {
	CourseID  string `form:"courseId"`
	TutorID   string `form:"tutorId"`
	StudentID string `form:"studentId"`
}

// ExportReviewsQuery selects the export format.
type ExportReviewsQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
}

// ExportFile is a rendered export ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

package models

import "time"

// ReviewRequestStatus represents the lifecycle of a tutor's review solicitation.
type ReviewRequestStatus string

const (
	ReviewRequestStatusPending   ReviewRequestStatus = "pending"
	ReviewRequestStatusResponded ReviewRequestStatus = "responded"
)

// ReviewRequest asks one student to review one course of a tutor.
type ReviewRequest struct {
	ID          string              `db:"id" json:"id"`
	TutorID     string              `db:"tutor_id" json:"tutorId"`
	CourseID    string              `db:"course_id" json:"courseId"`
	StudentID   string              `db:"student_id" json:"studentId"`
	Message     *string             `db:"message" json:"message,omitempty"`
	Status      ReviewRequestStatus `db:"status" json:"status"`
	CreatedAt   time.Time           `db:"created_at" json:"createdAt"`
	RespondedAt *time.Time          `db:"responded_at" json:"respondedAt,omitempty"`
}

// ReviewRequestDetail enriches a request with display names.
type ReviewRequestDetail struct {
	ReviewRequest
	CourseTitle string `db:"course_title" json:"courseTitle"`
	StudentName string `db:"student_name" json:"studentName"`
	TutorName   string `db:"tutor_name" json:"tutorName"`
}

// IssueStats counts the outcome of a batch of review requests.
type IssueStats struct {
	Sent               int `json:"sent"`
	PendingDuplicates  int `json:"pendingDuplicates"`
	ReviewedDuplicates int `json:"reviewedDuplicates"`
}

// IssueResult is returned to tutors after issuing review requests.
type IssueResult struct {
	Message string     `json:"message"`
	Stats   IssueStats `json:"stats"`
}

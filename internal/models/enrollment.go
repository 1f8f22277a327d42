package models

import "time"

// Enrollment is proof of purchase for full-course access.
type Enrollment struct {
	ID         string    `db:"id" json:"id"`
	StudentID  string    `db:"student_id" json:"studentId"`
	CourseID   string    `db:"course_id" json:"courseId"`
	EnrolledAt time.Time `db:"enrolled_at" json:"enrolledAt"`
	Progress   int       `db:"progress" json:"progress"`
}

package models

import "time"

// Course is a purchasable unit of tuition owned by a tutor.
type Course struct {
	ID             string    `db:"id" json:"id"`
	TutorID        string    `db:"tutor_id" json:"tutor_id"`
	Title          string    `db:"title" json:"title"`
	FullCourseRate float64   `db:"full_course_rate" json:"full_course_rate"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// CourseSummary is the compact course view embedded in tutor profiles.
type CourseSummary struct {
	ID    string  `db:"id" json:"id"`
	Title string  `db:"title" json:"title"`
	Price float64 `db:"full_course_rate" json:"price"`
}

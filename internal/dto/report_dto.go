package dto

import "time"

// StudentReport summarises one student's projects.
type StudentReport struct {
	StudentID    uint    `json:"student_id"`
	StudentName  string  `json:"student_name"`
	Total        int     `json:"total"`
	Pending      int     `json:"pending"`
	Approved     int     `json:"approved"`
	Rejected     int     `json:"rejected"`
	Withdrawn    int     `json:"withdrawn"`
	Feedback     int     `json:"feedback_requested"`
	Improvements int64   `json:"improvements"`
	AverageScore float64 `json:"average_score"`
}

// ClassReport aggregates project progress across the class.
type ClassReport struct {
	GeneratedAt   time.Time       `json:"generated_at"`
	TotalProjects int             `json:"total_projects"`
	Students      []StudentReport `json:"students"`
}

package model

import "time"

// BalanceRecord is the fee balance of one student.
type BalanceRecord struct {
	AdmissionNumber string    `json:"adm"`
	StudentName     string    `json:"student_name"`
	Balance         int64     `json:"fee_balance"`
	Class           string    `json:"class"`
	PostedAt        time.Time `json:"date_posted"`
}

// ResultRecord is the latest exam result of one student.
type ResultRecord struct {
	AdmissionNumber string         `json:"adm"`
	StudentName     string         `json:"student_name"`
	ExamName        string         `json:"exam_name"`
	Results         string         `json:"results"` // compact form, e.g. "ENG:78KIS:72"
	Class           string         `json:"class"`
	PostedAt        time.Time      `json:"date_posted"`
	Subjects        []SubjectScore `json:"subjects,omitempty"`
	MeanGrade       string         `json:"mean_grade,omitempty"`
	Position        string         `json:"position,omitempty"`
	TotalStudents   int            `json:"total_students,omitempty"`
}

// EventRecord is an upcoming school event.
type EventRecord struct {
	Name         string    `json:"event_name"`
	Details      string    `json:"event_details"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	Organization string    `json:"school_name"`
}

// FeeStructure is the per-term fee schedule of one class.
type FeeStructure struct {
	Class        string    `json:"class"`
	Term1        int64     `json:"term1"`
	Term2        int64     `json:"term2"`
	Term3        int64     `json:"term3"`
	Total        int64     `json:"total"`
	Organization string    `json:"school_name"`
	PostedAt     time.Time `json:"date_posted"`
}

// PaymentInstructions tells parents how to pay.
type PaymentInstructions struct {
	Description  string `json:"description"`
	Organization string `json:"school_name"`
}

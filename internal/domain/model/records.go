// Package model contains domain models passed between layers.
package model

import "time"

// AttendanceStatus tags an attendance record. Only Absent and Late feed
// the risk features; every other status is ignored.
type AttendanceStatus string

// Known attendance statuses.
const (
	StatusPresent AttendanceStatus = "Present"
	StatusAbsent  AttendanceStatus = "Absent"
	StatusLate    AttendanceStatus = "Late"
	StatusLeave   AttendanceStatus = "Leave"
)

// Person is an employee as exposed by the record source.
type Person struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	HireDate         *time.Time `json:"hireDate,omitempty"` // nil when unknown
	OrganizationUnit string     `json:"organizationUnit"`   // empty when unassigned
}

// EvaluationRecord is one performance evaluation of a person.
type EvaluationRecord struct {
	ID           string    `json:"id"`
	PersonID     string    `json:"personId"`
	EvaluatedAt  time.Time `json:"evaluatedAt"`
	OverallScore float64   `json:"overallScore"` // open range, conventionally 0-10
}

// AttendanceRecord is one attendance entry of an employee.
type AttendanceRecord struct {
	ID         string           `json:"id"`
	EmployeeID string           `json:"employeeId"`
	Date       time.Time        `json:"date"`
	Status     AttendanceStatus `json:"status"`
}

// Dataset is everything a record source materializes for one analysis run.
type Dataset struct {
	People      []Person           `json:"people"`
	Evaluations []EvaluationRecord `json:"evaluations"`
	Attendance  []AttendanceRecord `json:"attendance"`
}

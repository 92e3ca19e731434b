package models

import "time"

// Lead holds the contact details collected by the form agent. Field values
// are stored normalized: names title-cased, phone in dotted pairs, email
// lowercased.
type Lead struct {
	ID        string
	LastName  string
	FirstName string
	Phone     string
	Email     string
	Timestamp time.Time
}

// LeadStats summarizes the lead workbook.
type LeadStats struct {
	Total int
	Today int
}

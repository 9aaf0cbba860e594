package models

import "time"

const (
	// CounterStaffID names the sequence that hands out staff ids.
	CounterStaffID = "staff_id"
	// CounterAdminRegistrations is locked to serialise admin sign-ups.
	CounterAdminRegistrations = "admin_registrations"
	// StaffIDFloor is the value the staff id sequence starts above.
	StaffIDFloor int64 = 5550
)

// Counter is a named monotonic sequence.
type Counter struct {
	Name      string `gorm:"primaryKey;size:64"`
	Value     int64  `gorm:"not null"`
	UpdatedAt time.Time
}

package model

import "strings"

// MembershipStatus is the integer code stored for a transaction's membership status
type MembershipStatus int64

const (
	MembershipUnknown MembershipStatus = iota
	MembershipActive
	MembershipCancelled
	MembershipExpired
	MembershipFreeze
)

// MembershipStatuses are the known statuses, seeded into the membership_status table
var MembershipStatuses = []MembershipStatus{MembershipActive, MembershipCancelled, MembershipExpired, MembershipFreeze}

func (m MembershipStatus) String() string {
	switch m {
	case MembershipActive:
		return "Active"
	case MembershipCancelled:
		return "Cancelled"
	case MembershipExpired:
		return "Expired"
	case MembershipFreeze:
		return "Freeze"
	default:
		return "Unknown"
	}
}

// ParseMembershipStatus maps a label case-insensitively; unknown labels report false
func ParseMembershipStatus(label string) (MembershipStatus, bool) {
	for _, m := range MembershipStatuses {
		if strings.EqualFold(label, m.String()) {
			return m, true
		}
	}
	return MembershipUnknown, false
}

// Gender is the integer code stored for a client's gender
type Gender int64

const (
	GenderUnknown Gender = iota
	GenderMale
	GenderFemale
)

func (g Gender) String() string {
	switch g {
	case GenderMale:
		return "Male"
	case GenderFemale:
		return "Female"
	default:
		return "Unknown"
	}
}

// ParseGender maps a label case-insensitively; unknown labels report false
func ParseGender(label string) (Gender, bool) {
	switch strings.ToLower(label) {
	case "male":
		return GenderMale, true
	case "female":
		return GenderFemale, true
	default:
		return GenderUnknown, false
	}
}

// AttendanceRow is one client's attendance at one event.
// Optional columns are pointers; nil is stored as NULL.
type AttendanceRow struct {
	Attendee     string
	Event        *string
	ModifiedDate int64
	Renewed      bool
	Status       string
	TimeAttended *int64
}

func (r *AttendanceRow) Entity() EntityType { return Attendance }
func (r *AttendanceRow) Freshness() int64   { return r.ModifiedDate }

// ClientRow is a studio member
type ClientRow struct {
	ID             string
	FullName       string
	Gender         *Gender
	Email          *string
	Birthdate      *int64
	Membership     *string
	PerfectScanID  string
	CreatedDate    int64
	StartDate      *int64
	EnrollmentDate *int64
	LastAttended   *int64
	Photo          *string
	PrimaryNumber  int64
}

func (r *ClientRow) Entity() EntityType { return Client }
func (r *ClientRow) Freshness() int64   { return r.CreatedDate }

// EventRow is a scheduled class
type EventRow struct {
	CreatedDate  int64
	ModifiedDate int64
	Details      *string
	EndTime      int64
	ID           string
	Price        *float64
	StartTime    int64
	Subject      string
	Teacher      *string
}

func (r *EventRow) Entity() EntityType { return Event }
func (r *EventRow) Freshness() int64   { return r.ModifiedDate }

// TeacherRow is an instructor
type TeacherRow struct {
	CreatedDate  int64
	Email        *string
	FullName     string
	ID           string
	JobTitle     *string
	MobilePhone  int64
	ModifiedDate int64
	Position     *string
}

func (r *TeacherRow) Entity() EntityType { return Teacher }
func (r *TeacherRow) Freshness() int64   { return r.ModifiedDate }

// TransactionRow is a membership purchase
type TransactionRow struct {
	CreatedDate       int64
	DurationDays      *int64
	EachPayment       *float64
	Expiry            *int64
	FinalPayment      *int64
	FirstPayment      *int64
	ForfeitedAmount   *float64
	ID                string
	MembershipName    *string
	MembershipStatus  *MembershipStatus
	MembershipTotal   *float64
	ModifiedDate      int64
	NumberofPayments  *float64
	Ongoing           bool
	SessionsLeft      *int64
	SessionsPurchased *int64
	TotalAmount       *float64
}

func (r *TransactionRow) Entity() EntityType { return Transaction }
func (r *TransactionRow) Freshness() int64   { return r.ModifiedDate }

package protocol

// Role is a portal staff role, mapped from the login email prefix.
type Role string

const (
	RoleAdmin   Role = "Admin"
	RoleSupport Role = "Support"
	RoleContent Role = "Content"
)

// Program is a leadership program offered to customers.
type Program struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Duration      string `json:"duration"`
	Fees          string `json:"fees"`
	Capacity      int    `json:"capacity"`
	EnrolledCount int    `json:"enrolledCount"`
	Active        bool   `json:"active"`
}

// Mentor is a program mentor available for customer handovers.
type Mentor struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Specialization string  `json:"specialization"`
	Exp            int     `json:"exp"`
	Rating         float64 `json:"rating"`
	ActiveLearners int     `json:"activeLearners"`
	Available      bool    `json:"available"`
}

// Customer is an enrolled participant.
type Customer struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Program  string `json:"program"`
	JoinDate string `json:"joinDate"`
	Status   string `json:"status"` // "Active", "Completed", "On-Hold"
}

// StaffUser is a portal operator account.
type StaffUser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	Status string `json:"status"` // "Active" or "Inactive"
}

package certificate

import "time"

type Certificate struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	CourseID string    `json:"course_id"`
	Number   string    `json:"certificate_number"`
	IssuedAt time.Time `json:"issued_at"` // UTC
}

// Details is a certificate with the names needed to display it.
type Details struct {
	Certificate
	HolderName  string `json:"holder_name"`
	HolderEmail string `json:"-"`
	CourseTitle string `json:"course_title"`
}

// Verification is the public view of a certificate.
type Verification struct {
	Number      string    `json:"certificate_number"`
	HolderName  string    `json:"holder_name"`
	CourseTitle string    `json:"course_title"`
	IssuedAt    time.Time `json:"issued_at"`
}

type QueryFilter struct {
	UserID   string    `query:"user_id"`
	CourseID string    `query:"course_id"`
	From     time.Time `query:"from"`
	To       time.Time `query:"to"`
}

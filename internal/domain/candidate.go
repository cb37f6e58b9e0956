package domain

// NA marks a candidate field that extraction could not find.
const NA = "N/A"

// ReceivedDateLayout is the layout of Candidate.ReceivedDate.
const ReceivedDateLayout = "2006-01-02 15:04:05"

// Candidate is one applicant, keyed by Email.
type Candidate struct {
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Phone        string   `json:"phone"`
	LinkedIn     string   `json:"linkedin"`
	GitHub       string   `json:"github"`
	Internship   string   `json:"internship"`
	Subject      string   `json:"subject"`
	Sender       string   `json:"sender"`
	ReceivedDate string   `json:"receivedDate"`
	Notes        string   `json:"notes"`
	Attachments  []string `json:"attachments"`
	CV           string   `json:"cv"`
	Reviewed     bool     `json:"reviewed"`
}

// Fallback is the record used when there is nothing to extract from.
func Fallback(email string) Candidate {
	return Candidate{
		Name:        NA,
		Email:       email,
		Phone:       NA,
		LinkedIn:    NA,
		GitHub:      NA,
		Internship:  NA,
		Subject:     NA,
		Sender:      NA,
		Notes:       "",
		Attachments: []string{},
		CV:          NA,
	}
}

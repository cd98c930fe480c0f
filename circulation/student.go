package circulation

// Student is the borrower identity as known to the circulation core. Student
// registration and profile management live elsewhere; circulation only checks
// existence and joins the name into reports.
type Student struct {
	StudentID string
	Username  string
	Name      string
}

package domain

// MailKind identifies which templated email a MailRequest asks for.
type MailKind string

// Supported mail kinds.
const (
	MailConfirmEmail  MailKind = "confirm_email"
	MailResetPassword MailKind = "reset_password"
)

// MailRequest asks for a templated email to be rendered and delivered to an
// account. Host is the public base URL the links in the email point at.
type MailRequest struct {
	Kind     MailKind `json:"kind"`
	Email    string   `json:"email"`
	Username string   `json:"username"`
	Host     string   `json:"host"`
	Token    string   `json:"token"`
}

// Valid reports whether the request names a known kind and a recipient.
func (r MailRequest) Valid() bool {
	switch r.Kind {
	case MailConfirmEmail, MailResetPassword:
		return r.Email != "" && r.Token != ""
	default:
		return false
	}
}

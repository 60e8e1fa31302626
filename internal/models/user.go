// internal/models/user.go
package models

// Profile is the read-only slice of a user record this service needs:
// identity fields revealed after mutual consent, and the non-identifying
// signals shown before it.
type Profile struct {
	UserID           string `json:"userId"`
	Name             string `json:"name"`
	Company          string `json:"company,omitempty"`
	Handle           string `json:"handle,omitempty"`
	Email            string `json:"-"`
	VerificationTier string `json:"verificationTier"`
	DealCount        int    `json:"dealCount"`
}

// DisplayName is used for NDA party names.
func (p *Profile) DisplayName() string {
	switch {
	case p == nil:
		return "Party"
	case p.Company != "" && p.Name != "":
		return p.Name + " (" + p.Company + ")"
	case p.Company != "":
		return p.Company
	case p.Name != "":
		return p.Name
	default:
		return "Party"
	}
}

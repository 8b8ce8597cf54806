package affiliate

import "strings"

// Attribution identifies the affiliate a purchase should be credited to. It
// arrives with the checkout request or rides along on a coupon created from an
// affiliate tracking link; this service never computes it.
type Attribution struct {
	ID       string `json:"id"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
}

// Empty reports whether the attribution carries no usable identity.
func (a Attribution) Empty() bool {
	return strings.TrimSpace(a.ID) == "" && strings.TrimSpace(a.Email) == "" && strings.TrimSpace(a.Username) == ""
}

// Merge overlays non-empty fields of other onto a and returns the result.
// Coupon-borne attribution wins over request-borne attribution field by field.
func (a Attribution) Merge(other Attribution) Attribution {
	out := a
	if strings.TrimSpace(other.ID) != "" {
		out.ID = other.ID
	}
	if strings.TrimSpace(other.Email) != "" {
		out.Email = other.Email
	}
	if strings.TrimSpace(other.Username) != "" {
		out.Username = other.Username
	}
	return out
}

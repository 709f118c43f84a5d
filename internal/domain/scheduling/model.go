package scheduling

import (
	"github.com/guregu/null/v5"
)

// DayAvailability is one day's booking flag for the displayed month.
type DayAvailability struct {
	Day       int  `json:"day"`
	Available bool `json:"available"`
}

// Client is the customer attached to an appointment.
type Client struct {
	Name      string      `json:"name"`
	AvatarURL null.String `json:"avatar_url"`
}

// Appointment is a scheduled appointment as returned by the API. Date is kept
// raw so a malformed timestamp only affects its own record.
type Appointment struct {
	ID     string `json:"id"`
	Date   string `json:"date"`
	Client Client `json:"user"`
}

// ClientName returns the customer's display name.
func (a Appointment) ClientName() string { return a.Client.Name }

// ClientAvatarURL returns the avatar URL, or "" when the API sent null or an empty value.
func (a Appointment) ClientAvatarURL() string {
	if !a.Client.AvatarURL.Valid {
		return ""
	}
	return a.Client.AvatarURL.String
}

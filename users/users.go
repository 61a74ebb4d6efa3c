package users

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"unicode"
)

// RoleType represents the SpeakWise role a user signs in as
type RoleType string

const (
	RoleAttendee  RoleType = "attendee"  // Attends talks and leaves verified feedback
	RoleSpeaker   RoleType = "speaker"   // Presents talks and reads their feedback
	RoleOrganizer RoleType = "organizer" // Runs events and manages speakers
	RoleAdmin     RoleType = "admin"     // Platform administration
)

// Roles lists every known role in display order
var Roles = []RoleType{RoleAttendee, RoleSpeaker, RoleOrganizer, RoleAdmin}

// ParseRole maps a case-insensitive role name onto a RoleType
func ParseRole(role string) (RoleType, error) {
	r := RoleType(strings.ToLower(strings.TrimSpace(role)))
	for _, known := range Roles {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", role)
}

// ID is a user identifier. The backend sends numeric ids; older payloads send strings.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// IDFromAny converts a loosely typed id value (string, float64, json.Number) to an ID
func IDFromAny(v any) ID {
	switch t := v.(type) {
	case string:
		return ID(t)
	case json.Number:
		return ID(t.String())
	case float64:
		return ID(strconv.FormatFloat(t, 'f', -1, 64))
	case int:
		return ID(strconv.Itoa(t))
	default:
		return ""
	}
}

// Summary is the cached user profile kept next to the tokens
type Summary struct {
	ID        ID       `json:"id,omitempty"`         // Backend user id
	FirstName string   `json:"first_name,omitempty"` // First name, empty until the profile is completed
	LastName  string   `json:"last_name,omitempty"`  // Last name
	Email     string   `json:"email,omitempty"`      // Sign-in email
	Role      RoleType `json:"role,omitempty"`       // Role the session was opened with
}

// IsNewUser reports whether the profile still needs completing
func (s *Summary) IsNewUser() bool {
	return s == nil || strings.TrimSpace(s.FirstName) == ""
}

// HasRole returns true if the user holds any of roles. An empty list matches everyone.
func (s *Summary) HasRole(roles ...RoleType) bool {
	if len(roles) == 0 {
		return true
	}
	if s == nil {
		return false
	}
	for _, role := range roles {
		if s.Role == role {
			return true
		}
	}
	return false
}

func (s *Summary) DisplayName() string {
	if s == nil {
		return ""
	}
	name := strings.TrimSpace(s.FirstName + " " + s.LastName)
	if name == "" {
		return s.Email
	}
	return name
}

// RegistrationRequest carries the sign-up form fields sent to the backend
type RegistrationRequest struct {
	Email           string   `json:"email"`
	Password        string   `json:"password"`
	PasswordConfirm string   `json:"password2"`
	FirstName       string   `json:"first_name"`
	LastName        string   `json:"last_name"`
	Role            RoleType `json:"role"`
	Organization    string   `json:"organization,omitempty"`
}

// Validate runs the checks that can be made before calling the backend.
// The backend remains the authority on everything else.
func (r RegistrationRequest) Validate() error {
	if strings.TrimSpace(r.FirstName) == "" || strings.TrimSpace(r.LastName) == "" {
		return fmt.Errorf("first and last name are required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return fmt.Errorf("a valid email address is required")
	}
	if _, err := ParseRole(string(r.Role)); err != nil {
		return err
	}
	if r.PasswordConfirm != "" && r.PasswordConfirm != r.Password {
		return fmt.Errorf("passwords do not match")
	}
	return ValidatePasswordStrength(r.Password)
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

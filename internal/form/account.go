package form

import (
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sakif/blog/internal/auth"
)

const (
	MaxUsernameLength = 150
	MinPasswordLength = 8

	// maxSimilarity is the share of characters a password may have in common
	// with the username or email before it is rejected.
	maxSimilarity = 0.7
)

// Registration is the sign-up form.
type Registration struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password1 string `json:"password1"`
	Password2 string `json:"password2"`
}

// Normalize trims surrounding whitespace from username and email. Passwords
// are left exactly as typed.
func (r *Registration) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
}

// Validate checks every field. Username uniqueness needs the database and is
// checked by the account service.
func (r Registration) Validate() Errors {
	errs := Errors{}

	if msg := usernameError(r.Username); msg != "" {
		errs.Add("username", msg)
	}
	if msg := emailError(r.Email, true); msg != "" {
		errs.Add("email", msg)
	}
	if msg := passwordError(r.Password1, r.Username, r.Email); msg != "" {
		errs.Add("password1", msg)
	}
	switch {
	case r.Password2 == "":
		errs.Add("password2", "This field is required.")
	case r.Password1 != r.Password2:
		errs.Add("password2", "The two password fields didn't match.")
	}

	return errs
}

// UserUpdate is the account half of the profile form. A nil field was not
// submitted and keeps its current value.
type UserUpdate struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
}

// Normalize trims submitted values.
func (u *UserUpdate) Normalize() {
	if u.Username != nil {
		v := strings.TrimSpace(*u.Username)
		u.Username = &v
	}
	if u.Email != nil {
		v := strings.TrimSpace(*u.Email)
		u.Email = &v
	}
}

// Validate applies the registration rules to the submitted fields. Email may
// be cleared on update; username may not.
func (u UserUpdate) Validate() Errors {
	errs := Errors{}
	if u.Username != nil {
		if msg := usernameError(*u.Username); msg != "" {
			errs.Add("username", msg)
		}
	}
	if u.Email != nil {
		if msg := emailError(*u.Email, false); msg != "" {
			errs.Add("email", msg)
		}
	}
	return errs
}

func usernameError(username string) string {
	if username == "" {
		return "This field is required."
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return "Ensure this value has at most 150 characters."
	}
	for _, r := range username {
		if !isUsernameRune(r) {
			return "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
		}
	}
	return ""
}

func isUsernameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	return strings.ContainsRune("@.+-_", r)
}

func emailError(email string, required bool) string {
	if email == "" {
		if required {
			return "This field is required."
		}
		return ""
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndexByte(email, '@')+1:], ".") {
		return "Enter a valid email address."
	}
	return ""
}

func passwordError(password, username, email string) string {
	switch {
	case password == "":
		return "This field is required."
	case utf8.RuneCountInString(password) < MinPasswordLength:
		return "This password is too short. It must contain at least 8 characters."
	case len(password) > auth.MaxPasswordBytes:
		return "This password is too long. It must contain at most 72 bytes."
	case isNumeric(password):
		return "This password is entirely numeric."
	case tooSimilar(password, username):
		return "The password is too similar to the username."
	case tooSimilar(password, emailLocalPart(email)):
		return "The password is too similar to the email address."
	}
	return ""
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

func emailLocalPart(email string) string {
	if i := strings.IndexByte(email, '@'); i >= 0 {
		return email[:i]
	}
	return email
}

// tooSimilar compares case-insensitively with the ratio
// 2*LCS/(len(a)+len(b)), where LCS is the longest common subsequence.
func tooSimilar(password, attr string) bool {
	if attr == "" {
		return false
	}
	a := []rune(strings.ToLower(password))
	b := []rune(strings.ToLower(attr))
	ratio := 2 * float64(lcs(a, b)) / float64(len(a)+len(b))
	return ratio >= maxSimilarity
}

func lcs(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

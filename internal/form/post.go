package form

import (
	"strings"
	"unicode/utf8"
)

const MaxTitleLength = 100

// PostInput is the create/update form for a post. The author is never taken
// from input.
type PostInput struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (p *PostInput) Normalize() {
	p.Title = strings.TrimSpace(p.Title)
}

func (p PostInput) Validate() Errors {
	errs := Errors{}
	switch {
	case p.Title == "":
		errs.Add("title", "This field is required.")
	case utf8.RuneCountInString(p.Title) > MaxTitleLength:
		errs.Add("title", "Ensure this value has at most 100 characters.")
	}
	if strings.TrimSpace(p.Content) == "" {
		errs.Add("content", "This field is required.")
	}
	return errs
}

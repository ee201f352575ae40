package service

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// CreateEventRequest holds the caller supplied fields of a new event.
type CreateEventRequest struct {
	Title       string
	Description string
	Source      string
	Type        string
}

type fieldRule struct {
	name      string
	value     string
	required  bool
	maxLength int
	label     string
}

// Validate checks every field and reports all violations at once.
func (r *CreateEventRequest) Validate() error {
	rules := []fieldRule{
		{name: "title", value: r.Title, required: true, maxLength: 200, label: "Title"},
		{name: "description", value: r.Description, maxLength: 1000, label: "Description"},
		{name: "source", value: r.Source, required: true, maxLength: 100, label: "Source"},
		{name: "type", value: r.Type, required: true, maxLength: 50, label: "Type"},
	}

	fields := make(map[string]string)
	for _, rule := range rules {
		if rule.required && strings.TrimSpace(rule.value) == "" {
			fields[rule.name] = rule.label + " is required"
			continue
		}
		if utf8.RuneCountInString(rule.value) > rule.maxLength {
			fields[rule.name] = tooLongMessage(rule)
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func tooLongMessage(rule fieldRule) string {
	if rule.name == "title" {
		return "Title must be between 1 and 200 characters"
	}
	return fmt.Sprintf("%s cannot exceed %d characters", rule.label, rule.maxLength)
}

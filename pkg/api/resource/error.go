package resource

import "time"

type ErrorResource struct {
	Status    int               `json:"status"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
	Errors    map[string]string `json:"errors,omitempty"`
}

func NewError(status int, message string) *ErrorResource {
	return &ErrorResource{
		Status:    status,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

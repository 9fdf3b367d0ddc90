package models

import "fmt"

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidatePartEvent(event *PartEvent) error {
	if event == nil {
		return &ValidationError{
			Field:   "event",
			Message: "part event cannot be nil",
		}
	}

	if event.ID == "" {
		return &ValidationError{
			Field:   "id",
			Message: "event ID is required",
		}
	}

	if event.EventType == "" {
		return &ValidationError{
			Field:   "event_type",
			Message: "event type is required",
		}
	}

	if event.Timestamp.IsZero() {
		return &ValidationError{
			Field:   "timestamp",
			Message: "event timestamp is required",
		}
	}

	if event.Part.ID == "" {
		return &ValidationError{
			Field:   "part.id",
			Message: "part id is required",
		}
	}

	if event.Part.ArticleCode == "" {
		return &ValidationError{
			Field:   "part.article_code",
			Message: "article code is required",
		}
	}

	return nil
}

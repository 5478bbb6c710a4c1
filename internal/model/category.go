package model

// Category is the closed set of message categories a classifier can assign
type Category string

const (
	CategoryPersonalInformation Category = "PERSONAL_INFORMATION_TICKET" // Message carries identifiable personal data
	CategoryDevelopment         Category = "DEVELOPMENT_TICKET"          // Technical/process request about a system under construction
	CategoryGeneralQuestion     Category = "GENERAL_QUESTION"            // Direct policy inquiry
)

// Categories lists every category in precedence order
func Categories() []Category {
	return []Category{CategoryPersonalInformation, CategoryDevelopment, CategoryGeneralQuestion}
}

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	switch c {
	case CategoryPersonalInformation, CategoryDevelopment, CategoryGeneralQuestion:
		return true
	default:
		return false
	}
}

// HandlesPersonalInformation reports whether messages of this category
// need a risk assessment over extracted detections
func (c Category) HandlesPersonalInformation() bool {
	return c == CategoryPersonalInformation
}

// Label returns a human-readable name used in transcripts and reports
func (c Category) Label() string {
	switch c {
	case CategoryPersonalInformation:
		return "Personal Information Ticket"
	case CategoryDevelopment:
		return "Development/Requirements Ticket"
	case CategoryGeneralQuestion:
		return "General Policy Question"
	default:
		return "Unknown"
	}
}

package errors

import "strings"

// ErrorCollection accumulates errors from best-effort operations such as
// cleanup, where a single failure must not stop the remaining work
type ErrorCollection struct {
	errors []error
}

func NewErrorCollection() *ErrorCollection {
	return &ErrorCollection{}
}

// Add appends a non-nil error to the collection
func (c *ErrorCollection) Add(err error) {
	if err != nil {
		c.errors = append(c.errors, err)
	}
}

func (c *ErrorCollection) HasErrors() bool {
	return len(c.errors) > 0
}

func (c *ErrorCollection) Errors() []error {
	errorsCopy := make([]error, len(c.errors))
	copy(errorsCopy, c.errors)
	return errorsCopy
}

func (c *ErrorCollection) Error() string {
	if len(c.errors) == 0 {
		return ""
	}
	messages := make([]string, 0, len(c.errors))
	for _, err := range c.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// ToError returns nil when the collection is empty, otherwise the collection
// itself as a single error value
func (c *ErrorCollection) ToError() error {
	if !c.HasErrors() {
		return nil
	}
	return c
}

package lessons

import "fmt"

// NotFoundError reports a lesson ID that is in neither tier.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("lesson not found: %s", e.ID)
}

// DuplicateError reports an Add whose normalized title collides with an
// existing lesson in the same tier.
type DuplicateError struct {
	ID    string
	Title string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate lesson title %q (existing: %s)", e.Title, e.ID)
}

// NotPromotableError reports a Promote on a lesson that has not earned it.
type NotPromotableError struct {
	ID     string
	Reason string
}

func (e *NotPromotableError) Error() string {
	return fmt.Sprintf("lesson %s not promotable: %s", e.ID, e.Reason)
}

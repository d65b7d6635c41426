package itinerary

import "errors"

var (
	// ErrInvalidTripLength is returned when a trip has zero or negative days.
	ErrInvalidTripLength = errors.New("trip length must be at least one day")

	// ErrInvalidBudget is returned when the predicted budget is negative or not a number.
	ErrInvalidBudget = errors.New("budget prediction must be a non-negative number")

	// ErrEmptyCandidateSet is returned when selection runs over no candidates.
	ErrEmptyCandidateSet = errors.New("no itinerary candidates to select from")
)

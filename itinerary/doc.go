// Package itinerary generates, scores and selects itinerary candidates for a
// single-destination trip.
//
// A request produces exactly three candidates (balanced, high intensity,
// relaxed). Each one is scored against an externally predicted budget and a
// safety flag with a fixed set of penalty and bonus terms, the highest score
// wins, and the winning breakdown is turned into a one-sentence rationale.
//
// The package holds no state between calls. Budget prediction and safety
// rules are supplied by the caller.
package itinerary

package model

import "time"

// Direction selects which side of a special relationship to follow
type Direction int

const (
	DirectionBoth Direction = iota
	DirectionOutgoing
	DirectionIncoming
)

// SpecialRelationship is a named, non-containment edge between two objects
type SpecialRelationship struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	SourceID   string            `json:"source_id"`
	TargetID   string            `json:"target_id"`
	Properties map[string]string `json:"properties,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// AnnotatedObject is an object reached through a special relationship, along
// with that relationship's properties.
type AnnotatedObject struct {
	Object     BusinessObject    `json:"object"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Route is a path through special relationships, endpoints included
type Route struct {
	Hops []BusinessObject `json:"hops"`
}

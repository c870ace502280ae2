// Package sdh manages SDH transport, container and tributary links. Links are
// standalone objects tied to equipment, ports and to each other through
// special relationships; timeslots are kept as the sdhPosition property of
// the sdhTransports and sdhContains relationships.
package sdh

import (
	"errors"

	"github.com/martinsuchenak/invd/internal/storage"
)

// Relationship names
const (
	RelTLEndpointA   = "sdhTLEndpointA"
	RelTLEndpointB   = "sdhTLEndpointB"
	RelTransportLink = "sdhTransportLink"
	RelContainerLink = "sdhContainerLink"
	RelTTLEndpointA  = "sdhTTLEndpointA"
	RelTTLEndpointB  = "sdhTTLEndpointB"
	RelTransports    = "sdhTransports"
	RelContains      = "sdhContains"
	RelDelivers      = "sdhDelivers"
	PropertyPosition = "sdhPosition"
)

// Class names
const (
	ClassTransportLink          = "GenericSDHTransportLink"
	ClassContainerLink          = "GenericSDHContainerLink"
	ClassHighOrderContainerLink = "GenericSDHHighOrderContainerLink"
	ClassLowOrderContainerLink  = "GenericSDHLowOrderContainerLink"
	ClassTributaryLink          = "GenericSDHTributaryLink"
	ClassHighOrderTributaryLink = "GenericSDHHighOrderTributaryLink"
	ClassLowOrderTributaryLink  = "GenericSDHLowOrderTributaryLink"
)

var (
	ErrInvalidClass       = errors.New("invalid SDH class")
	ErrNoEquipment        = errors.New("port is not located in a communications equipment")
	ErrMissingPosition    = errors.New("container has no position")
	ErrPositionOutOfRange = errors.New("position out of range")
	ErrNotEnoughPositions = errors.New("not enough positions to transport the container")
	ErrPositionInUse      = errors.New("position already in use")
)

// Store is the part of the object graph the SDH service works on
type Store interface {
	storage.ObjectStorage
	storage.RelationshipStorage
}

// Classes answers class hierarchy questions
type Classes interface {
	IsSubclassOf(class, super string) bool
}

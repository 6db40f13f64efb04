package model

import (
	"fmt"
	"strings"
)

// EntityType identifies one of the record categories pulled from the studio API
type EntityType int

const (
	Attendance EntityType = iota
	Client
	Teacher
	Event
	Transaction
)

// EntityTypes lists every entity type in sync order
var EntityTypes = []EntityType{Attendance, Client, Teacher, Event, Transaction}

// String returns the lower-case name used for watermark keys, config and logs
func (e EntityType) String() string {
	switch e {
	case Attendance:
		return "attendance"
	case Client:
		return "client"
	case Teacher:
		return "teacher"
	case Event:
		return "event"
	case Transaction:
		return "transaction"
	default:
		return "unknown"
	}
}

// Table returns the local table holding rows of this entity type
func (e EntityType) Table() string {
	switch e {
	case Attendance:
		return "attendance"
	case Client:
		return "clients"
	case Teacher:
		return "teachers"
	case Event:
		return "events"
	case Transaction:
		return "transactions"
	default:
		return ""
	}
}

// RemoteTable returns the table name the upstream query API knows this entity by
func (e EntityType) RemoteTable() string {
	switch e {
	case Attendance:
		return "Attendance"
	case Client:
		return "Contact"
	case Teacher:
		return "Teachers"
	case Event:
		return "Event"
	case Transaction:
		return "Transaction"
	default:
		return ""
	}
}

// FreshnessColumn is the column whose maximum becomes the entity's watermark
func (e EntityType) FreshnessColumn() string {
	if e == Client {
		return "CreatedDate"
	}
	return "ModifiedDate"
}

// ParseEntityType parses a lower-case entity name
func ParseEntityType(s string) (EntityType, error) {
	for _, e := range EntityTypes {
		if strings.EqualFold(s, e.String()) {
			return e, nil
		}
	}
	return 0, fmt.Errorf("unknown entity type: %q", s)
}

// MarshalText lets entity types be used as JSON map keys
func (e EntityType) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText is the inverse of MarshalText
func (e *EntityType) UnmarshalText(text []byte) error {
	parsed, err := ParseEntityType(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// Record is one raw object as returned by the upstream API.
// Values are string, float64, bool or nil.
type Record map[string]any

// Row is a validated, typed record ready to be persisted
type Row interface {
	Entity() EntityType
	// Freshness is the epoch-seconds value that drives the watermark
	Freshness() int64
}

package godi

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Lifestyle specifies how many instances of a component may exist and when
// they are recycled.
type Lifestyle int

const (
	// Singleton specifies that a single instance of the component is created
	// on first request and reused until the kernel is closed.
	Singleton Lifestyle = iota

	// Transient specifies that a new instance is created on every request.
	// Transient instances are tracked by the release policy only when they,
	// or one of their dependencies, need decommissioning.
	Transient

	// Pooled specifies that instances are taken from a bounded pool.
	// Releasing a pooled instance returns it to the pool.
	Pooled

	// Scoped specifies that one instance is created per Scope.
	// Scoped instances are released when their scope is closed.
	Scoped
)

// String returns the string representation of the Lifestyle.
func (l Lifestyle) String() string {
	switch l {
	case Singleton:
		return "Singleton"
	case Transient:
		return "Transient"
	case Pooled:
		return "Pooled"
	case Scoped:
		return "Scoped"
	default:
		return fmt.Sprintf("Unknown(%d)", int(l))
	}
}

// IsValid checks if the lifestyle is valid.
func (l Lifestyle) IsValid() bool {
	return l >= Singleton && l <= Scoped
}

// MarshalText implements encoding.TextMarshaler.
func (l Lifestyle) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Lifestyle) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "singleton":
		*l = Singleton
	case "transient":
		*l = Transient
	case "pooled":
		*l = Pooled
	case "scoped":
		*l = Scoped
	default:
		return LifestyleError{Value: string(text)}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (l Lifestyle) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Lifestyle) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	return l.UnmarshalText([]byte(s))
}

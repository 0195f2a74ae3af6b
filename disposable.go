package godi

import "context"

// Disposable is implemented by components holding resources that must be
// released when the component is decommissioned.
//
// Example:
//
//	type DatabaseConnection struct {
//	    conn *sql.DB
//	}
//
//	func (dc *DatabaseConnection) Close() error {
//	    return dc.conn.Close()
//	}
type Disposable interface {
	Close() error
}

// DisposableWithContext allows disposal with context for graceful shutdown.
// The kernel passes context.Background() unless a scope supplied its own context.
type DisposableWithContext interface {
	Close(ctx context.Context) error
}

// Initializable is implemented by components that need a commission step
// after their dependencies and properties have been injected.
type Initializable interface {
	Initialize() error
}

package restgraph

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Static errors for err113 compliance.
var (
	ErrUnknownField        = errors.New("unknown field")
	ErrUnknownRelationship = errors.New("unknown relationship")
	ErrNotAddressable      = errors.New("collection is not addressable")
	ErrGatewayRequired     = errors.New("gateway is required")
	ErrSchemaRequired      = errors.New("schema is required")
	ErrRootNotFound        = errors.New("no root collection registered for type")
	ErrUnsupportedMember   = errors.New("collection members must be identifiers or attribute maps")
)

// InsufficientAddressError reports that a node could not be inflated because
// it has neither a direct address nor enough local data to derive one. It is
// also returned when a re-entrant inflation attempt is detected, which is the
// same condition caught before it can recurse.
type InsufficientAddressError struct {
	TypeName   string
	Href       string
	PrimaryKey string
	Value      string
}

// Error implements the error interface.
func (e *InsufficientAddressError) Error() string {
	return fmt.Sprintf("not enough data to inflate %s: need either an address (href: %q) or a %s value (%q)",
		e.TypeName, e.Href, e.PrimaryKey, e.Value)
}

// NotFoundError reports that the backing resource for an address is absent.
type NotFoundError struct {
	Address string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource not found: %s", e.Address)
}

// APIError carries a non-2xx transport response straight through to callers.
type APIError struct {
	StatusCode int
	Address    string
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s returned status %d", e.Address, e.StatusCode)
	}

	return fmt.Sprintf("%s returned status %d: %s", e.Address, e.StatusCode, e.Message)
}

// PolledOperationFailedError reports that an entity's failure predicate became
// true during a wait loop. It carries the entity so callers can inspect its
// last-known state.
type PolledOperationFailedError struct {
	Entity Entity
}

// Error implements the error interface.
func (e *PolledOperationFailedError) Error() string {
	chain := e.Entity.TypeChain()
	if len(chain) == 0 {
		return "polled operation failed"
	}

	return fmt.Sprintf("polled operation failed: %s %q", chain[0], e.Entity.Identifier())
}

// PollTimeoutError reports that a wait loop exhausted its deadline.
type PollTimeoutError struct {
	Timeout time.Duration
}

// Error implements the error interface.
func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("long-running operation failed to complete within %s", e.Timeout)
}

// ValidationError reports an ambiguous identifier match inside a dependent
// collection lookup.
type ValidationError struct {
	TypeName   string
	PrimaryKey string
	Value      string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("more than one %s with %s %q found in collection", e.TypeName, e.PrimaryKey, e.Value)
}

// IsNotFound checks whether the error indicates an absent backing resource.
func IsNotFound(err error) bool {
	notFound := &NotFoundError{}
	if errors.As(err, &notFound) {
		return true
	}

	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}

	return false
}

// IsTimeout checks whether the error is a poll deadline expiry.
func IsTimeout(err error) bool {
	timeout := &PollTimeoutError{}

	return errors.As(err, &timeout)
}

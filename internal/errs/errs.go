// Package errs implements the closed error taxonomy (C1): every failure a
// handler can surface maps to one ErrorKind, and every ErrorKind resolves to
// a stable {status, code, title, alert} row via a package-level table, never
// a switch statement.
package errs

import "fmt"

// ErrorKind is a closed string-enum of failure kinds. Adding a kind means
// adding a row to kindTable; there is no other way to register one.
type ErrorKind string

const (
	AccessDenied           ErrorKind = "access_denied"
	AgentNotEnteredTheRoom ErrorKind = "agent_not_entered_the_room"
	AuthorizationFailed    ErrorKind = "authorization_failed"
	RoomNotFound           ErrorKind = "room_not_found"
	RoomClosed             ErrorKind = "room_closed"
	InvalidPayload         ErrorKind = "invalid_payload"
	MessageParsingFailed   ErrorKind = "message_parsing_failed"
	DbQueryFailed          ErrorKind = "database_query_failed"
	DbConnAcquisitionFailed ErrorKind = "database_connection_acquisition_failed"
	BackendRequestFailed   ErrorKind = "backend_request_failed"
	BackendNotFound        ErrorKind = "backend_not_found"
	BrokerRequestFailed    ErrorKind = "broker_request_failed"
	CapacityExceeded       ErrorKind = "capacity_exceeded"
	NoAvailableBackends    ErrorKind = "no_available_backends"
	NotImplemented         ErrorKind = "not_implemented"
	NotFound               ErrorKind = "not_found"
	Internal               ErrorKind = "internal"
)

// spec carries the bus-visible contract for a kind: HTTP-style status, the
// stable wire code, a human title, and whether the kind is forwarded to the
// alert sink.
type spec struct {
	Status int
	Code   string
	Title  string
	Alert  bool
}

var kindTable = map[ErrorKind]spec{
	AccessDenied:            {403, "access_denied", "Access denied", false},
	AgentNotEnteredTheRoom:  {404, "agent_not_entered_the_room", "Agent not entered the room", false},
	AuthorizationFailed:     {422, "authorization_failed", "Authorization failed", false},
	RoomNotFound:            {404, "room_not_found", "Room not found", false},
	RoomClosed:              {404, "room_closed", "Room closed", false},
	InvalidPayload:          {400, "invalid_payload", "Invalid payload", false},
	MessageParsingFailed:    {400, "message_parsing_failed", "Message parsing failed", true},
	DbQueryFailed:           {422, "database_query_failed", "Database query failed", true},
	DbConnAcquisitionFailed: {422, "database_connection_acquisition_failed", "Database connection acquisition failed", true},
	BackendRequestFailed:    {424, "backend_request_failed", "Backend request failed", true},
	BackendNotFound:         {404, "backend_not_found", "Backend not found", true},
	BrokerRequestFailed:     {422, "broker_request_failed", "Broker request failed", true},
	CapacityExceeded:        {503, "capacity_exceeded", "Capacity exceeded", true},
	NoAvailableBackends:     {503, "no_available_backends", "No available backends", true},
	NotImplemented:          {501, "not_implemented", "Not implemented", true},
	NotFound:                {404, "not_found", "Not found", false},
	Internal:                {500, "internal", "Internal error", true},
}

// Status returns the HTTP-style status for the kind.
func (k ErrorKind) Status() int { return kindTable[k].Status }

// Code returns the stable wire code for the kind.
func (k ErrorKind) Code() string { return kindTable[k].Code }

// Title returns the human-readable title for the kind.
func (k ErrorKind) Title() string { return kindTable[k].Title }

// Alert reports whether errors of this kind are forwarded to the alert sink.
func (k ErrorKind) Alert() bool { return kindTable[k].Alert }

// AppError wraps an ErrorKind with its underlying cause and optional
// structured context. It is the only error type a handler returns.
type AppError struct {
	Kind    ErrorKind
	Cause   error
	Context map[string]any
}

// New constructs an AppError of the given kind wrapping cause.
func New(kind ErrorKind, cause error) *AppError {
	return &AppError{Kind: kind, Cause: cause}
}

// Newf constructs an AppError of the given kind with a formatted cause.
func Newf(kind ErrorKind, format string, args ...any) *AppError {
	return &AppError{Kind: kind, Cause: fmt.Errorf(format, args...)}
}

// WithContext attaches structured context to the error, returning the same
// instance for chaining.
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Kind.Title(), e.Cause.Error())
	}
	return e.Kind.Title()
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *AppError) Unwrap() error { return e.Cause }

// As reports whether err is (or wraps) an *AppError, returning it.
func As(err error) (*AppError, bool) {
	var target *AppError
	if err == nil {
		return nil, false
	}
	if ae, ok := err.(*AppError); ok {
		return ae, true
	}
	type unwrapper interface{ Unwrap() error }
	for {
		u, ok := err.(unwrapper)
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
		if ae, ok := err.(*AppError); ok {
			target = ae
			return target, true
		}
		if err == nil {
			return nil, false
		}
	}
}

// FromStore lifts an infrastructure error originating from the store (C2)
// into DbQueryFailed, unless the caller already wrapped a more specific
// AppError.
func FromStore(err error) *AppError {
	if err == nil {
		return nil
	}
	if ae, ok := As(err); ok {
		return ae
	}
	return New(DbQueryFailed, err)
}

// FromBus lifts an infrastructure error originating from the bus (E1) into
// BrokerRequestFailed, unless the caller already wrapped a more specific
// AppError.
func FromBus(err error) *AppError {
	if err == nil {
		return nil
	}
	if ae, ok := As(err); ok {
		return ae
	}
	return New(BrokerRequestFailed, err)
}

// FromAuthz lifts an error from the authorization gate (C3). A policy deny
// must already arrive as AccessDenied; anything else reaching here means the
// gate itself failed.
func FromAuthz(err error) *AppError {
	if err == nil {
		return nil
	}
	if ae, ok := As(err); ok {
		return ae
	}
	return New(AuthorizationFailed, err)
}

package service

import "errors"

var (
	// ErrUnknownEntity is returned when an address has no registered entity.
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrEntityExists is returned when an address is registered twice.
	ErrEntityExists = errors.New("entity already exists")
	// ErrPersistenceDisabled is returned by queries that need a repository
	// when the service runs without one.
	ErrPersistenceDisabled = errors.New("persistence disabled")
)

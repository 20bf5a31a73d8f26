package database

import "errors"

var (
	InsertFail       = errors.New("unable to insert row")
	QueryFail        = errors.New("unable to query")
	UpdateFail       = errors.New("unable to update")
	DeleteFail       = errors.New("unable to delete")
	MarshalFail      = errors.New("unable to marshal")
	ErrNotFound      = errors.New("not found")
	ErrUnknownFormat = errors.New("unknown export format")
)

package block

import "errors"

var (
	ErrNotFound       = errors.New("block not found")
	ErrInvalidType    = errors.New("invalid block type")
	ErrInvalidParent  = errors.New("parent block not found in note")
	ErrEmptyUpdate    = errors.New("no fields to update")
	ErrInvalidReorder = errors.New("invalid reorder payload")
)

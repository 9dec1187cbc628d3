package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrBaseNotFound      = errors.New("base not found")
	ErrBlockNotFound     = errors.New("block not found")
	ErrRowNotFound       = errors.New("row not found")
	ErrBandNotFound      = errors.New("band not found")
	ErrFixedBillNotFound = errors.New("fixed bill not found")
	ErrScheduleNotFound  = errors.New("pay schedule not found")
	ErrMasterNotFound    = errors.New("master item not found")
	ErrUnknownMasterKind = errors.New("unknown master list")

	ErrAlreadyExecuted = errors.New("row is already executed")
	ErrNotExecuted     = errors.New("row is not executed")
	ErrTemplateRow     = errors.New("template rows cannot be executed")
	ErrRowLocked       = errors.New("executed rows cannot change amount or bases")
	ErrExecutedOnSave  = errors.New("rows must be executed through the execution engine")
	ErrTypeChange      = errors.New("block type cannot change while it has rows")

	ErrConfirmationRequired = errors.New("block has executed rows; type its title to confirm")
	ErrReferenced           = errors.New("entity is still referenced")
	ErrExecutedReference    = errors.New("executed rows cannot be moved to another base")
	ErrInvalidReassign      = errors.New("invalid reassignment target")
	ErrDuplicateID          = errors.New("an entity with this id already exists")
	ErrDuplicateName        = errors.New("an item with this name already exists")
	ErrNotTemplate          = errors.New("block is not a template")
	ErrNothingToPopulate    = errors.New("no active fixed bills fall inside the band")

	ErrUndoUnavailable     = errors.New("undo entry is no longer available")
	ErrUnsupportedSnapshot = errors.New("unsupported snapshot version")
)

// ReferencedError reports how many rows or bills still point at an entity.
type ReferencedError struct {
	Kind   EntityKind
	ID     string
	Usages int
}

func (e *ReferencedError) Error() string {
	return fmt.Sprintf("%s %s is referenced by %d item(s); reassign or clear them first", e.Kind, e.ID, e.Usages)
}

func (e *ReferencedError) Is(target error) bool { return target == ErrReferenced }

// ReferenceAction tells a referential delete what to do with entities that
// still point at the deleted one. The zero value refuses the delete.
type ReferenceAction struct {
	ReassignTo string `json:"reassignTo,omitempty"`
	Clear      bool   `json:"clear,omitempty"`
}

func (a ReferenceAction) chosen() bool {
	return a.Clear || a.ReassignTo != ""
}

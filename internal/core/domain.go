package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income         BlockType = "Income"
	FixedBillBlock BlockType = "Fixed Bill"
	Flow           BlockType = "Flow"
)

const (
	Checking BaseType = "Checking"
	Savings  BaseType = "Savings"
	Credit   BaseType = "Credit"
	Loan     BaseType = "Loan"
	Vault    BaseType = "Vault"
	Goal     BaseType = "Goal"
)

const (
	FlowFixed   FlowMode = "Fixed"
	FlowPercent FlowMode = "Percent"
)

const (
	Transfer      = "Transfer"
	Payment       = "Payment"
	Expense       = "Expense"
	Reimbursement = "Reimbursement"
)

type (
	BlockType string
	BaseType  string
	FlowMode  string

	// Base is a financial account with a stored running balance.
	Base struct {
		ID          string          `json:"id"`
		Name        string          `json:"name"`
		Type        BaseType        `json:"type"`
		Institution string          `json:"institution,omitempty"`
		ExternalID  string          `json:"externalId,omitempty"`
		Balance     decimal.Decimal `json:"balance"`
		Currency    string          `json:"currency"`
		Tags        []string        `json:"tags,omitempty"`
		Color       string          `json:"color,omitempty"`
		SortOrder   *int            `json:"sortOrder,omitempty"`
		CreatedAt   time.Time       `json:"createdAt"`
		UpdatedAt   time.Time       `json:"updatedAt"`
	}

	// Row is the persisted shape of one transaction line. Which relations
	// are required depends on the owning block's type, see ParseRow.
	Row struct {
		ID         string           `json:"id"`
		Date       Date             `json:"date"`
		Owner      string           `json:"owner"`
		Source     string           `json:"source,omitempty"`
		FromBaseID string           `json:"fromBaseId,omitempty"`
		ToBaseID   string           `json:"toBaseId,omitempty"`
		Amount     decimal.Decimal  `json:"amount"`
		FlowMode   FlowMode         `json:"flowMode,omitempty"`
		FlowValue  *decimal.Decimal `json:"flowValue,omitempty"`
		Type       string           `json:"type,omitempty"`
		Category   string           `json:"category,omitempty"`
		Notes      string           `json:"notes,omitempty"`
		Executed   bool             `json:"executed"`
	}

	// Block groups rows of a single BlockType.
	Block struct {
		ID              string           `json:"id"`
		Type            BlockType        `json:"type"`
		Title           string           `json:"title"`
		Date            Date             `json:"date"`
		Tags            []string         `json:"tags,omitempty"`
		Rows            []Row            `json:"rows"`
		BandID          string           `json:"bandId,omitempty"`
		Recurrence      string           `json:"recurrence,omitempty"`
		IsTemplate      bool             `json:"isTemplate"`
		AllocationBasis *AllocationBasis `json:"allocationBasis,omitempty"`
		CreatedAt       time.Time        `json:"createdAt"`
		UpdatedAt       time.Time        `json:"updatedAt"`
	}

	// AllocationBasis is the reference amount percent-mode flow rows are priced against.
	AllocationBasis struct {
		Kind   BasisKind       `json:"kind"`
		Amount decimal.Decimal `json:"amount,omitempty"`
	}

	BasisKind string

	// Band is a named, non-authoritative pay period. End is inclusive.
	Band struct {
		ID         string `json:"id"`
		Title      string `json:"title"`
		Start      Date   `json:"start"`
		End        Date   `json:"end"`
		Order      int    `json:"order"`
		Archived   bool   `json:"archived,omitempty"`
		ScheduleID string `json:"scheduleId,omitempty"`
	}

	// FixedBill is a reusable bill definition resolved against a band's dates.
	FixedBill struct {
		ID         string          `json:"id"`
		Owner      string          `json:"owner"`
		Vendor     string          `json:"vendor"`
		FromBaseID string          `json:"fromBaseId"`
		Amount     decimal.Decimal `json:"amount"`
		DueDay     DueDay          `json:"dueDay"`
		Category   string          `json:"category,omitempty"`
		Autopay    bool            `json:"autopay"`
		Active     bool            `json:"active"`
	}

	// MasterItem is an entry in one of the owner/category/vendor/flow type lists.
	MasterItem struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
)

const (
	BasisFixed      BasisKind = "fixed"
	BasisBandIncome BasisKind = "band-income"
)

var (
	ErrEmptyName        = errors.New("name is required")
	ErrEmptyTitle       = errors.New("title is required")
	ErrEmptyOwner       = errors.New("owner is required")
	ErrEmptyType        = errors.New("type is required")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrInvalidBlockType = errors.New("invalid block type")
	ErrMissingToBase    = errors.New("destination base is required")
	ErrMissingFromBase  = errors.New("source base is required")
	ErrInvalidFlowMode  = errors.New("invalid flow mode")
	ErrInvalidRange     = errors.New("start must be before end")
	ErrTemplateBand     = errors.New("templates cannot belong to a band")
	ErrInvalidCurrency  = errors.New("currency must be a 3-letter code")
)

// ValidationError tags a failure as an input validation problem.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// IsValidation reports whether err is an input validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func (bt BlockType) IsValid() bool {
	switch bt {
	case Income, FixedBillBlock, Flow:
		return true
	default:
		return false
	}
}

// IsCash reports whether balances of this type count as cash on hand.
func (t BaseType) IsCash() bool {
	return t == Checking || t == Savings || t == Vault
}

func (b Base) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return invalid("name", ErrEmptyName)
	}
	if strings.TrimSpace(string(b.Type)) == "" {
		return invalid("type", ErrEmptyType)
	}
	if len(b.Currency) != 3 {
		return invalid("currency", ErrInvalidCurrency)
	}
	return nil
}

func (b Block) Validate() error {
	if err := b.validateHeader(); err != nil {
		return err
	}
	for i, r := range b.Rows {
		if _, err := ParseRow(b.Type, r); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}

// ValidateStructure checks what a stored block always keeps. Owners, types
// and bases that a referential delete cleared are not required here.
func (b Block) ValidateStructure() error {
	if err := b.validateHeader(); err != nil {
		return err
	}
	for i, r := range b.Rows {
		if err := r.validateStructure(b.Type); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}

func (b Block) validateHeader() error {
	if !b.Type.IsValid() {
		return invalid("type", ErrInvalidBlockType)
	}
	if strings.TrimSpace(b.Title) == "" {
		return invalid("title", ErrEmptyTitle)
	}
	if err := b.Date.Validate(); err != nil {
		return invalid("date", err)
	}
	if b.IsTemplate && b.BandID != "" {
		return invalid("bandId", ErrTemplateBand)
	}
	return nil
}

// HasExecutedRows reports whether any row of the block is executed.
func (b Block) HasExecutedRows() bool {
	for _, r := range b.Rows {
		if r.Executed {
			return true
		}
	}
	return false
}

// RowIndex returns the position of rowID in the block, or -1.
func (b Block) RowIndex(rowID string) int {
	for i, r := range b.Rows {
		if r.ID == rowID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so callers can mutate rows freely.
func (b Block) Clone() Block {
	out := b
	out.Tags = append([]string(nil), b.Tags...)
	out.Rows = make([]Row, len(b.Rows))
	copy(out.Rows, b.Rows)
	for i := range out.Rows {
		if v := b.Rows[i].FlowValue; v != nil {
			cp := *v
			out.Rows[i].FlowValue = &cp
		}
	}
	if b.AllocationBasis != nil {
		ab := *b.AllocationBasis
		out.AllocationBasis = &ab
	}
	return out
}

func (b Base) Clone() Base {
	out := b
	out.Tags = append([]string(nil), b.Tags...)
	if b.SortOrder != nil {
		v := *b.SortOrder
		out.SortOrder = &v
	}
	return out
}

// ValidateManual checks a band created by hand; generated bands may be a single day.
func (b Band) ValidateManual() error {
	if strings.TrimSpace(b.Title) == "" {
		return invalid("title", ErrEmptyTitle)
	}
	if b.Start.IsZero() || b.End.IsZero() || !b.Start.Before(b.End.Time) {
		return invalid("end", ErrInvalidRange)
	}
	return nil
}

// Contains reports whether d falls inside the band, both ends inclusive.
func (b Band) Contains(d Date) bool {
	return d.Within(b.Start, b.End)
}

func (f FixedBill) Validate() error {
	if strings.TrimSpace(f.Owner) == "" {
		return invalid("owner", ErrEmptyOwner)
	}
	if strings.TrimSpace(f.Vendor) == "" {
		return invalid("vendor", ErrEmptyName)
	}
	if f.FromBaseID == "" {
		return invalid("fromBaseId", ErrMissingFromBase)
	}
	if !f.Amount.IsPositive() {
		return invalid("amount", ErrInvalidAmount)
	}
	return f.DueDay.Validate()
}

// NormalizeTags trims, drops empties and deduplicates while keeping order.
func NormalizeTags(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrUnexpectedFromBase = errors.New("income rows have no source base")
	ErrUnexpectedToBase   = errors.New("fixed bill rows have no destination base")
	ErrInvalidPercent     = errors.New("percent must be between 0 and 100")
)

var hundred = decimal.NewFromInt(100)

// RowBase holds the fields every row variant shares.
type RowBase struct {
	ID       string
	Date     Date
	Owner    string
	Source   string
	Amount   decimal.Decimal
	Category string
	Notes    string
	Executed bool
}

// RowVariant is a row typed by the block it belongs to. Each variant
// carries its required base relation as a plain field.
type RowVariant interface {
	BlockType() BlockType
	Row() Row
	Validate() error
}

type IncomeRow struct {
	RowBase
	ToBaseID string
}

type FixedBillRow struct {
	RowBase
	FromBaseID string
}

type FlowRow struct {
	RowBase
	FromBaseID string
	ToBaseID   string
	Type       string
	Mode       FlowMode
	Value      decimal.Decimal
}

func (IncomeRow) BlockType() BlockType    { return Income }
func (FixedBillRow) BlockType() BlockType { return FixedBillBlock }
func (FlowRow) BlockType() BlockType      { return Flow }

func (b RowBase) row() Row {
	return Row{
		ID:       b.ID,
		Date:     b.Date,
		Owner:    b.Owner,
		Source:   b.Source,
		Amount:   b.Amount,
		Category: b.Category,
		Notes:    b.Notes,
		Executed: b.Executed,
	}
}

func (b RowBase) validate() error {
	if err := b.validateFields(); err != nil {
		return err
	}
	if !b.Amount.IsPositive() {
		return invalid("amount", ErrInvalidAmount)
	}
	return nil
}

func (b RowBase) validateFields() error {
	if err := b.Date.Validate(); err != nil {
		return invalid("date", err)
	}
	if strings.TrimSpace(b.Owner) == "" {
		return invalid("owner", ErrEmptyOwner)
	}
	return nil
}

func (r IncomeRow) Row() Row {
	out := r.RowBase.row()
	out.ToBaseID = r.ToBaseID
	return out
}

func (r IncomeRow) Validate() error {
	if err := r.RowBase.validate(); err != nil {
		return err
	}
	if r.ToBaseID == "" {
		return invalid("toBaseId", ErrMissingToBase)
	}
	return nil
}

func (r FixedBillRow) Row() Row {
	out := r.RowBase.row()
	out.FromBaseID = r.FromBaseID
	return out
}

func (r FixedBillRow) Validate() error {
	if err := r.RowBase.validate(); err != nil {
		return err
	}
	if r.FromBaseID == "" {
		return invalid("fromBaseId", ErrMissingFromBase)
	}
	return nil
}

func (r FlowRow) Row() Row {
	out := r.RowBase.row()
	out.FromBaseID = r.FromBaseID
	out.ToBaseID = r.ToBaseID
	out.Type = r.Type
	if r.Mode != "" {
		out.FlowMode = r.Mode
		v := r.Value
		out.FlowValue = &v
	}
	return out
}

// Validate checks the row. A percent-mode row may carry a zero amount until
// it is priced against an allocation basis.
func (r FlowRow) Validate() error {
	if err := r.RowBase.validateFields(); err != nil {
		return err
	}
	if r.Amount.IsNegative() || (r.Mode != FlowPercent && !r.Amount.IsPositive()) {
		return invalid("amount", ErrInvalidAmount)
	}
	if r.FromBaseID == "" {
		return invalid("fromBaseId", ErrMissingFromBase)
	}
	if strings.TrimSpace(r.Type) == "" {
		return invalid("type", ErrEmptyType)
	}
	switch r.Mode {
	case "", FlowFixed:
	case FlowPercent:
		if !r.Value.IsPositive() || r.Value.GreaterThan(hundred) {
			return invalid("flowValue", ErrInvalidPercent)
		}
	default:
		return invalid("flowMode", ErrInvalidFlowMode)
	}
	return nil
}

// PercentOf prices a percent-mode flow row against basis, rounded to cents.
func (r FlowRow) PercentOf(basis decimal.Decimal) decimal.Decimal {
	return basis.Mul(r.Value).Div(hundred).Round(2)
}

// ParseRow converts a persisted row into the variant required by bt and
// validates it.
func ParseRow(bt BlockType, r Row) (RowVariant, error) {
	base := RowBase{
		ID:       r.ID,
		Date:     r.Date,
		Owner:    r.Owner,
		Source:   r.Source,
		Amount:   r.Amount,
		Category: r.Category,
		Notes:    r.Notes,
		Executed: r.Executed,
	}
	var v RowVariant
	switch bt {
	case Income:
		if r.FromBaseID != "" {
			return nil, invalid("fromBaseId", ErrUnexpectedFromBase)
		}
		v = IncomeRow{RowBase: base, ToBaseID: r.ToBaseID}
	case FixedBillBlock:
		if r.ToBaseID != "" {
			return nil, invalid("toBaseId", ErrUnexpectedToBase)
		}
		v = FixedBillRow{RowBase: base, FromBaseID: r.FromBaseID}
	case Flow:
		fr := FlowRow{RowBase: base, FromBaseID: r.FromBaseID, ToBaseID: r.ToBaseID, Type: r.Type, Mode: r.FlowMode}
		if r.FlowValue != nil {
			fr.Value = *r.FlowValue
		}
		v = fr
	default:
		return nil, invalid("type", ErrInvalidBlockType)
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}

func (r Row) validateStructure(bt BlockType) error {
	if r.Amount.IsNegative() {
		return invalid("amount", ErrInvalidAmount)
	}
	switch {
	case bt == Income && r.FromBaseID != "":
		return invalid("fromBaseId", ErrUnexpectedFromBase)
	case bt == FixedBillBlock && r.ToBaseID != "":
		return invalid("toBaseId", ErrUnexpectedToBase)
	}
	return nil
}

// LockedFieldsChanged reports whether next differs from r in the fields an
// executed row freezes.
func (r Row) LockedFieldsChanged(next Row) bool {
	return !r.Amount.Equal(next.Amount) || r.FromBaseID != next.FromBaseID || r.ToBaseID != next.ToBaseID
}

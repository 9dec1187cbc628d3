package ledger

import (
	"strings"

	"budgetblocks/internal/bands"
	"budgetblocks/internal/core"
)

func (st *State) nextBandOrder() int {
	next := 0
	for _, b := range st.bands {
		if b.Order >= next {
			next = b.Order + 1
		}
	}
	return next
}

// CreateBand adds a manually defined band, appended after existing bands.
func (st *State) CreateBand(b core.Band) (core.Band, error) {
	b.Title = strings.TrimSpace(b.Title)
	if err := b.ValidateManual(); err != nil {
		return core.Band{}, err
	}
	if b.ID == "" {
		b.ID = st.newID()
	} else if st.bandIndex(b.ID) >= 0 {
		return core.Band{}, ErrDuplicateID
	}
	b.Order = st.nextBandOrder()
	b.ScheduleID = ""
	st.bands = append(st.bands, b)
	return b, nil
}

// UpdateBand edits a band's title, dates, order or archived flag. Date edits
// follow the manual start < end rule; a band kept at its generated dates is
// accepted as is.
func (st *State) UpdateBand(b core.Band) (core.Band, error) {
	i := st.bandIndex(b.ID)
	if i < 0 {
		return core.Band{}, ErrBandNotFound
	}
	prev := st.bands[i]
	b.Title = strings.TrimSpace(b.Title)
	if b.Title == "" {
		return core.Band{}, &core.ValidationError{Field: "title", Err: core.ErrEmptyTitle}
	}
	datesChanged := !b.Start.Equal(prev.Start.Time) || !b.End.Equal(prev.End.Time)
	if datesChanged {
		if err := b.ValidateManual(); err != nil {
			return core.Band{}, err
		}
	}
	b.ScheduleID = prev.ScheduleID
	st.bands[i] = b
	return b, nil
}

type bandSnapshot struct {
	Band     core.Band `json:"band"`
	BlockIDs []string  `json:"blockIds,omitempty"`
}

// DeleteBand removes a band and unassigns its blocks.
func (st *State) DeleteBand(id string) (string, error) {
	i := st.bandIndex(id)
	if i < 0 {
		return "", ErrBandNotFound
	}
	band := st.bands[i]
	var assigned []string
	for _, blk := range st.blocks {
		if blk.BandID == id {
			assigned = append(assigned, blk.ID)
		}
	}
	entry, err := record(st, KindBand, "Band \""+band.Title+"\"", bandSnapshot{Band: band, BlockIDs: assigned})
	if err != nil {
		return "", err
	}
	for j := range st.blocks {
		if st.blocks[j].BandID == id {
			st.blocks[j].BandID = ""
		}
	}
	st.bands = append(st.bands[:i], st.bands[i+1:]...)
	st.history.push(entry)
	st.emit(Event{Kind: EventDeleted, EntityID: id, Label: entry.Label, Count: len(assigned)})
	return entry.ID, nil
}

// restoreBand reassigns only the blocks still without a band, so moves made
// after the delete are kept.
func restoreBand(st *State, s bandSnapshot) error {
	if st.bandIndex(s.Band.ID) >= 0 {
		return ErrDuplicateID
	}
	st.bands = append(st.bands, s.Band)
	for _, id := range s.BlockIDs {
		if j := st.blockIndex(id); j >= 0 && st.blocks[j].BandID == "" {
			st.blocks[j].BandID = s.Band.ID
		}
	}
	return nil
}

// Overlaps reports overlapping non-archived bands.
func (st *State) Overlaps() []bands.Overlap {
	return bands.Overlaps(st.bands)
}

// SavePaySchedule stores a new schedule or replaces an existing one.
func (st *State) SavePaySchedule(s core.PaySchedule) (core.PaySchedule, error) {
	if err := s.Validate(); err != nil {
		return core.PaySchedule{}, err
	}
	if s.ID != "" {
		if i := st.scheduleIndex(s.ID); i >= 0 {
			s.CreatedAt = st.schedules[i].CreatedAt
			st.schedules[i] = s
			return s, nil
		}
	} else {
		s.ID = st.newID()
	}
	s.CreatedAt = st.now()
	st.schedules = append(st.schedules, s)
	return s, nil
}

// GenerateBands saves the schedule if it is new, generates its window around
// now and merges bands whose exact dates are not yet present.
func (st *State) GenerateBands(s core.PaySchedule) ([]core.Band, error) {
	saved, err := st.SavePaySchedule(s)
	if err != nil {
		return nil, err
	}
	return st.generateFor(saved)
}

// Rollover regenerates every stored schedule's window, returning the bands
// added. Nothing is added unless every schedule generates.
func (st *State) Rollover() ([]core.Band, error) {
	known := append([]core.Band(nil), st.bands...)
	planned := make([][]core.Band, len(st.schedules))
	for i, s := range st.schedules {
		got, err := st.planBands(s, known)
		if err != nil {
			return nil, err
		}
		known = append(known, got...)
		planned[i] = got
	}
	var added []core.Band
	for i, s := range st.schedules {
		added = append(added, st.addBands(s.ID, planned[i])...)
	}
	return added, nil
}

func (st *State) generateFor(s core.PaySchedule) ([]core.Band, error) {
	planned, err := st.planBands(s, st.bands)
	if err != nil {
		return nil, err
	}
	return st.addBands(s.ID, planned), nil
}

// planBands returns the schedule's bands missing from known, with ids set.
func (st *State) planBands(s core.PaySchedule, known []core.Band) ([]core.Band, error) {
	generated, err := bands.Generate(s, st.now())
	if err != nil {
		return nil, err
	}
	planned := bands.Merge(known, generated)
	for i := range planned {
		planned[i].ID = st.newID()
		planned[i].ScheduleID = s.ID
	}
	return planned, nil
}

func (st *State) addBands(scheduleID string, planned []core.Band) []core.Band {
	if len(planned) == 0 {
		return nil
	}
	st.bands = append(st.bands, planned...)
	st.emit(Event{Kind: EventBandsAdded, EntityID: scheduleID, Count: len(planned)})
	return append([]core.Band(nil), planned...)
}

// PreviewBands returns what GenerateBands would add without changing state.
func (st *State) PreviewBands(s core.PaySchedule) ([]core.Band, error) {
	generated, err := bands.Generate(s, st.now())
	if err != nil {
		return nil, err
	}
	return bands.Merge(st.bands, generated), nil
}

// DeletePaySchedule removes a schedule. Bands it generated are kept.
func (st *State) DeletePaySchedule(id string) (string, error) {
	i := st.scheduleIndex(id)
	if i < 0 {
		return "", ErrScheduleNotFound
	}
	s := st.schedules[i]
	entry, err := record(st, KindSchedule, "Pay schedule ("+string(s.Frequency)+")", s)
	if err != nil {
		return "", err
	}
	st.schedules = append(st.schedules[:i], st.schedules[i+1:]...)
	st.history.push(entry)
	st.emit(Event{Kind: EventDeleted, EntityID: id, Label: entry.Label})
	return entry.ID, nil
}

func restoreSchedule(st *State, s core.PaySchedule) error {
	if st.scheduleIndex(s.ID) >= 0 {
		return ErrDuplicateID
	}
	st.schedules = append(st.schedules, s)
	return nil
}

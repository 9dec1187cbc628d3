package http

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"budgetblocks/internal/bands"
	"budgetblocks/internal/core"
	"budgetblocks/internal/ledger"
	"budgetblocks/internal/log"
)

type availableResult struct {
	BandID    string          `json:"bandId"`
	Available decimal.Decimal `json:"available"`
}

type generateResult struct {
	Schedule core.PaySchedule `json:"schedule"`
	Added    []core.Band      `json:"added"`
	Overlaps []bands.Overlap  `json:"overlaps"`
}

func (s *Server) handleListBands(w http.ResponseWriter, r *http.Request) {
	s.view(w, func(st *ledger.State) (interface{}, error) {
		return st.Bands(), nil
	})
}

func (s *Server) handleCreateBand(w http.ResponseWriter, r *http.Request) {
	var in core.Band
	if err := decodeJSON(r, MaxBodyBytes, &in); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	var out core.Band
	s.commit(w, r, log.OpCreate, "Band created", func(st *ledger.State) (err error) {
		out, err = st.CreateBand(in)
		return err
	}, func(b *ResponseBuilder) { b.Status(http.StatusCreated).JSON(out) })
}

func (s *Server) handleUpdateBand(w http.ResponseWriter, r *http.Request) {
	var in core.Band
	if err := decodeJSON(r, MaxBodyBytes, &in); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	in.ID = pathVar(r, "id")
	var out core.Band
	s.commit(w, r, log.OpUpdate, "Band saved", func(st *ledger.State) (err error) {
		out, err = st.UpdateBand(in)
		return err
	}, func(b *ResponseBuilder) { b.JSON(out) })
}

func (s *Server) handleDeleteBand(w http.ResponseWriter, r *http.Request) {
	id := pathVar(r, "id")
	var res deleteResult
	s.commit(w, r, log.OpDelete, "", func(st *ledger.State) (err error) {
		res.HistoryID, err = st.DeleteBand(id)
		return err
	}, s.deleted("Band deleted", &res))
}

func (s *Server) handleBandOverlaps(w http.ResponseWriter, r *http.Request) {
	s.view(w, func(st *ledger.State) (interface{}, error) {
		return nonNilOverlaps(st.Overlaps()), nil
	})
}

func (s *Server) handleAvailable(w http.ResponseWriter, r *http.Request) {
	id := pathVar(r, "id")
	s.view(w, func(st *ledger.State) (interface{}, error) {
		amount, err := st.AvailableToAllocate(id)
		if err != nil {
			return nil, err
		}
		return availableResult{BandID: id, Available: amount}, nil
	})
}

func (s *Server) handlePopulateFixedBills(w http.ResponseWriter, r *http.Request) {
	id := pathVar(r, "id")
	var out core.Block
	s.commit(w, r, log.OpCreate, "", func(st *ledger.State) (err error) {
		out, err = st.PopulateFixedBills(id)
		return err
	}, func(b *ResponseBuilder) {
		b.Status(http.StatusCreated).
			TriggerSuccessNotification(strconv.Itoa(len(out.Rows)) + " fixed bill(s) added").
			JSON(out)
	})
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	s.view(w, func(st *ledger.State) (interface{}, error) {
		return st.Schedules(), nil
	})
}

func (s *Server) handleSaveSchedule(w http.ResponseWriter, r *http.Request) {
	var in core.PaySchedule
	if err := decodeJSON(r, MaxBodyBytes, &in); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	var out core.PaySchedule
	s.commit(w, r, log.OpCreate, "Pay schedule saved", func(st *ledger.State) (err error) {
		out, err = st.SavePaySchedule(in)
		return err
	}, func(b *ResponseBuilder) { b.JSON(out) })
}

// handlePreviewBands shows what generation would add without committing.
func (s *Server) handlePreviewBands(w http.ResponseWriter, r *http.Request) {
	var in core.PaySchedule
	if err := decodeJSON(r, MaxBodyBytes, &in); err != nil {
		s.fail(w, r, log.OpGenerate, err)
		return
	}
	s.view(w, func(st *ledger.State) (interface{}, error) {
		preview, err := st.PreviewBands(in)
		if err != nil {
			return nil, err
		}
		if preview == nil {
			preview = []core.Band{}
		}
		return preview, nil
	})
}

// handleGenerateBands saves the schedule and merges its window. Overlaps
// are reported, never resolved.
func (s *Server) handleGenerateBands(w http.ResponseWriter, r *http.Request) {
	var in core.PaySchedule
	if err := decodeJSON(r, MaxBodyBytes, &in); err != nil {
		s.fail(w, r, log.OpGenerate, err)
		return
	}
	var res generateResult
	s.commit(w, r, log.OpGenerate, "", func(st *ledger.State) (err error) {
		if res.Schedule, err = st.SavePaySchedule(in); err != nil {
			return err
		}
		if res.Added, err = st.GenerateBands(res.Schedule); err != nil {
			return err
		}
		res.Overlaps = nonNilOverlaps(st.Overlaps())
		return nil
	}, func(b *ResponseBuilder) {
		if res.Added == nil {
			res.Added = []core.Band{}
		}
		msg := strconv.Itoa(len(res.Added)) + " band(s) generated"
		if len(res.Overlaps) > 0 {
			b.TriggerNotification(NotificationWarning, msg+", "+strconv.Itoa(len(res.Overlaps))+" overlap(s) to review", 5000)
		} else {
			b.TriggerSuccessNotification(msg)
		}
		b.JSON(res)
	})
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id := pathVar(r, "id")
	var res deleteResult
	s.commit(w, r, log.OpDelete, "", func(st *ledger.State) (err error) {
		res.HistoryID, err = st.DeletePaySchedule(id)
		return err
	}, s.deleted("Pay schedule deleted", &res))
}

func (s *Server) handleListFixedBills(w http.ResponseWriter, r *http.Request) {
	s.view(w, func(st *ledger.State) (interface{}, error) {
		return st.FixedBills(), nil
	})
}

func (s *Server) handleCreateFixedBill(w http.ResponseWriter, r *http.Request) {
	var in core.FixedBill
	if err := decodeJSON(r, MaxBodyBytes, &in); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	var out core.FixedBill
	s.commit(w, r, log.OpCreate, "Fixed bill created", func(st *ledger.State) (err error) {
		out, err = st.CreateFixedBill(in)
		return err
	}, func(b *ResponseBuilder) { b.Status(http.StatusCreated).JSON(out) })
}

func (s *Server) handleUpdateFixedBill(w http.ResponseWriter, r *http.Request) {
	var in core.FixedBill
	if err := decodeJSON(r, MaxBodyBytes, &in); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	in.ID = pathVar(r, "id")
	var out core.FixedBill
	s.commit(w, r, log.OpUpdate, "Fixed bill saved", func(st *ledger.State) (err error) {
		out, err = st.UpdateFixedBill(in)
		return err
	}, func(b *ResponseBuilder) { b.JSON(out) })
}

func (s *Server) handleDeleteFixedBill(w http.ResponseWriter, r *http.Request) {
	id := pathVar(r, "id")
	var res deleteResult
	s.commit(w, r, log.OpDelete, "", func(st *ledger.State) (err error) {
		res.HistoryID, err = st.DeleteFixedBill(id)
		return err
	}, s.deleted("Fixed bill deleted", &res))
}

func (s *Server) handleListMasters(w http.ResponseWriter, r *http.Request) {
	s.view(w, func(st *ledger.State) (interface{}, error) {
		return st.Masters(), nil
	})
}

func (s *Server) handleAddMasterItem(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, MaxBodyBytes, &in); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	kind := ledger.MasterKind(pathVar(r, "kind"))
	var out core.MasterItem
	s.commit(w, r, log.OpCreate, "Item added", func(st *ledger.State) (err error) {
		out, err = st.AddMasterItem(kind, in.Name)
		return err
	}, func(b *ResponseBuilder) { b.Status(http.StatusCreated).JSON(out) })
}

func (s *Server) handleMasterUsages(w http.ResponseWriter, r *http.Request) {
	kind, id := ledger.MasterKind(pathVar(r, "kind")), pathVar(r, "id")
	s.view(w, func(st *ledger.State) (interface{}, error) {
		n, err := st.MasterUsages(kind, id)
		if err != nil {
			return nil, err
		}
		return map[string]int{"usages": n}, nil
	})
}

func (s *Server) handleDeleteMasterItem(w http.ResponseWriter, r *http.Request) {
	var action ledger.ReferenceAction
	if err := decodeOptionalJSON(r, &action); err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	kind, id := ledger.MasterKind(pathVar(r, "kind")), pathVar(r, "id")
	var res deleteResult
	s.commit(w, r, log.OpDelete, "", func(st *ledger.State) (err error) {
		res.HistoryID, err = st.DeleteMasterItem(kind, id, action)
		return err
	}, s.deleted("Item deleted", &res))
}

func nonNilOverlaps(in []bands.Overlap) []bands.Overlap {
	if in == nil {
		return []bands.Overlap{}
	}
	return in
}

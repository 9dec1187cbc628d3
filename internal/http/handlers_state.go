package http

import (
	"net/http"
	"strconv"

	"budgetblocks/internal/ledger"
	"budgetblocks/internal/log"
	"budgetblocks/internal/query"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	s.view(w, func(st *ledger.State) (interface{}, error) {
		entries := st.UndoHistory()
		if entries == nil {
			entries = []ledger.HistoryEntry{}
		}
		return entries, nil
	})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	s.commit(w, r, log.OpDelete, "Undo history cleared", func(st *ledger.State) error {
		st.ClearUndoHistory()
		return nil
	}, nil)
}

// handleRestore undoes a soft delete. A missing or unrestorable entry is
// reported as gone.
func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	id := pathVar(r, "id")
	if !s.store.UndoDelete(r.Context(), id) {
		ErrorResponse(http.StatusGone, ledger.ErrUndoUnavailable.Error()).Write(w)
		return
	}
	NewResponse().
		TriggerLedgerChanged(s.store.Version()).
		TriggerSuccessNotification("Restored").
		Write(w)
}

// handleView returns the visible blocks grouped by band. Without filter
// parameters the saved filter applies.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	var (
		f   query.Filter
		err error
	)
	if hasFilterParams(r.URL.Query()) {
		f, err = parseFilterQuery(r.URL.Query())
	} else {
		f, err = s.savedFilter(r)
	}
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	res := s.engine.Visible(f)
	NewResponse().Header(VersionHeader, strconv.FormatUint(res.Version, 10)).JSON(res).Write(w)
}

func (s *Server) savedFilter(r *http.Request) (query.Filter, error) {
	if s.prefs == nil {
		return query.Default(s.now()), nil
	}
	data, _, err := s.prefs.GetPreference(r.Context(), query.PrefsKey)
	if err != nil {
		return query.Filter{}, err
	}
	return query.Decode(data, s.now()), nil
}

func (s *Server) handleGetFilter(w http.ResponseWriter, r *http.Request) {
	f, err := s.savedFilter(r)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(f).Write(w)
}

func (s *Server) handleSaveFilter(w http.ResponseWriter, r *http.Request) {
	var f query.Filter
	if err := decodeJSON(r, MaxBodyBytes, &f); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	s.storeFilter(w, r, f.Normalize(s.now()))
}

func (s *Server) handleResetFilter(w http.ResponseWriter, r *http.Request) {
	s.storeFilter(w, r, query.Reset(s.now()))
}

func (s *Server) storeFilter(w http.ResponseWriter, r *http.Request, f query.Filter) {
	if s.prefs != nil {
		data, err := query.Encode(f)
		if err == nil {
			err = s.prefs.SetPreference(r.Context(), query.PrefsKey, data)
		}
		if err != nil {
			s.fail(w, r, log.OpUpdate, err)
			return
		}
	}
	NewResponse().Trigger(TriggerFilterChanged, f).JSON(f).Write(w)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			BadRequestError("limit must be a positive integer").Write(w)
			return
		}
		limit = min(n, maxEventLimit)
	}
	events := []ledger.Event{}
	if s.events != nil {
		got, err := s.events.ListEvents(r.Context(), limit)
		if err != nil {
			s.fail(w, r, log.OpList, err)
			return
		}
		events = append(events, got...)
	}
	NewResponse().JSON(events).Write(w)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	snap, version := s.store.Snapshot()
	NewResponse().
		Header(VersionHeader, strconv.FormatUint(version, 10)).
		Header("Content-Disposition", `attachment; filename="budget-blocks-export.json"`).
		JSON(snap).
		Write(w)
}

// handleImport replaces the whole state with an uploaded snapshot.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var snap ledger.Snapshot
	if err := decodeJSON(r, MaxImportBytes, &snap); err != nil {
		s.fail(w, r, "import", err)
		return
	}
	var dropped int
	s.commit(w, r, "import", "", func(st *ledger.State) (err error) {
		dropped, err = st.Import(snap)
		return err
	}, func(b *ResponseBuilder) {
		msg := "Import complete"
		if dropped > 0 {
			msg += ", " + strconv.Itoa(dropped) + " undo entr(ies) skipped"
		}
		b.TriggerSuccessNotification(msg).JSON(map[string]int{"droppedHistory": dropped})
	})
}

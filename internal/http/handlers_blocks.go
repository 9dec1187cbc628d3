package http

import (
	"net/http"
	"strconv"

	"budgetblocks/internal/core"
	"budgetblocks/internal/ledger"
	"budgetblocks/internal/log"
)

// TriggerUndoAvailable carries the history id of a soft delete.
const TriggerUndoAvailable = "undo:available"

// deleteResult is the body of every soft delete response.
type deleteResult struct {
	HistoryID string           `json:"historyId"`
	Deltas    []core.BaseDelta `json:"deltas,omitempty"`
}

// executionResult is the body of execute and undo-execute responses.
type executionResult struct {
	Deltas []core.BaseDelta `json:"deltas"`
	KPIs   core.KPIs        `json:"kpis"`
}

func (s *Server) deleted(message string, res *deleteResult) func(b *ResponseBuilder) {
	return func(b *ResponseBuilder) {
		b.TriggerSuccessNotification(message).
			Trigger(TriggerUndoAvailable, map[string]string{"historyId": res.HistoryID}).
			JSON(*res)
	}
}

func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	s.view(w, func(st *ledger.State) (interface{}, error) {
		return st.KPIs(), nil
	})
}

func (s *Server) handleListBases(w http.ResponseWriter, r *http.Request) {
	s.view(w, func(st *ledger.State) (interface{}, error) {
		return st.Bases(), nil
	})
}

func (s *Server) handleGetBase(w http.ResponseWriter, r *http.Request) {
	id := pathVar(r, "id")
	s.view(w, func(st *ledger.State) (interface{}, error) {
		return st.Base(id)
	})
}

func (s *Server) handleCreateBase(w http.ResponseWriter, r *http.Request) {
	var in core.Base
	if err := decodeJSON(r, MaxBodyBytes, &in); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	var out core.Base
	s.commit(w, r, log.OpCreate, "Base created", func(st *ledger.State) (err error) {
		out, err = st.CreateBase(in)
		return err
	}, func(b *ResponseBuilder) { b.Status(http.StatusCreated).JSON(out) })
}

func (s *Server) handleUpdateBase(w http.ResponseWriter, r *http.Request) {
	var in core.Base
	if err := decodeJSON(r, MaxBodyBytes, &in); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	in.ID = pathVar(r, "id")
	var out core.Base
	s.commit(w, r, log.OpUpdate, "Base saved", func(st *ledger.State) (err error) {
		out, err = st.UpdateBase(in)
		return err
	}, func(b *ResponseBuilder) { b.JSON(out) })
}

func (s *Server) handleReorderBases(w http.ResponseWriter, r *http.Request) {
	var in struct {
		IDs []string `json:"ids"`
	}
	if err := decodeJSON(r, MaxBodyBytes, &in); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	var out []core.Base
	s.commit(w, r, log.OpUpdate, "", func(st *ledger.State) error {
		if err := st.ReorderBases(in.IDs); err != nil {
			return err
		}
		out = st.Bases()
		return nil
	}, func(b *ResponseBuilder) { b.JSON(out) })
}

func (s *Server) handleDeleteBase(w http.ResponseWriter, r *http.Request) {
	var action ledger.ReferenceAction
	if err := decodeOptionalJSON(r, &action); err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	id := pathVar(r, "id")
	var res deleteResult
	s.commit(w, r, log.OpDelete, "", func(st *ledger.State) (err error) {
		res.HistoryID, err = st.DeleteBase(id, action)
		return err
	}, s.deleted("Base deleted", &res))
}

func (s *Server) handleListBlocks(w http.ResponseWriter, r *http.Request) {
	s.view(w, func(st *ledger.State) (interface{}, error) {
		return st.Blocks(), nil
	})
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	s.view(w, func(st *ledger.State) (interface{}, error) {
		return st.Templates(), nil
	})
}

func (s *Server) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	id := pathVar(r, "id")
	s.view(w, func(st *ledger.State) (interface{}, error) {
		return st.Block(id)
	})
}

func (s *Server) handleCreateBlock(w http.ResponseWriter, r *http.Request) {
	var in core.Block
	if err := decodeJSON(r, MaxBodyBytes, &in); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	var out core.Block
	s.commit(w, r, log.OpCreate, "Block created", func(st *ledger.State) (err error) {
		out, err = st.CreateBlock(in)
		return err
	}, func(b *ResponseBuilder) { b.Status(http.StatusCreated).JSON(out) })
}

func (s *Server) handleUpdateBlock(w http.ResponseWriter, r *http.Request) {
	var in core.Block
	if err := decodeJSON(r, MaxBodyBytes, &in); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	in.ID = pathVar(r, "id")
	var out core.Block
	s.commit(w, r, log.OpUpdate, "Block saved", func(st *ledger.State) (err error) {
		out, err = st.UpdateBlock(in)
		return err
	}, func(b *ResponseBuilder) { b.JSON(out) })
}

// handleDeleteBlock needs ?confirm=<title> when the block has executed rows.
func (s *Server) handleDeleteBlock(w http.ResponseWriter, r *http.Request) {
	id := pathVar(r, "id")
	confirm := r.URL.Query().Get("confirm")
	var res deleteResult
	s.commit(w, r, log.OpDelete, "", func(st *ledger.State) (err error) {
		res.HistoryID, res.Deltas, err = st.DeleteBlock(id, confirm)
		return err
	}, func(b *ResponseBuilder) {
		msg := "Block deleted"
		if len(res.Deltas) > 0 {
			msg = "Block deleted, " + strconv.Itoa(len(res.Deltas)) + " balance(s) reverted"
		}
		s.deleted(msg, &res)(b)
	})
}

func (s *Server) handleAssignBand(w http.ResponseWriter, r *http.Request) {
	var in struct {
		BandID string `json:"bandId"`
	}
	if err := decodeJSON(r, MaxBodyBytes, &in); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	id := pathVar(r, "id")
	var out core.Block
	s.commit(w, r, log.OpUpdate, "", func(st *ledger.State) (err error) {
		out, err = st.AssignBand(id, in.BandID)
		return err
	}, func(b *ResponseBuilder) { b.JSON(out) })
}

func (s *Server) handleAddRow(w http.ResponseWriter, r *http.Request) {
	var in core.Row
	if err := decodeJSON(r, MaxBodyBytes, &in); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	id := pathVar(r, "id")
	var out core.Block
	s.commit(w, r, log.OpCreate, "Row added", func(st *ledger.State) (err error) {
		out, err = st.AddRow(id, in)
		return err
	}, func(b *ResponseBuilder) { b.Status(http.StatusCreated).JSON(out) })
}

func (s *Server) handleUpdateRow(w http.ResponseWriter, r *http.Request) {
	var in core.Row
	if err := decodeJSON(r, MaxBodyBytes, &in); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	id := pathVar(r, "id")
	in.ID = pathVar(r, "rowID")
	var out core.Block
	s.commit(w, r, log.OpUpdate, "Row saved", func(st *ledger.State) (err error) {
		out, err = st.UpdateRow(id, in)
		return err
	}, func(b *ResponseBuilder) { b.JSON(out) })
}

func (s *Server) handleRemoveRow(w http.ResponseWriter, r *http.Request) {
	id, rowID := pathVar(r, "id"), pathVar(r, "rowID")
	var out core.Block
	s.commit(w, r, log.OpDelete, "Row removed", func(st *ledger.State) (err error) {
		out, err = st.RemoveRow(id, rowID)
		return err
	}, func(b *ResponseBuilder) { b.JSON(out) })
}

func (s *Server) handleExecuteRow(w http.ResponseWriter, r *http.Request) {
	s.execute(w, r, "Row executed", func(st *ledger.State, blockID, rowID string) ([]core.BaseDelta, error) {
		return st.ExecuteRow(blockID, rowID)
	})
}

func (s *Server) handleUndoExecuteRow(w http.ResponseWriter, r *http.Request) {
	s.execute(w, r, "Execution undone", func(st *ledger.State, blockID, rowID string) ([]core.BaseDelta, error) {
		return st.UndoExecuteRow(blockID, rowID)
	})
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request, message string, fn func(st *ledger.State, blockID, rowID string) ([]core.BaseDelta, error)) {
	blockID, rowID := pathVar(r, "id"), pathVar(r, "rowID")
	var res executionResult
	s.commit(w, r, log.OpExecute, message, func(st *ledger.State) (err error) {
		res.Deltas, err = fn(st, blockID, rowID)
		if err != nil {
			return err
		}
		res.KPIs = st.KPIs()
		return nil
	}, func(b *ResponseBuilder) { b.JSON(res) })
}

func (s *Server) handleCloneTemplate(w http.ResponseWriter, r *http.Request) {
	var in struct {
		BandID string    `json:"bandId"`
		Date   core.Date `json:"date"`
	}
	if err := decodeOptionalJSON(r, &in); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	id := pathVar(r, "id")
	var out core.Block
	s.commit(w, r, log.OpCreate, "Template applied", func(st *ledger.State) (err error) {
		out, err = st.CloneTemplate(id, in.BandID, in.Date)
		return err
	}, func(b *ResponseBuilder) { b.Status(http.StatusCreated).JSON(out) })
}

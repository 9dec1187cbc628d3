package query

import (
	"strconv"
	"time"

	"budgetblocks/internal/cache"
	"budgetblocks/internal/core"
	"budgetblocks/internal/ledger"
	"budgetblocks/internal/log"
)

// Result is a memoized derivation for one state version.
type Result struct {
	Version uint64       `json:"version"`
	Filter  Filter       `json:"filter"`
	Blocks  []core.Block `json:"blocks"`
	Groups  []Group      `json:"groups"`
}

// Engine memoizes Visible per state version and filter.
type Engine struct {
	store  *ledger.Store
	cache  *cache.LRUCache[Result]
	now    func() time.Time
	logger *log.Logger
}

// NewEngine builds an engine caching up to size results for ttl.
func NewEngine(store *ledger.Store, size int, ttl time.Duration, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Discard()
	}
	return &Engine{
		store:  store,
		cache:  cache.NewLRUCache[Result](size, ttl),
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentQuery),
	}
}

// Cache exposes the memo so a cache manager can clean it.
func (e *Engine) Cache() *cache.LRUCache[Result] { return e.cache }

func key(version uint64, f Filter) string {
	return strconv.FormatUint(version, 10) + "|" + f.Fingerprint()
}

// Visible returns the blocks and band groups matching f for the current
// state. Results are shared between callers and must not be mutated.
func (e *Engine) Visible(f Filter) Result {
	f = f.Normalize(e.now())
	if res, ok := e.cache.Get(key(e.store.Version(), f)); ok {
		return res
	}

	var res Result
	res.Version = e.store.View(func(st *ledger.State) {
		res.Blocks = Visible(st.Blocks(), f)
		res.Groups = GroupByBand(st.Bands(), res.Blocks, f.DateRange)
	})
	res.Filter = f
	e.cache.Set(key(res.Version, f), res)
	e.logger.Debug("Query computed", log.FieldVersion, res.Version, log.FieldCount, len(res.Blocks))
	return res
}

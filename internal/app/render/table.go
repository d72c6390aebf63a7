package render

import (
	"sync"

	"github.com/brattlof/userview/internal/user"
)

// Row is one rendered table row. Label is the 1-based display index and has no
// relation to any identifier held by the users service.
type Row struct {
	Label    int    `json:"label"`
	Username string `json:"username"`
}

// Change describes rows that were just added to a Table. Replace is set when the
// previous rows were discarded first.
type Change struct {
	Rows    []Row
	Replace bool
}

type Option func(*Table)

// WithReplaceOnList makes AppendList discard previously rendered rows instead of
// appending after them.
func WithReplaceOnList(replace bool) Option {
	return func(t *Table) {
		t.replaceOnList = replace
	}
}

// Table is the table body the view appends rows to, together with the advisory
// count of rendered users. The count is display state only; the users service
// holds the real list.
type Table struct {
	mu            sync.Mutex
	rows          []Row
	count         int
	replaceOnList bool

	obsMu     sync.RWMutex
	observers []func(Change)

	// Each append draws a ticket under mu; observers are run strictly in
	// ticket order, so they see changes in the order rows got them.
	nextTicket uint64
	serving    uint64
	turnMu     sync.Mutex
	turn       *sync.Cond
}

func NewTable(opts ...Option) *Table {
	t := &Table{rows: make([]Row, 0)}
	t.turn = sync.NewCond(&t.turnMu)
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// AppendUser appends a single row labelled count+1 and bumps the count by one.
func (t *Table) AppendUser(u user.User) Row {
	t.mu.Lock()
	row := Row{Label: t.count + 1, Username: u.Username}
	t.rows = append(t.rows, row)
	t.count++
	ticket := t.takeTicket()
	t.mu.Unlock()

	t.notify(ticket, Change{Rows: []Row{row}})
	return row
}

// AppendList sorts users by username and appends one row per user, labelled by
// sorted position. The count is overwritten with len(users). Earlier rows stay in
// place unless the table was built WithReplaceOnList.
func (t *Table) AppendList(users []user.User) []Row {
	sorted := user.SortByUsername(users)
	added := make([]Row, len(sorted))
	for i, u := range sorted {
		added[i] = Row{Label: i + 1, Username: u.Username}
	}

	t.mu.Lock()
	replace := t.replaceOnList
	if replace {
		t.rows = make([]Row, 0, len(added))
	}
	t.rows = append(t.rows, added...)
	t.count = len(sorted)
	ticket := t.takeTicket()
	t.mu.Unlock()

	t.notify(ticket, Change{Rows: added, Replace: replace})
	return added
}

func (t *Table) Rows() []Row {
	t.mu.Lock()
	defer t.mu.Unlock()
	rows := make([]Row, len(t.rows))
	copy(rows, t.rows)
	return rows
}

// Count returns the advisory user count. It can differ from Len once a list has
// been appended more than once.
func (t *Table) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Len returns the number of rows currently in the table body.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows)
}

// OnAppend registers fn to be called after every append. Observers run on the
// appending goroutine, outside the row lock, one change at a time and in the
// order the changes were applied. An observer may read the table but must not
// append to it.
func (t *Table) OnAppend(fn func(Change)) {
	t.obsMu.Lock()
	t.observers = append(t.observers, fn)
	t.obsMu.Unlock()
}

// takeTicket must be called with t.mu held.
func (t *Table) takeTicket() uint64 {
	ticket := t.nextTicket
	t.nextTicket++
	return ticket
}

func (t *Table) notify(ticket uint64, c Change) {
	t.turnMu.Lock()
	for t.serving != ticket {
		t.turn.Wait()
	}
	t.turnMu.Unlock()

	defer func() {
		t.turnMu.Lock()
		t.serving++
		t.turn.Broadcast()
		t.turnMu.Unlock()
	}()

	t.obsMu.RLock()
	observers := t.observers
	t.obsMu.RUnlock()

	for _, fn := range observers {
		fn(c)
	}
}

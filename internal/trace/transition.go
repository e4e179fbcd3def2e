package trace

import "fmt"

// TransitionType is the kind of a shell transition or of one of its changes.
type TransitionType string

const (
	TransitionOpen    TransitionType = "OPEN"
	TransitionClose   TransitionType = "CLOSE"
	TransitionToFront TransitionType = "TO_FRONT"
	TransitionToBack  TransitionType = "TO_BACK"
	TransitionChange  TransitionType = "CHANGE"
)

// TransitionState is the lifecycle state of a transition when it was recorded.
type TransitionState int

const (
	TransitionPending    TransitionState = -1
	TransitionCollecting TransitionState = 0
	TransitionStarted    TransitionState = 1
	TransitionPlaying    TransitionState = 2
	TransitionAborted    TransitionState = 3
	TransitionFinished   TransitionState = 4
)

var transitionStateNames = map[TransitionState]string{
	TransitionPending:    "PENDING",
	TransitionCollecting: "COLLECTING",
	TransitionStarted:    "STARTED",
	TransitionPlaying:    "PLAYING",
	TransitionAborted:    "ABORT",
	TransitionFinished:   "FINISHED",
}

func (s TransitionState) String() string {
	if name, ok := transitionStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("TransitionState(%d)", int(s))
}

// ParseTransitionState converts the numeric value found in traces.
func ParseTransitionState(v int) (TransitionState, error) {
	s := TransitionState(v)
	if _, ok := transitionStateNames[s]; !ok {
		return 0, fmt.Errorf("unknown transition state %d", v)
	}
	return s, nil
}

// Change is one participant of a transition.
type Change struct {
	Mode       TransitionType
	WindowName string
	LayerID    int
	TaskID     int
}

// Transition is one entry of the transitions trace.
type Transition struct {
	ID      int
	Type    TransitionType
	State   TransitionState
	Start   int64
	End     int64
	Changes []Change
}

// HasChange reports whether any change has the given mode.
func (t Transition) HasChange(mode TransitionType) bool {
	for _, c := range t.Changes {
		if c.Mode == mode {
			return true
		}
	}
	return false
}

// ChangeWindow returns the window name of the first change with the given mode.
func (t Transition) ChangeWindow(mode TransitionType) (string, bool) {
	for _, c := range t.Changes {
		if c.Mode == mode && c.WindowName != "" {
			return c.WindowName, true
		}
	}
	return "", false
}

// Transaction is one surface transaction applied by the compositor.
type Transaction struct {
	PID              int
	UID              int
	RequestedVSyncID int64
	PostTime         int64
	ID               int64

	appliedVSyncID int64
}

// AppliedVSyncID is the vsync of the transactions entry the transaction was applied in.
func (t Transaction) AppliedVSyncID() int64 {
	return t.appliedVSyncID
}

func (t Transaction) String() string {
	return fmt.Sprintf("Transaction(pid=%d, uid=%d, requestedVSyncId=%d, postTime=%d, id=%d)",
		t.PID, t.UID, t.RequestedVSyncID, t.PostTime, t.ID)
}

// TransactionsEntry groups the transactions applied in one vsync.
type TransactionsEntry struct {
	Timestamp    int64
	VSyncID      int64
	Transactions []Transaction
}

// TransactionsTrace is the ordered transactions trace.
type TransactionsTrace struct {
	entries []TransactionsEntry
}

// NewTransactionsTrace copies entries and binds every transaction to the
// vsync of the entry it was applied in.
func NewTransactionsTrace(entries []TransactionsEntry) *TransactionsTrace {
	out := make([]TransactionsEntry, len(entries))
	for i, e := range entries {
		txs := make([]Transaction, len(e.Transactions))
		for j, tx := range e.Transactions {
			tx.appliedVSyncID = e.VSyncID
			txs[j] = tx
		}
		e.Transactions = txs
		out[i] = e
	}
	return &TransactionsTrace{entries: out}
}

// Entries returns a copy of the entries.
func (t *TransactionsTrace) Entries() []TransactionsEntry {
	out := make([]TransactionsEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// AllTransactions flattens every entry's transactions in trace order.
func (t *TransactionsTrace) AllTransactions() []Transaction {
	var out []Transaction
	for _, e := range t.entries {
		out = append(out, e.Transactions...)
	}
	return out
}

package audit

import "time"

// Action classifies an audit record. The set is closed: every record in the
// trail carries exactly one of these.
type Action string

const (
	ActionMint              Action = "mint"
	ActionBurn              Action = "burn"
	ActionFreeze            Action = "freeze"
	ActionThaw              Action = "thaw"
	ActionPause             Action = "pause"
	ActionUnpause           Action = "unpause"
	ActionBlacklistAdd      Action = "blacklist_add"
	ActionBlacklistRemove   Action = "blacklist_remove"
	ActionSeize             Action = "seize"
	ActionRolesUpdate       Action = "roles_update"
	ActionAuthorityTransfer Action = "authority_transfer"
	ActionMinterUpdate      Action = "minter_update"
	ActionInit              Action = "init"
	ActionRawLog            Action = "raw_log"
	ActionBlocked           Action = "blocked"
)

// TimestampLayout is fixed-width UTC ISO-8601, so lexicographic comparison of
// timestamps equals chronological comparison.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Now renders the current time in the trail's timestamp format.
func Now() string {
	return time.Now().UTC().Format(TimestampLayout)
}

// Record is one immutable audit trail entry. Amount is a decimal string,
// never a native numeric type: on-chain amounts are u64/u128 and must not
// lose precision in transit.
type Record struct {
	Timestamp     string   `json:"timestamp"`
	Type          Action   `json:"type"`
	Signature     string   `json:"signature,omitempty"`
	ProgramID     string   `json:"programId,omitempty"`
	Namespace     string   `json:"namespace,omitempty"`
	Address       string   `json:"address,omitempty"`
	TargetAddress string   `json:"targetAddress,omitempty"`
	Amount        string   `json:"amount,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	Actor         string   `json:"actor,omitempty"`
	RawLogs       []string `json:"rawLogs,omitempty"`
	ErrorInfo     string   `json:"errorInfo,omitempty"`
}

// Filter narrows a ledger query. All set fields are ANDed. From/To compare
// lexicographically against the record timestamp, inclusive on both ends.
type Filter struct {
	Action    Action
	Namespace string
	From      string
	To        string
}

// Matches reports whether the record passes every set filter field.
func (f Filter) Matches(r Record) bool {
	if f.Action != "" && r.Type != f.Action {
		return false
	}
	if f.Namespace != "" && r.Namespace != f.Namespace {
		return false
	}
	if f.From != "" && r.Timestamp < f.From {
		return false
	}
	if f.To != "" && r.Timestamp > f.To {
		return false
	}
	return true
}

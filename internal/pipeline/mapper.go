package pipeline

import (
	"auditrelay/internal/audit"
	"auditrelay/internal/ledger"
)

// extractor builds the action-specific part of an audit record from decoded
// event fields. Extractors are pure: same fields, same record.
type extractor func(fields map[string]ledger.Value) audit.Record

// eventMappings is the closed table from event name to audit action. Unknown
// names fall through to an explicit ignored result: schemas evolve
// independently of this pipeline and an unmapped event is not an error.
//
// Absent optional fields stay empty; nothing is defaulted to a zero address
// that could be mistaken for real data.
var eventMappings = map[string]struct {
	action  audit.Action
	extract extractor
}{
	"TokensMinted": {audit.ActionMint, func(f map[string]ledger.Value) audit.Record {
		return audit.Record{
			Address: f["recipient"].Address(),
			Amount:  f["amount"].Decimal(),
			Actor:   f["minter"].Address(),
		}
	}},
	"TokensBurned": {audit.ActionBurn, func(f map[string]ledger.Value) audit.Record {
		return audit.Record{
			Address: f["burner"].Address(),
			Amount:  f["amount"].Decimal(),
			Actor:   f["burner"].Address(),
		}
	}},
	"AccountFrozen": {audit.ActionFreeze, func(f map[string]ledger.Value) audit.Record {
		return audit.Record{
			Address: f["account"].Address(),
			Actor:   f["frozen_by"].Address(),
		}
	}},
	"AccountThawed": {audit.ActionThaw, func(f map[string]ledger.Value) audit.Record {
		return audit.Record{
			Address: f["account"].Address(),
			Actor:   f["thawed_by"].Address(),
		}
	}},
	"StablecoinPaused": {audit.ActionPause, func(f map[string]ledger.Value) audit.Record {
		return audit.Record{
			Actor: f["paused_by"].Address(),
		}
	}},
	"StablecoinUnpaused": {audit.ActionUnpause, func(f map[string]ledger.Value) audit.Record {
		return audit.Record{
			Actor: f["unpaused_by"].Address(),
		}
	}},
	"AddedToBlacklist": {audit.ActionBlacklistAdd, func(f map[string]ledger.Value) audit.Record {
		return audit.Record{
			Address: f["address"].Address(),
			Reason:  f["reason"].String(),
			Actor:   f["blacklisted_by"].Address(),
		}
	}},
	"RemovedFromBlacklist": {audit.ActionBlacklistRemove, func(f map[string]ledger.Value) audit.Record {
		return audit.Record{
			Address: f["address"].Address(),
			Actor:   f["removed_by"].Address(),
		}
	}},
	"TokensSeized": {audit.ActionSeize, func(f map[string]ledger.Value) audit.Record {
		return audit.Record{
			Address:       f["from"].Address(),
			TargetAddress: f["to"].Address(),
			Amount:        f["amount"].Decimal(),
			Actor:         f["seized_by"].Address(),
		}
	}},
	"RolesUpdated": {audit.ActionRolesUpdate, func(f map[string]ledger.Value) audit.Record {
		return audit.Record{
			Address: f["holder"].Address(),
			Actor:   f["updated_by"].Address(),
		}
	}},
	"AuthorityTransferred": {audit.ActionAuthorityTransfer, func(f map[string]ledger.Value) audit.Record {
		return audit.Record{
			Address:       f["new_authority"].Address(),
			TargetAddress: f["previous_authority"].Address(),
			Actor:         f["previous_authority"].Address(),
		}
	}},
	"MinterUpdated": {audit.ActionMinterUpdate, func(f map[string]ledger.Value) audit.Record {
		return audit.Record{
			Address: f["minter"].Address(),
			Amount:  f["new_quota"].Decimal(),
			Actor:   f["updated_by"].Address(),
		}
	}},
	"StablecoinInitialized": {audit.ActionInit, func(f map[string]ledger.Value) audit.Record {
		return audit.Record{
			Namespace: f["mint"].Address(),
			Address:   f["authority"].Address(),
		}
	}},
}

// Mapper converts decoded events into audit records.
type Mapper struct {
	programID string
}

func NewMapper(programID string) *Mapper {
	return &Mapper{programID: programID}
}

// Map returns the audit record for a recognized event, or ok=false for an
// event this pipeline does not track.
func (m *Mapper) Map(eventName string, fields map[string]ledger.Value, signature string) (audit.Record, bool) {
	mapping, ok := eventMappings[eventName]
	if !ok {
		return audit.Record{}, false
	}
	record := mapping.extract(fields)
	record.Type = mapping.action
	record.Signature = signature
	record.ProgramID = m.programID
	return record, true
}

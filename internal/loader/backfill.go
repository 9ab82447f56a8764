package loader

import (
	"fmt"
	"strings"
	"time"

	convertdomain "github.com/greendigit/cnr-ingest/internal/convert/domain"
)

var (
	finishedStatuses   = map[string]bool{"done": true, "finished": true, "success": true, "succeeded": true}
	unfinishedStatuses = map[string]bool{"running": true, "pending": true, "completing": true}
)

// Backfill enforces the NOT NULL invariants of fact_site_event before load.
// Partner payloads often omit one or both exec times and the completion
// flags; the transform still emits the keys unset. Every rule is idempotent,
// so reapplying to an already-backfilled fact is a no-op.
func Backfill(fact *convertdomain.Fact, now time.Time) {
	start := coalesceTime(fact.StartExecTime, fact.EventStartTime)
	end := coalesceTime(fact.StopExecTime, fact.EventEndTime)

	switch {
	case start == nil && end != nil:
		start = end
	case end == nil && start != nil:
		end = start
	case start == nil && end == nil:
		t := now.UTC()
		start, end = &t, &t
	}

	if fact.StartExecTime == nil {
		fact.StartExecTime = start
	}
	if fact.StopExecTime == nil {
		fact.StopExecTime = end
	}
	if fact.EventStartTime == nil {
		fact.EventStartTime = start
	}
	if fact.EventEndTime == nil {
		fact.EventEndTime = end
	}

	if fact.ExecUnitID == nil || strings.TrimSpace(*fact.ExecUnitID) == "" {
		sentinel := "missing:execunitid:event_id=unknown"
		if fact.EventID != 0 {
			sentinel = fmt.Sprintf("missing:execunitid:event_id=%d", fact.EventID)
		}
		fact.ExecUnitID = &sentinel
	}

	status := ""
	if fact.Status != nil {
		status = strings.ToLower(strings.TrimSpace(*fact.Status))
	}

	execFinished := fact.ExecUnitFinished
	if execFinished == nil {
		switch {
		case fact.JobFinished != nil:
			execFinished = fact.JobFinished
		case finishedStatuses[status]:
			v := true
			execFinished = &v
		case unfinishedStatuses[status]:
			v := false
			execFinished = &v
		default:
			v := false
			execFinished = &v
		}
	}
	fact.ExecUnitFinished = execFinished

	if fact.JobFinished == nil {
		fact.JobFinished = execFinished
	}
}

func coalesceTime(values ...*time.Time) *time.Time {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

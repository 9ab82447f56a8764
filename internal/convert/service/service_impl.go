package service

import (
	"strings"
	"time"

	"github.com/greendigit/cnr-ingest/internal/convert/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServiceParam struct {
	fx.In

	Log *zap.Logger
}

// Service implements domain.Converter. Conversion is pure computation: no
// network calls, no shared mutable state, safe to run per entry in parallel.
type Service struct {
	log *zap.Logger

	eventID    func(execUnitID any, site *string, start *time.Time) int64
	recordedAt func() time.Time
}

func NewService(p ServiceParam) domain.Converter {
	return &Service{
		log:        p.Log.Named("convert.service"),
		eventID:    defaultEventID,
		recordedAt: func() time.Time { return time.Now().UTC() },
	}
}

// NewServiceWithClock is the test seam for a fixed capture instant.
func NewServiceWithClock(log *zap.Logger, now func() time.Time) *Service {
	return &Service{
		log:        log.Named("convert.service"),
		eventID:    defaultEventID,
		recordedAt: now,
	}
}

// Convert accepts a single object or an array of objects. Non-object array
// elements are dropped; any other top-level shape is rejected.
func (s *Service) Convert(payload any) ([]domain.ConvertedRecord, error) {
	entries, err := normalizePayload(payload)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ConvertedRecord, 0, len(entries))
	for _, entry := range entries {
		out = append(out, s.convertOne(entry))
	}
	return out, nil
}

func normalizePayload(payload any) ([]domain.RawEntry, error) {
	switch p := payload.(type) {
	case nil:
		return nil, nil
	case []any:
		entries := make([]domain.RawEntry, 0, len(p))
		for _, item := range p {
			if m, ok := item.(map[string]any); ok {
				entries = append(entries, domain.RawEntry(m))
			}
		}
		return entries, nil
	case []map[string]any:
		entries := make([]domain.RawEntry, 0, len(p))
		for _, m := range p {
			entries = append(entries, domain.RawEntry(m))
		}
		return entries, nil
	case map[string]any:
		return []domain.RawEntry{domain.RawEntry(p)}, nil
	case domain.RawEntry:
		return []domain.RawEntry{p}, nil
	}
	return nil, domain.ErrUnsupportedPayload
}

func (s *Service) convertOne(entry domain.RawEntry) domain.ConvertedRecord {
	idx := indexKeys(entry)
	ptype := detectPayloadType(entry, idx)

	site := resolveSite(entry, idx)

	rawExecUnitID, _ := lookup(entry, idx, "ExecUnitID", "JobID", "execunitid")
	execUnitID := toString(rawExecUnitID)

	statusVal, _ := lookup(entry, idx, "Status", "status")
	status := toString(statusVal)
	ownerVal, _ := lookup(entry, idx, "Owner", "owner")
	owner := toString(ownerVal)

	submitRaw, _ := lookup(entry, idx, "SubmissionTime", "submit_time")
	submitTime := parseTimestamp(submitRaw)
	startRaw, _ := lookup(entry, idx, "StartExecTime", "startexectime")
	startExec := parseTimestamp(startRaw)
	stopRaw, _ := lookup(entry, idx, "StopExecTime", "EndExecTime", "stopexectime")
	stopExec := parseTimestamp(stopRaw)

	pueRaw, _ := lookup(entry, idx, "PUE", "pue")
	ciRaw, _ := lookup(entry, idx, "CI_g", "CIg", "ci_g")
	cfpRaw, _ := lookup(entry, idx, "CFP_g", "CFPg", "cfp_g")
	energyRaw, _ := lookup(entry, idx, "Energy_wh", "EnergyWh", "energy_wh")
	workRaw, _ := lookup(entry, idx, "Work", "work")

	finishedRaw, _ := lookup(entry, idx, "ExecUnitFinished", "execunitfinished")
	execFinished := toBool(finishedRaw)
	if execFinished == nil && status != nil {
		switch strings.ToLower(strings.TrimSpace(*status)) {
		case "done", "finished", "success", "succeeded":
			v := true
			execFinished = &v
		case "running", "pending":
			v := false
			execFinished = &v
		}
	}

	start := startExec
	if start == nil {
		start = submitTime
	}
	eventID := s.eventID(rawExecUnitID, site, start)

	eventStart := submitTime
	if eventStart == nil {
		eventStart = startExec
	}

	fact := &domain.Fact{
		EventID:          eventID,
		Site:             site,
		EventStartTime:   eventStart,
		EventEndTime:     stopExec,
		RecordedAt:       s.recordedAt(),
		JobFinished:      execFinished,
		CIg:              toInt(ciRaw),
		CFPg:             toFloat(cfpRaw),
		PUE:              toFloat(pueRaw),
		EnergyWh:         toFloat(energyRaw),
		Work:             toFloat(workRaw),
		StartExecTime:    startExec,
		StopExecTime:     stopExec,
		Status:           status,
		Owner:            owner,
		ExecUnitID:       execUnitID,
		ExecUnitFinished: execFinished,
	}

	rec := domain.ConvertedRecord{
		PayloadType: ptype,
		Fact:        fact,
		DetailTable: ptype.DetailTable(),
		Raw:         entry,
	}

	switch ptype {
	case domain.PayloadCloud:
		rec.Cloud = detailCloud(entry, idx, eventID, execUnitID)
	case domain.PayloadNetwork:
		rec.Network = detailNetwork(entry, idx, eventID, execUnitID)
	default:
		rec.Grid = detailGrid(entry, idx, eventID, execUnitID)
	}
	return rec
}

func resolveSite(entry domain.RawEntry, idx keyIndex) *string {
	v, _ := lookup(entry, idx, "SiteGOCDB", "SiteName", "Site", "site")
	return trimmedString(v)
}

func detailGrid(entry domain.RawEntry, idx keyIndex, eventID int64, execUnitID *string) *domain.GridDetail {
	get := func(candidates ...string) any {
		v, _ := lookup(entry, idx, candidates...)
		return v
	}
	return &domain.GridDetail{
		EventID:                eventID,
		ExecUnitID:             execUnitID,
		WallClockTimeS:         toInt(get("WallClockTime_s", "WallClockTime(s)", "wallclocktime_s")),
		CPUNormalizationFactor: toFloat(get("CPUNormalizationFactor", "cpunormalizationfactor")),
		NCores:                 toInt(get("NCores", "ncores")),
		NormCPUTimeS:           toInt(get("NormCPUTime_s", "NormCPUTime(s)", "normcputime_s")),
		Efficiency:             toFloat(get("Efficiency", "efficiency")),
		TDPw:                   toInt(get("TDP_w", "TDP(W)", "tdp_w")),
		TotalCPUTimeS:          toInt(get("TotalCPUTime_s", "TotalCPUTime(s)", "totalcputime_s")),
		ScaledCPUTimeS:         toInt(get("ScaledCPUTime_s", "ScaledCPUTime(s)", "scaledcputime_s")),
	}
}

func detailCloud(entry domain.RawEntry, idx keyIndex, eventID int64, execUnitID *string) *domain.CloudDetail {
	get := func(candidates ...string) any {
		v, _ := lookup(entry, idx, candidates...)
		return v
	}
	return &domain.CloudDetail{
		EventID:                eventID,
		ExecUnitID:             execUnitID,
		WallClockTimeS:         toInt(get("WallClockTime_s", "WallClockTime(s)", "wallclocktime_s")),
		SuspendDurationS:       toInt(get("SuspendDuration_s", "suspendduration_s")),
		CPUDurationS:           toInt(get("CpuDuration_s", "CPUDuration_s", "cpuduration_s")),
		CPUNormalizationFactor: toFloat(get("CPUNormalizationFactor", "cpunormalizationfactor")),
		Efficiency:             toFloat(get("Efficiency", "efficiency")),
		CloudType:              toString(get("CloudType", "cloud_type")),
		ComputeService:         toString(get("CloudComputeService", "compute_service")),
	}
}

func detailNetwork(entry domain.RawEntry, idx keyIndex, eventID int64, execUnitID *string) *domain.NetworkDetail {
	nestedRaw, _ := lookup(entry, idx, "detail_network")
	nested, _ := nestedRaw.(map[string]any)
	nidx := indexKeys(nested)

	get := func(candidates ...string) any {
		v, _ := lookup(nested, nidx, candidates...)
		return v
	}
	return &domain.NetworkDetail{
		EventID:                 eventID,
		ExecUnitID:              execUnitID,
		AmountOfDataTransferred: toInt(get("AmountOfDataTransferred", "amountofdatatransferred")),
		NetworkType:             toString(get("NetworkType", "networktype")),
		MeasurementType:         toString(get("MeasurementType", "measurementtype")),
		DestinationExecUnitID:   toString(get("DestinationExecUnitID", "destinationexecunitid")),
	}
}

// BuildEnvelope wraps a converted record in the canonical envelope shape.
// All three detail keys are always present; only the one matching
// DetailTable is populated.
func BuildEnvelope(rec domain.ConvertedRecord) *domain.Envelope {
	env := &domain.Envelope{
		Site:          rec.Fact.Site,
		DurationS:     durationSeconds(rec.Fact),
		Sites:         domain.SiteRef{SiteType: rec.PayloadType},
		Fact:          rec.Fact,
		DetailTable:   rec.DetailTable,
		DetailGrid:    rec.Grid,
		DetailCloud:   rec.Cloud,
		DetailNetwork: rec.Network,
	}
	if env.DetailGrid == nil {
		env.DetailGrid = &domain.GridDetail{}
	}
	if env.DetailCloud == nil {
		env.DetailCloud = &domain.CloudDetail{}
	}
	if env.DetailNetwork == nil {
		env.DetailNetwork = &domain.NetworkDetail{}
	}
	return env
}

func durationSeconds(fact *domain.Fact) *float64 {
	if fact.StartExecTime == nil || fact.StopExecTime == nil {
		return nil
	}
	d := fact.StopExecTime.Sub(*fact.StartExecTime).Seconds()
	return &d
}

// Package domain contains the canonical record types produced by the
// normalization engine and consumed by the batch loader.
package domain

import (
	"errors"
	"time"
)

// PayloadType classifies a partner entry by workload category.
type PayloadType string

const (
	PayloadGrid    PayloadType = "grid"
	PayloadCloud   PayloadType = "cloud"
	PayloadNetwork PayloadType = "network"
)

// DetailTable returns the detail table fed by this payload type.
func (p PayloadType) DetailTable() string {
	switch p {
	case PayloadCloud:
		return "detail_cloud"
	case PayloadNetwork:
		return "detail_network"
	default:
		return "detail_grid"
	}
}

// Valid reports whether p is one of the three known payload types.
func (p PayloadType) Valid() bool {
	switch p {
	case PayloadGrid, PayloadCloud, PayloadNetwork:
		return true
	}
	return false
}

// RawEntry is a partner-submitted accounting entry. Keys vary in case and
// separator style across partners; values are arbitrary JSON scalars plus an
// optional nested network-detail object.
type RawEntry map[string]any

// Fact is the canonical per-job accounting event row (fact_site_event).
// Optional columns are pointers so that "unset" stays distinguishable from
// zero/false until the backfill pass runs.
type Fact struct {
	EventID          int64      `gorm:"column:event_id;primaryKey;autoIncrement" json:"event_id"`
	SiteID           *int64     `gorm:"column:site_id" json:"site_id"`
	EventStartTime   *time.Time `gorm:"column:event_start_timestamp" json:"event_start_timestamp"`
	EventEndTime     *time.Time `gorm:"column:event_end_timestamp" json:"event_end_timestamp"`
	RecordedAt       time.Time  `gorm:"column:recorded_at" json:"recorded_at"`
	JobFinished      *bool      `gorm:"column:job_finished" json:"job_finished"`
	CIg              *int64     `gorm:"column:ci_g" json:"CI_g"`
	CFPg             *float64   `gorm:"column:cfp_g" json:"CFP_g"`
	PUE              *float64   `gorm:"column:pue" json:"PUE"`
	Site             *string    `gorm:"column:site" json:"site"`
	EnergyWh         *float64   `gorm:"column:energy_wh" json:"energy_wh"`
	Work             *float64   `gorm:"column:work" json:"work"`
	StartExecTime    *time.Time `gorm:"column:startexectime" json:"startexectime"`
	StopExecTime     *time.Time `gorm:"column:stopexectime" json:"stopexectime"`
	Status           *string    `gorm:"column:status" json:"status"`
	Owner            *string    `gorm:"column:owner" json:"owner"`
	ExecUnitID       *string    `gorm:"column:execunitid" json:"execunitid"`
	ExecUnitFinished *bool      `gorm:"column:execunitfinished" json:"execunitfinished"`

	// Partner-supplied CI/CFP are preserved under their own keys when the
	// enrichment pass overwrites the canonical columns. Not persisted.
	CISiteG  *int64   `gorm:"-" json:"CI_site_g,omitempty"`
	CFPSiteG *float64 `gorm:"-" json:"CFP_site_g,omitempty"`
}

func (Fact) TableName() string { return "fact_site_event" }

// GridDetail is the grid variant of the per-event metrics row.
type GridDetail struct {
	SiteID                 *int64   `gorm:"column:site_id" json:"site_id"`
	EventID                int64    `gorm:"column:event_id" json:"event_id"`
	ExecUnitID             *string  `gorm:"column:execunitid" json:"execunitid"`
	WallClockTimeS         *int64   `gorm:"column:wallclocktime_s" json:"wallclocktime_s"`
	CPUNormalizationFactor *float64 `gorm:"column:cpunormalizationfactor" json:"cpunormalizationfactor"`
	NCores                 *int64   `gorm:"column:ncores" json:"ncores"`
	NormCPUTimeS           *int64   `gorm:"column:normcputime_s" json:"normcputime_s"`
	Efficiency             *float64 `gorm:"column:efficiency" json:"efficiency"`
	TDPw                   *int64   `gorm:"column:tdp_w" json:"tdp_w"`
	TotalCPUTimeS          *int64   `gorm:"column:totalcputime_s" json:"totalcputime_s"`
	ScaledCPUTimeS         *int64   `gorm:"column:scaledcputime_s" json:"scaledcputime_s"`
}

func (GridDetail) TableName() string { return "detail_grid" }

// CloudDetail is the cloud variant of the per-event metrics row.
type CloudDetail struct {
	EventID                int64    `gorm:"column:event_id" json:"event_id"`
	SiteID                 *int64   `gorm:"column:site_id" json:"site_id"`
	ExecUnitID             *string  `gorm:"column:execunitid" json:"execunitid"`
	WallClockTimeS         *int64   `gorm:"column:wallclocktime_s" json:"wallclocktime_s"`
	SuspendDurationS       *int64   `gorm:"column:suspendduration_s" json:"suspendduration_s"`
	CPUDurationS           *int64   `gorm:"column:cpuduration_s" json:"cpuduration_s"`
	CPUNormalizationFactor *float64 `gorm:"column:cpunormalizationfactor" json:"cpunormalizationfactor"`
	Efficiency             *float64 `gorm:"column:efficiency" json:"efficiency"`
	CloudType              *string  `gorm:"column:cloud_type" json:"cloud_type"`
	ComputeService         *string  `gorm:"column:compute_service" json:"compute_service"`
}

func (CloudDetail) TableName() string { return "detail_cloud" }

// NetworkDetail is the network variant, sourced from the nested
// detail_network sub-object of the raw entry.
type NetworkDetail struct {
	SiteID                  *int64  `gorm:"column:site_id" json:"site_id"`
	EventID                 int64   `gorm:"column:event_id" json:"event_id"`
	ExecUnitID              *string `gorm:"column:execunitid" json:"execunitid"`
	AmountOfDataTransferred *int64  `gorm:"column:amountofdatatransferred" json:"amountofdatatransferred"`
	NetworkType             *string `gorm:"column:networktype" json:"networktype"`
	MeasurementType         *string `gorm:"column:measurementtype" json:"measurementtype"`
	DestinationExecUnitID   *string `gorm:"column:destinationexecunitid" json:"destinationexecunitid"`
}

func (NetworkDetail) TableName() string { return "detail_network" }

// SiteRef is the envelope's sites block.
type SiteRef struct {
	SiteType PayloadType `json:"site_type"`
}

// Envelope is the boundary artifact handed to the persistence layer. All
// three detail keys are always present; only the one named by DetailTable is
// populated.
type Envelope struct {
	Site          *string        `json:"site"`
	DurationS     *float64       `json:"duration_s"`
	Sites         SiteRef        `json:"sites"`
	Fact          *Fact          `json:"fact_site_event"`
	DetailTable   string         `json:"detail_table"`
	DetailGrid    *GridDetail    `json:"detail_grid"`
	DetailCloud   *CloudDetail   `json:"detail_cloud"`
	DetailNetwork *NetworkDetail `json:"detail_network"`
}

// ConvertedRecord pairs a classified entry with its canonical rows. The
// fact carries the deterministic identity assigned at conversion time; the
// store replaces it with its own auto-generated id at insert.
type ConvertedRecord struct {
	PayloadType PayloadType
	Fact        *Fact
	DetailTable string
	Grid        *GridDetail
	Cloud       *CloudDetail
	Network     *NetworkDetail
	Raw         RawEntry
}

var (
	// ErrUnsupportedPayload signals a top-level shape that is neither an
	// object nor an array of objects.
	ErrUnsupportedPayload = errors.New("unsupported_payload_shape")
)

// Converter turns raw partner payloads into canonical records.
type Converter interface {
	Convert(payload any) ([]ConvertedRecord, error)
}

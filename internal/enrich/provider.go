// Package enrich consumes the remote KPI service as a black-box collaborator:
// power-usage-effectiveness lookup, carbon-intensity lookup and
// carbon-footprint computation. Every failure is non-fatal; the pipeline
// proceeds with fallbacks.
package enrich

import (
	"context"
	"time"

	convertdomain "github.com/greendigit/cnr-ingest/internal/convert/domain"
)

// Precedence decides what wins when both a partner-supplied and a freshly
// computed carbon value are present. The two upstream forwarding variants
// disagreed on this, so it is a required configuration choice.
type Precedence string

const (
	// PreferPartner keeps partner-supplied CI/CFP and only fills gaps.
	PreferPartner Precedence = "prefer-partner"
	// PreferComputed always overwrites with the freshly computed values.
	PreferComputed Precedence = "prefer-computed"
)

// Location is the site position returned by the PUE lookup.
type Location struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// PUEResponse is the power-usage-effectiveness lookup result.
type PUEResponse struct {
	PUE      *float64  `json:"pue"`
	Location *Location `json:"location"`
}

// CIRequest asks for carbon intensity over a time window at a position.
type CIRequest struct {
	Lat      float64
	Lon      float64
	Start    time.Time
	End      time.Time
	PUE      float64
	EnergyWh *float64
}

// CIResponse is the carbon-intensity lookup result. Either field may be
// absent; ci_gco2_per_kwh takes precedence over ci_g.
type CIResponse struct {
	CIgCO2PerKWh *float64 `json:"ci_gco2_per_kwh"`
	CIg          *float64 `json:"ci_g"`
	CFPg         *float64 `json:"cfp_g"`
}

// CFPResponse is the carbon-footprint computation result.
type CFPResponse struct {
	CFPg *float64 `json:"cfp_g"`
}

// KPIClient is the wire contract of the KPI service.
type KPIClient interface {
	PUE(ctx context.Context, siteName string) (*PUEResponse, error)
	CI(ctx context.Context, req CIRequest) (*CIResponse, error)
	CFP(ctx context.Context, ciG, pue, energyWh float64) (*CFPResponse, error)
}

// Service fills CI/PUE/CFP on an envelope's fact.
type Service interface {
	Enrich(ctx context.Context, env *convertdomain.Envelope)
}

// NoOp skips enrichment entirely; used by the offline loader path.
type NoOp struct{}

func (NoOp) Enrich(ctx context.Context, env *convertdomain.Envelope) {}

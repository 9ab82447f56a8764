package enrich

import (
	"context"
	"math"
	"time"

	convertdomain "github.com/greendigit/cnr-ingest/internal/convert/domain"
	"go.uber.org/zap"
)

// Config controls the enrichment pass.
type Config struct {
	// Precedence must be chosen explicitly by the deployment.
	Precedence Precedence
	// PUEFallback is used when neither the partner nor the KPI service
	// supplies a PUE.
	PUEFallback float64
}

type Enricher struct {
	client KPIClient
	log    *zap.Logger
	cfg    Config
	now    func() time.Time
}

func NewEnricher(client KPIClient, log *zap.Logger, cfg Config) *Enricher {
	if cfg.PUEFallback <= 0 {
		cfg.PUEFallback = 1.7
	}
	if cfg.Precedence == "" {
		cfg.Precedence = PreferPartner
	}
	return &Enricher{
		client: client,
		log:    log.Named("enrich"),
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Enrich resolves PUE, CI and CFP for the envelope's fact. Collaborator
// failures degrade to fallbacks; the pipeline never fails here.
func (e *Enricher) Enrich(ctx context.Context, env *convertdomain.Envelope) {
	if env == nil || env.Fact == nil {
		return
	}
	fact := env.Fact

	partnerCI := fact.CIg
	partnerCFP := fact.CFPg
	if partnerCI != nil && fact.CISiteG == nil {
		fact.CISiteG = partnerCI
	}
	if partnerCFP != nil && fact.CFPSiteG == nil {
		fact.CFPSiteG = partnerCFP
	}

	var ciG, cfpG *float64
	if e.cfg.Precedence == PreferPartner {
		if partnerCI != nil {
			v := float64(*partnerCI)
			ciG = &v
		}
		cfpG = partnerCFP
	}

	pue := fact.PUE
	var pueResp *PUEResponse
	needCI := ciG == nil
	if fact.Site != nil && (pue == nil || needCI) {
		var err error
		pueResp, err = e.client.PUE(ctx, *fact.Site)
		if err != nil {
			e.log.Warn("pue lookup failed", zap.String("site", *fact.Site), zap.Error(err))
		}
		if pueResp != nil && pue == nil {
			pue = pueResp.PUE
		}
	}
	if pue == nil {
		v := e.cfg.PUEFallback
		pue = &v
	}

	if ciG == nil && pueResp != nil && pueResp.Location != nil &&
		pueResp.Location.Latitude != nil && pueResp.Location.Longitude != nil {
		when := e.referenceInstant(fact)
		resp, err := e.client.CI(ctx, CIRequest{
			Lat:      *pueResp.Location.Latitude,
			Lon:      *pueResp.Location.Longitude,
			Start:    when.Add(-1 * time.Hour),
			End:      when.Add(2 * time.Hour),
			PUE:      *pue,
			EnergyWh: fact.EnergyWh,
		})
		if err != nil {
			e.log.Warn("ci lookup failed", zap.Error(err))
		} else if resp != nil {
			if resp.CIgCO2PerKWh != nil {
				ciG = resp.CIgCO2PerKWh
			} else if resp.CIg != nil {
				ciG = resp.CIg
			}
			if cfpG == nil {
				cfpG = resp.CFPg
			}
		}
	}

	if cfpG == nil && ciG != nil && fact.EnergyWh != nil {
		resp, err := e.client.CFP(ctx, *ciG, *pue, *fact.EnergyWh)
		if err != nil {
			e.log.Warn("cfp lookup failed", zap.Error(err))
		} else if resp != nil {
			cfpG = resp.CFPg
		}
		if cfpG == nil {
			v := (*fact.EnergyWh / 1000.0) * *pue * *ciG
			cfpG = &v
		}
	}

	fact.PUE = pue
	if ciG != nil {
		v := int64(math.Round(*ciG))
		fact.CIg = &v
	}
	if cfpG != nil {
		v := math.Round(*cfpG*10000) / 10000
		fact.CFPg = &v
	}
}

// referenceInstant picks the instant the CI window centers on: the event end
// when known, else now.
func (e *Enricher) referenceInstant(fact *convertdomain.Fact) time.Time {
	if fact.StopExecTime != nil {
		return fact.StopExecTime.UTC()
	}
	if fact.EventEndTime != nil {
		return fact.EventEndTime.UTC()
	}
	return e.now()
}

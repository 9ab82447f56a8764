package enrich

import (
	"github.com/greendigit/cnr-ingest/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewFromConfig builds the enrichment service the deployment asked for: the
// HTTP client when a KPI endpoint is configured, the no-op otherwise.
func NewFromConfig(cfg config.Config, log *zap.Logger) (Service, error) {
	if err := cfg.ValidateKPI(); err != nil {
		return nil, err
	}
	if cfg.KPIBaseURL == "" {
		return NoOp{}, nil
	}
	client := NewHTTPClient(cfg.KPIBaseURL, cfg.KPITimeout)
	return NewEnricher(client, log, Config{
		Precedence:  Precedence(cfg.KPIPrecedence),
		PUEFallback: cfg.PUEFallback,
	}), nil
}

var Module = fx.Module("enrich",
	fx.Provide(NewFromConfig),
)

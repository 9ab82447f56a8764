package convert

import (
	"github.com/greendigit/cnr-ingest/internal/convert/service"
	"go.uber.org/fx"
)

var Module = fx.Module("convert.service",
	fx.Provide(service.NewService),
)

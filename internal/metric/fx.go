package metric

import (
	"github.com/arabot777/idea2product-metering/internal/metric/repository"
	"github.com/arabot777/idea2product-metering/internal/metric/service"
	"go.uber.org/fx"
)

var Module = fx.Module("metric",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

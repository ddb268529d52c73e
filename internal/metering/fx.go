package metering

import (
	"github.com/arabot777/idea2product-metering/internal/metering/service"
	"go.uber.org/fx"
)

var Module = fx.Module("metering",
	fx.Provide(service.New),
)

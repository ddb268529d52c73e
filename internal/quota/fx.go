package quota

import (
	"github.com/arabot777/idea2product-metering/internal/quota/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("quota",
	fx.Provide(repository.Provide),
)

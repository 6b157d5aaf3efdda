package tax

import (
	"github.com/smallbiznis/kanakku/internal/tax/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tax.service",
	fx.Provide(service.NewEngine),
)

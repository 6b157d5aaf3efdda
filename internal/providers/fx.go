package providers

import (
	"github.com/smallbiznis/kanakku/internal/providers/email"
	"github.com/smallbiznis/kanakku/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
)

package payment

import (
	"github.com/smallbiznis/kanakku/internal/payment/domain"
	"github.com/smallbiznis/kanakku/internal/payment/repository"
	"github.com/smallbiznis/kanakku/internal/payment/service"
	"github.com/smallbiznis/kanakku/pkg/db"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	db.AsModels(&domain.InvoicePayment{}),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

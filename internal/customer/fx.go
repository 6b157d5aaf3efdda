package customer

import (
	"github.com/smallbiznis/kanakku/internal/customer/domain"
	"github.com/smallbiznis/kanakku/internal/customer/repository"
	"github.com/smallbiznis/kanakku/internal/customer/service"
	"github.com/smallbiznis/kanakku/pkg/db"
	"go.uber.org/fx"
)

var Module = fx.Module("customer.service",
	db.AsModels(&domain.Customer{}),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

package company

import (
	"github.com/smallbiznis/kanakku/internal/company/domain"
	"github.com/smallbiznis/kanakku/internal/company/repository"
	"github.com/smallbiznis/kanakku/internal/company/service"
	"github.com/smallbiznis/kanakku/pkg/db"
	"go.uber.org/fx"
)

var Module = fx.Module("company.service",
	db.AsModels(&domain.Company{}),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

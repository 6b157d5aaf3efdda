package product

import (
	"github.com/smallbiznis/kanakku/internal/product/domain"
	"github.com/smallbiznis/kanakku/internal/product/repository"
	"github.com/smallbiznis/kanakku/internal/product/service"
	"github.com/smallbiznis/kanakku/pkg/db"
	"go.uber.org/fx"
)

var Module = fx.Module("product.service",
	db.AsModels(&domain.Product{}, &domain.StockLog{}),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

package sequence

import (
	"github.com/smallbiznis/kanakku/internal/sequence/domain"
	"github.com/smallbiznis/kanakku/internal/sequence/repository"
	"github.com/smallbiznis/kanakku/internal/sequence/service"
	"github.com/smallbiznis/kanakku/pkg/db"
	"go.uber.org/fx"
)

var Module = fx.Module("sequence.service",
	db.AsModels(&domain.DocumentSeries{}),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

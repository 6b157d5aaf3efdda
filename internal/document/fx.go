package document

import (
	"github.com/smallbiznis/kanakku/internal/document/domain"
	"github.com/smallbiznis/kanakku/internal/document/repository"
	"github.com/smallbiznis/kanakku/internal/document/service"
	"github.com/smallbiznis/kanakku/pkg/db"
	"go.uber.org/fx"
)

var Module = fx.Module("document.service",
	db.AsModels(&domain.Document{}, &domain.DocumentItem{}),
	fx.Provide(repository.Provide),
	fx.Provide(repository.ProvideIssuedNumbers),
	fx.Provide(service.New),
	fx.Provide(service.NewAttachmentResolver),
)

package emailqueue

import (
	"github.com/smallbiznis/kanakku/internal/emailqueue/domain"
	"github.com/smallbiznis/kanakku/internal/emailqueue/repository"
	"github.com/smallbiznis/kanakku/internal/emailqueue/service"
	"github.com/smallbiznis/kanakku/pkg/db"
	"go.uber.org/fx"
)

var Module = fx.Module("emailqueue.service",
	db.AsModels(&domain.EmailJob{}),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

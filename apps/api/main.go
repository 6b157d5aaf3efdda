package main

import (
	_ "time/tzdata"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kanakku/internal/clock"
	"github.com/smallbiznis/kanakku/internal/company"
	"github.com/smallbiznis/kanakku/internal/config"
	"github.com/smallbiznis/kanakku/internal/customer"
	"github.com/smallbiznis/kanakku/internal/document"
	"github.com/smallbiznis/kanakku/internal/emailqueue"
	"github.com/smallbiznis/kanakku/internal/migration"
	"github.com/smallbiznis/kanakku/internal/observability"
	"github.com/smallbiznis/kanakku/internal/payment"
	"github.com/smallbiznis/kanakku/internal/product"
	"github.com/smallbiznis/kanakku/internal/providers/pdf"
	"github.com/smallbiznis/kanakku/internal/sequence"
	"github.com/smallbiznis/kanakku/internal/server"
	"github.com/smallbiznis/kanakku/internal/tax"
	"github.com/smallbiznis/kanakku/pkg/db"
	"go.uber.org/fx"
)

// api serves HTTP only. Queued email is delivered by apps/scheduler.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		pdf.Module,

		tax.Module,
		sequence.Module,
		emailqueue.Module,
		company.Module,
		customer.Module,
		document.Module,
		product.Module,
		payment.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}

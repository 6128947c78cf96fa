package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/subflowhq/rebill/internal/clock"
	"github.com/subflowhq/rebill/internal/config"
	"github.com/subflowhq/rebill/internal/gateway"
	"github.com/subflowhq/rebill/internal/notify"
	"github.com/subflowhq/rebill/internal/observability"
	"github.com/subflowhq/rebill/internal/payment"
	"github.com/subflowhq/rebill/internal/rebill"
	"github.com/subflowhq/rebill/internal/server"
	"github.com/subflowhq/rebill/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		payment.Module,
		gateway.Module,
		notify.Module,
		rebill.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/arabot777/idea2product-metering/internal/server"
	"github.com/arabot777/idea2product-metering/pkg/db"
	"github.com/arabot777/idea2product-metering/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		log.Module,
		db.Module,
		fx.Provide(RegisterSnowflake),
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

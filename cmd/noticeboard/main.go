package main

import (
	"NoticeBoard/internal/bootstrap"
	pkg "NoticeBoard/pkg/routes"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	bootstrap.Loadenv()
	app := fx.New(
		pkg.Modules,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)
	app.Run()
}

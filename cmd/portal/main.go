package main

import (
	"MemberPortal/internal/bootstrap"
	pkg "MemberPortal/pkg/routes"

	"go.uber.org/fx"
)

func main() {
	bootstrap.Loadenv()
	app := fx.New(
		pkg.EchoModules,
	)

	app.Run()
}

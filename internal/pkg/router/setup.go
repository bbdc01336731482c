package router

import (
	"github.com/gofiber/fiber/v2"

	apiv1 "github.com/milanotravel/tourbooking/internal/api/v1"
)

// Router installs a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// InstallRouter wires every route group. The whole surface is the JSON API;
// the customer frontend lives in the CMS.
func InstallRouter(app *fiber.App, server *apiv1.APIServer) {
	setup(app, NewApiRouter(server))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}

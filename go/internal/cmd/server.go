package main

import (
	"net/http"

	"github.com/mcdev12/numduel/go/internal/game/status"
)

func setupServer(port int, services *Services) *http.Server {
	handler := status.NewHandler(services.Store, services.Controller, services.Adapter)
	return status.NewServer(port, handler)
}

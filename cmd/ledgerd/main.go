package main

import (
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/donation-ledger/pkg/app"
)

func main() {
	err := app.Run(
		newLedger(),
		app.WithMiddleware(allowCrossOrigin),
		app.WithMiddleware(middleware.Heartbeat("/ping")),
	)
	if err != nil {
		logrus.WithError(err).Fatal("error running ledger")
	}
}

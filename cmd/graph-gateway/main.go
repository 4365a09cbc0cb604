package main

import (
	"github.com/sirupsen/logrus"

	"github.com/kimghw/GraphAPIQuery-rev3/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		logrus.Fatalf("application error: %v", err)
	}
}

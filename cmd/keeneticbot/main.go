package main

import (
	"context"
	"flag"

	"github.com/DenisKhanov/KeeneticBot/internal/app/tbot"
	"github.com/sirupsen/logrus"
)

func main() {
	var envFile string
	flag.StringVar(&envFile, "c", "bot.env", "Path to the env file")
	flag.Parse()

	ctx := context.Background()
	a, err := tbot.NewApp(ctx, envFile)
	if err != nil {
		logrus.Fatalf("failed to init app: %s", err.Error())
	}
	a.Run()
}

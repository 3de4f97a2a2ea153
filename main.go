package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zengzjie/nest-source/framework/app"
	"github.com/zengzjie/nest-source/framework/config"
	"github.com/zengzjie/nest-source/framework/container"
	"github.com/zengzjie/nest-source/framework/pipes"
	"github.com/zengzjie/nest-source/framework/upload"
)

// AppModule wires the example application.
func AppModule(cfg *config.Config) *container.Module {
	return container.NewModule("AppModule").
		Imports(
			ForRoot(map[string]string{"owner": cfg.App.Name}, 50*time.Millisecond),
			upload.Register(upload.FromConfig(cfg.Upload)),
			CatsModule,
		).
		Providers(
			container.ClassProvider{Provide: container.AppGuard, UseClass: container.Injectable(NewRolesGuard)},
			container.ClassProvider{Provide: container.AppInterceptor, UseClass: container.Injectable(NewLoggingInterceptor)},
		)
}

func main() {
	cfg, err := config.Load() // reads .env when present
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	application, err := app.New(AppModule(cfg), app.WithConfig(cfg))
	if err != nil {
		log.Fatalf("app: %v", err)
	}
	application.UseGlobalPipes(pipes.NewValidationPipe())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Listen(ctx, cfg.Addr()); err != nil {
		application.Logger().Fatal(err.Error())
	}
}

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/totegamma/daas-playground/internal/broker"
	"github.com/totegamma/daas-playground/internal/config"
	"github.com/totegamma/daas-playground/internal/present/rest"
	"github.com/totegamma/daas-playground/internal/present/rest/middleware"
	"github.com/totegamma/daas-playground/internal/service"
	"github.com/totegamma/daas-playground/internal/store"
	"github.com/totegamma/daas-playground/internal/usecase"
)

func main() {
	confPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	conf, err := config.Load(*confPath)
	if err != nil {
		slog.Error("failed to load the configuration",
			slog.String("error", err.Error()),
			slog.String("path", *confPath),
		)
		os.Exit(1)
	}

	if conf.Server.EnableTrace {
		cleanup := setupTracer(conf)
		defer cleanup()
	}

	storage := store.NewLocalStorage(conf.Storage.Path)
	deliverer := broker.New(conf.Kafka.Brokers)
	ingest := usecase.NewIngestUsecase(storage, deliverer)

	var extractor service.AuthorExtractor = service.NewBase64Author()
	if conf.Server.DefaultAuthor != "" {
		extractor = service.NewDefaultAuthor(conf.Server.DefaultAuthor)
	}

	handler := rest.NewHandler(ingest, middleware.NewAuthorMiddleware(extractor))

	e := echo.New()
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware("daas-listener"))
	}

	handler.RegisterRoutes(e)

	e.Logger.Fatal(e.Start(conf.Server.Bind))
}

func setupTracer(conf config.Config) func() {
	ctx := context.Background()

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(conf.Server.TraceEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		slog.Error("failed to create the trace exporter", slog.String("error", err.Error()))
		os.Exit(1)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName("daas-listener"),
		)),
	)
	otel.SetTracerProvider(provider)

	return func() {
		if err := provider.Shutdown(ctx); err != nil {
			slog.Error("failed to shut down the trace provider", slog.String("error", err.Error()))
		}
	}
}

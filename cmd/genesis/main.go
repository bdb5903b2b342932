package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/totegamma/daas-playground/internal/blob"
	"github.com/totegamma/daas-playground/internal/config"
	"github.com/totegamma/daas-playground/internal/consumer"
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

	ctx := context.Background()

	bucket, err := blob.NewS3Store(ctx, blob.S3Config{
		Bucket:   conf.S3.Bucket,
		Region:   conf.S3.Region,
		Endpoint: conf.S3.Endpoint,
	})
	if err != nil {
		slog.Error("failed to create the S3 store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var rdb *redis.Client
	if conf.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr: conf.Redis.Addr,
			DB:   conf.Redis.DB,
		})
	}

	processor := consumer.New(consumer.Config{
		Brokers: conf.Kafka.Brokers,
		Group:   conf.Kafka.Group,
		Topics:  conf.Kafka.Topics,
		Redis:   rdb,
	}, bucket)

	handle := processor.Run(consumer.ProvisionDocument)

	fmt.Println("Genesis processor is running ...")
	fmt.Println("Press [Enter] to stop the Genesis processor.")
	bufio.NewReader(os.Stdin).ReadString('\n')

	handle.Stop()
}

package config

import (
	"os"

	"github.com/go-yaml/yaml"
)

type Config struct {
	Server  Server  `yaml:"server"`
	Kafka   Kafka   `yaml:"kafka"`
	Storage Storage `yaml:"storage"`
	S3      S3      `yaml:"s3"`
	Redis   Redis   `yaml:"redis"`
}

type Server struct {
	Bind          string `yaml:"bind"`
	DefaultAuthor string `yaml:"defaultAuthor"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Group   string   `yaml:"group"`
	Topics  []string `yaml:"topics"`
}

type Storage struct {
	Path string `yaml:"path"`
}

type S3 struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

type Redis struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	DB      int    `yaml:"db"`
}

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, err
	}

	if config.Server.Bind == "" {
		config.Server.Bind = ":8088"
	}
	if len(config.Kafka.Brokers) == 0 {
		config.Kafka.Brokers = []string{"localhost:9092"}
	}
	if config.Kafka.Group == "" {
		config.Kafka.Group = "genesis-consumers"
	}
	if len(config.Kafka.Topics) == 0 {
		config.Kafka.Topics = []string{"genesis"}
	}
	if config.Storage.Path == "" {
		config.Storage.Path = "./daas-store"
	}

	return config, nil
}

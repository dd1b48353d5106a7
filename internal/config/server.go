package config

type ServerConfig struct {
	HTTP HTTPConfig `yaml:"http"`
	GRPC GRPCConfig `yaml:"grpc"`
}

type HTTPConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// GRPCConfig configures the gRPC health endpoint.
type GRPCConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

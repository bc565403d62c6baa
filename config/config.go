package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type ProviderEndpoint struct {
	BaseURL string `mapstructure:"baseURL"`
	APIKey  string `mapstructure:"apiKey"`
}

type Config struct {
	Mode   string `mapstructure:"mode"`
	Dotenv string `mapstructure:"dotenv"`
	Server struct {
		HTTPPort       string        `mapstructure:"HTTPPort"`
		Timeout        time.Duration `mapstructure:"HTTPTimeout"`
		AllowedOrigins []string      `mapstructure:"allowedOrigins"`
	} `mapstructure:"server"`
	Providers struct {
		OSRM        ProviderEndpoint `mapstructure:"osrm"`
		ORS         ProviderEndpoint `mapstructure:"ors"`
		Nominatim   ProviderEndpoint `mapstructure:"nominatim"`
		OpenTripMap ProviderEndpoint `mapstructure:"opentripmap"`
		Geoapify    ProviderEndpoint `mapstructure:"geoapify"`
		UserAgent   string           `mapstructure:"userAgent"`
	} `mapstructure:"providers"`
	Repositories struct {
		Postgres struct {
			Host     string `mapstructure:"host"`
			Password string `mapstructure:"password"`
			Port     string `mapstructure:"port"`
			Username string `mapstructure:"username"`
			DB       string `mapstructure:"db"`
			SSLMODE  string `mapstructure:"SSLMODE"`
			Enabled  bool   `mapstructure:"enabled"`
		} `mapstructure:"postgres"`
		Redis struct {
			Addr     string `mapstructure:"addr"`
			Password string `mapstructure:"password"`
			DB       int    `mapstructure:"db"`
			Enabled  bool   `mapstructure:"enabled"`
		} `mapstructure:"redis"`
	} `mapstructure:"repositories"`
	Gemini struct {
		Model string `mapstructure:"model"`
	} `mapstructure:"gemini"`
	Engine struct {
		MaxDrivingHoursPerDay float64       `mapstructure:"maxDrivingHoursPerDay"`
		TopPOIsPerDay         int           `mapstructure:"topPOIsPerDay"`
		PipelineDeadline      time.Duration `mapstructure:"pipelineDeadline"`
	} `mapstructure:"engine"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	// Add file-based config paths
	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Try to load file-based config
	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	// Unmarshal the config into the Config struct
	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}
	fmt.Println("Successfully loaded app configs...")
	return config, nil
}

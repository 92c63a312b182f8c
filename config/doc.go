// Package config loads scribe configuration from YAML files, .env files and
// the process environment using viper and godotenv.
//
//	var cfg MyConfig
//	err := config.LoadConfig("scribe", &cfg, config.WithConfigFile(path))
package config

package config

import (
	"encoding/json"
	"os"

	"github.com/zoneup/zoneup/internal/flagx"
	"github.com/zoneup/zoneup/internal/timex"
)

// JsonConfig is the DTO for the optional JSON configuration file. Durations
// accept both "15m" strings and integer nanoseconds via timex.Duration.
type JsonConfig struct {
	EndpointAddr                string         `json:"endpoint_addr"`
	DatabaseDSN                 string         `json:"database_dsn"`
	RootDomain                  string         `json:"root_domain"`
	BaseURL                     string         `json:"base_url"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	RequireEmailActivation      *bool          `json:"require_email_activation"`
	DNSTimeoutDuration          timex.Duration `json:"dns_timeout_duration"`
	Route53ZoneID               string         `json:"route53_zone_id"`
	AWSRegion                   string         `json:"aws_region"`
	AWSAccessKeyID              string         `json:"aws_access_key_id"`
	AWSSecretAccessKey          string         `json:"aws_secret_access_key"`
	SMTPHost                    string         `json:"smtp_host"`
	SMTPPort                    int            `json:"smtp_port"`
	SMTPUsername                string         `json:"smtp_username"`
	SMTPPassword                string         `json:"smtp_password"`
	MailFrom                    string         `json:"mail_from"`
}

// parseJson overlays values from the JSON file named by -c/-config onto
// config. Absent file path means nothing to load; an unreadable or invalid
// file is a startup failure.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.EndpointAddr != "" {
		config.EndpointAddr = c.EndpointAddr
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.RootDomain != "" {
		config.RootDomain = c.RootDomain
	}
	if c.BaseURL != "" {
		config.BaseURL = c.BaseURL
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.AccessTokenValidityDuration.Duration != 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RequireEmailActivation != nil {
		config.RequireEmailActivation = *c.RequireEmailActivation
	}
	if c.DNSTimeoutDuration.Duration != 0 {
		config.DNSTimeoutDuration = c.DNSTimeoutDuration.Duration
	}
	if c.Route53ZoneID != "" {
		config.Route53ZoneID = c.Route53ZoneID
	}
	if c.AWSRegion != "" {
		config.AWSRegion = c.AWSRegion
	}
	if c.AWSAccessKeyID != "" {
		config.AWSAccessKeyID = c.AWSAccessKeyID
	}
	if c.AWSSecretAccessKey != "" {
		config.AWSSecretAccessKey = c.AWSSecretAccessKey
	}
	if c.SMTPHost != "" {
		config.SMTPHost = c.SMTPHost
	}
	if c.SMTPPort != 0 {
		config.SMTPPort = c.SMTPPort
	}
	if c.SMTPUsername != "" {
		config.SMTPUsername = c.SMTPUsername
	}
	if c.SMTPPassword != "" {
		config.SMTPPassword = c.SMTPPassword
	}
	if c.MailFrom != "" {
		config.MailFrom = c.MailFrom
	}
}

package config

import (
	"flag"
	"os"
	"time"

	"github.com/zoneup/zoneup/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-r string   root domain the claimed labels live under
//	-u string   public base URL for activation/reset links
//	-s string   JWT HMAC secret key
//	-t int      session token validity, minutes
//	-z string   Route 53 hosted zone ID
//	-g string   AWS region
//
// The function first filters os.Args down to the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-r", "-u", "-s", "-t", "-z", "-g"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RootDomain, "r", config.RootDomain, "root domain")
	fs.StringVar(&config.BaseURL, "u", config.BaseURL, "public base URL")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")

	fs.StringVar(&config.Route53ZoneID, "z", config.Route53ZoneID, "Route 53 hosted zone ID")
	fs.StringVar(&config.AWSRegion, "g", config.AWSRegion, "AWS region")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
}

package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/sessionkeeper/internal/flagx"
	"github.com/dmitrijs2005/sessionkeeper/internal/timex"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-w string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   access token secret
//	-k string   remember token secret
//	-t int      access token validity, seconds
//	-r int      remember token validity, seconds
//	-debug      expose error detail to clients
//
// os.Args is first filtered with flagx.FilterArgs so flags owned by other
// layers (-c, -e) do not trip the parser.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-w", "-d", "-s", "-k", "-t", "-r", "-debug"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&config.EndpointAddrHTTP, "w", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.AccessTokenSecret, "s", config.AccessTokenSecret, "access token secret")
	fs.StringVar(&config.RememberTokenSecret, "k", config.RememberTokenSecret, "remember token secret")

	accessTokenValidity := fs.Int("t", int(config.AccessTokenValidity.Seconds()), "access token validity (in seconds)")
	rememberTokenValidity := fs.Int("r", int(config.RememberTokenValidity.Seconds()), "remember token validity (in seconds)")

	fs.BoolVar(&config.Debug, "debug", config.Debug, "expose internal error detail")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidity = timex.Seconds(*accessTokenValidity)
	config.RememberTokenValidity = timex.Seconds(*rememberTokenValidity)
}

package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/photokeeper/internal/flagx"
)

var (
	valuedFlags = []string{"-a", "-l", "-m", "-w", "-t", "-x", "-u", "-p", "-b", "-g", "-e", "-P", "-k", "-d", "-n", "-s", "-r"}
	switchFlags = []string{"-o"}
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-l string   log level (debug|info|warn|error)
//	-m int      max upload size, MB
//	-w int      max image width before effects, px (0 disables)
//	-o          persist the original upload (-o=false to disable)
//	-t string   watermark label
//	-x int      external call timeout, seconds
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-P string   public base URL for artifact links
//	-k string   record backend (none|notion|postgres)
//	-d string   PostgreSQL DSN
//	-n string   Notion integration token
//	-s string   submissions target (database id or table)
//	-r string   originals target (database id or table)
func parseFlags(config *Config) {
	args := flagx.Filter(os.Args[1:], valuedFlags, switchFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.IntVar(&config.MaxUploadMB, "m", config.MaxUploadMB, "max upload size (in MB)")
	fs.IntVar(&config.MaxWidth, "w", config.MaxWidth, "max image width (in px)")
	fs.BoolVar(&config.PersistOriginal, "o", config.PersistOriginal, "persist original upload")
	fs.StringVar(&config.WatermarkLabel, "t", config.WatermarkLabel, "watermark label")

	timeout := fs.Int("x", int(config.ExternalCallTimeout.Seconds()), "external call timeout (in seconds)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3PublicBaseURL, "P", config.S3PublicBaseURL, "public base URL for artifacts")
	fs.StringVar(&config.RecordBackend, "k", config.RecordBackend, "record backend")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.NotionToken, "n", config.NotionToken, "Notion token")
	fs.StringVar(&config.SubmissionsTarget, "s", config.SubmissionsTarget, "submissions target")
	fs.StringVar(&config.OriginalsTarget, "r", config.OriginalsTarget, "originals target")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "x" {
			config.ExternalCallTimeout = time.Duration(*timeout) * time.Second
		}
	})
}

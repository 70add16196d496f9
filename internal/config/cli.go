package config

import "flag"

// CLIFlags holds command-line overrides. Nil fields were not set on the
// command line. Precedence: defaults < YAML < ENV < CLI.
type CLIFlags struct {
	ConfigPath *string
	Port       *string
	DSN        *string
	NatsURL    *string
	LogLevel   *string
}

// ParseFlags parses command-line arguments into CLIFlags. Unset flags stay
// nil so they do not clobber lower-precedence sources.
func ParseFlags(args []string) (CLIFlags, error) {
	fs := flag.NewFlagSet("salesforge", flag.ContinueOnError)

	configPath := fs.String("config", "", "path to YAML config file")
	fs.StringVar(configPath, "c", "", "path to YAML config file (shorthand)")
	port := fs.String("port", "", "HTTP listen port")
	fs.StringVar(port, "p", "", "HTTP listen port (shorthand)")
	dsn := fs.String("dsn", "", "PostgreSQL DSN")
	natsURL := fs.String("nats-url", "", "NATS server URL")
	logLevel := fs.String("log-level", "", "log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return CLIFlags{}, err
	}

	var flags CLIFlags
	if *configPath != "" {
		flags.ConfigPath = configPath
	}
	if *port != "" {
		flags.Port = port
	}
	if *dsn != "" {
		flags.DSN = dsn
	}
	if *natsURL != "" {
		flags.NatsURL = natsURL
	}
	if *logLevel != "" {
		flags.LogLevel = logLevel
	}
	return flags, nil
}

// LoadWithCLI loads configuration with CLI flags applied on top. It returns
// the resolved YAML path for logging.
func LoadWithCLI(flags CLIFlags) (*Config, string, error) {
	yamlPath := DefaultConfigFile
	if flags.ConfigPath != nil {
		yamlPath = *flags.ConfigPath
	}

	cfg, err := LoadFrom(yamlPath)
	if err != nil {
		return nil, "", err
	}

	applyCLI(cfg, flags)

	if err := validate(cfg); err != nil {
		return nil, "", err
	}
	return cfg, yamlPath, nil
}

func applyCLI(cfg *Config, flags CLIFlags) {
	if flags.Port != nil {
		cfg.Server.Port = *flags.Port
	}
	if flags.DSN != nil {
		cfg.Postgres.DSN = *flags.DSN
	}
	if flags.NatsURL != nil {
		cfg.NATS.URL = *flags.NatsURL
	}
	if flags.LogLevel != nil {
		cfg.Logging.Level = *flags.LogLevel
	}
}

package util

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/relay/lib/forward"
	"github.com/ValentinKolb/relay/rpc/client"
	"github.com/ValentinKolb/relay/rpc/common"
	"github.com/ValentinKolb/relay/rpc/framing"
	"github.com/ValentinKolb/relay/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Version of the relay binary
	Version = "1.0.0"

	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables (RELAY_ENDPOINT, ...)
	EnvPrefix = "relay"

	// DefaultForwardCommands are the subcommands sent to a running instance
	DefaultForwardCommands = "start,ping,echo,stats,stop"
)

var Logger = logger.GetLogger(common.LoggerCLI)

// WrapString wraps help text at Wrap characters. Explicit line breaks are
// kept, so a usage can list its options on lines of their own.
func WrapString(text string) string {
	var sb strings.Builder

	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			sb.WriteByte('\n')
		}

		width := 0
		for _, word := range strings.Fields(line) {
			switch {
			case width == 0:
			case width+1+len(word) > Wrap:
				sb.WriteByte('\n')
				width = 0
			default:
				sb.WriteByte(' ')
				width++
			}
			sb.WriteString(word)
			width += len(word)
		}
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// Flags & Config
// --------------------------------------------------------------------------

// SetupConnectionFlags adds the flags shared by the instance and its clients
func SetupConnectionFlags(cmd *cobra.Command) {
	key := "endpoint"
	cmd.PersistentFlags().String(key, common.DefaultEndpoint(), WrapString("Path of the Unix socket the instance listens on. Server and clients must use the identical path"))

	key = "framing"
	cmd.PersistentFlags().String(key, "line", WrapString("How messages are delimited on the socket (line, stream). Server and clients must agree"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, common.DefaultTimeoutSecond, WrapString("Timeout in seconds for sending a command to the running instance (0 = none)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// InitConfig loads .env files and environment variables. Defaults are
// registered with viper as well, so the configuration is usable before
// cobra has parsed any flags.
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("endpoint", common.DefaultEndpoint())
	viper.SetDefault("framing", "line")
	viper.SetDefault("timeout", common.DefaultTimeoutSecond)
	viper.SetDefault("log-level", "warn")
	viper.SetDefault("forward-commands", DefaultForwardCommands)
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// InitLogging sets up the loggers with the configured level
func InitLogging() error {
	return common.InitLoggers(viper.GetString("log-level"))
}

// GetClientConfig reads the client configuration from viper
func GetClientConfig() (*common.ClientConfig, error) {
	strategy, err := framing.ParseStrategy(viper.GetString("framing"))
	if err != nil {
		return nil, err
	}

	return &common.ClientConfig{
		Endpoint:      viper.GetString("endpoint"),
		Framing:       strategy,
		TimeoutSecond: viper.GetInt("timeout"),
	}, nil
}

// GetServerConfig reads the server configuration from viper
func GetServerConfig() (*common.ServerConfig, error) {
	strategy, err := framing.ParseStrategy(viper.GetString("framing"))
	if err != nil {
		return nil, err
	}

	conf := &common.ServerConfig{
		Endpoint:          viper.GetString("endpoint"),
		Framing:           strategy,
		BufferSize:        viper.GetInt("buffer-size"),
		MaxMessageSize:    viper.GetInt("max-message-size"),
		ReadTimeoutSecond: viper.GetInt64("read-timeout"),
		StrictAccept:      viper.GetBool("strict-accept"),
		SocketPermissions: viper.GetString("socket-permissions"),
		LogLevel:          viper.GetString("log-level"),
	}

	if conf.BufferSize < 0 || conf.MaxMessageSize < 0 || conf.ReadTimeoutSecond < 0 {
		return nil, fmt.Errorf("buffer-size, max-message-size and read-timeout must not be negative")
	}
	if _, _, err := conf.FileMode(); err != nil {
		return nil, err
	}

	return conf, nil
}

// GetForwardCommands returns the subcommands that are forwarded to a running instance
func GetForwardCommands() forward.CommandSet {
	return forward.ParseCommandSet(viper.GetString("forward-commands"))
}

// NewClient creates a relay client from the current configuration
func NewClient() (*client.Client, error) {
	conf, err := GetClientConfig()
	if err != nil {
		return nil, err
	}
	return client.New(*conf, unix.NewClientConnector()), nil
}

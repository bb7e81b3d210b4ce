// Package config loads the settings of the relay and client binaries.
// Values come from the defaults, then an optional YAML file given with --config,
// then the remaining command-line flags.
package config

import (
	"errors"
	"fmt"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
	"io"
	"net"
	"os"
	"proxichat/core/lib/relay"
	"strconv"
	"time"
)

var ErrInvalid = errors.New("invalid configuration")

// Log levels understood by the logger.
var logLevels = map[string]bool{"debug": true, "info": true, "error": true}

// Mixers selectable for the relay.
const (
	MixerSum       = "sum"
	MixerProximity = "proximity"
)

// Relay configures cmd/server.
type Relay struct {
	Host             string        `yaml:"host" usage:"address to listen on"`
	Port             int           `yaml:"port" usage:"port to listen on"`
	TickInterval     time.Duration `yaml:"tick_interval" usage:"time between two ticks"`
	MaxConnections   int           `yaml:"max_connections" usage:"maximum number of active sessions, 0 means no limit"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" usage:"time allowed for the secure handshake"`
	Roster           string        `yaml:"roster" usage:"YAML file with the initial participants"`
	FeedAddress      string        `yaml:"feed_address" usage:"address of the roster update WebSocket, empty disables it"`
	FeedToken        string        `yaml:"feed_token" usage:"bearer token required by the roster feed"`
	FeedConnections  int           `yaml:"feed_connections" usage:"maximum number of open roster feed connections"`
	AllowAll         bool          `yaml:"allow_all" usage:"accept every identity instead of checking the roster"`
	Mixer            string        `yaml:"mixer" usage:"audio mixer, sum or proximity"`
	Range            float64       `yaml:"range" usage:"distance at which the proximity mixer silences a voice"`
	KeyFile          string        `yaml:"key_file" usage:"private key file, enables encryption"`
	GenerateKey      bool          `yaml:"-" usage:"write a new private key to the key file and exit"`
	LogLevel         string        `yaml:"log_level" usage:"debug, info or error"`
}

func DefaultRelay() Relay {
	return Relay{
		Port:             relay.DefaultPort,
		TickInterval:     10 * time.Millisecond,
		HandshakeTimeout: relay.DefaultHandshakeTimeout,
		FeedConnections:  4,
		Mixer:            MixerSum,
		Range:            50,
		LogLevel:         "info",
	}
}

func (r *Relay) Validate() error {
	if r.GenerateKey {
		if r.KeyFile == "" {
			return fmt.Errorf("%w: generate-key requires a key file", ErrInvalid)
		}
		return nil
	}
	if r.Port <= 0 || r.Port > 65535 {
		return fmt.Errorf("%w: port %v out of range", ErrInvalid, r.Port)
	}
	if r.TickInterval <= 0 {
		return fmt.Errorf("%w: tick interval must be positive", ErrInvalid)
	}
	if r.MaxConnections < 0 {
		return fmt.Errorf("%w: max connections may not be negative", ErrInvalid)
	}
	if r.FeedConnections <= 0 {
		return fmt.Errorf("%w: feed connections must be positive", ErrInvalid)
	}
	if r.Mixer != MixerSum && r.Mixer != MixerProximity {
		return fmt.Errorf("%w: unknown mixer %q", ErrInvalid, r.Mixer)
	}
	if r.Mixer == MixerProximity && r.Range <= 0 {
		return fmt.Errorf("%w: range must be positive", ErrInvalid)
	}
	if !r.AllowAll && r.Roster == "" && r.FeedAddress == "" {
		return fmt.Errorf("%w: a roster or roster feed is required unless allow-all is set", ErrInvalid)
	}
	if !logLevels[r.LogLevel] {
		return fmt.Errorf("%w: unknown log level %q", ErrInvalid, r.LogLevel)
	}
	return nil
}

// Address is the host and port to listen on.
func (r *Relay) Address() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// Client configures cmd/client.
type Client struct {
	Relay         string        `yaml:"relay" usage:"relay address as host:port"`
	Identity      int64         `yaml:"identity" usage:"participant identity"`
	RelayIdentity string        `yaml:"relay_identity" usage:"hex public key of the relay, enables encryption"`
	TickInterval  time.Duration `yaml:"tick_interval" usage:"time between two ticks"`
	DialTimeout   time.Duration `yaml:"dial_timeout" usage:"time allowed to connect"`
	MaxBacklog    int           `yaml:"max_backlog" usage:"maximum number of captured samples waiting to be sent"`
	LogLevel      string        `yaml:"log_level" usage:"debug, info or error"`
}

func DefaultClient() Client {
	return Client{
		Relay:        fmt.Sprintf("localhost:%v", relay.DefaultPort),
		TickInterval: 10 * time.Millisecond,
		DialTimeout:  5 * time.Second,
		MaxBacklog:   48000,
		LogLevel:     "error",
	}
}

func (c *Client) Validate() error {
	if c.Relay == "" {
		return fmt.Errorf("%w: relay address is required", ErrInvalid)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("%w: tick interval must be positive", ErrInvalid)
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("%w: dial timeout must be positive", ErrInvalid)
	}
	if c.MaxBacklog < 0 {
		return fmt.Errorf("%w: max backlog may not be negative", ErrInvalid)
	}
	if !logLevels[c.LogLevel] {
		return fmt.Errorf("%w: unknown log level %q", ErrInvalid, c.LogLevel)
	}
	return nil
}

// Validator is implemented by Relay and Client.
type Validator interface {
	Validate() error
}

// Load fills params, which must point to a Relay or Client holding its defaults,
// from the file named by --config and then from args, and validates the result.
// pflag.ErrHelp is returned when help was requested.
func Load(name string, params Validator, args []string, output io.Writer) error {
	path, err := configPath(name, args)
	if err != nil {
		return err
	}
	if path != "" {
		if err = decodeFile(path, params); err != nil {
			return err
		}
	}

	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.SetOutput(output)
	flags.String("config", path, "YAML configuration file")
	if err = bindFlags(params, flags); err != nil {
		return err
	}
	if err = flags.Parse(args); err != nil {
		return err
	}
	return params.Validate()
}

// configPath finds --config without touching any other flag.
func configPath(name string, args []string) (path string, err error) {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.ParseErrorsWhitelist.UnknownFlags = true
	flags.Usage = func() {}
	flags.SetOutput(io.Discard)
	flags.StringVar(&path, "config", "", "")
	err = flags.Parse(args)
	if errors.Is(err, pflag.ErrHelp) {
		err = nil
	}
	return
}

func decodeFile(path string, params interface{}) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err = decoder.Decode(params); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v: %v", ErrInvalid, path, err)
	}
	return nil
}

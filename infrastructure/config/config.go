// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/btcsuite/btcutil"
	"github.com/btcsuite/go-socks/socks"
	"github.com/google/uuid"
	"github.com/gxcnet/gxcpeerd/domain/dagconfig"
	"github.com/gxcnet/gxcpeerd/infrastructure/logger"
	"github.com/gxcnet/gxcpeerd/util/network"
	"github.com/gxcnet/gxcpeerd/version"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

const (
	defaultConfigFilename = "gxcpeerd.conf"
	defaultDataDirname    = "data"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "gxcpeerd.log"
	defaultErrLogFilename = "gxcpeerd_err.log"
	defaultMaxPeers       = 50
	defaultRPCTimeout     = 30 * time.Second
	nodeIDPrefix          = "gxc-peer-"

	// DefaultConnectTimeout is the default connection timeout when dialing
	DefaultConnectTimeout = time.Second * 30
)

// Subcommands of gxcpeerd. StartSubCmd runs when none is given.
const (
	StartSubCmd      = "start"
	SyncSubCmd       = "sync"
	VerifySubCmd     = "verify"
	StatsSubCmd      = "stats"
	InitConfigSubCmd = "initconfig"
	ConnectSubCmd    = "connect"
)

var (
	// DefaultAppDir is the default home directory for gxcpeerd.
	DefaultAppDir = btcutil.AppDataDir("gxcpeerd", false)

	defaultConfigFile = filepath.Join(DefaultAppDir, defaultConfigFilename)
	defaultLogDir     = filepath.Join(DefaultAppDir, defaultLogDirname)
)

// Flags defines the configuration options for gxcpeerd.
//
// See loadConfig for details on the configuration load process.
type Flags struct {
	ShowVersion   bool          `short:"V" long:"version" description:"Display version information and exit" no-ini:"true"`
	ConfigFile    string        `short:"C" long:"configfile" description:"Path to configuration file" no-ini:"true"`
	AppDir        string        `short:"b" long:"appdir" description:"Directory to store data"`
	LogDir        string        `long:"logdir" description:"Directory to log output."`
	Listen        string        `long:"listen" description:"Interface/port to listen for peer connections (default all interfaces port: 18333, testnet: 18444)"`
	MaxPeers      int           `long:"maxpeers" description:"Max number of registered peers"`
	AddPeers      []string      `short:"a" long:"addpeer" description:"Add a peer to connect with at startup (default: the network's bootstrap peers)"`
	RPCURL        string        `long:"rpcurl" description:"URL of the upstream node's JSON-RPC endpoint (default http://localhost:8332, testnet: 18332)"`
	RPCTimeout    time.Duration `long:"rpctimeout" description:"Timeout of a single upstream JSON-RPC call. Valid time units are {s, m, h}"`
	NodeID        string        `long:"nodeid" description:"Node id announced in the handshake (default gxc-peer-<random uuid>)"`
	Proxy         string        `long:"proxy" description:"Connect to peers via SOCKS5 proxy (eg. 127.0.0.1:9050)"`
	ProxyUser     string        `long:"proxyuser" description:"Username for proxy server"`
	ProxyPass     string        `long:"proxypass" default-mask:"-" description:"Password for proxy server"`
	NTPServer     string        `long:"ntpserver" description:"Correct the clock used for block timestamp checks against this NTP server"`
	MetricsListen string        `long:"metricslisten" description:"Serve prometheus metrics on this interface/port (eg. 127.0.0.1:9100)"`
	DebugLevel    string        `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	NoSync        bool          `long:"nosync" description:"Do not synchronize from the upstream node on start"`
	RelayUpstream bool          `long:"relayupstream" description:"Submit blocks received from peers to the upstream node"`
	NetworkFlags
}

// ServiceOptions defines the configuration options for the Windows service.
type ServiceOptions struct {
	ServiceCommand string `short:"s" long:"service" description:"Service command {install, remove, start, stop}"`
}

type startCommand struct{}

type syncCommand struct{}

type verifyCommand struct{}

type statsCommand struct{}

type initConfigCommand struct{}

type connectCommand struct {
	Args struct {
		Address string `positional-arg-name:"address" description:"host:port of the peer" required:"true"`
	} `positional-args:"yes"`
}

// Config defines the configuration options for gxcpeerd.
//
// See loadConfig for details on the configuration load process.
type Config struct {
	*Flags
	ServiceOptions *ServiceOptions

	// Command is the subcommand to run
	Command string

	// ConnectAddress is the peer given to the connect subcommand
	ConnectAddress string

	// DataDir is AppDir namespaced by the active network
	DataDir string

	Dial func(network, address string, timeout time.Duration) (net.Conn, error)
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(DefaultAppDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but they variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

func defaultFlags() *Flags {
	return &Flags{
		ConfigFile: defaultConfigFile,
		AppDir:     DefaultAppDir,
		LogDir:     defaultLogDir,
		DebugLevel: defaultLogLevel,
		MaxPeers:   defaultMaxPeers,
		RPCTimeout: defaultRPCTimeout,
	}
}

// DefaultConfig returns the default gxcpeerd configuration on mainnet,
// without reading the command line or a configuration file.
func DefaultConfig() *Config {
	config := &Config{Flags: defaultFlags(), ServiceOptions: &ServiceOptions{}, Command: StartSubCmd}
	config.ActiveNetParams = &dagconfig.MainnetParams
	config.Listen = net.JoinHostPort("", config.ActiveNetParams.DefaultPort)
	config.NodeID = newNodeID()
	config.DataDir = filepath.Join(config.AppDir, defaultDataDirname, config.ActiveNetParams.Name)
	config.Dial = net.DialTimeout
	return config
}

type commands struct {
	connect *connectCommand
}

// newConfigParser returns a new command line flags parser.
func newConfigParser(cfgFlags *Flags, serviceOpts *ServiceOptions, options flags.Options) (*flags.Parser, *commands) {
	parser := flags.NewParser(cfgFlags, options)
	parser.SubcommandsOptional = true
	if runtime.GOOS == "windows" {
		parser.AddGroup("Service Options", "Service Options", serviceOpts)
	}

	cmds := &commands{connect: &connectCommand{}}
	parser.AddCommand(StartSubCmd, "Run the peer node (default)",
		"Synchronizes from the upstream node, then listens for and connects to peers", &startCommand{})
	parser.AddCommand(SyncSubCmd, "Synchronize from the upstream node and exit",
		"Fetches every block the upstream node has beyond the local chain, validating each", &syncCommand{})
	parser.AddCommand(VerifySubCmd, "Verify the stored chain and exit",
		"Re-validates every stored block in height order", &verifyCommand{})
	parser.AddCommand(StatsSubCmd, "Print chain statistics and exit",
		"Prints the block count, transaction count and average difficulty of the stored chain", &statsCommand{})
	parser.AddCommand(InitConfigSubCmd, "Write a configuration file with the current options and exit",
		"Writes the configuration file named by --configfile", &initConfigCommand{})
	parser.AddCommand(ConnectSubCmd, "Run the peer node and connect to the given peer",
		"Same as start, with the given peer dialed in addition to --addpeer", cmds.connect)
	return parser, cmds
}

// LoadConfig initializes and parses the config using a config file and command
// line options, then initializes logging.
func LoadConfig() (*Config, error) {
	loaded, err := loadConfig(os.Args[1:])
	if err != nil {
		return nil, err
	}
	cfg := loaded.Config

	if cfg.Command == InitConfigSubCmd {
		return cfg, nil
	}

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", logger.SupportedSubsystems())
		os.Exit(0)
	}

	// Initialize log rotation. After log rotation has been initialized, the
	// logger variables may be used.
	logger.InitLog(filepath.Join(cfg.LogDir, defaultLogFilename), filepath.Join(cfg.LogDir, defaultErrLogFilename))

	// Parse, validate, and set debug log level(s).
	err = logger.ParseAndSetLogLevels(cfg.DebugLevel)
	if err != nil {
		err := errors.Errorf("loadConfig: %s", err.Error())
		fmt.Fprintln(os.Stderr, err)
		return nil, err
	}

	if loaded.configFileError != nil {
		log.Warnf("%s", loaded.configFileError)
	}
	return cfg, nil
}

// loadedConfig carries the config file error out of loadConfig so that it
// is only reported once logging is up.
type loadedConfig struct {
	*Config
	configFileError error
}

// loadConfig parses args on top of the configuration file.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// The above results in gxcpeerd functioning properly without any config settings
// while still allowing the user to override settings with config files and
// command line options. Command line options always take precedence.
func loadConfig(args []string) (*loadedConfig, error) {
	cfgFlags := defaultFlags()
	serviceOpts := &ServiceOptions{}

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified. Any errors aside from the
	// help message error can be ignored here since they will be caught by
	// the final parse below.
	preCfg := *cfgFlags
	preParser, _ := newConfigParser(&preCfg, &ServiceOptions{}, flags.HelpFlag)
	_, err := preParser.ParseArgs(args)
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
			return nil, err
		}
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", version.Version())
		os.Exit(0)
	}

	// Load additional config from file.
	var configFileError error
	parser, cmds := newConfigParser(cfgFlags, serviceOpts, flags.Default)
	cfg := &Config{Flags: cfgFlags, ServiceOptions: serviceOpts}
	err = flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
	if err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			fmt.Fprintf(os.Stderr, "Error parsing config file: %s\n", err)
			fmt.Fprintln(os.Stderr, usageMessage)
			return nil, err
		}
		configFileError = err
	}

	// Parse command line options again to ensure they take precedence.
	_, err = parser.ParseArgs(args)
	if err != nil {
		var flagsErr *flags.Error
		if !errors.As(err, &flagsErr) || flagsErr.Type != flags.ErrHelp {
			fmt.Fprintln(os.Stderr, usageMessage)
		}
		return nil, err
	}

	cfg.Command = StartSubCmd
	if parser.Command.Active != nil {
		cfg.Command = parser.Command.Active.Name
	}
	if cfg.Command == ConnectSubCmd {
		cfg.ConnectAddress = cmds.connect.Args.Address
	}

	// initconfig writes the options as given, so it skips the
	// resolution of defaults below.
	if cfg.Command == InitConfigSubCmd {
		err := writeConfigFile(parser, cfg.ConfigFile)
		if err != nil {
			return nil, err
		}
		return &loadedConfig{Config: cfg}, nil
	}

	err = cfg.resolve()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, err
	}

	return &loadedConfig{Config: cfg, configFileError: configFileError}, nil
}

// resolve validates the parsed flags and fills in the values that depend on
// the active network.
func (cfg *Config) resolve() error {
	funcName := "loadConfig"

	err := cfg.ResolveNetwork(nil)
	if err != nil {
		return err
	}
	params := cfg.NetParams()

	// Append the network type to the data directory so it is "namespaced"
	// per network. All data is specific to a network, so namespacing the
	// data directory means each individual piece of serialized data does
	// not have to worry about changing names per network and such.
	cfg.AppDir = cleanAndExpandPath(cfg.AppDir)
	cfg.DataDir = filepath.Join(cfg.AppDir, defaultDataDirname, params.Name)

	// The log directory follows the app directory unless it was given
	// explicitly, and is namespaced per network in the same fashion.
	if cfg.LogDir == defaultLogDir {
		cfg.LogDir = filepath.Join(cfg.AppDir, defaultLogDirname)
	}
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	cfg.LogDir = filepath.Join(cfg.LogDir, params.Name)

	if cfg.MaxPeers <= 0 {
		return errors.Errorf("%s: The maxpeers option must be greater than 0 -- parsed [%d]",
			funcName, cfg.MaxPeers)
	}

	if cfg.RPCTimeout < time.Second {
		return errors.Errorf("%s: The rpctimeout option may not be less than 1s -- parsed [%s]",
			funcName, cfg.RPCTimeout)
	}

	// Add the default listener if none was specified. The default listener
	// is all addresses on the listen port for the network we are to
	// connect to.
	if cfg.Listen == "" {
		cfg.Listen = net.JoinHostPort("", params.DefaultPort)
	}
	cfg.Listen, err = params.NormalizePeerAddress(cfg.Listen)
	if err != nil {
		return errors.Wrapf(err, "%s: invalid listen address", funcName)
	}

	// Add default port to all added peer addresses if needed and remove
	// duplicate addresses. The network's bootstrap peers are used when
	// none are given.
	if len(cfg.AddPeers) == 0 {
		cfg.AddPeers = params.DefaultBootstrapPeers
	}
	cfg.AddPeers, err = network.NormalizeAddresses(cfg.AddPeers, params.DefaultPort)
	if err != nil {
		return errors.Wrapf(err, "%s: invalid peer address", funcName)
	}

	if cfg.ConnectAddress != "" {
		cfg.ConnectAddress, err = params.NormalizePeerAddress(cfg.ConnectAddress)
		if err != nil {
			return errors.Wrapf(err, "%s: invalid address to connect", funcName)
		}
	}

	if cfg.RPCURL == "" {
		cfg.RPCURL = "http://" + net.JoinHostPort("localhost", params.RPCPort)
	}

	if cfg.NodeID == "" {
		cfg.NodeID = newNodeID()
	}

	if cfg.MetricsListen != "" {
		_, _, err := net.SplitHostPort(cfg.MetricsListen)
		if err != nil {
			return errors.Errorf("%s: Metrics listen address '%s' is invalid: %s",
				funcName, cfg.MetricsListen, err)
		}
	}

	// Setup the dial function depending on the specified options. The
	// default is to use the standard net.DialTimeout function. When a
	// proxy is specified, the dial function is set to the proxy specific
	// dial function.
	cfg.Dial = net.DialTimeout
	if cfg.Proxy != "" {
		_, _, err := net.SplitHostPort(cfg.Proxy)
		if err != nil {
			return errors.Errorf("%s: Proxy address '%s' is invalid: %s", funcName, cfg.Proxy, err)
		}

		proxy := &socks.Proxy{
			Addr:     cfg.Proxy,
			Username: cfg.ProxyUser,
			Password: cfg.ProxyPass,
		}
		cfg.Dial = proxy.DialTimeout
	}

	return nil
}

func newNodeID() string {
	return nodeIDPrefix + uuid.NewString()
}

// writeConfigFile writes the options currently held by parser to path as
// an INI file.
func writeConfigFile(parser *flags.Parser, path string) error {
	err := os.MkdirAll(filepath.Dir(path), 0700)
	if err != nil {
		return errors.WithStack(err)
	}
	err = flags.NewIniParser(parser).WriteFile(path, flags.IniIncludeComments|flags.IniCommentDefaults)
	if err != nil {
		return errors.Wrapf(err, "failed to write config file %s", path)
	}
	return nil
}

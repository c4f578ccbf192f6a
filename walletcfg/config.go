// Package walletcfg defines the on-disk/command-line configuration surface
// for a walletd process: network selection, the provider endpoint, the
// wallet's seed and data directory, and logging/metrics knobs. It is parsed
// with go-flags the same way lnd's own top-level config is, then resolved
// into the concrete values (chaincfg.Params, a decoded seed) the rest of
// the module's constructors expect.
package walletcfg

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/jessevdk/go-flags"

	"github.com/electrumgo/walletcore/walleterr"
)

// seedLength is the byte length of a generated BIP32 master seed (512
// bits, the BIP39 maximum entropy output size).
const seedLength = 64

const (
	defaultDataDirname    = "data"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "walletd.log"
	defaultGapLimit       = 20
	defaultMaxWatchPerAcc = 10
	defaultMinBlockConfig = 1
	defaultRPCDialTimeout = 10 * time.Second
	defaultRateLimit      = 20
	defaultRateBurst      = 40
	defaultMetricsAddr    = "127.0.0.1:9332"
)

// Config is the full set of options walletd accepts on the command line;
// no config file is read. Struct tags follow go-flags convention: long
// flag name plus a human description for -h output.
type Config struct {
	DataDir string `long:"datadir" description:"Directory to store wallet state in"`
	LogDir  string `long:"logdir" description:"Directory to write rotated log files to"`
	Network string `long:"network" description:"Network to operate on" choice:"mainnet" choice:"testnet" choice:"simnet" choice:"regtest"`

	SeedHex string `long:"seedhex" description:"Hex-encoded BIP32 master seed. Generated and persisted to datadir on first run if empty"`

	RPCHost        string        `long:"rpchost" description:"host:port of the Electrum-style JSON-RPC provider"`
	RPCDialTimeout time.Duration `long:"rpcdialtimeout" description:"Timeout for the initial provider connection"`
	RateLimit      float64       `long:"ratelimit" description:"Maximum outbound provider requests per second"`
	RateBurst      int           `long:"rateburst" description:"Burst allowance above ratelimit"`

	GapLimit        uint32 `long:"gaplimit" description:"Consecutive unused addresses scanned per chain before stopping"`
	MaxWatchPerAcct int    `long:"maxwatch" description:"Maximum script hashes kept subscribed per chain"`
	MinBlockConfirm int64  `long:"minblockconfirm" description:"Confirmation depth at which a mined output is no longer just pending"`

	DebugLevel string `long:"debuglevel" description:"Debug output level {trace, debug, info, warn, error, critical}; trace additionally dumps the final balance struct. Subsystem log levels are not changed by this option"`

	MetricsAddr string `long:"metricsaddr" description:"host:port to serve Prometheus metrics on; empty disables the listener"`

	// NetParams and Seed are resolved by Load after flag parsing; they
	// carry no struct tag so go-flags does not try to treat them as
	// options.
	NetParams *chaincfg.Params
	Seed      []byte
}

// DefaultConfig returns a Config populated with walletd's defaults, before
// command-line parsing overrides them.
func DefaultConfig() *Config {
	dataDir := defaultAppDataDir()
	return &Config{
		DataDir:         dataDir,
		LogDir:          filepath.Join(dataDir, defaultLogDirname),
		Network:         "mainnet",
		RPCDialTimeout:  defaultRPCDialTimeout,
		RateLimit:       defaultRateLimit,
		RateBurst:       defaultRateBurst,
		GapLimit:        defaultGapLimit,
		MaxWatchPerAcct: defaultMaxWatchPerAcc,
		MinBlockConfirm: defaultMinBlockConfig,
		DebugLevel:      "info",
		MetricsAddr:     defaultMetricsAddr,
	}
}

// Load parses args (typically os.Args[1:]) over DefaultConfig, resolves the
// network into concrete chaincfg.Params, and loads or generates the wallet
// seed. It creates DataDir (mode 0700) if it does not already exist.
func Load(args []string) (*Config, error) {
	cfg := DefaultConfig()

	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	params, err := networkParams(cfg.Network)
	if err != nil {
		return nil, err
	}
	cfg.NetParams = params

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, walleterr.Wrap(walleterr.NotReady, err, "creating data directory %s", cfg.DataDir)
	}

	seed, err := resolveSeed(cfg)
	if err != nil {
		return nil, err
	}
	cfg.Seed = seed

	return cfg, nil
}

func networkParams(network string) (*chaincfg.Params, error) {
	switch network {
	case "", "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet":
		return &chaincfg.TestNet3Params, nil
	case "simnet":
		return &chaincfg.SimNetParams, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, walleterr.New(walleterr.InvalidNetwork, "unknown network %q", network)
	}
}

// resolveSeed decodes cfg.SeedHex if present, otherwise reads the
// previously generated seed file out of DataDir, or creates one via
// crypto/rand the first time walletd runs against a fresh DataDir.
func resolveSeed(cfg *Config) ([]byte, error) {
	if cfg.SeedHex != "" {
		seed, err := hex.DecodeString(cfg.SeedHex)
		if err != nil {
			return nil, walleterr.Wrap(walleterr.NotReady, err, "decoding seedhex")
		}
		return seed, nil
	}

	seedPath := filepath.Join(cfg.DataDir, "seed.hex")
	if raw, err := os.ReadFile(seedPath); err == nil {
		seed, err := hex.DecodeString(string(raw))
		if err != nil {
			return nil, walleterr.Wrap(walleterr.NotReady, err, "decoding persisted seed at %s", seedPath)
		}
		return seed, nil
	} else if !os.IsNotExist(err) {
		return nil, walleterr.Wrap(walleterr.NotReady, err, "reading persisted seed at %s", seedPath)
	}

	seed, err := newRandomSeed()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(seedPath, []byte(hex.EncodeToString(seed)), 0o600); err != nil {
		return nil, walleterr.Wrap(walleterr.NotReady, err, "persisting generated seed to %s", seedPath)
	}
	return seed, nil
}

func newRandomSeed() ([]byte, error) {
	seed := make([]byte, seedLength)
	if _, err := rand.Read(seed); err != nil {
		return nil, walleterr.Wrap(walleterr.NotReady, err, "generating wallet seed")
	}
	return seed, nil
}

func defaultAppDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultDataDirname
	}
	return filepath.Join(home, ".walletd", defaultDataDirname)
}

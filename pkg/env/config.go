// Package env assembles a storage stack from environment variables,
// command line flags and an optional JSONC config file.
package env

import (
	"encoding/json"
	"flag"
	"os"
	"strconv"
	"time"
)

// Media names accepted by Config.Media.
const (
	MediaEEPROM = "eeprom"
	MediaFlash  = "flash"
	MediaFRAM   = "fram"
	MediaFile   = "file"
	MediaRemote = "remote"
)

// Duration is a time.Duration written as "20ms" in config files.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler. Plain numbers are nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		var ns int64
		if err := json.Unmarshal(data, &ns); err != nil {
			return err
		}
		*d = Duration(ns)
		return nil
	}
	v, err := time.ParseDuration(text)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config selects and tunes the media and the store above it.
type Config struct {
	// DeviceID names this storage in telemetry topics.
	DeviceID string `json:"device"`
	// Media is one of eeprom, flash, fram, file or remote.
	Media string `json:"media"`
	// Size is the client address space in bytes.
	Size int `json:"size"`
	// Path is the image file for file media, or the peer address for
	// remote media: host:port for TCP, ws://host/path for websocket.
	Path string `json:"path"`

	WriteCycle Duration `json:"writeCycle"`
	PageSize   int      `json:"pageSize"`
	EraseTime  Duration `json:"eraseTime"`
	Endurance  uint32   `json:"endurance"`

	CacheIndex   int  `json:"cacheIndex"`
	CacheSize    int  `json:"cacheSize"`
	WriteThrough bool `json:"writeThrough"`
	Preload      bool `json:"preload"`
	MaxRetries   int  `json:"maxRetries"`
	BusyLimit    int  `json:"busyLimit"`

	// MQTTBrokerURL specifies the MQTT broker telemetry goes to.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL  string   `json:"mqtt"`
	ReportInterval Duration `json:"reportInterval"`
}

var (
	envConfig     Config
	defaultConfig Config
	configFile    string
)

func init() {
	envConfig = Config{
		DeviceID:       os.Getenv("NV_DEVICE"),
		Media:          MediaFRAM,
		Size:           1024,
		Path:           os.Getenv("NV_PATH"),
		MaxRetries:     8,
		MQTTBrokerURL:  os.Getenv("NV_MQTT_URL"),
		ReportInterval: Duration(time.Second),
	}
	if val := os.Getenv("NV_MEDIA"); val != "" {
		envConfig.Media = val
	}
	if val, err := strconv.Atoi(os.Getenv("NV_SIZE")); err == nil {
		envConfig.Size = val
	}
	if envConfig.DeviceID == "" {
		envConfig.DeviceID = MachineID()
	}
	configFile = os.Getenv("NV_CONFIG")
	defaultConfig = envConfig
}

func (c *Config) bindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.DeviceID, "id", c.DeviceID, "Device ID")
	fs.StringVar(&c.Media, "media", c.Media, "Media: eeprom, flash, fram, file, remote")
	fs.IntVar(&c.Size, "size", c.Size, "Address space in bytes")
	fs.StringVar(&c.Path, "path", c.Path, "Image file or remote address")
	fs.DurationVar((*time.Duration)(&c.WriteCycle), "write-cycle", time.Duration(c.WriteCycle), "EEPROM write cycle")
	fs.IntVar(&c.PageSize, "page-size", c.PageSize, "Flash page size")
	fs.DurationVar((*time.Duration)(&c.EraseTime), "erase-time", time.Duration(c.EraseTime), "Flash page erase time")
	fs.IntVar(&c.CacheIndex, "cache-index", c.CacheIndex, "First cached address, -1 disables the cache")
	fs.IntVar(&c.CacheSize, "cache-size", c.CacheSize, "Cached bytes, 0 caches to the end")
	fs.BoolVar(&c.WriteThrough, "write-through", c.WriteThrough, "Commit every write before returning")
	fs.BoolVar(&c.Preload, "preload", c.Preload, "Load the cache window on open")
	fs.IntVar(&c.BusyLimit, "busy-limit", c.BusyLimit, "Busy polls before reporting a stall, 0 is unlimited")
	fs.StringVar(&c.MQTTBrokerURL, "mqtt", c.MQTTBrokerURL, "MQTT broker URL")
	fs.DurationVar((*time.Duration)(&c.ReportInterval), "report-interval", time.Duration(c.ReportInterval), "Minimum interval between status reports")
}

// SetupFlags sets command line flags.
func SetupFlags() {
	defaultConfig.bindFlags(flag.CommandLine)
	flag.StringVar(&configFile, "config", configFile, "JSONC config file")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config from the environment, the config file if one
// is given, and the command line flags, in increasing precedence.
func NewConfig() (*Config, error) {
	if configFile == "" {
		conf := defaultConfig
		return &conf, nil
	}
	conf := envConfig
	if err := conf.LoadFile(configFile); err != nil {
		return nil, err
	}
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	conf.bindFlags(fs)
	var err error
	flag.Visit(func(f *flag.Flag) {
		if err == nil && fs.Lookup(f.Name) != nil {
			err = fs.Set(f.Name, f.Value.String())
		}
	})
	return &conf, err
}

package env

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robotalks/nv.go/pkg/mqtt"
	"github.com/robotalks/nv.go/pkg/nv"
	"github.com/robotalks/nv.go/pkg/nv/media/eeprom"
	"github.com/robotalks/nv.go/pkg/nv/media/file"
	"github.com/robotalks/nv.go/pkg/nv/media/flash"
	"github.com/robotalks/nv.go/pkg/nv/media/fram"
	"github.com/robotalks/nv.go/pkg/nv/media/remote"
)

// OpenBackend creates the configured media driver.
func (c *Config) OpenBackend() (nv.Backend, error) {
	switch c.Media {
	case MediaEEPROM:
		conf := eeprom.DefaultConfig()
		if c.WriteCycle > 0 {
			conf.WriteCycle = time.Duration(c.WriteCycle)
		}
		if c.Endurance > 0 {
			conf.Endurance = c.Endurance
		}
		return eeprom.New(conf), nil
	case MediaFlash:
		conf := flash.DefaultConfig()
		if c.PageSize > 0 {
			conf.PageSize = c.PageSize
		}
		if c.EraseTime > 0 {
			conf.EraseTime = time.Duration(c.EraseTime)
		}
		if c.Endurance > 0 {
			conf.Endurance = c.Endurance
		}
		return flash.New(conf), nil
	case MediaFRAM:
		return fram.New(), nil
	case MediaFile:
		if c.Path == "" {
			return nil, fmt.Errorf("file media requires a path")
		}
		return file.New(c.Path), nil
	case MediaRemote:
		switch {
		case c.Path == "":
			return nil, fmt.Errorf("remote media requires an address")
		case strings.HasPrefix(c.Path, "ws://"), strings.HasPrefix(c.Path, "wss://"):
			return remote.DialWebsocket(c.Path, "http://localhost/")
		case strings.HasPrefix(c.Path, "mqtt:"):
			return c.dialMQTT(strings.TrimPrefix(c.Path, "mqtt:"))
		default:
			return remote.Dial("tcp", c.Path)
		}
	}
	return nil, fmt.Errorf("unknown media %q", c.Media)
}

// MediaTopics returns the request and reply topics of the media served
// by device over MQTT.
func MediaTopics(device string) (req, rsp string) {
	return device + "/media/req", device + "/media/rsp"
}

type mqttConn struct {
	*mqtt.Stream
}

func (c mqttConn) Close() error {
	err := c.Stream.Close()
	c.Queue.Close()
	return err
}

func (c *Config) dialMQTT(peer string) (nv.Backend, error) {
	if peer == "" {
		return nil, fmt.Errorf("remote media over MQTT requires a peer device")
	}
	q, err := c.NewQueue()
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, fmt.Errorf("remote media over MQTT requires a broker URL")
	}
	req, rsp := MediaTopics(peer)
	return remote.New(mqttConn{mqtt.NewStream(q, rsp, req)}), nil
}

// StoreConfig derives the store tuning.
func (c *Config) StoreConfig() nv.Config {
	conf := nv.DefaultConfig()
	conf.CacheIndex = c.CacheIndex
	conf.CacheSize = c.CacheSize
	conf.WriteThrough = c.WriteThrough
	conf.Preload = c.Preload
	if c.MaxRetries > 0 {
		conf.MaxRetries = c.MaxRetries
	}
	conf.BusyLimit = c.BusyLimit
	if c.Media == MediaEEPROM && 2*time.Duration(c.WriteCycle) > conf.WriteThroughByteTime {
		conf.WriteThroughByteTime = 2 * time.Duration(c.WriteCycle)
	}
	return conf
}

// OpenStore opens the media and initializes a Store of Size bytes on it.
func (c *Config) OpenStore() (*nv.Store, error) {
	backend, err := c.OpenBackend()
	if err != nil {
		return nil, err
	}
	s := nv.New(backend, c.StoreConfig())
	if err := s.Init(c.Size); err != nil {
		s.Close()
		return nil, fmt.Errorf("init %s media: %w", c.Media, err)
	}
	return s, nil
}

// MustOpenStore opens the Store and fails on error.
func (c *Config) MustOpenStore() *nv.Store {
	s, err := c.OpenStore()
	if err != nil {
		log.Fatalln(err)
	}
	return s
}

// NewQueue connects to the configured MQTT broker, nil when none is set.
func (c *Config) NewQueue() (*mqtt.Queue, error) {
	if c.MQTTBrokerURL == "" {
		return nil, nil
	}
	q, err := mqtt.NewQueueFromURL(c.MQTTBrokerURL)
	if err != nil {
		return nil, fmt.Errorf("create MQTT queue error: %w", err)
	}
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect %s: %w", c.MQTTBrokerURL, token.Error())
	}
	return q, nil
}

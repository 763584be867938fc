package env

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/nv.go/pkg/nv"
	"github.com/robotalks/nv.go/pkg/nv/media/eeprom"
	"github.com/robotalks/nv.go/pkg/nv/media/file"
	"github.com/robotalks/nv.go/pkg/nv/media/flash"
	"github.com/robotalks/nv.go/pkg/nv/media/fram"
)

func TestConfigParse(t *testing.T) {
	conf := Config{Media: MediaFRAM, Size: 64, DeviceID: "dev"}
	require.NoError(t, conf.Parse([]byte(`{
		// emulated flash on the mount
		"media": "flash",
		"pageSize": 32,
		"eraseTime": "5ms",
		"writeThrough": true,
	}`)))
	require.Equal(t, MediaFlash, conf.Media)
	require.Equal(t, 32, conf.PageSize)
	require.Equal(t, Duration(5*time.Millisecond), conf.EraseTime)
	require.True(t, conf.WriteThrough)
	require.Equal(t, 64, conf.Size)
	require.Equal(t, "dev", conf.DeviceID)

	require.Error(t, conf.Parse([]byte(`{"medium": "flash"}`)))
	require.Error(t, conf.Parse([]byte(`{"eraseTime": "soon"}`)))
	require.NoError(t, conf.Parse([]byte(`{"writeCycle": 1000}`)))
	require.Equal(t, Duration(time.Microsecond), conf.WriteCycle)
}

func TestConfigLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nv.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{"size": 128, /* bytes */ "media": "eeprom"}`), 0644))
	var conf Config
	require.NoError(t, conf.LoadFile(path))
	require.Equal(t, 128, conf.Size)
	require.Equal(t, MediaEEPROM, conf.Media)

	require.Error(t, conf.LoadFile(filepath.Join(t.TempDir(), "missing.jsonc")))
}

func TestConfigOpenBackend(t *testing.T) {
	testCases := []struct {
		name  string
		conf  Config
		check func(t *testing.T, v interface{})
	}{
		{
			name: "eeprom",
			conf: Config{Media: MediaEEPROM},
			check: func(t *testing.T, v interface{}) {
				require.IsType(t, &eeprom.Device{}, v)
			},
		},
		{
			name: "flash",
			conf: Config{Media: MediaFlash, PageSize: 64},
			check: func(t *testing.T, v interface{}) {
				require.Equal(t, 64, v.(*flash.Device).BatchSize())
			},
		},
		{
			name: "fram",
			conf: Config{Media: MediaFRAM},
			check: func(t *testing.T, v interface{}) {
				require.IsType(t, &fram.Device{}, v)
			},
		},
		{
			name: "file",
			conf: Config{Media: MediaFile, Path: "nv.img"},
			check: func(t *testing.T, v interface{}) {
				require.Equal(t, "nv.img", v.(*file.Device).Path())
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := tc.conf.OpenBackend()
			require.NoError(t, err)
			tc.check(t, b)
		})
	}

	for _, conf := range []Config{
		{Media: "tape"},
		{Media: MediaFile},
		{Media: MediaRemote},
	} {
		_, err := conf.OpenBackend()
		require.Error(t, err, conf.Media)
	}
}

func TestConfigOpenStore(t *testing.T) {
	conf := Config{Media: MediaFRAM, Size: 32, CacheIndex: 8, CacheSize: 8, WriteThrough: true}
	s, err := conf.OpenStore()
	require.NoError(t, err)
	require.Equal(t, 32, s.Size())
	require.True(t, s.IsWriteThrough())
	require.NoError(t, s.WriteUint16(0, 7))
	require.True(t, s.Committed())
	require.True(t, s.Valid())
	require.NoError(t, s.Close())

	conf.CacheSize = 64
	_, err = conf.OpenStore()
	require.Error(t, err)
}

func TestConfigStoreConfig(t *testing.T) {
	testCases := []struct {
		name   string
		conf   Config
		expect time.Duration
	}{
		{"default", Config{Media: MediaFRAM}, nv.DefaultWriteThroughByteTime},
		{"fast eeprom", Config{Media: MediaEEPROM, WriteCycle: Duration(time.Millisecond)}, nv.DefaultWriteThroughByteTime},
		{"slow eeprom", Config{Media: MediaEEPROM, WriteCycle: Duration(20 * time.Millisecond)}, 40 * time.Millisecond},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, tc.conf.StoreConfig().WriteThroughByteTime)
		})
	}
}

func TestConfigQueue(t *testing.T) {
	var conf Config
	q, err := conf.NewQueue()
	require.NoError(t, err)
	require.Nil(t, q)
}

func TestMediaTopics(t *testing.T) {
	req, rsp := MediaTopics("dev1")
	require.Equal(t, "dev1/media/req", req)
	require.Equal(t, "dev1/media/rsp", rsp)

	_, err := (&Config{Media: MediaRemote, Path: "mqtt:dev1"}).OpenBackend()
	require.Error(t, err)
	_, err = (&Config{Media: MediaRemote, Path: "mqtt:"}).OpenBackend()
	require.Error(t, err)
}

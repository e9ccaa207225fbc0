// Package climate reads the optional temperature and humidity sensor
// through the kernel drivers exposed in sysfs: the IIO dht11 driver for
// DHT11 and DHT22 parts and the w1 bus for DS18B20 sensors.
package climate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Kind is the fitted sensor type, as stored in the tsn option.
type Kind int

const (
	KindNone Kind = iota
	// KindAM2320 is retired and reads as KindNone.
	KindAM2320
	KindDHT11
	KindDHT22
	KindDS18B20
)

func (k Kind) String() string {
	switch k {
	case KindDHT11:
		return "dht11"
	case KindDHT22:
		return "dht22"
	case KindDS18B20:
		return "ds18b20"
	case KindAM2320:
		return "am2320"
	}
	return "none"
}

// Supported reports whether k names a sensor that can be read.
func (k Kind) Supported() bool {
	return k == KindDHT11 || k == KindDHT22 || k == KindDS18B20
}

// Reading is one sensor sample. Humidity is only meaningful when
// HasHumidity is set.
type Reading struct {
	TempC       float64
	Humidity    float64
	HasHumidity bool
}

// Sensor returns the current climate reading.
type Sensor interface {
	Read() (Reading, error)
}

// ErrNoDevice is returned when no matching kernel device is present.
var ErrNoDevice = errors.New("climate: no sensor device found")

// DefaultRoot is the sysfs mount point.
const DefaultRoot = "/sys"

// Sysfs reads a sensor through sysfs below Root.
type Sysfs struct {
	Kind Kind
	Root string
}

// NewSysfs returns a reader for kind below the default sysfs root.
func NewSysfs(kind Kind) *Sysfs {
	return &Sysfs{Kind: kind, Root: DefaultRoot}
}

// Read samples the sensor. The DHT parts fail often on busy systems; the
// caller keeps its previous reading on error.
func (s *Sysfs) Read() (Reading, error) {
	switch s.Kind {
	case KindDHT11, KindDHT22:
		return s.readIIO()
	case KindDS18B20:
		return s.readW1()
	}
	return Reading{}, fmt.Errorf("climate: sensor %s not supported", s.Kind)
}

func (s *Sysfs) readIIO() (Reading, error) {
	dirs, err := filepath.Glob(filepath.Join(s.Root, "bus/iio/devices/iio:device*"))
	if err != nil {
		return Reading{}, err
	}
	for _, dir := range dirs {
		name, err := os.ReadFile(filepath.Join(dir, "name"))
		if err != nil || !strings.HasPrefix(strings.TrimSpace(string(name)), "dht11") {
			continue
		}
		temp, err := readMilli(filepath.Join(dir, "in_temp_input"))
		if err != nil {
			return Reading{}, err
		}
		humid, err := readMilli(filepath.Join(dir, "in_humidityrelative_input"))
		if err != nil {
			return Reading{}, err
		}
		return Reading{TempC: temp, Humidity: humid, HasHumidity: true}, nil
	}
	return Reading{}, ErrNoDevice
}

func (s *Sysfs) readW1() (Reading, error) {
	files, err := filepath.Glob(filepath.Join(s.Root, "bus/w1/devices/28-*/temperature"))
	if err != nil {
		return Reading{}, err
	}
	if len(files) == 0 {
		return Reading{}, ErrNoDevice
	}
	temp, err := readMilli(files[0])
	if err != nil {
		return Reading{}, err
	}
	return Reading{TempC: temp}, nil
}

// readMilli parses a sysfs attribute holding thousandths.
func readMilli(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("climate: %w", err)
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("climate: parse %s: %w", filepath.Base(path), err)
	}
	return float64(v) / 1000, nil
}

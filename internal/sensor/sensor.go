// Package sensor reads the room temperature.
//
// On the Pi the Sense HAT's HTS221 is exposed by the kernel's IIO driver
// (dtoverlay=rpi-sense), so the reading is a pair of sysfs files rather than
// an I2C conversation.
package sensor

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Thermometer reports the current temperature in degrees Celsius.
type Thermometer interface {
	Temperature() (float64, error)
}

// DefaultIIODevice is the usual sysfs path of the HTS221.
const DefaultIIODevice = "/sys/bus/iio/devices/iio:device0"

// IIOThermometer reads an IIO temperature channel:
// celsius = (in_temp_raw + in_temp_offset) * in_temp_scale / 1000.
type IIOThermometer struct {
	dir    string
	offset float64 // calibration added after conversion, e.g. CPU heat bleed
}

// NewIIOThermometer checks that dir exposes a temperature channel.
func NewIIOThermometer(dir string, offset float64) (*IIOThermometer, error) {
	if _, err := os.Stat(filepath.Join(dir, "in_temp_raw")); err != nil {
		return nil, fmt.Errorf("iio temperature channel: %w", err)
	}
	return &IIOThermometer{dir: dir, offset: offset}, nil
}

// Temperature returns the current reading.
func (t *IIOThermometer) Temperature() (float64, error) {
	raw, err := t.readFloat("in_temp_raw")
	if err != nil {
		return 0, err
	}
	scale, err := t.readFloat("in_temp_scale")
	if err != nil {
		return 0, err
	}
	// Offset is optional; the HTS221 driver exposes it, others may not.
	off, err := t.readFloat("in_temp_offset")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, err
	}

	return (raw+off)*scale/1000 + t.offset, nil
}

func (t *IIOThermometer) readFloat(name string) (float64, error) {
	b, err := os.ReadFile(filepath.Join(t.dir, name))
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", name, err)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return v, nil
}

// Round2 rounds to two decimals, the precision pushed to the relay and app.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// FakeThermometer returns a settable temperature.
type FakeThermometer struct {
	mu    sync.Mutex
	value float64
	err   error
	reads int
}

// NewFakeThermometer creates a FakeThermometer reading celsius.
func NewFakeThermometer(celsius float64) *FakeThermometer {
	return &FakeThermometer{value: celsius}
}

// Temperature returns the configured value or error.
func (f *FakeThermometer) Temperature() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.err != nil {
		return 0, f.err
	}
	return f.value, nil
}

// Set changes the reported value.
func (f *FakeThermometer) Set(celsius float64) {
	f.mu.Lock()
	f.value = celsius
	f.mu.Unlock()
}

// SetError makes subsequent reads fail. nil clears it.
func (f *FakeThermometer) SetError(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// Reads returns how many times Temperature was called.
func (f *FakeThermometer) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

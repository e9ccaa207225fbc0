package options

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

var (
	// ErrUnknownOption is returned for a name outside the schema.
	ErrUnknownOption = errors.New("unknown option")
	// ErrOutOfRange is returned when an integer exceeds its maximum or is negative.
	ErrOutOfRange = errors.New("option value out of range")
)

// Options is a full set of option values. The zero value is empty; use
// Defaults. Options is a value type, so assignment copies it.
type Options struct {
	ints [numKeys]int
	strs [numKeys]string
}

// Defaults returns every option at its schema default.
func Defaults() Options {
	var o Options
	for k, d := range defs {
		o.ints[k] = d.Int
		o.strs[k] = d.Str
	}
	return o
}

// Int returns an integer option.
func (o *Options) Int(k Key) int {
	return o.ints[k]
}

// Bool reports whether an integer option is non-zero.
func (o *Options) Bool(k Key) bool {
	return o.ints[k] != 0
}

// Str returns a string option.
func (o *Options) Str(k Key) string {
	return o.strs[k]
}

// SetInt validates and stores an integer option.
func (o *Options) SetInt(k Key, v int) error {
	d := k.Def()
	if !d.IsInt() {
		return fmt.Errorf("%s is not an integer option", d.Name)
	}
	if v < d.Min || v > d.Max {
		return fmt.Errorf("%s=%d (range %d-%d): %w", d.Name, v, d.Min, d.Max, ErrOutOfRange)
	}
	o.ints[k] = v
	return nil
}

// SetStr stores a string option. Line breaks are rejected since they would
// corrupt the file format.
func (o *Options) SetStr(k Key, v string) error {
	d := k.Def()
	if d.IsInt() {
		return fmt.Errorf("%s is not a string option", d.Name)
	}
	if strings.ContainsAny(v, "\r\n") {
		return fmt.Errorf("%s: line break in value", d.Name)
	}
	o.strs[k] = v
	return nil
}

// Set parses value for the named option.
func (o *Options) Set(name, value string) error {
	k, ok := Lookup(name)
	if !ok {
		return fmt.Errorf("%q: %w", name, ErrUnknownOption)
	}
	if !k.Def().IsInt() {
		return o.SetStr(k, value)
	}
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return o.SetInt(k, v)
}

// Value returns the option as an int or a string.
func (o *Options) Value(k Key) any {
	if k.Def().IsInt() {
		return o.ints[k]
	}
	return o.strs[k]
}

// Public returns every non-secret option keyed by name.
func (o *Options) Public() map[string]any {
	m := make(map[string]any, numKeys)
	for _, k := range Keys() {
		if k.Def().Secret {
			continue
		}
		m[k.String()] = o.Value(k)
	}
	return m
}

// Read applies key:value lines from r onto o. Unknown keys are skipped and
// scanning stops after one line more than the schema size. Integer values that
// fail to parse or exceed their maximum keep their current value.
func (o *Options) Read(r io.Reader) error {
	sc := bufio.NewScanner(r)
	lines := 0
	for sc.Scan() {
		lines++
		if lines > int(numKeys)+1 {
			break
		}
		name, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		err := o.Set(name, value)
		if errors.Is(err, ErrUnknownOption) {
			continue
		}
		if err != nil {
			log.Warn().Err(err).Str("option", name).Msg("ignoring stored option")
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read options: %w", err)
	}
	return nil
}

// WriteTo writes every option as a key:value line in schema order.
func (o *Options) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for _, k := range Keys() {
		c, err := fmt.Fprintf(bw, "%s:%v\n", k, o.Value(k))
		n += int64(c)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

// File persists options at a path.
type File struct {
	path string
}

// NewFile returns a File for path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Load reads the file over the defaults.
func (f *File) Load() (Options, error) {
	o := Defaults()
	fh, err := os.Open(f.path)
	if err != nil {
		return o, fmt.Errorf("open options: %w", err)
	}
	defer fh.Close()
	if err := o.Read(fh); err != nil {
		return o, err
	}
	return o, nil
}

// Save rewrites the whole file.
func (f *File) Save(o Options) error {
	tmp := f.path + ".tmp"
	fh, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create options: %w", err)
	}
	if _, err := o.WriteTo(fh); err != nil {
		fh.Close()
		os.Remove(tmp)
		return fmt.Errorf("write options: %w", err)
	}
	if err := fh.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close options: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace options: %w", err)
	}
	return nil
}

// Setup loads the options, creating the file with defaults when missing and
// re-saving when the stored version differs from Version.
func (f *File) Setup() (Options, error) {
	o, err := f.Load()
	if errors.Is(err, os.ErrNotExist) {
		log.Info().Str("path", f.path).Msg("creating options file with defaults")
		o = Defaults()
		return o, f.Save(o)
	}
	if err != nil {
		return o, err
	}
	if o.Int(FirmwareVersion) != Version {
		log.Info().Int("stored", o.Int(FirmwareVersion)).Int("current", Version).Msg("options version changed, re-saving")
		o.ints[FirmwareVersion] = Version
		return o, f.Save(o)
	}
	return o, nil
}

// Reset removes the file so the next Setup starts from defaults.
func (f *File) Reset() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove options: %w", err)
	}
	return nil
}

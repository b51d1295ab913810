package config

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var _ Config = &File{}

type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = &RawFileConfig{}
	}

	f := &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}

	return f
}

type RawFileConfig struct {
	Lines []Line `json:"lines,omitempty"`
}

func (c *RawFileConfig) validate() error {
	seen := map[string]struct{}{}
	for i, l := range c.Lines {
		if l.Name == "" {
			return pkgerrors.Errorf("line %d has no name", i)
		}
		if _, ok := seen[l.Name]; ok {
			return pkgerrors.Errorf("duplicate line name %q", l.Name)
		}
		seen[l.Name] = struct{}{}
		if !l.Source.Kind.Valid() {
			return pkgerrors.Errorf("line %q: unknown source kind %q", l.Name, l.Source.Kind)
		}
		if l.Source.Kind != SourceSim && l.Source.Device == "" {
			return pkgerrors.Errorf("line %q: source has no device", l.Name)
		}
		if l.Meter != nil && l.Meter.Device == "" {
			return pkgerrors.Errorf("line %q: meter has no device", l.Name)
		}
		if l.Switch != nil && l.Switch.Device == "" {
			return pkgerrors.Errorf("line %q: switch has no device", l.Name)
		}
	}
	return nil
}

func (f *File) Lines() []Line {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]Line, len(f.c.Lines))
	copy(out, f.c.Lines)
	return out
}

func (f *File) Line(name string) (Line, bool) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, l := range f.c.Lines {
		if l.Name == name {
			return l, true
		}
	}
	return Line{}, false
}

func (f *File) SetRecalibrate(name, cronExpr string) error {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.c.Lines {
		if f.c.Lines[i].Name == name {
			f.c.Lines[i].Recalibrate = cronExpr
			return nil
		}
	}
	return pkgerrors.Errorf("no such line %q", name)
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	// Since we want to tell if the file is empty, using json.Decoder will
	// not work.
	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}
	configString := string(b)

	if strings.TrimSpace(configString) == "" {
		// If the file is empty, return the empty config.
		// Do not make f.c a nil.
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	err = json.Unmarshal(b, &conf)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	if err := conf.validate(); err != nil {
		return pkgerrors.Wrapf(err, "invalid config in file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	err = enc.Encode(f.c)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

func (f *File) LogrusFields() logrus.Fields {
	if f.c == nil {
		panic("config is nil")
	}

	names := make([]string, 0, len(f.Lines()))
	for _, l := range f.Lines() {
		names = append(names, l.Name)
	}

	return logrus.Fields{
		"lines": strings.Join(names, ","),
	}
}

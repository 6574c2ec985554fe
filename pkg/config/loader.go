// Package config loads settings for the action queue and its host
// programs from three layers, lowest priority first:
//
//	envDefault struct tags
//	YAML or JSON file
//	environment variables
//
// Struct fields opt in with tags:
//
//   - `env:"NAME"` reads NAME (or PREFIX_NAME) from the environment
//   - `envDefault:"value"` applies when the field is still zero
//   - `required:"true"` fails validation when the field is zero after loading
//
// File loading uses the `yaml` and `json` tags of the target struct.
//
//	type Settings struct {
//	    Actions actions.Config `env:"ACTIONS" yaml:"actions"`
//	    Ticks   int            `env:"TICKS" envDefault:"60" yaml:"ticks"`
//	}
//
//	cfg := config.MustLoad[Settings](config.New().WithEnvPrefix("DEMO").WithFile("demo.yaml"))
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	sserr "github.com/StricklySoft/seqactions/pkg/errors"
)

// durationType distinguishes time.Duration from plain int64 fields, since
// both report reflect.Int64.
var durationType = reflect.TypeOf(time.Duration(0))

// Loader resolves configuration layers into a struct. A Loader is not safe
// for concurrent use.
type Loader struct {
	envPrefix string
	filePath  string
}

// New returns a Loader that reads the environment only.
func New() *Loader {
	return &Loader{}
}

// WithEnvPrefix sets the prefix joined with "_" in front of every env tag.
// The prefix is uppercased.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = strings.ToUpper(prefix)
	return l
}

// WithFile sets an optional .yaml, .yml, or .json file. A missing file is
// not an error.
func (l *Loader) WithFile(path string) *Loader {
	l.filePath = path
	return l
}

// Load fills cfg, which must be a non-nil pointer to a struct, and then
// validates it. If cfg implements [Validator] its Validate method runs
// after the required-tag checks.
func (l *Loader) Load(cfg any) error {
	rv := reflect.ValueOf(cfg)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return sserr.New(sserr.CodeInternalConfiguration,
			"config: Load requires a non-nil pointer to a struct")
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return sserr.New(sserr.CodeInternalConfiguration,
			"config: Load requires a pointer to a struct")
	}

	if err := walk(rv, l.envPrefix, applyDefault); err != nil {
		return err
	}
	if l.filePath != "" {
		if err := l.loadFile(cfg); err != nil {
			return err
		}
	}
	if err := walk(rv, l.envPrefix, applyEnv); err != nil {
		return err
	}
	return validate(cfg, rv)
}

// MustLoad loads a T and panics on failure. Intended for main packages.
func MustLoad[T any](loader *Loader) T {
	var cfg T
	if err := loader.Load(&cfg); err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

func (l *Loader) loadFile(cfg any) error {
	if strings.Contains(l.filePath, "..") {
		return sserr.New(sserr.CodeInternalConfiguration,
			"config: file path must not contain directory traversal (..) sequences")
	}

	data, err := os.ReadFile(l.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
			"config: failed to read file %q", l.filePath)
	}

	switch ext := strings.ToLower(filepath.Ext(l.filePath)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".json":
		err = json.Unmarshal(data, cfg)
	default:
		return sserr.Newf(sserr.CodeInternalConfiguration,
			"config: unsupported file extension %q (use .yaml, .yml, or .json)", ext)
	}
	if err != nil {
		return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
			"config: failed to parse file %q", l.filePath)
	}
	return nil
}

// fieldFunc handles one settable leaf field. envKey is the fully prefixed
// environment variable name, or "" if the field has no env tag.
type fieldFunc func(field reflect.Value, sf reflect.StructField, envKey string) error

// walk visits every settable leaf field of rv. Nested structs extend the
// env prefix with their own env tag.
func walk(rv reflect.Value, prefix string, fn fieldFunc) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)
		if !field.CanSet() {
			continue
		}
		tag := sf.Tag.Get("env")

		if field.Kind() == reflect.Struct && sf.Type != durationType {
			if err := walk(field, joinKey(prefix, tag), fn); err != nil {
				return err
			}
			continue
		}

		key := ""
		if tag != "" {
			key = joinKey(prefix, tag)
		}
		if err := fn(field, sf, key); err != nil {
			return err
		}
	}
	return nil
}

func joinKey(prefix, name string) string {
	switch {
	case prefix == "":
		return name
	case name == "":
		return prefix
	default:
		return prefix + "_" + name
	}
}

func applyDefault(field reflect.Value, sf reflect.StructField, _ string) error {
	def := sf.Tag.Get("envDefault")
	if def == "" || !field.IsZero() {
		return nil
	}
	if err := setField(field, def); err != nil {
		return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
			"config: failed to apply default for field %q", sf.Name)
	}
	return nil
}

func applyEnv(field reflect.Value, sf reflect.StructField, envKey string) error {
	if envKey == "" {
		return nil
	}
	val, ok := os.LookupEnv(envKey)
	if !ok {
		return nil
	}
	if err := setField(field, val); err != nil {
		return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
			"config: failed to set field %q from env var %q", sf.Name, envKey)
	}
	return nil
}

// setField parses value into field. Supported kinds: string, bool, signed
// integers, and time.Duration.
func setField(field reflect.Value, value string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("cannot parse duration %q: %w", value, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("cannot parse bool %q: %w", value, err)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse integer %q: %w", value, err)
		}
		field.SetInt(n)
	default:
		return fmt.Errorf("unsupported field type %s", field.Kind())
	}
	return nil
}

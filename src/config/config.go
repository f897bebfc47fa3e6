package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

const (
	EnvPathEnvVar = "SCREEN_CAPTURE_EXTRACTOR"

	DefaultOllamaHost      = "http://localhost:11434"
	DefaultModel           = "qwen2.5vl:3b"
	DefaultCSVPath         = "captures.csv"
	DefaultNumPredict      = 512
	DefaultResultMode      = "auto"
	DefaultDeadlineSec     = 120
	DefaultRetries         = 2
	DefaultHotkey          = "Ctrl+Alt+E"
	DefaultQuickSaveHotkey = "Ctrl+Alt+R"
	DefaultPortStart       = 49600
	DefaultPortEnd         = 49610
)

var (
	DefaultMaxImageSize = 10 * datasize.MB
	DefaultLogMaxSize   = 10 * datasize.MB
)

// LoadOptions carries command-line overrides. Empty fields are ignored.
type LoadOptions struct {
	EnvPath    string
	CSVPath    string
	Model      string
	OllamaHost string
	ResultMode string
}

type Config struct {
	OllamaHost         string
	Model              string
	CSVPath            string
	Prompt             string
	SystemPrompt       string
	NumPredict         int `env:"NUM_PREDICT" validate:"gt=0"`
	FormatJSON         bool
	ResultMode         string `env:"RESULT_MODE" validate:"oneof=auto profile"`
	ExtractDeadlineSec int    `env:"EXTRACT_DEADLINE_SEC" validate:"gt=0"`
	ExtractRetries     int    `env:"EXTRACT_RETRIES" validate:"gte=0"`
	MaxImageSize       datasize.ByteSize
	EnableFileLogging  bool
	LogMaxSize         datasize.ByteSize
	Hotkey             string
	QuickSaveHotkey    string
	CopyToClipboard    bool
	PortStart          int `env:"RESIDENT_PORT_START" validate:"min=1,max=65535"`
	PortEnd            int `env:"RESIDENT_PORT_END" validate:"max=65535,gtefield=PortStart"`
	// EnvPath is the env file that was read, or "" when none was found.
	EnvPath string
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

// LoadWithOptions reads configuration from, lowest priority first:
// the env file (.env next to the executable, else the file named by SCREEN_CAPTURE_EXTRACTOR),
// the process environment, and opts.
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	envPath := strings.TrimSpace(opts.EnvPath)
	if envPath == "" {
		envPath = resolveEnvPath()
	}
	values, err := readDotenvValues(envPath)
	if err != nil {
		return nil, err
	}
	src := source{file: values}

	cfg := &Config{
		OllamaHost:      override(opts.OllamaHost, src.str("OLLAMA_HOST", DefaultOllamaHost)),
		Model:           override(opts.Model, src.str("MODEL", DefaultModel)),
		Prompt:          src.str("PROMPT", ""),
		SystemPrompt:    src.str("SYSTEM_PROMPT", ""),
		ResultMode:      strings.ToLower(override(opts.ResultMode, src.str("RESULT_MODE", DefaultResultMode))),
		Hotkey:          src.str("HOTKEY", DefaultHotkey),
		QuickSaveHotkey: src.str("QUICK_SAVE_HOTKEY", DefaultQuickSaveHotkey),
		EnvPath:         envPath,
	}

	csvPath := override(opts.CSVPath, src.str("CSV_PATH", DefaultCSVPath))
	if cfg.CSVPath, err = filepath.Abs(csvPath); err != nil {
		return nil, fmt.Errorf("invalid CSV_PATH %q: %w", csvPath, err)
	}

	ints := []struct {
		key string
		def int
		dst *int
	}{
		{"NUM_PREDICT", DefaultNumPredict, &cfg.NumPredict},
		{"EXTRACT_DEADLINE_SEC", DefaultDeadlineSec, &cfg.ExtractDeadlineSec},
		{"EXTRACT_RETRIES", DefaultRetries, &cfg.ExtractRetries},
		{"RESIDENT_PORT_START", DefaultPortStart, &cfg.PortStart},
		{"RESIDENT_PORT_END", DefaultPortEnd, &cfg.PortEnd},
	}
	for _, f := range ints {
		if *f.dst, err = src.int(f.key, f.def); err != nil {
			return nil, err
		}
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"FORMAT_JSON", &cfg.FormatJSON},
		{"ENABLE_FILE_LOGGING", &cfg.EnableFileLogging},
		{"COPY_TO_CLIPBOARD", &cfg.CopyToClipboard},
	}
	for _, f := range bools {
		if *f.dst, err = src.bool(f.key); err != nil {
			return nil, err
		}
	}

	if cfg.MaxImageSize, err = src.size("MAX_IMAGE_SIZE", DefaultMaxImageSize); err != nil {
		return nil, err
	}
	if cfg.LogMaxSize, err = src.size("LOG_MAX_SIZE", DefaultLogMaxSize); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var configValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report env keys instead of Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("env")
	})
	return v
}

func (c *Config) validate() error {
	err := configValidator.Struct(c)
	var verrs validator.ValidationErrors
	if err == nil || !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s %s, got %v", fe.Field(), describeRule(fe), fe.Value()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte", "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gtefield":
		return "must not be below RESIDENT_PORT_START"
	default:
		return "failed the " + fe.Tag() + " check"
	}
}

func resolveEnvPath() string {
	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvPathEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func readDotenvValues(envPath string) (map[string]string, error) {
	if envPath == "" {
		return map[string]string{}, nil
	}
	values, err := godotenv.Read(envPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file %s: %w", envPath, err)
	}
	return values, nil
}

func override(flag, value string) string {
	if v := strings.TrimSpace(flag); v != "" {
		return v
	}
	return value
}

// source looks a key up in the process environment first, then in the env file.
type source struct {
	file map[string]string
}

func (s source) lookup(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), true
	}
	if v, ok := s.file[key]; ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), true
	}
	return "", false
}

func (s source) str(key, def string) string {
	if v, ok := s.lookup(key); ok {
		return v
	}
	return def
}

func (s source) int(key string, def int) (int, error) {
	v, ok := s.lookup(key)
	if !ok {
		return def, nil
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func (s source) bool(key string) (bool, error) {
	v, ok := s.lookup(key)
	if !ok {
		return false, nil
	}
	b, err := cast.ToBoolE(strings.ToLower(v))
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func (s source) size(key string, def datasize.ByteSize) (datasize.ByteSize, error) {
	v, ok := s.lookup(key)
	if !ok {
		return def, nil
	}
	var size datasize.ByteSize
	if err := size.UnmarshalText([]byte(v)); err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return size, nil
}

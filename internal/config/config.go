// Package config loads the allogen configuration from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ieee0824/phoneseq-go/seqgen"
)

// LogLevel is the minimum level of emitted log records.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

type TelemetryConfig struct {
	LogLevel    LogLevel `yaml:"log_level"`
	MetricsAddr string   `yaml:"metrics_addr"`
}

type GeneratorConfig struct {
	NumStates            int     `yaml:"num_states"`
	ContextLength        int     `yaml:"context_length"`
	SilenceBeginning     float64 `yaml:"add_silence_beginning"`
	SilenceBetweenWords  float64 `yaml:"add_silence_between_words"`
	SilenceEnd           float64 `yaml:"add_silence_end"`
	Repetition           float64 `yaml:"repetition"`
	SilenceRepetition    float64 `yaml:"silence_repetition"`
	GarbagePhoneContinue float64 `yaml:"garbage_phone_continue"`
	GarbageWordContinue  float64 `yaml:"garbage_word_continue"`
}

type DatasetConfig struct {
	Workers         int  `yaml:"workers"`
	RandomPhoneSeqs int  `yaml:"add_random_phone_seqs"`
	ErrorOnInvalid  bool `yaml:"error_on_invalid_seq"`
	LogSkippedSeqs  int  `yaml:"log_skipped_seqs"`
}

type Config struct {
	LexiconFile    string          `yaml:"lexicon_file"`
	StateTyingFile string          `yaml:"state_tying_file"`
	DatabasePath   string          `yaml:"database_path"`
	Generator      GeneratorConfig `yaml:"generator"`
	Dataset        DatasetConfig   `yaml:"dataset"`
	Telemetry      TelemetryConfig `yaml:"telemetry"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	g := seqgen.DefaultConfig()
	return Config{
		Generator: GeneratorConfig{
			NumStates:            g.NumStates,
			ContextLength:        g.ContextLength,
			SilenceBeginning:     g.SilenceBeginning,
			SilenceBetweenWords:  g.SilenceBetweenWords,
			SilenceEnd:           g.SilenceEnd,
			Repetition:           g.Repetition,
			SilenceRepetition:    g.SilenceRepetition,
			GarbagePhoneContinue: g.GarbagePhoneContinue,
			GarbageWordContinue:  g.GarbageWordContinue,
		},
		Dataset: DatasetConfig{
			Workers:        1,
			ErrorOnInvalid: true,
			LogSkippedSeqs: 10,
		},
		Telemetry: TelemetryConfig{
			LogLevel: LogInfo,
		},
	}
}

// Seqgen converts the generator section.
func (g GeneratorConfig) Seqgen() seqgen.Config {
	return seqgen.Config{
		NumStates:            g.NumStates,
		ContextLength:        g.ContextLength,
		SilenceBeginning:     g.SilenceBeginning,
		SilenceBetweenWords:  g.SilenceBetweenWords,
		SilenceEnd:           g.SilenceEnd,
		Repetition:           g.Repetition,
		SilenceRepetition:    g.SilenceRepetition,
		GarbagePhoneContinue: g.GarbagePhoneContinue,
		GarbageWordContinue:  g.GarbageWordContinue,
	}
}

// Load reads path (if not empty) over the defaults, then applies PHONESEQ_*
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.LexiconFile, "PHONESEQ_LEXICON_FILE")
	overrideString(&cfg.StateTyingFile, "PHONESEQ_STATE_TYING_FILE")
	overrideString(&cfg.DatabasePath, "PHONESEQ_DATABASE_PATH")

	overrideInt(&cfg.Generator.NumStates, "PHONESEQ_NUM_STATES")
	overrideInt(&cfg.Generator.ContextLength, "PHONESEQ_CONTEXT_LENGTH")
	overrideFloat(&cfg.Generator.SilenceBeginning, "PHONESEQ_ADD_SILENCE_BEGINNING")
	overrideFloat(&cfg.Generator.SilenceBetweenWords, "PHONESEQ_ADD_SILENCE_BETWEEN_WORDS")
	overrideFloat(&cfg.Generator.SilenceEnd, "PHONESEQ_ADD_SILENCE_END")
	overrideFloat(&cfg.Generator.Repetition, "PHONESEQ_REPETITION")
	overrideFloat(&cfg.Generator.SilenceRepetition, "PHONESEQ_SILENCE_REPETITION")
	overrideFloat(&cfg.Generator.GarbagePhoneContinue, "PHONESEQ_GARBAGE_PHONE_CONTINUE")
	overrideFloat(&cfg.Generator.GarbageWordContinue, "PHONESEQ_GARBAGE_WORD_CONTINUE")

	overrideInt(&cfg.Dataset.Workers, "PHONESEQ_WORKERS")
	overrideInt(&cfg.Dataset.RandomPhoneSeqs, "PHONESEQ_ADD_RANDOM_PHONE_SEQS")
	overrideBool(&cfg.Dataset.ErrorOnInvalid, "PHONESEQ_ERROR_ON_INVALID_SEQ")
	overrideInt(&cfg.Dataset.LogSkippedSeqs, "PHONESEQ_LOG_SKIPPED_SEQS")

	if v := os.Getenv("PHONESEQ_LOG_LEVEL"); v != "" {
		cfg.Telemetry.LogLevel = LogLevel(strings.ToLower(v))
	}
	overrideString(&cfg.Telemetry.MetricsAddr, "PHONESEQ_METRICS_ADDR")
}

func overrideString(target *string, envKey string) {
	if v := os.Getenv(envKey); v != "" {
		*target = v
	}
}

func overrideInt(target *int, envKey string) {
	if v := os.Getenv(envKey); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if v := os.Getenv(envKey); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if v := os.Getenv(envKey); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			*target = parsed
		}
	}
}

// Validate checks the whole configuration.
func Validate(cfg Config) error {
	var errs []error
	if err := cfg.Generator.Seqgen().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("generator: %w", err))
	}
	if cfg.Dataset.Workers < 1 {
		errs = append(errs, fmt.Errorf("dataset.workers must be >= 1, got %d", cfg.Dataset.Workers))
	}
	if cfg.Dataset.RandomPhoneSeqs < 0 {
		errs = append(errs, fmt.Errorf("dataset.add_random_phone_seqs must be >= 0, got %d", cfg.Dataset.RandomPhoneSeqs))
	}
	switch cfg.Telemetry.LogLevel {
	case LogDebug, LogInfo, LogWarn, LogError:
	default:
		errs = append(errs, fmt.Errorf("telemetry.log_level %q is not one of debug, info, warn, error", cfg.Telemetry.LogLevel))
	}
	return errors.Join(errs...)
}

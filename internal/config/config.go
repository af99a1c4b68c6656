// Package config loads the relay configuration from a YAML file and the
// environment. Environment variables win over the file, the file wins over
// the defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/koscakluka/ema-workflow/core/dialog"
	"github.com/koscakluka/ema-workflow/core/present"
	"github.com/koscakluka/ema-workflow/core/sessions"
	"github.com/koscakluka/ema-workflow/core/sse"
	"github.com/koscakluka/ema-workflow/core/workflow"
	"gopkg.in/yaml.v3"
)

const envPrefix = "EMA_WORKFLOW_"

type Config struct {
	Backend  Backend  `yaml:"backend" jsonschema:"description=Workflow service connection"`
	Dialog   Dialog   `yaml:"dialog" jsonschema:"description=Consent and approval dialog"`
	Sessions Sessions `yaml:"sessions" jsonschema:"description=Dialog session storage"`
	Serve    Serve    `yaml:"serve" jsonschema:"description=Websocket chat host"`
	Chat     Chat     `yaml:"chat" jsonschema:"description=Terminal chat"`
}

type Backend struct {
	BaseURL     string   `yaml:"base_url" jsonschema:"description=Base URL of the workflow service"`
	IdleTimeout Duration `yaml:"idle_timeout" jsonschema:"description=Longest silence tolerated on an event stream; 0 disables the bound"`
	Framing     string   `yaml:"framing" jsonschema:"enum=event,enum=line,description=How event stream frames end"`
}

type Dialog struct {
	ShortReplyLimit     int       `yaml:"short_reply_limit" jsonschema:"minimum=1,description=Rune count from which an utterance is always a new question"`
	FallbackContact     string    `yaml:"fallback_contact" jsonschema:"description=Human contact named in failure messages"`
	CompletionEchoLimit int       `yaml:"completion_echo_limit" jsonschema:"minimum=1,description=Longest completion message repeated verbatim"`
	EmailInstruction    string    `yaml:"email_instruction" jsonschema:"description=Instruction the pending question is appended to when an email is accepted"`
	EmailOffers         []string  `yaml:"email_offers" jsonschema:"description=Phrases an answer uses to offer an email"`
	Steps               StepNames `yaml:"steps"`
}

type StepNames struct {
	Answer string `yaml:"answer"`
	Draft  string `yaml:"draft"`
	Send   string `yaml:"send"`
}

type Sessions struct {
	Store         string   `yaml:"store" jsonschema:"enum=memory,enum=sqlite"`
	Path          string   `yaml:"path" jsonschema:"description=Database file of the sqlite store"`
	IdleTTL       Duration `yaml:"idle_ttl" jsonschema:"description=How long an untouched session is kept; 0 keeps sessions forever"`
	SweepInterval Duration `yaml:"sweep_interval"`
}

type Serve struct {
	Addr string `yaml:"addr"`
	Path string `yaml:"path"`
}

type Chat struct {
	UserID         string `yaml:"user_id"`
	UserName       string `yaml:"user_name"`
	ConversationID string `yaml:"conversation_id"`
	WrapWidth      int    `yaml:"wrap_width"`
}

func Default() *Config {
	return &Config{
		Backend: Backend{
			BaseURL:     workflow.DefaultBaseURL,
			IdleTimeout: Duration(workflow.DefaultIdleTimeout),
			Framing:     sse.FramingEvent.String(),
		},
		Dialog: Dialog{
			ShortReplyLimit:     dialog.DefaultShortReplyLimit,
			FallbackContact:     present.DefaultFallbackContact,
			CompletionEchoLimit: present.DefaultCompletionEchoLimit,
			EmailInstruction:    dialog.DefaultEmailInstruction,
			EmailOffers:         append([]string(nil), dialog.DefaultEmailOffers...),
			Steps: StepNames{
				Answer: dialog.DefaultAnswerStep,
				Draft:  dialog.DefaultDraftStep,
				Send:   dialog.DefaultSendStep,
			},
		},
		Sessions: Sessions{
			Store:         "memory",
			Path:          "ema-workflow.db",
			IdleTTL:       Duration(sessions.DefaultIdleTTL),
			SweepInterval: Duration(5 * time.Minute),
		},
		Serve: Serve{
			Addr: ":8080",
			Path: "/ws",
		},
		Chat: Chat{
			WrapWidth: 80,
		},
	}
}

// Load reads the file at path, when path is not empty, and applies the
// environment on top.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookupEnv func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(lookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookupEnv func(string) (string, bool)) error {
	str := func(name string, target *string) {
		if value, ok := lookupEnv(envPrefix + name); ok {
			*target = value
		}
	}
	integer := func(name string, target *int) error {
		value, ok := lookupEnv(envPrefix + name)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return &Error{Field: envPrefix + name, Err: err}
		}
		*target = n
		return nil
	}
	duration := func(name string, target *Duration) error {
		value, ok := lookupEnv(envPrefix + name)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return &Error{Field: envPrefix + name, Err: err}
		}
		*target = Duration(d)
		return nil
	}

	str("BASE_URL", &c.Backend.BaseURL)
	str("FRAMING", &c.Backend.Framing)
	str("FALLBACK_CONTACT", &c.Dialog.FallbackContact)
	str("SESSION_STORE", &c.Sessions.Store)
	str("SESSION_PATH", &c.Sessions.Path)
	str("ADDR", &c.Serve.Addr)
	str("USER_NAME", &c.Chat.UserName)

	return errors.Join(
		duration("IDLE_TIMEOUT", &c.Backend.IdleTimeout),
		duration("SESSION_TTL", &c.Sessions.IdleTTL),
		integer("SHORT_REPLY_LIMIT", &c.Dialog.ShortReplyLimit),
	)
}

func (c *Config) Validate() error {
	var errs []error
	invalid := func(field string, format string, args ...any) {
		errs = append(errs, &Error{Field: field, Err: fmt.Errorf(format, args...)})
	}

	if u, err := url.Parse(c.Backend.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		invalid("backend.base_url", "expected an http(s) URL, got %q", c.Backend.BaseURL)
	}
	if c.Backend.IdleTimeout < 0 {
		invalid("backend.idle_timeout", "must not be negative")
	}
	if _, err := ParseFraming(c.Backend.Framing); err != nil {
		errs = append(errs, &Error{Field: "backend.framing", Err: err})
	}
	if c.Dialog.ShortReplyLimit < 1 {
		invalid("dialog.short_reply_limit", "must be positive, got %d", c.Dialog.ShortReplyLimit)
	}
	if c.Dialog.CompletionEchoLimit < 1 {
		invalid("dialog.completion_echo_limit", "must be positive, got %d", c.Dialog.CompletionEchoLimit)
	}
	switch c.Sessions.Store {
	case "memory":
	case "sqlite":
		if c.Sessions.Path == "" {
			invalid("sessions.path", "required by the sqlite store")
		}
	default:
		invalid("sessions.store", "expected memory or sqlite, got %q", c.Sessions.Store)
	}
	if c.Sessions.IdleTTL < 0 {
		invalid("sessions.idle_ttl", "must not be negative")
	}
	if c.Chat.WrapWidth < 0 {
		invalid("chat.wrap_width", "must not be negative")
	}
	return errors.Join(errs...)
}

func ParseFraming(name string) (sse.Framing, error) {
	switch name {
	case "", sse.FramingEvent.String():
		return sse.FramingEvent, nil
	case sse.FramingLine.String():
		return sse.FramingLine, nil
	}
	return 0, fmt.Errorf("unknown framing %q", name)
}

// Error is a configuration value that cannot be used.
type Error struct {
	Field string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid config %s: %v", e.Field, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Env layers the environment-variable overrides of spec.md §6.4 on top
// of whatever defaults the CLI would otherwise use, following the
// teacher's viper-based layering (defaults < file < env) rather than
// hand-rolled os.Getenv calls scattered through the CLI.
type Env struct {
	v *viper.Viper
}

// NewEnv binds the LATTICE_* environment variables recognized by
// spec.md §6.4.
func NewEnv() *Env {
	v := viper.New()
	v.SetEnvPrefix("LATTICE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for _, key := range []string{
		"root", "actor", "model", "session",
		"task_id", "commit_sha", "started_event_id", "worktree",
		"log_level",
	} {
		_ = v.BindEnv(key)
	}
	return &Env{v: v}
}

func (e *Env) Root() string            { return e.v.GetString("root") }
func (e *Env) Actor() string           { return e.v.GetString("actor") }
func (e *Env) Model() string           { return e.v.GetString("model") }
func (e *Env) Session() string         { return e.v.GetString("session") }
func (e *Env) TaskID() string          { return e.v.GetString("task_id") }
func (e *Env) CommitSHA() string       { return e.v.GetString("commit_sha") }
func (e *Env) StartedEventID() string  { return e.v.GetString("started_event_id") }
func (e *Env) Worktree() string        { return e.v.GetString("worktree") }

// LogLevel returns LATTICE_LOG_LEVEL, defaulting to "warn" (SPEC_FULL.md §9).
func (e *Env) LogLevel() string {
	if lvl := e.v.GetString("log_level"); lvl != "" {
		return lvl
	}
	return "warn"
}

package config

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// schema constrains a decoded Config. Field names follow the json tags
// because cue encodes Go structs through them.
const schema = `
#Config: {
	client_db:  string & !=""
	server_db?: string & !=""
	user?:      string & !=""
	version?:   string & !=""
	log: {
		level:  "debug" | "info" | "warn" | "error"
		format: "text" | "json"
	}
}
`

// ValidationError lists every schema violation of a Config.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}

// Validate checks cfg against the config schema.
func Validate(cfg Config) error {
	ctx := cuecontext.New()

	def := ctx.CompileString(schema).LookupPath(cue.ParsePath("#Config"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	val := ctx.Encode(cfg)
	if err := val.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	err := def.Unify(val).Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}
	verr := &ValidationError{}
	for _, e := range cueerrors.Errors(err) {
		verr.Problems = append(verr.Problems, strings.TrimSpace(cueerrors.Details(e, nil)))
	}
	return verr
}

// Package catalog compiles badge catalogs written in CUE.
//
// A catalog file declares badges under the top-level "badge" field, in the
// order they should be evaluated:
//
//	badge: chore_starter: {
//		name:      "Chore Starter"
//		category:  "milestone"
//		rarity:    "common"
//		xp_reward: 10
//		condition: {stat: "questsCompleted", gte: 1}
//	}
//	badge: night_shift: {
//		name:      "Night Shift"
//		category:  "special"
//		rarity:    "uncommon"
//		condition: {flag: "late_night_quest"}
//	}
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/questcore/internal/badge"
)

//go:embed schema.cue
var schemaSrc string

// CompileError reports a problem with one catalog entry.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// entry mirrors #Badge in schema.cue.
type entry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Category    string `json:"category"`
	Rarity      string `json:"rarity"`
	XPReward    int    `json:"xp_reward"`
	Condition   struct {
		Stat string   `json:"stat"`
		Gte  *float64 `json:"gte"`
		Flag string   `json:"flag"`
	} `json:"condition"`
}

// Compile builds a catalog from CUE source text.
func Compile(src string) (*badge.Catalog, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename("catalog.cue"))
	return compileValue(ctx, v)
}

// LoadDir builds a catalog from the CUE package in dir.
func LoadDir(dir string) (*badge.Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("catalog directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	ctx := cuecontext.New()
	return compileValue(ctx, ctx.BuildInstance(inst))
}

func compileValue(ctx *cue.Context, v cue.Value) (*badge.Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	// The schema declares badge itself, so presence is checked on the source.
	if !v.LookupPath(cue.ParsePath("badge")).Exists() {
		return nil, &CompileError{Field: "badge", Message: "no badges declared", Pos: v.Pos()}
	}

	schema := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("badge schema: %w", err)
	}
	v = v.Unify(schema)
	badges := v.LookupPath(cue.ParsePath("badge"))

	iter, err := badges.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var defs []badge.Definition
	for iter.Next() {
		def, err := compileBadge(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if len(defs) == 0 {
		return nil, &CompileError{Field: "badge", Message: "no badges declared", Pos: badges.Pos()}
	}

	cat, err := badge.NewCatalog(defs)
	if err != nil {
		return nil, &CompileError{Field: "badge", Message: err.Error(), Pos: badges.Pos()}
	}
	return cat, nil
}

func compileBadge(id string, v cue.Value) (badge.Definition, error) {
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return badge.Definition{}, formatCUEError(err)
	}

	var s entry
	if err := v.Decode(&s); err != nil {
		return badge.Definition{}, formatCUEError(err)
	}

	def := badge.Definition{
		ID:          id,
		Name:        s.Name,
		Description: s.Description,
		Icon:        s.Icon,
		Category:    badge.Category(s.Category),
		Rarity:      badge.Rarity(s.Rarity),
		XPReward:    s.XPReward,
	}
	switch {
	case s.Condition.Flag != "":
		def.Condition = badge.FlagSet(s.Condition.Flag)
	case s.Condition.Gte != nil:
		def.Condition = badge.AtLeast(s.Condition.Stat, *s.Condition.Gte)
	default:
		return badge.Definition{}, &CompileError{
			Field:   "badge." + id + ".condition",
			Message: "condition needs {stat, gte} or {flag}",
			Pos:     v.Pos(),
		}
	}
	return def, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}

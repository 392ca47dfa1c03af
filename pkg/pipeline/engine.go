package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/gnames/gnfmt"
	"github.com/gnames/gnuuid"
)

// Engine resolves targets to stages and runs the ones whose artifacts
// are missing.
type Engine struct {
	store   Store
	stages  map[string]*Stage
	order   []string
	aliases map[string][]string
}

// New validates stages and creates an Engine. Stage and artifact names
// must be unique, every requirement must be declared, and requirements
// must not form a cycle.
func New(store Store, stages ...Stage) (*Engine, error) {
	res := &Engine{
		store:   store,
		stages:  make(map[string]*Stage, len(stages)),
		aliases: make(map[string][]string),
	}

	artifacts := make(map[string]string, len(stages))
	for i := range stages {
		s := &stages[i]
		if s.Name == "" {
			return nil, GraphError("stage without a name")
		}
		if _, ok := res.stages[s.Name]; ok {
			return nil, GraphError(fmt.Sprintf("stage %q declared twice", s.Name))
		}
		if s.Run == nil {
			return nil, GraphError(fmt.Sprintf("stage %q has no run function", s.Name))
		}
		if s.Artifact.Name == "" {
			return nil, GraphError(fmt.Sprintf("stage %q has no artifact", s.Name))
		}
		if other, ok := artifacts[s.Artifact.Name]; ok {
			return nil, GraphError(fmt.Sprintf(
				"stages %q and %q share artifact %q", other, s.Name, s.Artifact.Name,
			))
		}
		artifacts[s.Artifact.Name] = s.Name
		res.stages[s.Name] = s
		res.order = append(res.order, s.Name)
	}

	for _, name := range res.order {
		for _, dep := range res.stages[name].Requires {
			if _, ok := res.stages[dep]; !ok {
				return nil, GraphError(fmt.Sprintf(
					"stage %q requires unknown stage %q", name, dep,
				))
			}
		}
	}

	if err := res.checkCycles(); err != nil {
		return nil, err
	}
	return res, nil
}

// Alias declares a virtual target that stands for several stages.
// An alias has no artifact of its own.
func (e *Engine) Alias(name string, targets ...string) error {
	if _, ok := e.stages[name]; ok {
		return GraphError(fmt.Sprintf("alias %q shadows a stage", name))
	}
	for _, t := range targets {
		if _, ok := e.stages[t]; !ok {
			return UnknownStageError(t)
		}
	}
	e.aliases[name] = targets
	return nil
}

// Stages returns stage declarations in declaration order.
func (e *Engine) Stages() []Stage {
	res := make([]Stage, len(e.order))
	for i, name := range e.order {
		res[i] = *e.stages[name]
	}
	return res
}

// Resolve returns names of all stages the targets depend on, including
// the targets, in an order where requirements come first.
func (e *Engine) Resolve(targets ...string) ([]string, error) {
	names, err := e.expand(targets)
	if err != nil {
		return nil, err
	}

	var res []string
	seen := make(map[string]bool)
	var visit func(string)
	visit = func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		for _, dep := range e.stages[name].Requires {
			visit(dep)
		}
		res = append(res, name)
	}
	for _, name := range names {
		visit(name)
	}
	return res, nil
}

// Status reports completion of every stage in declaration order.
func (e *Engine) Status() ([]Status, error) {
	res := make([]Status, 0, len(e.order))
	for _, name := range e.order {
		s := e.stages[name]
		done, err := e.store.Exists(s.Artifact)
		if err != nil {
			return nil, err
		}
		res = append(res, Status{
			Stage: *s,
			Done:  done,
			Path:  e.store.Path(s.Artifact),
		})
	}
	return res, nil
}

// Invalidate removes artifacts of the given stages so that the next run
// rebuilds them. Artifacts of dependent stages are kept.
func (e *Engine) Invalidate(names ...string) error {
	for _, name := range names {
		s, ok := e.stages[name]
		if !ok {
			return UnknownStageError(name)
		}
		if err := e.store.Remove(s.Artifact); err != nil {
			return err
		}
		slog.Info("Artifact removed", "stage", name, "artifact", s.Artifact.Name)
	}
	return nil
}

// Run makes sure the artifacts of the targets exist. Stages with existing
// artifacts are skipped, the others run after all their requirements.
// A failed stage blocks its dependents but does not stop independent
// branches. The returned error joins the errors of all failed stages.
func (e *Engine) Run(ctx context.Context, targets ...string) (*Result, error) {
	names, err := e.expand(targets)
	if err != nil {
		return nil, err
	}

	r := &run{
		engine: e,
		states: make(map[string]State),
		res:    &Result{},
	}
	for _, name := range names {
		r.ensure(ctx, name)
	}

	return r.res, errors.Join(r.errs...)
}

func (e *Engine) expand(targets []string) ([]string, error) {
	var res []string
	for _, t := range targets {
		if alias, ok := e.aliases[t]; ok {
			res = append(res, alias...)
			continue
		}
		if _, ok := e.stages[t]; !ok {
			return nil, UnknownStageError(t)
		}
		res = append(res, t)
	}
	return res, nil
}

func (e *Engine) checkCycles() error {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(e.order))

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch color[name] {
		case grey:
			idx := slices.Index(path, name)
			cycle := append(slices.Clone(path[idx:]), name)
			return GraphError(fmt.Sprintf("cycle %v", cycle))
		case black:
			return nil
		}
		color[name] = grey
		path = append(path, name)
		for _, dep := range e.stages[name].Requires {
			if err := visit(dep, path); err != nil {
				return err
			}
		}
		color[name] = black
		return nil
	}

	for _, name := range e.order {
		if err := visit(name, nil); err != nil {
			return err
		}
	}
	return nil
}

func fingerprint(s *Stage) string {
	return gnuuid.New(s.Name + "|" + s.Params).String()
}

// run keeps the state of one Engine.Run call. Every stage is resolved at
// most once, so a stage's RunFunc is called at most once per run.
type run struct {
	engine *Engine
	states map[string]State
	res    *Result
	errs   []error
}

func (r *run) ensure(ctx context.Context, name string) State {
	if st, ok := r.states[name]; ok {
		return st
	}
	s := r.engine.stages[name]
	store := r.engine.store

	exists, err := store.Exists(s.Artifact)
	if err != nil {
		return r.fail(name, 0, err)
	}
	if exists {
		return r.cached(s)
	}

	// all requirements run, so branches independent of a failure still
	// produce their artifacts
	var bad string
	for _, dep := range s.Requires {
		st := r.ensure(ctx, dep)
		if bad == "" && (st == Failed || st == Blocked) {
			bad = dep
		}
	}
	if bad != "" {
		slog.Warn("Stage blocked", "stage", name, "requirement", bad)
		r.states[name] = Blocked
		r.res.Stages = append(r.res.Stages, StageResult{
			Name:  name,
			State: Blocked,
			Err:   BlockedError(name, bad),
		})
		return Blocked
	}

	if err = ctx.Err(); err != nil {
		return r.fail(name, 0, CancelledError(name, err))
	}

	return r.execute(ctx, s)
}

func (r *run) cached(s *Stage) State {
	store := r.engine.store
	sr := StageResult{Name: s.Name, State: Cached}

	fp, err := store.Fingerprint(s.Artifact)
	if err != nil {
		slog.Warn("Cannot read artifact fingerprint",
			"stage", s.Name, "error", err)
	}
	if fp != "" && fp != fingerprint(s) {
		sr.Stale = true
		slog.Warn("Cached artifact was built with different parameters",
			"stage", s.Name,
			"artifact", s.Artifact.Name,
		)
	}

	slog.Info("Stage cached", "stage", s.Name, "artifact", s.Artifact.Name)
	r.states[s.Name] = Cached
	r.res.Stages = append(r.res.Stages, sr)
	return Cached
}

func (r *run) execute(ctx context.Context, s *Stage) State {
	store := r.engine.store

	inputs := make(map[string]string, len(s.Requires))
	for _, dep := range s.Requires {
		inputs[dep] = store.Path(r.engine.stages[dep].Artifact)
	}

	tmp, err := store.TempPath(s.Artifact)
	if err != nil {
		return r.fail(s.Name, 0, err)
	}

	slog.Info("Stage started", "stage", s.Name, "artifact", s.Artifact.Name)
	start := time.Now()
	err = s.Run(ctx, StageIO{inputs: inputs, Output: tmp})
	dur := time.Since(start)
	if err != nil {
		if dErr := store.Discard(tmp); dErr != nil {
			slog.Warn("Cannot remove temporary output",
				"stage", s.Name, "path", tmp, "error", dErr)
		}
		return r.fail(s.Name, dur, err)
	}

	if err = store.Commit(s.Artifact, tmp); err != nil {
		_ = store.Discard(tmp)
		return r.fail(s.Name, dur, err)
	}
	if err = store.SetFingerprint(s.Artifact, fingerprint(s)); err != nil {
		slog.Warn("Cannot save artifact fingerprint",
			"stage", s.Name, "error", err)
	}

	slog.Info("Stage completed",
		"stage", s.Name,
		"artifact", s.Artifact.Name,
		"duration", gnfmt.TimeString(dur.Seconds()),
	)
	r.states[s.Name] = Completed
	r.res.Stages = append(r.res.Stages, StageResult{
		Name:     s.Name,
		State:    Completed,
		Duration: dur,
	})
	return Completed
}

func (r *run) fail(name string, dur time.Duration, err error) State {
	err = StageError(name, err)
	slog.Error("Stage failed", "stage", name, "error", err)
	r.states[name] = Failed
	r.errs = append(r.errs, err)
	r.res.Stages = append(r.res.Stages, StageResult{
		Name:     name,
		State:    Failed,
		Duration: dur,
		Err:      err,
	})
	return Failed
}

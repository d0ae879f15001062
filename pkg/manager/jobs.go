// Zaparoo Nero
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo Nero.
//
// Zaparoo Nero is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo Nero is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo Nero.  If not, see <http://www.gnu.org/licenses/>.

package manager

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/ZaparooProject/zaparoo-nero/pkg/notifications"
	"github.com/ZaparooProject/zaparoo-nero/pkg/prefixes"
	"github.com/ZaparooProject/zaparoo-nero/pkg/umu"
	"github.com/ZaparooProject/zaparoo-nero/pkg/validation"
	"github.com/rs/zerolog/log"
)

const progressBuffer = 32

// JobState is the progress of a create or tricks job.
type JobState int

const (
	JobIdle JobState = iota
	JobSpawning
	JobStreaming
	JobPostProcess
	JobDone
	JobFailed
)

func (s JobState) String() string {
	switch s {
	case JobIdle:
		return "idle"
	case JobSpawning:
		return "spawning"
	case JobStreaming:
		return "streaming"
	case JobPostProcess:
		return "post_process"
	case JobDone:
		return "done"
	case JobFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// JobProgress is one step of a job. Phase is set while streaming.
type JobProgress struct {
	Text  string
	State JobState
	Phase umu.Phase
}

// JobResult is the outcome of a finished job.
type JobResult struct {
	Prefix string
	Runner string
	// Path is the prefix directory. A failed creation leaves it in place.
	Path   string
	Output string
	Hint   string
	Verbs  []string
	// ExitCode is the launcher exit code, -1 when it never ran.
	ExitCode int
	// Committed is set once the prefix settings were written.
	Committed bool
}

// Job is a running create or tricks operation.
type Job struct {
	progress chan JobProgress
	done     chan struct{}
	err      error
	result   JobResult
}

func newJob() *Job {
	return &Job{
		progress: make(chan JobProgress, progressBuffer),
		done:     make(chan struct{}),
	}
}

// Progress delivers state changes until the job ends, then is closed.
// Updates are dropped when nobody reads.
func (j *Job) Progress() <-chan JobProgress {
	return j.progress
}

// Wait blocks until the job ends or ctx is done.
func (j *Job) Wait(ctx context.Context) (JobResult, error) {
	select {
	case <-j.done:
		return j.result, j.err
	case <-ctx.Done():
		return JobResult{}, fmt.Errorf("waiting for job: %w", ctx.Err())
	}
}

// Done is closed when the job ends.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// set is only called from the job goroutine.
func (j *Job) set(state JobState, phase umu.Phase, text string) {
	select {
	case j.progress <- JobProgress{State: state, Phase: phase, Text: text}:
	default:
	}
}

func (j *Job) finish(res JobResult, err error) {
	j.result = res
	j.err = err
	if err != nil {
		j.set(JobFailed, umu.PhaseNone, err.Error())
	} else {
		j.set(JobDone, umu.PhaseNone, "")
	}
	close(j.progress)
	close(j.done)
}

// CreateRequest describes a new prefix.
type CreateRequest struct {
	Name   string   `validate:"required,prefixname"`
	Runner string   `validate:"required,runner"`
	Tricks []string `validate:"dive,verb"`
	// SetDefault saves the prefix as DefaultPrefix once committed.
	SetDefault bool
	// LinkUserDirs points the Wine user folders at the host ones.
	LinkUserDirs bool
}

// CreatePrefix starts building a new prefix with umu-run. The prefix is
// only committed when the launcher exits 0 and Wine wrote system.reg.
func (m *Manager) CreatePrefix(ctx context.Context, req CreateRequest) (*Job, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Tricks = dedupeVerbs(req.Tricks)

	err := validation.DefaultValidator.ValidateCtx(ctx, req, &validation.Context{Runners: m.runners.Names()})
	if err != nil {
		return nil, fmt.Errorf("invalid create request: %w", err)
	}
	if m.store.Exists(req.Name) {
		return nil, fmt.Errorf("%w: %s", prefixes.ErrPrefixExists, req.Name)
	}
	runner, _ := m.runners.Find(req.Runner)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if _, busy := m.jobs[req.Name]; busy {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrJobActive, req.Name)
	}
	job := newJob()
	m.jobs[req.Name] = job
	m.workers.Add(1)
	status := m.statusLocked()
	m.mu.Unlock()

	notifications.StatusChanged(m.ns, status)

	go func() {
		defer m.workers.Done()
		res, err := m.create(m.ctx, job, req, runner.Path)
		m.endJob(req.Name, job, res, err)
		m.notifyCreate(res, err)
	}()
	return job, nil
}

func (m *Manager) create(ctx context.Context, job *Job, req CreateRequest, runnerPath string) (JobResult, error) {
	sess := umu.Session{Store: m.store, Prefix: req.Name, RunnerPath: runnerPath}
	res := JobResult{
		Prefix:   req.Name,
		Runner:   req.Runner,
		Path:     sess.PrefixPath(),
		Verbs:    req.Tricks,
		ExitCode: -1,
	}

	job.set(JobSpawning, umu.PhaseNone, "")
	if err := m.store.Fs().MkdirAll(res.Path, 0o750); err != nil {
		return res, fmt.Errorf("failed to create prefix directory: %w", err)
	}

	env := umu.BuildCreateEnv(res.Path, runnerPath)
	cmd := umu.BuildLaunchArgs(m.launcher.Launcher(), req.Tricks, nil)
	log.Info().Str("prefix", req.Name).Str("runner", req.Runner).Str("cmd", cmd.String()).Msg("creating prefix")

	ran, err := m.stream(ctx, job, sess, cmd, env)
	res.ExitCode = ran.ExitCode
	res.Output = ran.Output
	if err != nil {
		return res, err
	}
	if ran.Failed() {
		res.Hint = ran.Hint()
		return res, fmt.Errorf("prefix creation %s", res.Hint)
	}
	if !m.store.HasSystemReg(req.Name) {
		return res, fmt.Errorf("%w: launcher did not initialize %s", prefixes.ErrNoSystemReg, res.Path)
	}

	job.set(JobPostProcess, umu.PhaseNone, "Finishing prefix...")
	if _, err := m.store.PatchSystemReg(req.Name); err != nil {
		log.Warn().Err(err).Str("prefix", req.Name).Msg("failed to add serial port mappings")
	}
	if err := m.store.AddPrefix(req.Name, req.Runner); err != nil {
		return res, fmt.Errorf("failed to commit prefix: %w", err)
	}
	res.Committed = true

	if req.LinkUserDirs {
		if err := m.store.CreateUserLinks(req.Name, m.userDirs); err != nil {
			log.Warn().Err(err).Str("prefix", req.Name).Msg("failed to link user folders")
		}
	}
	if req.SetDefault {
		m.cfg.SetDefaultPrefix(req.Name)
		if err := m.cfg.Save(); err != nil {
			log.Warn().Err(err).Msg("failed to save default prefix")
		}
	}
	return res, nil
}

// stream runs a job command and waits for the prefix to settle on success.
func (m *Manager) stream(
	ctx context.Context,
	job *Job,
	sess umu.Session,
	cmd umu.Command,
	env umu.Env,
) (umu.Result, error) {
	job.set(JobStreaming, umu.PhaseRunnerStarting, umu.PhaseRunnerStarting.Text())
	res, err := m.launcher.Run(ctx, cmd, umu.RunOptions{
		Env: env,
		OnPhase: func(p umu.Phase) {
			job.set(JobStreaming, p, p.Text())
		},
	})
	if err != nil {
		return res, fmt.Errorf("failed to run launcher: %w", err)
	}
	if !res.Failed() {
		if err := m.launcher.WaitPrefix(ctx, sess); err != nil {
			log.Warn().Err(err).Str("prefix", sess.Prefix).Msg("failed to wait for wineserver")
		}
	}
	return res, nil
}

func (m *Manager) endJob(key string, job *Job, res JobResult, err error) {
	if err != nil {
		log.Error().Err(err).Str("prefix", res.Prefix).Int("code", res.ExitCode).Msg("job failed")
	} else {
		log.Info().Str("prefix", res.Prefix).Strs("verbs", res.Verbs).Msg("job finished")
	}

	m.mu.Lock()
	delete(m.jobs, key)
	status := m.statusLocked()
	m.mu.Unlock()

	job.finish(res, err)
	notifications.StatusChanged(m.ns, status)
}

// InstallTricks installs winetricks verbs into the current prefix.
// Verbs already in winetricks.log are still passed; winetricks skips them.
func (m *Manager) InstallTricks(ctx context.Context, verbs []string) (*Job, error) {
	if !m.tricksAvailable {
		return nil, ErrTricksUnavailable
	}
	verbs = dedupeVerbs(verbs)
	if len(verbs) == 0 {
		return nil, ErrNoVerbs
	}
	for _, v := range verbs {
		req := struct {
			Verb string `validate:"verb"`
		}{Verb: v}
		if err := validation.DefaultValidator.ValidateCtx(ctx, req, nil); err != nil {
			return nil, fmt.Errorf("invalid verb %q: %w", v, err)
		}
	}

	m.mu.Lock()
	if err := m.canRunJobLocked(); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	sess := m.sessionLocked()
	runnerName := m.runnerName
	job := newJob()
	m.jobs[sess.Prefix] = job
	m.workers.Add(1)
	status := m.statusLocked()
	m.mu.Unlock()

	notifications.StatusChanged(m.ns, status)

	go func() {
		defer m.workers.Done()
		res, err := m.installTricks(m.ctx, job, sess, runnerName, verbs)
		m.endJob(sess.Prefix, job, res, err)
		m.notifyTricks(res, err)
	}()
	return job, nil
}

func (m *Manager) canRunJobLocked() error {
	if m.closed {
		return ErrClosed
	}
	if m.current == "" {
		return ErrNoPrefix
	}
	if m.slots.len() > 0 {
		return ErrRunsActive
	}
	if _, busy := m.jobs[m.current]; busy {
		return fmt.Errorf("%w: %s", ErrJobActive, m.current)
	}
	return nil
}

func (m *Manager) installTricks(
	ctx context.Context,
	job *Job,
	sess umu.Session,
	runnerName string,
	verbs []string,
) (JobResult, error) {
	res := JobResult{
		Prefix:   sess.Prefix,
		Runner:   runnerName,
		Path:     sess.PrefixPath(),
		Verbs:    verbs,
		ExitCode: -1,
	}

	job.set(JobSpawning, umu.PhaseNone, "")
	installed, err := m.store.InstalledVerbs(sess.Prefix)
	if err != nil {
		log.Warn().Err(err).Str("prefix", sess.Prefix).Msg("failed to read installed verbs")
	}

	env := umu.BuildCreateEnv(res.Path, sess.RunnerPath)
	cmd := umu.BuildLaunchArgs(m.launcher.Launcher(), verbs, installed)
	log.Info().Str("prefix", sess.Prefix).Str("cmd", cmd.String()).Msg("installing verbs")

	ran, err := m.stream(ctx, job, sess, cmd, env)
	res.ExitCode = ran.ExitCode
	res.Output = ran.Output
	if err != nil {
		return res, err
	}
	if ran.Failed() {
		res.Hint = ran.Hint()
		return res, fmt.Errorf("verb installation %s", res.Hint)
	}
	return res, nil
}

func (m *Manager) notifyCreate(res JobResult, err error) {
	payload := notifications.JobResult{
		Prefix:   res.Prefix,
		Runner:   res.Runner,
		Hint:     res.Hint,
		Verbs:    res.Verbs,
		ExitCode: res.ExitCode,
	}
	if err != nil {
		if payload.Hint == "" {
			payload.Hint = err.Error()
		}
		notifications.PrefixCreateFailed(m.ns, payload)
		return
	}
	notifications.PrefixCreated(m.ns, payload)
	notifications.PrefixesChanged(m.ns)
}

func (m *Manager) notifyTricks(res JobResult, err error) {
	payload := notifications.JobResult{
		Prefix:   res.Prefix,
		Runner:   res.Runner,
		Hint:     res.Hint,
		Verbs:    res.Verbs,
		ExitCode: res.ExitCode,
	}
	if err != nil {
		if payload.Hint == "" {
			payload.Hint = err.Error()
		}
		notifications.TricksFailed(m.ns, payload)
		return
	}
	notifications.TricksInstalled(m.ns, payload)
}

// ActiveJob returns the job running for a prefix, if any.
func (m *Manager) ActiveJob(prefix string) (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[prefix]
	return job, ok
}

// dedupeVerbs trims verbs and drops blanks and repeats, keeping order.
func dedupeVerbs(verbs []string) []string {
	out := make([]string, 0, len(verbs))
	for _, v := range verbs {
		v = strings.TrimSpace(v)
		if v == "" || slices.Contains(out, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}

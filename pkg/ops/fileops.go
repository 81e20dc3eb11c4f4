package ops

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chemist/builddb/pkg/buildtypes"
	"github.com/chemist/builddb/pkg/witness"
)

// Rule is one named build step in a FileOps manifest: a target file, the
// other targets it depends on, and the shell command that produces it.
type Rule struct {
	Target  string
	Deps    []string
	Command string
	Timeout time.Duration
	// Phony marks a target with no durable on-disk artifact — like a
	// Makefile .PHONY rule, its command runs for a side effect rather
	// than to produce Target itself. Stored never reports one as ok,
	// and its recorded Value is wrapped to exempt it from CheckValid.
	Phony bool
}

// FileOps is the default Ops implementation: keys are file targets named
// by a manifest of Rules, stored probes the filesystem for the target's
// content digest, and execute runs the rule's Command in a shell after
// demanding its declared Deps.
type FileOps struct {
	rules map[string]Rule
}

// NewFileOps indexes rules by target. Duplicate targets overwrite
// earlier entries, last one wins.
func NewFileOps(rules []Rule) *FileOps {
	f := &FileOps{rules: make(map[string]Rule, len(rules))}
	for _, r := range rules {
		f.rules[r.Target] = r
	}
	return f
}

func targetOf(key buildtypes.Key) string {
	return string(key.Payload)
}

// FileKey builds the Key a FileOps manifest target is addressed by.
func FileKey(target string) buildtypes.Key {
	return buildtypes.NewKey("file", []byte(target))
}

// Stored hashes the target's on-disk content, if the file exists. A
// missing file is reported as ok=false rather than an error, since "not
// built yet" is the expected state for a target nothing has produced.
func (f *FileOps) Stored(key buildtypes.Key) (buildtypes.Value, bool, error) {
	target := targetOf(key)
	if rule, ok := f.rules[target]; ok && rule.Phony {
		return nil, false, nil
	}
	data, err := os.ReadFile(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("ops: stat %s: %w", target, err)
	}
	sum := sha256.Sum256(data)
	return witness.BytesValue(sum[:]), true, nil
}

// Execute demands the rule's declared dependencies, then runs its
// command through "sh -c" with the working directory left at the
// process's own, capturing stdout/stderr for diagnostics on failure.
func (f *FileOps) Execute(ctx *ExecContext, key buildtypes.Key) (buildtypes.Value, time.Duration, []buildtypes.Trace, error) {
	start := time.Now()
	target := targetOf(key)

	rule, ok := f.rules[target]
	if !ok {
		return nil, time.Since(start), nil, fmt.Errorf("ops: no rule for target %q", target)
	}

	if len(rule.Deps) > 0 {
		depKeys := make([]buildtypes.Key, len(rule.Deps))
		for i, d := range rule.Deps {
			depKeys[i] = FileKey(d)
		}
		if _, err := ctx.Need(depKeys...); err != nil {
			return nil, time.Since(start), nil, err
		}
	}

	timeout := rule.Timeout
	if timeout == 0 {
		timeout = time.Minute
	}
	execCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "sh", "-c", rule.Command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	traces := []buildtypes.Trace{{
		Message: rule.Command,
		Start:   0,
		End:     time.Since(start).Seconds(),
	}}

	if runErr != nil {
		msg := fmt.Sprintf("%v", runErr)
		if stderr.Len() > 0 {
			msg = fmt.Sprintf("%s: %s", msg, stderr.String())
		}
		return nil, time.Since(start), traces, fmt.Errorf("ops: command for %s failed: %s", target, msg)
	}

	value, err := f.valueFor(target, stdout.Bytes(), rule.Phony)
	if err != nil {
		return nil, time.Since(start), traces, err
	}
	if rule.Phony {
		value = witness.PhonyValue{Inner: value.(witness.BytesValue)}
	}
	return value, time.Since(start), traces, nil
}

// valueFor prefers the content the rule actually wrote to Target; a rule
// that only emits output on stdout (no on-disk artifact, or is marked
// Phony) is fingerprinted by that output instead.
func (f *FileOps) valueFor(target string, stdout []byte, phony bool) (buildtypes.Value, error) {
	if !phony {
		data, err := os.ReadFile(target)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("ops: reading %s after build: %w", target, err)
		} else if err == nil {
			sum := sha256.Sum256(data)
			return witness.BytesValue(sum[:]), nil
		}
	}
	sum := sha256.Sum256(stdout)
	return witness.BytesValue(sum[:]), nil
}

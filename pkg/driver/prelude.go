package driver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/google/uuid"

	"github.com/mizuy/microlisp/pkg/interpreter"
	"github.com/mizuy/microlisp/pkg/parser"
)

// LoadPrelude evaluates every prelude source of cfg into interp, in order.
func LoadPrelude(interp *interpreter.Interpreter, cfg *Config) error {
	if cfg == nil {
		return nil
	}
	for _, spec := range cfg.Prelude {
		path, err := ResolvePrelude(cfg.CacheDir, spec)
		if err != nil {
			return fmt.Errorf("prelude %s: %w", spec.Describe(), err)
		}
		if _, err := EvalFile(interp, path); err != nil {
			return fmt.Errorf("prelude %s: %w", spec.Describe(), err)
		}
	}
	return nil
}

// ResolvePrelude returns the local file backing spec, fetching git sources
// into cacheDir when needed.
func ResolvePrelude(cacheDir string, spec *PreludeSpec) (string, error) {
	if spec == nil {
		return "", fmt.Errorf("missing prelude entry")
	}
	if spec.Git == "" {
		return spec.Path, nil
	}
	if cacheDir == "" {
		return "", fmt.Errorf("cache_dir is required for git sources")
	}
	baseDir := filepath.Join(cacheDir, "git", sanitizePathSegment(spec.Git))
	commit, err := ensureGitCheckout(baseDir, spec.Git, spec)
	if err != nil {
		return "", err
	}
	return filepath.Join(baseDir, commit, filepath.FromSlash(spec.File)), nil
}

// EvalFile evaluates every expression in the file at path and returns how
// many were evaluated.
func EvalFile(interp *interpreter.Interpreter, path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	count, err := EvalSource(interp, file)
	if err != nil {
		return count, fmt.Errorf("%s: %w", path, err)
	}
	return count, nil
}

// EvalSource evaluates expressions from r silently until end of input.
func EvalSource(interp *interpreter.Interpreter, r io.Reader) (int, error) {
	reader := parser.NewReader(r)
	reader.SetMaxDepth(interp.MaxDepth())
	count := 0
	for {
		expr, err := reader.Read()
		if err != nil {
			var parseErr *parser.ParseError
			if !errors.As(err, &parseErr) && errors.Is(err, parser.ErrEndOfInput) {
				return count, nil
			}
			return count, err
		}
		count++
		if _, err := interp.Eval(expr); err != nil {
			return count, fmt.Errorf("expression %d: %w", count, err)
		}
	}
}

func (p *PreludeSpec) revision() (plumbing.Revision, string, error) {
	if rev := strings.TrimSpace(p.Rev); rev != "" {
		return plumbing.Revision(rev), rev, nil
	}
	if tag := strings.TrimSpace(p.Tag); tag != "" {
		return plumbing.Revision("refs/tags/" + tag), tag, nil
	}
	if branch := strings.TrimSpace(p.Branch); branch != "" {
		// Clones track branches as remote refs; only the default branch is local.
		return plumbing.Revision("refs/remotes/origin/" + branch), branch, nil
	}
	return "", "", fmt.Errorf("git sources require rev, tag, or branch")
}

// revMarkerPrefix names the files recording which commit an explicit rev
// resolved to, so later runs can reuse the checkout offline.
const revMarkerPrefix = "rev-"

// ensureGitCheckout returns the commit for spec, making sure a checkout of it
// exists at baseDir/<commit>. Tags and branches are resolved against a fresh
// clone every time; an explicit rev seen before is served from the cache.
func ensureGitCheckout(baseDir, url string, spec *PreludeSpec) (string, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return "", err
	}

	revision, _, err := spec.revision()
	if err != nil {
		return "", err
	}

	explicitRev := strings.TrimSpace(spec.Rev)
	if explicitRev != "" {
		if commit, ok := pinnedCommit(baseDir, explicitRev); ok {
			return commit, nil
		}
	}

	stagingDir := filepath.Join(baseDir, "fetch-"+uuid.NewString())
	commit, err := cloneAndCheckout(stagingDir, url, revision)
	if err != nil {
		_ = os.RemoveAll(stagingDir)
		return "", err
	}

	targetDir := filepath.Join(baseDir, commit)
	if _, err := os.Stat(targetDir); err == nil {
		_ = os.RemoveAll(stagingDir)
	} else if err := os.Rename(stagingDir, targetDir); err != nil {
		_ = os.RemoveAll(stagingDir)
		return "", err
	}

	if explicitRev != "" {
		marker := filepath.Join(baseDir, revMarkerPrefix+sanitizePathSegment(explicitRev))
		if err := os.WriteFile(marker, []byte(commit+"\n"), 0o644); err != nil {
			return "", fmt.Errorf("record revision %s: %w", explicitRev, err)
		}
	}
	return commit, nil
}

func cloneAndCheckout(dir, url string, revision plumbing.Revision) (string, error) {
	repo, err := git.PlainClone(dir, false, &git.CloneOptions{
		URL:               url,
		RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
	})
	if err != nil {
		return "", fmt.Errorf("git clone %s: %w", url, err)
	}
	hash, err := repo.ResolveRevision(revision)
	if err != nil {
		return "", fmt.Errorf("resolve revision %s: %w", revision, err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return "", err
	}
	if err := worktree.Checkout(&git.CheckoutOptions{
		Hash:  *hash,
		Force: true,
	}); err != nil {
		return "", fmt.Errorf("git checkout %s: %w", revision, err)
	}
	return hash.String(), nil
}

// pinnedCommit looks up the commit an earlier run resolved rev to. A full
// commit hash needs no marker when its checkout exists.
func pinnedCommit(baseDir, rev string) (string, bool) {
	commit := strings.ToLower(rev)
	if !plumbing.IsHash(commit) {
		data, err := os.ReadFile(filepath.Join(baseDir, revMarkerPrefix+sanitizePathSegment(rev)))
		if err != nil {
			return "", false
		}
		commit = strings.TrimSpace(string(data))
		if !plumbing.IsHash(commit) {
			return "", false
		}
	}
	if info, err := os.Stat(filepath.Join(baseDir, commit)); err != nil || !info.IsDir() {
		return "", false
	}
	return commit, true
}

func sanitizePathSegment(segment string) string {
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return "head"
	}
	var b strings.Builder
	for _, r := range segment {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

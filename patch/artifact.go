package patch

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"
)

// Artifact is a build output file whose name embeds a content hash the
// builder generated, e.g. "index.3f9a1c.js".
type Artifact struct {
	// Base is the logical name without hash or extension ("index").
	Base string
	// Hash is the fingerprint segment between base and extension.
	Hash string
	// Path is the file path, rooted at the directory passed to Discover.
	Path string
}

// Dir returns the directory containing the artifact.
func (a Artifact) Dir() string {
	return filepath.Dir(a.Path)
}

// Stem strips the ".js" extension from a canonical file name.
// "index.js" yields "index"; a name without the extension is returned as is.
func Stem(name string) string {
	return strings.TrimSuffix(filepath.Base(name), ".js")
}

// HashedPattern matches "<base>.<hash>.js" file names. The canonical
// "<base>.js" never matches, which keeps patching idempotent.
func HashedPattern(base string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(base) + `\.([^./]+)\.js$`)
}

// Discover walks root in lexical order and returns every hashed artifact
// for base, in walk order. A missing root yields no artifacts.
func Discover(root, base string) ([]Artifact, error) {
	re := HashedPattern(base)
	var found []Artifact
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && isNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if m := re.FindStringSubmatch(d.Name()); m != nil {
			found = append(found, Artifact{Base: base, Hash: m[1], Path: path})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover %s under %s: %w", base, root, err)
	}
	return found, nil
}

// Lookup returns the first hashed artifact for base in lexical walk
// order. ok is false when none exists. candidates reports how many
// matched so callers can flag ambiguous builds.
func Lookup(root, base string) (a Artifact, candidates int, ok bool, err error) {
	found, err := Discover(root, base)
	if err != nil || len(found) == 0 {
		return Artifact{}, len(found), false, err
	}
	return found[0], len(found), true, nil
}

// lookupFile returns the first file named exactly name under root.
func lookupFile(root, name string) (string, bool, error) {
	var hit string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && isNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if !d.IsDir() && d.Name() == name {
			hit = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("find %s under %s: %w", name, root, err)
	}
	return hit, hit != "", nil
}

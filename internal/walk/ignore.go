package walk

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/tgrep/internal/debug"
)

// Per-directory ignore files, lowest precedence first. A later file's rules
// override an earlier one's for the same path.
var defaultIgnoreFiles = []string{".gitignore", ".ignore", ".rgignore"}

// ignoreRule is a single gitignore line.
type ignoreRule struct {
	Pattern   string
	Negate    bool
	Directory bool // trailing "/": only matches directories
	Anchored  bool // leading "/" or an inner "/": relative to the rule file's directory
}

// ruleSet holds the rules loaded from one directory. base is the directory
// relative to the walk root ("" for the root itself).
type ruleSet struct {
	base  string
	rules []ignoreRule
}

// parseIgnoreLine parses one line of an ignore file. ok is false for blank
// lines and comments.
func parseIgnoreLine(line string) (ignoreRule, bool) {
	line = strings.TrimRight(line, "\r")
	if !strings.HasSuffix(line, `\ `) {
		line = strings.TrimRight(line, " \t")
	}
	if line == "" || strings.HasPrefix(line, "#") {
		return ignoreRule{}, false
	}

	rule := ignoreRule{}
	if strings.HasPrefix(line, "!") {
		rule.Negate = true
		line = line[1:]
	} else if strings.HasPrefix(line, `\!`) || strings.HasPrefix(line, `\#`) {
		line = line[1:]
	}

	if strings.HasSuffix(line, "/") {
		rule.Directory = true
		line = strings.TrimSuffix(line, "/")
	}

	if strings.HasPrefix(line, "/") {
		rule.Anchored = true
		line = strings.TrimPrefix(line, "/")
	} else if strings.Contains(line, "/") {
		rule.Anchored = true
	}

	if line == "" {
		return ignoreRule{}, false
	}
	rule.Pattern = line
	return rule, true
}

// matches reports whether the rule applies to rel, a slash-separated path
// relative to the rule file's directory.
func (r ignoreRule) matches(rel string, isDir bool) bool {
	if r.Directory && !isDir {
		return false
	}
	if r.Anchored {
		ok, _ := doublestar.Match(r.Pattern, rel)
		return ok
	}
	ok, _ := doublestar.Match(r.Pattern, baseName(rel))
	return ok
}

func baseName(rel string) string {
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		return rel[i+1:]
	}
	return rel
}

// loadRules reads an ignore file. A missing or unreadable file yields no rules.
func loadRules(path string) []ignoreRule {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var rules []ignoreRule
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if rule, ok := parseIgnoreLine(scanner.Text()); ok {
			rules = append(rules, rule)
		}
	}
	if err := scanner.Err(); err != nil {
		debug.LogWalk("partial read of %s: %v\n", path, err)
	}
	return rules
}

// ignoreStack is the chain of rule sets in effect for a directory: global
// rules first, then one set per ancestor directory that had ignore files.
type ignoreStack []ruleSet

// push loads the ignore files of dir (relative base rel) and returns the
// extended stack. The receiver is not modified.
func (s ignoreStack) push(dir, rel string, names []string) ignoreStack {
	var rules []ignoreRule
	for _, name := range names {
		rules = append(rules, loadRules(filepath.Join(dir, name))...)
	}
	if len(rules) == 0 {
		return s
	}
	next := make(ignoreStack, len(s), len(s)+1)
	copy(next, s)
	return append(next, ruleSet{base: rel, rules: rules})
}

// ignored applies every rule in scope to rel (relative to the walk root);
// the last matching rule decides.
func (s ignoreStack) ignored(rel string, isDir bool) bool {
	ignored := false
	for _, set := range s {
		local := rel
		if set.base != "" {
			if !strings.HasPrefix(rel, set.base+"/") {
				continue
			}
			local = rel[len(set.base)+1:]
		}
		for _, rule := range set.rules {
			if rule.matches(local, isDir) {
				ignored = !rule.Negate
			}
		}
	}
	return ignored
}

// globalIgnoreRules returns the user's global git excludes and the
// repository's .git/info/exclude for root.
func globalIgnoreRules(root string) []ignoreRule {
	var rules []ignoreRule
	if path := globalExcludesPath(); path != "" {
		rules = append(rules, loadRules(path)...)
	}
	rules = append(rules, loadRules(filepath.Join(root, ".git", "info", "exclude"))...)
	return rules
}

func globalExcludesPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "git", "ignore")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "git", "ignore")
}

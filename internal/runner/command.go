package runner

import (
	"fmt"
	"path"
	"path/filepath"
	"runtime"
	"strings"
)

// Invocation is a fully resolved runner command for one spec.
type Invocation struct {
	Argv []string
	// Extra environment entries appended to os.Environ()
	Env []string
	Dir string
}

// CommandBuilder maps a spec path onto the wrapped runner's CLI.
type CommandBuilder struct {
	Root string
	// Shell command override; the spec path is appended as an argument
	Override string
	Browser  string
	BaseURL  string
}

// Build constructs the invocation for a spec. Detection follows the
// spec's own extension rather than project marker files: the spec path
// already encodes which runner owns it.
func (b *CommandBuilder) Build(specPath string) (Invocation, error) {
	if b.Override != "" {
		return Invocation{
			Argv: shellArgv(b.Override + " " + specPath),
			Dir:  b.Root,
		}, nil
	}

	lower := strings.ToLower(specPath)
	switch {
	case strings.HasSuffix(lower, "_test.go"):
		pkg := "./" + path.Dir(filepath.ToSlash(specPath))
		return Invocation{
			Argv: []string{"go", "test", "-count=1", pkg},
			Dir:  b.Root,
		}, nil

	case strings.Contains(lower, ".cy."):
		inv := Invocation{
			Argv: []string{"npx", "cypress", "run", "--spec", specPath},
			Dir:  b.Root,
		}
		if b.Browser != "" {
			inv.Argv = append(inv.Argv, "--browser", b.Browser)
		}
		if b.BaseURL != "" {
			inv.Env = append(inv.Env, "CYPRESS_BASE_URL="+b.BaseURL)
		}
		return inv, nil

	case strings.Contains(lower, ".test.") || strings.Contains(lower, ".spec."):
		return Invocation{
			Argv: []string{"npx", "jest", "--runTestsByPath", specPath},
			Dir:  b.Root,
		}, nil
	}

	return Invocation{}, fmt.Errorf("no runner known for spec %s", specPath)
}

// shellArgv wraps a command string for the platform shell.
func shellArgv(command string) []string {
	if runtime.GOOS == "windows" {
		return []string{"cmd", "/C", command}
	}
	return []string{"sh", "-c", command}
}

//go:build targ

package main

import (
	"fmt"
	"go/format"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/akedrou/textdiff"
	"github.com/toejough/targ"
	"github.com/toejough/targ/sh"
)

// Build builds the local standingen binary.
func Build() error {
	fmt.Println("Building standingen...")

	if err := os.MkdirAll("bin", 0o755); err != nil {
		return fmt.Errorf("failed to create bin directory: %w", err)
	}

	return sh.Run("go", "build", "-o", "bin/standingen", "./standingen")
}

// Check runs all checks & fixes on the code, in order of correctness.
func Check() error {
	fmt.Println("Checking...")

	return targ.Deps(
		Tidy,       // clean up the module dependencies
		FormatDiff, // no use linting misformatted code
		Test,       // does our code work?
		Lint,
	)
}

// Test runs the test suite with the race detector and a coverage profile.
func Test() error {
	fmt.Println("Testing...")

	return sh.Run("go", "test", "-race", "-coverprofile=coverage.out", "./...")
}

// Lint runs the linters.
func Lint() error {
	fmt.Println("Linting...")

	return sh.Run("golangci-lint", "run", "./...")
}

// Tidy tidies the module dependencies.
func Tidy() error {
	fmt.Println("Tidying...")

	return sh.Run("go", "mod", "tidy")
}

// Generate regenerates the doubles declared by go:generate comments.
func Generate() error {
	fmt.Println("Generating...")

	if err := targ.Deps(Build); err != nil {
		return err
	}

	return sh.Run("go", "generate", "./...")
}

// Mutate runs the mutation testing gate.
func Mutate() error {
	fmt.Println("Mutation testing...")

	return sh.Run("go", "test", "-tags", "mutation", "-run", "TestMutation", ".")
}

// FormatDiff reports every file gofmt would change, as a unified diff.
func FormatDiff() error {
	fmt.Println("Checking formatting...")

	var dirty []string

	err := filepath.WalkDir(".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		name := entry.Name()
		if entry.IsDir() {
			if path != "." && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "bin") {
				return filepath.SkipDir
			}

			return nil
		}

		if !strings.HasSuffix(name, ".go") {
			return nil
		}

		onDisk, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		formatted, err := format.Source(onDisk)
		if err != nil {
			return fmt.Errorf("failed to format %s: %w", path, err)
		}

		if string(onDisk) != string(formatted) {
			dirty = append(dirty, path)
			fmt.Print(textdiff.Unified(path, path+" (gofmt)", string(onDisk), string(formatted)))
		}

		return nil
	})
	if err != nil {
		return err
	}

	if len(dirty) > 0 {
		return fmt.Errorf("gofmt would change %d file(s): %s", len(dirty), strings.Join(dirty, ", "))
	}

	return nil
}

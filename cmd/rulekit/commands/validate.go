package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rulekit/rulekit/pkg/rule"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate rule documents",
		Long: `Validate YAML rule documents without running them.

This command checks:
  - YAML syntax validity
  - Required document fields (uid, module id and type)
  - Structural soundness (at least one trigger, unique module IDs)

Templated rules are checked structurally but their template
references are not expanded.`,
		Example: `  # Validate all rule files in the current directory
  rulekit validate

  # Validate a specific directory or file
  rulekit validate ./rules
  rulekit validate ./rules/lighting.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return validatePath(cmd.OutOrStdout(), path)
		},
	}

	return cmd
}

func validatePath(out io.Writer, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	var files []string
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			ext := strings.ToLower(filepath.Ext(entry.Name()))
			if ext == ".yaml" || ext == ".yml" {
				files = append(files, filepath.Join(path, entry.Name()))
			}
		}
	} else {
		files = []string{path}
	}

	if len(files) == 0 {
		return fmt.Errorf("no rule files found in %s", path)
	}

	validate := validator.New()
	var checked, failed int
	for _, file := range files {
		docs, errs := validateFile(validate, file)
		checked += docs
		failed += len(errs)
		for _, err := range errs {
			fmt.Fprintf(out, "%s: %v\n", file, err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d documents invalid", failed, checked)
	}
	fmt.Fprintf(out, "%d documents valid in %d files\n", checked, len(files))
	return nil
}

// validateFile returns the number of documents seen and one error per
// invalid document.
func validateFile(validate *validator.Validate, path string) (int, []error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, []error{err}
	}
	defer f.Close()

	var (
		docs int
		errs []error
	)
	dec := yaml.NewDecoder(f)
	for {
		var doc rule.Document
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			errs = append(errs, fmt.Errorf("yaml: %w", err))
			break
		}
		docs++
		if err := validate.Struct(&doc); err != nil {
			errs = append(errs, fmt.Errorf("document %q: %w", doc.UID, err))
			continue
		}
		if err := doc.ToRule().ValidateStructure(); err != nil {
			errs = append(errs, fmt.Errorf("document %q: %w", doc.UID, err))
		}
	}
	return docs, errs
}

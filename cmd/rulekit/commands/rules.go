package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rulekit/rulekit/pkg/config"
	"github.com/rulekit/rulekit/pkg/provider"
	"github.com/rulekit/rulekit/pkg/rule"
	"github.com/rulekit/rulekit/pkg/stores"
)

func newRulesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect configured rules",
		Long:  `Inspect the rules known to the store and the rules directory.`,
	}

	cmd.AddCommand(newRulesListCommand())

	return cmd
}

func newRulesListCommand() *cobra.Command {
	var tag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rules",
		Long: `List rules from the configured store and rules directory.

Output columns are the rule UID, its name, the source it was loaded
from, and its tags.`,
		Example: `  # List all rules
  rulekit rules list

  # List rules with a tag, as JSON
  rulekit rules list --tag security --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRules(cmd.Context(), cmd.OutOrStdout(), tag)
		},
	}

	cmd.Flags().StringVar(&tag, "tag", "", "only list rules carrying this tag")

	return cmd
}

type ruleListing struct {
	UID    string   `json:"uid"`
	Name   string   `json:"name"`
	Source string   `json:"source"`
	Tags   []string `json:"tags,omitempty"`
}

func listRules(ctx context.Context, out io.Writer, tag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	var listings []ruleListing

	if cfg.Store.Path != "" {
		stored, err := listStoredRules(ctx, cfg)
		if err != nil {
			return err
		}
		listings = append(listings, stored...)
	}

	if cfg.Rules.Directory != "" {
		fromFiles, err := listFileRules(ctx, cfg)
		if err != nil {
			return err
		}
		listings = append(listings, fromFiles...)
	}

	if tag != "" {
		filtered := listings[:0]
		for _, l := range listings {
			for _, t := range l.Tags {
				if t == tag {
					filtered = append(filtered, l)
					break
				}
			}
		}
		listings = filtered
	}

	sort.Slice(listings, func(i, j int) bool { return listings[i].UID < listings[j].UID })

	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(listings)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "UID\tNAME\tSOURCE\tTAGS")
	for _, l := range listings {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", l.UID, l.Name, l.Source, strings.Join(l.Tags, ","))
	}
	return w.Flush()
}

func listStoredRules(ctx context.Context, cfg *config.Config) ([]ruleListing, error) {
	store, err := stores.NewSQLiteStore(cfg.StoreOptions())
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return nil, err
	}

	stored, err := store.ListRules(ctx, 0, 0)
	if err != nil {
		return nil, err
	}

	listings := make([]ruleListing, 0, len(stored))
	for _, sr := range stored {
		var doc rule.Document
		if err := json.Unmarshal([]byte(sr.Document), &doc); err != nil {
			continue
		}
		listings = append(listings, ruleListing{
			UID:    doc.UID,
			Name:   doc.Name,
			Source: "store",
			Tags:   doc.Tags,
		})
	}
	return listings, nil
}

func listFileRules(ctx context.Context, cfg *config.Config) ([]ruleListing, error) {
	files, err := provider.NewFileProvider(provider.FileOptions{
		Directory: cfg.Rules.Directory,
		Watch:     false,
	})
	if err != nil {
		return nil, err
	}
	if err := files.Start(ctx); err != nil {
		return nil, err
	}
	defer files.Close()

	rules := files.Rules()
	listings := make([]ruleListing, 0, len(rules))
	for _, r := range rules {
		listings = append(listings, ruleListing{
			UID:    r.UID(),
			Name:   r.Name(),
			Source: "file",
			Tags:   r.Tags(),
		})
	}
	return listings, nil
}

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go-element-manager/internal/chunkmanager"
	"go-element-manager/internal/config"
	"go-element-manager/internal/model"
	"go-element-manager/internal/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// cli carries what the subcommands share. The manager is opened lazily in
// PersistentPreRunE so --help works without a store.
type cli struct {
	v       *viper.Viper
	cfgFile string
	manager *chunkmanager.ChunkManager
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:          "elementctl",
		Short:        "Maintain the chunks served by the element manager",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.open(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if c.manager != nil {
				return c.manager.GetStore().Close()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default ./element-manager.yaml)")
	root.PersistentFlags().String("store-driver", "", "override store.driver (json or sqlite)")
	root.PersistentFlags().String("store-path", "", "override store.path")
	_ = c.v.BindPFlag("store.driver", root.PersistentFlags().Lookup("store-driver"))
	_ = c.v.BindPFlag("store.path", root.PersistentFlags().Lookup("store-path"))

	root.AddCommand(
		c.listCmd(),
		c.getCmd(),
		c.createCmd(),
		c.lockCmd(true),
		c.lockCmd(false),
		c.deleteCmd(),
		c.importCmd(),
	)
	return root
}

func (c *cli) open(cmd *cobra.Command) error {
	cfg, err := config.Load(c.v, c.cfgFile)
	if err != nil {
		return err
	}
	c.logger = cfg.NewLogger(cmd.ErrOrStderr())
	store, err := storage.Open(cfg.Store.Driver, cfg.Store.Path, c.logger)
	if err != nil {
		return fmt.Errorf("error initializing storage: %w", err)
	}
	c.manager = chunkmanager.NewManager(store, c.logger)
	return nil
}

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all chunks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			chunks, err := c.manager.GetStore().ReadAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("error listing chunks: %w", err)
			}
			if len(chunks) == 0 {
				fmt.Fprintln(out, "No chunks found.")
				return nil
			}
			for _, ch := range chunks {
				status := "editable"
				if ch.Locked {
					status = "locked"
				}
				category := ch.Category
				if category == "" {
					category = "-"
				}
				fmt.Fprintf(out, "- ID: %s\n  Name: %s\n  Category: %s\n  Status: %s\n  Properties: %d\n\n",
					ch.ID, ch.Name, category, status, len(ch.Properties))
			}
			return nil
		},
	}
}

func (c *cli) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print a chunk as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ch, err := c.manager.GetStore().LoadChunk(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(ch)
		},
	}
}

func (c *cli) createCmd() *cobra.Command {
	var ch model.Chunk
	var snippetFile string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new chunk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if snippetFile != "" {
				body, err := os.ReadFile(snippetFile)
				if err != nil {
					return fmt.Errorf("reading snippet: %w", err)
				}
				ch.Snippet = string(body)
			}
			created, err := c.manager.CreateChunk(cmd.Context(), &ch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Successfully created chunk '%s' with ID '%s'\n", created.Name, created.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&ch.Name, "name", "", "name of the chunk (required)")
	cmd.Flags().StringVar(&ch.ID, "id", "", "chunk id (default: generated)")
	cmd.Flags().StringVar(&ch.Description, "description", "", "description")
	cmd.Flags().StringVar(&ch.Category, "category", "", "category")
	cmd.Flags().StringVar(&ch.Snippet, "snippet", "", "template body")
	cmd.Flags().StringVar(&snippetFile, "snippet-file", "", "read the template body from a file")
	cmd.Flags().BoolVar(&ch.Locked, "locked", false, "lock the chunk for editing")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (c *cli) lockCmd(lock bool) *cobra.Command {
	use, short := "lock <id>", "Lock a chunk for editing"
	if !lock {
		use, short = "unlock <id>", "Unlock a chunk"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ch, err := c.manager.SetLocked(cmd.Context(), args[0], lock)
			if err != nil {
				return err
			}
			state := "unlocked"
			if ch.Locked {
				state = "locked"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Chunk '%s' (ID: %s) is now %s\n", ch.Name, ch.ID, state)
			return nil
		},
	}
}

func (c *cli) deleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>[,<id>...]",
		Short: "Delete chunks by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			var ids []string
			for _, id := range strings.Split(args[0], ",") {
				if id = strings.TrimSpace(id); id != "" {
					ids = append(ids, id)
				}
			}
			if !yes && !askForConfirmation(cmd.InOrStdin(), out, fmt.Sprintf("Delete %d chunk(s)?", len(ids))) {
				fmt.Fprintln(out, "Operation cancelled.")
				return nil
			}

			failCount := 0
			for _, id := range ids {
				if err := c.manager.DeleteChunk(cmd.Context(), id); err != nil {
					fmt.Fprintf(out, "Error deleting %s: %v\n", id, err)
					failCount++
					continue
				}
				fmt.Fprintf(out, "Deleted chunk %s\n", id)
			}
			fmt.Fprintf(out, "\n--- Delete Summary ---\nDeleted: %d, failed: %d\n", len(ids)-failCount, failCount)
			if failCount > 0 {
				return fmt.Errorf("%d chunk(s) could not be deleted", failCount)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func (c *cli) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Create or replace chunks from a YAML seed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.manager.ImportFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s: %d created, %d updated\n", args[0], res.Created, res.Updated)
			return nil
		},
	}
}

// askForConfirmation reads y/N answers until it gets a valid one.
func askForConfirmation(in io.Reader, out io.Writer, prompt string) bool {
	reader := bufio.NewReader(in)
	for {
		fmt.Fprintf(out, "%s [y/N]: ", prompt)
		response, err := reader.ReadString('\n')
		response = strings.ToLower(strings.TrimSpace(response))
		switch response {
		case "y", "yes":
			return true
		case "n", "no", "":
			return false
		}
		if err != nil {
			return false
		}
	}
}

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/clipreel/clipreel/internal/catalog"
	"github.com/clipreel/clipreel/internal/db"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the local SQLite catalog",
	}
	cmd.AddCommand(newCatalogImportCommand(ctx))
	return cmd
}

func newCatalogImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Load user catalog documents (a JSON object or array) into the local catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.ensureLogger()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			users, err := decodeCatalogs(data)
			if err != nil {
				return err
			}

			database, err := db.New(cfg.DBPath(), logger)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer database.Close()

			store := catalog.NewSQLiteStore(database.Conn())
			for _, u := range users {
				if err := store.SaveUser(cmd.Context(), u); err != nil {
					return fmt.Errorf("import user %q: %w", u.UserID, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %s (%d projects)\n", u.UserID, len(u.Projects))
			}
			return nil
		},
	}
}

// decodeCatalogs accepts one UserCatalog document or an array of them.
func decodeCatalogs(data []byte) ([]*catalog.UserCatalog, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("catalog file is empty")
	}

	var users []*catalog.UserCatalog
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &users); err != nil {
			return nil, fmt.Errorf("decode catalog array: %w", err)
		}
		return users, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	for {
		var u catalog.UserCatalog
		if err := dec.Decode(&u); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("decode catalog: %w", err)
		}
		users = append(users, &u)
	}
	return users, nil
}

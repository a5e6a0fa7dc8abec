package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"ariga.io/atlas-provider-gorm/gormschema"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/logging"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/offline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type generator struct {
	dir    string
	devURL string
}

func main() {
	err := newRootCmd().Execute()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &generator{}

	cmd := &cobra.Command{
		Use:          "migrate-generate <name>",
		Short:        "Diff the local store model against the migration dir with atlas",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, args []string) error {
			return g.run(filepath.Base(args[0]))
		},
	}

	cmd.Flags().StringVar(&g.dir, "dir", "internal/database/migrations", "migration directory")
	cmd.Flags().StringVar(&g.devURL, "dev-url", "sqlite://dev?mode=memory", "atlas dev database")

	return cmd
}

func (g *generator) run(name string) error {
	schema, err := gormschema.New("sqlite").Load(&offline.LocalState{})
	if err != nil {
		return fmt.Errorf("load gorm schema: %w", err)
	}

	schemaFile, err := writeSchema(schema)
	if err != nil {
		return err
	}
	defer os.Remove(schemaFile)

	out, err := exec.Command("atlas", g.diffArgs(name, schemaFile)...).CombinedOutput()
	if err != nil {
		logging.Logger.Error("atlas diff failed", zap.ByteString("output", out), zap.Error(err))
		return err
	}

	logging.Logger.Info("migration generated", zap.String("dir", g.dir), zap.ByteString("output", out))

	return nil
}

func (g *generator) diffArgs(name, schemaFile string) []string {
	return []string{
		"migrate", "diff", name,
		"--to", "file://" + schemaFile,
		"--dev-url", g.devURL,
		"--dir", "file://" + g.dir + "?format=golang-migrate",
	}
}

// writeSchema stores schema in a temp file and returns its absolute path.
func writeSchema(schema string) (string, error) {
	tmp, err := os.CreateTemp("", "schema-*.sql")
	if err != nil {
		return "", err
	}

	_, err = tmp.WriteString(schema)
	closeErr := tmp.Close()

	if err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}

	return filepath.Abs(tmp.Name())
}

// Package cli implements the chartgenie command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chartgenie/chartgenie/internal/config"
	"github.com/chartgenie/chartgenie/internal/telemetry"
)

type rootOptions struct {
	cfgFile  string
	output   string
	logLevel string
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

// NewRootCommand builds the chartgenie command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "chartgenie",
		Short:         "Turn CSV files into charts and answers",
		Long:          "chartgenie classifies CSV columns, picks charts automatically and answers natural-language questions about the data.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	opts.bind(cmd)

	cmd.AddCommand(
		newServeCommand(opts),
		newAnalyzeCommand(opts),
		newAskCommand(opts),
		newRenderCommand(opts),
	)
	return cmd
}

// NewServeCommand is the standalone server command used by cmd/server.
func NewServeCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := newServeCommand(opts)
	cmd.Use = "chartgenie-server"
	opts.bind(cmd)
	return cmd
}

func (o *rootOptions) bind(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVar(&o.cfgFile, "config", "", "config file (default ./chartgenie.yaml or ~/.chartgenie/chartgenie.yaml)")
	f.StringVarP(&o.output, "output", "o", "json", "output format: json or yaml")
	f.StringVar(&o.logLevel, "log-level", "", "log level (overrides config)")
}

// load reads configuration and sets up logging on stderr.
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	telemetry.SetupLogger(cfg.Log, os.Stderr)
	return cfg, nil
}

// write encodes v in the selected output format. YAML goes through JSON
// first so custom JSON encodings are honoured.
func (o *rootOptions) write(w io.Writer, v any) error {
	switch o.output {
	case "yaml", "yml":
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(generic)
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format %q", o.output)
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/archcatalog/catalog/api"
	"github.com/archcatalog/catalog/config"
	"github.com/archcatalog/catalog/logger"
	"github.com/archcatalog/catalog/services/apis"
	"github.com/archcatalog/catalog/services/corpus"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const programName = "catalog"

func main() {
	godotenv.Load()

	if err := Execute(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// Execute builds the command tree and runs it against args. Serving is the default command.
func Execute(args []string, out io.Writer) error {
	var env string

	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Repository catalog: search and API discovery over a local corpus",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, env)
		},
	}
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "configuration environment (config/config.<env>.yaml)")
	registerFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the HTTP API",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return serve(cmd, env)
			},
		},
		&cobra.Command{
			Use:   "rebuild",
			Short: "Rebuild the search index once and print a summary",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return rebuild(cmd, env, out)
			},
		},
		&cobra.Command{
			Use:   "detect <repository>",
			Short: "Print the API specifications detected in a repository",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return detect(cmd, env, args[0], out)
			},
		},
	)

	rootCmd.SetArgs(args)
	rootCmd.SetOut(out)

	return rootCmd.ExecuteContext(context.Background())
}

func registerFlags(flags *pflag.FlagSet) {
	flags.String("port", "", "HTTP port")
	flags.String("corpus-root", "", "directory holding one sub-directory per repository")
	flags.String("kvdb-path", "", "path of the rebuild history database")
	flags.String("log-level", "", "debug, info, warn or error")
}

func loadConfig(cmd *cobra.Command, env string) (*config.Config, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.BindFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serve(cmd *cobra.Command, env string) error {
	cfg, err := loadConfig(cmd, env)
	if err != nil {
		return err
	}

	return api.Run(cmd.Context(), cfg, logger.New(cfg.GetLogLevel()))
}

func rebuild(cmd *cobra.Command, env string, out io.Writer) error {
	cfg, err := loadConfig(cmd, env)
	if err != nil {
		return err
	}

	deps, err := api.NewDependencies(cfg, logger.New(cfg.GetLogLevel()))
	if err != nil {
		return err
	}
	defer deps.Close()

	result, err := deps.Builder.Rebuild(cmd.Context())
	if err != nil {
		return err
	}

	return writeJSON(out, result)
}

func detect(cmd *cobra.Command, env string, repository string, out io.Writer) error {
	cfg, err := loadConfig(cmd, env)
	if err != nil {
		return err
	}

	logger := logger.New(cfg.GetLogLevel())
	accessor := corpus.New(logger, cfg.GetCorpusRoot(), cfg.GetCorpusExcludes())
	if !accessor.RepositoryExists(repository) {
		return fmt.Errorf("repository not found: %s", repository)
	}

	detected := apis.New(logger, accessor, cfg.GetMaxSpecBytes()).Detect(repository)
	return writeJSON(out, map[string]any{"apis": detected, "hasAnyApis": detected.HasAny()})
}

func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

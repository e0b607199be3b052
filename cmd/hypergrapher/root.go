package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/siherrmann/hypergrapher"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cli carries the configuration shared by all commands.
type cli struct {
	v       *viper.Viper
	cfgFile string
	out     io.Writer
	errOut  io.Writer
	// connect opens the HyperGrapher a command works on.
	connect func(ctx context.Context) (*hypergrapher.HyperGrapher, error)
}

func newCLI() *cli {
	c := &cli{v: viper.New(), out: os.Stdout, errOut: os.Stderr}
	c.connect = c.open
	setDefaults(c.v)
	return c
}

func newRootCmd() *cobra.Command {
	return newCLI().command()
}

func (c *cli) command() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hypergrapher",
		Short: "Hypergraph retrieval index",
		Long: `hypergrapher chunks documents, extracts entities and n-ary facts with an LLM,
stores them as a hypergraph next to vector indexes and answers local search
queries by expanding from the most similar chunks over shared facts.

Configuration is read from .hypergrapher.yaml (home or working directory),
HYPERGRAPHER_* environment variables and command-line flags. Database
connections use the DB_* (PostgreSQL) and NEO4J_* (Neo4j) variables.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c.out = cmd.OutOrStdout()
			c.errOut = cmd.ErrOrStderr()
			return c.initConfig()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "config file (default is $HOME/.hypergrapher.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("store", "postgres", "graph store backend (postgres, neo4j, memory)")
	flags.String("embedder", "hugot", "embedding provider (hugot, openai, hash)")
	flags.String("embedding-model", "", "embedding model name")
	flags.Int("dimensions", 0, "embedding dimension for the openai and hash providers")
	flags.String("llm-model", "", "chat model used for extraction")

	_ = c.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = c.v.BindPFlag("store.backend", flags.Lookup("store"))
	_ = c.v.BindPFlag("embedder.provider", flags.Lookup("embedder"))
	_ = c.v.BindPFlag("embedder.model", flags.Lookup("embedding-model"))
	_ = c.v.BindPFlag("embedder.dimensions", flags.Lookup("dimensions"))
	_ = c.v.BindPFlag("llm.model", flags.Lookup("llm-model"))

	rootCmd.AddCommand(
		newInsertCmd(c),
		newQueryCmd(c),
		newHealthCmd(c),
		newResetCmd(c),
	)
	return rootCmd
}

// initConfig reads in the config file and environment variables if set.
func (c *cli) initConfig() error {
	if c.cfgFile != "" {
		c.v.SetConfigFile(c.cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			c.v.AddConfigPath(home)
		}
		c.v.AddConfigPath(".")
		c.v.SetConfigType("yaml")
		c.v.SetConfigName(".hypergrapher")
	}

	c.v.SetEnvPrefix("HYPERGRAPHER")
	c.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	c.v.AutomaticEnv()
	_ = c.v.BindEnv("llm.api_key", "HYPERGRAPHER_LLM_API_KEY", "OPENAI_API_KEY")
	_ = c.v.BindEnv("embedder.api_key", "HYPERGRAPHER_EMBEDDER_API_KEY", "OPENAI_API_KEY")

	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if c.cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	fmt.Fprintln(c.errOut, "Using config file:", c.v.ConfigFileUsed())
	return nil
}

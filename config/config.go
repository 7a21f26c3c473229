// Package config carries the runtime settings for the commands. Values
// come from defaults, C4SOLVE_* environment variables, and command-line
// flags, in increasing order of precedence.
package config

import (
	"flag"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	v    *viper.Viper
	args []string
}

func (c *Config) Load(args []string) error {
	c.v = viper.New()
	c.v.SetDefault("debug", false)
	c.v.SetDefault("threads", 1)
	c.v.SetDefault("table-mem-fraction", 0.25)
	c.v.SetDefault("node-budget", 0)
	c.v.SetDefault("moves", "")
	c.v.SetEnvPrefix("c4solve")
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	fs := flag.NewFlagSet("c4solve", flag.ContinueOnError)
	debug := fs.Bool("debug", false, "debug logging")
	threads := fs.Int("threads", 1, "number of root-split workers; below 2 is single-threaded")
	tableMem := fs.Float64("table-mem-fraction", 0.25, "fraction of system memory for the transposition table")
	nodeBudget := fs.Uint64("node-budget", 0, "abort the solve after this many nodes (0 = unlimited)")
	moves := fs.String("moves", "", "move sequence (digits 1-7) to solve; empty starts the interactive loop")
	if err := fs.Parse(args); err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "debug":
			c.v.Set("debug", *debug)
		case "threads":
			c.v.Set("threads", *threads)
		case "table-mem-fraction":
			c.v.Set("table-mem-fraction", *tableMem)
		case "node-budget":
			c.v.Set("node-budget", *nodeBudget)
		case "moves":
			c.v.Set("moves", *moves)
		}
	})
	c.args = fs.Args()
	return nil
}

// Args returns the positional arguments left after flag parsing.
func (c *Config) Args() []string {
	return c.args
}

func (c *Config) GetBool(key string) bool       { return c.v.GetBool(key) }
func (c *Config) GetString(key string) string   { return c.v.GetString(key) }
func (c *Config) GetInt(key string) int         { return c.v.GetInt(key) }
func (c *Config) GetUint64(key string) uint64   { return c.v.GetUint64(key) }
func (c *Config) GetFloat64(key string) float64 { return c.v.GetFloat64(key) }

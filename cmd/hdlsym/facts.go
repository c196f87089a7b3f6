package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/hdl-symex/internal/engine"
	"github.com/robert-at-pretension-io/hdl-symex/internal/facts"
	"github.com/robert-at-pretension-io/hdl-symex/internal/runner"
	"github.com/robert-at-pretension-io/hdl-symex/internal/validator"
)

type factsOptions struct {
	configPath string
	output     string
	deltaFrom  string
	deltaOut   string
	modules    []string
	top        string
}

func newFactsCmd() *cobra.Command {
	o := factsOptions{}
	cmd := &cobra.Command{
		Use:   "facts [design files...]",
		Short: "Dump the analysed design as relational fact tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args)
		},
	}
	cmd.Flags().StringVarP(&o.configPath, "config", "c", "", "configuration file")
	cmd.Flags().StringVarP(&o.output, "output", "o", "", "write facts JSON to file (default: stdout)")
	cmd.Flags().StringVar(&o.deltaFrom, "delta-from", "", "previous facts JSON to compute delta from")
	cmd.Flags().StringVar(&o.deltaOut, "delta-out", "", "write delta JSON to file (requires --delta-from)")
	cmd.Flags().StringSliceVar(&o.modules, "module", nil, "only emit rows of these modules")
	cmd.Flags().StringVarP(&o.top, "top", "t", "", "top module")
	return cmd
}

func (o *factsOptions) run(cmd *cobra.Command, args []string) error {
	if (o.deltaFrom == "") != (o.deltaOut == "") {
		return fmt.Errorf("--delta-from and --delta-out must be used together")
	}
	cfg, err := loadConfigFile(o.configPath, args)
	if err != nil {
		return err
	}
	if o.top != "" {
		cfg.Design.Top = o.top
	}

	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	r := runner.New(cfg, logger)
	d, _, err := r.LoadDesign(args)
	if err != nil {
		return err
	}
	opts := r.EngineOptions()
	opts.Log = logger
	e, err := engine.New(d, opts)
	if err != nil {
		return err
	}

	tables := facts.BuildTables(e)
	if len(o.modules) > 0 {
		keep := make(map[string]bool, len(o.modules))
		for _, m := range o.modules {
			keep[m] = true
		}
		tables = facts.FilterTablesByModules(tables, keep)
	}

	fv, err := validator.NewFactsValidator()
	if err != nil {
		return err
	}
	if err := fv.Validate(tables); err != nil {
		return err
	}

	if o.output != "" {
		if err := writeJSON(o.output, tables); err != nil {
			return fmt.Errorf("writing facts: %w", err)
		}
	} else if err := encodeJSON(cmd.OutOrStdout(), tables); err != nil {
		return fmt.Errorf("encoding facts: %w", err)
	}

	if o.deltaFrom != "" {
		prev, err := readTables(o.deltaFrom)
		if err != nil {
			return fmt.Errorf("reading delta-from: %w", err)
		}
		delta := facts.ComputeDelta(prev, tables)
		if err := writeJSON(o.deltaOut, delta); err != nil {
			return fmt.Errorf("writing delta: %w", err)
		}
	}
	return nil
}

func readTables(path string) (facts.Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return facts.Tables{}, err
	}
	defer func() { _ = f.Close() }()

	var tables facts.Tables
	if err := json.NewDecoder(f).Decode(&tables); err != nil {
		return facts.Tables{}, err
	}
	return tables, nil
}

func writeJSON(path string, data interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return encodeJSON(f, data)
}

func encodeJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

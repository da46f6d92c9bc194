package main

import (
	"github.com/jessevdk/go-flags"
	"github.com/litch/lndbalancer/config"
)

type options struct {
	ShowVersion bool `short:"v" long:"version" description:"Display version information and exit."`
	Debug       bool `long:"debug" description:"Start in debug mode."`
	Trace       bool `long:"trace" description:"Log raw channel data, implies --debug."`

	Args struct {
		ConfigPath string `positional-arg-name:"config" description:"Path to the YAML config file (default: config.yaml)"`
	} `positional-args:"yes"`
}

func loadOptions(args []string) (*options, error) {
	opts := options{}

	if _, err := flags.ParseArgs(&opts, args); err != nil {
		return nil, err
	}

	if opts.Args.ConfigPath == "" {
		opts.Args.ConfigPath = config.DefaultConfigPath
	}
	opts.Args.ConfigPath = config.CleanAndExpandPath(opts.Args.ConfigPath)

	return &opts, nil
}

package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-errors/errors"
	"github.com/litch/lndbalancer/bdb"
	"github.com/litch/lndbalancer/config"
	"github.com/litch/lndbalancer/policy"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

var (
	// Commit stores the current commit hash of this build. This should be set using -ldflags during compilation.
	commit string
	// Version stores the version string of this build. This should be set using -ldflags during compilation.
	version string
	// Stores the date of this build. This should be set using -ldflags during compilation.
	date string
)

// preview computes the policy lndbalancer would apply to a channel
func preview(cfg *config.AppConfig, localBalance uint64, capacity uint64) (*bdb.PolicyUpdate, error) {
	return policy.ForChannel(&bdb.Channel{
		ChanPoint:    "preview:0",
		LocalBalance: localBalance,
		Capacity:     capacity,
	}, &cfg.PolicyConfig)
}

func get(server string, path string) (string, error) {
	client := &http.Client{Timeout: 10 * time.Second}

	res, err := client.Get(server + path)
	if err != nil {
		return "", errors.Errorf("Could not reach lndbalancer: %v", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", errors.Errorf("Could not read response: %v", err)
	}

	if res.StatusCode != http.StatusOK {
		return "", errors.Errorf("Unexpected status %v: %s", res.Status, body)
	}

	return string(body), nil
}

// balanceMain is the true entry point for balance. This is required since defers
// created in the top-level scope of a main method aren't executed if os.Exit() is called.
func balanceMain() error {
	app := cli.NewApp()
	app.Name = "balance"
	app.Usage = "inspect the policies lndbalancer applies"
	app.EnableBashCompletion = true
	app.Version = version

	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Printf("version=%s commit=%s date=%s\n", version, commit, date)
	}

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "server",
			Value: "http://127.0.0.1:8080",
			Usage: "address of a running lndbalancer",
		},
	}

	app.Commands = []cli.Command{
		{
			Name:      "preview",
			ArgsUsage: "[local_balance] [capacity]",
			Aliases:   []string{"p"},
			Usage:     "show the policy a channel with the given balance would get",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "config",
					Value: config.DefaultConfigPath,
				},
			},
			Action: func(c *cli.Context) error {
				if c.NArg() != 2 {
					return errors.Errorf("Expected local balance and capacity, got %v arguments", c.NArg())
				}

				localBalance, err := strconv.ParseUint(c.Args().Get(0), 10, 64)
				if err != nil {
					return errors.Errorf("Could not parse local balance: %v", err)
				}
				capacity, err := strconv.ParseUint(c.Args().Get(1), 10, 64)
				if err != nil {
					return errors.Errorf("Could not parse capacity: %v", err)
				}

				cfg, err := config.Load(config.CleanAndExpandPath(c.String("config")))
				if err != nil {
					return err
				}

				update, err := preview(cfg, localBalance, capacity)
				if err != nil {
					return errors.Errorf("Could not compute policy: %v", err)
				}

				fmt.Printf("fee_rate=%v fee_rate_ppm=%d base_fee_msat=%d time_lock_delta=%d max_htlc_msat=%d\n",
					update.FeeRate, update.FeeRatePpm(), update.BaseFeeMsat, update.TimeLockDelta, update.MaxHtlcMsat)

				return nil
			},
		},
		{
			Name:  "health",
			Usage: "check that lndbalancer is up",
			Action: func(c *cli.Context) error {
				body, err := get(c.GlobalString("server"), "/health")
				if err != nil {
					return err
				}
				fmt.Println(body)
				return nil
			},
		},
		{
			Name:  "status",
			Usage: "show the outcome of the last tick",
			Action: func(c *cli.Context) error {
				body, err := get(c.GlobalString("server"), "/status")
				if err != nil {
					return err
				}
				fmt.Println(body)
				return nil
			},
		},
	}

	return app.Run(os.Args)
}

func main() {
	// Call the "real" main in a nested manner so the defers will properly
	// be executed in the case of a graceful shutdown.
	if err := balanceMain(); err != nil {
		log.WithError(err).Println("Failed running balance.")
		os.Exit(1)
	}
}

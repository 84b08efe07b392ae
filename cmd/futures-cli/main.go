// Command futures-cli places, queries and cancels USD-M futures orders through the
// order router, mints gateway service tokens and manages Vault credentials.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"binance-futures-client/config"
	"binance-futures-client/internal/app"
	"binance-futures-client/internal/binance"
	"binance-futures-client/internal/logging"
	"binance-futures-client/internal/orders"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, e *env, args []string) error
}

type env struct {
	cfg    *config.Config
	logger zerolog.Logger
	app    *app.App
}

var commands = []command{
	{"order", "place an order (-type, -symbol, -side, ...; -test for a test order)", runOrder},
	{"batch", "place a batch of orders from a JSON array file", runBatch},
	{"query", "query an order by id (-fallback tries the other endpoint)", runQuery},
	{"cancel", "cancel an order by id (-fallback tries the other endpoint)", runCancel},
	{"trailing", "place a trailing stop", runTrailing},
	{"stop-loss", "place a STOP_MARKET order", runStopLoss},
	{"take-profit", "place a TAKE_PROFIT_MARKET order", runTakeProfit},
	{"algo-open", "list open algo orders", runAlgoOpen},
	{"algo-all", "list historical algo orders", runAlgoAll},
	{"algo-cancel-all", "cancel every open algo order on a symbol", runAlgoCancelAll},
	{"time", "print the exchange server time", runTime},
	{"token", "mint a gateway service token", runToken},
	{"creds", "store, check or delete Vault credentials (set|check|delete)", runCreds},
}

// standalone commands run without building the exchange client
var standalone = map[string]bool{"token": true, "creds": true}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd, ok := findCommand(os.Args[1])
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, closer, err := logging.New(logging.Config{
		Level:     cfg.LoggingConfig.Level,
		Output:    "stderr",
		Component: "cli",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := &env{cfg: cfg, logger: logger}
	if !standalone[cmd.name] {
		e.app, err = app.Build(ctx, cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize client: %v\n", err)
			os.Exit(1)
		}
		defer e.app.Close()
	}

	if err := cmd.run(ctx, e, os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if hint := orders.Hint(err); hint != "" {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		os.Exit(1)
	}
}

func findCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: futures-cli <command> [flags]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-16s %s\n", c.name, c.usage)
	}
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Run 'futures-cli <command> -h' for command flags.")
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult(res *orders.OrderResult) error {
	return printJSON(struct {
		Ref    string              `json:"ref"`
		Result *orders.OrderResult `json:"result"`
	}{res.Ref(), res})
}

// paramFlag collects repeated -param key=value flags
type paramFlag binance.Params

func (p paramFlag) String() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k+"="+p[k])
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

func (p paramFlag) Set(value string) error {
	key, val, ok := strings.Cut(value, "=")
	if !ok || key == "" {
		return errors.New("expected key=value")
	}
	p[key] = val
	return nil
}

// idFlags are the identifier flags shared by query and cancel
type idFlags struct {
	symbol        string
	orderID       string
	clientOrderID string
	algoID        string
	clientAlgoID  string
	fallback      bool
}

func (f *idFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.symbol, "symbol", "", "trading pair, e.g. BTCUSDT")
	fs.StringVar(&f.orderID, "order-id", "", "legacy orderId")
	fs.StringVar(&f.clientOrderID, "client-id", "", "legacy origClientOrderId")
	fs.StringVar(&f.algoID, "algo-id", "", "algoId")
	fs.StringVar(&f.clientAlgoID, "client-algo-id", "", "clientAlgoId")
	fs.BoolVar(&f.fallback, "fallback", false, "try the other endpoint when the order is not found")
}

func (f *idFlags) params() binance.Params {
	return binance.Params{
		"symbol":            strings.ToUpper(f.symbol),
		"orderId":           f.orderID,
		"origClientOrderId": f.clientOrderID,
		"algoId":            f.algoID,
		"clientAlgoId":      f.clientAlgoID,
	}.Compact()
}


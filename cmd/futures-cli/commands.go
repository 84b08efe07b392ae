package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"binance-futures-client/internal/auth"
	"binance-futures-client/internal/binance"
	"binance-futures-client/internal/orders"
)

// decimalFlag parses a flag value as an exact decimal
type decimalFlag struct{ d *decimal.Decimal }

func (f decimalFlag) String() string {
	if f.d == nil {
		return ""
	}
	return f.d.String()
}

func (f decimalFlag) Set(value string) error {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return err
	}
	*f.d = d
	return nil
}

func decimalVar(fs *flag.FlagSet, d *decimal.Decimal, name, usage string) {
	fs.Var(decimalFlag{d}, name, usage)
}

func runOrder(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("order", flag.ContinueOnError)
	var (
		o     binance.OrderParams
		typ   string
		side  string
		tif   string
		test  bool
		extra = paramFlag{}
	)
	fs.StringVar(&o.Symbol, "symbol", "", "trading pair, e.g. BTCUSDT")
	fs.StringVar(&side, "side", "", "BUY or SELL")
	fs.StringVar(&typ, "type", "", "LIMIT, MARKET, STOP, STOP_MARKET, TAKE_PROFIT, TAKE_PROFIT_MARKET, TRAILING_STOP_MARKET")
	fs.StringVar(&tif, "tif", "", "time in force (GTC, IOC, FOK, GTX)")
	decimalVar(fs, &o.Quantity, "qty", "order quantity")
	decimalVar(fs, &o.Price, "price", "limit price")
	decimalVar(fs, &o.StopPrice, "stop", "stop / trigger price")
	fs.BoolVar(&o.ReduceOnly, "reduce-only", false, "reduce only")
	fs.StringVar(&o.NewClientOrderID, "client-id", "", "client order id")
	fs.BoolVar(&test, "test", false, "send to the test endpoint (legacy types only)")
	fs.Var(extra, "param", "extra key=value parameter (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	o.Symbol = strings.ToUpper(o.Symbol)
	o.Side = binance.Side(strings.ToUpper(side))
	o.Type = binance.OrderType(strings.ToUpper(typ))
	o.TimeInForce = binance.TimeInForce(strings.ToUpper(tif))

	params := o.Params()
	for k, v := range extra {
		params[k] = v
	}

	res, err := e.app.Router.NewOrder(ctx, params, test)
	if err != nil {
		var migrated *orders.ConditionalOrderMigratedError
		if errors.As(err, &migrated) {
			printJSON(migrated.Request)
		}
		return err
	}
	return printResult(res)
}

func runBatch(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	file := fs.String("file", "", "path to a JSON array of order objects (string values)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("-file is required")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("error reading batch file: %w", err)
	}
	var reqs []binance.Params
	if err := json.Unmarshal(data, &reqs); err != nil {
		return fmt.Errorf("error parsing batch file: %w", err)
	}

	results, err := e.app.Router.NewBatchOrders(ctx, reqs)
	if err != nil {
		return err
	}

	type entry struct {
		Index  int                 `json:"index"`
		Ref    string              `json:"ref,omitempty"`
		Result *orders.OrderResult `json:"result,omitempty"`
		Error  string              `json:"error,omitempty"`
		Hint   string              `json:"hint,omitempty"`
	}
	out := make([]entry, len(results))
	failed := 0
	for i, r := range results {
		out[i] = entry{Index: r.Index, Result: r.Result}
		if r.Result != nil {
			out[i].Ref = r.Result.Ref()
		}
		if r.Err != nil {
			failed++
			out[i].Error = r.Err.Error()
			out[i].Hint = orders.Hint(r.Err)
		}
	}
	if err := printJSON(out); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d orders failed", failed, len(results))
	}
	return nil
}

func runQuery(ctx context.Context, e *env, args []string) error {
	var ids idFlags
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	ids.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := e.app.Router.QueryOrder(ctx, ids.params(), ids.fallback)
	if err != nil {
		return err
	}
	return printResult(res)
}

func runCancel(ctx context.Context, e *env, args []string) error {
	var ids idFlags
	fs := flag.NewFlagSet("cancel", flag.ContinueOnError)
	ids.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := e.app.Router.CancelOrder(ctx, ids.params(), ids.fallback)
	if err != nil {
		return err
	}
	return printResult(res)
}

func runTrailing(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("trailing", flag.ContinueOnError)
	var (
		p    orders.TrailingStopParams
		side string
	)
	fs.StringVar(&p.Symbol, "symbol", "", "trading pair")
	fs.StringVar(&side, "side", "", "BUY or SELL")
	decimalVar(fs, &p.Quantity, "qty", "order quantity")
	decimalVar(fs, &p.CallbackRate, "callback", "callback rate in percent (0.1 to 10)")
	decimalVar(fs, &p.ActivationPrice, "activation", "activation price (optional)")
	fs.BoolVar(&p.ReduceOnly, "reduce-only", false, "reduce only")
	fs.StringVar(&p.NewClientOrderID, "client-id", "", "client order id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p.Symbol = strings.ToUpper(p.Symbol)
	p.Side = binance.Side(strings.ToUpper(side))

	res, err := e.app.Router.NewTrailingStopOrder(ctx, p)
	if err != nil {
		return err
	}
	return printResult(res)
}

func runStopLoss(ctx context.Context, e *env, args []string) error {
	p, err := parseStopFlags("stop-loss", args)
	if err != nil {
		return err
	}
	res, err := e.app.Router.NewStopLossOrder(ctx, p)
	if err != nil {
		return err
	}
	return printResult(res)
}

func runTakeProfit(ctx context.Context, e *env, args []string) error {
	p, err := parseStopFlags("take-profit", args)
	if err != nil {
		return err
	}
	res, err := e.app.Router.NewTakeProfitOrder(ctx, p)
	if err != nil {
		return err
	}
	return printResult(res)
}

func parseStopFlags(name string, args []string) (orders.StopParams, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	var (
		p           orders.StopParams
		side        string
		workingType string
	)
	fs.StringVar(&p.Symbol, "symbol", "", "trading pair")
	fs.StringVar(&side, "side", "", "BUY or SELL")
	decimalVar(fs, &p.StopPrice, "stop", "trigger price")
	decimalVar(fs, &p.Quantity, "qty", "order quantity")
	fs.BoolVar(&p.ClosePosition, "close-position", false, "close the whole position")
	fs.BoolVar(&p.ReduceOnly, "reduce-only", false, "reduce only")
	fs.StringVar(&workingType, "working-type", "", "MARK_PRICE or CONTRACT_PRICE")
	fs.StringVar(&p.NewClientOrderID, "client-id", "", "client order id")
	if err := fs.Parse(args); err != nil {
		return p, err
	}
	p.Symbol = strings.ToUpper(p.Symbol)
	p.Side = binance.Side(strings.ToUpper(side))
	p.WorkingType = binance.WorkingType(strings.ToUpper(workingType))
	return p, nil
}

func runAlgoOpen(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("algo-open", flag.ContinueOnError)
	symbol := fs.String("symbol", "", "trading pair (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	list, err := e.app.Router.OpenAlgoOrders(ctx, binance.Params{"symbol": strings.ToUpper(*symbol)}.Compact())
	if err != nil {
		return err
	}
	return printJSON(list)
}

func runAlgoAll(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("algo-all", flag.ContinueOnError)
	symbol := fs.String("symbol", "", "trading pair")
	limit := fs.String("limit", "", "max results")
	if err := fs.Parse(args); err != nil {
		return err
	}

	list, err := e.app.Router.AllAlgoOrders(ctx, binance.Params{"symbol": strings.ToUpper(*symbol), "limit": *limit}.Compact())
	if err != nil {
		return err
	}
	return printJSON(list)
}

func runAlgoCancelAll(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("algo-cancel-all", flag.ContinueOnError)
	symbol := fs.String("symbol", "", "trading pair")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := e.app.Router.CancelOpenAlgoOrders(ctx, strings.ToUpper(*symbol)); err != nil {
		return err
	}
	fmt.Println("canceled")
	return nil
}

func runTime(ctx context.Context, e *env, args []string) error {
	st, err := e.app.Client.ServerTime(ctx)
	if err != nil {
		return err
	}
	return printJSON(st)
}

func runToken(_ context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	service := fs.String("service", "", "caller service name")
	scopes := fs.String("scopes", auth.ScopeRead, "comma separated scopes (read, trade)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *service == "" {
		return errors.New("-service is required")
	}
	if len(e.cfg.AuthConfig.JWTSecret) < 32 {
		return errors.New("auth.jwt_secret must be configured (at least 32 characters)")
	}

	var scopeList []string
	for _, s := range strings.Split(*scopes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			scopeList = append(scopeList, s)
		}
	}

	manager := auth.NewJWTManager(e.cfg.AuthConfig.JWTSecret, e.cfg.AuthConfig.Issuer, e.cfg.AuthConfig.TokenDuration)
	token, err := manager.GenerateToken(auth.ServiceClaims{Service: *service, Scopes: scopeList})
	if err != nil {
		return err
	}
	return printJSON(token)
}

// Command storefrontctl administers the storefront tables: it creates them,
// seeds a sample catalog and adjusts stock outside the HTTP API.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-orders/internal/aws"
	"github.com/imrishuroy/go-storefront-orders/internal/catalog"
	"github.com/imrishuroy/go-storefront-orders/internal/config"
	"github.com/imrishuroy/go-storefront-orders/internal/logging"
)

// env is what every command needs, loaded once in Before.
type env struct {
	cfg     *config.Config
	logger  *zap.Logger
	clients *aws.AWSClients
}

func main() {
	e := &env{}
	app := &cli.App{
		Name:  "storefrontctl",
		Usage: "administer storefront DynamoDB tables",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env-file", Usage: "dotenv file to load before the environment", Value: ".env"},
		},
		Before: func(c *cli.Context) error {
			return e.load(c.Context, c.String("env-file"))
		},
		After: func(c *cli.Context) error {
			if e.logger != nil {
				_ = e.logger.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "create-tables",
				Usage: "create the products, orders and idempotency tables",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "wait", Usage: "how long to wait for a new table before enabling TTL", Value: 2 * time.Minute},
				},
				Action: func(c *cli.Context) error {
					return createTables(c.Context, e.clients.Raw, tableSpecs(e.cfg), c.Duration("wait"), e.logger)
				},
			},
			{
				Name:  "seed",
				Usage: "load the sample catalog",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Usage: "seed even when products already exist"},
				},
				Action: func(c *cli.Context) error {
					n, err := seed(c.Context, e.products(), c.Bool("force"), e.logger)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "seeded %d products\n", n)
					return nil
				},
			},
			{
				Name:  "adjust-stock",
				Usage: "add a signed delta to a product's stock",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "product id", Required: true},
					&cli.IntFlag{Name: "delta", Usage: "stock change, may be negative", Required: true},
				},
				Action: func(c *cli.Context) error {
					p, err := e.products().AdjustStock(c.Context, c.String("id"), c.Int("delta"))
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "%s\t%s\tstock=%d\n", p.ProductID, p.Name, p.Stock)
					return nil
				},
			},
			{
				Name:  "low-stock",
				Usage: "list Active products at or below the threshold",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "threshold", Usage: "stock threshold (default LOW_STOCK_THRESHOLD)"},
					&cli.IntFlag{Name: "limit", Usage: "maximum products to list, 0 for all"},
				},
				Action: func(c *cli.Context) error {
					threshold := e.cfg.LowStockThreshold
					if c.IsSet("threshold") {
						threshold = c.Int("threshold")
					}
					list, err := e.products().LowStock(c.Context, threshold, c.Int("limit"))
					if err != nil {
						return err
					}
					for _, p := range list {
						fmt.Fprintf(c.App.Writer, "%s\t%s\tstock=%d\n", p.ProductID, p.Name, p.Stock)
					}
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func (e *env) load(ctx context.Context, envFile string) error {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	clients, err := aws.NewAWSClients(ctx, cfg.AWSRegion, cfg.AWSEndpoint)
	if err != nil {
		return fmt.Errorf("init aws clients: %w", err)
	}
	e.cfg, e.logger, e.clients = cfg, logger, clients
	return nil
}

func (e *env) products() *catalog.Store {
	return catalog.NewStore(e.clients.DynamoDB, e.cfg.ProductsTable)
}

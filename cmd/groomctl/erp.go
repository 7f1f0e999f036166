package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wolfman30/grooming-booking/internal/app/bootstrap"
	"github.com/wolfman30/grooming-booking/internal/erp"
	"github.com/wolfman30/grooming-booking/internal/pricing"
)

const erpCommandTimeout = 30 * time.Second

var errERPNotConfigured = errors.New("ERP is not configured: set ERP_URL, ERP_DB, ERP_USER and ERP_PASSWORD")

func (e *env) erp(cmd *cobra.Command) (*bootstrap.ERP, error) {
	cfg := e.loadConfig()
	if !cfg.ERPConfigured() {
		return nil, errERPNotConfigured
	}
	return bootstrap.BuildERP(cfg, nil, newLogger(cfg, cmd.ErrOrStderr()))
}

func newERPPingCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "erp-ping",
		Short: "Check ERP reachability and credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := e.erp(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), erpCommandTimeout)
			defer cancel()

			version, err := conn.Client.Version(ctx)
			if err != nil {
				return err
			}
			uid, err := conn.Client.Authenticate(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "erp: ok (server %s, uid %d)\n", version, uid)
			return err
		},
	}
}

func newERPPricesCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "erp-prices",
		Short: "Compare ERP package prices with the local price table",
		Long:  "Reads package prices from the ERP and lists every cell that differs from the local table. Exits non-zero when drift is found.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := e.erp(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), erpCommandTimeout)
			defer cancel()

			matrix, err := erp.NewPriceReader(conn.Client, conn.Catalog).Fetch(ctx)
			if err != nil {
				return err
			}
			drift := matrix.Diff(pricing.DefaultTable())
			if len(drift) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "prices match")
				return err
			}
			if err := writeDrift(cmd, drift); err != nil {
				return err
			}
			return fmt.Errorf("%d price cells differ from the ERP", len(drift))
		},
	}
}

func writeDrift(cmd *cobra.Command, drift []erp.PriceDrift) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SPECIES\tPACKAGE\tSIZE\tLOCAL\tERP")
	for _, d := range drift {
		remote := "missing"
		if !d.Missing {
			remote = pricing.FormatPrice(d.ERP)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.Species, d.Tier, d.Size, pricing.FormatPrice(d.Local), remote)
	}
	return tw.Flush()
}

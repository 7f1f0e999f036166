package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wolfman30/grooming-booking/internal/pricing"
)

func newPricesCmd() *cobra.Command {
	var species string
	cmd := &cobra.Command{
		Use:   "prices",
		Short: "Print the grooming price list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := pricing.DefaultTable().Catalog(species)
			if err != nil {
				return fmt.Errorf("unknown species %q: choose dog or cat", species)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SPECIES\tPACKAGE\tSIZE\tPRICE")
			for _, sp := range catalog.Species {
				for _, pkg := range sp.Packages {
					for _, p := range pkg.Prices {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", sp.Species, pkg.Name, p.Label, p.PriceFormatted)
					}
				}
			}
			for _, addOn := range catalog.AddOns {
				fmt.Fprintf(tw, "add-on\t%s\t-\t+%s\n", addOn.Name, addOn.PriceFormatted)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&species, "species", "", "limit the list to dog or cat")
	return cmd
}

func newQuoteCmd() *cobra.Command {
	var (
		species    string
		tier       string
		size       string
		detangling bool
	)
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a single grooming appointment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sp, ok := pricing.ParseSpecies(species)
			if !ok {
				return fmt.Errorf("unknown species %q", species)
			}
			pkg, ok := pricing.ParseTier(tier)
			if !ok {
				return fmt.Errorf("unknown package %q", tier)
			}
			sz, ok := pricing.ParseSize(sp, size)
			if !ok {
				return fmt.Errorf("unknown size %q for %s", size, sp)
			}
			amount, ok := pricing.DefaultTable().Resolve(sp, pkg, sz, pricing.AddOns{Detangling: detangling})
			if !ok {
				return fmt.Errorf("no price for %s %s %s", sp, pkg, sz)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s): %s\n",
				pricing.TierLabel(pkg), sp, pricing.SizeLabel(sz), pricing.FormatPrice(amount))
			return err
		},
	}
	cmd.Flags().StringVar(&species, "species", "", "dog or cat")
	cmd.Flags().StringVar(&tier, "package", "", "standard, premium or super_premium")
	cmd.Flags().StringVar(&size, "size", "", "size class for the species")
	cmd.Flags().BoolVar(&detangling, "detangling", false, "add the detangling fee")
	for _, name := range []string{"species", "package", "size"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

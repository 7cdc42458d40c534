package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amishk599/hiringradar/internal/discovery"
)

var discoverRegister bool

var discoverCmd = &cobra.Command{
	Use:   "discover <company> <url-or-domain>",
	Short: "Detect ATS boards for a company",
	Long: "Detects ATS boards from a board link, a careers page URL, or a bare domain (probing common careers paths). " +
		"With --register, missing sources are created and disabled ones re-enabled.",
	Args: cobra.ExactArgs(2),
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().BoolVar(&discoverRegister, "register", true, "create sources for detected boards")
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	detector := discovery.NewDetector(a.httpClient(), a.logger)
	target := args[1]

	var hits []discovery.Hit
	if strings.Contains(target, "://") {
		hits, err = detector.DetectFromURL(ctx, target)
	} else {
		hits, err = detector.DetectFromDomain(ctx, target)
	}
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		return fmt.Errorf("no ATS boards found for %s", target)
	}
	for _, h := range hits {
		fmt.Printf("%-16s %s\n", h.Kind, h.Handle)
	}
	if !discoverRegister {
		return nil
	}

	company, err := a.store.EnsureCompany(ctx, args[0])
	if err != nil {
		return err
	}
	res, err := discovery.NewRegistrar(a.store, a.logger).Register(ctx, *company, hits)
	if err != nil {
		return err
	}
	return printJSON(res)
}

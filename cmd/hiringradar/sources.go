package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/amishk599/hiringradar/internal/config"
	"github.com/amishk599/hiringradar/internal/discovery"
	"github.com/amishk599/hiringradar/internal/model"
	"github.com/amishk599/hiringradar/internal/store"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage ATS sources",
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all sources",
	Args:  cobra.NoArgs,
	RunE:  runSourcesList,
}

var sourcesAddCmd = &cobra.Command{
	Use:   "add <company> <kind> <handle>",
	Short: "Add a source, creating the company if needed",
	Long:  "Adds an enabled source for company. kind is one of greenhouse, lever, ashby, smartrecruiters. An existing disabled source of the same kind is re-enabled.",
	Args:  cobra.ExactArgs(3),
	RunE:  runSourcesAdd,
}

var sourcesEnableCmd = &cobra.Command{
	Use:   "enable <source-id>",
	Short: "Enable a source",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setSourceEnabled(cmd.Context(), args[0], true) },
}

var sourcesDisableCmd = &cobra.Command{
	Use:   "disable <source-id>",
	Short: "Disable a source",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setSourceEnabled(cmd.Context(), args[0], false) },
}

var sourcesSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Seed companies from config and derive their sources",
	Long:  "Creates every company listed under companies: in the config, then creates or re-enables one source per company from its ats and handle. Companies marked enabled: false get their source disabled.",
	Args:  cobra.NoArgs,
	RunE:  runSourcesSync,
}

func init() {
	sourcesCmd.AddCommand(sourcesListCmd, sourcesAddCmd, sourcesEnableCmd, sourcesDisableCmd, sourcesSyncCmd)
	rootCmd.AddCommand(sourcesCmd)
}

func runSourcesList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sources, err := a.store.ListSources(ctx)
	if err != nil {
		return err
	}
	companies, err := a.store.ListCompanies(ctx)
	if err != nil {
		return err
	}
	names := make(map[int64]string, len(companies))
	for _, c := range companies {
		names[c.ID] = c.Name
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Company", "ATS", "Handle", "Status", "Last OK"})

	enabled := 0
	for _, s := range sources {
		status := "disabled"
		if s.Enabled {
			status = "enabled"
			enabled++
		}
		lastOK := "never"
		if s.LastOKAt != nil {
			lastOK = s.LastOKAt.UTC().Format("2006-01-02 15:04")
		}
		t.AppendRow(table.Row{s.ID, names[s.CompanyID], s.Kind, s.Handle, status, lastOK})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d sources", len(sources)), "", "", fmt.Sprintf("%d enabled", enabled)})
	t.Render()
	return nil
}

func runSourcesAdd(cmd *cobra.Command, args []string) error {
	kind := model.ATSKind(strings.ToLower(args[1]))
	if !kind.Valid() {
		return fmt.Errorf("unsupported ATS kind %q", args[1])
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	company, err := a.store.EnsureCompany(ctx, args[0])
	if err != nil {
		return err
	}
	res, err := discovery.NewRegistrar(a.store, a.logger).Register(ctx, *company, []discovery.Hit{{Kind: kind, Handle: args[2]}})
	if err != nil {
		return err
	}
	return printJSON(res)
}

func setSourceEnabled(ctx context.Context, rawID string, enabled bool) error {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid source id %q", rawID)
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.SetSourceEnabled(ctx, id, enabled); err != nil {
		return err
	}
	a.logger.Info("source updated", "source_id", id, "enabled", enabled)
	return nil
}

func runSourcesSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	seeded, err := seedCompanies(ctx, a.store, a.cfg.Companies)
	if err != nil {
		return err
	}
	a.logger.Info("companies seeded", "created", seeded, "configured", len(a.cfg.Companies))

	res, err := discovery.NewRegistrar(a.store, a.logger).SyncCompanies(ctx)
	if err != nil {
		return err
	}

	for _, c := range a.cfg.Companies {
		if c.IsEnabled() {
			continue
		}
		if err := disableCompanySource(ctx, a.store, c); err != nil {
			return err
		}
	}
	return printJSON(res)
}

// seedCompanies creates configured companies that do not exist yet and
// returns how many were created. Existing rows are left untouched.
func seedCompanies(ctx context.Context, st *store.Store, companies []config.CompanyConfig) (int, error) {
	created := 0
	for _, c := range companies {
		_, err := st.GetCompanyByName(ctx, c.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return created, err
		}
		if err := st.CreateCompany(ctx, &model.Company{
			Name:       c.Name,
			ATSKind:    model.ATSKind(strings.ToLower(c.ATS)),
			Handle:     c.Handle,
			CareersURL: c.CareersURL,
		}); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func disableCompanySource(ctx context.Context, st *store.Store, c config.CompanyConfig) error {
	company, err := st.GetCompanyByName(ctx, c.Name)
	if err != nil {
		return err
	}
	src, err := st.FindSource(ctx, company.ID, model.ATSKind(strings.ToLower(c.ATS)))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !src.Enabled {
		return nil
	}
	return st.SetSourceEnabled(ctx, src.ID, false)
}

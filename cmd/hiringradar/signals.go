package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/hiringradar/internal/model"
)

var (
	signalAt      string
	signalPayload string
)

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Record external company events",
}

var signalsAddCmd = &cobra.Command{
	Use:   "add <company> <kind>",
	Short: "Append a signal for a company",
	Long:  "Appends a signal. kind is one of hn_whos_hiring, layoff, funding, earnings. The company must already exist.",
	Args:  cobra.ExactArgs(2),
	RunE:  runSignalsAdd,
}

func init() {
	signalsAddCmd.Flags().StringVar(&signalAt, "at", "", "when it happened, RFC 3339 or YYYY-MM-DD (default: now)")
	signalsAddCmd.Flags().StringVar(&signalPayload, "payload", "", "optional JSON payload")
	signalsCmd.AddCommand(signalsAddCmd)
	rootCmd.AddCommand(signalsCmd)
}

func runSignalsAdd(cmd *cobra.Command, args []string) error {
	kind := args[1]
	if !model.ValidSignalKind(kind) {
		return fmt.Errorf("unknown signal kind %q", kind)
	}
	happenedAt, err := parseSignalTime(signalAt, time.Now())
	if err != nil {
		return err
	}
	var payload []byte
	if signalPayload != "" {
		if !json.Valid([]byte(signalPayload)) {
			return fmt.Errorf("payload is not valid JSON")
		}
		payload = []byte(signalPayload)
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	company, err := a.store.GetCompanyByName(ctx, args[0])
	if err != nil {
		return err
	}
	sig := &model.Signal{CompanyID: company.ID, Kind: kind, HappenedAt: happenedAt, Payload: payload}
	if err := a.store.AddSignal(ctx, sig); err != nil {
		return err
	}
	a.logger.Info("signal recorded", "signal_id", sig.ID, "company_id", company.ID, "kind", kind)
	return nil
}

func parseSignalTime(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		return now.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid --at %q: want RFC 3339 or YYYY-MM-DD", raw)
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"wsfuzz/internal/domain"
	"wsfuzz/internal/usecase/fuzz"
)

func newQuickCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quick",
		Short: "One-shot probes: auth bypass, race burst, Socket.IO enumeration",
	}
	cmd.AddCommand(newAuthCmd(a))
	cmd.AddCommand(newRaceCmd(a))
	cmd.AddCommand(newEnumCmd(a))
	return cmd
}

func (a *app) prober() (*fuzz.Prober, error) {
	catalog, err := a.catalog()
	if err != nil {
		return nil, err
	}
	return fuzz.NewProber(a.newBareConn, a.probeOptions(), catalog, a.log, a.bus), nil
}

type probeFlags struct {
	url    string
	frame  string
	asJSON bool
}

func (f *probeFlags) register(cmd *cobra.Command, withFrame bool) {
	cmd.Flags().StringVar(&f.url, "url", "", "WebSocket endpoint (ws:// or wss://)")
	_ = cmd.MarkFlagRequired("url")
	if withFrame {
		cmd.Flags().StringVar(&f.frame, "frame", "", "Frame to send")
		_ = cmd.MarkFlagRequired("frame")
	}
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "Emit the result as JSON")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newAuthCmd(a *app) *cobra.Command {
	flags := &probeFlags{}
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Connect without cookies or auth headers and send a frame",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.prober()
			if err != nil {
				return err
			}
			res, err := p.AuthBypass(cmd.Context(), flags.url, flags.frame)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if flags.asJSON {
				return writeJSON(w, res)
			}
			printAuth(w, res)
			return nil
		},
	}
	flags.register(cmd, true)
	return cmd
}

func printAuth(w io.Writer, res fuzz.AuthResult) {
	fmt.Fprintln(w, styleHeading.Render("auth bypass"))
	if !res.Connected {
		fmt.Fprintf(w, "%s connection refused: %s\n", styleOK.Render(symbolOK), res.Diagnostic)
		return
	}
	if !res.Sent {
		fmt.Fprintf(w, "%s connected, send failed: %s\n", styleWarn.Render(symbolFail), res.Diagnostic)
		return
	}
	if len(res.Responses) == 0 {
		fmt.Fprintf(w, "%s connected unauthenticated, no response\n", styleWarn.Render(symbolFail))
		return
	}
	fmt.Fprintf(w, "%s connected unauthenticated, %d responses\n", styleError.Render(symbolFail), len(res.Responses))
	for _, r := range res.Responses {
		fmt.Fprintf(w, "  %s %s\n", styleInfo.Render(symbolDown), truncate(r, 100))
	}
}

type raceFlags struct {
	probeFlags
	count int
}

func newRaceCmd(a *app) *cobra.Command {
	flags := &raceFlags{}
	cmd := &cobra.Command{
		Use:   "race",
		Short: "Send one frame many times back to back on a single connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.prober()
			if err != nil {
				return err
			}
			res, err := p.Race(cmd.Context(), flags.url, flags.frame, flags.count)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if flags.asJSON {
				return writeJSON(w, res)
			}
			printRace(w, res)
			return nil
		},
	}
	flags.register(cmd, true)
	cmd.Flags().IntVar(&flags.count, "count", 20, "Number of copies to send")
	return cmd
}

func printRace(w io.Writer, res fuzz.RaceResult) {
	fmt.Fprintln(w, styleHeading.Render("race"))
	fmt.Fprintf(w, "%s%d (%d failed)\n", styleKey.Render("sent"), res.Sent, res.Failed)
	fmt.Fprintf(w, "%s%s (%.1f/s)\n", styleKey.Render("elapsed"), res.Elapsed, res.Rate)
	fmt.Fprintf(w, "%s%d (%d unique)\n", styleKey.Render("responses"), len(res.Responses), len(res.Unique))
	for _, u := range res.Unique {
		fmt.Fprintf(w, "  %4dx %s\n", u.Count, truncate(u.Text, 100))
	}
}

type enumFlags struct {
	probeFlags
	kind string
}

func newEnumCmd(a *app) *cobra.Command {
	flags := &enumFlags{}
	cmd := &cobra.Command{
		Use:   "enum",
		Short: "Enumerate Socket.IO events or namespaces the server answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.prober()
			if err != nil {
				return err
			}
			res, err := p.Enumerate(cmd.Context(), flags.url, fuzz.EnumKind(flags.kind))
			stopped := errors.Is(err, domain.ErrRunStopped)
			if err != nil && !stopped {
				return err
			}
			w := cmd.OutOrStdout()
			if flags.asJSON {
				return writeJSON(w, res)
			}
			printEnum(w, res)
			if stopped {
				fmt.Fprintln(w, styleWarn.Render("enumeration stopped early"))
			}
			return nil
		},
	}
	flags.register(cmd, false)
	cmd.Flags().StringVar(&flags.kind, "kind", string(fuzz.EnumEvents), "What to enumerate: events or namespaces")
	return cmd
}

func printEnum(w io.Writer, res fuzz.EnumResult) {
	fmt.Fprintln(w, styleHeading.Render("enumerate "+string(res.Kind)))
	fmt.Fprintf(w, "%s%d\n", styleKey.Render("tested"), res.Tested)
	fmt.Fprintf(w, "%s%d\n", styleKey.Render("findings"), len(res.Findings))
	for _, f := range res.Findings {
		fmt.Fprintf(w, "  %s %s  %s\n", styleOK.Render(symbolOK), f.Item, styleMuted.Render(truncate(f.Response, 80)))
	}
}

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"wsfuzz/internal/adapter/codec"
	"wsfuzz/internal/adapter/mutate"
	"wsfuzz/internal/domain"
	"wsfuzz/internal/usecase/capture"
)

type frameInputFlags struct {
	jsonInput  bool
	directions bool
}

func (f *frameInputFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.jsonInput, "json-input", false, "Input is a JSON array of frame strings instead of one frame per line")
	cmd.Flags().BoolVar(&f.directions, "directions", false, "Lines start with '>' (sent) or '<' (received)")
}

// capturedFrame is one input frame and its travel direction.
type capturedFrame struct {
	dir  domain.Direction
	text string
}

// readFrames reads frames from the named file, or stdin when path is "" or
// "-".
func readFrames(stdin io.Reader, path string, f frameInputFlags) ([]capturedFrame, error) {
	r := stdin
	if path != "" && path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open frames: %w", err)
		}
		defer file.Close()
		r = file
	}

	var texts []string
	if f.jsonInput {
		if err := json.NewDecoder(r).Decode(&texts); err != nil {
			return nil, fmt.Errorf("parse frames: %w", err)
		}
	} else {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), codec.MaxSampleLength+1)
		for sc.Scan() {
			if line := strings.TrimRight(sc.Text(), "\r"); line != "" {
				texts = append(texts, line)
			}
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read frames: %w", err)
		}
	}

	out := make([]capturedFrame, 0, len(texts))
	for _, t := range texts {
		cf := capturedFrame{dir: domain.DirectionFromPeer, text: t}
		if f.directions {
			switch {
			case strings.HasPrefix(t, ">"):
				cf.dir, cf.text = domain.DirectionToPeer, strings.TrimPrefix(strings.TrimPrefix(t, ">"), " ")
			case strings.HasPrefix(t, "<"):
				cf.text = strings.TrimPrefix(strings.TrimPrefix(t, "<"), " ")
			}
		}
		out = append(out, cf)
	}
	return out, nil
}

func newDetectCmd(a *app) *cobra.Command {
	in := frameInputFlags{}
	cmd := &cobra.Command{
		Use:   "detect [file]",
		Short: "Classify the sub-protocol of a frame capture",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			frames, err := readFrames(cmd.InOrStdin(), firstArg(args), in)
			if err != nil {
				return err
			}
			samples := make([]string, len(frames))
			for i, f := range frames {
				samples[i] = f.text
			}
			p := codec.Detect(samples)
			a.log.Debug("detected protocol", "protocol", p.String(), "frames", len(samples))
			fmt.Fprintln(cmd.OutOrStdout(), p.String())
			return nil
		},
	}
	in.register(cmd)
	return cmd
}

type decodeFlags struct {
	frameInputFlags
	asJSON   bool
	protocol string
	set      []string
}

func newDecodeCmd(a *app) *cobra.Command {
	flags := &decodeFlags{}
	cmd := &cobra.Command{
		Use:   "decode [file]",
		Short: "Decode every frame of a capture and list its fields",
		Long: `Decode classifies the capture on its first frames, then prints each
frame's envelope attributes and extracted fields. With --set path=value
each non-control frame is also re-encoded with that field replaced.`,
		Example: `  wsfuzz decode capture.txt
  printf '42["login",{"user":"bob"}]\n' | wsfuzz decode --set user=admin`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			frames, err := readFrames(cmd.InOrStdin(), firstArg(args), flags.frameInputFlags)
			if err != nil {
				return err
			}
			return runDecode(cmd.Context(), cmd.OutOrStdout(), a, frames, flags)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.asJSON, "json", false, "Emit frame entries as JSON")
	cmd.Flags().StringVar(&flags.protocol, "protocol", "", "Force a protocol instead of detecting it")
	cmd.Flags().StringArrayVar(&flags.set, "set", nil, "Replace a field (path=value) and print the re-encoded frame (repeatable)")
	return cmd
}

func runDecode(ctx context.Context, w io.Writer, a *app, frames []capturedFrame, flags *decodeFlags) error {
	edits, err := parseAssignments(flags.set)
	if err != nil {
		return err
	}
	rec := capture.NewRecorder(a.cfg.Capture.HistoryLimit, a.log, a.bus)
	session := rec.Open("decode")
	if flags.protocol != "" {
		p, err := domain.ParseProtocol(flags.protocol)
		if err != nil {
			return err
		}
		session.SetProtocol(p)
	}
	for _, f := range frames {
		session.Handle(ctx, f.dir, f.text, nil)
	}

	entries := rec.History()
	if flags.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	for _, e := range entries {
		printEntry(w, e)
		if len(edits) > 0 && !e.IsControl {
			body := e.Decoded.FuzzableBody
			for _, ed := range edits {
				body = mutate.ReplaceField(body, ed.key, ed.value)
			}
			fmt.Fprintf(w, "  %s %s\n", styleWarn.Render("=>"), codec.Encode(*e.Decoded, body))
		}
	}
	return nil
}

func printEntry(w io.Writer, e domain.FrameEntry) {
	arrow := styleInfo.Render(symbolDown)
	if e.Direction == domain.DirectionToPeer {
		arrow = styleWarn.Render(symbolUp)
	}
	kind := e.EventName
	if kind == "" {
		kind = "-"
	}
	meta := fmt.Sprintf("#%d %s %s", e.ID, e.Protocol, kind)
	if e.IsControl {
		meta += " (control)"
	}
	fmt.Fprintf(w, "%s %s  %s\n", arrow, meta, styleMuted.Render(truncate(e.Raw, 80)))
	if e.Decoded == nil || e.IsControl {
		return
	}
	d := e.Decoded
	if d.Namespace != "" && d.Namespace != "/" {
		fmt.Fprintf(w, "  %s%s\n", styleKey.Render("namespace"), d.Namespace)
	}
	if d.AckID != "" {
		fmt.Fprintf(w, "  %s%s\n", styleKey.Render("ack"), d.AckID)
	}
	if d.CorrelationID != "" {
		fmt.Fprintf(w, "  %s%s\n", styleKey.Render("id"), d.CorrelationID)
	}
	if d.HasInner {
		fmt.Fprintf(w, "  %s%s\n", styleKey.Render("identifier"), d.InnerIdentifier)
	}
	d.Fields.Range(func(path, value string) bool {
		fmt.Fprintf(w, "  %s%s\n", styleKey.Render(path), truncate(value, 60))
		return true
	})
}

type assignment struct {
	key, value string
}

func parseAssignments(raw []string) ([]assignment, error) {
	out := make([]assignment, 0, len(raw))
	for _, r := range raw {
		k, v, ok := strings.Cut(r, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid assignment %q, want path=value", r)
		}
		out = append(out, assignment{key: strings.TrimSpace(k), value: v})
	}
	return out, nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"wsfuzz/internal/adapter/codec"
	"wsfuzz/internal/adapter/mutate"
	"wsfuzz/internal/adapter/payloads"
	"wsfuzz/internal/domain"
	"wsfuzz/internal/usecase/fuzz"
)

type fuzzFlags struct {
	url          string
	template     string
	templateFile string
	fields       []string
	markers      []string
	sets         []string
	payloadFiles []string
	inline       []string
	rangeSpec    string
	delay        time.Duration
	encoding     string
	headers      []string
	subprotocol  string
	chain        []string
	protocol     string
	wait         time.Duration
	asJSON       bool
}

func newFuzzCmd(a *app) *cobra.Command {
	flags := &fuzzFlags{}
	cmd := &cobra.Command{
		Use:   "fuzz",
		Short: "Replay a template frame once per payload against a live endpoint",
		Long: `Fuzz connects to the endpoint, then sends the template once per payload
with the payload substituted either into named JSON fields (--field) or
into §name§ markers inside the template. Delivery failures are reported
per payload and never abort the run; a dropped connection is reconnected
before the next payload.`,
		Example: `  wsfuzz fuzz --url wss://host/socket.io/?EIO=4&transport=websocket \
    --template '42["search",{"q":"x"}]' --field q --set SQLi
  wsfuzz fuzz --url ws://host/ws --template '{"id":§id§}' --range 1-100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFuzz(cmd.Context(), cmd.OutOrStdout(), a, flags)
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.url, "url", "", "WebSocket endpoint (ws:// or wss://)")
	f.StringVar(&flags.template, "template", "", "Template frame")
	f.StringVar(&flags.templateFile, "template-file", "", "Read the template frame from a file")
	f.StringArrayVar(&flags.fields, "field", nil, "Field path to replace (repeatable)")
	f.StringArrayVar(&flags.markers, "marker", nil, "Marker name to replace; defaults to every §marker§ in the template")
	f.StringArrayVar(&flags.sets, "set", nil, "Built-in or configured payload set (repeatable)")
	f.StringArrayVar(&flags.payloadFiles, "payload-file", nil, "File with one payload per line (repeatable)")
	f.StringArrayVar(&flags.inline, "payload", nil, "Literal payload (repeatable)")
	f.StringVar(&flags.rangeSpec, "range", "", "Integer payloads, inclusive (e.g. 1-100)")
	f.DurationVar(&flags.delay, "delay", 0, "Pause between payloads (default fuzz.delay)")
	f.StringVar(&flags.encoding, "encoding", "", "Payload encoding: none, url, base64, double-url, unicode (default fuzz.encoding)")
	f.StringArrayVar(&flags.headers, "header", nil, `Extra handshake header "Name: value" (repeatable)`)
	f.StringVar(&flags.subprotocol, "subprotocol", "", "Offered Sec-WebSocket-Protocol values, comma-separated")
	f.StringArrayVar(&flags.chain, "chain", nil, "Frame replayed after every connect (repeatable)")
	f.StringVar(&flags.protocol, "protocol", "", "Force the sub-protocol instead of detecting it")
	f.DurationVar(&flags.wait, "wait", 2*time.Second, "How long to collect responses after the last payload")
	f.BoolVar(&flags.asJSON, "json", false, "Emit results and responses as JSON")
	_ = cmd.MarkFlagRequired("url")
	cmd.MarkFlagsMutuallyExclusive("template", "template-file")
	return cmd
}

type fuzzReport struct {
	Protocol  string                  `json:"protocol"`
	Results   []domain.MutationResult `json:"results"`
	Responses []fuzz.Response         `json:"responses"`
	Stopped   bool                    `json:"stopped,omitempty"`
}

func runFuzz(ctx context.Context, w io.Writer, a *app, flags *fuzzFlags) error {
	job, err := buildJob(a, flags)
	if err != nil {
		return err
	}

	conn := a.newConn()
	headers, err := mergeHeaders(a.cfg.Connection.Headers, flags.headers)
	if err != nil {
		return err
	}
	conn.SetHeaders(headers)
	if flags.subprotocol != "" {
		conn.SetSubprotocol(flags.subprotocol)
	}
	if len(flags.chain) > 0 {
		conn.SetStateChain(flags.chain)
	}
	if flags.protocol != "" {
		conn.SetProtocol(job.Protocol)
	}

	driver := fuzz.NewDriver(conn, a.driverConfig(), a.log, a.bus)
	conn.OnMessage(driver.HandleResponse)
	if !flags.asJSON {
		conn.OnStatus(func(s domain.ConnStatus) {
			fmt.Fprintf(w, "%s %s\n", styleMuted.Render("["+s.State.String()+"]"), s.Message)
		})
		driver.OnResponse(func(r fuzz.Response) {
			fmt.Fprintf(w, "  %s #%d %s\n", styleInfo.Render(symbolDown), r.Index, truncate(r.Text, 100))
		})
	}

	if err := conn.Connect(ctx, flags.url); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Disconnect()

	if !flags.asJSON {
		fmt.Fprintf(w, "%s %d payloads, protocol %s\n", styleHeading.Render("fuzz"), len(job.Payloads), job.Protocol)
	}
	results, runErr := driver.Run(ctx, job, func(r domain.MutationResult) {
		if !flags.asJSON {
			printResult(w, r)
		}
	})
	stopped := errors.Is(runErr, domain.ErrRunStopped)
	if runErr != nil && !stopped {
		return runErr
	}
	if !stopped && flags.wait > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(flags.wait):
		}
	}

	report := fuzzReport{
		Protocol:  job.Protocol.String(),
		Results:   results,
		Responses: driver.Responses(),
		Stopped:   stopped,
	}
	if flags.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printSummary(w, report)
	return nil
}

func buildJob(a *app, flags *fuzzFlags) (fuzz.Job, error) {
	template := flags.template
	if flags.templateFile != "" {
		data, err := os.ReadFile(flags.templateFile)
		if err != nil {
			return fuzz.Job{}, fmt.Errorf("read template: %w", err)
		}
		template = strings.TrimRight(string(data), "\r\n")
	}
	if template == "" {
		return fuzz.Job{}, errors.New("a template is required (--template or --template-file)")
	}

	job := fuzz.Job{Template: template, Fields: flags.fields, Delay: a.cfg.Fuzz.Delay}
	if flags.delay > 0 {
		job.Delay = flags.delay
	}

	job.Markers = flags.markers
	if len(job.Markers) == 0 && len(job.Fields) == 0 {
		job.Markers = mutate.FindMarkers(template)
	}
	if len(job.Markers) == 0 && len(job.Fields) == 0 {
		return fuzz.Job{}, errors.New("nothing to mutate: pass --field or put §markers§ in the template")
	}

	encName := a.cfg.Fuzz.Encoding
	if flags.encoding != "" {
		encName = flags.encoding
	}
	enc, err := mutate.ParseEncoding(encName)
	if err != nil {
		return fuzz.Job{}, err
	}
	job.Encoding = enc

	if flags.protocol != "" {
		if job.Protocol, err = domain.ParseProtocol(flags.protocol); err != nil {
			return fuzz.Job{}, err
		}
	} else {
		job.Protocol = codec.Detect([]string{template})
	}

	if job.Payloads, err = collectPayloads(a, flags); err != nil {
		return fuzz.Job{}, err
	}
	return job, nil
}

// collectPayloads concatenates every payload source in flag order: sets,
// files, range, then literals.
func collectPayloads(a *app, flags *fuzzFlags) ([]string, error) {
	var out []string
	if len(flags.sets) > 0 {
		catalog, err := a.catalog()
		if err != nil {
			return nil, err
		}
		for _, name := range flags.sets {
			items, err := catalog.Lookup(name)
			if err != nil {
				return nil, err
			}
			out = append(out, items...)
		}
	}
	for _, path := range flags.payloadFiles {
		items, err := payloads.LoadFile(path)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
	}
	if flags.rangeSpec != "" {
		start, end, err := parseRange(flags.rangeSpec)
		if err != nil {
			return nil, err
		}
		out = append(out, payloads.Sequence(start, end)...)
	}
	out = append(out, flags.inline...)
	if len(out) == 0 {
		return nil, errors.New("no payloads: pass --set, --payload-file, --range or --payload")
	}
	return out, nil
}

// maxRangeSpan caps --range so a typo cannot allocate gigabytes of payloads.
const maxRangeSpan = 1_000_000

func parseRange(spec string) (int, int, error) {
	lo, hi, ok := strings.Cut(strings.TrimSpace(spec), "-")
	if !ok {
		return 0, 0, fmt.Errorf("invalid range %q, want start-end", spec)
	}
	start, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid range start %q: %w", lo, err)
	}
	end, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid range end %q: %w", hi, err)
	}
	if end < start {
		return 0, 0, fmt.Errorf("invalid range %q: end before start", spec)
	}
	if end-start >= maxRangeSpan {
		return 0, 0, fmt.Errorf("invalid range %q: more than %d payloads", spec, maxRangeSpan)
	}
	return start, end, nil
}

// mergeHeaders overlays "Name: value" flags on the configured headers.
func mergeHeaders(base map[string]string, raw []string) (map[string]string, error) {
	out := make(map[string]string, len(base)+len(raw))
	for k, v := range base {
		out[k] = v
	}
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, want \"Name: value\"", h)
		}
		out[name] = strings.TrimSpace(value)
	}
	return out, nil
}

func printResult(w io.Writer, r domain.MutationResult) {
	if r.Sent {
		fmt.Fprintf(w, "%s #%d %s\n", styleOK.Render(symbolOK), r.Index, truncate(r.Frame, 100))
		return
	}
	fmt.Fprintf(w, "%s #%d %s  %s\n", styleError.Render(symbolFail), r.Index, truncate(r.Payload, 40), styleWarn.Render(r.Diagnostic))
}

func printSummary(w io.Writer, r fuzzReport) {
	sent := 0
	for _, res := range r.Results {
		if res.Sent {
			sent++
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s%d/%d\n", styleKey.Render("sent"), sent, len(r.Results))
	fmt.Fprintf(w, "%s%d\n", styleKey.Render("responses"), len(r.Responses))
	if r.Stopped {
		fmt.Fprintln(w, styleWarn.Render("run stopped before all payloads were sent"))
	}
}
